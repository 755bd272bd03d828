// Package blueprint holds the description of the local stack: where the
// backend and frontend live, which ports they use and how they are built
// and started. It is read from .devup.yaml when present.
package blueprint

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up in the project root.
const FileName = ".devup.yaml"

// Backend describes the Maven service.
type Backend struct {
	Dir          string        `yaml:"dir"`
	Port         int           `yaml:"port"`
	Build        []string      `yaml:"build"`
	Run          []string      `yaml:"run"`
	ReadyTimeout time.Duration `yaml:"ready_timeout"`
}

// Frontend describes the JavaScript dev server. An empty Install uses the
// install arguments of the detected package manager.
type Frontend struct {
	Dir          string        `yaml:"dir"`
	Port         int           `yaml:"port"`
	Install      []string      `yaml:"install,omitempty"`
	Build        []string      `yaml:"build"`
	Run          []string      `yaml:"run"`
	ReadyTimeout time.Duration `yaml:"ready_timeout"`
}

// Database names the service the backend needs.
type Database struct {
	Service string `yaml:"service"`
}

// Bootstrap is the machine setup script run when prerequisites are missing.
// Script is a base name; the platform picks the extension.
type Bootstrap struct {
	Script   string `yaml:"script"`
	Disabled bool   `yaml:"disabled,omitempty"`
}

// Blueprint is the whole stack.
type Blueprint struct {
	Name      string    `yaml:"name"`
	Backend   Backend   `yaml:"backend"`
	Frontend  Frontend  `yaml:"frontend"`
	Database  Database  `yaml:"database"`
	Bootstrap Bootstrap `yaml:"bootstrap"`
}

// Default returns the built-in layout. dbService is the platform's usual
// name for the MySQL service.
func Default(dbService string) Blueprint {
	return Blueprint{
		Name: "devup",
		Backend: Backend{
			Dir:          "backend",
			Port:         8080,
			Build:        []string{"-q", "-DskipTests", "package"},
			Run:          []string{"spring-boot:run"},
			ReadyTimeout: 90 * time.Second,
		},
		Frontend: Frontend{
			Dir:          "frontend",
			Port:         3000,
			Build:        []string{"run", "build"},
			Run:          []string{"run", "dev", "--", "--port", "{port}", "--strictPort"},
			ReadyTimeout: 60 * time.Second,
		},
		Database:  Database{Service: dbService},
		Bootstrap: Bootstrap{Script: "auto-setup"},
	}
}

// Write writes the blueprint as a YAML file.
func Write(path string, bp Blueprint) error {
	data, err := yaml.Marshal(&bp)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Read parses path over the defaults, so a file only has to name what it
// changes, and validates the result.
func Read(path string, defaults Blueprint) (Blueprint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Blueprint{}, err
	}

	bp := defaults
	if err := yaml.Unmarshal(data, &bp); err != nil {
		return Blueprint{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := bp.Validate(); err != nil {
		return Blueprint{}, fmt.Errorf("invalid configuration %s: %w", path, err)
	}
	return bp, nil
}

// Load reads path, or root/.devup.yaml when path is empty. A missing
// default file yields defaults; a missing explicit file is an error.
func Load(root, path string, defaults Blueprint) (Blueprint, error) {
	explicit := path != ""
	if !explicit {
		path = filepath.Join(root, FileName)
	}
	bp, err := Read(path, defaults)
	if errors.Is(err, os.ErrNotExist) && !explicit {
		return defaults, nil
	}
	return bp, err
}

// ApplyEnv layers the environment over the blueprint: AUTO_SETUP=0 turns
// the bootstrap off and DB_SERVICE_NAME names the database service.
func (bp *Blueprint) ApplyEnv(getenv func(string) string) {
	if strings.TrimSpace(getenv("AUTO_SETUP")) == "0" {
		bp.Bootstrap.Disabled = true
	}
	if name := strings.TrimSpace(getenv("DB_SERVICE_NAME")); name != "" {
		bp.Database.Service = name
	}
}

// Validate checks the fields the launcher cannot run without.
func (bp Blueprint) Validate() error {
	var errs []error
	check := func(role, dir string, port int, run []string, timeout time.Duration) {
		if strings.TrimSpace(dir) == "" {
			errs = append(errs, fmt.Errorf("%s.dir is empty", role))
		}
		if port < 1 || port > 65535 {
			errs = append(errs, fmt.Errorf("%s.port %d out of range", role, port))
		}
		if len(run) == 0 {
			errs = append(errs, fmt.Errorf("%s.run is empty", role))
		}
		if timeout <= 0 {
			errs = append(errs, fmt.Errorf("%s.ready_timeout must be positive", role))
		}
	}
	check("backend", bp.Backend.Dir, bp.Backend.Port, bp.Backend.Run, bp.Backend.ReadyTimeout)
	check("frontend", bp.Frontend.Dir, bp.Frontend.Port, bp.Frontend.Run, bp.Frontend.ReadyTimeout)
	if bp.Backend.Port == bp.Frontend.Port {
		errs = append(errs, fmt.Errorf("backend and frontend share port %d", bp.Backend.Port))
	}
	return errors.Join(errs...)
}

// RunArgs returns the backend run arguments with {port} filled in.
func (b Backend) RunArgs() []string {
	return substitute(b.Run, b.Port)
}

// RunArgs returns the dev server arguments with {port} filled in.
func (f Frontend) RunArgs() []string {
	return substitute(f.Run, f.Port)
}

// URL is where the dev server is opened in the browser.
func (f Frontend) URL() string {
	return "http://localhost:" + strconv.Itoa(f.Port)
}

func substitute(args []string, port int) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = strings.ReplaceAll(a, "{port}", strconv.Itoa(port))
	}
	return out
}

// DetectRoot returns the project root for a launcher started in dir. When
// dir is the backend directory itself and the frontend sits beside it, the
// parent is the root.
func DetectRoot(dir string, bp Blueprint) string {
	if isDir(filepath.Join(dir, bp.Frontend.Dir)) || isDir(filepath.Join(dir, bp.Backend.Dir)) {
		return dir
	}
	parent := filepath.Dir(dir)
	if filepath.Base(dir) == filepath.Base(bp.Backend.Dir) && isDir(filepath.Join(parent, bp.Frontend.Dir)) {
		return parent
	}
	return dir
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
