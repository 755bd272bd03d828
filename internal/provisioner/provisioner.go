// Package provisioner inspects a frontend directory: which package manager
// its lock files call for, and what its package.json declares.
package provisioner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
)

// PackageManager represents a detected package manager
type PackageManager string

const (
	NPM  PackageManager = "npm"
	PNPM PackageManager = "pnpm"
	Yarn PackageManager = "yarn"
	Bun  PackageManager = "bun"
)

// Info describes the package manager a frontend directory expects.
type Info struct {
	Manager     PackageManager
	LockFile    string
	IsMonorepo  bool
	InstallArgs []string
}

// Detect checks for lock files in dir. Priority: pnpm > bun > yarn > npm.
func Detect(dir string) Info {
	manifest, _ := ReadManifest(dir)

	switch {
	case exists(dir, "pnpm-lock.yaml"):
		mono := exists(dir, "pnpm-workspace.yaml") || manifest.usesWorkspaceProtocol()
		return pnpmInfo(mono)
	case exists(dir, "pnpm-workspace.yaml"), manifest.usesWorkspaceProtocol():
		// pnpm monorepo without a lock file yet
		return pnpmInfo(true)
	case exists(dir, "bun.lockb"):
		return Info{Manager: Bun, LockFile: "bun.lockb", IsMonorepo: manifest.hasWorkspaces(), InstallArgs: []string{"install"}}
	case exists(dir, "bun.lock"):
		return Info{Manager: Bun, LockFile: "bun.lock", IsMonorepo: manifest.hasWorkspaces(), InstallArgs: []string{"install"}}
	case exists(dir, "yarn.lock"):
		return Info{Manager: Yarn, LockFile: "yarn.lock", IsMonorepo: manifest.hasWorkspaces(), InstallArgs: []string{"install"}}
	}
	return Info{Manager: NPM, LockFile: "package-lock.json", IsMonorepo: manifest.hasWorkspaces(), InstallArgs: []string{"install"}}
}

func pnpmInfo(monorepo bool) Info {
	info := Info{Manager: PNPM, LockFile: "pnpm-lock.yaml", IsMonorepo: monorepo, InstallArgs: []string{"install"}}
	if monorepo {
		info.InstallArgs = []string{"install", "-r"}
	}
	return info
}

// InstallHint tells the user how to get a missing package manager.
func InstallHint(manager PackageManager) string {
	switch manager {
	case PNPM:
		return "Please run 'corepack enable pnpm' to continue."
	case Yarn:
		return "Please run 'corepack enable yarn' to continue."
	case Bun:
		return "Please install bun from https://bun.sh or run 'curl -fsSL https://bun.sh/install | bash'"
	case NPM:
		return "Please install Node.js from https://nodejs.org"
	default:
		return ""
	}
}

// Manifest is the subset of package.json the launcher cares about.
type Manifest struct {
	Name            string            `json:"name"`
	Scripts         map[string]string `json:"scripts"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
	Workspaces      json.RawMessage   `json:"workspaces"`
}

// ReadManifest parses dir/package.json. Comments and trailing commas are
// tolerated. A missing file yields an empty manifest and the os error.
func ReadManifest(dir string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(jsonc.ToJSON(data), &m); err != nil {
		return Manifest{}, fmt.Errorf("parse package.json: %w", err)
	}
	return m, nil
}

// HasScript reports whether the manifest declares a non-empty script.
func (m Manifest) HasScript(name string) bool {
	return strings.TrimSpace(m.Scripts[name]) != ""
}

func (m Manifest) hasWorkspaces() bool {
	w := strings.TrimSpace(string(m.Workspaces))
	return w != "" && w != "null"
}

// workspace: is a pnpm-only protocol.
func (m Manifest) usesWorkspaceProtocol() bool {
	for _, deps := range []map[string]string{m.Dependencies, m.DevDependencies} {
		for _, version := range deps {
			if strings.HasPrefix(version, "workspace:") {
				return true
			}
		}
	}
	return false
}

func exists(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}
