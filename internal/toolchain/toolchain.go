// Package toolchain finds the executables the stack needs. Each tool has an
// ordered chain of strategies, from the most authoritative (already on PATH)
// to best-effort directory heuristics; the first strategy that succeeds wins.
package toolchain

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/harshul/devup/internal/command"
	"go.uber.org/zap"
)

// Kind tags what a resolved executable is used for.
type Kind string

const (
	BuildTool      Kind = "build tool"
	Runtime        Kind = "runtime"
	PackageManager Kind = "package manager"
	JDK            Kind = "jdk"
	Database       Kind = "database client"
)

// Path is a resolved executable. Prefix is what goes in front of the
// tool's own arguments: a bare name, an absolute path, a cmd /c wrapper or
// an interpreter plus script. Location is the file on disk when known.
type Path struct {
	Kind     Kind
	Name     string
	Prefix   []string
	Location string
	Source   string
}

// Command builds an invocation of the tool with args.
func (p Path) Command(args ...string) command.Command {
	return command.New(p.Prefix...).With(args...)
}

func (p Path) String() string {
	return strings.Join(p.Prefix, " ")
}

// Prober runs version probes.
type Prober interface {
	Run(ctx context.Context, c command.Command) (command.Result, error)
}

// Host supplies the operating-system specific search data.
type Host interface {
	WellKnownDirs(binary string) []string
	ExecutableNames(base string) []string
	Invocation(executable string, shim bool) []string
}

// Spec describes one tool and the strategies that can find it.
type Spec struct {
	Kind  Kind
	Name  string
	Chain []Strategy
}

// Strategy is one way of finding a tool.
type Strategy interface {
	Name() string
	resolve(ctx context.Context, l *Locator, spec Spec) (Path, bool)
}

// OnPath accepts the bare command name when a version probe exits 0.
type OnPath struct {
	VersionArgs []string
}

func (OnPath) Name() string { return "on-path" }

func (s OnPath) resolve(ctx context.Context, l *Locator, spec Spec) (Path, bool) {
	prefix := l.host.Invocation(spec.Name, true)
	result, err := l.runner.Run(ctx, command.New(prefix...).With(s.VersionArgs...))
	if err != nil {
		l.log.Debugw("probe failed", "tool", spec.Name, "error", err)
		return Path{}, false
	}
	if !result.OK() {
		l.log.Debugw("probe exited non-zero", "tool", spec.Name, "exit", result.ExitCode)
		return Path{}, false
	}
	location, _ := l.lookPath(spec.Name)
	return Path{Prefix: prefix, Location: location}, true
}

// EnvHome looks under the first non-empty variable of Vars, at
// <home>/bin/<name> and then <home>/<name>.
type EnvHome struct {
	Vars []string
}

func (EnvHome) Name() string { return "env-home" }

func (s EnvHome) resolve(_ context.Context, l *Locator, spec Spec) (Path, bool) {
	var home string
	for _, v := range s.Vars {
		if value := strings.TrimSpace(l.getenv(v)); value != "" {
			home = value
			break
		}
	}
	if home == "" {
		return Path{}, false
	}
	return l.findIn(spec.Name, filepath.Join(home, "bin"), home)
}

// WellKnownDir scans the platform's usual install directories.
type WellKnownDir struct{}

func (WellKnownDir) Name() string { return "well-known-dir" }

func (WellKnownDir) resolve(_ context.Context, l *Locator, spec Spec) (Path, bool) {
	return l.findIn(spec.Name, l.host.WellKnownDirs(spec.Name)...)
}

// DerivedFromSibling looks next to another tool's executable, and failing
// that runs Script (relative to that directory) through the sibling.
type DerivedFromSibling struct {
	Sibling Spec
	Script  string
}

func (DerivedFromSibling) Name() string { return "derived-from-sibling" }

func (s DerivedFromSibling) resolve(ctx context.Context, l *Locator, spec Spec) (Path, bool) {
	sibling, ok := l.Resolve(ctx, s.Sibling)
	if !ok || sibling.Location == "" {
		return Path{}, false
	}
	dir := filepath.Dir(sibling.Location)
	if p, ok := l.findIn(spec.Name, dir); ok {
		return p, true
	}
	if s.Script == "" {
		return Path{}, false
	}
	script := filepath.Join(dir, filepath.FromSlash(s.Script))
	if !l.exists(script) {
		return Path{}, false
	}
	return Path{Prefix: []string{sibling.Location, script}, Location: script}, true
}

type resolution struct {
	path Path
	ok   bool
}

// Locator resolves tools once per run and remembers the answers, found or
// not.
type Locator struct {
	runner   Prober
	host     Host
	log      *zap.SugaredLogger
	getenv   func(string) string
	lookPath func(string) (string, error)
	exists   func(string) bool

	mu       sync.Mutex
	resolved map[string]resolution
}

// NewLocator returns a Locator that probes with runner and searches the
// directories host names.
func NewLocator(runner Prober, host Host, log *zap.SugaredLogger) *Locator {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Locator{
		runner:   runner,
		host:     host,
		log:      log,
		getenv:   os.Getenv,
		lookPath: exec.LookPath,
		exists:   isFile,
		resolved: make(map[string]resolution),
	}
}

// Resolve walks spec's chain. A false result means every strategy failed;
// it is not an error.
func (l *Locator) Resolve(ctx context.Context, spec Spec) (Path, bool) {
	l.mu.Lock()
	if r, ok := l.resolved[spec.Name]; ok {
		l.mu.Unlock()
		return r.path, r.ok
	}
	l.mu.Unlock()

	var res resolution
	for _, strategy := range spec.Chain {
		if p, ok := strategy.resolve(ctx, l, spec); ok {
			p.Kind = spec.Kind
			p.Name = spec.Name
			p.Source = strategy.Name()
			res = resolution{path: p, ok: true}
			l.log.Debugw("resolved", "tool", spec.Name, "via", p.Source, "command", p.String())
			break
		}
	}
	if !res.ok {
		l.log.Debugw("not found", "tool", spec.Name)
	}

	l.mu.Lock()
	l.resolved[spec.Name] = res
	l.mu.Unlock()
	return res.path, res.ok
}

// Reset forgets earlier answers, for use after something was installed.
func (l *Locator) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resolved = make(map[string]resolution)
}

func (l *Locator) findIn(name string, dirs ...string) (Path, bool) {
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		for _, exe := range l.host.ExecutableNames(name) {
			candidate := filepath.Join(dir, exe)
			if l.exists(candidate) {
				return Path{Prefix: l.host.Invocation(candidate, false), Location: candidate}, true
			}
		}
	}
	return Path{}, false
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
