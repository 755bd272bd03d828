//go:build windows

package platform

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/harshul/devup/internal/command"
	"go.uber.org/zap"
)

type windowsOps struct {
	runner *command.Runner
	log    *zap.SugaredLogger
	getenv func(string) string
}

func newOps(runner *command.Runner, log *zap.SugaredLogger, getenv func(string) string) Ops {
	return &windowsOps{runner: runner, log: log, getenv: getenv}
}

func (w *windowsOps) Name() string { return "windows" }

func (w *windowsOps) Sockets(ctx context.Context) ([]Socket, error) {
	sockets, err := nativeSockets(ctx)
	if err == nil {
		return sockets, nil
	}
	w.log.Debugw("native tcp table unavailable, falling back to netstat", "error", err)

	result, runErr := w.runner.Run(ctx, command.New("netstat", "-ano", "-p", "tcp"))
	if runErr != nil {
		return nil, runErr
	}
	if !result.OK() {
		return nil, fmt.Errorf("netstat exited %d", result.ExitCode)
	}
	return ParseNetstat(result.Output), nil
}

// KillTree uses taskkill because it walks the tree on the OS side, including
// console hosts spawned by cmd /c shims.
func (w *windowsOps) KillTree(ctx context.Context, pid int) error {
	result, err := w.runner.Run(ctx, command.New("taskkill", "/PID", strconv.Itoa(pid), "/F", "/T"))
	if err != nil {
		return err
	}
	if !result.OK() {
		return fmt.Errorf("taskkill exited %d: %s", result.ExitCode, strings.TrimSpace(result.Output))
	}
	return nil
}

func (w *windowsOps) ProcessesByName(ctx context.Context, name string) ([]int, error) {
	return processesByName(ctx, name)
}

func (w *windowsOps) OpenURL(url string) error {
	return startDetached("rundll32", "url.dll,FileProtocolHandler", url)
}

func (w *windowsOps) WellKnownDirs(binary string) []string {
	programFiles := []string{w.getenv("ProgramFiles"), w.getenv("ProgramFiles(x86)")}
	localAppData := w.getenv("LOCALAPPDATA")
	appData := w.getenv("APPDATA")

	var patterns []string
	switch binary {
	case "mvn":
		for _, root := range programFiles {
			patterns = append(patterns,
				under(root, "JetBrains", "IntelliJ IDEA*", "plugins", "maven", "lib", "maven3", "bin"),
				under(root, "apache-maven*", "bin"),
				under(root, "Apache", "maven*", "bin"),
			)
		}
		patterns = append(patterns,
			under(localAppData, "Programs", "IntelliJ IDEA*", "plugins", "maven", "lib", "maven3", "bin"),
			under(localAppData, "JetBrains", "Toolbox", "apps", "*", "*", "*", "plugins", "maven", "lib", "maven3", "bin"),
		)
	case "java":
		for _, root := range programFiles {
			patterns = append(patterns,
				under(root, "Java", "jdk*", "bin"),
				under(root, "Eclipse Adoptium", "jdk*", "bin"),
				under(root, "Microsoft", "jdk*", "bin"),
			)
		}
	case "mysql":
		for _, root := range programFiles {
			patterns = append(patterns, under(root, "MySQL", "MySQL Server*", "bin"))
		}
	case "node":
		patterns = append(patterns, under(localAppData, "Programs", "nodejs"))
		for _, root := range programFiles {
			patterns = append(patterns, under(root, "nodejs"))
		}
	case "npm", "npx", "pnpm", "yarn":
		patterns = append(patterns, under(appData, "npm"))
		for _, root := range programFiles {
			patterns = append(patterns, under(root, "nodejs"))
		}
		patterns = append(patterns, under(localAppData, "Programs", "nodejs"), under(localAppData, "pnpm"))
	case "bun":
		patterns = append(patterns, under(w.getenv("USERPROFILE"), ".bun", "bin"))
	}
	return expand(patterns...)
}

func (w *windowsOps) ExecutableNames(base string) []string {
	if filepath.Ext(base) != "" {
		return []string{base}
	}
	return []string{base + ".exe", base + ".cmd", base + ".bat"}
}

// Invocation routes batch scripts, and PATH shims that resolve to them,
// through cmd /c.
func (w *windowsOps) Invocation(executable string, shim bool) []string {
	ext := strings.ToLower(filepath.Ext(executable))
	if shim || ext == ".cmd" || ext == ".bat" {
		return []string{"cmd", "/c", executable}
	}
	return []string{executable}
}

func (w *windowsOps) BootstrapCommand(root, base string) (command.Command, bool) {
	bat := filepath.Join(root, base+".bat")
	if fileExists(bat) {
		return command.New("cmd", "/c", bat).In(root), true
	}
	ps1 := filepath.Join(root, base+".ps1")
	if fileExists(ps1) {
		return command.New("powershell", "-ExecutionPolicy", "Bypass", "-File", ps1).In(root), true
	}
	return command.Command{}, false
}

func (w *windowsOps) ServiceControl(name string) (ServiceControl, bool) {
	return ServiceControl{
		Query: command.New("sc", "query", name),
		Start: command.New("net", "start", name),
		Running: func(r command.Result) bool {
			return r.OK() && strings.Contains(r.Output, "RUNNING")
		},
	}, true
}

func (w *windowsOps) DefaultServiceName() string { return "MySQL80" }

func (w *windowsOps) ServerProcessNames() []string { return []string{"java", "node"} }
