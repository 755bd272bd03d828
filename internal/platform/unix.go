//go:build !windows

package platform

import (
	"context"
	"path/filepath"
	"runtime"

	"github.com/harshul/devup/internal/command"
	"go.uber.org/zap"
)

type unixOps struct {
	goos   string
	runner *command.Runner
	log    *zap.SugaredLogger
	getenv func(string) string
}

func newOps(runner *command.Runner, log *zap.SugaredLogger, getenv func(string) string) Ops {
	return &unixOps{goos: runtime.GOOS, runner: runner, log: log, getenv: getenv}
}

func (u *unixOps) Name() string { return u.goos }

func (u *unixOps) Sockets(ctx context.Context) ([]Socket, error) {
	sockets, err := nativeSockets(ctx)
	if err == nil {
		return sockets, nil
	}
	u.log.Debugw("native tcp table unavailable, falling back to lsof", "error", err)

	result, runErr := u.runner.Run(ctx, command.New("lsof", "-nP", "-iTCP", "-FpnT"))
	if runErr != nil {
		return nil, runErr
	}
	// lsof exits 1 when nothing matched.
	return ParseLsof(result.Output), nil
}

func (u *unixOps) KillTree(ctx context.Context, pid int) error {
	return killTreeNative(ctx, pid)
}

func (u *unixOps) ProcessesByName(ctx context.Context, name string) ([]int, error) {
	return processesByName(ctx, name)
}

func (u *unixOps) OpenURL(url string) error {
	if u.goos == "darwin" {
		return startDetached("open", url)
	}
	return startDetached("xdg-open", url)
}

func (u *unixOps) WellKnownDirs(binary string) []string {
	home := u.getenv("HOME")
	patterns := []string{"/usr/local/bin", "/opt/homebrew/bin", "/usr/bin", under(home, ".local", "bin")}

	switch binary {
	case "mvn":
		patterns = append(patterns,
			"/opt/maven/bin",
			"/usr/share/maven/bin",
			"/opt/apache-maven*/bin",
			under(home, ".sdkman", "candidates", "maven", "current", "bin"),
		)
		if u.goos == "darwin" {
			patterns = append(patterns,
				"/opt/homebrew/opt/maven/bin",
				"/Applications/IntelliJ IDEA*.app/Contents/plugins/maven/lib/maven3/bin",
				under(home, "Applications", "IntelliJ IDEA*.app", "Contents", "plugins", "maven", "lib", "maven3", "bin"),
			)
		} else {
			patterns = append(patterns,
				"/opt/idea*/plugins/maven/lib/maven3/bin",
				"/snap/intellij-idea-*/current/plugins/maven/lib/maven3/bin",
				under(home, ".local", "share", "JetBrains", "Toolbox", "apps", "*", "plugins", "maven", "lib", "maven3", "bin"),
				under(home, ".local", "share", "JetBrains", "Toolbox", "apps", "*", "*", "*", "plugins", "maven", "lib", "maven3", "bin"),
			)
		}
	case "java":
		patterns = append(patterns,
			"/usr/lib/jvm/*/bin",
			"/Library/Java/JavaVirtualMachines/*/Contents/Home/bin",
			under(home, ".sdkman", "candidates", "java", "current", "bin"),
		)
	case "mysql":
		patterns = append(patterns, "/usr/local/mysql/bin", "/opt/homebrew/opt/mysql/bin", "/opt/homebrew/opt/mysql-client/bin")
	case "node", "npm", "npx", "pnpm", "yarn", "bun":
		patterns = append(patterns,
			"/opt/homebrew/opt/node/bin",
			under(home, ".volta", "bin"),
			under(home, ".bun", "bin"),
			under(home, ".local", "share", "pnpm"),
		)
	}
	return expand(patterns...)
}

func (u *unixOps) ExecutableNames(base string) []string {
	return []string{base}
}

func (u *unixOps) Invocation(executable string, shim bool) []string {
	return []string{executable}
}

func (u *unixOps) BootstrapCommand(root, base string) (command.Command, bool) {
	script := filepath.Join(root, base+".sh")
	if !fileExists(script) {
		return command.Command{}, false
	}
	return command.New("sh", script).In(root), true
}

func (u *unixOps) ServiceControl(name string) (ServiceControl, bool) {
	if u.goos != "linux" {
		return ServiceControl{}, false
	}
	return ServiceControl{
		Query:   command.New("systemctl", "is-active", "--quiet", name),
		Start:   command.New("systemctl", "start", name),
		Running: func(r command.Result) bool { return r.OK() },
	}, true
}

func (u *unixOps) DefaultServiceName() string { return "mysql" }

func (u *unixOps) ServerProcessNames() []string { return []string{"java", "node"} }
