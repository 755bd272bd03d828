// Package platform hides the operating-system specific parts of running a
// local stack: the TCP table, killing process trees, opening a browser,
// where toolchains tend to be installed and how services are controlled.
// One implementation is selected per run by Current.
package platform

import (
	"context"
	"errors"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/harshul/devup/internal/command"
	gnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

// Socket is one row of the local TCP table.
type Socket struct {
	LocalAddr string
	Port      int
	State     string
	PID       int
}

// Listening reports whether the socket is in the listen state. gopsutil and
// lsof say LISTEN, netstat says LISTENING.
func (s Socket) Listening() bool {
	return strings.EqualFold(s.State, "LISTEN") || strings.EqualFold(s.State, "LISTENING")
}

// ServiceControl holds the commands that query and start a named service.
type ServiceControl struct {
	Query   command.Command
	Start   command.Command
	Running func(command.Result) bool
}

// Ops is the capability set the orchestrator needs from the host.
type Ops interface {
	Name() string
	Sockets(ctx context.Context) ([]Socket, error)
	KillTree(ctx context.Context, pid int) error
	ProcessesByName(ctx context.Context, name string) ([]int, error)
	OpenURL(url string) error
	WellKnownDirs(binary string) []string
	ExecutableNames(base string) []string
	Invocation(executable string, shim bool) []string
	BootstrapCommand(root, base string) (command.Command, bool)
	ServiceControl(name string) (ServiceControl, bool)
	DefaultServiceName() string
	ServerProcessNames() []string
}

// Current returns the Ops for the running operating system.
func Current(runner *command.Runner, log *zap.SugaredLogger) Ops {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return newOps(runner, log, os.Getenv)
}

// nativeSockets reads the TCP table through gopsutil.
func nativeSockets(ctx context.Context) ([]Socket, error) {
	conns, err := gnet.ConnectionsWithContext(ctx, "tcp")
	if err != nil {
		return nil, err
	}
	sockets := make([]Socket, 0, len(conns))
	for _, c := range conns {
		sockets = append(sockets, Socket{
			LocalAddr: net.JoinHostPort(c.Laddr.IP, strconv.Itoa(int(c.Laddr.Port))),
			Port:      int(c.Laddr.Port),
			State:     c.Status,
			PID:       int(c.Pid),
		})
	}
	return sockets, nil
}

// killTreeNative kills pid's descendants first, then pid. This process is
// never signalled, even when it is part of the tree.
func killTreeNative(ctx context.Context, pid int) error {
	if pid == os.Getpid() {
		return nil
	}
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		if errors.Is(err, process.ErrorProcessNotRunning) {
			return nil
		}
		return err
	}
	if children, err := p.ChildrenWithContext(ctx); err == nil {
		for _, child := range children {
			if int(child.Pid) == os.Getpid() {
				continue
			}
			_ = killTreeNative(ctx, int(child.Pid))
		}
	}
	if err := p.KillWithContext(ctx); err != nil {
		if running, runErr := p.IsRunningWithContext(ctx); runErr == nil && !running {
			return nil
		}
		return err
	}
	return nil
}

func processesByName(ctx context.Context, name string) ([]int, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	var pids []int
	for _, p := range procs {
		n, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		if sameProgram(n, name) {
			pids = append(pids, int(p.Pid))
		}
	}
	return pids, nil
}

// sameProgram compares process image names ignoring case and a .exe suffix.
func sameProgram(a, b string) bool {
	trim := func(s string) string {
		return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), ".exe")
	}
	return trim(a) != "" && trim(a) == trim(b)
}

func startDetached(args ...string) error {
	cmd := exec.Command(args[0], args[1:]...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go cmd.Wait()
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// expand resolves glob patterns and drops entries that do not exist.
func expand(patterns ...string) []string {
	var dirs []string
	seen := make(map[string]bool)
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		matches, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				dirs = append(dirs, m)
			}
		}
	}
	return dirs
}

// under joins elems onto root, or returns "" when root is unset so that an
// empty variable never turns into a relative search path.
func under(root string, elems ...string) string {
	if root == "" {
		return ""
	}
	return filepath.Join(append([]string{root}, elems...)...)
}
