// Package ports inspects and reclaims the local TCP ports the stack runs
// on. Nothing is cached: every answer comes from a fresh probe or a fresh
// read of the TCP table.
package ports

import (
	"context"
	"net"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/harshul/devup/internal/platform"
	"github.com/harshul/devup/internal/ui"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

// Host is what the Manager needs from the operating system.
type Host interface {
	Sockets(ctx context.Context) ([]platform.Socket, error)
	KillTree(ctx context.Context, pid int) error
	ProcessesByName(ctx context.Context, name string) ([]int, error)
}

// Binding is a port, the role using it and the processes seen owning it.
type Binding struct {
	Port   int
	Role   string
	Owners []int
}

// Manager checks, waits for and frees ports.
type Manager struct {
	host      Host
	log       *zap.SugaredLogger
	self      int
	ancestors func(ctx context.Context) []int

	attempts     int
	pause        time.Duration
	pollInterval time.Duration
	dialTimeout  time.Duration
}

// NewManager returns a Manager with the default reclaim policy: three
// attempts half a second apart, readiness polled every 250ms.
func NewManager(host Host, log *zap.SugaredLogger) *Manager {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Manager{
		host:         host,
		log:          log,
		self:         os.Getpid(),
		ancestors:    ancestors,
		attempts:     3,
		pause:        500 * time.Millisecond,
		pollInterval: 250 * time.Millisecond,
		dialTimeout:  500 * time.Millisecond,
	}
}

// IsAvailable reports whether port can be bound right now, on all
// interfaces and on loopback. Both probes are released immediately.
func (m *Manager) IsAvailable(port int) bool {
	for _, host := range []string{"", "127.0.0.1"} {
		ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
		if err != nil {
			return false
		}
		ln.Close()
	}
	return true
}

// FindOwningProcesses returns the sorted, de-duplicated PIDs holding a TCP
// socket on port, optionally only those in the listen state. Sockets whose
// owner the OS would not reveal are skipped.
func (m *Manager) FindOwningProcesses(ctx context.Context, port int, requireListening bool) ([]int, error) {
	sockets, err := m.host.Sockets(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[int]bool)
	var pids []int
	for _, s := range sockets {
		if s.Port != port || s.PID <= 0 {
			continue
		}
		if requireListening && !s.Listening() {
			continue
		}
		if !seen[s.PID] {
			seen[s.PID] = true
			pids = append(pids, s.PID)
		}
	}
	sort.Ints(pids)
	return pids, nil
}

// Inspect snapshots the listeners on port.
func (m *Manager) Inspect(ctx context.Context, port int, role string) (Binding, error) {
	owners, err := m.FindOwningProcesses(ctx, port, true)
	return Binding{Port: port, Role: role, Owners: owners}, err
}

// ForceFree kills whatever listens on port, never this process or one of
// its ancestors, since killing an ancestor's tree takes this process down
// with it. It reports
// true once the port can be bound or no foreign listener remains, and false
// if the port is still held after every attempt. A kill that fails is
// logged and the remaining owners are still tried.
func (m *Manager) ForceFree(ctx context.Context, port int, label string) bool {
	if m.IsAvailable(port) {
		ui.Info("No running " + label + " process on port " + strconv.Itoa(port) + ".")
		return true
	}

	for attempt := 1; attempt <= m.attempts; attempt++ {
		owners, err := m.FindOwningProcesses(ctx, port, true)
		if err != nil {
			m.log.Warnw("cannot read tcp table", "port", port, "attempt", attempt, "error", err)
		}
		owners = m.withoutSelf(owners)
		owners = m.withoutAncestors(ctx, owners)
		if err == nil && len(owners) == 0 {
			if !m.IsAvailable(port) {
				m.log.Debugw("port busy without a foreign listener", "port", port)
			}
			ui.Info(label + " port " + strconv.Itoa(port) + " has no other owner.")
			return true
		}

		for _, pid := range owners {
			ui.Info("Stopping " + label + " process on port " + strconv.Itoa(port) + ": PID " + strconv.Itoa(pid))
			if err := m.host.KillTree(ctx, pid); err != nil {
				m.log.Warnw("kill failed", "pid", pid, "port", port, "error", err)
				ui.Warn("Failed to stop PID " + strconv.Itoa(pid) + ". Try again with administrator privileges.")
			}
		}

		if !sleep(ctx, m.pause) {
			return false
		}
		if m.IsAvailable(port) {
			ui.Success(label + " port " + strconv.Itoa(port) + " is free.")
			return true
		}
	}
	return false
}

// StopByName kills every process whose image name matches one of names,
// except this one, and returns how many were killed.
func (m *Manager) StopByName(ctx context.Context, names ...string) int {
	killed := 0
	for _, name := range names {
		pids, err := m.host.ProcessesByName(ctx, name)
		if err != nil {
			m.log.Warnw("process scan failed", "name", name, "error", err)
			continue
		}
		pids = m.withoutAncestors(ctx, m.withoutSelf(pids))
		if len(pids) == 0 {
			ui.Info("No running " + name + " processes found.")
			continue
		}
		for _, pid := range pids {
			if err := m.host.KillTree(ctx, pid); err != nil {
				m.log.Warnw("kill failed", "name", name, "pid", pid, "error", err)
				ui.Warn("Failed to stop " + name + " PID " + strconv.Itoa(pid) + ".")
				continue
			}
			killed++
			ui.Info("Stopped " + name + " PID " + strconv.Itoa(pid) + ".")
		}
	}
	return killed
}

// WaitUntilOpen polls loopback (IPv4, then IPv6) until port accepts a
// connection, timeout elapses or ctx is done. Every dial is capped at the
// time left, so it does not run past the deadline.
func (m *Manager) WaitUntilOpen(ctx context.Context, port int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		if m.isOpenLocal(port, deadline) {
			return true
		}
		if !sleep(ctx, min(m.pollInterval, time.Until(deadline))) {
			return false
		}
	}
}

func (m *Manager) isOpenLocal(port int, deadline time.Time) bool {
	for _, host := range []string{"127.0.0.1", "::1"} {
		budget := min(m.dialTimeout, time.Until(deadline))
		if budget <= 0 {
			return false
		}
		conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, strconv.Itoa(port)), budget)
		if err == nil {
			conn.Close()
			return true
		}
	}
	return false
}

func (m *Manager) withoutSelf(pids []int) []int {
	out := pids[:0:0]
	for _, pid := range pids {
		if pid != m.self {
			out = append(out, pid)
		}
	}
	return out
}

func (m *Manager) withoutAncestors(ctx context.Context, pids []int) []int {
	if len(pids) == 0 {
		return pids
	}
	protected := make(map[int]bool)
	for _, pid := range m.ancestors(ctx) {
		protected[pid] = true
	}
	out := pids[:0:0]
	for _, pid := range pids {
		if protected[pid] {
			m.log.Debugw("skipping ancestor", "pid", pid)
			continue
		}
		out = append(out, pid)
	}
	return out
}

// ancestors walks the parent chain of this process up to the root.
func ancestors(ctx context.Context) []int {
	var chain []int
	seen := make(map[int]bool)
	pid := os.Getppid()
	for pid > 0 && !seen[pid] {
		seen[pid] = true
		chain = append(chain, pid)
		p, err := process.NewProcessWithContext(ctx, int32(pid))
		if err != nil {
			break
		}
		ppid, err := p.PpidWithContext(ctx)
		if err != nil {
			break
		}
		pid = int(ppid)
	}
	return chain
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
