// Package supervisor owns the long-running children of a run: it starts
// them with their output streamed to the console, watches whether they are
// alive and stops them, gracefully first.
package supervisor

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/harshul/devup/internal/command"
	"github.com/harshul/devup/internal/ui"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

// Starter launches a child without waiting for it.
type Starter interface {
	Start(c command.Command, out io.Writer) (*command.Process, error)
}

// Managed is one child tracked for the length of a run. It is either a
// process this run started or an already-running one that was adopted.
type Managed struct {
	Role        string
	StartedByUs bool

	pid    int
	proc   *command.Process
	output *ui.PrefixWriter
	done   chan struct{}
	cancel context.CancelFunc
	once   sync.Once
}

// PID returns the operating-system process id.
func (m *Managed) PID() int {
	return m.pid
}

// Done is closed when the process has terminated.
func (m *Managed) Done() <-chan struct{} {
	if m.proc != nil {
		return m.proc.Done()
	}
	return m.done
}

// Alive reports whether the process is still running.
func (m *Managed) Alive() bool {
	select {
	case <-m.Done():
		return false
	default:
		return true
	}
}

// Supervisor launches and stops managed processes.
type Supervisor struct {
	runner Starter
	log    *zap.SugaredLogger

	grace        time.Duration
	pollInterval time.Duration
	exists       func(ctx context.Context, pid int) bool
	output       func(role string) *ui.PrefixWriter
}

// New returns a Supervisor with a one second stop grace period.
func New(runner Starter, log *zap.SugaredLogger) *Supervisor {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Supervisor{
		runner:       runner,
		log:          log,
		grace:        time.Second,
		pollInterval: time.Second,
		exists:       pidExists,
		output:       ui.NewPrefixWriter,
	}
}

// Launch starts c in dir for role. An error means the OS would not spawn
// the process; nothing is left running in that case.
func (s *Supervisor) Launch(role, dir string, c command.Command) (*Managed, error) {
	out := s.output(role)
	proc, err := s.runner.Start(c.In(dir), out)
	if err != nil {
		return nil, err
	}
	s.log.Debugw("launched", "role", role, "pid", proc.PID(), "command", c.String())
	return &Managed{Role: role, StartedByUs: true, pid: proc.PID(), proc: proc, output: out}, nil
}

// Adopt tracks an instance of role that was already running before this
// run. Its liveness is polled; Stop leaves it running.
func (s *Supervisor) Adopt(ctx context.Context, role string, pid int) *Managed {
	ctx, cancel := context.WithCancel(ctx)
	m := &Managed{Role: role, pid: pid, done: make(chan struct{}), cancel: cancel}

	go func() {
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !s.exists(ctx, pid) {
					s.log.Debugw("adopted process gone", "role", role, "pid", pid)
					close(m.done)
					return
				}
			}
		}
	}()
	return m
}

// Stop asks the process to exit, waits up to the grace period and then
// kills it. It is safe to call on nil, on an adopted process and more than
// once.
func (s *Supervisor) Stop(m *Managed) {
	if m == nil {
		return
	}
	m.once.Do(func() {
		if !m.StartedByUs {
			if m.cancel != nil {
				m.cancel()
			}
			return
		}
		defer m.proc.Close()
		defer m.output.Flush()

		if m.proc.Exited() {
			return
		}
		if err := m.proc.Terminate(); err != nil {
			s.log.Debugw("terminate failed", "role", m.Role, "pid", m.pid, "error", err)
		}
		if m.proc.Wait(s.grace) {
			return
		}
		s.log.Debugw("grace period over, killing", "role", m.Role, "pid", m.pid)
		if err := m.proc.Kill(); err != nil {
			s.log.Warnw("kill failed", "role", m.Role, "pid", m.pid, "error", err)
		}
		if !m.proc.Wait(s.grace) {
			s.log.Warnw("process did not exit after kill", "role", m.Role, "pid", m.pid)
		}
	})
}

func pidExists(ctx context.Context, pid int) bool {
	ok, err := process.PidExistsWithContext(ctx, int32(pid))
	return err == nil && ok
}
