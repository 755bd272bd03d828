package supervisor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/harshul/devup/internal/command"
	"github.com/harshul/devup/internal/ui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func helperCommand(t *testing.T, mode string) command.Command {
	t.Helper()
	t.Setenv("DEVUP_HELPER_PROCESS", "1")
	return command.New(os.Args[0], "-test.run=TestHelperProcess", "--", mode)
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("DEVUP_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) < 2 {
		os.Exit(2)
	}
	switch args[1] {
	case "sleep":
		fmt.Println("child ready")
		time.Sleep(time.Minute)
	case "stubborn":
		signal.Ignore(syscall.SIGTERM)
		fmt.Println("ignoring SIGTERM")
		time.Sleep(time.Minute)
	case "quick":
		fmt.Println("done")
	}
	os.Exit(0)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestSupervisor(t *testing.T) (*Supervisor, *syncBuffer) {
	t.Helper()
	out := &syncBuffer{}
	prev := ui.SetOutput(out)
	t.Cleanup(func() { ui.SetOutput(prev) })

	s := New(command.NewRunner(nil), nil)
	s.grace = 300 * time.Millisecond
	s.pollInterval = 20 * time.Millisecond
	return s, out
}

func TestLaunchStreamsPrefixedOutput(t *testing.T) {
	s, out := newTestSupervisor(t)

	m, err := s.Launch("backend", t.TempDir(), helperCommand(t, "sleep"))
	require.NoError(t, err)
	defer s.Stop(m)

	assert.True(t, m.StartedByUs)
	assert.Positive(t, m.PID())
	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "[backend]") && strings.Contains(out.String(), "child ready")
	}, 5*time.Second, 20*time.Millisecond)
	assert.True(t, m.Alive())
}

func TestLaunchMissingExecutable(t *testing.T) {
	s, _ := newTestSupervisor(t)

	m, err := s.Launch("frontend", "", command.New("devup-no-such-binary"))
	assert.Nil(t, m)
	assert.ErrorIs(t, err, command.ErrExecution)
}

func TestStopGraceful(t *testing.T) {
	s, _ := newTestSupervisor(t)
	m, err := s.Launch("backend", "", helperCommand(t, "sleep"))
	require.NoError(t, err)

	start := time.Now()
	s.Stop(m)
	assert.False(t, m.Alive())
	assert.Less(t, time.Since(start), 2*s.grace+time.Second)
}

func TestStopEscalatesAfterGrace(t *testing.T) {
	s, out := newTestSupervisor(t)
	m, err := s.Launch("backend", "", helperCommand(t, "stubborn"))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "ignoring SIGTERM")
	}, 5*time.Second, 20*time.Millisecond)

	start := time.Now()
	s.Stop(m)
	assert.False(t, m.Alive())
	assert.Less(t, time.Since(start), 2*s.grace+time.Second)
}

func TestStopIsIdempotent(t *testing.T) {
	s, _ := newTestSupervisor(t)
	m, err := s.Launch("frontend", "", helperCommand(t, "sleep"))
	require.NoError(t, err)

	s.Stop(m)
	s.Stop(m)
	s.Stop(nil)
	assert.False(t, m.Alive())
}

func TestStopAfterExit(t *testing.T) {
	s, _ := newTestSupervisor(t)
	m, err := s.Launch("frontend", "", helperCommand(t, "quick"))
	require.NoError(t, err)

	select {
	case <-m.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("child did not exit")
	}
	s.Stop(m)
	assert.False(t, m.Alive())
}

func TestAdoptPollsLiveness(t *testing.T) {
	s, _ := newTestSupervisor(t)
	var alive atomic.Bool
	alive.Store(true)
	s.exists = func(context.Context, int) bool { return alive.Load() }

	m := s.Adopt(context.Background(), "frontend", 4242)
	assert.False(t, m.StartedByUs)
	assert.Equal(t, 4242, m.PID())

	time.Sleep(60 * time.Millisecond)
	assert.True(t, m.Alive())

	alive.Store(false)
	select {
	case <-m.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("adopted process exit not observed")
	}
}

func TestStopLeavesAdoptedRunning(t *testing.T) {
	s, _ := newTestSupervisor(t)
	var checks atomic.Int32
	s.exists = func(context.Context, int) bool {
		checks.Add(1)
		return true
	}

	m := s.Adopt(context.Background(), "backend", 4242)
	s.Stop(m)
	s.Stop(m)

	seen := checks.Load()
	time.Sleep(100 * time.Millisecond)
	assert.LessOrEqual(t, checks.Load(), seen+1, "polling continues after stop")
	assert.True(t, m.Alive())
}
