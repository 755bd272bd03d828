// Package command runs external programs, either to completion with their
// combined output captured, or as long-lived children whose output is
// streamed for as long as they live.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrExecution marks a command that could not be run at all (missing
// executable, bad working directory, I/O failure, interruption). A command
// that runs and exits non-zero is not an ErrExecution.
var ErrExecution = errors.New("command execution failed")

// Command is an immutable program invocation. Args[0] is the program.
type Command struct {
	Args []string
	Dir  string
}

// New builds a Command from a program and its arguments.
func New(args ...string) Command {
	return Command{Args: append([]string(nil), args...)}
}

// In returns a copy of c that runs in dir.
func (c Command) In(dir string) Command {
	return Command{Args: append([]string(nil), c.Args...), Dir: dir}
}

// With returns a copy of c with extra arguments appended.
func (c Command) With(args ...string) Command {
	out := make([]string, 0, len(c.Args)+len(args))
	out = append(out, c.Args...)
	out = append(out, args...)
	return Command{Args: out, Dir: c.Dir}
}

func (c Command) String() string {
	return strings.Join(c.Args, " ")
}

func (c Command) validate() error {
	if len(c.Args) == 0 || c.Args[0] == "" {
		return errors.New("empty command")
	}
	if c.Dir != "" {
		info, err := os.Stat(c.Dir)
		if err != nil {
			return fmt.Errorf("working directory: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("working directory %s is not a directory", c.Dir)
		}
	}
	return nil
}

// Result is the outcome of a completed run.
type Result struct {
	ExitCode int
	Output   string
}

// OK reports a zero exit code.
func (r Result) OK() bool {
	return r.ExitCode == 0
}

// ExecError describes why a command could not be run.
type ExecError struct {
	Command Command
	Err     error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("run %q: %v", e.Command.String(), e.Err)
}

// Unwrap exposes both ErrExecution and the underlying cause, so callers can
// test for exec.ErrNotFound as well.
func (e *ExecError) Unwrap() []error {
	return []error{ErrExecution, e.Err}
}

// Runner executes commands. The zero value is not usable; call NewRunner.
type Runner struct {
	log *zap.SugaredLogger

	// waitDelay bounds how long Run keeps reading output after the child
	// exited or was cancelled, when a descendant still holds the pipe.
	waitDelay time.Duration
}

// NewRunner returns a Runner that reports diagnostics to log.
func NewRunner(log *zap.SugaredLogger) *Runner {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Runner{log: log, waitDelay: 2 * time.Second}
}

// Run executes c synchronously with stderr merged into stdout and returns
// its exit code and output. A non-zero exit is reported in the Result, not
// as an error. The child runs in its own process group; cancelling ctx
// kills the whole group, and a descendant left holding the output pipe
// delays the return by at most the wait delay.
func (r *Runner) Run(ctx context.Context, c Command) (Result, error) {
	if err := c.validate(); err != nil {
		return Result{ExitCode: -1}, &ExecError{Command: c, Err: err}
	}

	cmd := exec.CommandContext(ctx, c.Args[0], c.Args[1:]...)
	cmd.Dir = c.Dir
	cmd.SysProcAttr = sysProcAttr()
	cmd.Cancel = func() error { return kill(cmd.Process) }
	cmd.WaitDelay = r.waitDelay

	// Same writer for both streams: exec serialises the writes. The lock
	// covers a copy still draining after the wait delay gave up on it.
	output := &outputBuffer{}
	cmd.Stdout = output
	cmd.Stderr = output

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{ExitCode: -1, Output: output.String()}, &ExecError{Command: c, Err: ctxErr}
	}

	if errors.Is(err, exec.ErrWaitDelay) {
		// The child exited cleanly; only a descendant kept the pipe open.
		r.log.Debugw("output pipe held after exit", "command", c.String())
		err = nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return Result{ExitCode: exitErr.ExitCode(), Output: output.String()}, nil
	}
	if err != nil {
		r.log.Debugw("command did not run", "command", c.String(), "error", err)
		return Result{ExitCode: -1, Output: output.String()}, &ExecError{Command: c, Err: err}
	}

	return Result{ExitCode: 0, Output: output.String()}, nil
}

type outputBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *outputBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *outputBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
