package command

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// Process is a live child started by Runner.Start.
type Process struct {
	cmd     *exec.Cmd
	output  *os.File
	done    chan struct{}
	waitErr error
	once    sync.Once
}

// Start launches c without waiting for it. The child's stdout and stderr
// share one pipe that a background goroutine copies into out until the pipe
// closes. Drain errors are logged and never returned.
func (r *Runner) Start(c Command, out io.Writer) (*Process, error) {
	if err := c.validate(); err != nil {
		return nil, &ExecError{Command: c, Err: err}
	}
	if out == nil {
		out = io.Discard
	}

	reader, writer, err := os.Pipe()
	if err != nil {
		return nil, &ExecError{Command: c, Err: err}
	}

	cmd := exec.Command(c.Args[0], c.Args[1:]...)
	cmd.Dir = c.Dir
	cmd.Stdout = writer
	cmd.Stderr = writer
	cmd.SysProcAttr = sysProcAttr()

	if err := cmd.Start(); err != nil {
		reader.Close()
		writer.Close()
		return nil, &ExecError{Command: c, Err: err}
	}
	// The child holds its own copy of the write end.
	writer.Close()

	p := &Process{
		cmd:    cmd,
		output: reader,
		done:   make(chan struct{}),
	}

	go func() {
		if _, err := io.Copy(out, reader); err != nil && !errors.Is(err, os.ErrClosed) {
			r.log.Debugw("output drain stopped", "command", c.String(), "error", err)
		}
		p.closeOutput()
	}()

	go func() {
		p.waitErr = cmd.Wait()
		close(p.done)
	}()

	r.log.Debugw("started", "command", c.String(), "pid", cmd.Process.Pid, "dir", c.Dir)
	return p, nil
}

// PID returns the child's process id.
func (p *Process) PID() int {
	return p.cmd.Process.Pid
}

// Done is closed once the child has exited and been reaped.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Exited reports whether the child has terminated.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Err returns the wait error once the child has exited.
func (p *Process) Err() error {
	if !p.Exited() {
		return nil
	}
	return p.waitErr
}

// Wait blocks until the child exits or timeout elapses and reports whether
// it exited.
func (p *Process) Wait(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-p.done:
		return true
	case <-timer.C:
		return false
	}
}

// Terminate asks the child and its process group to exit.
func (p *Process) Terminate() error {
	if p.Exited() {
		return nil
	}
	return terminate(p.cmd.Process)
}

// Kill forcefully ends the child and its descendants.
func (p *Process) Kill() error {
	if p.Exited() {
		return nil
	}
	return kill(p.cmd.Process)
}

// Close releases the output pipe. Descendants that inherited the pipe can
// otherwise keep the drain goroutine alive after the child itself is gone.
func (p *Process) Close() {
	p.closeOutput()
}

func (p *Process) closeOutput() {
	p.once.Do(func() {
		p.output.Close()
	})
}
