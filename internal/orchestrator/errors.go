package orchestrator

import (
	"errors"
	"fmt"
)

var (
	// ErrPrerequisiteMissing means a required toolchain could not be found.
	ErrPrerequisiteMissing = errors.New("prerequisite missing")
	// ErrPortContention means a port could not be reclaimed before launch.
	ErrPortContention = errors.New("port still occupied")
	// ErrBuildFailed means a one-shot build step failed.
	ErrBuildFailed = errors.New("build failed")
	// ErrLaunchFailed means a child could not be spawned or exited before
	// it became ready.
	ErrLaunchFailed = errors.New("launch failed")
	// ErrReadinessTimeout means a child stayed alive without opening its
	// port in time.
	ErrReadinessTimeout = errors.New("readiness timeout")
	// ErrExited means a managed child stopped on its own while running.
	ErrExited = errors.New("managed process exited")
)

// BuildError carries the captured output of a failed build step.
type BuildError struct {
	Step     string
	Command  string
	ExitCode int
	Output   string
	Err      error // set when the command could not run at all
}

func (e *BuildError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("%s failed with exit code %d: %s", e.Step, e.ExitCode, e.Command)
}

func (e *BuildError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrBuildFailed, e.Err}
	}
	return []error{ErrBuildFailed}
}
