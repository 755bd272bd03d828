//go:build !windows

package command

import (
	"errors"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// Children get their own process group so that signals reach the build
// tool's descendants (npm -> node -> vite, mvn -> java) as well.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

func terminate(proc *os.Process) error {
	return signalGroup(proc, unix.SIGTERM)
}

func kill(proc *os.Process) error {
	err := signalGroup(proc, unix.SIGKILL)
	if killErr := proc.Kill(); killErr != nil && !errors.Is(killErr, os.ErrProcessDone) && err == nil {
		err = killErr
	}
	return err
}

func signalGroup(proc *os.Process, sig unix.Signal) error {
	err := unix.Kill(-proc.Pid, sig)
	if errors.Is(err, unix.ESRCH) {
		// Group already gone.
		return nil
	}
	return err
}
