//go:build windows

package command

import (
	"errors"
	"os"
	"os/exec"
	"strconv"
	"syscall"
)

func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

// taskkill without /F posts a close request to the whole tree.
func terminate(proc *os.Process) error {
	return exec.Command("taskkill", "/PID", strconv.Itoa(proc.Pid), "/T").Run()
}

func kill(proc *os.Process) error {
	err := exec.Command("taskkill", "/PID", strconv.Itoa(proc.Pid), "/F", "/T").Run()
	if killErr := proc.Kill(); killErr != nil && !errors.Is(killErr, os.ErrProcessDone) && err != nil {
		return killErr
	}
	return nil
}
