//go:build !windows

package infrastructure

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcessGroup puts the child in its own group so signals reach the
// tools it spawns too
func setProcessGroup(c *exec.Cmd) {
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func interruptProcess(c *exec.Cmd) error {
	return unix.Kill(-c.Process.Pid, unix.SIGTERM)
}

func killProcess(c *exec.Cmd) error {
	return unix.Kill(-c.Process.Pid, unix.SIGKILL)
}
