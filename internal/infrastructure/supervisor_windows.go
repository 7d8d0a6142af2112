//go:build windows

package infrastructure

import "os/exec"

func setProcessGroup(c *exec.Cmd) {}

// Windows has no SIGTERM for console tools
func interruptProcess(c *exec.Cmd) error {
	return c.Process.Kill()
}

func killProcess(c *exec.Cmd) error {
	return c.Process.Kill()
}
