//go:build !windows

package developer

import (
	"os/exec"
	"syscall"
)

// setProcAttr enables process-group creation so the whole subprocess tree
// (the developer CLI plus anything it spawns) can be killed together.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcessGroup signals the entire process group rooted at pid.
func killProcessGroup(pid int) error {
	if pid <= 0 {
		return nil
	}
	return syscall.Kill(-pid, syscall.SIGKILL)
}
