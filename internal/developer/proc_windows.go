//go:build windows

package developer

import "os/exec"

// setProcAttr is a no-op on Windows; full child-tree cleanup would need
// job objects (JOB_OBJECT_LIMIT_KILL_ON_JOB_CLOSE), not yet implemented.
func setProcAttr(cmd *exec.Cmd) {}

// killProcessGroup is a no-op on Windows for the same reason.
func killProcessGroup(pid int) error { return nil }
