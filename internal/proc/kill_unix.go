// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package proc

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcAttributes places the child in its own process group so a later
// kill can take down the whole descendant tree in one signal.
func setProcAttributes(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcessTree sends SIGKILL to the process group rooted at pid. When the
// group is already gone (concurrent natural exit) the ESRCH is returned to
// the caller, which treats it as a benign race.
func killProcessTree(pid int) error {
	return unix.Kill(-pid, unix.SIGKILL)
}

// terminateProcess asks the process group to exit gracefully with SIGTERM.
func terminateProcess(pid int) error {
	return unix.Kill(-pid, unix.SIGTERM)
}
