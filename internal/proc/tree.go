// SPDX-License-Identifier: MPL-2.0

package proc

import "os/exec"

// SetProcAttributes marks cmd so that KillTree can later reach its whole
// descendant tree (a dedicated process group on unix). Callers that spawn
// long-lived daemons directly must apply it before Start.
func SetProcAttributes(cmd *exec.Cmd) {
	setProcAttributes(cmd)
}

// Terminate requests a graceful stop of pid and its descendants.
func Terminate(pid int) error {
	return terminateProcess(pid)
}

// KillTree forcefully kills pid and its whole descendant tree.
func KillTree(pid int) error {
	return killProcessTree(pid)
}
