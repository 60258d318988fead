// SPDX-License-Identifier: MPL-2.0

//go:build windows

package proc

import (
	"os/exec"

	"github.com/shirou/gopsutil/v4/process"
)

// setProcAttributes is a no-op on Windows; descendants are enumerated and
// killed individually instead of via a process group.
func setProcAttributes(_ *exec.Cmd) {}

// killProcessTree kills pid and all of its descendants, deepest first.
// "Process already exited" failures on individual members are ignored — the
// tree is racing against its own natural exit.
func killProcessTree(pid int) error {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return err
	}
	children, err := p.Children()
	if err == nil {
		for _, child := range children {
			_ = killProcessTree(int(child.Pid))
		}
	}
	return p.Kill()
}

// terminateProcess requests a graceful stop. Windows has no SIGTERM
// equivalent for arbitrary processes, so this degrades to Kill.
func terminateProcess(pid int) error {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return err
	}
	return p.Terminate()
}
