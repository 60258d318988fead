// SPDX-License-Identifier: MPL-2.0

package provision

import "fmt"

const (
	// StateAbsent means no usable install exists at the canonical path.
	StateAbsent State = iota
	// StateResolving means the target version is being decided.
	StateResolving
	// StateDownloading means the artifact is streaming to local storage.
	StateDownloading
	// StateExtracting means the archive is unpacking into staging.
	StateExtracting
	// StatePostProcessing means the post-install hook is running.
	StatePostProcessing
	// StateVerifying means the readiness probe is re-checking the new install.
	StateVerifying
	// StateRollingBack means a failed attempt is restoring the backup.
	StateRollingBack
	// StateReady is terminal for an attempt: the install passes its probe.
	StateReady
	// StateFailed is terminal: the attempt failed (after rollback, if any).
	StateFailed
)

// State is one stage of a provisioning attempt.
type State int32

// String returns the human-readable stage name.
func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateResolving:
		return "resolving"
	case StateDownloading:
		return "downloading"
	case StateExtracting:
		return "extracting"
	case StatePostProcessing:
		return "post-processing"
	case StateVerifying:
		return "verifying"
	case StateRollingBack:
		return "rolling back"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// IsTerminal reports whether an attempt in this state has finished.
func (s State) IsTerminal() bool {
	return s == StateReady || s == StateFailed
}
