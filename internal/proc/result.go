// SPDX-License-Identifier: MPL-2.0

package proc

import "time"

type (
	// Termination records why a process stopped running.
	Termination int

	// Result holds the outcome of one Execute call. It is returned even when
	// Execute fails with a timeout or cancellation, so callers always get
	// whatever output was captured before the kill.
	Result struct {
		// ExitCode is the process exit status. Only meaningful when
		// Termination is TerminationCompleted; a killed process reports
		// whatever the OS assigned (-1 on POSIX).
		ExitCode ExitCode

		// Stdout and Stderr are the accumulated output streams, captured
		// line by line while the process ran.
		Stdout string
		Stderr string

		// Termination is why the process stopped.
		Termination Termination

		// Duration is the wall time from spawn to exit.
		Duration time.Duration
	}
)

const (
	// TerminationCompleted means the process exited on its own.
	TerminationCompleted Termination = iota
	// TerminationTimedOut means a timeout policy killed it.
	TerminationTimedOut
	// TerminationCancelled means the caller's context killed it.
	TerminationCancelled
	// TerminationKilled means it was killed for another reason
	// (e.g. supervisor shutdown).
	TerminationKilled
)

// String returns the lowercase name of the termination reason.
func (t Termination) String() string {
	switch t {
	case TerminationCompleted:
		return "completed"
	case TerminationTimedOut:
		return "timed out"
	case TerminationCancelled:
		return "cancelled"
	case TerminationKilled:
		return "killed"
	default:
		return "unknown"
	}
}

// Success reports whether the process completed on its own with exit code 0.
func (r *Result) Success() bool {
	return r.Termination == TerminationCompleted && r.ExitCode.IsSuccess()
}

// AsError converts a non-zero completed exit into an *ExitError carrying the
// captured stderr. Returns nil for successful or killed executions — killed
// processes are already reported through typed errors by Execute itself.
func (r *Result) AsError(command string) error {
	if r.Termination != TerminationCompleted || r.ExitCode.IsSuccess() {
		return nil
	}
	return &ExitError{Command: command, Code: r.ExitCode, Stderr: r.Stderr}
}
