// SPDX-License-Identifier: MPL-2.0

package proc

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for programmatic detection via errors.Is.
var (
	// ErrLaunchFailed indicates the OS refused to spawn the process
	// (executable missing, permission denied, etc.).
	ErrLaunchFailed = errors.New("process launch failed")

	// ErrTimedOut indicates the process was killed by a timeout policy.
	ErrTimedOut = errors.New("process timed out")

	// ErrCancelled indicates the process was killed because the caller's
	// context was cancelled.
	ErrCancelled = errors.New("process cancelled")

	// ErrExitNonZero is the sentinel wrapped by ExitError.
	ErrExitNonZero = errors.New("process exited with non-zero code")
)

type (
	// LaunchError is returned when the process could not be spawned at all.
	// No Result accompanies it: the process never ran.
	LaunchError struct {
		Command string
		Err     error
	}

	// TimeoutError is returned when a timeout policy killed the process.
	// The accompanying Result still carries partial captured output.
	TimeoutError struct {
		Command string
		Policy  TimeoutPolicy
		Elapsed time.Duration
	}

	// CancelledError is returned when the caller's context cancelled the
	// execution. The accompanying Result still carries partial output.
	CancelledError struct {
		Command string
		Err     error // underlying ctx.Err()
	}

	// ExitError reports a non-zero process exit. The Runner never returns it
	// itself — exit codes pass through uninterpreted — but callers that treat
	// non-zero as failure can obtain one via Result.AsError().
	ExitError struct {
		Command string
		Code    ExitCode
		Stderr  string
	}
)

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launching %s: %v", e.Command, e.Err)
}

func (e *LaunchError) Unwrap() []error { return []error{ErrLaunchFailed, e.Err} }

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s killed by %s after %s", e.Command, e.Policy, e.Elapsed.Round(time.Millisecond))
}

func (e *TimeoutError) Unwrap() error { return ErrTimedOut }

func (e *CancelledError) Error() string {
	return fmt.Sprintf("%s cancelled: %v", e.Command, e.Err)
}

func (e *CancelledError) Unwrap() []error { return []error{ErrCancelled, e.Err} }

func (e *ExitError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s exited with code %s: %s", e.Command, e.Code, firstLine(e.Stderr))
	}
	return fmt.Sprintf("%s exited with code %s", e.Command, e.Code)
}

func (e *ExitError) Unwrap() error { return ErrExitNonZero }

// firstLine trims an error message to its first line for compact display.
// The full stderr remains available on the ExitError itself.
func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
