// SPDX-License-Identifier: MPL-2.0

// Package proc provides the process execution primitive used by every other
// component: it spawns one OS process, drains stdout and stderr concurrently
// (so the child can never deadlock writing to a full pipe), enforces fixed or
// idle timeout policies, and returns the exit code together with the captured
// output or a typed failure.
//
// The Runner is the main entry point:
//
//	runner := proc.NewRunner()
//	res, err := runner.Execute(ctx, proc.Spec{
//		Command: "python",
//		Args:    []string{"-m", "pip", "install", "openpyxl"},
//		Timeout: proc.FixedTimeout(5 * time.Minute),
//	})
//
// Timeout and cancellation are reported as distinct typed errors (TimeoutError
// vs CancelledError) so callers can tell "it hung" apart from "I asked for
// this". Partial captured output is returned on every failure path.
package proc
