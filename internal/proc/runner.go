// SPDX-License-Identifier: MPL-2.0

package proc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// maxLineBytes bounds what the line callbacks receive in one call. A
	// line longer than this is delivered in maxLineBytes-sized pieces; the
	// captured output keeps the exact bytes either way.
	maxLineBytes = 1 << 20

	// drainChunkBytes is the read buffer size for the drain goroutines.
	drainChunkBytes = 64 * 1024
)

type (
	// Spec describes one process execution.
	Spec struct {
		// Command is the executable to run (path or name resolved via PATH).
		Command string
		// Args are the command arguments.
		Args []string
		// Dir is the working directory. Empty means inherit.
		Dir string
		// Env holds environment overrides appended on top of the host
		// environment.
		Env map[string]string
		// Timeout selects the timeout policy. Zero value means no timeout.
		Timeout TimeoutPolicy
		// OnStdoutLine and OnStderrLine, when set, are invoked from the
		// drain goroutines for every line received. Lines longer than
		// maxLineBytes arrive in capped pieces. They must not block.
		OnStdoutLine func(line string)
		OnStderrLine func(line string)
	}

	// Runner executes processes. The zero value is not usable; construct
	// with NewRunner. A Runner is safe for concurrent use.
	Runner struct {
		logger *log.Logger
	}

	// RunnerOption configures a Runner during construction.
	RunnerOption func(*Runner)
)

// WithLogger overrides the logger used for kill/cleanup diagnostics.
func WithLogger(l *log.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = l
	}
}

// NewRunner creates a Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Execute spawns the process described by spec and supervises it to exit.
//
// Both output streams are drained concurrently and continuously while the
// process runs; Execute never performs a blocking read-everything on one
// stream before exit, so a child filling the other stream's pipe cannot
// deadlock. Wait is only joined after both drain goroutines have been
// attached and have reached EOF.
//
// On timeout or cancellation the whole process tree is killed and the partial
// captured output is returned alongside a TimeoutError or CancelledError.
// Cancellation wins the race when both trigger together, so callers can
// distinguish "I asked for this" from "it hung".
//
// Non-zero exit codes are passed through uninterpreted: Execute returns a nil
// error and a Result carrying the code.
func (r *Runner) Execute(ctx context.Context, spec Spec) (*Result, error) {
	if spec.Command == "" {
		return nil, &LaunchError{Command: "", Err: fmt.Errorf("empty command")}
	}

	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), envToSlice(spec.Env)...)
	setProcAttributes(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &LaunchError{Command: spec.Command, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &LaunchError{Command: spec.Command, Err: err}
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, &LaunchError{Command: spec.Command, Err: err}
	}

	// activity carries one token per received line; the watchdog drains it
	// to slide an idle deadline. Buffered so drain goroutines never block.
	activity := make(chan struct{}, 1)

	var outBuf, errBuf bytes.Buffer
	var readers sync.WaitGroup
	readers.Add(2)
	go drainLines(stdout, &outBuf, spec.OnStdoutLine, activity, &readers)
	go drainLines(stderr, &errBuf, spec.OnStderrLine, activity, &readers)

	// Wait must run after both readers hit EOF: os/exec closes the pipes in
	// Wait, and closing them under an active reader loses trailing output.
	waitDone := make(chan error, 1)
	go func() {
		readers.Wait()
		waitDone <- cmd.Wait()
	}()

	timer := newPolicyTimer(spec.Timeout)
	defer timer.Stop()

	termination := TerminationCompleted
	var waitErr error
supervise:
	for {
		select {
		case waitErr = <-waitDone:
			break supervise
		case <-activity:
			timer.Touch()
		case <-ctx.Done():
			termination = TerminationCancelled
			r.killTree(cmd, spec.Command)
			waitErr = <-waitDone
			break supervise
		case <-timer.C():
			termination = TerminationTimedOut
			r.killTree(cmd, spec.Command)
			waitErr = <-waitDone
			break supervise
		}
	}

	res := &Result{
		Stdout:      outBuf.String(),
		Stderr:      errBuf.String(),
		Termination: termination,
		Duration:    time.Since(start),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = ExitCode(cmd.ProcessState.ExitCode())
	}
	if res.Termination == TerminationCompleted {
		if ok, _ := res.ExitCode.IsValid(); !ok {
			// ExitCode reports -1 when a signal we did not send took the
			// process down. That is a kill, not a completion.
			res.Termination = TerminationKilled
		}
	}

	switch termination {
	case TerminationCancelled:
		return res, &CancelledError{Command: spec.Command, Err: ctx.Err()}
	case TerminationTimedOut:
		return res, &TimeoutError{Command: spec.Command, Policy: spec.Timeout, Elapsed: res.Duration}
	default:
	}

	if waitErr != nil {
		if _, ok := waitErr.(*exec.ExitError); ok {
			// Non-zero exit: the code is in res.ExitCode, interpretation is
			// the caller's contract.
			return res, nil
		}
		return res, fmt.Errorf("waiting for %s: %w", spec.Command, waitErr)
	}
	return res, nil
}

// killTree kills the process and its descendants. A failure after the process
// already exited concurrently is expected and only logged at debug level.
func (r *Runner) killTree(cmd *exec.Cmd, command string) {
	if cmd.Process == nil {
		return
	}
	if err := killProcessTree(cmd.Process.Pid); err != nil {
		r.logger.Debug("kill after exit race", "command", command, "pid", cmd.Process.Pid, "error", err)
	}
}

// drainLines consumes the stream until EOF (or the pipe closing on kill),
// copying every byte into buf and signalling activity per read. The drain
// never stops before the stream ends, whatever the data looks like: a
// newline-free blob of any size is still read chunk by chunk, so the child
// can never block on a full pipe, and every read counts as liveness for the
// idle deadline even when no line ending ever arrives.
func drainLines(stream io.Reader, buf *bytes.Buffer, onLine func(string), activity chan<- struct{}, wg *sync.WaitGroup) {
	defer wg.Done()

	chunk := make([]byte, drainChunkBytes)
	var pending []byte
	for {
		n, err := stream.Read(chunk)
		if n > 0 {
			data := chunk[:n]
			buf.Write(data)
			select {
			case activity <- struct{}{}:
			default:
			}
			if onLine != nil {
				pending = deliverLines(append(pending, data...), onLine)
			}
		}
		if err != nil {
			if onLine != nil && len(pending) > 0 {
				onLine(trimLineEnd(pending))
			}
			return
		}
	}
}

// deliverLines invokes onLine for every completed line in pending, and for
// maxLineBytes-sized pieces of a line that has outgrown the cap. Returns the
// unconsumed tail.
func deliverLines(pending []byte, onLine func(string)) []byte {
	for {
		switch i := bytes.IndexByte(pending, '\n'); {
		case i >= 0:
			onLine(trimLineEnd(pending[:i+1]))
			pending = pending[i+1:]
		case len(pending) >= maxLineBytes:
			onLine(string(pending[:maxLineBytes]))
			pending = pending[maxLineBytes:]
		default:
			return pending
		}
	}
}

// trimLineEnd strips one trailing LF or CRLF.
func trimLineEnd(line []byte) string {
	n := len(line)
	if n > 0 && line[n-1] == '\n' {
		n--
	}
	if n > 0 && line[n-1] == '\r' {
		n--
	}
	return string(line[:n])
}

// envToSlice converts an overrides map to KEY=VALUE form.
func envToSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}
