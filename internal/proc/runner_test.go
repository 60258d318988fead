// SPDX-License-Identifier: MPL-2.0

package proc

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"
)

// requireShell skips tests that drive a POSIX shell on platforms without one.
func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("test requires a POSIX shell")
	}
}

func TestExecute_CapturesOutputAndExitCode(t *testing.T) {
	t.Parallel()
	requireShell(t)

	runner := NewRunner()
	res, err := runner.Execute(context.Background(), Spec{
		Command: "sh",
		Args:    []string{"-c", "echo out; echo err 1>&2; exit 3"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("exit code: got %d, want 3", res.ExitCode)
	}
	if res.Stdout != "out\n" {
		t.Errorf("stdout: got %q, want %q", res.Stdout, "out\n")
	}
	if res.Stderr != "err\n" {
		t.Errorf("stderr: got %q, want %q", res.Stderr, "err\n")
	}
	if res.Termination != TerminationCompleted {
		t.Errorf("termination: got %s, want completed", res.Termination)
	}
	if res.Success() {
		t.Error("Success() should be false for exit code 3")
	}
}

func TestExecute_SignalDeathReportedAsKilled(t *testing.T) {
	t.Parallel()
	requireShell(t)

	runner := NewRunner()
	res, err := runner.Execute(context.Background(), Spec{
		Command: "sh",
		Args:    []string{"-c", "kill -9 $$"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Termination != TerminationKilled {
		t.Errorf("termination: got %s, want killed", res.Termination)
	}
	if ok, _ := res.ExitCode.IsValid(); ok {
		t.Errorf("exit code %d should be invalid after a signal death", res.ExitCode)
	}
	if res.Success() {
		t.Error("Success() should be false for a signal death")
	}
}

func TestExecute_EnvAndDir(t *testing.T) {
	t.Parallel()
	requireShell(t)

	dir := t.TempDir()
	runner := NewRunner()
	res, err := runner.Execute(context.Background(), Spec{
		Command: "sh",
		Args:    []string{"-c", "echo $MDX_TEST_VAR; pwd"},
		Dir:     dir,
		Env:     map[string]string{"MDX_TEST_VAR": "hello"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(res.Stdout), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 output lines, got %q", res.Stdout)
	}
	if lines[0] != "hello" {
		t.Errorf("env override: got %q, want %q", lines[0], "hello")
	}
	// pwd may resolve symlinks (e.g. /tmp -> /private/tmp on macOS), so
	// only check the suffix.
	if !strings.HasSuffix(dir, lines[1]) && !strings.HasSuffix(lines[1], strings.TrimPrefix(dir, "/private")) {
		t.Errorf("workdir: got %q, want %q", lines[1], dir)
	}
}

func TestExecute_LaunchFailed(t *testing.T) {
	t.Parallel()

	runner := NewRunner()
	_, err := runner.Execute(context.Background(), Spec{
		Command: "definitely-not-a-real-binary-mdxrun",
	})
	if !errors.Is(err, ErrLaunchFailed) {
		t.Fatalf("expected ErrLaunchFailed, got: %v", err)
	}
	var le *LaunchError
	if !errors.As(err, &le) {
		t.Fatalf("expected *LaunchError, got %T", err)
	}
}

func TestExecute_EmptyCommand(t *testing.T) {
	t.Parallel()

	runner := NewRunner()
	_, err := runner.Execute(context.Background(), Spec{})
	if !errors.Is(err, ErrLaunchFailed) {
		t.Fatalf("expected ErrLaunchFailed, got: %v", err)
	}
}

func TestExecute_FixedTimeoutKills(t *testing.T) {
	t.Parallel()
	requireShell(t)

	runner := NewRunner()
	start := time.Now()
	res, err := runner.Execute(context.Background(), Spec{
		Command: "sh",
		Args:    []string{"-c", "echo started; sleep 30"},
		Timeout: FixedTimeout(300 * time.Millisecond),
	})
	if !errors.Is(err, ErrTimedOut) {
		t.Fatalf("expected ErrTimedOut, got: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("kill took too long: %s", elapsed)
	}
	if res == nil {
		t.Fatal("expected partial result alongside timeout error")
	}
	if res.Termination != TerminationTimedOut {
		t.Errorf("termination: got %s, want timed out", res.Termination)
	}
	// Output captured before the kill must survive.
	if !strings.Contains(res.Stdout, "started") {
		t.Errorf("partial stdout lost: %q", res.Stdout)
	}
}

func TestExecute_DrainsSingleOverlongLine(t *testing.T) {
	t.Parallel()
	requireShell(t)

	// One 2 MiB line with no newline until the very end: far past the line
	// callback cap, and big enough to fill the OS pipe many times over. The
	// drain must keep consuming so the child never blocks on write.
	const lineBytes = 2 << 20
	done := make(chan struct{})
	var res *Result
	var err error
	go func() {
		defer close(done)
		runner := NewRunner()
		res, err = runner.Execute(context.Background(), Spec{
			Command: "sh",
			Args:    []string{"-c", "head -c 2097152 /dev/zero | tr '\\0' 'x'; echo"},
		})
	}()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatal("Execute hung on a single over-long output line")
	}
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success() {
		t.Fatalf("expected success, got termination=%s code=%s", res.Termination, res.ExitCode)
	}
	if got := strings.Count(res.Stdout, "x"); got != lineBytes {
		t.Errorf("captured %d payload bytes, want %d", got, lineBytes)
	}
}

func TestExecute_OverlongLineReachesCallbackInPieces(t *testing.T) {
	t.Parallel()
	requireShell(t)

	var mu sync.Mutex
	var pieces []int
	runner := NewRunner()
	res, err := runner.Execute(context.Background(), Spec{
		Command: "sh",
		Args:    []string{"-c", "head -c 3145728 /dev/zero | tr '\\0' 'y'; echo"},
		OnStdoutLine: func(line string) {
			mu.Lock()
			pieces = append(pieces, len(line))
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success() {
		t.Fatalf("expected success, got termination=%s", res.Termination)
	}

	mu.Lock()
	defer mu.Unlock()
	total := 0
	for _, n := range pieces {
		if n > maxLineBytes {
			t.Errorf("callback piece of %d bytes exceeds the cap", n)
		}
		total += n
	}
	if total != 3<<20 {
		t.Errorf("callback pieces carried %d bytes, want %d", total, 3<<20)
	}
}

func TestExecute_IdleTimeoutSurvivesNewlineFreeOutput(t *testing.T) {
	t.Parallel()
	requireShell(t)

	// Emits bytes (no newline) every 200ms for ~1s against a 1s idle
	// deadline: output without line endings still counts as liveness.
	runner := NewRunner()
	res, err := runner.Execute(context.Background(), Spec{
		Command: "sh",
		Args:    []string{"-c", "for i in 1 2 3 4 5; do printf dot; sleep 0.2; done"},
		Timeout: IdleTimeout(1 * time.Second),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success() {
		t.Fatalf("expected success, got termination=%s code=%s", res.Termination, res.ExitCode)
	}
	if got := strings.Count(res.Stdout, "dot"); got != 5 {
		t.Errorf("expected 5 writes captured, got %d (%q)", got, res.Stdout)
	}
}

func TestExecute_IdleTimeoutAllowsChattyProcess(t *testing.T) {
	t.Parallel()
	requireShell(t)

	// Emits a line every 200ms for ~1s total; idle deadline of 1s never
	// accumulates, so the process completes although its total runtime
	// exceeds the deadline.
	runner := NewRunner()
	res, err := runner.Execute(context.Background(), Spec{
		Command: "sh",
		Args:    []string{"-c", "for i in 1 2 3 4 5; do echo tick $i; sleep 0.2; done"},
		Timeout: IdleTimeout(1 * time.Second),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success() {
		t.Fatalf("expected success, got termination=%s code=%s", res.Termination, res.ExitCode)
	}
	if got := strings.Count(res.Stdout, "tick"); got != 5 {
		t.Errorf("expected 5 ticks, got %d (%q)", got, res.Stdout)
	}
}

func TestExecute_IdleTimeoutKillsSilentProcess(t *testing.T) {
	t.Parallel()
	requireShell(t)

	runner := NewRunner()
	res, err := runner.Execute(context.Background(), Spec{
		Command: "sh",
		Args:    []string{"-c", "echo once; sleep 30"},
		Timeout: IdleTimeout(400 * time.Millisecond),
	})
	if !errors.Is(err, ErrTimedOut) {
		t.Fatalf("expected ErrTimedOut, got: %v", err)
	}
	if res.Termination != TerminationTimedOut {
		t.Errorf("termination: got %s, want timed out", res.Termination)
	}
}

func TestExecute_CancellationReportedAsCancelled(t *testing.T) {
	t.Parallel()
	requireShell(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(150 * time.Millisecond)
		cancel()
	}()

	runner := NewRunner()
	res, err := runner.Execute(ctx, Spec{
		Command: "sh",
		Args:    []string{"-c", "sleep 30"},
		Timeout: FixedTimeout(1 * time.Minute),
	})
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got: %v", err)
	}
	if errors.Is(err, ErrTimedOut) {
		t.Fatal("cancellation must not be reported as timeout")
	}
	if res.Termination != TerminationCancelled {
		t.Errorf("termination: got %s, want cancelled", res.Termination)
	}
}

func TestExecute_OnLineCallbacks(t *testing.T) {
	t.Parallel()
	requireShell(t)

	var mu sync.Mutex
	var outLines, errLines []string
	record := func(dst *[]string) func(string) {
		return func(line string) {
			mu.Lock()
			defer mu.Unlock()
			*dst = append(*dst, line)
		}
	}

	runner := NewRunner()
	_, err := runner.Execute(context.Background(), Spec{
		Command:      "sh",
		Args:         []string{"-c", "echo a; echo b; echo c 1>&2"},
		OnStdoutLine: record(&outLines),
		OnStderrLine: record(&errLines),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outLines) != 2 {
		t.Errorf("stdout callbacks: got %d, want 2", len(outLines))
	}
	if len(errLines) != 1 {
		t.Errorf("stderr callbacks: got %d, want 1", len(errLines))
	}
}

func TestResult_AsError(t *testing.T) {
	t.Parallel()

	ok := &Result{ExitCode: 0, Termination: TerminationCompleted}
	if err := ok.AsError("tool"); err != nil {
		t.Errorf("expected nil for success, got: %v", err)
	}

	failed := &Result{ExitCode: 2, Stderr: "boom\ndetails", Termination: TerminationCompleted}
	err := failed.AsError("tool")
	if !errors.Is(err, ErrExitNonZero) {
		t.Fatalf("expected ErrExitNonZero, got: %v", err)
	}
	var ee *ExitError
	if !errors.As(err, &ee) {
		t.Fatalf("expected *ExitError, got %T", err)
	}
	if ee.Code != 2 {
		t.Errorf("code: got %d, want 2", ee.Code)
	}
	if ee.Stderr != "boom\ndetails" {
		t.Errorf("stderr not carried: %q", ee.Stderr)
	}
	if !strings.Contains(ee.Error(), "boom") || strings.Contains(ee.Error(), "details") {
		t.Errorf("message should contain only the first stderr line: %q", ee.Error())
	}

	killed := &Result{ExitCode: -1, Termination: TerminationTimedOut}
	if err := killed.AsError("tool"); err != nil {
		t.Errorf("killed results are reported via typed errors, got: %v", err)
	}
}
