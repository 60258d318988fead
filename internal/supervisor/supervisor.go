// SPDX-License-Identifier: MPL-2.0

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/markitdownx/mdxrun/internal/download"
	"github.com/markitdownx/mdxrun/internal/proc"
)

const (
	defaultHealthInterval = 500 * time.Millisecond
	defaultHealthBudget   = 30 * time.Second
	defaultStopGrace      = 5 * time.Second
)

var (
	// ErrNotHealthy indicates the daemon process started but never answered
	// its health check within the poll budget.
	ErrNotHealthy = errors.New("daemon failed health check")

	// ErrDaemonExited indicates the daemon process exited while the
	// supervisor still expected it to run.
	ErrDaemonExited = errors.New("daemon exited unexpectedly")
)

type (
	// Config describes the daemon a Supervisor owns.
	Config struct {
		// Name identifies the daemon in logs ("ollama").
		Name string

		// ExecutablePath is the resolved binary to spawn.
		ExecutablePath string

		// Args are passed to the daemon verbatim.
		Args []string

		// Env entries ("KEY=value") are appended to the host environment.
		Env []string

		// Dir is the working directory. Empty inherits the host's.
		Dir string

		// HealthURL, when set, is polled with GET until it answers 200.
		// Empty means the daemon is considered running as soon as the
		// process launches.
		HealthURL string

		// HealthInterval is the pause between health polls.
		HealthInterval time.Duration

		// HealthBudget caps the total time Start waits for health.
		HealthBudget time.Duration

		// StopGrace is how long Stop waits after the graceful signal
		// before escalating to a forceful tree kill.
		StopGrace time.Duration
	}

	// Supervisor runs one daemon instance. Single-use: once stopped or
	// failed, create a new instance.
	Supervisor struct {
		cfg    Config
		client *http.Client
		logger *log.Logger
		output io.Writer

		// State management (atomic for lock-free reads)
		state atomic.Int32

		stateMu sync.Mutex
		lastErr error

		cmd     *exec.Cmd
		pid     int
		exited  chan struct{}
		exitErr error // set before exited closes
		errCh   chan error
	}

	// SupervisorOption configures a Supervisor during construction.
	SupervisorOption func(*Supervisor)
)

// WithHealthClient overrides the HTTP client used for health polls.
func WithHealthClient(c *http.Client) SupervisorOption {
	return func(s *Supervisor) {
		s.client = c
	}
}

// WithSupervisorLogger overrides the logger.
func WithSupervisorLogger(l *log.Logger) SupervisorOption {
	return func(s *Supervisor) {
		s.logger = l
	}
}

// WithDaemonOutput redirects the daemon's stdout and stderr. Default
// discards both.
func WithDaemonOutput(w io.Writer) SupervisorOption {
	return func(s *Supervisor) {
		s.output = w
	}
}

// New creates a Supervisor for the given daemon configuration.
func New(cfg Config, opts ...SupervisorOption) (*Supervisor, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("supervisor: name is required")
	}
	if cfg.ExecutablePath == "" {
		return nil, fmt.Errorf("supervisor %s: executable path is required", cfg.Name)
	}
	if cfg.HealthInterval <= 0 {
		cfg.HealthInterval = defaultHealthInterval
	}
	if cfg.HealthBudget <= 0 {
		cfg.HealthBudget = defaultHealthBudget
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = defaultStopGrace
	}

	s := &Supervisor{
		cfg:    cfg,
		client: download.NewProbeClient(),
		logger: log.Default(),
		output: io.Discard,
		exited: make(chan struct{}),
		errCh:  make(chan error, 1),
	}
	s.state.Store(int32(StateCreated))
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// State returns the current daemon state (atomic, lock-free read).
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

// IsRunning returns true if the daemon is in the Running state.
func (s *Supervisor) IsRunning() bool {
	return s.State() == StateRunning
}

// PID returns the daemon's process ID, or 0 before Start.
func (s *Supervisor) PID() int {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.pid
}

// Err returns a channel for receiving async failures (unexpected daemon
// exit while Running).
func (s *Supervisor) Err() <-chan error {
	return s.errCh
}

// LastError returns the error that caused the Failed state, or nil.
func (s *Supervisor) LastError() error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.lastErr
}

// Start launches the daemon and blocks until it answers its health check or
// the poll budget runs out. On any failure the spawned process is killed and
// the supervisor lands in Failed.
func (s *Supervisor) Start(ctx context.Context) error {
	// Check for already-cancelled context BEFORE any setup.
	select {
	case <-ctx.Done():
		err := fmt.Errorf("context cancelled before start: %w", ctx.Err())
		s.transitionToFailed(err)
		return err
	default:
	}

	if !s.state.CompareAndSwap(int32(StateCreated), int32(StateStarting)) {
		return fmt.Errorf("cannot start %s daemon in state %s", s.cfg.Name, s.State())
	}

	cmd := exec.Command(s.cfg.ExecutablePath, s.cfg.Args...)
	cmd.Dir = s.cfg.Dir
	cmd.Env = append(os.Environ(), s.cfg.Env...)
	cmd.Stdout = s.output
	cmd.Stderr = s.output
	proc.SetProcAttributes(cmd)

	if err := cmd.Start(); err != nil {
		err = fmt.Errorf("launching %s daemon: %w", s.cfg.Name, err)
		s.transitionToFailed(err)
		return err
	}

	s.stateMu.Lock()
	s.cmd = cmd
	s.pid = cmd.Process.Pid
	s.stateMu.Unlock()

	go s.reap(cmd)

	s.logger.Debug("daemon launched", "daemon", s.cfg.Name, "pid", cmd.Process.Pid)

	if err := s.awaitHealthy(ctx); err != nil {
		// The process may still be alive; take it down with us.
		s.killTree()
		s.transitionToFailed(err)
		return err
	}

	if s.state.CompareAndSwap(int32(StateStarting), int32(StateRunning)) {
		s.logger.Info("daemon running", "daemon", s.cfg.Name, "pid", cmd.Process.Pid)
	}
	return nil
}

// reap waits for the daemon process and flags an unexpected exit. Stop
// transitions to Stopping first, so an exit observed while Running is a
// crash.
func (s *Supervisor) reap(cmd *exec.Cmd) {
	err := cmd.Wait()
	s.stateMu.Lock()
	s.exitErr = err
	s.stateMu.Unlock()
	close(s.exited)

	if s.state.CompareAndSwap(int32(StateRunning), int32(StateFailed)) {
		crash := fmt.Errorf("%w: %s (%v)", ErrDaemonExited, s.cfg.Name, err)
		s.stateMu.Lock()
		s.lastErr = crash
		s.stateMu.Unlock()
		s.logger.Error("daemon exited unexpectedly", "daemon", s.cfg.Name, "error", err)
		select {
		case s.errCh <- crash:
		default:
		}
	}
}

// awaitHealthy polls the health URL until it answers 200, the budget is
// spent, the daemon dies, or the context is cancelled.
func (s *Supervisor) awaitHealthy(ctx context.Context) error {
	if s.cfg.HealthURL == "" {
		return nil
	}

	deadline := time.NewTimer(s.cfg.HealthBudget)
	defer deadline.Stop()
	tick := time.NewTicker(s.cfg.HealthInterval)
	defer tick.Stop()

	for {
		if s.Healthy(ctx) {
			return nil
		}
		select {
		case <-s.exited:
			return fmt.Errorf("%w: %s died before becoming healthy", ErrDaemonExited, s.cfg.Name)
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s health: %w", s.cfg.Name, ctx.Err())
		case <-deadline.C:
			return fmt.Errorf("%w: %s gave no answer at %s within %s",
				ErrNotHealthy, s.cfg.Name, s.cfg.HealthURL, s.cfg.HealthBudget)
		case <-tick.C:
		}
	}
}

// Healthy performs a single health poll. Any transport error or non-200
// status counts as unhealthy.
func (s *Supervisor) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.HealthURL, nil)
	if err != nil {
		return false
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

// Stop shuts the daemon down: graceful signal, grace period, then a
// forceful tree kill. Safe to call concurrently and repeatedly; calls after
// the first (or on a never-started supervisor) are no-ops.
//
// Stop only reaches the process this supervisor spawned. Daemons left
// behind by a crashed host process are Sweeper's job.
func (s *Supervisor) Stop() error {
	for {
		current := State(s.state.Load())
		switch current {
		case StateStopped, StateFailed, StateStopping:
			return nil
		case StateCreated:
			if s.state.CompareAndSwap(int32(StateCreated), int32(StateStopped)) {
				return nil // Never started, just mark stopped
			}
			continue // State changed, retry
		case StateStarting, StateRunning:
			if !s.state.CompareAndSwap(int32(current), int32(StateStopping)) {
				continue // State changed, retry
			}
			s.shutdown()
			s.state.Store(int32(StateStopped))
			return nil
		default:
			return current.Validate()
		}
	}
}

// shutdown signals the daemon and escalates after the grace period. Signal
// errors are swallowed: the process may have exited on its own between the
// state check and the kill.
func (s *Supervisor) shutdown() {
	pid := s.PID()
	if pid == 0 {
		return
	}

	if err := proc.Terminate(pid); err != nil {
		s.logger.Debug("graceful signal not delivered", "daemon", s.cfg.Name, "pid", pid, "error", err)
	}

	select {
	case <-s.exited:
		s.logger.Debug("daemon exited gracefully", "daemon", s.cfg.Name, "pid", pid)
		return
	case <-time.After(s.cfg.StopGrace):
	}

	s.logger.Warn("daemon ignored graceful stop, killing process tree",
		"daemon", s.cfg.Name, "pid", pid, "grace", s.cfg.StopGrace)
	s.killTree()

	// Bounded wait so Stop cannot hang on an unkillable process.
	select {
	case <-s.exited:
	case <-time.After(2 * time.Second):
		s.logger.Error("daemon did not exit after kill", "daemon", s.cfg.Name, "pid", pid)
	}
}

func (s *Supervisor) killTree() {
	pid := s.PID()
	if pid == 0 {
		return
	}
	if err := proc.KillTree(pid); err != nil {
		s.logger.Debug("kill not delivered", "daemon", s.cfg.Name, "pid", pid, "error", err)
	}
}

func (s *Supervisor) transitionToFailed(err error) {
	s.stateMu.Lock()
	s.lastErr = err
	s.stateMu.Unlock()

	s.state.Store(int32(StateFailed))

	select {
	case s.errCh <- err:
	default:
	}
}
