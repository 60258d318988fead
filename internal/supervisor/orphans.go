// SPDX-License-Identifier: MPL-2.0

package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	gopsproc "github.com/shirou/gopsutil/v4/process"
)

type (
	// processHandle is the subset of process operations the sweep needs.
	// Satisfied by gopsutil processes; faked in tests.
	processHandle interface {
		ID() int32
		Executable(ctx context.Context) (string, error)
		Terminate(ctx context.Context) error
		Kill(ctx context.Context) error
		Alive(ctx context.Context) (bool, error)
	}

	// processLister enumerates candidate processes on the host.
	processLister func(ctx context.Context) ([]processHandle, error)

	// Sweeper finds and terminates orphaned daemon instances: processes
	// running our managed executable that no live supervisor owns, left
	// behind by a crashed or killed host process.
	Sweeper struct {
		lister processLister
		grace  time.Duration
		logger *log.Logger
	}

	// SweeperOption configures a Sweeper during construction.
	SweeperOption func(*Sweeper)
)

// WithSweepGrace sets how long the sweep waits after a graceful signal
// before escalating to a kill.
func WithSweepGrace(d time.Duration) SweeperOption {
	return func(s *Sweeper) {
		s.grace = d
	}
}

// WithSweeperLogger overrides the logger.
func WithSweeperLogger(l *log.Logger) SweeperOption {
	return func(s *Sweeper) {
		s.logger = l
	}
}

// NewSweeper creates a Sweeper backed by the host process table.
func NewSweeper(opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		lister: listHostProcesses,
		grace:  2 * time.Second,
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep terminates every process whose executable is exactly execPath,
// except the caller's own process and keepPID (pass 0 for none). Returns
// how many orphans were taken down.
//
// Matching is exact path equality after cleaning: an orphan started through
// a symlink or a copied binary is not recognized. Managed runtimes are only
// ever launched from their canonical install root, which keeps the simple
// match sufficient.
func (s *Sweeper) Sweep(ctx context.Context, execPath string, keepPID int32) (int, error) {
	target := filepath.Clean(execPath)
	self := int32(os.Getpid())

	procs, err := s.lister(ctx)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, p := range procs {
		if p.ID() == self || (keepPID != 0 && p.ID() == keepPID) {
			continue
		}
		exe, err := p.Executable(ctx)
		if err != nil {
			// Other users' processes commonly deny the lookup.
			continue
		}
		if filepath.Clean(exe) != target {
			continue
		}

		s.logger.Warn("sweeping orphaned daemon", "pid", p.ID(), "path", target)
		s.takedown(ctx, p)
		swept++
	}
	return swept, nil
}

// takedown stops one orphan: graceful signal, bounded wait, then kill.
// Failures are logged, not propagated; the orphan may well have exited on
// its own mid-sweep.
func (s *Sweeper) takedown(ctx context.Context, p processHandle) {
	if err := p.Terminate(ctx); err != nil {
		s.logger.Debug("orphan did not take graceful signal", "pid", p.ID(), "error", err)
	}

	deadline := time.Now().Add(s.grace)
	for time.Now().Before(deadline) {
		alive, err := p.Alive(ctx)
		if err != nil || !alive {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(50 * time.Millisecond):
		}
	}

	if err := p.Kill(ctx); err != nil {
		s.logger.Debug("orphan kill not delivered", "pid", p.ID(), "error", err)
	}
}

// gopsutilHandle adapts a gopsutil process to processHandle.
type gopsutilHandle struct {
	p *gopsproc.Process
}

func (h gopsutilHandle) ID() int32 { return h.p.Pid }

func (h gopsutilHandle) Executable(ctx context.Context) (string, error) {
	return h.p.ExeWithContext(ctx)
}

func (h gopsutilHandle) Terminate(ctx context.Context) error {
	return h.p.TerminateWithContext(ctx)
}

func (h gopsutilHandle) Kill(ctx context.Context) error {
	return h.p.KillWithContext(ctx)
}

func (h gopsutilHandle) Alive(ctx context.Context) (bool, error) {
	return h.p.IsRunningWithContext(ctx)
}

func listHostProcesses(ctx context.Context) ([]processHandle, error) {
	procs, err := gopsproc.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	handles := make([]processHandle, 0, len(procs))
	for _, p := range procs {
		handles = append(handles, gopsutilHandle{p: p})
	}
	return handles, nil
}
