// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/markitdownx/mdxrun/internal/archive"
	"github.com/markitdownx/mdxrun/internal/download"
	"github.com/markitdownx/mdxrun/internal/version"
)

type (
	// Resolver decides the target version for an attempt. Implemented by
	// *version.Resolver; an interface so tests can pin versions directly.
	Resolver interface {
		Resolve(ctx context.Context, persisted string) (string, error)
	}

	// StatusFunc receives stage transitions and free-text progress for a UI
	// or log. Implementations must not block; correctness never depends on
	// them.
	StatusFunc func(stage State, message string)

	// attempt is the ephemeral record of one EnsureReady call. Discarded
	// when the call resolves; never persisted.
	attempt struct {
		target      string
		backupPath  string // set only if a prior install existed
		archivePath string
		transitions []State
	}

	// Provisioner runs the provisioning state machine for one Descriptor.
	// Safe for concurrent use; concurrent EnsureReady calls are collapsed
	// into one attempt.
	Provisioner struct {
		desc      Descriptor
		resolver  Resolver
		downloads *download.Engine
		logger    *log.Logger
		status    StatusFunc
		group     singleflight.Group
	}

	// Option configures a Provisioner during construction.
	Option func(*Provisioner)
)

// WithDownloadEngine overrides the download engine (tests, custom clients).
func WithDownloadEngine(e *download.Engine) Option {
	return func(p *Provisioner) {
		p.downloads = e
	}
}

// WithStatus registers a stage/progress callback.
func WithStatus(fn StatusFunc) Option {
	return func(p *Provisioner) {
		p.status = fn
	}
}

// WithProvisionerLogger overrides the logger.
func WithProvisionerLogger(l *log.Logger) Option {
	return func(p *Provisioner) {
		p.logger = l
	}
}

// NewProvisioner creates a Provisioner for the given descriptor and resolver.
func NewProvisioner(desc Descriptor, resolver Resolver, opts ...Option) (*Provisioner, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	p := &Provisioner{
		desc:      desc,
		resolver:  resolver,
		downloads: download.NewEngine(),
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Descriptor returns the immutable runtime configuration.
func (p *Provisioner) Descriptor() Descriptor { return p.desc }

// Installed reports the pinned version of a present, probe-passing install
// without any network traffic. ok is false when the runtime is absent or
// broken.
func (p *Provisioner) Installed() (version string, ok bool) {
	v := readMarker(p.desc.markerPath())
	if v == "" || !p.desc.Probe(p.desc.InstallRoot) {
		return "", false
	}
	return v, true
}

// EnsureReady makes the runtime ready and returns its location. Calls are
// single-flighted per Provisioner: a second concurrent caller waits for the
// in-flight attempt and shares its outcome rather than starting a duplicate.
func (p *Provisioner) EnsureReady(ctx context.Context) (*ReadyRuntime, error) {
	v, err, _ := p.group.Do(p.desc.Name, func() (any, error) {
		return p.ensure(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*ReadyRuntime), nil
}

// ensure is one full pass of the state machine.
func (p *Provisioner) ensure(ctx context.Context) (*ReadyRuntime, error) {
	att := &attempt{}

	p.transition(att, StateResolving, "resolving target version")
	persisted := readMarker(p.desc.markerPath())

	target, err := p.resolver.Resolve(ctx, persisted)
	if err != nil {
		// Offline grace: with a probing install pinned to a supported
		// version, a dead version index must not take the runtime away.
		if persisted != "" && version.IsSupported(persisted, p.desc.MinVersion) && p.desc.Probe(p.desc.InstallRoot) {
			p.logger.Warn("version resolution failed, keeping existing install",
				"runtime", p.desc.Name, "version", persisted, "error", err)
			return p.ready(att, persisted), nil
		}
		return nil, p.fail(att, StateResolving, false, err)
	}
	att.target = target

	// Idempotence short-circuit: probe passes and the pin already matches
	// the chosen target. No download, no extraction.
	if persisted == target && p.desc.Probe(p.desc.InstallRoot) {
		return p.ready(att, target), nil
	}

	defer p.cleanup(att)

	if err := p.download(ctx, att); err != nil {
		return nil, p.failWithRollback(att, StateDownloading, err)
	}

	if err := p.extract(ctx, att); err != nil {
		return nil, p.failWithRollback(att, StateExtracting, err)
	}

	if err := p.install(att); err != nil {
		return nil, p.failWithRollback(att, StateExtracting, err)
	}

	if p.desc.PostInstall != nil {
		p.transition(att, StatePostProcessing, "running post-install hook")
		if err := p.desc.PostInstall(ctx, p.desc.InstallRoot); err != nil {
			return nil, p.failWithRollback(att, StatePostProcessing, err)
		}
	}

	p.transition(att, StateVerifying, "verifying new install")
	if !p.desc.Probe(p.desc.InstallRoot) {
		// A successful unpack that is not runnable is not committed.
		err := fmt.Errorf("install at %s failed its readiness probe", p.desc.InstallRoot)
		return nil, p.failWithRollback(att, StateVerifying, err)
	}

	if err := p.commit(att); err != nil {
		return nil, p.failWithRollback(att, StateVerifying, err)
	}

	return p.ready(att, target), nil
}

// download streams the artifact for the attempt's target version into the
// staging area's parent, reporting throttled progress through the status
// callback.
func (p *Provisioner) download(ctx context.Context, att *attempt) error {
	p.transition(att, StateDownloading, "downloading "+att.target)

	if err := os.MkdirAll(filepath.Dir(p.desc.InstallRoot), 0o755); err != nil {
		return err
	}

	dest := filepath.Join(filepath.Dir(p.desc.InstallRoot), p.desc.ArchiveName(att.target))
	got, err := p.downloads.Download(ctx, download.Task{
		URL:     p.desc.ArtifactURL(att.target),
		Dest:    dest,
		ByteCap: p.desc.ByteCap,
		Progress: func(percent float64, read int64) {
			if p.status == nil {
				return
			}
			if percent >= 0 {
				p.status(StateDownloading, fmt.Sprintf("downloading %s: %.1f%%", att.target, percent))
			} else {
				p.status(StateDownloading, fmt.Sprintf("downloading %s: %d bytes", att.target, read))
			}
		},
	})
	if err != nil {
		return err
	}
	att.archivePath = got
	return nil
}

// extract unpacks the artifact into the staging directory. The canonical
// path is untouched until install.
func (p *Provisioner) extract(ctx context.Context, att *attempt) error {
	p.transition(att, StateExtracting, "extracting "+filepath.Base(att.archivePath))

	staging := p.desc.stagingPath()
	if err := os.RemoveAll(staging); err != nil {
		return err
	}
	return archive.Extract(ctx, att.archivePath, staging)
}

// install swaps the staged extraction into the canonical path, parking any
// existing install at the backup path first. Both moves are renames within
// one parent directory, so a concurrent readiness probe sees either the full
// old directory or the full new one, never a mix.
func (p *Provisioner) install(att *attempt) error {
	root := p.desc.InstallRoot

	if _, err := os.Stat(root); err == nil {
		backup := p.desc.backupPath()
		// A leftover backup from a crashed run would block the rename.
		if err := os.RemoveAll(backup); err != nil {
			return err
		}
		if err := os.Rename(root, backup); err != nil {
			return fmt.Errorf("parking existing install: %w", err)
		}
		att.backupPath = backup
	}

	if err := os.Rename(p.desc.stagingPath(), root); err != nil {
		return fmt.Errorf("moving staged install into place: %w", err)
	}
	return nil
}

// commit finalizes the attempt: persist the version marker, then drop the
// backup.
func (p *Provisioner) commit(att *attempt) error {
	if err := writeMarker(p.desc.markerPath(), att.target); err != nil {
		return err
	}
	if att.backupPath != "" {
		if err := os.RemoveAll(att.backupPath); err != nil {
			// The new install is live and pinned; a stuck backup is only
			// disk waste.
			p.logger.Warn("could not remove backup", "runtime", p.desc.Name, "path", att.backupPath, "error", err)
		}
		att.backupPath = ""
	}
	return nil
}

// rollback undoes a failed attempt: remove the partial new install and
// restore the backup if one was taken. Returns whether the previous install
// is back in place.
func (p *Provisioner) rollback(att *attempt) bool {
	p.transition(att, StateRollingBack, "restoring previous install")

	if att.backupPath == "" {
		// Fresh install: leave no residue.
		if err := os.RemoveAll(p.desc.InstallRoot); err != nil {
			p.logger.Warn("could not remove partial install", "runtime", p.desc.Name, "error", err)
		}
		return false
	}

	if err := os.RemoveAll(p.desc.InstallRoot); err != nil {
		p.logger.Error("rollback could not remove partial install", "runtime", p.desc.Name, "error", err)
		return false
	}
	if err := os.Rename(att.backupPath, p.desc.InstallRoot); err != nil {
		p.logger.Error("rollback could not restore backup", "runtime", p.desc.Name, "error", err)
		return false
	}
	att.backupPath = ""
	return true
}

// cleanup removes the attempt's temporary artifacts on every exit path.
// Delete failures are recorded, never propagated.
func (p *Provisioner) cleanup(att *attempt) {
	if att.archivePath != "" {
		if err := os.Remove(att.archivePath); err != nil && !os.IsNotExist(err) {
			p.logger.Warn("could not remove downloaded artifact", "path", att.archivePath, "error", err)
		}
	}
	if err := os.RemoveAll(p.desc.stagingPath()); err != nil {
		p.logger.Warn("could not remove staging directory", "path", p.desc.stagingPath(), "error", err)
	}
}

// fail records a terminal failure without rollback.
func (p *Provisioner) fail(att *attempt, stage State, rolledBack bool, err error) error {
	p.transition(att, StateFailed, err.Error())
	return &StageError{Runtime: p.desc.Name, Stage: stage, RolledBack: rolledBack, Err: err}
}

// failWithRollback restores the previous install (when a backup exists) and
// records the terminal failure.
func (p *Provisioner) failWithRollback(att *attempt, stage State, err error) error {
	restored := false
	if att.backupPath != "" {
		restored = p.rollback(att)
	} else if stage != StateDownloading {
		// No backup was taken but staging/partials may exist.
		p.rollbackFresh(att, stage)
	}
	return p.fail(att, stage, restored, err)
}

// rollbackFresh clears residue of a fresh-install attempt that failed after
// touching the canonical path.
func (p *Provisioner) rollbackFresh(att *attempt, stage State) {
	if stage == StatePostProcessing || stage == StateVerifying {
		p.transition(att, StateRollingBack, "removing failed fresh install")
		if err := os.RemoveAll(p.desc.InstallRoot); err != nil {
			p.logger.Warn("could not remove failed install", "runtime", p.desc.Name, "error", err)
		}
	}
}

// ready finalizes a successful attempt.
func (p *Provisioner) ready(att *attempt, v string) *ReadyRuntime {
	p.transition(att, StateReady, "ready at "+v)
	return &ReadyRuntime{
		Name:           p.desc.Name,
		Version:        v,
		Root:           p.desc.InstallRoot,
		ExecutablePath: p.desc.ExecutablePath(p.desc.InstallRoot),
	}
}

// transition records a stage change on the attempt and notifies the status
// callback.
func (p *Provisioner) transition(att *attempt, s State, msg string) {
	att.transitions = append(att.transitions, s)
	p.logger.Debug("provisioning stage", "runtime", p.desc.Name, "stage", s, "detail", msg)
	if p.status != nil {
		p.status(s, msg)
	}
}

// IsFailure reports whether err is a provisioning failure (as opposed to a
// resolver "no version" outcome, which callers may want to treat as a
// degraded feature rather than an error).
func IsFailure(err error) bool {
	return errors.Is(err, ErrProvisioningFailed)
}
