// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"fmt"
	"path/filepath"
)

type (
	// Descriptor is the immutable configuration of one managed runtime,
	// created once at startup per runtime kind.
	Descriptor struct {
		// Name identifies the runtime ("python", "node", "ffmpeg", ...).
		Name string

		// InstallRoot is the canonical install directory governed by this
		// descriptor.
		InstallRoot string

		// MinVersion is the minimum supported version (semver, with or
		// without "v" prefix).
		MinVersion string

		// ArtifactURL maps a resolved version to its downloadable archive.
		ArtifactURL func(version string) string

		// ArchiveName maps a resolved version to the local archive filename
		// (its extension selects the extraction codec).
		ArchiveName func(version string) string

		// ByteCap is the maximum artifact size in bytes. Zero means
		// unlimited.
		ByteCap int64

		// Probe reports whether a runnable, complete install is present at
		// root. It must be cheap: it runs on every EnsureReady call and
		// after every extraction.
		Probe func(root string) bool

		// ExecutablePath maps the install root to the runnable entry point
		// reported in ReadyRuntime.
		ExecutablePath func(root string) string

		// PostInstall, when set, runs after extraction with the new install
		// at root (enable a package directory, bootstrap a package manager).
		// Its failure is treated like an extraction failure and triggers
		// rollback.
		PostInstall func(ctx context.Context, root string) error

		// MarkerPath overrides the version marker location. Empty selects
		// the default: a dotfile next to the install root.
		MarkerPath string
	}

	// ReadyRuntime is the outcome of a successful EnsureReady call.
	ReadyRuntime struct {
		Name           string
		Version        string
		Root           string
		ExecutablePath string
	}
)

// Validate checks the descriptor for the fields the state machine cannot
// run without.
func (d *Descriptor) Validate() error {
	switch {
	case d.Name == "":
		return fmt.Errorf("descriptor: name is required")
	case d.InstallRoot == "":
		return fmt.Errorf("descriptor %s: install root is required", d.Name)
	case d.ArtifactURL == nil:
		return fmt.Errorf("descriptor %s: artifact URL func is required", d.Name)
	case d.ArchiveName == nil:
		return fmt.Errorf("descriptor %s: archive name func is required", d.Name)
	case d.Probe == nil:
		return fmt.Errorf("descriptor %s: readiness probe is required", d.Name)
	case d.ExecutablePath == nil:
		return fmt.Errorf("descriptor %s: executable path func is required", d.Name)
	}
	return nil
}

// markerPath returns the version marker location: explicit override or the
// default dotfile beside the install root.
func (d *Descriptor) markerPath() string {
	if d.MarkerPath != "" {
		return d.MarkerPath
	}
	dir := filepath.Dir(d.InstallRoot)
	return filepath.Join(dir, "."+filepath.Base(d.InstallRoot)+".mdxrun-version")
}

// backupPath is where the previous install is parked during an attempt.
// Same parent directory as the install root, so the rename is atomic.
func (d *Descriptor) backupPath() string {
	return d.InstallRoot + ".backup"
}

// stagingPath is where the new install is assembled before the commit
// rename. Same parent directory as the install root.
func (d *Descriptor) stagingPath() string {
	return d.InstallRoot + ".staging"
}
