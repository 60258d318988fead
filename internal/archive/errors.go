// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"archive/zip"
	"compress/flate"
	"compress/gzip"
	"errors"
	"fmt"
	"syscall"
)

// Sentinel errors for programmatic detection via errors.Is.
var (
	// ErrCorruptArchive indicates the archive itself is malformed. Never
	// retried; the provisioner converts it into a rollback.
	ErrCorruptArchive = errors.New("corrupt archive")

	// ErrUnsupportedFormat indicates the archive extension maps to no
	// known codec.
	ErrUnsupportedFormat = errors.New("unsupported archive format")

	// ErrUnsafePath indicates an entry tried to escape the destination
	// directory (zip-slip).
	ErrUnsafePath = errors.New("unsafe archive entry path")
)

type (
	// CorruptArchiveError wraps a decode failure from one of the codecs.
	CorruptArchiveError struct {
		Archive string
		Err     error
	}
)

func (e *CorruptArchiveError) Error() string {
	return fmt.Sprintf("extracting %s: corrupt archive: %v", e.Archive, e.Err)
}

func (e *CorruptArchiveError) Unwrap() []error { return []error{ErrCorruptArchive, e.Err} }

// isCorrupt classifies codec-level decode failures that must never be
// retried.
func isCorrupt(err error) bool {
	var flateErr flate.CorruptInputError
	return errors.Is(err, zip.ErrFormat) ||
		errors.Is(err, zip.ErrChecksum) ||
		errors.Is(err, gzip.ErrHeader) ||
		errors.Is(err, gzip.ErrChecksum) ||
		errors.As(err, &flateErr) ||
		errors.Is(err, ErrCorruptArchive) ||
		errors.Is(err, ErrUnsafePath)
}

// isTransient classifies filesystem failures worth retrying: short-lived
// locks and interrupted syscalls. Permission and disk-full errors are not
// transient.
func isTransient(err error) bool {
	return errors.Is(err, syscall.EBUSY) ||
		errors.Is(err, syscall.EAGAIN) ||
		errors.Is(err, syscall.EINTR) ||
		errors.Is(err, syscall.ETXTBSY)
}
