// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// maxAttempts bounds the transient-error retry loop.
	maxAttempts = 3

	// retryBackoff is the base delay between extraction attempts.
	retryBackoff = 500 * time.Millisecond

	// maxEntryBytes bounds a single extracted entry (8 GB). Guards against
	// decompression bombs in runtime archives.
	maxEntryBytes = 8 << 30
)

// codecFunc unpacks one archive file into a destination directory.
type codecFunc func(src, dest string) error

// Extract unpacks the archive at archivePath into destDir, choosing the codec
// from the file extension. Transient filesystem errors are retried up to
// maxAttempts times with backoff; a corrupt archive propagates immediately as
// a terminal CorruptArchiveError.
//
// destDir contents are undefined after a failure — callers must treat the
// directory as volatile until Extract returns nil.
func Extract(ctx context.Context, archivePath, destDir string) error {
	codec, err := codecFor(archivePath)
	if err != nil {
		return err
	}
	return extractWithRetry(ctx, codec, archivePath, destDir)
}

// extractWithRetry drives the attempt loop. A corrupt archive is terminal on
// the spot; transient filesystem failures (a file briefly locked by a
// scanner, interrupted syscalls) get further attempts with doubling backoff;
// anything else propagates unchanged on the first attempt.
func extractWithRetry(ctx context.Context, codec codecFunc, archivePath, destDir string) error {
	var lastErr error
	for attempt := range maxAttempts {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return err
			}
		}

		err := codec(archivePath, destDir)
		switch {
		case err == nil:
			return nil
		case isCorrupt(err):
			return &CorruptArchiveError{Archive: archivePath, Err: err}
		case !isTransient(err):
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("extracting %s: still failing after %d attempts: %w",
		filepath.Base(archivePath), maxAttempts, lastErr)
}

// sleepBackoff waits out the doubling backoff for the given attempt, bailing
// early when the caller is gone.
func sleepBackoff(ctx context.Context, attempt int) error {
	timer := time.NewTimer(retryBackoff * time.Duration(1<<(attempt-1)))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// codecFor selects the unpack function by extension.
func codecFor(archivePath string) (codecFunc, error) {
	name := strings.ToLower(archivePath)
	switch {
	case strings.HasSuffix(name, ".zip"):
		return extractZip, nil
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return extractTarGz, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(archivePath))
	}
}

func extractZip(src, dest string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }() // read-only archive handle

	for _, entry := range r.File {
		target, err := safeJoin(dest, entry.Name)
		if err != nil {
			return err
		}

		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}

		if err := writeZipEntry(entry, target); err != nil {
			return err
		}
	}
	return nil
}

func writeZipEntry(entry *zip.File, target string) (err error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	rc, err := entry.Open()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }() // read-only entry stream

	mode := entry.FileInfo().Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	_, err = io.Copy(f, io.LimitReader(rc, maxEntryBytes))
	return err
}

func extractTarGz(src, dest string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }() // read-only archive handle

	gz, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer func() { _ = gz.Close() }() // wraps the read-only file

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			// tar framing errors on an intact filesystem mean a corrupt
			// payload.
			return &CorruptArchiveError{Archive: src, Err: err}
		}

		target, err := safeJoin(dest, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeTarEntry(tr, hdr, target); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := writeSymlink(dest, hdr, target); err != nil {
				return err
			}
		default:
			// Devices, fifos and the like have no business in a runtime
			// archive; skip them.
		}
	}
}

func writeTarEntry(tr *tar.Reader, hdr *tar.Header, target string) (err error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	mode := os.FileMode(hdr.Mode).Perm()
	if mode == 0 {
		mode = 0o644
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	_, err = io.Copy(f, io.LimitReader(tr, maxEntryBytes))
	return err
}

func writeSymlink(dest string, hdr *tar.Header, target string) error {
	// The link target must also stay inside the destination.
	resolved := hdr.Linkname
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(filepath.Dir(target), hdr.Linkname)
	}
	if _, err := safeJoinResolved(dest, resolved); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	// Replace an existing link from a previous attempt.
	_ = os.Remove(target)
	return os.Symlink(hdr.Linkname, target)
}

// safeJoin joins an archive entry name onto dest, rejecting entries that
// would escape it (zip-slip).
func safeJoin(dest, name string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	return filepath.Join(dest, cleaned), nil
}

// safeJoinResolved verifies an already-joined path still lies inside dest.
func safeJoinResolved(dest, path string) (string, error) {
	rel, err := filepath.Rel(dest, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, path)
	}
	return path, nil
}
