// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"
)

// buildZip writes a zip archive with the given name->content entries.
func buildZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("creating zip entry %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("writing zip entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing zip: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("writing archive: %v", err)
	}
}

// buildTarGz writes a tar.gz archive with the given name->content entries.
func buildTarGz(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range entries {
		hdr := &tar.Header{Name: name, Mode: 0o755, Size: int64(len(content)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("tar header %s: %v", name, err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatalf("tar body %s: %v", name, err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("closing tar: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("closing gzip: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("writing archive: %v", err)
	}
}

func TestExtract_Zip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	archivePath := filepath.Join(dir, "runtime.zip")
	buildZip(t, archivePath, map[string]string{
		"bin/python":     "#!/fake\n",
		"lib/site.py":    "print('hi')\n",
		"python311._pth": "python311.zip\n",
	})

	dest := filepath.Join(dir, "out")
	if err := Extract(context.Background(), archivePath, dest); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, rel := range []string{"bin/python", "lib/site.py", "python311._pth"} {
		if _, err := os.Stat(filepath.Join(dest, rel)); err != nil {
			t.Errorf("missing extracted file %s: %v", rel, err)
		}
	}
}

func TestExtract_TarGz(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	archivePath := filepath.Join(dir, "node.tar.gz")
	buildTarGz(t, archivePath, map[string]string{
		"node-v20/bin/node": "elf\n",
		"node-v20/README":   "readme\n",
	})

	dest := filepath.Join(dir, "out")
	if err := Extract(context.Background(), archivePath, dest); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dest, "node-v20", "bin", "node"))
	if err != nil {
		t.Fatalf("reading extracted file: %v", err)
	}
	if string(data) != "elf\n" {
		t.Errorf("content mismatch: %q", data)
	}
}

func TestExtract_CorruptArchiveNotRetried(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	archivePath := filepath.Join(dir, "broken.zip")
	if err := os.WriteFile(archivePath, []byte("this is not a zip"), 0o644); err != nil {
		t.Fatalf("writing archive: %v", err)
	}

	start := time.Now()
	err := Extract(context.Background(), archivePath, filepath.Join(dir, "out"))
	if !errors.Is(err, ErrCorruptArchive) {
		t.Fatalf("expected ErrCorruptArchive, got: %v", err)
	}
	// Terminal failure must not burn through the retry backoff schedule.
	if elapsed := time.Since(start); elapsed > retryBackoff {
		t.Errorf("corrupt archive was retried (took %s)", elapsed)
	}
}

func TestExtract_UnsupportedFormat(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	archivePath := filepath.Join(dir, "runtime.rar")
	if err := os.WriteFile(archivePath, []byte("x"), 0o644); err != nil {
		t.Fatalf("writing archive: %v", err)
	}
	err := Extract(context.Background(), archivePath, filepath.Join(dir, "out"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got: %v", err)
	}
}

func TestExtract_RejectsZipSlip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	archivePath := filepath.Join(dir, "evil.tar.gz")
	buildTarGz(t, archivePath, map[string]string{
		"../escape.txt": "pwned",
	})

	err := Extract(context.Background(), archivePath, filepath.Join(dir, "out"))
	if !errors.Is(err, ErrUnsafePath) {
		t.Fatalf("expected ErrUnsafePath, got: %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "escape.txt")); !os.IsNotExist(statErr) {
		t.Error("zip-slip entry escaped the destination")
	}
}

func TestSafeJoin(t *testing.T) {
	t.Parallel()

	dest := filepath.Join("/tmp", "dest")
	tests := []struct {
		name    string
		entry   string
		wantErr bool
	}{
		{"plain", "bin/python", false},
		{"dot prefixed", "./bin/python", false},
		{"parent escape", "../x", true},
		{"nested escape", "a/../../x", true},
		{"absolute", "/etc/passwd", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := safeJoin(dest, tt.entry)
			if tt.wantErr && !errors.Is(err, ErrUnsafePath) {
				t.Errorf("expected ErrUnsafePath for %q, got: %v", tt.entry, err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error for %q: %v", tt.entry, err)
			}
		})
	}
}

func TestExtractWithRetry_TransientThenSuccess(t *testing.T) {
	t.Parallel()

	calls := 0
	codec := func(_, _ string) error {
		calls++
		if calls == 1 {
			return &os.PathError{Op: "open", Path: "a", Err: syscall.EBUSY}
		}
		return nil
	}
	if err := extractWithRetry(context.Background(), codec, "a.zip", t.TempDir()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestExtractWithRetry_PermanentFailureNotRetried(t *testing.T) {
	t.Parallel()

	calls := 0
	permanent := errors.New("disk full")
	codec := func(_, _ string) error {
		calls++
		return permanent
	}
	err := extractWithRetry(context.Background(), codec, "a.zip", t.TempDir())
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error, got: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 attempt, got %d", calls)
	}
}

func TestExtractWithRetry_ContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	codec := func(_, _ string) error {
		calls++
		cancel()
		return &os.PathError{Op: "open", Path: "a", Err: syscall.EBUSY}
	}
	err := extractWithRetry(ctx, codec, "a.zip", t.TempDir())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 attempt, got %d", calls)
	}
}
