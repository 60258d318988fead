// SPDX-License-Identifier: MPL-2.0

package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
)

const (
	// chunkSize is the copy buffer size for streaming to disk.
	chunkSize = 256 * 1024

	// minProgressStep throttles progress callbacks: a report is emitted only
	// when progress advanced by at least this many percentage points, or on
	// completion.
	minProgressStep = 0.5

	// minProgressBytes throttles progress callbacks when no content length
	// was declared and percentages cannot be computed: a byte-count report
	// is emitted per this many bytes read.
	minProgressBytes = 1 << 20
)

type (
	// Task describes one download: source URL, destination path, byte cap,
	// and an optional progress callback.
	Task struct {
		URL  string
		Dest string
		// ByteCap is the maximum payload size in bytes. Zero or negative
		// means unlimited.
		ByteCap int64
		// Progress receives throttled progress updates. Percent is in
		// [0,100] when the content length is declared and -1 otherwise;
		// read is the cumulative byte count.
		Progress func(percent float64, read int64)
	}

	// Engine performs capped, streamed downloads. One Engine (and its
	// pooled HTTP client) is reused across many downloads.
	Engine struct {
		client *http.Client
		logger *log.Logger
	}

	// EngineOption configures an Engine during construction.
	EngineOption func(*Engine)
)

// WithClient overrides the HTTP client, primarily for tests.
func WithClient(c *http.Client) EngineOption {
	return func(e *Engine) {
		e.client = c
	}
}

// WithLogger overrides the logger used for cleanup diagnostics.
func WithLogger(l *log.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// NewEngine creates an Engine. Without options it uses the long-download
// client profile.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		client: NewDownloadClient(),
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Download streams the payload at task.URL to task.Dest and returns the
// destination path.
//
// If the response declares a content length larger than the cap, the download
// aborts before a single byte is written. Without a declared length the cap
// is enforced incrementally and the partial file is removed on overrun.
// There is no resume support: a failed download restarts from zero.
//
// The file is written to a ".partial" sibling and renamed into place on
// success, so an observer never sees a truncated file at the final path.
func (e *Engine) Download(ctx context.Context, task Task) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, task.URL, http.NoBody)
	if err != nil {
		return "", &NetworkError{URL: task.URL, Err: err}
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return "", &NetworkError{URL: task.URL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body

	if resp.StatusCode != http.StatusOK {
		return "", &NetworkError{URL: task.URL, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	declared := resp.ContentLength
	if task.ByteCap > 0 && declared > task.ByteCap {
		return "", &SizeLimitError{URL: task.URL, Declared: declared, Cap: task.ByteCap}
	}

	partial := task.Dest + ".partial"
	f, err := os.OpenFile(partial, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", partial, err)
	}

	read, copyErr := e.copyCapped(ctx, f, resp.Body, task, declared)

	if closeErr := f.Close(); closeErr != nil && copyErr == nil {
		copyErr = fmt.Errorf("closing %s: %w", partial, closeErr)
	}

	if copyErr != nil {
		e.removePartial(partial)
		return "", copyErr
	}

	if err := os.Rename(partial, task.Dest); err != nil {
		e.removePartial(partial)
		return "", fmt.Errorf("committing download to %s: %w", task.Dest, err)
	}

	// Completion report fires unconditionally so consumers can close out a
	// progress display even when throttling swallowed the last step.
	if task.Progress != nil {
		percent := -1.0
		if declared > 0 {
			percent = 100.0
		}
		task.Progress(percent, read)
	}

	return task.Dest, nil
}

// copyCapped streams body to dst in chunks, enforcing the byte cap after
// every chunk and reporting throttled progress: percentage steps when the
// length is declared, byte-count steps with percent -1 when it is not.
// Returns the byte count read.
func (e *Engine) copyCapped(ctx context.Context, dst io.Writer, body io.Reader, task Task, declared int64) (int64, error) {
	var read, lastReportedBytes int64
	lastReported := -1.0
	buf := make([]byte, chunkSize)

	for {
		if err := ctx.Err(); err != nil {
			return read, &NetworkError{URL: task.URL, Err: err}
		}

		n, readErr := body.Read(buf)
		if n > 0 {
			if _, writeErr := dst.Write(buf[:n]); writeErr != nil {
				return read, fmt.Errorf("writing download: %w", writeErr)
			}
			read += int64(n)

			if task.ByteCap > 0 && read > task.ByteCap {
				return read, &SizeLimitError{URL: task.URL, Declared: -1, Read: read, Cap: task.ByteCap}
			}

			switch {
			case task.Progress == nil:
			case declared > 0:
				percent := float64(read) / float64(declared) * 100.0
				if percent-lastReported >= minProgressStep {
					task.Progress(percent, read)
					lastReported = percent
				}
			case read-lastReportedBytes >= minProgressBytes:
				task.Progress(-1, read)
				lastReportedBytes = read
			}
		}

		if readErr == io.EOF {
			return read, nil
		}
		if readErr != nil {
			return read, &NetworkError{URL: task.URL, Err: readErr}
		}
	}
}

// removePartial deletes a partial download file. A failed delete (still
// locked by a scanner, for example) is recorded, not propagated.
func (e *Engine) removePartial(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		e.logger.Warn("could not remove partial download", "path", path, "error", err)
	}
}
