// SPDX-License-Identifier: MPL-2.0

package version

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/markitdownx/mdxrun/internal/download"
)

type (
	// jsonIndexEntry is the wire format of one entry in a dist server's
	// version listing (node-style index.json).
	jsonIndexEntry struct {
		Version string `json:"version"`
	}

	// JSONIndex lists versions from a dist server exposing a flat JSON
	// array of release entries.
	JSONIndex struct {
		httpClient *http.Client
		url        string
	}

	// JSONIndexOption configures a JSONIndex during construction.
	JSONIndexOption func(*JSONIndex)
)

// WithJSONIndexHTTPClient sets a custom HTTP client, useful for tests.
func WithJSONIndexHTTPClient(c *http.Client) JSONIndexOption {
	return func(j *JSONIndex) {
		j.httpClient = c
	}
}

// NewJSONIndex creates an index over the JSON listing at url. Without
// options it uses the short-probe client profile.
func NewJSONIndex(url string, opts ...JSONIndexOption) *JSONIndex {
	j := &JSONIndex{
		httpClient: download.NewProbeClient(),
		url:        url,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Versions fetches and decodes the version listing.
func (j *JSONIndex) Versions(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := j.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching version index: %w", err)
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching version index: unexpected status %d", resp.StatusCode)
	}

	var entries []jsonIndexEntry
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxIndexResponseBytes)).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decoding version index: %w", err)
	}

	versions := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Version != "" {
			versions = append(versions, e.Version)
		}
	}
	return versions, nil
}
