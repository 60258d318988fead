// SPDX-License-Identifier: MPL-2.0

package version

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/markitdownx/mdxrun/internal/download"
)

const (
	// githubPerPage is the number of releases fetched per API page.
	githubPerPage = 30

	// githubMaxPages is the upper bound on pagination to avoid runaway
	// requests.
	githubMaxPages = 3

	// maxIndexResponseBytes bounds a version index response (10 MB).
	maxIndexResponseBytes = 10 << 20
)

type (
	// RateLimitError is returned when the GitHub API rate limit is exceeded.
	RateLimitError struct {
		Limit     int
		Remaining int
		ResetAt   time.Time
	}

	// githubRelease is the JSON wire format subset of a GitHub Release.
	githubRelease struct {
		TagName    string `json:"tag_name"`
		Prerelease bool   `json:"prerelease"`
		Draft      bool   `json:"draft"`
	}

	// GitHubReleaseIndex lists a repository's stable release tags as
	// candidate versions.
	GitHubReleaseIndex struct {
		httpClient *http.Client
		owner      string
		repo       string
		baseURL    string
		userAgent  string
	}

	// GitHubOption configures a GitHubReleaseIndex during construction.
	GitHubOption func(*GitHubReleaseIndex)
)

// Error formats the rate limit details as a human-readable message.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("GitHub API rate limit exceeded (%d remaining, resets at %s)",
		e.Remaining, e.ResetAt.UTC().Format("15:04 UTC"))
}

// WithGitHubHTTPClient sets a custom HTTP client, useful for tests.
func WithGitHubHTTPClient(c *http.Client) GitHubOption {
	return func(g *GitHubReleaseIndex) {
		g.httpClient = c
	}
}

// WithGitHubBaseURL overrides the API base URL, primarily for test servers.
func WithGitHubBaseURL(base string) GitHubOption {
	return func(g *GitHubReleaseIndex) {
		g.baseURL = strings.TrimRight(base, "/")
	}
}

// NewGitHubReleaseIndex creates an index over the given repository's
// releases. Without options it uses the short-probe client profile against
// api.github.com.
func NewGitHubReleaseIndex(owner, repo string, opts ...GitHubOption) *GitHubReleaseIndex {
	g := &GitHubReleaseIndex{
		httpClient: download.NewProbeClient(),
		owner:      owner,
		repo:       repo,
		baseURL:    "https://api.github.com",
		userAgent:  "mdxrun/dev",
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Versions fetches stable (non-draft, non-prerelease) release tags.
// Pagination is followed up to githubMaxPages.
func (g *GitHubReleaseIndex) Versions(ctx context.Context) ([]string, error) {
	pageURL := fmt.Sprintf("%s/repos/%s/%s/releases?per_page=%d",
		g.baseURL, g.owner, g.repo, githubPerPage)

	var tags []string

	for page := 0; page < githubMaxPages && pageURL != ""; page++ {
		resp, reqErr := g.doRequest(ctx, pageURL)
		if reqErr != nil {
			return nil, fmt.Errorf("listing releases: %w", reqErr)
		}

		if rlErr := checkRateLimit(resp); rlErr != nil {
			resp.Body.Close()
			return nil, rlErr
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("listing releases: unexpected status %d", resp.StatusCode)
		}

		var releases []githubRelease
		decodeErr := json.NewDecoder(io.LimitReader(resp.Body, maxIndexResponseBytes)).Decode(&releases)
		resp.Body.Close()
		if decodeErr != nil {
			return nil, fmt.Errorf("listing releases: decoding response: %w", decodeErr)
		}

		// Filter client-side: keep only stable releases.
		for i := range releases {
			if !releases[i].Draft && !releases[i].Prerelease {
				tags = append(tags, releases[i].TagName)
			}
		}

		pageURL = parseLinkHeader(resp.Header.Get("Link"))
	}

	return tags, nil
}

// doRequest creates and executes a GET with common GitHub API headers.
func (g *GitHubReleaseIndex) doRequest(ctx context.Context, reqURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	return resp, nil
}

// checkRateLimit inspects the X-RateLimit-* response headers and returns a
// RateLimitError when the remaining quota is zero.
func checkRateLimit(resp *http.Response) error {
	remaining := resp.Header.Get("X-RateLimit-Remaining")
	if remaining == "" {
		return nil
	}

	rem, err := strconv.Atoi(remaining)
	if err != nil || rem > 0 {
		// Malformed header values are non-fatal.
		return nil
	}

	// Companion headers enrich the message; malformed values default to zero.
	limit, _ := strconv.Atoi(resp.Header.Get("X-RateLimit-Limit"))
	resetUnix, _ := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64)

	return &RateLimitError{
		Limit:     limit,
		Remaining: 0,
		ResetAt:   time.Unix(resetUnix, 0),
	}
}

// parseLinkHeader extracts the URL for the "next" page from a GitHub API
// Link header. Returns an empty string if no next page exists.
//
// Example header: <https://api.github.com/...?page=2>; rel="next", <...>; rel="last"
func parseLinkHeader(header string) string {
	if header == "" {
		return ""
	}

	for part := range strings.SplitSeq(header, ",") {
		part = strings.TrimSpace(part)
		if !strings.Contains(part, `rel="next"`) {
			continue
		}

		start := strings.Index(part, "<")
		end := strings.Index(part, ">")
		if start >= 0 && end > start {
			return part[start+1 : end]
		}
	}

	return ""
}
