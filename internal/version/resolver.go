// SPDX-License-Identifier: MPL-2.0

package version

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/mod/semver"

	"github.com/markitdownx/mdxrun/internal/download"
)

// Sentinel errors for programmatic detection via errors.Is.
var (
	// ErrNoVersion means no candidate version is both supported and
	// fetchable. Callers must treat this as "provisioning impossible right
	// now", not a crash.
	ErrNoVersion = errors.New("no supported fetchable version")

	// ErrInvalidVersion indicates a version string is not valid semver.
	ErrInvalidVersion = errors.New("invalid semantic version")
)

type (
	// Index lists the version identifiers a remote publishes for one
	// runtime. Order is not significant; the Resolver sorts.
	Index interface {
		Versions(ctx context.Context) ([]string, error)
	}

	// Resolver implements the version-resolution policy for one runtime.
	Resolver struct {
		index       Index
		minVersion  string
		artifactURL func(version string) string
		client      *http.Client
		logger      *log.Logger
	}

	// ResolverOption configures a Resolver during construction.
	ResolverOption func(*Resolver)
)

// WithProbeClient overrides the HTTP client used for fetchability probes.
func WithProbeClient(c *http.Client) ResolverOption {
	return func(r *Resolver) {
		r.client = c
	}
}

// WithResolverLogger overrides the logger.
func WithResolverLogger(l *log.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = l
	}
}

// NewResolver creates a Resolver. minVersion is the minimum supported
// version (with or without "v" prefix); artifactURL maps a version to its
// downloadable artifact. Without options the short-probe client profile is
// used.
func NewResolver(index Index, minVersion string, artifactURL func(string) string, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		index:       index,
		minVersion:  Normalize(minVersion),
		artifactURL: artifactURL,
		client:      download.NewProbeClient(),
		logger:      log.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve picks the version to install. persisted is the version marker from
// the previous successful provisioning ("" when none exists).
//
// Fast path: a persisted version that is valid, supported, and still
// fetchable is returned unchanged without querying the index. Otherwise the
// index is consulted: candidates are sorted semver-descending and the first
// supported one whose artifact probes fetchable wins. Candidates failing the
// probe are skipped. ErrNoVersion is returned when nothing qualifies.
func (r *Resolver) Resolve(ctx context.Context, persisted string) (string, error) {
	if persisted != "" {
		if v, ok := r.checkPersisted(ctx, persisted); ok {
			return v, nil
		}
		// Invalid, unsupported, or no longer fetchable: the pin is dead,
		// fall through to the index.
	}

	candidates, err := r.index.Versions(ctx)
	if err != nil {
		return "", fmt.Errorf("querying version index: %w", err)
	}

	sortVersionsDesc(candidates)

	for _, candidate := range candidates {
		norm := Normalize(candidate)
		if !semver.IsValid(norm) || semver.Compare(norm, r.minVersion) < 0 {
			continue
		}
		ok, probeErr := r.fetchable(ctx, candidate)
		if probeErr != nil {
			if ctx.Err() != nil {
				return "", probeErr
			}
			r.logger.Debug("skipping candidate after probe failure", "version", candidate, "error", probeErr)
			continue
		}
		if ok {
			return candidate, nil
		}
	}

	return "", ErrNoVersion
}

// checkPersisted validates the fast path: syntactically supported and still
// fetchable.
func (r *Resolver) checkPersisted(ctx context.Context, persisted string) (string, bool) {
	norm := Normalize(persisted)
	if !semver.IsValid(norm) || semver.Compare(norm, r.minVersion) < 0 {
		return "", false
	}
	ok, err := r.fetchable(ctx, persisted)
	if err != nil || !ok {
		r.logger.Debug("persisted version no longer fetchable", "version", persisted, "error", err)
		return "", false
	}
	return persisted, true
}

// fetchable probes the artifact URL for the given version. HEAD first; when
// the server rejects HEAD (405/403/501) fall back to a GET whose body is
// closed immediately.
func (r *Resolver) fetchable(ctx context.Context, version string) (bool, error) {
	url := r.artifactURL(version)

	ok, retryWithGet, err := r.probeOnce(ctx, http.MethodHead, url)
	if err != nil {
		return false, err
	}
	if !retryWithGet {
		return ok, nil
	}

	ok, _, err = r.probeOnce(ctx, http.MethodGet, url)
	return ok, err
}

// probeOnce issues one probe request. retryWithGet signals that the server
// rejected the method rather than the resource.
func (r *Resolver) probeOnce(ctx context.Context, method, url string) (ok, retryWithGet bool, err error) {
	req, err := http.NewRequestWithContext(ctx, method, url, http.NoBody)
	if err != nil {
		return false, false, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return false, false, err
	}
	// The probe only needs the status line; the body is discarded.
	_ = resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return true, false, nil
	case method == http.MethodHead &&
		(resp.StatusCode == http.StatusMethodNotAllowed ||
			resp.StatusCode == http.StatusForbidden ||
			resp.StatusCode == http.StatusNotImplemented):
		return false, true, nil
	default:
		return false, false, nil
	}
}

// sortVersionsDesc sorts version strings by semantic version descending.
// Invalid entries sort to the end. Stable so equal tags keep their order.
func sortVersionsDesc(versions []string) {
	slices.SortStableFunc(versions, func(a, b string) int {
		return semver.Compare(Normalize(b), Normalize(a))
	})
}

// Normalize ensures the version string has a "v" prefix as required by the
// semver package.
func Normalize(v string) string {
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		return "v" + v
	}
	return v
}

// IsSupported reports whether v is valid semver at or above min.
func IsSupported(v, min string) bool {
	norm := Normalize(v)
	return semver.IsValid(norm) && semver.Compare(norm, Normalize(min)) >= 0
}
