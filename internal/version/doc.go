// SPDX-License-Identifier: MPL-2.0

// Package version decides which version of a managed runtime to install.
//
// The common fast path trusts the version pinned by a previous successful
// provisioning: if it is still syntactically supported and its artifact is
// still fetchable (a cheap HEAD probe, falling back to GET where servers
// reject HEAD), it is returned unchanged and no index query happens. Only
// when the pin is invalid, unsupported, or gone does the resolver query a
// remote version index, sort the candidates by semantic version descending,
// and return the newest supported one that verifies fetchable.
//
// Two index implementations are provided: GitHubReleaseIndex for runtimes
// published as GitHub Releases and JSONIndex for dist servers exposing a
// flat JSON version listing (node-style index.json).
package version
