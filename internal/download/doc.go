// SPDX-License-Identifier: MPL-2.0

// Package download streams HTTP payloads to local storage under a byte-count
// cap, with throttled progress reporting.
//
// Two HTTP client profiles are provided and deliberately kept apart: the
// download client (pooled connections, no overall deadline, cancellation via
// context) and the probe client (short overall timeout) used for version and
// health probes. A slow probe must never be starved by a large pending
// download sharing its connection pool.
package download
