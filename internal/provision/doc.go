// SPDX-License-Identifier: MPL-2.0

// Package provision implements the generic runtime provisioning state
// machine: detect an existing install, resolve the target version, download,
// extract, post-process, verify readiness, and commit — or roll back to a
// pre-attempt backup on any failure.
//
// One Provisioner instance governs one install directory, described by an
// immutable Descriptor. From the outside that directory is always either
// fully absent or fully ready; mid-flight rebuilds happen in a staging
// directory and behind an atomically renamed backup, so no reader ever
// observes a half-extracted install at the canonical path.
//
// Concurrent EnsureReady calls on the same Provisioner are collapsed by a
// single-flight group: the second caller waits for the first attempt and
// shares its outcome instead of starting a duplicate.
package provision
