// SPDX-License-Identifier: MPL-2.0

// Package platform provides cross-platform compatibility utilities.
//
// This package centralizes the platform-specific naming conventions the
// runtime artifact catalogs depend on: OS/architecture labels as upstream
// distributions spell them, and executable filename suffixes.
package platform
