// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for mdxrun.
//
// This package implements the Cobra command hierarchy: the root command,
// runtime provisioning (ensure), supervised execution (run), daemon
// lifecycle (daemon start/stop/status), and configuration inspection.
package cmd
