// SPDX-License-Identifier: MPL-2.0

// Package config loads mdxrun configuration: a YAML file in the platform
// config directory, MDXRUN_* environment overrides, and defaults for every
// knob. Loading never requires a config file to exist.
package config
