// SPDX-License-Identifier: MPL-2.0

package platform

import "runtime"

// OS name constants for runtime.GOOS comparisons.
// Centralizes the string literals to avoid scattered magic strings.
const (
	Windows = "windows"
	Darwin  = "darwin"
	Linux   = "linux"
)

// ExeSuffix returns the executable filename suffix for the current OS:
// ".exe" on Windows, empty elsewhere.
func ExeSuffix() string {
	if runtime.GOOS == Windows {
		return ".exe"
	}
	return ""
}

// NodeOS maps runtime.GOOS to the label nodejs.org uses in dist archive
// names ("win", "darwin", "linux").
func NodeOS() string {
	if runtime.GOOS == Windows {
		return "win"
	}
	return runtime.GOOS
}

// NodeArch maps runtime.GOARCH to the label nodejs.org uses in dist archive
// names ("x64", "arm64").
func NodeArch() string {
	switch runtime.GOARCH {
	case "amd64":
		return "x64"
	default:
		return runtime.GOARCH
	}
}

// OllamaArch maps runtime.GOARCH to the label ollama release assets use.
func OllamaArch() string {
	switch runtime.GOARCH {
	case "arm64":
		return "arm64"
	default:
		return "amd64"
	}
}
