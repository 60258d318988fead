// SPDX-License-Identifier: MPL-2.0

package runtimes

import (
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/markitdownx/mdxrun/internal/config"
	"github.com/markitdownx/mdxrun/internal/provision"
	"github.com/markitdownx/mdxrun/internal/version"
	"github.com/markitdownx/mdxrun/pkg/platform"
)

const ollamaMinVersion = "0.1.0"

// ollama builds the descriptor and resolver for the Ollama daemon. The
// binary is provisioned like any other runtime; running it goes through the
// Supervisor (see Catalog.OllamaSupervisor).
func (c *Catalog) ollama() (provision.Descriptor, provision.Resolver) {
	root := c.root(RuntimeOllama)

	index := version.Index(version.NewGitHubReleaseIndex("ollama", "ollama"))
	if pin := c.cfg.Ollama.Version; pin != "" {
		index = version.StaticIndex{pin}
	}

	desc := provision.Descriptor{
		Name:        RuntimeOllama,
		InstallRoot: root,
		MinVersion:  ollamaMinVersion,
		ArtifactURL: ollamaArtifactURL,
		ArchiveName: func(v string) string { return "ollama-" + v + ollamaArchiveExt() },
		ByteCap:     config.MiB(c.cfg.Ollama.ByteCapMB),
		Probe: func(root string) bool {
			return executableFile(ollamaExe(root))
		},
		ExecutablePath: ollamaExe,
	}
	return desc, version.NewResolver(index, ollamaMinVersion, ollamaArtifactURL, version.WithResolverLogger(c.logger))
}

// ollamaArtifactURL maps a release tag to its platform asset. Release
// layouts differ per OS: a zip of binary plus libraries on Windows, a
// tarball elsewhere.
func ollamaArtifactURL(v string) string {
	base := fmt.Sprintf("https://github.com/ollama/ollama/releases/download/%s/", v)
	switch runtime.GOOS {
	case platform.Windows:
		return base + "ollama-windows-amd64.zip"
	case platform.Darwin:
		return base + "ollama-darwin.tgz"
	default:
		return base + "ollama-linux-" + platform.OllamaArch() + ".tgz"
	}
}

func ollamaArchiveExt() string {
	if runtime.GOOS == platform.Windows {
		return ".zip"
	}
	return ".tgz"
}

// ollamaExe returns the daemon binary inside an install root. Asset layouts
// differ: Windows and macOS unpack the binary at the top level, Linux under
// bin/.
func ollamaExe(root string) string {
	switch runtime.GOOS {
	case platform.Windows:
		return filepath.Join(root, "ollama.exe")
	case platform.Darwin:
		return filepath.Join(root, "ollama")
	default:
		return filepath.Join(root, "bin", "ollama")
	}
}
