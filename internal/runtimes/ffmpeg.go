// SPDX-License-Identifier: MPL-2.0

package runtimes

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/markitdownx/mdxrun/internal/config"
	"github.com/markitdownx/mdxrun/internal/provision"
	"github.com/markitdownx/mdxrun/internal/version"
	"github.com/markitdownx/mdxrun/pkg/platform"
)

const (
	ffmpegMinVersion = "5.0.0"

	// Static ffmpeg builds, tagged per upstream ffmpeg version.
	ffmpegOwner = "GyanD"
	ffmpegRepo  = "codexffmpeg"
)

// ffmpeg builds the descriptor and resolver for the ffmpeg runtime, fed by
// the static-build GitHub releases.
func (c *Catalog) ffmpeg() (provision.Descriptor, provision.Resolver) {
	root := c.root(RuntimeFFmpeg)

	index := version.Index(version.NewGitHubReleaseIndex(ffmpegOwner, ffmpegRepo))
	if pin := c.cfg.FFmpeg.Version; pin != "" {
		index = version.StaticIndex{pin}
	}

	desc := provision.Descriptor{
		Name:        RuntimeFFmpeg,
		InstallRoot: root,
		MinVersion:  ffmpegMinVersion,
		ArtifactURL: ffmpegArtifactURL,
		ArchiveName: func(v string) string { return "ffmpeg-" + v + ".zip" },
		ByteCap:     config.MiB(c.cfg.FFmpeg.ByteCapMB),
		Probe: func(root string) bool {
			return executableFile(ffmpegExe(root))
		},
		ExecutablePath: ffmpegExe,
		// Build archives unpack into ffmpeg-<version>-essentials_build/.
		PostInstall: func(_ context.Context, root string) error {
			return flattenSingleDir(root)
		},
	}
	return desc, version.NewResolver(index, ffmpegMinVersion, ffmpegArtifactURL, version.WithResolverLogger(c.logger))
}

func ffmpegArtifactURL(v string) string {
	return fmt.Sprintf("https://github.com/%s/%s/releases/download/%s/ffmpeg-%s-essentials_build.zip",
		ffmpegOwner, ffmpegRepo, v, v)
}

func ffmpegExe(root string) string {
	return filepath.Join(root, "bin", "ffmpeg"+platform.ExeSuffix())
}
