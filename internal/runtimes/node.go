// SPDX-License-Identifier: MPL-2.0

package runtimes

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/markitdownx/mdxrun/internal/config"
	"github.com/markitdownx/mdxrun/internal/proc"
	"github.com/markitdownx/mdxrun/internal/provision"
	"github.com/markitdownx/mdxrun/internal/version"
	"github.com/markitdownx/mdxrun/pkg/platform"
)

const (
	nodeMinVersion = "18.0.0"
	nodeIndexURL   = "https://nodejs.org/dist/index.json"
)

// node builds the descriptor and resolver for the Node.js runtime, fed by
// the upstream dist index.
func (c *Catalog) node() (provision.Descriptor, provision.Resolver) {
	root := c.root(RuntimeNode)

	index := version.Index(version.NewJSONIndex(nodeIndexURL))
	if pin := c.cfg.Node.Version; pin != "" {
		index = version.StaticIndex{pin}
	}

	desc := provision.Descriptor{
		Name:        RuntimeNode,
		InstallRoot: root,
		MinVersion:  nodeMinVersion,
		ArtifactURL: nodeArtifactURL,
		ArchiveName: func(v string) string { return "node-" + v + nodeArchiveExt() },
		ByteCap:     config.MiB(c.cfg.Node.ByteCapMB),
		Probe:       c.nodeProbe,
		ExecutablePath: nodeExe,
		// Dist archives unpack into node-<version>-<os>-<arch>/.
		PostInstall: func(_ context.Context, root string) error {
			return flattenSingleDir(root)
		},
	}
	return desc, version.NewResolver(index, nodeMinVersion, nodeArtifactURL, version.WithResolverLogger(c.logger))
}

// nodeProbe runs `node --version` under a short timeout. A binary that
// exists but cannot execute (wrong arch, broken unpack) must not count as
// ready.
func (c *Catalog) nodeProbe(root string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	res, err := c.runner.Execute(ctx, proc.Spec{
		Command: nodeExe(root),
		Args:    []string{"--version"},
		Timeout: proc.FixedTimeout(10 * time.Second),
	})
	if err != nil || !res.Success() {
		return false
	}
	return strings.HasPrefix(strings.TrimSpace(res.Stdout), "v")
}

func nodeArtifactURL(v string) string {
	return fmt.Sprintf("https://nodejs.org/dist/%s/node-%s-%s-%s%s",
		v, v, platform.NodeOS(), platform.NodeArch(), nodeArchiveExt())
}

func nodeArchiveExt() string {
	if runtime.GOOS == platform.Windows {
		return ".zip"
	}
	return ".tar.gz"
}

func nodeExe(root string) string {
	if runtime.GOOS == platform.Windows {
		return filepath.Join(root, "node.exe")
	}
	return filepath.Join(root, "bin", "node")
}
