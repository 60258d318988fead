// SPDX-License-Identifier: MPL-2.0

package runtimes

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/markitdownx/mdxrun/internal/config"
	"github.com/markitdownx/mdxrun/internal/download"
	"github.com/markitdownx/mdxrun/internal/proc"
	"github.com/markitdownx/mdxrun/internal/provision"
	"github.com/markitdownx/mdxrun/internal/version"
	"github.com/markitdownx/mdxrun/pkg/platform"
)

const (
	pythonMinVersion = "3.10.0"

	// getPipURL is the upstream pip bootstrap script. The embeddable
	// distribution ships without pip.
	getPipURL     = "https://bootstrap.pypa.io/get-pip.py"
	getPipByteCap = 5 << 20
)

// pythonCandidates are the embeddable versions offered when no pin is
// configured, newest first. The resolver's fetchability probe drops entries
// python.org no longer serves.
var pythonCandidates = version.StaticIndex{
	"3.13.1",
	"3.12.8",
	"3.12.7",
	"3.11.9",
}

// python builds the descriptor and resolver for the embedded interpreter.
// The embeddable distribution is published for Windows; on other platforms
// provisioning fails at download and callers fall back to a system
// interpreter.
func (c *Catalog) python() (provision.Descriptor, provision.Resolver) {
	root := c.root(RuntimePython)

	index := version.Index(pythonCandidates)
	if pin := c.cfg.Python.Version; pin != "" {
		index = version.StaticIndex{pin}
	}

	artifactURL := func(v string) string {
		return fmt.Sprintf("https://www.python.org/ftp/python/%s/python-%s-embed-%s.zip", v, v, embedArch())
	}

	desc := provision.Descriptor{
		Name:        RuntimePython,
		InstallRoot: root,
		MinVersion:  pythonMinVersion,
		ArtifactURL: artifactURL,
		ArchiveName: func(v string) string { return "python-" + v + "-embed.zip" },
		ByteCap:     config.MiB(c.cfg.Python.ByteCapMB),
		Probe: func(root string) bool {
			if _, err := os.Stat(pythonExe(root)); err != nil {
				return false
			}
			info, err := os.Stat(sitePackagesDir(root))
			return err == nil && info.IsDir()
		},
		ExecutablePath: pythonExe,
		PostInstall:    c.pythonPostInstall,
	}
	return desc, version.NewResolver(index, pythonMinVersion, artifactURL, version.WithResolverLogger(c.logger))
}

// pythonPostInstall turns a bare embeddable unpack into a usable
// interpreter: enable site-packages, bootstrap pip, install the configured
// package list.
func (c *Catalog) pythonPostInstall(ctx context.Context, root string) error {
	if err := enableSitePackages(root); err != nil {
		return fmt.Errorf("enabling site-packages: %w", err)
	}
	if err := c.bootstrapPip(ctx, root); err != nil {
		return err
	}
	c.installPythonPackages(ctx, root)
	return nil
}

// enableSitePackages rewrites the embeddable ._pth file so `import site`
// runs and site-packages is on the path, and creates the site-packages
// directory. A layout without a ._pth file (a non-embeddable unpack) is
// left as is.
func enableSitePackages(root string) error {
	if err := os.MkdirAll(sitePackagesDir(root), 0o755); err != nil {
		return err
	}

	matches, err := filepath.Glob(filepath.Join(root, "python*._pth"))
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return nil
	}

	pth := matches[0]
	data, err := os.ReadFile(pth)
	if err != nil {
		return err
	}

	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	hasSitePackages := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "#import site" {
			lines[i] = "import site"
		}
		if trimmed == sitePackagesPthEntry {
			hasSitePackages = true
		}
	}
	if !hasSitePackages {
		// Keep the "import site" line last: path entries must precede it.
		out := make([]string, 0, len(lines)+1)
		inserted := false
		for _, line := range lines {
			if !inserted && strings.TrimSpace(line) == "import site" {
				out = append(out, sitePackagesPthEntry)
				inserted = true
			}
			out = append(out, line)
		}
		if !inserted {
			out = append(out, sitePackagesPthEntry)
		}
		lines = out
	}

	return os.WriteFile(pth, []byte(strings.Join(lines, "\n")), 0o644)
}

const sitePackagesPthEntry = `Lib\site-packages`

// bootstrapPip downloads and runs get-pip.py under the fresh interpreter.
// Its failure fails provisioning: the interpreter exists to run installed
// packages.
func (c *Catalog) bootstrapPip(ctx context.Context, root string) error {
	script := filepath.Join(root, "get-pip.py")
	if _, err := c.downloads.Download(ctx, download.Task{
		URL:     getPipURL,
		Dest:    script,
		ByteCap: getPipByteCap,
	}); err != nil {
		return fmt.Errorf("fetching pip bootstrap script: %w", err)
	}
	defer func() { _ = os.Remove(script) }()

	res, err := c.runner.Execute(ctx, proc.Spec{
		Command: pythonExe(root),
		Args:    []string{script, "--no-warn-script-location"},
		Dir:     root,
		Timeout: proc.FixedTimeout(c.pipTimeout()),
	})
	if err != nil {
		return fmt.Errorf("bootstrapping pip: %w", err)
	}
	if !res.Success() {
		return fmt.Errorf("bootstrapping pip: %w", res.AsError("get-pip.py"))
	}
	return nil
}

// installPythonPackages runs one pip install per configured package, in
// order. A failing package is logged and skipped; the interpreter stays
// usable for the packages that did install.
func (c *Catalog) installPythonPackages(ctx context.Context, root string) {
	for _, pkg := range c.cfg.Python.Packages {
		if ctx.Err() != nil {
			return
		}
		start := time.Now()
		res, err := c.runner.Execute(ctx, proc.Spec{
			Command: pythonExe(root),
			Args:    []string{"-m", "pip", "install", "--no-warn-script-location", pkg},
			Dir:     root,
			Timeout: proc.FixedTimeout(c.pipTimeout()),
		})
		switch {
		case err != nil:
			c.logger.Warn("package install could not run", "package", pkg, "error", err)
		case !res.Success():
			c.logger.Warn("package install failed", "package", pkg, "error", res.AsError("pip install "+pkg))
		default:
			c.logger.Info("package installed", "package", pkg, "duration", time.Since(start).Round(time.Millisecond))
		}
	}
}

func (c *Catalog) pipTimeout() time.Duration {
	return time.Duration(c.cfg.Python.PipTimeoutSec) * time.Second
}

// pythonExe returns the interpreter path inside an install root.
func pythonExe(root string) string {
	if runtime.GOOS == platform.Windows {
		return filepath.Join(root, "python.exe")
	}
	return filepath.Join(root, "bin", "python3")
}

// sitePackagesDir returns the package directory inside an install root.
// The embeddable layout uses Lib\site-packages on every platform.
func sitePackagesDir(root string) string {
	return filepath.Join(root, "Lib", "site-packages")
}

// embedArch maps runtime.GOARCH to the label python.org uses in embeddable
// archive names.
func embedArch() string {
	if runtime.GOARCH == "arm64" {
		return "arm64"
	}
	return "amd64"
}
