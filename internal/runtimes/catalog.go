// SPDX-License-Identifier: MPL-2.0

package runtimes

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/markitdownx/mdxrun/internal/config"
	"github.com/markitdownx/mdxrun/internal/download"
	"github.com/markitdownx/mdxrun/internal/proc"
	"github.com/markitdownx/mdxrun/internal/provision"
	"github.com/markitdownx/mdxrun/internal/supervisor"
)

// Managed runtime names, as accepted by `mdxrun ensure <runtime>`.
const (
	RuntimePython = "python"
	RuntimeNode   = "node"
	RuntimeFFmpeg = "ffmpeg"
	RuntimeOllama = "ollama"
)

// ErrUnknownRuntime is returned for names outside the catalog.
var ErrUnknownRuntime = errors.New("unknown runtime")

type (
	// Catalog builds provisioners for the managed runtimes from loaded
	// configuration. One Catalog serves the whole process.
	Catalog struct {
		cfg        *config.Config
		installDir string
		downloads  *download.Engine
		runner     *proc.Runner
		logger     *log.Logger
	}

	// CatalogOption configures a Catalog during construction.
	CatalogOption func(*Catalog)
)

// WithCatalogDownloadEngine overrides the shared download engine.
func WithCatalogDownloadEngine(e *download.Engine) CatalogOption {
	return func(c *Catalog) {
		c.downloads = e
	}
}

// WithCatalogRunner overrides the process runner used by probes and
// post-install steps.
func WithCatalogRunner(r *proc.Runner) CatalogOption {
	return func(c *Catalog) {
		c.runner = r
	}
}

// WithCatalogLogger overrides the logger.
func WithCatalogLogger(l *log.Logger) CatalogOption {
	return func(c *Catalog) {
		c.logger = l
	}
}

// NewCatalog creates a Catalog. installDir is the base directory holding one
// install root per runtime.
func NewCatalog(cfg *config.Config, installDir string, opts ...CatalogOption) *Catalog {
	c := &Catalog{
		cfg:        cfg,
		installDir: installDir,
		downloads:  download.NewEngine(),
		runner:     proc.NewRunner(),
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Names lists the managed runtimes in display order.
func (c *Catalog) Names() []string {
	return []string{RuntimePython, RuntimeNode, RuntimeFFmpeg, RuntimeOllama}
}

// Provisioner builds the provisioner for the named runtime.
func (c *Catalog) Provisioner(name string, opts ...provision.Option) (*provision.Provisioner, error) {
	var (
		desc     provision.Descriptor
		resolver provision.Resolver
	)

	switch name {
	case RuntimePython:
		desc, resolver = c.python()
	case RuntimeNode:
		desc, resolver = c.node()
	case RuntimeFFmpeg:
		desc, resolver = c.ffmpeg()
	case RuntimeOllama:
		desc, resolver = c.ollama()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRuntime, name)
	}

	shared := []provision.Option{
		provision.WithDownloadEngine(c.downloads),
		provision.WithProvisionerLogger(c.logger),
	}
	return provision.NewProvisioner(desc, resolver, append(shared, opts...)...)
}

// OllamaSupervisor builds the daemon supervisor for a provisioned Ollama
// install.
func (c *Catalog) OllamaSupervisor(ready *provision.ReadyRuntime, opts ...supervisor.SupervisorOption) (*supervisor.Supervisor, error) {
	o := c.cfg.Ollama
	cfg := supervisor.Config{
		Name:           RuntimeOllama,
		ExecutablePath: ready.ExecutablePath,
		Args:           []string{"serve"},
		Env:            []string{"OLLAMA_HOST=" + o.Host},
		HealthURL:      o.HealthURL(),
		HealthInterval: o.HealthInterval(),
		HealthBudget:   o.HealthBudget(),
		StopGrace:      o.StopGrace(),
	}
	shared := []supervisor.SupervisorOption{supervisor.WithSupervisorLogger(c.logger)}
	return supervisor.New(cfg, append(shared, opts...)...)
}

// Sweeper builds the orphan sweeper used around daemon lifecycle changes.
func (c *Catalog) Sweeper() *supervisor.Sweeper {
	return supervisor.NewSweeper(supervisor.WithSweeperLogger(c.logger))
}

// root returns the canonical install directory for a runtime.
func (c *Catalog) root(name string) string {
	return filepath.Join(c.installDir, name)
}

// flattenSingleDir lifts the contents of a sole top-level directory up into
// root. Upstream archives (node dist, ffmpeg builds) unpack into a
// version-named directory; the canonical layout must not depend on the
// version string.
func flattenSingleDir(root string) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return err
	}
	if len(entries) != 1 || !entries[0].IsDir() {
		return nil
	}

	inner := filepath.Join(root, entries[0].Name())
	children, err := os.ReadDir(inner)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := os.Rename(filepath.Join(inner, child.Name()), filepath.Join(root, child.Name())); err != nil {
			return fmt.Errorf("flattening %s: %w", inner, err)
		}
	}
	return os.Remove(inner)
}

// executableFile reports whether path is a regular file the current user
// can execute.
func executableFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0o111 != 0 || filepath.Ext(path) == ".exe"
}
