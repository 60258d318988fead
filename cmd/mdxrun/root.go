// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/markitdownx/mdxrun/internal/buildinfo"
	"github.com/markitdownx/mdxrun/internal/config"
	"github.com/markitdownx/mdxrun/internal/issue"
	"github.com/markitdownx/mdxrun/internal/runtimes"
)

var (
	// verbose enables debug logging and full error chains.
	verbose bool
	// cfgFile allows specifying a custom config file.
	cfgFile string

	// rootCmd represents the base command when called without any subcommands.
	rootCmd = &cobra.Command{
		Use:   "mdxrun",
		Short: "Provision and run managed external runtimes",
		Long: TitleStyle.Render("mdxrun") + SubtitleStyle.Render(" - provision and run managed external runtimes") + `

mdxrun downloads, verifies, and pins the external runtimes a document
conversion pipeline depends on: an embedded Python interpreter with its
package set, Node.js, ffmpeg, and the Ollama daemon. Installs are atomic
with automatic rollback, and the Ollama daemon is supervised with health
checks and orphan cleanup.

` + SubtitleStyle.Render("Examples:") + `
  mdxrun ensure                 Provision every managed runtime
  mdxrun ensure python          Provision only the Python runtime
  mdxrun run -- python x.py     Run a command with stream capture and timeouts
  mdxrun daemon start           Start the supervised Ollama daemon
  mdxrun status                 Show installed runtimes and versions`,
	}
)

func init() {
	cobra.OnInitialize(initLogging)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/mdxrun/config.yaml)")

	rootCmd.AddCommand(ensureCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
}

// initLogging applies the --verbose flag to the default logger before any
// RunE handler executes.
func initLogging() {
	if verbose {
		log.SetLevel(log.DebugLevel)
		log.SetReportCaller(true)
	}
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if buildinfo.Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.BuildTime)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	// Use fang.Execute for enhanced Cobra styling.
	// Pass version via fang.WithVersion() since fang overrides rootCmd.Version.
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(int(exitErr.Code))
		}
		os.Exit(1)
	}
}

// appState bundles the loaded configuration and the runtime catalog for
// command handlers.
type appState struct {
	cfg        *config.Config
	cfgSource  string
	installDir string
	catalog    *runtimes.Catalog
}

// loadApp loads configuration and builds the catalog. Every subcommand goes
// through here so --config and env overrides behave identically everywhere.
func loadApp(ctx context.Context) (*appState, error) {
	loaded, err := config.NewProvider().Load(ctx, config.LoadOptions{ConfigFilePath: cfgFile})
	if err != nil {
		return nil, err
	}
	cfg := loaded.Config
	if cfg.UI.Verbose && !verbose {
		verbose = true
		log.SetLevel(log.DebugLevel)
	}

	installDir, err := cfg.ResolveInstallDir()
	if err != nil {
		return nil, issue.WrapWithOperation(err, "resolve install directory")
	}
	return &appState{
		cfg:        cfg,
		cfgSource:  loaded.Source,
		installDir: installDir,
		catalog:    runtimes.NewCatalog(cfg, installDir),
	}, nil
}

// formatErrorForDisplay renders an error for the terminal, with suggestions
// when the error carries them.
func formatErrorForDisplay(err error, verbose bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verbose)
	}
	return err.Error()
}
