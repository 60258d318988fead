// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/markitdownx/mdxrun/internal/download"
	"github.com/markitdownx/mdxrun/internal/runtimes"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage the supervised Ollama daemon",
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Provision and start the Ollama daemon",
	Long: `Ensure the Ollama runtime is installed, sweep orphaned daemon instances
left behind by earlier crashed hosts, then start the daemon and wait for
its health endpoint to answer. The daemon keeps running after mdxrun
exits; use 'mdxrun daemon stop' to shut it down.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}

		p, err := app.catalog.Provisioner(runtimes.RuntimeOllama)
		if err != nil {
			return err
		}
		ready, err := p.EnsureReady(cmd.Context())
		if err != nil {
			return err
		}

		if healthy(cmd.Context(), app) {
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("✓ ")+"daemon already running at "+app.cfg.Ollama.Host)
			return nil
		}

		// Any instance still running our binary at this point is an orphan:
		// it holds the port but answers no health check we can trust.
		swept, err := app.catalog.Sweeper().Sweep(cmd.Context(), ready.ExecutablePath, 0)
		if err != nil {
			note(cmd, WarningStyle.Render("! ")+fmt.Sprintf("orphan sweep failed: %v", err))
		} else if swept > 0 {
			note(cmd, WarningStyle.Render("! ")+fmt.Sprintf("swept %d orphaned daemon instance(s)", swept))
		}

		s, err := app.catalog.OllamaSupervisor(ready)
		if err != nil {
			return err
		}
		if err := s.Start(cmd.Context()); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s%s %s (pid %d) at %s\n",
			SuccessStyle.Render("✓ "),
			RuntimeStyle.Render(ready.Name),
			ready.Version, s.PID(), app.cfg.Ollama.Host)
		return nil
	},
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop every running Ollama daemon instance",
	Long: `Terminate every process running the managed Ollama binary: the one
started by 'mdxrun daemon start' and any orphans from crashed hosts.
Each instance gets a graceful signal, a grace period, then a kill.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}

		p, err := app.catalog.Provisioner(runtimes.RuntimeOllama)
		if err != nil {
			return err
		}
		desc := p.Descriptor()
		exe := desc.ExecutablePath(desc.InstallRoot)

		swept, err := app.catalog.Sweeper().Sweep(cmd.Context(), exe, 0)
		if err != nil {
			return err
		}
		if swept == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), SubtitleStyle.Render("no daemon instances running"))
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%sstopped %d daemon instance(s)\n", SuccessStyle.Render("✓ "), swept)
		return nil
	},
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the Ollama daemon health endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		if healthy(cmd.Context(), app) {
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("✓ ")+"healthy at "+app.cfg.Ollama.Host)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), ErrorStyle.Render("✗ ")+"no answer at "+app.cfg.Ollama.Host)
		return &ExitError{Code: 1}
	},
}

func init() {
	daemonCmd.AddCommand(daemonStartCmd)
	daemonCmd.AddCommand(daemonStopCmd)
	daemonCmd.AddCommand(daemonStatusCmd)
}

// healthy performs one short health poll against the configured daemon host.
func healthy(ctx context.Context, app *appState) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, app.cfg.Ollama.HealthURL(), nil)
	if err != nil {
		return false
	}
	resp, err := download.NewProbeClient().Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// note writes one status line to the command's stderr.
func note(cmd *cobra.Command, line string) {
	fmt.Fprintln(cmd.ErrOrStderr(), line)
}
