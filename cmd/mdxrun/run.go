// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/markitdownx/mdxrun/internal/proc"
)

var (
	runTimeout     time.Duration
	runIdleTimeout time.Duration
	runDir         string

	runCmd = &cobra.Command{
		Use:   "run [flags] -- <command> [args...]",
		Short: "Run a command with stream capture and timeouts",
		Long: `Run a command through the supervised execution primitive: stdout and
stderr are drained concurrently (no pipe deadlock on chatty processes),
and the process tree is killed when a timeout fires.

--timeout bounds the whole run. --idle-timeout instead bounds the gap
between output lines, so long-running chatty work survives while a hung
process does not. The flags are mutually exclusive.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if runTimeout > 0 && runIdleTimeout > 0 {
				return errors.New("--timeout and --idle-timeout are mutually exclusive")
			}

			// Config supplies defaults; flags win.
			if runTimeout == 0 && runIdleTimeout == 0 {
				if app, err := loadApp(cmd.Context()); err == nil {
					runTimeout = time.Duration(app.cfg.Exec.TimeoutSec) * time.Second
					if runTimeout == 0 {
						runIdleTimeout = time.Duration(app.cfg.Exec.IdleTimeoutSec) * time.Second
					}
				}
			}

			policy := proc.NoTimeout
			switch {
			case runTimeout > 0:
				policy = proc.FixedTimeout(runTimeout)
			case runIdleTimeout > 0:
				policy = proc.IdleTimeout(runIdleTimeout)
			}

			stdout := cmd.OutOrStdout()
			stderr := cmd.ErrOrStderr()

			runner := proc.NewRunner()
			res, err := runner.Execute(cmd.Context(), proc.Spec{
				Command: args[0],
				Args:    args[1:],
				Dir:     runDir,
				Timeout: policy,
				OnStdoutLine: func(line string) {
					fmt.Fprintln(stdout, line)
				},
				OnStderrLine: func(line string) {
					fmt.Fprintln(stderr, line)
				},
			})
			if err != nil {
				return err
			}
			if !res.Success() {
				return &ExitError{Code: res.ExitCode, Err: res.AsError(args[0])}
			}
			if verbose {
				fmt.Fprintln(stderr, SubtitleStyle.Render(
					fmt.Sprintf("completed in %s", res.Duration.Round(time.Millisecond))))
			}
			return nil
		},
	}
)

func init() {
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "kill the run after this long (0 = no limit)")
	runCmd.Flags().DurationVar(&runIdleTimeout, "idle-timeout", 0, "kill the run when no output arrives for this long (0 = disabled)")
	runCmd.Flags().StringVar(&runDir, "dir", "", "working directory (default: inherit)")
}
