// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/markitdownx/mdxrun/internal/provision"
)

var ensureCmd = &cobra.Command{
	Use:   "ensure [runtime...]",
	Short: "Provision managed runtimes",
	Long: `Make the named runtimes ready: resolve a version, download, extract,
post-process, verify, and pin. Runtimes that are already ready return
immediately. Without arguments every managed runtime is ensured.

A failed attempt rolls back to the previously working install.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}

		names := args
		if len(names) == 0 {
			names = app.catalog.Names()
		}

		failed := 0
		for _, name := range names {
			if !slices.Contains(app.catalog.Names(), name) {
				return fmt.Errorf("unknown runtime %q (managed: %v)", name, app.catalog.Names())
			}
			if err := ensureOne(cmd, app, name); err != nil {
				failed++
				fmt.Fprintln(cmd.ErrOrStderr(), ErrorStyle.Render("✗ ")+formatErrorForDisplay(err, verbose))
			}
		}
		if failed > 0 {
			return &ExitError{Code: 1, Err: fmt.Errorf("%d runtime(s) failed to provision", failed)}
		}
		return nil
	},
}

func ensureOne(cmd *cobra.Command, app *appState, name string) error {
	out := cmd.OutOrStdout()

	p, err := app.catalog.Provisioner(name, provision.WithStatus(func(stage provision.State, msg string) {
		if verbose {
			fmt.Fprintf(out, "%s %s\n", SubtitleStyle.Render("["+stage.String()+"]"), msg)
		}
	}))
	if err != nil {
		return err
	}

	ready, err := p.EnsureReady(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s %s %s %s\n",
		SuccessStyle.Render("✓"),
		RuntimeStyle.Render(ready.Name),
		ready.Version,
		SubtitleStyle.Render(ready.Root))
	return nil
}
