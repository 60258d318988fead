// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show installed runtimes and their pinned versions",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, TitleStyle.Render("Managed runtimes")+SubtitleStyle.Render(" ("+app.installDir+")"))

		for _, name := range app.catalog.Names() {
			p, err := app.catalog.Provisioner(name)
			if err != nil {
				return err
			}
			if v, ok := p.Installed(); ok {
				fmt.Fprintf(out, "  %s %-8s %s\n", SuccessStyle.Render("✓"), RuntimeStyle.Render(name), v)
			} else {
				fmt.Fprintf(out, "  %s %-8s %s\n", SubtitleStyle.Render("-"), RuntimeStyle.Render(name), SubtitleStyle.Render("not installed"))
			}
		}
		return nil
	},
}
