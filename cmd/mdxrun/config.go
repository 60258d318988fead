// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/markitdownx/mdxrun/internal/config"
)

var (
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Inspect mdxrun configuration",
	}

	configShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the effective configuration after merging built-in defaults,
the config file, and MDXRUN_* environment overrides.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadApp(cmd.Context())
			if err != nil {
				cmd.PrintErrln(ErrorStyle.Render("✗ " + formatErrorForDisplay(err, verbose)))
				return &ExitError{Code: 1, Err: err}
			}

			out, err := yaml.Marshal(app.cfg)
			if err != nil {
				return err
			}

			cmd.Println(SubtitleStyle.Render("# effective configuration"))
			cmd.Printf("# install dir: %s\n", app.installDir)
			if app.cfgSource != "" {
				cmd.Printf("# loaded from: %s\n", app.cfgSource)
			} else if dir, derr := config.ConfigDir(); derr == nil {
				cmd.Printf("# defaults only (no file in %s)\n", dir)
			}
			cmd.Print(string(out))
			return nil
		},
	}
)

func init() {
	configCmd.AddCommand(configShowCmd)
}
