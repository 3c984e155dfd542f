package commands

import (
	"github.com/spf13/cobra"

	"github.com/dotcommander/simuwork/internal/app"
	"github.com/dotcommander/simuwork/internal/output"
)

type configResult struct {
	Source   string       `json:"source"`
	Settings app.Settings `json:"settings"`
}

// NewConfigCmd creates the config command group.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show effective settings (config.yaml overlaid with SIMUWORK_* env)",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.EffectiveSettings()
			if err != nil {
				return cmdErr(err)
			}
			source := app.SettingsSource()
			if source == "" {
				source = "defaults"
			}
			return output.PrintSuccess(configResult{Source: source, Settings: s})
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create ~/.config/simuwork/config.yaml if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := app.EnsureConfigDir()
			if err != nil {
				return cmdErr(err)
			}
			type resp struct {
				Path string `json:"path"`
			}
			return output.PrintSuccess(resp{Path: path})
		},
	})
	return cmd
}
