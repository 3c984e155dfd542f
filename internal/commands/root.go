package commands

import (
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dotcommander/simuwork/internal/app"
	"github.com/dotcommander/simuwork/internal/output"
)

// Execute runs the CLI application.
func Execute(version string) error {
	slog.SetDefault(newLogger(slog.LevelInfo, os.Stderr))

	err := newRootCmd(version).Execute()
	if err != nil {
		var pe printedError
		if !errors.As(err, &pe) {
			slog.Error("command failed", "error", err.Error())
		}
	}
	return err
}

func newRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:           "simuwork",
		Short:         "Scripted multi-agent mentorship demo (payment API incident)",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			showVersion, _ := cmd.Flags().GetBool("version")
			if showVersion {
				type resp struct {
					Version string `json:"version"`
				}
				return output.PrintSuccess(resp{Version: version})
			}
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, _ := cmd.Flags().GetString("log-level")
			if level == "" {
				// A broken config is reported by the command itself.
				s, _ := app.EffectiveSettings()
				level = s.LogLevel
			}
			slog.SetDefault(newLogger(parseLevel(level), cmd.ErrOrStderr()))
			return nil
		},
	}

	root.PersistentFlags().String("log-level", "", "Log level: trace, debug, info, warn, error (default: config log_level)")
	root.Flags().BoolP("version", "v", false, "version for simuwork")

	root.AddCommand(NewPlayCmd())
	root.AddCommand(NewRunCmd())
	root.AddCommand(NewScriptCmd())
	root.AddCommand(NewConfigCmd())
	return root
}
