package commands

import (
	"github.com/spf13/cobra"

	"github.com/dotcommander/simuwork/internal/models"
	"github.com/dotcommander/simuwork/internal/output"
	"github.com/dotcommander/simuwork/internal/timeline"
)

// NewScriptCmd creates the script command group.
func NewScriptCmd() *cobra.Command {
	var format, path string

	cmd := &cobra.Command{
		Use:   "script",
		Short: "Print the demo script as YAML or JSON",
		Long:  "Print the built-in demo script, or a script file re-encoded, so it can be edited and played with --script.",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := timeline.ParseFormat(format)
			if err != nil {
				return cmdErr(err)
			}
			actions := timeline.Script()
			if path != "" {
				if actions, err = timeline.LoadScript(path); err != nil {
					return cmdErr(err)
				}
			}
			return timeline.WriteScript(cmd.OutOrStdout(), actions, f)
		},
	}

	cmd.Flags().StringVar(&format, "format", string(timeline.FormatYAML), "Output format: yaml or json")
	cmd.Flags().StringVar(&path, "script", "", "Script file to re-encode (default: built-in demo)")
	cmd.AddCommand(newScriptValidateCmd())
	return cmd
}

type validateResult struct {
	Path       string  `json:"path"`
	Actions    int     `json:"actions"`
	Narrations int     `json:"narrations"`
	Seconds    float64 `json:"duration_seconds"`
}

func newScriptValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a script file without playing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actions, err := timeline.LoadScript(args[0])
			if err != nil {
				return cmdErr(err)
			}
			res := validateResult{Path: args[0], Actions: len(actions), Seconds: actions[len(actions)-1].Time}
			for _, a := range actions {
				if a.Type == models.ActionShowNarration {
					res.Narrations++
				}
			}
			return output.PrintSuccess(res)
		},
	}
}
