package commands

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/dotcommander/simuwork/internal/clock"
	"github.com/dotcommander/simuwork/internal/demo"
	"github.com/dotcommander/simuwork/internal/models"
	"github.com/dotcommander/simuwork/internal/output"
	"github.com/dotcommander/simuwork/internal/report"
	"github.com/dotcommander/simuwork/internal/session"
	"github.com/dotcommander/simuwork/internal/timeline"
)

const defaultRunLimit = 10 * time.Minute

type runResult struct {
	Completed           bool              `json:"completed"`
	Phase               models.Phase      `json:"phase"`
	ObjectivesCompleted int               `json:"objectives_completed"`
	ObjectivesTotal     int               `json:"objectives_total"`
	ScenarioCompletions int               `json:"scenario_completions"`
	Messages            int               `json:"messages"`
	TimeElapsed         int               `json:"time_elapsed"`
	Progress            timeline.Progress `json:"progress"`
	Report              report.Report     `json:"report"`
}

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	var (
		flags      playbackFlags
		limit      time.Duration
		transcript bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the demo headless on a virtual clock and print the outcome as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := resolveSettings(cmd.Flags(), &flags)
			if err != nil {
				return cmdErr(err)
			}
			opts, err := sessionOptions(s, clock.NewVirtual(time.Now()), slog.Default())
			if err != nil {
				return cmdErr(err)
			}

			sess := session.New(opts)
			defer sess.Close()
			if transcript {
				detach := demo.NewRenderer(cmd.ErrOrStderr(), demo.ColorNever).Attach(sess.Store, sess.Guide, sess.Bus)
				defer detach()
			}

			completed, err := sess.RunHeadless(limit)
			if err != nil {
				return cmdErr(err)
			}

			snap := sess.Store.State()
			return output.PrintSuccess(runResult{
				Completed:           completed,
				Phase:               snap.Phase(),
				ObjectivesCompleted: snap.CompletedObjectives(),
				ObjectivesTotal:     len(snap.Objectives()),
				ScenarioCompletions: sess.Completions(),
				Messages:            len(snap.Messages()),
				TimeElapsed:         snap.TimeElapsed(),
				Progress:            sess.Timeline.Progress(),
				Report:              sess.Report(),
			})
		},
	}

	flags.register(cmd.Flags())
	cmd.Flags().DurationVar(&limit, "limit", defaultRunLimit, "Give up after this much virtual time")
	cmd.Flags().BoolVar(&transcript, "transcript", false, "Render the session to stderr while it runs")
	return cmd
}
