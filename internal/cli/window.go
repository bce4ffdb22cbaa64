package cli

import (
	"github.com/spf13/cobra"

	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/engine"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/window"
)

// WindowOptions holds flags for the window command.
type WindowOptions struct {
	*RootOptions

	// Clock overrides the current time (for testing).
	Clock engine.Clock
}

// NewWindowCommand creates the window command.
func NewWindowCommand(rootOpts *RootOptions) *cobra.Command {
	return newWindowCommand(&WindowOptions{RootOptions: rootOpts})
}

func newWindowCommand(opts *WindowOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "window",
		Short: "Show the next window to process and any gaps",
		Long: `Compute the next window from the query_window section and the end of the
last successful run, and list the unprocessed intervals between the two.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(opts.RootOptions, cmd)
			cfg, err := loadConfig(opts.RootOptions)
			if err != nil {
				return f.Fail(ExitCommandError, "failed to load config", err)
			}
			st, err := openStore(opts.RootOptions, cfg)
			if err != nil {
				return f.Fail(ExitCommandError, "failed to open record store", err)
			}
			defer st.Close()

			var clock engine.Clock = engine.SystemClock{}
			if opts.Clock != nil {
				clock = opts.Clock
			}
			next, lastEnd, err := nextWindow(cmd.Context(), st, cfg, clock.Now())
			if err != nil {
				return f.Fail(ExitCommandError, "failed to compute window", err)
			}

			v := windowView{Pipeline: cfg.PipelineName(), Next: next, LastSuccessfulEnd: lastEnd}
			if lastEnd != nil {
				v.Gaps = window.DetectGaps(*lastEnd, next.Start, cfg.WindowSettings().Granularity)
			}
			return f.Success(v)
		},
	}
}
