package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/drive"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/store"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	var start, end string

	cmd := &cobra.Command{
		Use:   "status [run-id]",
		Short: "Show one run and its phases",
		Long: `Show a run's status and per-phase records.

With a run id, that run is shown. With --start and --end, the most recent
run over that window. Otherwise the pipeline's most recent run.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return f.Fail(ExitCommandError, "failed to load config", err)
			}
			st, err := openStore(rootOpts, cfg)
			if err != nil {
				return f.Fail(ExitCommandError, "failed to open record store", err)
			}
			defer func() {
				if closeErr := st.Close(); closeErr != nil {
					slog.Error("error closing record store", "error", closeErr)
				}
			}()

			var runID string
			if len(args) == 1 {
				runID = args[0]
			}
			run, err := findRun(cmd.Context(), st, cfg.PipelineName(), runID, start, end)
			if err != nil {
				return f.Fail(ExitCommandError, "failed to find run", err)
			}
			return f.Success(runView{Run: run})
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "window start")
	cmd.Flags().StringVar(&end, "end", "", "window end")
	return cmd
}

func findRun(ctx context.Context, st *store.Store, pipeline, runID, start, end string) (*drive.PipelineRun, error) {
	if runID != "" {
		return st.GetRun(ctx, runID)
	}
	w, explicit, err := explicitWindow(start, end)
	if err != nil {
		return nil, err
	}
	if explicit {
		return st.LatestRun(ctx, pipeline, w.Start, w.End)
	}
	runs, err := st.ListRuns(ctx, pipeline, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("%w for pipeline %q", store.ErrNotFound, pipeline)
	}
	return runs[0], nil
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the pipeline's runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			if limit <= 0 {
				return f.Fail(ExitCommandError, "invalid limit", errors.New("--limit must be positive"))
			}
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return f.Fail(ExitCommandError, "failed to load config", err)
			}
			st, err := openStore(rootOpts, cfg)
			if err != nil {
				return f.Fail(ExitCommandError, "failed to open record store", err)
			}
			defer st.Close()

			runs, err := st.ListRuns(cmd.Context(), cfg.PipelineName(), limit)
			if err != nil {
				return f.Fail(ExitCommandError, "failed to list runs", err)
			}
			return f.Success(historyView{Pipeline: cfg.PipelineName(), Runs: runs})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs to list")
	return cmd
}
