package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/config"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/engine"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/phase"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/sqlphases"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Start  string
	End    string
	DryRun bool

	// Implementations overrides the SQL phases built from the config's
	// database section (for testing).
	Implementations *phase.Implementations
	// Clock and IDs override the controller defaults (for testing).
	Clock engine.Clock
	IDs   engine.IDGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}
	return newRunCommand(opts)
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline over one window",
		Long: `Run every enabled phase of the pipeline over one window and record the run.

Without --start and --end the window is computed from the query_window
section and the end of the last successful run. If the most recent run over
the window failed, its completed phases are skipped.

Exits 1 when the run fails and 2 when it could not be started.

Example:
  pipectl run -c orders.yaml
  pipectl run -c orders.yaml --start 2025-11-15T10:00:00Z --end 2025-11-15T11:00:00Z
  pipectl run -c orders.yaml --dry-run --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Start, "start", "", "window start (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.End, "end", "", "window end (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "show which phases would run without running them")

	return cmd
}

func runPipeline(opts *RunOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return f.Fail(ExitCommandError, "failed to load config", err)
	}

	st, err := openStore(opts.RootOptions, cfg)
	if err != nil {
		return f.Fail(ExitCommandError, "failed to open record store", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing record store", "error", closeErr)
		}
	}()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	var clock engine.Clock = engine.SystemClock{}
	if opts.Clock != nil {
		clock = opts.Clock
	}

	w, explicit, err := explicitWindow(opts.Start, opts.End)
	if err != nil {
		return f.Fail(ExitCommandError, "invalid window", err)
	}
	if !explicit {
		if w, _, err = nextWindow(ctx, st, cfg, clock.Now()); err != nil {
			return f.Fail(ExitCommandError, "failed to compute window", err)
		}
	}

	impls := opts.Implementations
	if impls == nil {
		var closeDB func() error
		impls, closeDB, err = sqlImplementations(cfg)
		if err != nil {
			return f.Fail(ExitCommandError, "failed to prepare phases", err)
		}
		defer closeDB()
	}

	ctlOpts := []engine.Option{engine.WithClock(clock)}
	if opts.IDs != nil {
		ctlOpts = append(ctlOpts, engine.WithIDGenerator(opts.IDs))
	}
	ctl := engine.NewController(st, impls, ctlOpts...)

	if opts.DryRun {
		plan, err := ctl.Plan(ctx, cfg, w)
		if err != nil {
			return f.Fail(ExitCommandError, "failed to plan run", err)
		}
		return f.Success(newPlanView(cfg.PipelineName(), w, plan))
	}

	f.VerboseLog("running %s over %s", cfg.PipelineName(), w)
	run, err := ctl.Run(ctx, cfg, w)
	switch {
	case err == nil:
		return f.Success(runView{Run: run})
	case engine.IsRunFailure(err):
		return f.FailWithData(ExitFailure, "run failed", err, runView{Run: run})
	case run != nil:
		return f.FailWithData(ExitCommandError, "run aborted", err, runView{Run: run})
	}
	return f.Fail(ExitCommandError, "run not started", err)
}

// sqlImplementations binds the reference SQL phases to the database named
// in the config.
func sqlImplementations(cfg *config.Config) (*phase.Implementations, func() error, error) {
	conn, ok := cfg.Database()
	if !ok {
		return nil, nil, errors.New("no database section: phase implementations need a database")
	}
	db, dialect, err := sqlphases.Open(conn)
	if err != nil {
		return nil, nil, err
	}
	impls := phase.NewImplementations()
	if err := sqlphases.New(db, dialect).Register(impls, phase.Default()); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("register phases: %w", err)
	}
	return impls, closer(db), nil
}

func closer(db *sql.DB) func() error {
	return func() error {
		if err := db.Close(); err != nil {
			slog.Error("error closing database", "error", err)
			return err
		}
		return nil
	}
}

// signalContext cancels on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, stopping run", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}
