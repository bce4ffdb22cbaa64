package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/config"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/store"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/window"
)

func loadConfig(opts *RootOptions) (*config.Config, error) {
	if opts.Config == "" {
		return nil, errors.New("--config is required")
	}
	var lo []config.Option
	if opts.EnvFile != "" {
		lo = append(lo, config.WithEnvFile(opts.EnvFile))
	}
	return config.Load(opts.Config, lo...)
}

// openStore opens the record store named by --db or, failing that, the
// config's record_store section.
func openStore(opts *RootOptions, cfg *config.Config) (*store.Store, error) {
	conn := config.ConnectionSpec{Driver: opts.Driver, DSN: opts.Database}
	if conn.DSN == "" {
		rs, ok := cfg.RecordStore()
		if !ok {
			return nil, errors.New("no record store: set record_store in the config or pass --db")
		}
		conn = rs
	}
	return store.OpenDSN(conn.Driver, conn.DSN)
}

// explicitWindow parses --start and --end. Both or neither must be set.
func explicitWindow(start, end string) (window.Window, bool, error) {
	if start == "" && end == "" {
		return window.Window{}, false, nil
	}
	if start == "" || end == "" {
		return window.Window{}, false, errors.New("--start and --end must be given together")
	}
	s, err := config.ParseTime(start)
	if err != nil {
		return window.Window{}, false, fmt.Errorf("--start: %w", err)
	}
	e, err := config.ParseTime(end)
	if err != nil {
		return window.Window{}, false, fmt.Errorf("--end: %w", err)
	}
	w := window.Window{Start: s, End: e}
	return w, true, w.Validate()
}

// nextWindow computes the window after the pipeline's last successful run.
// lastEnd is nil when the pipeline never succeeded.
func nextWindow(ctx context.Context, st *store.Store, cfg *config.Config, now time.Time) (w window.Window, lastEnd *time.Time, err error) {
	last, err := st.LastSuccessful(ctx, cfg.PipelineName())
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return window.Window{}, nil, fmt.Errorf("find last successful run: %w", err)
	default:
		end := last.WindowEnd
		lastEnd = &end
	}
	w, err = window.Calculate(cfg.WindowSettings(), now, lastEnd)
	return w, lastEnd, err
}
