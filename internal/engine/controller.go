package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/config"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/drive"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/phase"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/window"
)

// RecordStore is the narrow view of the run record store the controller
// needs. Each method is atomic for one run.
type RecordStore interface {
	LatestRunReader
	PhaseUpdater
	CreateRun(ctx context.Context, run *drive.PipelineRun) error
	FinalizeRun(ctx context.Context, runID string, status drive.RunStatus, endedAt time.Time) (*drive.PipelineRun, error)
}

// Controller drives runs through the phase registry.
//
// Thread-safety: a Controller holds no per-run state and may drive runs
// for different windows concurrently. Runs for the same window must not
// overlap.
type Controller struct {
	store    RecordStore
	registry *phase.Registry
	impls    *phase.Implementations
	clock    Clock
	ids      IDGenerator
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the clock used for run and phase timestamps.
func WithClock(c Clock) Option {
	return func(ctl *Controller) { ctl.clock = c }
}

// WithIDGenerator sets the run ID generator.
//
// Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(ctl *Controller) { ctl.ids = g }
}

// WithRegistry replaces the default ten-phase registry.
func WithRegistry(r *phase.Registry) Option {
	return func(ctl *Controller) { ctl.registry = r }
}

// NewController creates a Controller that records runs in s and executes
// phases from impls.
func NewController(s RecordStore, impls *phase.Implementations, opts ...Option) *Controller {
	c := &Controller{
		store:    s,
		registry: phase.Default(),
		impls:    impls,
		clock:    SystemClock{},
		ids:      UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Registry returns the registry the controller sequences.
func (c *Controller) Registry() *phase.Registry { return c.registry }

// Plan is what a run over a window would do, without doing it.
type Plan struct {
	Resolution Resolution
	// Execute lists the phases that would be handed to the executor.
	Execute []string
	// Skip maps each skipped phase to its skip reason.
	Skip map[string]string
	// AllDisabled is true when the run would finalize as SKIPPED.
	AllDisabled bool
}

// Plan resolves the window and reports which phases a run would execute.
// It does not write to the store.
func (c *Controller) Plan(ctx context.Context, cfg *config.Config, w window.Window) (Plan, error) {
	if err := w.Validate(); err != nil {
		return Plan{}, err
	}
	res, err := Resolve(ctx, c.store, c.registry, cfg.PipelineName(), w)
	if err != nil {
		return Plan{}, NewStoreError("", "resolve prior run", err)
	}

	p := Plan{
		Resolution:  res,
		Skip:        make(map[string]string),
		AllDisabled: c.registry.AllDisabled(cfg),
	}
	for _, def := range c.registry.Definitions() {
		switch {
		case p.AllDisabled || !res.Skips(def.Name) && !def.Enabled(cfg):
			p.Skip[def.Name] = drive.SkipReasonDisabled
		case res.Skips(def.Name):
			p.Skip[def.Name] = res.Carried(def.Name).SkipReason
		default:
			p.Execute = append(p.Execute, def.Name)
		}
	}
	return p, nil
}

// Run executes one run of cfg's pipeline over w and returns the finalized
// record.
//
// A run that finalizes as FAILED because of a phase is returned together
// with a *RuntimeError (see IsRunFailure). Errors that prevent the run from
// being driven at all, such as a missing implementation or a store
// failure, are also *RuntimeError values; the run is nil when it was never
// created.
func (c *Controller) Run(ctx context.Context, cfg *config.Config, w window.Window) (*drive.PipelineRun, error) {
	plan, err := c.Plan(ctx, cfg, w)
	if err != nil {
		return nil, err
	}
	if missing := c.missing(plan.Execute); len(missing) > 0 {
		return nil, NewMissingImplementationError(missing)
	}

	run, err := c.create(ctx, cfg, w, plan.Resolution)
	if err != nil {
		return nil, err
	}

	logger := slog.With("run_id", run.RunID, "pipeline", run.PipelineName)
	logger.Info("run started",
		"window", w.String(),
		"retry_number", run.RetryNumber,
		"continuation", !plan.Resolution.Fresh,
		"skip_set", plan.Resolution.SkipSet(),
	)

	if plan.AllDisabled {
		logger.Info("every phase is disabled, skipping run")
		return c.skipAll(ctx, run)
	}

	executor := NewExecutor(c.impls, c.store, c.clock)
	for _, def := range c.registry.Definitions() {
		var upd drive.PhaseUpdate
		switch {
		case plan.Resolution.Skips(def.Name):
			upd = drive.PhaseUpdate{Phase: def.Name, Record: plan.Resolution.Carried(def.Name)}
		case !def.Enabled(cfg):
			upd = drive.PhaseUpdate{Phase: def.Name, Record: skipped(drive.SkipReasonDisabled)}
		default:
			next, out, err := executor.Execute(ctx, def, cfg, run)
			if err != nil {
				return c.abort(ctx, run, err)
			}
			run = next
			if out.Halt {
				logger.Info("halting run", "phase", def.Name)
				return c.finalize(ctx, run, drive.RunFailed)
			}
			continue
		}

		logger.Debug("phase skipped", "phase", def.Name, "reason", upd.Record.SkipReason)
		next, err := c.store.UpdatePhase(ctx, run.RunID, upd)
		if err != nil {
			return c.abort(ctx, run, NewStoreError(run.RunID, fmt.Sprintf("skip phase %s", def.Name), err))
		}
		run = next
	}

	return c.finalize(ctx, run, drive.RunSuccess)
}

func (c *Controller) missing(execute []string) []string {
	var out []string
	for _, name := range execute {
		if _, ok := c.impls.Lookup(name); !ok {
			out = append(out, name)
		}
	}
	return out
}

func (c *Controller) create(ctx context.Context, cfg *config.Config, w window.Window, res Resolution) (*drive.PipelineRun, error) {
	names := c.registry.Names()
	expected := make(map[string]string, len(names))
	for _, name := range names {
		if d := cfg.Phase(name).ExpectedRunDuration; d != "" {
			expected[name] = d
		}
	}

	run, err := drive.NewRun(drive.NewRunParams{
		RunID:        c.ids.Generate(),
		PipelineName: cfg.PipelineName(),
		RetryNumber:  res.RetryNumber,
		Window:       w,
		StartedAt:    c.clock.Now(),
		Phases:       names,
		Expected:     expected,
	})
	if err != nil {
		return nil, fmt.Errorf("new run: %w", err)
	}
	if err := c.store.CreateRun(ctx, run); err != nil {
		return nil, NewStoreError(run.RunID, "create run", err)
	}
	return run, nil
}

func (c *Controller) skipAll(ctx context.Context, run *drive.PipelineRun) (*drive.PipelineRun, error) {
	for _, name := range c.registry.Names() {
		next, err := c.store.UpdatePhase(ctx, run.RunID, drive.PhaseUpdate{
			Phase:  name,
			Record: skipped(drive.SkipReasonDisabled),
		})
		if err != nil {
			return c.abort(ctx, run, NewStoreError(run.RunID, fmt.Sprintf("skip phase %s", name), err))
		}
		run = next
	}
	return c.finalize(ctx, run, drive.RunSkipped)
}

// finalize records the terminal status. A FAILED run is returned with the
// RuntimeError describing its failure.
func (c *Controller) finalize(ctx context.Context, run *drive.PipelineRun, status drive.RunStatus) (*drive.PipelineRun, error) {
	final, err := c.store.FinalizeRun(ctx, run.RunID, status, c.clock.Now())
	if err != nil {
		return c.abort(ctx, run, NewStoreError(run.RunID, "finalize run", err))
	}

	slog.Info("run finished",
		"run_id", final.RunID,
		"pipeline", final.PipelineName,
		"status", final.Status,
		"duration", final.Duration,
		"phase_failed", final.PhaseFailed(),
	)
	if final.Status == drive.RunFailed {
		return final, FailureOf(final)
	}
	return final, nil
}

// abort makes a best-effort attempt to close a run the store stopped
// accepting updates for, so it is not left RUNNING.
func (c *Controller) abort(ctx context.Context, run *drive.PipelineRun, cause error) (*drive.PipelineRun, error) {
	slog.Error("record store failure, aborting run", "run_id", run.RunID, "error", cause)

	final, err := c.store.FinalizeRun(context.WithoutCancel(ctx), run.RunID, drive.RunFailed, c.clock.Now())
	if err != nil {
		slog.Error("could not finalize aborted run", "run_id", run.RunID, "error", err)
		return run, cause
	}
	return final, cause
}

func skipped(reason string) drive.PhaseRecord {
	return drive.PhaseRecord{Status: drive.PhaseSkipped, SkipReason: reason}
}
