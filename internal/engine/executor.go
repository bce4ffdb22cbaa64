package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/config"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/drive"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/phase"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/window"
)

// OverrunMultiplier is how far past its expected duration a phase may run
// before the executor logs a warning.
const OverrunMultiplier = 2.0

// PhaseUpdater applies one phase transition to a stored run atomically.
type PhaseUpdater interface {
	UpdatePhase(ctx context.Context, runID string, upd drive.PhaseUpdate) (*drive.PipelineRun, error)
}

// Outcome is the executor's interpretation of one phase execution.
type Outcome struct {
	// Record is the record written for the phase.
	Record drive.PhaseRecord
	// Halt is true when the phase failed and the run must stop.
	Halt bool
	// Fault is true when the failure was an implementation fault.
	Fault bool
}

// Executor runs one phase implementation and records its outcome.
type Executor struct {
	impls *phase.Implementations
	store PhaseUpdater
	clock Clock
}

// NewExecutor returns an executor over impls that writes to s.
func NewExecutor(impls *phase.Implementations, s PhaseUpdater, clock Clock) *Executor {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Executor{impls: impls, store: s, clock: clock}
}

// Execute invokes the implementation of def against a snapshot of run and
// writes the resulting phase record as one store update.
//
// The returned error is non-nil only when the store update failed. A failed
// phase is reported through Outcome.Halt and the updated run.
func (e *Executor) Execute(ctx context.Context, def phase.Definition, cfg *config.Config, run *drive.PipelineRun) (*drive.PipelineRun, Outcome, error) {
	name := def.Name
	slog.Debug("phase starting", "run_id", run.RunID, "phase", name)

	started := e.clock.Now()
	res, err := e.invoke(ctx, name, cfg, run.Snapshot())
	ended := e.clock.Now()
	if ended.Before(started) {
		ended = started
	}
	actual := ended.Sub(started)

	out := interpret(res, err)
	out.Record.StartedAt = &started
	out.Record.EndedAt = &ended
	out.Record.ActualDuration = window.FormatDuration(actual)

	if expected, ok := cfg.ExpectedDuration(name); ok && window.Exceeded(actual, expected, OverrunMultiplier) {
		slog.Warn("phase ran longer than expected",
			"run_id", run.RunID,
			"phase", name,
			"duration", out.Record.ActualDuration,
			"expected", window.FormatDuration(expected),
		)
	}

	updated, err := e.store.UpdatePhase(ctx, run.RunID, drive.PhaseUpdate{Phase: name, Record: out.Record})
	if err != nil {
		return nil, out, NewStoreError(run.RunID, fmt.Sprintf("record phase %s", name), err)
	}

	if out.Halt {
		slog.Error("phase failed",
			"run_id", run.RunID,
			"phase", name,
			"error", out.Record.ErrorMessage,
			"implementation_fault", out.Fault,
		)
	} else {
		slog.Info("phase completed",
			"run_id", run.RunID,
			"phase", name,
			"duration", out.Record.ActualDuration,
		)
	}
	return updated, out, nil
}

// invoke calls the implementation, converting a panic into an error.
func (e *Executor) invoke(ctx context.Context, name string, cfg *config.Config, snap drive.Snapshot) (res phase.Result, err error) {
	impl, ok := e.impls.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("no implementation registered for phase %q", name)
	}

	if timeout := cfg.PhaseTimeout(name); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return impl.Execute(ctx, cfg, snap)
}

// interpret maps an implementation's return values to a phase record.
func interpret(res phase.Result, err error) Outcome {
	if err != nil {
		return fault(err.Error(), Classify(err), nil)
	}
	if res == nil {
		return fault("phase returned no result", ErrorPermanent, nil)
	}

	env := res.Common()
	detail := drive.CloneDetail(res.Detail())
	switch {
	case env.Halt && env.ErrorMessage == "":
		return fault("phase halted without an error message", ErrorPermanent, detail)
	case env.Halt || env.ErrorMessage != "":
		// An error message without halt is still a failure.
		return failed(env.ErrorMessage, ClassifyMessage(env.ErrorMessage), detail, false)
	}
	return Outcome{Record: drive.PhaseRecord{Status: drive.PhaseCompleted, Detail: detail}}
}

func fault(msg string, typ ErrorType, detail map[string]any) Outcome {
	return failed(ImplementationFaultPrefix+msg, typ, detail, true)
}

func failed(msg string, typ ErrorType, detail map[string]any, isFault bool) Outcome {
	if detail == nil {
		detail = make(map[string]any, 1)
	}
	detail["error_type"] = string(typ)
	return Outcome{
		Record: drive.PhaseRecord{
			Status:       drive.PhaseFailed,
			ErrorMessage: msg,
			Detail:       detail,
		},
		Halt:  true,
		Fault: isFault,
	}
}
