package harness

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/audit"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/config"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/drive"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/engine"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/phase"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/store"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/testutil"
)

// Harness executes scenario runs against one record store.
type Harness struct {
	store    *store.Store
	ctl      *engine.Controller
	cfg      *config.Config
	scenario *Scenario
	phases   *scriptedPhases
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Execution flow:
//  1. Create fresh in-memory database
//  2. Build the pipeline configuration and scripted phases
//  3. Execute each run step, checking its expectations
//  4. Evaluate assertions against the stored runs
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	cfg, err := scenario.Config()
	if err != nil {
		return nil, fmt.Errorf("scenario config: %w", err)
	}

	phases := &scriptedPhases{counts: scenario.Counts}
	impls, err := phases.implementations(phase.Default())
	if err != nil {
		return nil, err
	}

	h := &Harness{
		store: st,
		ctl: engine.NewController(st, impls,
			engine.WithClock(testutil.NewStepClock(time.Time{}, time.Second)),
			engine.WithIDGenerator(testutil.NewSequenceGenerator("run")),
		),
		cfg:      cfg,
		scenario: scenario,
		phases:   phases,
	}

	ctx := context.Background()
	result := NewResult()
	for i, step := range scenario.Runs {
		if err := h.executeRun(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("runs[%d]: %w", i, err)
		}
	}
	result.Invocations = phases.invocations

	for i, a := range scenario.Assertions {
		if err := h.evaluate(ctx, a, result); err != nil {
			result.AddErrorf("assertions[%d]: %v", i, err)
		}
	}
	return result, nil
}

func (h *Harness) executeRun(ctx context.Context, index int, step RunStep, result *Result) error {
	w, err := step.Window.Window()
	if err != nil {
		return err
	}

	plan, err := h.ctl.Plan(ctx, h.cfg, w)
	if err != nil {
		return fmt.Errorf("plan: %w", err)
	}
	h.phases.begin(step)
	run, runErr := h.ctl.Run(ctx, h.cfg, w)
	executed := h.phases.end()

	label := fmt.Sprintf("step-%d", index+1)
	if run != nil {
		label = run.RunID
		if run, err = h.store.GetRun(ctx, run.RunID); err != nil {
			return fmt.Errorf("read back run: %w", err)
		}
	}
	result.Runs = append(result.Runs, run)

	start := TraceEvent{Run: label, Kind: EventStart, Note: fmt.Sprintf("fresh retry=%d", plan.Resolution.RetryNumber)}
	if !plan.Resolution.Fresh {
		start.Note = fmt.Sprintf("continuation of %s retry=%d", plan.Resolution.Prior.RunID, plan.Resolution.RetryNumber)
	}
	result.Trace = append(result.Trace, start)
	if run != nil {
		for _, name := range h.ctl.Registry().Names() {
			rec := run.Details[name]
			note := rec.ErrorMessage
			if note == "" {
				note = rec.SkipReason
			}
			result.Trace = append(result.Trace, TraceEvent{
				Run: label, Kind: EventPhase, Phase: name, Status: string(rec.Status), Note: note,
			})
		}
	}

	finish := TraceEvent{Run: label, Kind: EventFinish}
	if run != nil {
		finish.Status = string(run.Status)
	}
	code := errorCode(runErr)
	finish.Note = code
	result.Trace = append(result.Trace, finish)

	if step.Expect != nil {
		checkExpect(index, *step.Expect, run, code, executed, result)
	}
	return nil
}

func errorCode(err error) string {
	var rt *engine.RuntimeError
	if errors.As(err, &rt) {
		return string(rt.Code)
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

func checkExpect(index int, e RunExpect, run *drive.PipelineRun, code string, executed []string, result *Result) {
	prefix := fmt.Sprintf("runs[%d]", index)
	if e.ErrorCode != code {
		if e.ErrorCode != "" || code != "" {
			result.AddErrorf("%s: error code = %q, expected %q", prefix, code, e.ErrorCode)
		}
	}
	if run == nil {
		if e.Status != "" {
			result.AddErrorf("%s: no run was created, expected status %s", prefix, e.Status)
		}
		return
	}
	if e.Status != "" && string(run.Status) != e.Status {
		result.AddErrorf("%s: status = %s, expected %s", prefix, run.Status, e.Status)
	}
	if e.RetryNumber != nil && run.RetryNumber != *e.RetryNumber {
		result.AddErrorf("%s: retry_number = %d, expected %d", prefix, run.RetryNumber, *e.RetryNumber)
	}
	if e.PhaseFailed != "" && run.PhaseFailed() != e.PhaseFailed {
		result.AddErrorf("%s: phase_failed = %q, expected %q", prefix, run.PhaseFailed(), e.PhaseFailed)
	}
	if e.Executed != nil && !slices.Equal(executed, e.Executed) {
		result.AddErrorf("%s: executed %v, expected %v", prefix, executed, e.Executed)
	}
	if e.Skipped != nil {
		got := slices.Clone(run.Phases.Skipped())
		slices.Sort(got)
		want := slices.Clone(e.Skipped)
		slices.Sort(want)
		if !slices.Equal(got, want) {
			result.AddErrorf("%s: skipped %v, expected %v", prefix, got, want)
		}
	}
}

// scriptedPhases implements every registry phase from a run step's script.
type scriptedPhases struct {
	counts      map[string]int64
	step        RunStep
	calls       []string
	invocations map[string]int
}

func (p *scriptedPhases) begin(step RunStep) {
	p.step = step
	p.calls = nil
}

func (p *scriptedPhases) end() []string {
	calls := p.calls
	p.calls = nil
	return calls
}

func (p *scriptedPhases) implementations(reg *phase.Registry) (*phase.Implementations, error) {
	p.invocations = make(map[string]int)
	impls := phase.NewImplementations()
	for _, name := range reg.Names() {
		name := name
		impl := phase.Func(func(ctx context.Context, cfg *config.Config, run drive.Snapshot) (phase.Result, error) {
			p.calls = append(p.calls, name)
			p.invocations[name]++
			return p.execute(name, cfg, run)
		})
		if err := impls.Register(reg, name, impl); err != nil {
			return nil, err
		}
	}
	return impls, nil
}

func (p *scriptedPhases) execute(name string, cfg *config.Config, run drive.Snapshot) (phase.Result, error) {
	switch p.step.Fault[name] {
	case FaultPanic:
		panic(fmt.Sprintf("scripted panic in %s", name))
	case FaultError:
		return nil, fmt.Errorf("scripted error in %s", name)
	case FaultNil:
		return nil, nil
	}
	if msg, ok := p.step.Fail[name]; ok {
		return phase.Empty{Envelope: phase.Fail(msg)}, nil
	}

	switch name {
	case phase.SourceCount, phase.StageCount, phase.TargetCount:
		return phase.CountResult{Key: name, Count: p.count(name)}, nil
	case phase.SourceToStageTransfer, phase.StageToTargetTransfer:
		return phase.TransferResult{RecordsTransferred: p.count(phase.SourceCount), Completed: true}, nil
	case phase.Audit:
		var c audit.Counts
		var ok [3]bool
		c.Source, ok[0] = run.DetailInt(phase.SourceCount, phase.SourceCount)
		c.Stage, ok[1] = run.DetailInt(phase.StageCount, phase.StageCount)
		c.Target, ok[2] = run.DetailInt(phase.TargetCount, phase.TargetCount)
		if !ok[0] || !ok[1] || !ok[2] {
			return phase.AuditResult{Envelope: phase.Fail("audit needs the three upstream counts")}, nil
		}
		rep := audit.Validate(c, cfg.Tolerances())
		res := phase.AuditResult{Report: rep}
		if !rep.Passed {
			res.Envelope = phase.Fail(rep.Reason)
		}
		return res, nil
	}
	return phase.Empty{}, nil
}

func (p *scriptedPhases) count(name string) int64 {
	if n, ok := p.step.Counts[name]; ok {
		return n
	}
	return p.counts[name]
}
