package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/audit"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/config"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/drive"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/phase"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/store"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/testutil"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/window"
)

var testWindow = window.Window{
	Start: time.Date(2025, 11, 15, 10, 0, 0, 0, time.UTC),
	End:   time.Date(2025, 11, 15, 11, 0, 0, 0, time.UTC),
}

// defaultCounts pass the default tolerances: 2.0% and 0.051% loss.
var defaultCounts = map[string]int64{
	phase.SourceCount: 10000,
	phase.StageCount:  9800,
	phase.TargetCount: 9795,
}

// fakePhases is a scripted implementation of every registry phase.
// Unscripted phases succeed; count phases report defaultCounts and audit
// validates the counts found in the run snapshot.
type fakePhases struct {
	calls  []string
	counts map[string]int64
	script map[string]phase.Func
}

func newFakePhases() *fakePhases {
	counts := make(map[string]int64, len(defaultCounts))
	for k, v := range defaultCounts {
		counts[k] = v
	}
	return &fakePhases{counts: counts, script: make(map[string]phase.Func)}
}

func (f *fakePhases) on(name string, fn phase.Func) { f.script[name] = fn }

// failOnce makes name halt with msg on its next call only.
func (f *fakePhases) failOnce(name, msg string) {
	f.on(name, func(context.Context, *config.Config, drive.Snapshot) (phase.Result, error) {
		delete(f.script, name)
		return phase.Empty{Envelope: phase.Fail(msg)}, nil
	})
}

func (f *fakePhases) reset() { f.calls = nil }

func (f *fakePhases) implementations(t *testing.T) *phase.Implementations {
	t.Helper()
	impls := phase.NewImplementations()
	reg := phase.Default()
	for _, name := range reg.Names() {
		name := name
		impl := phase.Func(func(ctx context.Context, cfg *config.Config, run drive.Snapshot) (phase.Result, error) {
			f.calls = append(f.calls, name)
			if fn, ok := f.script[name]; ok {
				return fn(ctx, cfg, run)
			}
			return f.standard(name, cfg, run), nil
		})
		require.NoError(t, impls.Register(reg, name, impl))
	}
	return impls
}

func (f *fakePhases) standard(name string, cfg *config.Config, run drive.Snapshot) phase.Result {
	switch name {
	case phase.SourceCount, phase.StageCount, phase.TargetCount:
		return phase.CountResult{Key: name, Count: f.counts[name]}
	case phase.Audit:
		var c audit.Counts
		var ok [3]bool
		c.Source, ok[0] = run.DetailInt(phase.SourceCount, phase.SourceCount)
		c.Stage, ok[1] = run.DetailInt(phase.StageCount, phase.StageCount)
		c.Target, ok[2] = run.DetailInt(phase.TargetCount, phase.TargetCount)
		if !ok[0] || !ok[1] || !ok[2] {
			return phase.Empty{Envelope: phase.Fail(fmt.Sprintf("missing upstream counts %v", ok))}
		}
		rep := audit.Validate(c, cfg.Tolerances())
		res := phase.AuditResult{Report: rep}
		if !rep.Passed {
			res.Envelope = phase.Fail(rep.Reason)
		}
		return res
	case phase.SourceToStageTransfer, phase.StageToTargetTransfer:
		return phase.TransferResult{RecordsTransferred: 10, Completed: true}
	}
	return phase.Empty{}
}

func newTestConfig(t *testing.T, phases map[string]config.PhaseSpec) *config.Config {
	t.Helper()
	cfg, err := config.New(config.Spec{
		PipelineMetadata: config.Metadata{PipelineName: "orders"},
		Phases:           phases,
	})
	require.NoError(t, err)
	return cfg
}

func disabled() config.PhaseSpec {
	f := false
	return config.PhaseSpec{Enabled: &f}
}

func enabled() config.PhaseSpec {
	v := true
	return config.PhaseSpec{Enabled: &v}
}

func newTestController(s RecordStore, impls *phase.Implementations, opts ...Option) *Controller {
	base := []Option{
		WithClock(testutil.NewStepClock(time.Time{}, time.Second)),
		WithIDGenerator(testutil.NewSequenceGenerator("run")),
	}
	return NewController(s, impls, append(base, opts...)...)
}

// requirePartition checks that completed, skipped, pending and the failed
// phase partition the registry.
func requirePartition(t *testing.T, run *drive.PipelineRun) {
	t.Helper()
	require.NoError(t, run.Validate(phase.Default().Names()))
}

// flakyStore fails UpdatePhase once a number of updates succeeded.
type flakyStore struct {
	*store.Memory
	updatesLeft int
}

func (s *flakyStore) UpdatePhase(ctx context.Context, runID string, upd drive.PhaseUpdate) (*drive.PipelineRun, error) {
	if s.updatesLeft == 0 {
		return nil, fmt.Errorf("database is locked")
	}
	s.updatesLeft--
	return s.Memory.UpdatePhase(ctx, runID, upd)
}
