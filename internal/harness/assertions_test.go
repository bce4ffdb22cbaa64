package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/drive"
)

func resultWith(run *drive.PipelineRun) *Result {
	r := NewResult()
	r.Runs = []*drive.PipelineRun{run}
	r.Trace = []TraceEvent{{Run: "run-1", Kind: EventFinish, Status: "FAILED", Note: "PHASE_FAILED"}}
	return r
}

func storedRun() *drive.PipelineRun {
	return &drive.PipelineRun{
		RunID: "run-1",
		Details: map[string]drive.PhaseRecord{
			"source_count": {Status: drive.PhaseCompleted, Detail: map[string]any{"source_count": float64(42)}},
			"audit":        {Status: drive.PhaseFailed, Detail: map[string]any{"audit_passed": false}},
		},
	}
}

func TestAssertPhaseStatus(t *testing.T) {
	result := resultWith(storedRun())

	require.NoError(t, assertPhaseStatus(result, Assertion{Run: 1, Phase: "audit", Status: "FAILED"}))

	err := assertPhaseStatus(result, Assertion{Run: 1, Phase: "audit", Status: "COMPLETED"})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertPhaseStatus, ae.Type)
	assert.Equal(t, `status "FAILED"`, ae.Actual)
	assert.Contains(t, err.Error(), "[1] run-1 finish FAILED PHASE_FAILED")
}

func TestAssertPhaseStatus_RunNeverCreated(t *testing.T) {
	err := assertPhaseStatus(resultWith(nil), Assertion{Run: 1, Phase: "audit", Status: "FAILED"})
	require.EqualError(t, err, "run 1 was never created")
}

func TestAssertDetail(t *testing.T) {
	result := resultWith(storedRun())

	assert.NoError(t, assertDetail(result, Assertion{Run: 1, Phase: "source_count", Key: "source_count", Value: 42}))
	assert.NoError(t, assertDetail(result, Assertion{Run: 1, Phase: "audit", Key: "audit_passed", Value: false}))

	err := assertDetail(result, Assertion{Run: 1, Phase: "source_count", Key: "source_count", Value: 41})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "42 (float64)", ae.Actual)

	err = assertDetail(result, Assertion{Run: 1, Phase: "audit", Key: "reason", Value: "x"})
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "missing", ae.Actual)
}

func TestAssertInvocations(t *testing.T) {
	result := NewResult()
	result.Invocations["audit"] = 2

	assert.NoError(t, assertInvocations(result, Assertion{Phase: "audit", Count: 2}))
	assert.NoError(t, assertInvocations(result, Assertion{Phase: "stage_cleaning", Count: 0}))
	assert.Error(t, assertInvocations(result, Assertion{Phase: "audit", Count: 1}))
}

func TestValuesEqual(t *testing.T) {
	assert.True(t, valuesEqual(float64(3), 3))
	assert.True(t, valuesEqual(int64(3), float64(3)))
	assert.True(t, valuesEqual("run-1", "run-1"))
	assert.False(t, valuesEqual("3", 3))
	assert.False(t, valuesEqual(true, "true"))
}

func TestTraceEventString(t *testing.T) {
	assert.Equal(t, "run-2 phase audit SKIPPED already completed in previous run",
		TraceEvent{Run: "run-2", Kind: EventPhase, Phase: "audit", Status: "SKIPPED", Note: drive.SkipReasonCompleted}.String())
	assert.Equal(t, "run-1 finish SUCCESS", TraceEvent{Run: "run-1", Kind: EventFinish, Status: "SUCCESS"}.String())
}
