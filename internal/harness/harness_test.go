package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/drive"
)

func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)

	for _, path := range paths {
		t.Run(strings.TrimSuffix(filepath.Base(path), ".yaml"), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v\ntrace:\n%s", result.Errors, result.TraceText())
		})
	}
}

func TestRun_MinimalScenario(t *testing.T) {
	scenario, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass)
	assert.Empty(t, result.Errors)

	require.Len(t, result.Runs, 1)
	run := result.Runs[0]
	require.NotNil(t, run)
	assert.Equal(t, "run-1", run.RunID)
	assert.Equal(t, "scenario", run.PipelineName)
	assert.Equal(t, drive.RunSuccess, run.Status)

	// start, ten phases, finish
	require.Len(t, result.Trace, 12)
	assert.Equal(t, "run-1 start fresh retry=0", result.Trace[0].String())
	assert.Equal(t, "run-1 finish SUCCESS", result.Trace[11].String())
	assert.Equal(t, 1, result.Invocations["audit"])
	assert.Zero(t, result.Invocations["target_cleaning"])
}

func TestRun_RunsAreIsolated(t *testing.T) {
	scenario, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, first.TraceText(), second.TraceText())
}

func TestRun_ReportsExpectationMismatch(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: mismatch
description: "Expects a failure that does not happen"
runs:
  - window: { start: "2025-11-15T10:00:00Z", end: "2025-11-15T11:00:00Z" }
    expect:
      status: FAILED
      retry_number: 2
      phase_failed: audit
      executed: [audit]
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors, "runs[0]: status = SUCCESS, expected FAILED")
	assert.Contains(t, result.Errors, "runs[0]: retry_number = 0, expected 2")
	assert.Contains(t, result.Errors, `runs[0]: phase_failed = "", expected "audit"`)
	require.Len(t, result.Errors, 4)
	assert.True(t, strings.HasPrefix(result.Errors[3], "runs[0]: executed [stale_pipeline_handling"))
}

func TestRun_UnexpectedErrorCode(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: unexpected_code
description: "A failing run without an expected error code"
runs:
  - window: { start: "2025-11-15T10:00:00Z", end: "2025-11-15T11:00:00Z" }
    fault: { source_count: error }
    expect: { status: FAILED }
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, []string{`runs[0]: error code = "IMPLEMENTATION_FAULT", expected ""`}, result.Errors)
}

func TestRun_AuditBreachFailsRun(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: tight_tolerance
description: "A half percent loss breaches a zero tolerance"
tolerances: { source_to_stage: 0 }
counts: { source_count: 1000, stage_count: 995, target_count: 995 }
runs:
  - window: { start: "2025-11-15T10:00:00Z", end: "2025-11-15T11:00:00Z" }
    expect: { status: FAILED, phase_failed: audit, error_code: INTEGRITY_FAILURE }
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_FailedAssertionCarriesTrace(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: wrong_count
description: "Asserts one run too many"
runs:
  - window: { start: "2025-11-15T10:00:00Z", end: "2025-11-15T11:00:00Z" }
assertions:
  - type: run_count
    count: 2
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "assertions[0]: Assertion failed: run_count")
	assert.Contains(t, result.Errors[0], "Actual: 1 runs")
	assert.Contains(t, result.Errors[0], "[1] run-1 start fresh retry=0")
}
