package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/drive"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/phase"
)

func TestRuntimeError_Format(t *testing.T) {
	err := &RuntimeError{Code: ErrCodePhaseFailed, Message: "boom", RunID: "r1", Phase: phase.Audit}
	assert.Equal(t, "PHASE_FAILED: boom (run=r1, phase=audit)", err.Error())

	cause := errors.New("disk full")
	wrapped := NewStoreError("r1", "create run", cause)
	assert.Equal(t, "STORE_FAILURE: create run (run=r1): disk full", wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)

	assert.Equal(t, "MISSING_IMPLEMENTATION: no implementation registered for [audit]",
		NewMissingImplementationError([]string{phase.Audit}).Error())
}

func TestRuntimeError_HelpersSeeWrappedErrors(t *testing.T) {
	err := fmt.Errorf("run orders: %w", NewStoreError("", "resolve prior run", errors.New("x")))
	assert.True(t, IsStoreFailure(err))
	assert.False(t, IsRunFailure(err))
	assert.False(t, IsStoreFailure(errors.New("plain")))
}

func failedRun(t *testing.T, failing, msg string) *drive.PipelineRun {
	t.Helper()
	run, err := drive.NewRun(drive.NewRunParams{
		RunID:        "r1",
		PipelineName: "orders",
		Window:       testWindow,
		StartedAt:    testWindow.End,
		Phases:       phase.Default().Names(),
	})
	require.NoError(t, err)
	require.NoError(t, run.ApplyPhase(drive.PhaseUpdate{
		Phase: failing,
		Record: drive.PhaseRecord{
			Status:       drive.PhaseFailed,
			ErrorMessage: msg,
			Detail:       map[string]any{"error_type": "permanent"},
		},
	}))
	return run
}

func TestFailureOf(t *testing.T) {
	tests := []struct {
		phase string
		msg   string
		code  RuntimeErrorCode
	}{
		{phase.SourceCount, "no rows", ErrCodePhaseFailed},
		{phase.Audit, "source_to_stage: loss 20.000% exceeds tolerance 2.000%", ErrCodeIntegrityFailure},
		{phase.Audit, ImplementationFaultPrefix + "panic: x", ErrCodeImplementationFault},
	}
	for _, tt := range tests {
		re := FailureOf(failedRun(t, tt.phase, tt.msg))
		require.NotNil(t, re)
		assert.Equal(t, tt.code, re.Code, tt.msg)
		assert.Equal(t, tt.phase, re.Phase)
		assert.Equal(t, tt.msg, re.Message)
		assert.Equal(t, "permanent", re.Details["error_type"])
	}

	assert.Nil(t, FailureOf(nil))
	running, err := drive.NewRun(drive.NewRunParams{
		RunID: "r2", PipelineName: "orders", Window: testWindow, Phases: []string{phase.Audit},
	})
	require.NoError(t, err)
	assert.Nil(t, FailureOf(running))
}

func TestClassifyMessage(t *testing.T) {
	tests := map[string]ErrorType{
		"Connection refused by host": ErrorTransient,
		"database is locked":         ErrorTransient,
		"429 rate limit exceeded":    ErrorTransient,
		"authentication failed":      ErrorConfiguration,
		"Access Denied for user":     ErrorConfiguration,
		"column order_id not found":  ErrorPermanent,
		"":                           ErrorPermanent,
	}
	for msg, want := range tests {
		assert.Equal(t, want, ClassifyMessage(msg), msg)
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ErrorTransient, Classify(fmt.Errorf("query: %w", context.DeadlineExceeded)))
	assert.Equal(t, ErrorTransient, Classify(&net.OpError{Op: "dial", Err: errors.New("x")}))
	assert.Equal(t, ErrorConfiguration, Classify(errors.New("permission denied")))
	assert.Equal(t, ErrorPermanent, Classify(errors.New("syntax error")))
	assert.Equal(t, ErrorPermanent, Classify(nil))
}

func TestInterpret(t *testing.T) {
	out := interpret(phase.CountResult{Key: "source_count", Count: 3}, nil)
	assert.False(t, out.Halt)
	assert.Equal(t, drive.PhaseCompleted, out.Record.Status)
	assert.Equal(t, map[string]any{"source_count": int64(3)}, out.Record.Detail)

	out = interpret(phase.Empty{Envelope: phase.Fail("network is unreachable")}, nil)
	assert.True(t, out.Halt)
	assert.False(t, out.Fault)
	assert.Equal(t, "network is unreachable", out.Record.ErrorMessage)
	assert.Equal(t, "transient", out.Record.Detail["error_type"])

	out = interpret(nil, context.DeadlineExceeded)
	assert.True(t, out.Fault)
	assert.Equal(t, ImplementationFaultPrefix+"context deadline exceeded", out.Record.ErrorMessage)
	assert.Equal(t, "transient", out.Record.Detail["error_type"])
}

func TestSystemClock_IsUTC(t *testing.T) {
	assert.Equal(t, time.UTC, SystemClock{}.Now().Location())
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, fixed, ClockFunc(func() time.Time { return fixed }).Now())
}
