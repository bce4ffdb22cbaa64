package harness

import (
	"context"
	"fmt"
	"reflect"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes the trace to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for i, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s\n", i+1, event)
	}

	return buf.String()
}

func (h *Harness) evaluate(ctx context.Context, a Assertion, result *Result) error {
	switch a.Type {
	case AssertPhaseStatus:
		return assertPhaseStatus(result, a)
	case AssertDetail:
		return assertDetail(result, a)
	case AssertInvocations:
		return assertInvocations(result, a)
	case AssertRunCount:
		runs, err := h.store.ListRuns(ctx, h.cfg.PipelineName(), 0)
		if err != nil {
			return fmt.Errorf("list runs: %w", err)
		}
		if len(runs) != a.Count {
			return &AssertionError{
				Type:     AssertRunCount,
				Expected: fmt.Sprintf("%d runs", a.Count),
				Actual:   fmt.Sprintf("%d runs", len(runs)),
				Trace:    result.Trace,
			}
		}
		return nil
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

// assertPhaseStatus checks the status of a phase of run a.Run.
func assertPhaseStatus(result *Result, a Assertion) error {
	run := result.Runs[a.Run-1]
	if run == nil {
		return fmt.Errorf("run %d was never created", a.Run)
	}
	rec, ok := run.Details[a.Phase]
	if !ok || string(rec.Status) != a.Status {
		return &AssertionError{
			Type:     AssertPhaseStatus,
			Expected: fmt.Sprintf("%s of run %d is %s", a.Phase, a.Run, a.Status),
			Actual:   fmt.Sprintf("status %q", rec.Status),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertDetail checks one detail value of a phase of run a.Run. Numbers
// compare by value regardless of their decoded type.
func assertDetail(result *Result, a Assertion) error {
	run := result.Runs[a.Run-1]
	if run == nil {
		return fmt.Errorf("run %d was never created", a.Run)
	}
	got, ok := run.Snapshot().DetailValue(a.Phase, a.Key)
	if !ok || !valuesEqual(got, a.Value) {
		actual := "missing"
		if ok {
			actual = fmt.Sprintf("%v (%T)", got, got)
		}
		return &AssertionError{
			Type:     AssertDetail,
			Expected: fmt.Sprintf("%s.%s of run %d = %v", a.Phase, a.Key, a.Run, a.Value),
			Actual:   actual,
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertInvocations checks how many times a phase implementation was
// called over all runs.
func assertInvocations(result *Result, a Assertion) error {
	if n := result.Invocations[a.Phase]; n != a.Count {
		return &AssertionError{
			Type:     AssertInvocations,
			Expected: fmt.Sprintf("%s invoked %d times", a.Phase, a.Count),
			Actual:   fmt.Sprintf("%d times", n),
			Trace:    result.Trace,
		}
	}
	return nil
}

func valuesEqual(got, want any) bool {
	gf, gok := toFloat(got)
	wf, wok := toFloat(want)
	if gok && wok {
		return gf == wf
	}
	return reflect.DeepEqual(got, want)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
