package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/drive"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/phase"
)

// ImplementationFaultPrefix marks phase error messages produced by a phase
// that returned an error or panicked instead of reporting a result.
const ImplementationFaultPrefix = "implementation fault: "

// RuntimeError represents an error detected while driving a run.
//
// A FAILED run is a normal outcome, not a Go error: Controller.Run returns
// the finalized run and a RuntimeError describing why it failed, so callers
// can branch on Code without parsing messages.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// RunID identifies the affected run, when one was created.
	RunID string

	// Phase identifies the failing phase.
	Phase string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeImplementationFault indicates a phase returned an error or
	// panicked instead of reporting a structured outcome.
	ErrCodeImplementationFault RuntimeErrorCode = "IMPLEMENTATION_FAULT"

	// ErrCodePhaseFailed indicates a phase reported halt with a message.
	ErrCodePhaseFailed RuntimeErrorCode = "PHASE_FAILED"

	// ErrCodeIntegrityFailure indicates the audit phase rejected the counts.
	ErrCodeIntegrityFailure RuntimeErrorCode = "INTEGRITY_FAILURE"

	// ErrCodeMissingImplementation indicates an enabled phase has no
	// registered implementation.
	ErrCodeMissingImplementation RuntimeErrorCode = "MISSING_IMPLEMENTATION"

	// ErrCodeStoreFailure indicates the record store rejected a write or
	// could not be read.
	ErrCodeStoreFailure RuntimeErrorCode = "STORE_FAILURE"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	switch {
	case e.RunID != "" && e.Phase != "":
		msg = fmt.Sprintf("%s (run=%s, phase=%s)", msg, e.RunID, e.Phase)
	case e.RunID != "":
		msg = fmt.Sprintf("%s (run=%s)", msg, e.RunID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RuntimeError) Unwrap() error { return e.Err }

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsImplementationFault reports whether err is an implementation fault.
func IsImplementationFault(err error) bool { return hasCode(err, ErrCodeImplementationFault) }

// IsPhaseFailure reports whether err is a reported phase failure.
func IsPhaseFailure(err error) bool { return hasCode(err, ErrCodePhaseFailed) }

// IsIntegrityFailure reports whether err is an audit rejection.
func IsIntegrityFailure(err error) bool { return hasCode(err, ErrCodeIntegrityFailure) }

// IsMissingImplementation reports whether err names phases without an
// implementation.
func IsMissingImplementation(err error) bool { return hasCode(err, ErrCodeMissingImplementation) }

// IsStoreFailure reports whether err came from the record store.
func IsStoreFailure(err error) bool { return hasCode(err, ErrCodeStoreFailure) }

// IsRunFailure reports whether err describes a run that finalized as
// FAILED because of a phase, as opposed to a run that could not be driven.
func IsRunFailure(err error) bool {
	var re *RuntimeError
	if !errors.As(err, &re) {
		return false
	}
	switch re.Code {
	case ErrCodeImplementationFault, ErrCodePhaseFailed, ErrCodeIntegrityFailure:
		return true
	}
	return false
}

// NewStoreError wraps a record store error.
func NewStoreError(runID, op string, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeStoreFailure,
		Message: op,
		RunID:   runID,
		Err:     err,
	}
}

// NewMissingImplementationError lists enabled phases without an
// implementation.
func NewMissingImplementationError(phases []string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeMissingImplementation,
		Message: fmt.Sprintf("no implementation registered for %v", phases),
	}
}

// FailureOf describes why a FAILED run failed. It returns nil for any other
// status.
func FailureOf(run *drive.PipelineRun) *RuntimeError {
	if run == nil || run.Status != drive.RunFailed {
		return nil
	}
	name := run.PhaseFailed()
	rec := run.Details[name]

	code := ErrCodePhaseFailed
	switch {
	case strings.HasPrefix(rec.ErrorMessage, ImplementationFaultPrefix):
		code = ErrCodeImplementationFault
	case name == phase.Audit:
		code = ErrCodeIntegrityFailure
	}

	msg := rec.ErrorMessage
	if name == "" {
		msg = "run failed without a phase failure"
	}
	re := &RuntimeError{
		Code:    code,
		Message: msg,
		RunID:   run.RunID,
		Phase:   name,
	}
	if t, ok := rec.Detail["error_type"].(string); ok {
		re.Details = map[string]string{"error_type": t}
	}
	return re
}
