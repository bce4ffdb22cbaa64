package drive

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/window"
)

// ErrRunNotFound is returned by record stores when no run matches a lookup.
var ErrRunNotFound = errors.New("pipeline run not found")

// RunStatus is the lifecycle status of a PipelineRun.
type RunStatus string

const (
	RunRunning RunStatus = "RUNNING"
	RunSuccess RunStatus = "SUCCESS"
	RunFailed  RunStatus = "FAILED"
	RunSkipped RunStatus = "SKIPPED"
)

// Terminal reports whether the status ends a run.
func (s RunStatus) Terminal() bool {
	return s == RunSuccess || s == RunFailed || s == RunSkipped
}

// ParseRunStatus validates a persisted status string.
func ParseRunStatus(s string) (RunStatus, error) {
	switch st := RunStatus(s); st {
	case RunRunning, RunSuccess, RunFailed, RunSkipped:
		return st, nil
	}
	return "", fmt.Errorf("unknown run status %q", s)
}

// PhaseStatus is the status of one phase within a run.
type PhaseStatus string

const (
	PhasePending   PhaseStatus = "PENDING"
	PhaseCompleted PhaseStatus = "COMPLETED"
	PhaseFailed    PhaseStatus = "FAILED"
	PhaseSkipped   PhaseStatus = "SKIPPED"
)

// Skip reasons recorded on SKIPPED phase records.
const (
	SkipReasonCompleted = "already completed in previous run"
	SkipReasonDisabled  = "disabled in configuration"
)

// PhaseRecord is the execution detail of one phase of a run.
type PhaseRecord struct {
	Status           PhaseStatus    `json:"status"`
	StartedAt        *time.Time     `json:"started_at,omitempty"`
	EndedAt          *time.Time     `json:"ended_at,omitempty"`
	ActualDuration   string         `json:"actual_duration,omitempty"`
	ExpectedDuration string         `json:"expected_duration,omitempty"`
	RetryAttempt     int            `json:"retry_attempt"`
	ErrorMessage     string         `json:"error_message,omitempty"`
	SkipReason       string         `json:"skip_reason,omitempty"`
	Detail           map[string]any `json:"detail,omitempty"`
}

// Clone returns a deep copy of r.
func (r PhaseRecord) Clone() PhaseRecord {
	out := r
	if r.StartedAt != nil {
		t := *r.StartedAt
		out.StartedAt = &t
	}
	if r.EndedAt != nil {
		t := *r.EndedAt
		out.EndedAt = &t
	}
	out.Detail = CloneDetail(r.Detail)
	return out
}

// CloneDetail deep-copies a phase detail payload. Nested maps and slices
// are copied; scalar values are shared.
func CloneDetail(d map[string]any) map[string]any {
	if d == nil {
		return nil
	}
	out := make(map[string]any, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneDetail(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

// PipelineRun is one execution attempt of a pipeline over a window.
type PipelineRun struct {
	RunID          string
	PipelineName   string
	Status         RunStatus
	RetryNumber    int
	WindowStart    time.Time
	WindowEnd      time.Time
	TargetDate     string
	WindowDuration string
	StartedAt      time.Time
	EndedAt        *time.Time
	Duration       string
	Details        map[string]PhaseRecord

	Phases PhaseSets
}

// NewRunParams describes a run to create.
type NewRunParams struct {
	RunID        string
	PipelineName string
	RetryNumber  int
	Window       window.Window
	StartedAt    time.Time
	// Phases is the full registry in order.
	Phases []string
	// Expected maps phase name to its configured expected duration.
	Expected map[string]string
}

// NewRun creates a RUNNING run with every phase pending.
func NewRun(p NewRunParams) (*PipelineRun, error) {
	if p.RunID == "" {
		return nil, fmt.Errorf("run id is required")
	}
	name := NormalizePipelineName(p.PipelineName)
	if name == "" {
		return nil, fmt.Errorf("pipeline name is required")
	}
	if p.RetryNumber < 0 {
		return nil, fmt.Errorf("retry number must be non-negative, got %d", p.RetryNumber)
	}
	if err := p.Window.Validate(); err != nil {
		return nil, err
	}
	sets, err := NewPhaseSets(p.Phases)
	if err != nil {
		return nil, err
	}

	details := make(map[string]PhaseRecord, len(p.Phases))
	for _, ph := range p.Phases {
		details[ph] = PhaseRecord{
			Status:           PhasePending,
			ExpectedDuration: p.Expected[ph],
		}
	}

	return &PipelineRun{
		RunID:          p.RunID,
		PipelineName:   name,
		Status:         RunRunning,
		RetryNumber:    p.RetryNumber,
		WindowStart:    p.Window.Start.UTC(),
		WindowEnd:      p.Window.End.UTC(),
		TargetDate:     p.Window.TargetDate(),
		WindowDuration: window.FormatDuration(p.Window.Duration()),
		StartedAt:      p.StartedAt.UTC(),
		Details:        details,
		Phases:         sets,
	}, nil
}

// NormalizePipelineName trims and NFC-normalizes a pipeline name so that
// visually identical names key the same records.
func NormalizePipelineName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// Window returns the run's query window.
func (r *PipelineRun) Window() window.Window {
	return window.Window{Start: r.WindowStart, End: r.WindowEnd}
}

// PhaseFailed returns the phase that failed the run, or "".
func (r *PipelineRun) PhaseFailed() string { return r.Phases.Failed() }

// PhaseUpdate is the complete change for one phase transition. The target
// set is derived from Record.Status.
type PhaseUpdate struct {
	Phase  string
	Record PhaseRecord
}

// ApplyPhase moves one pending phase to COMPLETED, SKIPPED or FAILED and
// stores its record. A FAILED record also fails the run. Either the whole
// update is applied or nothing is.
func (r *PipelineRun) ApplyPhase(u PhaseUpdate) error {
	if r.Status != RunRunning {
		return fmt.Errorf("run %s is %s, cannot update phase %q", r.RunID, r.Status, u.Phase)
	}

	switch u.Record.Status {
	case PhaseCompleted, PhaseSkipped:
		if u.Record.ErrorMessage != "" {
			return fmt.Errorf("phase %q is %s but carries an error message", u.Phase, u.Record.Status)
		}
	case PhaseFailed:
		if u.Record.ErrorMessage == "" {
			return fmt.Errorf("phase %q failed without an error message", u.Phase)
		}
	default:
		return fmt.Errorf("phase %q cannot be updated to %s", u.Phase, u.Record.Status)
	}

	next, err := r.Phases.move(u.Phase, u.Record.Status)
	if err != nil {
		return fmt.Errorf("run %s: %w", r.RunID, err)
	}

	rec := u.Record.Clone()
	if rec.ExpectedDuration == "" {
		rec.ExpectedDuration = r.Details[u.Phase].ExpectedDuration
	}

	if r.Details == nil {
		r.Details = make(map[string]PhaseRecord)
	}
	r.Details[u.Phase] = rec
	r.Phases = next
	if rec.Status == PhaseFailed {
		r.Status = RunFailed
	}
	return nil
}

// Finalize sets the terminal status, ended_at and duration.
//
// SUCCESS and SKIPPED require every phase to have left pending. FAILED is
// accepted while RUNNING or after a phase failure; phases after the failed
// one stay pending. ended_at is set exactly once.
func (r *PipelineRun) Finalize(status RunStatus, endedAt time.Time) error {
	if r.EndedAt != nil {
		return fmt.Errorf("run %s already finalized as %s", r.RunID, r.Status)
	}

	switch status {
	case RunSuccess, RunSkipped:
		if r.Status != RunRunning {
			return fmt.Errorf("run %s is %s, cannot finalize as %s", r.RunID, r.Status, status)
		}
		if pending := r.Phases.Pending(); len(pending) > 0 {
			return fmt.Errorf("run %s cannot finalize as %s with pending phases %v", r.RunID, status, pending)
		}
	case RunFailed:
		if r.Status != RunRunning && r.Status != RunFailed {
			return fmt.Errorf("run %s is %s, cannot finalize as %s", r.RunID, r.Status, status)
		}
	default:
		return fmt.Errorf("run %s cannot finalize with non-terminal status %q", r.RunID, status)
	}

	end := endedAt.UTC()
	if end.Before(r.StartedAt) {
		end = r.StartedAt
	}
	r.Status = status
	r.EndedAt = &end
	r.Duration = window.FormatDuration(end.Sub(r.StartedAt))
	return nil
}

// Clone returns a deep copy of r.
func (r *PipelineRun) Clone() *PipelineRun {
	out := *r
	if r.EndedAt != nil {
		t := *r.EndedAt
		out.EndedAt = &t
	}
	out.Details = make(map[string]PhaseRecord, len(r.Details))
	for k, v := range r.Details {
		out.Details[k] = v.Clone()
	}
	out.Phases = r.Phases.clone()
	return &out
}

// Validate checks the record invariants against the registry names.
func (r *PipelineRun) Validate(registry []string) error {
	if err := r.Window().Validate(); err != nil {
		return fmt.Errorf("run %s: %w", r.RunID, err)
	}
	if err := r.Phases.Validate(registry); err != nil {
		return fmt.Errorf("run %s: %w", r.RunID, err)
	}
	if f := r.Phases.Failed(); f != "" && r.Status != RunFailed {
		return fmt.Errorf("run %s has failed phase %q but status %s", r.RunID, f, r.Status)
	}
	if (r.Status == RunSuccess || r.Status == RunSkipped) && len(r.Phases.pending) > 0 {
		return fmt.Errorf("run %s is %s with pending phases", r.RunID, r.Status)
	}
	if r.Status.Terminal() != (r.EndedAt != nil) {
		return fmt.Errorf("run %s is %s but ended_at set=%t", r.RunID, r.Status, r.EndedAt != nil)
	}
	return nil
}

type runJSON struct {
	RunID           string                 `json:"run_id"`
	PipelineName    string                 `json:"pipeline_name"`
	Status          RunStatus              `json:"status"`
	RetryNumber     int                    `json:"retry_number"`
	StartedAt       time.Time              `json:"started_at"`
	EndedAt         *time.Time             `json:"ended_at"`
	Duration        string                 `json:"duration,omitempty"`
	WindowStart     time.Time              `json:"window_start"`
	WindowEnd       time.Time              `json:"window_end"`
	TargetDate      string                 `json:"target_date"`
	WindowDuration  string                 `json:"window_duration"`
	PhaseDetails    map[string]PhaseRecord `json:"phase_details"`
	PhasesCompleted []string               `json:"phases_completed"`
	PhasesSkipped   []string               `json:"phases_skipped"`
	PhasesPending   []string               `json:"phases_pending"`
	PhaseFailed     *string                `json:"phase_failed"`
}

// MarshalJSON renders the persisted record shape.
func (r *PipelineRun) MarshalJSON() ([]byte, error) {
	v := runJSON{
		RunID:           r.RunID,
		PipelineName:    r.PipelineName,
		Status:          r.Status,
		RetryNumber:     r.RetryNumber,
		StartedAt:       r.StartedAt,
		EndedAt:         r.EndedAt,
		Duration:        r.Duration,
		WindowStart:     r.WindowStart,
		WindowEnd:       r.WindowEnd,
		TargetDate:      r.TargetDate,
		WindowDuration:  r.WindowDuration,
		PhaseDetails:    r.Details,
		PhasesCompleted: r.Phases.Completed(),
		PhasesSkipped:   r.Phases.Skipped(),
		PhasesPending:   r.Phases.Pending(),
	}
	if f := r.Phases.Failed(); f != "" {
		v.PhaseFailed = &f
	}
	return json.Marshal(v)
}

// UnmarshalJSON parses the shape written by MarshalJSON.
func (r *PipelineRun) UnmarshalJSON(data []byte) error {
	var v runJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	failed := ""
	if v.PhaseFailed != nil {
		failed = *v.PhaseFailed
	}
	sets, err := RestorePhaseSets(v.PhasesCompleted, v.PhasesSkipped, v.PhasesPending, failed)
	if err != nil {
		return fmt.Errorf("run %s: %w", v.RunID, err)
	}
	*r = PipelineRun{
		RunID:          v.RunID,
		PipelineName:   v.PipelineName,
		Status:         v.Status,
		RetryNumber:    v.RetryNumber,
		WindowStart:    v.WindowStart,
		WindowEnd:      v.WindowEnd,
		TargetDate:     v.TargetDate,
		WindowDuration: v.WindowDuration,
		StartedAt:      v.StartedAt,
		EndedAt:        v.EndedAt,
		Duration:       v.Duration,
		Details:        v.PhaseDetails,
		Phases:         sets,
	}
	return nil
}
