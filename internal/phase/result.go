package phase

import "github.com/GNavneethGithub/pipeline-framework-project-01/internal/audit"

// Result is the outcome of one phase execution: the common envelope plus a
// phase-specific payload that is stored as the phase record's detail.
type Result interface {
	Common() Envelope
	Detail() map[string]any
}

// Envelope carries the fields every result shares. Halt must be
// accompanied by an ErrorMessage.
type Envelope struct {
	Halt         bool
	ErrorMessage string
}

// Common returns the envelope. Result variants embed Envelope to satisfy
// half of the Result interface.
func (e Envelope) Common() Envelope { return e }

// Fail returns an envelope that halts the run with msg.
func Fail(msg string) Envelope { return Envelope{Halt: true, ErrorMessage: msg} }

// CountResult is returned by the three count phases.
type CountResult struct {
	Envelope
	// Key names the count in the detail payload, e.g. "source_count".
	Key   string
	Count int64
}

func (r CountResult) Detail() map[string]any {
	return map[string]any{r.Key: r.Count}
}

// TransferResult is returned by the transfer phases.
type TransferResult struct {
	Envelope
	RecordsTransferred int64
	RecordsDeleted     int64
	Completed          bool
}

func (r TransferResult) Detail() map[string]any {
	return map[string]any{
		"records_transferred": r.RecordsTransferred,
		"records_deleted":     r.RecordsDeleted,
		"transfer_completed":  r.Completed,
	}
}

// AuditResult wraps the audit validator's report.
type AuditResult struct {
	Envelope
	Report audit.Report
}

func (r AuditResult) Detail() map[string]any {
	rep := r.Report
	d := map[string]any{
		"source_count":                      rep.Counts.Source,
		"stage_count":                       rep.Counts.Stage,
		"target_count":                      rep.Counts.Target,
		"source_to_stage_loss_percent":      rep.SourceToStageLoss,
		"stage_to_target_loss_percent":      rep.StageToTargetLoss,
		"source_to_stage_tolerance_percent": rep.Tolerances.SourceToStagePercent,
		"stage_to_target_tolerance_percent": rep.Tolerances.StageToTargetPercent,
		"audit_passed":                      rep.Passed,
	}
	if rep.Reason != "" {
		d["audit_reason"] = rep.Reason
	}
	return d
}

// CleaningResult is returned by the cleaning phases.
type CleaningResult struct {
	Envelope
	RecordsDeleted int64
	// Scope describes what was removed, e.g. "window" or "older than 90 days".
	Scope string
}

func (r CleaningResult) Detail() map[string]any {
	d := map[string]any{"records_deleted": r.RecordsDeleted}
	if r.Scope != "" {
		d["scope"] = r.Scope
	}
	return d
}

// ValidationResult is returned by pre-validation.
type ValidationResult struct {
	Envelope
	Checks map[string]bool
}

func (r ValidationResult) Detail() map[string]any {
	checks := make(map[string]any, len(r.Checks))
	for k, v := range r.Checks {
		checks[k] = v
	}
	return map[string]any{"checks": checks}
}

// StaleResult is returned by stale pipeline handling.
type StaleResult struct {
	Envelope
	StaleRunsReset int64
}

func (r StaleResult) Detail() map[string]any {
	return map[string]any{"stale_runs_reset": r.StaleRunsReset}
}

// Empty is a result with no payload.
type Empty struct {
	Envelope
}

func (Empty) Detail() map[string]any { return nil }
