// Package drive defines the pipeline run record: one PipelineRun per
// execution attempt of a pipeline over a query window, with one PhaseRecord
// per registry phase.
//
// The record is the permanent audit artifact of a run. It is created at the
// start of the run, mutated only through ApplyPhase and Finalize, and never
// deleted. Later retries for the same window produce new records.
//
// Phase membership is tracked by PhaseSets: completed, skipped and pending
// names plus the single failed phase. The four always partition the phase
// registry. ApplyPhase moves exactly one phase out of pending per call and
// rejects any move that would break the partition, so the summary lists can
// never drift from the per-phase details.
package drive
