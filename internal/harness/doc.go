// Package harness runs pipeline scenarios described in YAML against the run
// controller and checks the recorded runs.
//
// # Scenario Format
//
//	name: retry_after_failure
//	description: "A failed run is continued by the next run"
//	counts: { source_count: 10000, stage_count: 9800, target_count: 9795 }
//	phases:
//	  target_cleaning: { enabled: true }
//	runs:
//	  - window: { start: "2025-11-15T10:00:00Z", end: "2025-11-15T11:00:00Z" }
//	    fail: { stage_count: "stage table locked" }
//	    expect:
//	      status: FAILED
//	      phase_failed: stage_count
//	      error_code: PHASE_FAILED
//	  - window: { start: "2025-11-15T10:00:00Z", end: "2025-11-15T11:00:00Z" }
//	    expect:
//	      status: SUCCESS
//	      retry_number: 1
//	      executed: [stage_count, stage_to_target_transfer, target_count, audit, stage_cleaning, target_cleaning]
//	assertions:
//	  - type: detail
//	    run: 2
//	    phase: source_count
//	    key: carried_from
//	    value: run-1
//
// Phases are scripted: count phases report the scenario's counts, audit
// validates the counts it finds in the run snapshot, and every other phase
// succeeds unless the run step lists it under fail or fault.
//
// # Assertion Types
//
//   - phase_status: a phase of run N has the given status
//   - detail: a detail value of a phase of run N equals value
//   - run_count: the store holds exactly count runs of the pipeline
//   - invocations: a phase was invoked exactly count times over all runs
//
// # Deterministic Testing
//
// Every scenario runs against a fresh in-memory SQLite record store with a
// step clock and sequential run ids ("run-1", "run-2", ...), so traces are
// stable enough for golden file comparison.
package harness
