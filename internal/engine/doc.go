// Package engine drives one pipeline run through the phase registry.
//
// The Controller owns a run from creation to finalization:
//
//  1. Resolver looks up the most recent prior run for the exact window and
//     decides between a fresh run and a continuation with a skip set.
//  2. A new run record is created in the record store with every registry
//     phase pending.
//  3. Phases are visited in registry order. A phase in the skip set, or one
//     disabled by configuration, is recorded as SKIPPED. Any other phase is
//     handed to the Executor.
//  4. The first failing phase halts the run. Later phases stay pending.
//  5. The run is finalized as SUCCESS, FAILED or SKIPPED.
//
// Execution is strictly sequential. Each phase transition is one atomic
// store update and happens before the halt decision for that phase, which
// happens before the next phase starts.
//
// Ordering of runs never relies on wall-clock timestamps: "most recent" is
// the record store's insertion sequence. Wall time is only recorded.
//
// Two runs for the same (pipeline, window) must not execute concurrently.
// The trigger guarantees this; the engine does not lock.
package engine
