package drive

import (
	"encoding/json"
	"math"
	"time"

	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/window"
)

// Snapshot is a read-only copy of a run handed to phase implementations.
// Changes to the live run after the snapshot was taken are not visible.
type Snapshot struct {
	run *PipelineRun
}

// Snapshot returns a read-only deep copy of r.
func (r *PipelineRun) Snapshot() Snapshot {
	return Snapshot{run: r.Clone()}
}

func (s Snapshot) RunID() string        { return s.run.RunID }
func (s Snapshot) PipelineName() string { return s.run.PipelineName }
func (s Snapshot) RetryNumber() int     { return s.run.RetryNumber }
func (s Snapshot) TargetDate() string   { return s.run.TargetDate }
func (s Snapshot) Status() RunStatus    { return s.run.Status }
func (s Snapshot) StartedAt() time.Time { return s.run.StartedAt }

func (s Snapshot) Window() window.Window { return s.run.Window() }

// Completed returns the phases completed so far in this run.
func (s Snapshot) Completed() []string { return s.run.Phases.Completed() }

// Record returns a copy of the phase record for name.
func (s Snapshot) Record(name string) (PhaseRecord, bool) {
	rec, ok := s.run.Details[name]
	if !ok {
		return PhaseRecord{}, false
	}
	return rec.Clone(), true
}

// PhaseStatus returns the status of name, or "" for unknown phases.
func (s Snapshot) PhaseStatus(name string) PhaseStatus {
	return s.run.Details[name].Status
}

// DetailValue returns one value of a phase's detail payload.
func (s Snapshot) DetailValue(phase, key string) (any, bool) {
	rec, ok := s.run.Details[phase]
	if !ok || rec.Detail == nil {
		return nil, false
	}
	v, ok := rec.Detail[key]
	if !ok {
		return nil, false
	}
	return cloneValue(v), true
}

// DetailInt returns an integral detail value. Payloads loaded from JSON hold
// float64 or json.Number, both accepted when they carry a whole number.
func (s Snapshot) DetailInt(phase, key string) (int64, bool) {
	v, ok := s.DetailValue(phase, key)
	if !ok {
		return 0, false
	}
	return asInt64(v)
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint32:
		return int64(n), true
	case float64:
		// float64(math.MaxInt64) rounds up to 2^63, itself out of range.
		if n != math.Trunc(n) || n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}
