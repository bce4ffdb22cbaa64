package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/drive"
)

// Memory is an in-process run record store. Runs are kept in creation
// order; every read returns a deep copy.
type Memory struct {
	mu    sync.RWMutex
	runs  []*drive.PipelineRun
	index map[string]int
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{index: make(map[string]int)}
}

func (m *Memory) CreateRun(_ context.Context, run *drive.PipelineRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.index[run.RunID]; ok {
		return fmt.Errorf("create run %s: run already exists", run.RunID)
	}
	m.index[run.RunID] = len(m.runs)
	m.runs = append(m.runs, run.Clone())
	return nil
}

func (m *Memory) UpdatePhase(_ context.Context, runID string, upd drive.PhaseUpdate) (*drive.PipelineRun, error) {
	return m.mutate(runID, func(run *drive.PipelineRun) error { return run.ApplyPhase(upd) })
}

func (m *Memory) FinalizeRun(_ context.Context, runID string, status drive.RunStatus, endedAt time.Time) (*drive.PipelineRun, error) {
	return m.mutate(runID, func(run *drive.PipelineRun) error { return run.Finalize(status, endedAt) })
}

// mutate applies fn to a copy and swaps it in only on success.
func (m *Memory) mutate(runID string, fn func(*drive.PipelineRun) error) (*drive.PipelineRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.index[runID]
	if !ok {
		return nil, ErrNotFound
	}
	next := m.runs[i].Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	m.runs[i] = next
	return next.Clone(), nil
}

func (m *Memory) GetRun(_ context.Context, runID string) (*drive.PipelineRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.index[runID]
	if !ok {
		return nil, ErrNotFound
	}
	return m.runs[i].Clone(), nil
}

func (m *Memory) LatestRun(_ context.Context, pipeline string, start, end time.Time) (*drive.PipelineRun, error) {
	name := drive.NormalizePipelineName(pipeline)

	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.runs) - 1; i >= 0; i-- {
		r := m.runs[i]
		if r.PipelineName == name && r.WindowStart.Equal(start) && r.WindowEnd.Equal(end) {
			return r.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) LastSuccessful(_ context.Context, pipeline string) (*drive.PipelineRun, error) {
	name := drive.NormalizePipelineName(pipeline)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *drive.PipelineRun
	for _, r := range m.runs {
		if r.PipelineName != name || r.Status != drive.RunSuccess {
			continue
		}
		if best == nil || !r.WindowEnd.Before(best.WindowEnd) {
			best = r
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	return best.Clone(), nil
}

func (m *Memory) ListRuns(_ context.Context, pipeline string, limit int) ([]*drive.PipelineRun, error) {
	name := drive.NormalizePipelineName(pipeline)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*drive.PipelineRun
	for i := len(m.runs) - 1; i >= 0; i-- {
		if m.runs[i].PipelineName != name {
			continue
		}
		out = append(out, m.runs[i].Clone())
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
