package engine

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/drive"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/phase"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/window"
)

// LatestRunReader finds the most recently created run for an exact window.
// It returns drive.ErrRunNotFound when there is none.
type LatestRunReader interface {
	LatestRun(ctx context.Context, pipeline string, start, end time.Time) (*drive.PipelineRun, error)
}

// Resolution is the outcome of consulting the record store before a run.
type Resolution struct {
	// Fresh is false when the run continues a failed prior run.
	Fresh bool
	// Prior is the most recent earlier run for the window, or nil.
	Prior *drive.PipelineRun
	// RetryNumber is the retry number of the new run.
	RetryNumber int

	skip []string
}

// SkipSet returns the phases carried over from Prior, in registry order.
func (r Resolution) SkipSet() []string { return slices.Clone(r.skip) }

// Skips reports whether name is carried over from Prior.
func (r Resolution) Skips(name string) bool { return slices.Contains(r.skip, name) }

// Carried returns the record to store for a phase carried over from Prior.
// The prior detail is copied so later phases can read it from the new run.
func (r Resolution) Carried(name string) drive.PhaseRecord {
	prev := r.Prior.Details[name]

	reason := drive.SkipReasonCompleted
	if prev.Status == drive.PhaseSkipped && prev.SkipReason != "" {
		reason = prev.SkipReason
	}

	detail := drive.CloneDetail(prev.Detail)
	if detail == nil {
		detail = make(map[string]any, 1)
	}
	if _, ok := detail["carried_from"]; !ok {
		detail["carried_from"] = r.Prior.RunID
	}

	return drive.PhaseRecord{
		Status:     drive.PhaseSkipped,
		SkipReason: reason,
		Detail:     detail,
	}
}

// Resolve decides whether a run over w is fresh or a continuation.
//
// Only the most recent prior run for the exact window is consulted. A prior
// FAILED run makes the new run a continuation that skips the prior run's
// completed and skipped phases. A prior RUNNING run was abandoned (the
// trigger never overlaps runs for one window) and is treated as FAILED.
// A prior SUCCESS or SKIPPED run makes the new run a fresh reprocessing.
//
// The retry number is the prior run's retry number plus one, or 0.
func Resolve(ctx context.Context, s LatestRunReader, reg *phase.Registry, pipeline string, w window.Window) (Resolution, error) {
	prior, err := s.LatestRun(ctx, pipeline, w.Start, w.End)
	if errors.Is(err, drive.ErrRunNotFound) {
		return Resolution{Fresh: true}, nil
	}
	if err != nil {
		return Resolution{}, err
	}

	res := Resolution{
		Fresh:       true,
		Prior:       prior,
		RetryNumber: prior.RetryNumber + 1,
	}
	if prior.Status != drive.RunFailed && prior.Status != drive.RunRunning {
		return res, nil
	}

	done := append(prior.Phases.Completed(), prior.Phases.Skipped()...)
	for _, name := range reg.Names() {
		if slices.Contains(done, name) {
			res.skip = append(res.skip, name)
		}
	}
	res.Fresh = false
	return res, nil
}
