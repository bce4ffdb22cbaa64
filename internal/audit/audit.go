// Package audit compares record counts between pipeline stages against
// configured loss tolerances.
package audit

import (
	"fmt"
	"math"
	"strings"
)

// Default tolerances used when a pipeline configures none.
const (
	DefaultSourceToStagePercent = 2.0
	DefaultStageToTargetPercent = 1.0
)

// Counts are the record counts observed for one window.
type Counts struct {
	Source int64 `json:"source_count"`
	Stage  int64 `json:"stage_count"`
	Target int64 `json:"target_count"`
}

// Tolerances are the maximum acceptable loss percentages per hop.
type Tolerances struct {
	SourceToStagePercent float64 `json:"source_to_stage_tolerance_percent"`
	StageToTargetPercent float64 `json:"stage_to_target_tolerance_percent"`
}

// Defect classifies why a hop failed.
type Defect string

const (
	DefectNone Defect = ""
	// DefectToleranceBreach is a loss above the configured tolerance.
	DefectToleranceBreach Defect = "tolerance_breach"
	// DefectCountIncrease is a downstream count above the upstream count.
	// It fails regardless of tolerance.
	DefectCountIncrease Defect = "count_increase"
	// DefectEmptyUpstream is rows appearing downstream of an empty stage.
	DefectEmptyUpstream Defect = "empty_upstream"
	// DefectInvalidInput is a negative count or a negative or non-finite
	// tolerance.
	DefectInvalidInput Defect = "invalid_input"
)

// Check is the result of comparing one hop.
type Check struct {
	Hop              string  `json:"hop"`
	Upstream         int64   `json:"upstream_count"`
	Downstream       int64   `json:"downstream_count"`
	LossPercent      float64 `json:"loss_percent"`
	TolerancePercent float64 `json:"tolerance_percent"`
	Passed           bool    `json:"passed"`
	Defect           Defect  `json:"defect,omitempty"`
	Reason           string  `json:"reason,omitempty"`
}

// Report is the outcome of Validate.
type Report struct {
	Counts     Counts     `json:"counts"`
	Tolerances Tolerances `json:"tolerances"`
	// SourceToStageLoss and StageToTargetLoss are percentages. A negative
	// value records a count increase.
	SourceToStageLoss float64 `json:"source_to_stage_loss_percent"`
	StageToTargetLoss float64 `json:"stage_to_target_loss_percent"`
	Passed            bool    `json:"passed"`
	Reason            string  `json:"reason,omitempty"`
	Checks            []Check `json:"checks"`
}

// Validate compares the three counts against the tolerances. It has no
// side effects and returns the same report for the same inputs.
func Validate(c Counts, tol Tolerances) Report {
	r := Report{Counts: c, Tolerances: tol}

	if reason := invalidInput(c, tol); reason != "" {
		r.Reason = reason
		r.Checks = []Check{}
		return r
	}

	a := checkHop("source_to_stage", c.Source, c.Stage, tol.SourceToStagePercent)
	b := checkHop("stage_to_target", c.Stage, c.Target, tol.StageToTargetPercent)

	r.SourceToStageLoss = a.LossPercent
	r.StageToTargetLoss = b.LossPercent
	r.Checks = []Check{a, b}
	r.Passed = a.Passed && b.Passed

	var reasons []string
	for _, ch := range r.Checks {
		if !ch.Passed {
			reasons = append(reasons, ch.Reason)
		}
	}
	r.Reason = strings.Join(reasons, "; ")
	return r
}

func invalidInput(c Counts, tol Tolerances) string {
	switch {
	case c.Source < 0 || c.Stage < 0 || c.Target < 0:
		return fmt.Sprintf("invalid counts: source=%d stage=%d target=%d", c.Source, c.Stage, c.Target)
	case !validTolerance(tol.SourceToStagePercent) || !validTolerance(tol.StageToTargetPercent):
		return fmt.Sprintf("invalid tolerances: source_to_stage=%g stage_to_target=%g",
			tol.SourceToStagePercent, tol.StageToTargetPercent)
	}
	return ""
}

// validTolerance rejects negative and non-finite percentages. A NaN
// tolerance would make every loss comparison false.
func validTolerance(p float64) bool {
	return p >= 0 && !math.IsInf(p, 0)
}

func checkHop(hop string, upstream, downstream int64, tolerance float64) Check {
	ch := Check{
		Hop:              hop,
		Upstream:         upstream,
		Downstream:       downstream,
		TolerancePercent: tolerance,
	}

	if upstream == 0 {
		if downstream == 0 {
			ch.Passed = true
			return ch
		}
		ch.Defect = DefectEmptyUpstream
		ch.Reason = fmt.Sprintf("%s: %d rows downstream of an empty upstream", hop, downstream)
		return ch
	}

	// Multiply before dividing so that exact ratios stay exact: 200*100/10000
	// is 2 while 200/10000*100 is 2.0000000000000004.
	ch.LossPercent = float64(upstream-downstream) * 100 / float64(upstream)

	switch {
	case downstream > upstream:
		ch.Defect = DefectCountIncrease
		ch.Reason = fmt.Sprintf("%s: count increased from %d to %d (duplicate insertion)", hop, upstream, downstream)
	case ch.LossPercent > tolerance:
		ch.Defect = DefectToleranceBreach
		ch.Reason = fmt.Sprintf("%s: loss %.3f%% exceeds tolerance %.3f%%", hop, ch.LossPercent, tolerance)
	default:
		ch.Passed = true
	}
	return ch
}
