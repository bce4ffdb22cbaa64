// Package window computes the half-open query windows a pipeline run
// processes.
//
// A window is [Start, End). Windows are aligned to a granularity, never
// reach past the (rounded) current time, and are clamped by the optional
// look-back limit and acceptable fetch bounds of the pipeline
// configuration. Gaps between the last successful window and the next one
// are reported as granularity-sized intervals.
package window

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the layout of a window's target date.
const DateLayout = "2006-01-02"

// ErrEmptyWindow is returned when the constraints leave no data to fetch.
var ErrEmptyWindow = errors.New("query window is empty")

// Window is a half-open time interval [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Validate checks End > Start.
func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return fmt.Errorf("window bounds must be set")
	}
	if !w.End.After(w.Start) {
		return fmt.Errorf("window end %s must be after start %s",
			w.End.Format(time.RFC3339), w.Start.Format(time.RFC3339))
	}
	return nil
}

// Duration returns End - Start.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// TargetDate is the UTC calendar date of Start.
func (w Window) TargetDate() string {
	return w.Start.UTC().Format(DateLayout)
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)", w.Start.UTC().Format(time.RFC3339), w.End.UTC().Format(time.RFC3339))
}

// Direction selects how RoundToGranularity rounds.
type Direction int

const (
	Down Direction = iota
	Up
	Nearest
)

// RoundToGranularity aligns t to a multiple of g counted from the Unix
// epoch. The result is in UTC.
func RoundToGranularity(t time.Time, g time.Duration, dir Direction) (time.Time, error) {
	if g <= 0 {
		return time.Time{}, fmt.Errorf("granularity must be positive, got %s", g)
	}

	ns, gn := t.UnixNano(), int64(g)
	rem := ns % gn
	if rem < 0 {
		rem += gn
	}
	down := time.Unix(0, ns-rem).UTC()

	switch dir {
	case Down:
		return down, nil
	case Up:
		if down.Equal(t) {
			return down, nil
		}
		return down.Add(g), nil
	case Nearest:
		if t.Sub(down) >= g-t.Sub(down) {
			return down.Add(g), nil
		}
		return down, nil
	default:
		return time.Time{}, fmt.Errorf("unknown rounding direction %d", dir)
	}
}

// Settings are the window constraints taken from configuration.
type Settings struct {
	Granularity time.Duration
	// XDaysBack limits how far behind the current time a window may start.
	// Zero disables the limit.
	XDaysBack       time.Duration
	AcceptableStart *time.Time
	AcceptableEnd   *time.Time
}

// Calculate returns the next window to process at time now.
//
// lastSuccessEnd is the end of the most recent successful window, or nil
// when the pipeline never succeeded.
func Calculate(s Settings, now time.Time, lastSuccessEnd *time.Time) (Window, error) {
	if s.Granularity <= 0 {
		return Window{}, fmt.Errorf("granularity must be positive, got %s", s.Granularity)
	}

	current, err := RoundToGranularity(now, s.Granularity, Down)
	if err != nil {
		return Window{}, err
	}

	var earliest *time.Time
	if s.XDaysBack > 0 {
		e := current.Add(-s.XDaysBack)
		earliest = &e
	}

	var start time.Time
	switch {
	case lastSuccessEnd != nil:
		start = lastSuccessEnd.UTC()
	case s.AcceptableStart != nil:
		start = s.AcceptableStart.UTC()
	case earliest != nil:
		start = *earliest
	default:
		start = current.Add(-s.Granularity)
	}

	start, err = RoundToGranularity(start, s.Granularity, Down)
	if err != nil {
		return Window{}, err
	}
	if earliest != nil && start.Before(*earliest) {
		start = *earliest
	}
	if s.AcceptableStart != nil && start.Before(s.AcceptableStart.UTC()) {
		start = s.AcceptableStart.UTC()
	}

	end := start.Add(s.Granularity)
	if end.After(current) {
		end = current
	}
	if s.AcceptableEnd != nil && end.After(s.AcceptableEnd.UTC()) {
		end = s.AcceptableEnd.UTC()
	}

	if !end.After(start) {
		return Window{}, fmt.Errorf("%w: start %s, end %s", ErrEmptyWindow,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return Window{Start: start, End: end}, nil
}

// DetectGaps splits [lastEnd, nextStart) into intervals of at most one
// granularity. It returns nil when there is no gap.
func DetectGaps(lastEnd, nextStart time.Time, g time.Duration) []Window {
	if g <= 0 || !lastEnd.Before(nextStart) {
		return nil
	}

	var gaps []Window
	for cur := lastEnd.UTC(); cur.Before(nextStart); {
		end := cur.Add(g)
		if end.After(nextStart) {
			end = nextStart.UTC()
		}
		gaps = append(gaps, Window{Start: cur, End: end})
		cur = end
	}
	return gaps
}
