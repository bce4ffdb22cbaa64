package engine

import "time"

// Clock supplies the wall time recorded on runs and phases.
//
// Wall time is informational only. Run ordering comes from the record
// store's sequence, so a clock that jumps backwards cannot reorder runs.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the system time in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }
