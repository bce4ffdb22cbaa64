package window

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ts(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return v
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"30s", 30 * time.Second},
		{"45sec", 45 * time.Second},
		{"100millisec", 100 * time.Millisecond},
		{"30m", 30 * time.Minute},
		{"45min", 45 * time.Minute},
		{"1h", time.Hour},
		{"2hours", 2 * time.Hour},
		{"2d", 48 * time.Hour},
		{"1w", 7 * 24 * time.Hour},
		{"1month", 30 * 24 * time.Hour},
		{" 1.5H ", 90 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDuration_Invalid(t *testing.T) {
	for _, in := range []string{"", "h", "1y", "ten minutes", "-1h"} {
		_, err := ParseDuration(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestParseDuration_Overflow(t *testing.T) {
	for _, in := range []string{"300000d", "1000000000month", "9223372036854775808ms"} {
		d, err := ParseDuration(in)
		require.Error(t, err, "input %q", in)
		assert.Contains(t, err.Error(), "exceeds")
		assert.Zero(t, d)
	}

	d, err := ParseDuration("100000d")
	require.NoError(t, err)
	assert.Equal(t, 100000*24*time.Hour, d)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "1h 1m 5s", FormatDuration(3665*time.Second))
	assert.Equal(t, "2m", FormatDuration(2*time.Minute))
	assert.Equal(t, "45s", FormatDuration(45*time.Second))
	assert.Equal(t, "1h", FormatDuration(time.Hour))
	assert.Equal(t, "0s", FormatDuration(0))
	assert.Equal(t, "0s", FormatDuration(400*time.Millisecond))
}

func TestParseFormatted(t *testing.T) {
	d, err := ParseFormatted("1h 30m 45s")
	require.NoError(t, err)
	assert.Equal(t, 5445*time.Second, d)

	d, err = ParseFormatted("45m")
	require.NoError(t, err)
	assert.Equal(t, 45*time.Minute, d)

	_, err = ParseFormatted("0s")
	assert.Error(t, err)

	_, err = ParseFormatted("abc")
	assert.Error(t, err)

	_, err = ParseFormatted("3000000h")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")

	_, err = ParseFormatted("2562047h 47m 17s")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestParseAny(t *testing.T) {
	d, err := ParseAny("1h 30m")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, d)

	d, err = ParseAny("90min")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, d)
}

func TestExceeded(t *testing.T) {
	assert.False(t, Exceeded(10*time.Minute, 5*time.Minute, 2.0))
	assert.True(t, Exceeded(11*time.Minute, 5*time.Minute, 2.0))
}

func TestRoundToGranularity(t *testing.T) {
	in := ts(t, "2025-11-16T10:37:42Z")

	got, err := RoundToGranularity(in, time.Hour, Down)
	require.NoError(t, err)
	assert.Equal(t, ts(t, "2025-11-16T10:00:00Z"), got)

	got, err = RoundToGranularity(in, 15*time.Minute, Down)
	require.NoError(t, err)
	assert.Equal(t, ts(t, "2025-11-16T10:30:00Z"), got)

	got, err = RoundToGranularity(in, time.Hour, Up)
	require.NoError(t, err)
	assert.Equal(t, ts(t, "2025-11-16T11:00:00Z"), got)

	got, err = RoundToGranularity(in, time.Hour, Nearest)
	require.NoError(t, err)
	assert.Equal(t, ts(t, "2025-11-16T11:00:00Z"), got)

	aligned := ts(t, "2025-11-16T10:00:00Z")
	got, err = RoundToGranularity(aligned, time.Hour, Up)
	require.NoError(t, err)
	assert.Equal(t, aligned, got)

	_, err = RoundToGranularity(in, 0, Down)
	assert.Error(t, err)
}

func TestWindow_Validate(t *testing.T) {
	start := ts(t, "2025-11-15T10:00:00Z")
	assert.NoError(t, Window{Start: start, End: start.Add(time.Hour)}.Validate())
	assert.Error(t, Window{Start: start, End: start}.Validate())
	assert.Error(t, Window{Start: start, End: start.Add(-time.Hour)}.Validate())
	assert.Error(t, Window{}.Validate())
}

func TestWindow_TargetDateAndDuration(t *testing.T) {
	w := Window{Start: ts(t, "2025-11-15T23:00:00Z"), End: ts(t, "2025-11-16T00:00:00Z")}
	assert.Equal(t, "2025-11-15", w.TargetDate())
	assert.Equal(t, time.Hour, w.Duration())
	assert.True(t, w.Contains(w.Start))
	assert.False(t, w.Contains(w.End))
}

func TestCalculate_ContinuesFromLastSuccess(t *testing.T) {
	now := ts(t, "2025-11-16T10:37:42Z")
	last := ts(t, "2025-11-16T08:00:00Z")

	w, err := Calculate(Settings{Granularity: time.Hour, XDaysBack: 7 * 24 * time.Hour}, now, &last)
	require.NoError(t, err)
	assert.Equal(t, ts(t, "2025-11-16T08:00:00Z"), w.Start)
	assert.Equal(t, ts(t, "2025-11-16T09:00:00Z"), w.End)
}

func TestCalculate_NoPriorRunUsesAcceptableStart(t *testing.T) {
	now := ts(t, "2025-11-16T10:37:42Z")
	accept := ts(t, "2025-11-16T05:00:00Z")

	w, err := Calculate(Settings{Granularity: time.Hour, AcceptableStart: &accept}, now, nil)
	require.NoError(t, err)
	assert.Equal(t, accept, w.Start)
	assert.Equal(t, accept.Add(time.Hour), w.End)
}

func TestCalculate_ClampsToLookBack(t *testing.T) {
	now := ts(t, "2025-11-16T10:37:42Z")
	last := ts(t, "2025-11-01T00:00:00Z")

	w, err := Calculate(Settings{Granularity: time.Hour, XDaysBack: 24 * time.Hour}, now, &last)
	require.NoError(t, err)
	assert.Equal(t, ts(t, "2025-11-15T10:00:00Z"), w.Start)
}

func TestCalculate_ClampsEndToNowAndAcceptableEnd(t *testing.T) {
	now := ts(t, "2025-11-16T10:37:42Z")
	accept := ts(t, "2025-11-16T09:30:00Z")

	w, err := Calculate(Settings{Granularity: time.Hour, AcceptableStart: &accept}, now, nil)
	require.NoError(t, err)
	assert.Equal(t, accept, w.Start)
	assert.Equal(t, ts(t, "2025-11-16T10:00:00Z"), w.End)

	last := ts(t, "2025-11-16T08:00:00Z")
	end := ts(t, "2025-11-16T08:30:00Z")
	w, err = Calculate(Settings{Granularity: time.Hour, AcceptableEnd: &end}, ts(t, "2025-11-16T12:00:00Z"), &last)
	require.NoError(t, err)
	assert.Equal(t, end, w.End)
}

func TestCalculate_EmptyWindow(t *testing.T) {
	now := ts(t, "2025-11-16T10:37:42Z")
	last := ts(t, "2025-11-16T10:00:00Z")

	_, err := Calculate(Settings{Granularity: time.Hour}, now, &last)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyWindow))
}

func TestDetectGaps(t *testing.T) {
	last := ts(t, "2025-11-16T07:00:00Z")
	next := ts(t, "2025-11-16T09:30:00Z")

	gaps := DetectGaps(last, next, time.Hour)
	require.Len(t, gaps, 3)
	assert.Equal(t, Window{Start: last, End: ts(t, "2025-11-16T08:00:00Z")}, gaps[0])
	assert.Equal(t, Window{Start: ts(t, "2025-11-16T09:00:00Z"), End: next}, gaps[2])

	assert.Nil(t, DetectGaps(next, next, time.Hour))
	assert.Nil(t, DetectGaps(next, last, time.Hour))
}
