package window

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Month is the fixed length used for the "month" unit.
const Month = 30 * 24 * time.Hour

var durationPattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*(millisec|ms|sec|s|min|m|hour|h|day|d|week|w|month)s?$`)

// ParseDuration parses a configuration duration such as "30s", "45min",
// "1h", "2d", "1w" or "1month". A month is always 30 days.
func ParseDuration(s string) (time.Duration, error) {
	raw := strings.ToLower(strings.TrimSpace(s))
	if raw == "" {
		return 0, fmt.Errorf("duration is empty")
	}

	m := durationPattern.FindStringSubmatch(raw)
	if m == nil {
		return 0, fmt.Errorf("invalid duration %q: expected <number><unit> such as 1h, 30m, 2d, 1month", s)
	}

	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	var unit time.Duration
	switch m[2] {
	case "millisec", "ms":
		unit = time.Millisecond
	case "sec", "s":
		unit = time.Second
	case "min", "m":
		unit = time.Minute
	case "hour", "h":
		unit = time.Hour
	case "day", "d":
		unit = 24 * time.Hour
	case "week", "w":
		unit = 7 * 24 * time.Hour
	case "month":
		unit = Month
	}

	total := value * float64(unit)
	if total >= math.MaxInt64 {
		return 0, fmt.Errorf("invalid duration %q: exceeds %s", s, time.Duration(math.MaxInt64))
	}
	return time.Duration(total), nil
}

// FormatDuration renders d as "1h 30m 45s". Sub-second precision is
// dropped and a zero duration renders as "0s".
func FormatDuration(d time.Duration) string {
	total := int64(d / time.Second)
	if total < 0 {
		total = 0
	}

	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	var parts []string
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%ds", seconds))
	}
	return strings.Join(parts, " ")
}

var formattedPattern = regexp.MustCompile(`^(?:(\d+)h)?\s*(?:(\d+)m)?\s*(?:(\d+)s)?$`)

// ParseFormatted is the inverse of FormatDuration. Zero durations are
// rejected because they never appear as an expected run duration.
func ParseFormatted(s string) (time.Duration, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return 0, fmt.Errorf("duration is empty")
	}

	m := formattedPattern.FindStringSubmatch(raw)
	if m == nil {
		return 0, fmt.Errorf("invalid formatted duration %q", s)
	}

	var total time.Duration
	for i, unit := range []time.Duration{time.Hour, time.Minute, time.Second} {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0, fmt.Errorf("invalid formatted duration %q: %w", s, err)
		}
		if time.Duration(n) > (math.MaxInt64-total)/unit {
			return 0, fmt.Errorf("invalid formatted duration %q: exceeds %s", s, time.Duration(math.MaxInt64))
		}
		total += time.Duration(n) * unit
	}

	if total == 0 {
		return 0, fmt.Errorf("formatted duration %q is zero", s)
	}
	return total, nil
}

// ParseAny accepts either notation: "1h 30m" or "90min".
func ParseAny(s string) (time.Duration, error) {
	if durationPattern.MatchString(strings.ToLower(strings.TrimSpace(s))) {
		return ParseDuration(s)
	}
	return ParseFormatted(s)
}

// Exceeded reports whether actual is strictly greater than
// expected*multiplier.
func Exceeded(actual, expected time.Duration, multiplier float64) bool {
	threshold := time.Duration(float64(expected) * multiplier)
	return actual > threshold
}
