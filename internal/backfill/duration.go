package backfill

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"
)

// ErrInvalidDuration is returned for malformed duration literals.
var ErrInvalidDuration = errors.New("invalid duration")

// durationPattern matches a non-negative integer followed by a unit letter.
var durationPattern = regexp.MustCompile(`^(\d+)(ms|s|m|h|d|w)$`)

const (
	day  = 24 * time.Hour
	week = 7 * day
)

// ParseDuration parses a compact duration literal ("500ms", "30m", "1h",
// "7d") into a non-negative duration. Malformed input fails with
// ErrInvalidDuration.
func ParseDuration(literal string) (time.Duration, error) {
	match := durationPattern.FindStringSubmatch(literal)
	if match == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, literal)
	}

	n, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, literal)
	}

	var unit time.Duration
	switch match[2] {
	case "ms":
		unit = time.Millisecond
	case "s":
		unit = time.Second
	case "m":
		unit = time.Minute
	case "h":
		unit = time.Hour
	case "d":
		unit = day
	case "w":
		unit = week
	}

	if n > math.MaxInt64/int64(unit) {
		return 0, fmt.Errorf("%w: %q overflows", ErrInvalidDuration, literal)
	}

	return time.Duration(n) * unit, nil
}

// FormatDuration renders d as the most compact literal that encodes it
// exactly. Durations with sub-millisecond precision round down to
// milliseconds.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	switch {
	case d >= week && d%week == 0:
		return strconv.FormatInt(int64(d/week), 10) + "w"
	case d >= day && d%day == 0:
		return strconv.FormatInt(int64(d/day), 10) + "d"
	case d >= time.Hour && d%time.Hour == 0:
		return strconv.FormatInt(int64(d/time.Hour), 10) + "h"
	case d >= time.Minute && d%time.Minute == 0:
		return strconv.FormatInt(int64(d/time.Minute), 10) + "m"
	case d >= time.Second && d%time.Second == 0:
		return strconv.FormatInt(int64(d/time.Second), 10) + "s"
	default:
		return strconv.FormatInt(int64(d/time.Millisecond), 10) + "ms"
	}
}
