// Package timeutil converts "HH:MM" clock strings to comparable minute
// offsets and computes interval overlap on them.
package timeutil

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidFormat is returned when a clock string cannot be split into
// two numeric parts around a colon.
var ErrInvalidFormat = errors.New("invalid time format, want HH:MM")

// ToMinutes parses a 24h "HH:MM" string into minutes since midnight.
//
// Parsing is deliberately loose beyond the two-numeric-parts rule:
// out-of-range values like "25:99" still compute arithmetically
// (25*60+99). Range validation for user input belongs to the model
// layer, not here.
func ToMinutes(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	return h*60 + m, nil
}

// FormatMinutes renders minutes since midnight back to "HH:MM".
// It is the display inverse of ToMinutes for in-range values.
func FormatMinutes(min int) string {
	return fmt.Sprintf("%02d:%02d", min/60, min%60)
}

// Interval is a clock-time span in minutes since midnight. An event
// without an end is represented as Start == End (a zero-duration point).
type Interval struct {
	Start int
	End   int
}

// Overlaps reports whether a and b intersect as half-open intervals:
// a.Start < b.End && b.Start < a.End.
//
// Two point intervals at the same minute do NOT overlap (x < x is
// false); a point interval strictly inside a positive-duration interval
// does. Callers rely on exactly these semantics.
func Overlaps(a, b Interval) bool {
	return a.Start < b.End && b.Start < a.End
}
