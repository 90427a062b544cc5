// Package conflict derives overlap information for a day's events. All
// results are recomputed per call and never stored.
package conflict

import (
	"calwidget/internal/model"
	"calwidget/internal/timeutil"
)

// HasConflict reports whether the candidate interval overlaps any of the
// existing events. Events whose times fail to parse are skipped rather
// than treated as conflicts. The result is advisory: callers may still
// insert.
func HasConflict(existing []model.Event, candidate timeutil.Interval) bool {
	for _, ev := range existing {
		iv, err := ev.Interval()
		if err != nil {
			continue
		}
		if timeutil.Overlaps(candidate, iv) {
			return true
		}
	}
	return false
}

// Flags returns one flag per event, true when that event overlaps at
// least one OTHER event in the list (self excluded). Pairwise over the
// whole set, independent of ordering.
func Flags(events []model.Event) []bool {
	flags := make([]bool, len(events))
	ivs := make([]timeutil.Interval, len(events))
	parsed := make([]bool, len(events))
	for i, ev := range events {
		iv, err := ev.Interval()
		if err != nil {
			continue
		}
		ivs[i] = iv
		parsed[i] = true
	}
	for i := range events {
		if !parsed[i] {
			continue
		}
		for j := range events {
			if i == j || !parsed[j] {
				continue
			}
			if timeutil.Overlaps(ivs[i], ivs[j]) {
				flags[i] = true
				break
			}
		}
	}
	return flags
}
