// Package model holds the central calendar types shared by the store,
// conflict detection, reminders and the HTTP API.
package model

import (
	"errors"
	"fmt"
	"time"

	"calwidget/internal/timeutil"
)

// DefaultColor is assigned to events created without a color.
const DefaultColor = "#6366f1"

// DateKey identifies a day bucket, formatted YYYY-MM-DD.
type DateKey string

const dateKeyLayout = "2006-01-02"

var ErrBadDateKey = errors.New("invalid date key, want YYYY-MM-DD")

// Validate checks that the key is a real calendar date.
func (d DateKey) Validate() error {
	if _, err := time.ParseInLocation(dateKeyLayout, string(d), time.UTC); err != nil {
		return fmt.Errorf("%w: %q", ErrBadDateKey, string(d))
	}
	return nil
}

// StartAt resolves the key plus a "HH:MM" clock string to a wall-clock
// instant in loc.
func (d DateKey) StartAt(clock string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(dateKeyLayout+"T15:04", string(d)+"T"+clock, loc)
}

// Event is a single timed calendar entry.
//
// LegacyTime mirrors the "time" field older saved data and seed entries
// use in place of "startTime"; Clock prefers StartTime when both are
// set. Color is stored as an opaque string and is not validated as a
// hex value.
type Event struct {
	Title      string `json:"title"`
	StartTime  string `json:"startTime,omitempty"`
	LegacyTime string `json:"time,omitempty"`
	EndTime    string `json:"endTime,omitempty"`
	Color      string `json:"color,omitempty"`
}

// Clock returns the event's start clock string, whichever field carries it.
func (e Event) Clock() string {
	if e.StartTime != "" {
		return e.StartTime
	}
	return e.LegacyTime
}

// Interval maps the event onto minutes since midnight. An event without
// an end time becomes a zero-duration point at its start.
func (e Event) Interval() (timeutil.Interval, error) {
	start, err := timeutil.ToMinutes(e.Clock())
	if err != nil {
		return timeutil.Interval{}, err
	}
	end := start
	if e.EndTime != "" {
		if end, err = timeutil.ToMinutes(e.EndTime); err != nil {
			return timeutil.Interval{}, err
		}
	}
	return timeutil.Interval{Start: start, End: end}, nil
}

var (
	ErrMissingTitle     = errors.New("event title is required")
	ErrMissingStart     = errors.New("event start time is required")
	ErrEndNotAfterStart = errors.New("event end time must be after start time")
)

// Validate enforces the invariants for user-created events: a title, a
// parseable start, and an end strictly after the start when present.
func (e Event) Validate() error {
	if e.Title == "" {
		return ErrMissingTitle
	}
	if e.Clock() == "" {
		return ErrMissingStart
	}
	start, err := timeutil.ToMinutes(e.Clock())
	if err != nil {
		return err
	}
	if e.EndTime != "" {
		end, err := timeutil.ToMinutes(e.EndTime)
		if err != nil {
			return err
		}
		if end <= start {
			return ErrEndNotAfterStart
		}
	}
	return nil
}

// Normalized returns a copy with the default color filled in.
func (e Event) Normalized() Event {
	if e.Color == "" {
		e.Color = DefaultColor
	}
	return e
}

// SeedEntry is one element of the seed resource: an event plus the date
// it belongs to.
type SeedEntry struct {
	Date DateKey `json:"date"`
	Event
}
