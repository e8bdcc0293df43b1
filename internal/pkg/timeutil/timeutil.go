// Package timeutil keeps every instant the service stores or compares in one
// canonical form: UTC, truncated to whole seconds.
package timeutil

import (
	"errors"
	"strings"
	"time"
	_ "time/tzdata"
)

const DateLayout = "2006-01-02"

var ErrInvalidTime = errors.New("invalid time value")

// layouts without an offset are interpreted in the reference location.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// Normalize converts t to its stored representation.
func Normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) share an instant.
// Touching intervals do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// Contains reports whether t lies in [start, end).
func Contains(start, end, t time.Time) bool {
	return !t.Before(start) && t.Before(end)
}

// ParseInstant accepts RFC 3339 timestamps and offset-less local timestamps.
// The latter are read in loc.
func ParseInstant(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidTime
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return Normalize(t), nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return Normalize(t), nil
		}
	}
	return time.Time{}, ErrInvalidTime
}

// ParseDate parses a YYYY-MM-DD calendar date as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, ErrInvalidTime
	}
	return d, nil
}

// DayBounds returns the normalized [start, end) of the calendar day in loc.
func DayBounds(day time.Time, loc *time.Location) (time.Time, time.Time) {
	local := day.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	return Normalize(start), Normalize(end)
}

// At builds the instant hour:minute on the calendar day of day in loc.
// An hour of 24 with minute 0 is the following midnight.
func At(day time.Time, hour, minute int, loc *time.Location) time.Time {
	local := day.In(loc)
	return Normalize(time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc))
}
