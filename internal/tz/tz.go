// Package tz converts between naive local wall-clock strings and absolute
// instants, given an IANA timezone.
package tz

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Parts are the local calendar components of an instant in some timezone.
// Weekday is 0=Sunday..6=Saturday.
type Parts struct {
	Year    int
	Month   int
	Day     int
	Hour    int
	Minute  int
	Second  int
	Weekday int
}

// Layouts accepted for strings that carry their own zone designator.
var zonedLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04Z0700",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04Z07:00",
}

// Layouts accepted for naive wall-clock strings.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// Matches a trailing Z or ±HH:MM / ±HHMM offset after the time portion.
var zoneSuffix = regexp.MustCompile(`(Z|[+-]\d{2}:?\d{2})$`)

// ToInstant resolves a timestamp string to an absolute instant.
//
// A string with an explicit zone designator is parsed as-is and loc is
// ignored. A naive string is interpreted as local wall-clock time in loc
// using a two-step approximation: the numeric fields are first read as a
// UTC-literal guess, then the guess's offset in loc is subtracted. Within a
// DST transition's ambiguous or skipped window this resolves using the
// offset in force at the UTC-literal guess.
func ToInstant(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty datetime")
	}
	if zoneSuffix.MatchString(s) {
		for _, layout := range zonedLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognized zoned datetime %q", s)
	}
	for _, layout := range naiveLayouts {
		guess, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		off := OffsetMinutes(guess, loc)
		return guess.Add(-time.Duration(off) * time.Minute), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized datetime %q", s)
}

// LocalParts extracts the local calendar fields of t in loc.
func LocalParts(t time.Time, loc *time.Location) Parts {
	lt := t.In(loc)
	return Parts{
		Year:    lt.Year(),
		Month:   int(lt.Month()),
		Day:     lt.Day(),
		Hour:    lt.Hour(),
		Minute:  lt.Minute(),
		Second:  lt.Second(),
		Weekday: int(lt.Weekday()),
	}
}

// OffsetMinutes reports the UTC offset of loc at instant t, in minutes.
func OffsetMinutes(t time.Time, loc *time.Location) int {
	_, off := t.In(loc).Zone()
	return off / 60
}
