// Package cron evaluates 5-field cron patterns against local calendar time.
//
// The matcher fails closed: a pattern that does not have exactly five
// whitespace-separated fields, or a field that does not parse, never matches.
package cron

import (
	"strconv"
	"strings"
	"time"

	"pushflow/internal/tz"
)

// scanLimit bounds the forward minute scan in NextAfter to one non-leap year.
const scanLimit = 525600

// fallback applied when no matching minute is found within scanLimit steps.
const fallback = time.Hour

// Matches reports whether pattern matches the local calendar moment of t in
// loc. Field order: minute, hour, day-of-month, month, weekday (0=Sunday).
func Matches(pattern string, t time.Time, loc *time.Location) bool {
	fields := strings.Fields(pattern)
	if len(fields) != 5 {
		return false
	}
	p := tz.LocalParts(t, loc)
	return matchField(fields[0], p.Minute) &&
		matchField(fields[1], p.Hour) &&
		matchField(fields[2], p.Day) &&
		matchField(fields[3], p.Month) &&
		matchField(fields[4], p.Weekday)
}

// NextAfter returns the first instant after `after` that matches pattern,
// scanning minute-by-minute from after+1m for up to scanLimit steps. If no
// minute matches within the scan window (including patterns that can never
// match), it returns after+1h.
func NextAfter(pattern string, after time.Time, loc *time.Location) time.Time {
	t := after.Add(time.Minute).Truncate(time.Minute)
	for i := 0; i < scanLimit; i++ {
		if Matches(pattern, t, loc) {
			return t
		}
		t = t.Add(time.Minute)
	}
	return after.Add(fallback)
}

func matchField(field string, value int) bool {
	for _, part := range strings.Split(field, ",") {
		if matchPart(part, value) {
			return true
		}
	}
	return false
}

func matchPart(part string, value int) bool {
	if part == "*" {
		return true
	}
	if base, step, ok := strings.Cut(part, "/"); ok {
		n, err := strconv.Atoi(step)
		if err != nil || n <= 0 {
			return false
		}
		b := 0
		if base != "*" {
			b, err = strconv.Atoi(base)
			if err != nil {
				return false
			}
		}
		return (value-b)%n == 0
	}
	if lo, hi, ok := strings.Cut(part, "-"); ok {
		a, err1 := strconv.Atoi(lo)
		b, err2 := strconv.Atoi(hi)
		if err1 != nil || err2 != nil {
			return false
		}
		return value >= a && value <= b
	}
	n, err := strconv.Atoi(part)
	if err != nil {
		return false
	}
	return n == value
}
