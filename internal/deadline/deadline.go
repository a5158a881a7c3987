// Package deadline turns the free-form deadline text typed into a recruitment
// form into an absolute time.
//
// Three grammars are accepted, tried in order:
//
//	HH:MM        clock time today, or tomorrow if it is not later than now
//	N + minutes  "30m", "30min", "30分", "30分後"
//	N + hours    "2h", "2hr", "2時間", "2時間後"
package deadline

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var ErrInvalid = errors.New("invalid deadline")

var (
	clockPattern   = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	minutesPattern = regexp.MustCompile(`^(\d+)\s*(m|min|mins|minute|minutes|分後|分)$`)
	hoursPattern   = regexp.MustCompile(`^(\d+)\s*(h|hr|hrs|hour|hours|時間後|時間)$`)
)

// Parse resolves text against now. All arithmetic happens in now's location.
func Parse(text string, now time.Time) (time.Time, error) {
	text = strings.TrimSpace(text)

	if m := clockPattern.FindStringSubmatch(text); m != nil {
		return parseClock(m[1], m[2], now, text)
	}
	if m := minutesPattern.FindStringSubmatch(text); m != nil {
		return addUnits(now, m[1], time.Minute, text)
	}
	if m := hoursPattern.FindStringSubmatch(text); m != nil {
		return addUnits(now, m[1], time.Hour, text)
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalid, text)
}

func parseClock(hh, mm string, now time.Time, text string) (time.Time, error) {
	hour, err := strconv.Atoi(hh)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalid, text)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalid, text)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return time.Time{}, fmt.Errorf("%w: %q is not a clock time", ErrInvalid, text)
	}

	// Compare clock components, not instants: seconds on now must not make
	// "12:00" at 12:00:30 count as still in the future.
	later := hour > now.Hour() || (hour == now.Hour() && minute > now.Minute())

	candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !later {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate, nil
}

func addUnits(now time.Time, digits string, unit time.Duration, text string) (time.Time, error) {
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n > math.MaxInt64/int64(unit) {
		return time.Time{}, fmt.Errorf("%w: %q is out of range", ErrInvalid, text)
	}
	return now.Add(time.Duration(n) * unit), nil
}
