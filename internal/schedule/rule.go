// Package schedule expands recurring maintenance rules into concrete
// occurrences and clips dated items to a display window.
package schedule

import (
	"fmt"
	"strings"
	"time"
)

// FrequencyUnit is the step unit of a recurrence.
type FrequencyUnit string

const (
	Days   FrequencyUnit = "days"
	Weeks  FrequencyUnit = "weeks"
	Months FrequencyUnit = "months"
	Years  FrequencyUnit = "years"
)

// DurationUnit is the unit of an occurrence's length.
type DurationUnit string

const (
	Hours   DurationUnit = "hours"
	DayUnit DurationUnit = "days"
)

// Frequency is how often a rule repeats, e.g. every 2 weeks.
type Frequency struct {
	Value int           `json:"value"`
	Unit  FrequencyUnit `json:"unit"`
}

// Span is how long each occurrence lasts, e.g. 3 days.
type Span struct {
	Value int          `json:"value"`
	Unit  DurationUnit `json:"unit"`
}

// Rule is a validated recurrence. Build one with NewRule.
type Rule struct {
	Start     time.Time
	End       *time.Time // optional, occurrences starting after it are dropped
	Frequency Frequency
	Duration  Span
}

// ParseFrequencyUnit accepts plural or singular unit names.
func ParseFrequencyUnit(s string) (FrequencyUnit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "day", "days":
		return Days, nil
	case "week", "weeks":
		return Weeks, nil
	case "month", "months":
		return Months, nil
	case "year", "years":
		return Years, nil
	}
	return "", fmt.Errorf("schedule: unknown frequency unit %q", s)
}

// ParseDurationUnit accepts plural or singular unit names.
func ParseDurationUnit(s string) (DurationUnit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hour", "hours":
		return Hours, nil
	case "day", "days":
		return DayUnit, nil
	}
	return "", fmt.Errorf("schedule: unknown duration unit %q", s)
}

// NewRule validates its inputs and returns a Rule that is safe to expand.
// Non-positive frequency or duration values are rejected because they would
// never advance the expansion cursor.
func NewRule(start time.Time, end *time.Time, freq Frequency, dur Span) (Rule, error) {
	if start.IsZero() {
		return Rule{}, fmt.Errorf("schedule: start date is required")
	}
	if freq.Value < 1 {
		return Rule{}, fmt.Errorf("schedule: frequency value must be >= 1, got %d", freq.Value)
	}
	if _, err := ParseFrequencyUnit(string(freq.Unit)); err != nil {
		return Rule{}, err
	}
	if dur.Value < 1 {
		return Rule{}, fmt.Errorf("schedule: duration value must be >= 1, got %d", dur.Value)
	}
	if _, err := ParseDurationUnit(string(dur.Unit)); err != nil {
		return Rule{}, err
	}
	if end != nil && end.Before(start) {
		return Rule{}, fmt.Errorf("schedule: end date %s is before start date %s",
			end.Format(time.DateOnly), start.Format(time.DateOnly))
	}

	freq.Unit, _ = ParseFrequencyUnit(string(freq.Unit))
	dur.Unit, _ = ParseDurationUnit(string(dur.Unit))
	return Rule{Start: start, End: end, Frequency: freq, Duration: dur}, nil
}

// Next returns the occurrence start one frequency step after t. Month and
// year steps clamp to the last day of the target month, so a clamped date
// carries forward (Jan 31, Feb 29, Mar 29).
func (r Rule) Next(t time.Time) time.Time {
	n := r.Frequency.Value
	switch r.Frequency.Unit {
	case Weeks:
		return t.AddDate(0, 0, 7*n)
	case Months:
		return AddMonths(t, n)
	case Years:
		return AddMonths(t, 12*n)
	default:
		return t.AddDate(0, 0, n)
	}
}

// EndOf returns the end instant of an occurrence starting at start.
func (r Rule) EndOf(start time.Time) time.Time {
	if r.Duration.Unit == Hours {
		return start.Add(time.Duration(r.Duration.Value) * time.Hour)
	}
	return start.AddDate(0, 0, r.Duration.Value)
}

// AddMonths adds n calendar months to t, clamping the day of month to the
// last day of the target month (Jan 31 + 1 month = Feb 28 or 29).
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := DaysIn(first.Year(), first.Month()); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
