package schedule

import (
	"fmt"
	"time"
)

// Window is an inclusive display span. End is the last instant of its last
// day.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Selection picks a window: a week wins over a month, a month over the year.
// Zero Month or Week means "all".
type Selection struct {
	Year  int
	Month int // 1-12, 0 for all
	Week  int // ISO week, 0 for all
}

// Zoomed reports whether a month or week is selected.
func (s Selection) Zoomed() bool {
	return s.Month != 0 || s.Week != 0
}

// YearWindow spans Jan 1 00:00 to Dec 31 23:59:59.999999999.
func YearWindow(year int, loc *time.Location) Window {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
	return Window{Start: start, End: endOfDay(time.Date(year, time.December, 31, 0, 0, 0, 0, loc))}
}

// MonthWindow spans the first to the last day of a calendar month.
func MonthWindow(year int, month time.Month, loc *time.Location) Window {
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	last := time.Date(year, month, DaysIn(year, month), 0, 0, 0, 0, loc)
	return Window{Start: start, End: endOfDay(last)}
}

// WeekWindow spans Monday to Sunday of an ISO-8601 week.
func WeekWindow(year, week int, loc *time.Location) Window {
	start := ISOWeekStart(year, week, loc)
	return Window{Start: start, End: endOfDay(start.AddDate(0, 0, 6))}
}

// WindowFor derives the display window for a selection.
func WindowFor(sel Selection, loc *time.Location) (Window, error) {
	if loc == nil {
		loc = time.UTC
	}
	switch {
	case sel.Week != 0:
		if sel.Week < 1 || sel.Week > ISOWeeksIn(sel.Year) {
			return Window{}, fmt.Errorf("schedule: week %d out of range for %d", sel.Week, sel.Year)
		}
		return WeekWindow(sel.Year, sel.Week, loc), nil
	case sel.Month != 0:
		if sel.Month < 1 || sel.Month > 12 {
			return Window{}, fmt.Errorf("schedule: month %d out of range", sel.Month)
		}
		return MonthWindow(sel.Year, time.Month(sel.Month), loc), nil
	default:
		return YearWindow(sel.Year, loc), nil
	}
}

// Contains reports whether t lies in [Start, End].
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Days is the number of calendar days the window covers.
func (w Window) Days() int {
	return DaysBetween(w.Start, w.End) + 1
}

// ISOWeekStart returns the Monday of ISO week 1..53 of year.
func ISOWeekStart(year, week int, loc *time.Location) time.Time {
	// Jan 4 is always in week 1.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, loc)
	return StartOfWeek(jan4).AddDate(0, 0, 7*(week-1))
}

// ISOWeeksIn returns 52 or 53.
func ISOWeeksIn(year int) int {
	_, w := time.Date(year, time.December, 28, 0, 0, 0, 0, time.UTC).ISOWeek()
	return w
}

// StartOfWeek returns the Monday 00:00 of the week containing t.
func StartOfWeek(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return StartOfDay(t).AddDate(0, 0, -offset)
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DaysBetween counts the full calendar days from a to b, truncated toward
// zero. Calendar dates are compared in b's location so DST shifts do not
// lose a day.
func DaysBetween(a, b time.Time) int {
	a = a.In(b.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	days := int(time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC).Sub(time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)) / (24 * time.Hour))

	ta, tb := clock(a), clock(b)
	switch {
	case days > 0 && tb < ta:
		days--
	case days < 0 && tb > ta:
		days++
	}
	return days
}

func clock(t time.Time) time.Duration {
	return t.Sub(StartOfDay(t))
}

func endOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}
