package timeline

import (
	"fmt"
	"time"

	"github.com/zulandar/stopyard/internal/schedule"
)

// RulerMode is the default tick granularity of the year view.
type RulerMode string

const (
	RulerWeeks  RulerMode = "weeks"
	RulerMonths RulerMode = "months"
)

// Tick is one ruler segment.
type Tick struct {
	Label   string    `json:"label"`
	Start   time.Time `json:"start"` // first in-window day
	Days    int       `json:"days"`  // in-window days
	Width   int       `json:"width"` // pixels
	Week    int       `json:"week,omitempty"`
	Current bool      `json:"current"`
}

// Ruler builds the axis for w. A selected week renders a single tick, a
// selected month renders weekly ticks when zoomed enough, otherwise mode
// decides.
func Ruler(w schedule.Window, sel schedule.Selection, mode RulerMode, pixelsPerDay int, now time.Time) []Tick {
	now = now.In(w.Start.Location())
	currentYear := now.Year() == sel.Year

	switch {
	case sel.Week != 0:
		return []Tick{{
			Label:   fmt.Sprintf("Week %d %s-%s", sel.Week, w.Start.Format("02/01"), w.End.Format("02/01")),
			Start:   w.Start,
			Days:    w.Days(),
			Width:   w.Days() * pixelsPerDay,
			Week:    sel.Week,
			Current: currentYear && schedule.StartOfWeek(now).Equal(w.Start),
		}}
	case sel.Month != 0 && pixelsPerDay < 8:
		return []Tick{{
			Label:   w.Start.Format("January 2006"),
			Start:   w.Start,
			Days:    w.Days(),
			Width:   w.Days() * pixelsPerDay,
			Current: currentYear && now.Month() == time.Month(sel.Month),
		}}
	case sel.Month != 0 || mode == RulerWeeks:
		return weekTicks(w, pixelsPerDay, now, currentYear)
	default:
		return monthTicks(w, pixelsPerDay, now, currentYear)
	}
}

func weekTicks(w schedule.Window, ppd int, now time.Time, currentYear bool) []Tick {
	nowWeek := schedule.StartOfWeek(now)
	var ticks []Tick
	for ws := schedule.StartOfWeek(w.Start); !ws.After(w.End); ws = ws.AddDate(0, 0, 7) {
		from, days := clipBucket(w, ws, ws.AddDate(0, 0, 7))
		_, week := ws.ISOWeek()
		ticks = append(ticks, Tick{
			Label:   fmt.Sprintf("W%d", week),
			Start:   from,
			Days:    days,
			Width:   days * ppd,
			Week:    week,
			Current: currentYear && ws.Equal(nowWeek),
		})
	}
	return ticks
}

func monthTicks(w schedule.Window, ppd int, now time.Time, currentYear bool) []Tick {
	var ticks []Tick
	y, m, _ := w.Start.Date()
	for ms := time.Date(y, m, 1, 0, 0, 0, 0, w.Start.Location()); !ms.After(w.End); ms = ms.AddDate(0, 1, 0) {
		from, days := clipBucket(w, ms, ms.AddDate(0, 1, 0))
		ticks = append(ticks, Tick{
			Label:   ms.Format("Jan 2006"),
			Start:   from,
			Days:    days,
			Width:   days * ppd,
			Current: currentYear && ms.Month() == now.Month() && ms.Year() == now.Year(),
		})
	}
	return ticks
}

// clipBucket returns the first in-window day of [start, next) and how many
// of its days fall inside w.
func clipBucket(w schedule.Window, start, next time.Time) (time.Time, int) {
	from := start
	if from.Before(w.Start) {
		from = w.Start
	}
	to := next.Add(-time.Nanosecond)
	if to.After(w.End) {
		to = w.End
	}
	return from, schedule.DaysBetween(schedule.StartOfDay(from), schedule.StartOfDay(to)) + 1
}
