// Package timeline turns a display window and dated intervals into the
// geometry a Gantt renderer needs.
package timeline

import (
	"time"

	"github.com/zulandar/stopyard/internal/schedule"
)

const (
	// ZoomedPixelsPerDay is used when a single month or week is shown.
	ZoomedPixelsPerDay = 20
	// YearPixelsPerDay is used for the full-year view.
	YearPixelsPerDay = 4
	// LabelColumnWidth is reserved on the left for row labels.
	LabelColumnWidth = 430
	// MinCanvasWidth is the smallest canvas ever rendered.
	MinCanvasWidth = 1200
	// MinWidthPercent keeps zero-length bars visible and clickable.
	MinWidthPercent = 0.5
)

// Interval is anything with a start and an end.
type Interval struct {
	ID    string    `json:"id"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Placement is where a bar sits on the canvas, in percent of the window.
type Placement struct {
	LeftPercent  float64 `json:"left_percent"`
	WidthPercent float64 `json:"width_percent"`
}

// Bar is a placed interval.
type Bar struct {
	Interval
	Placement
}

// Layout is the geometry of one window.
type Layout struct {
	Window       schedule.Window `json:"window"`
	PixelsPerDay int             `json:"pixels_per_day"`
	TotalDays    int             `json:"total_days"`
	TotalWidth   int             `json:"total_width"`
	MinWidth     int             `json:"min_width"`
	Bars         []Bar           `json:"bars"`
}

// PixelsPerDay picks the scale for a zoomed (month/week) or year view.
func PixelsPerDay(zoomed bool) int {
	if zoomed {
		return ZoomedPixelsPerDay
	}
	return YearPixelsPerDay
}

// MinWidth is the canvas width including the label column.
func MinWidth(totalDays, pixelsPerDay int) int {
	return max(totalDays*pixelsPerDay+LabelColumnWidth, MinCanvasWidth)
}

// Place computes the left offset and width of [start, end) inside w.
func Place(w schedule.Window, start, end time.Time) Placement {
	total := float64(w.Days())
	left := float64(schedule.DaysBetween(w.Start, start)) / total * 100
	width := float64(schedule.DaysBetween(start, end)) / total * 100
	return Placement{
		LeftPercent:  min(max(left, 0), 100),
		WidthPercent: max(width, MinWidthPercent),
	}
}

// Compute places every item in w. Items should already be clipped to w.
func Compute(w schedule.Window, items []Interval, pixelsPerDay int) Layout {
	days := w.Days()
	l := Layout{
		Window:       w,
		PixelsPerDay: pixelsPerDay,
		TotalDays:    days,
		TotalWidth:   days * pixelsPerDay,
		MinWidth:     MinWidth(days, pixelsPerDay),
		Bars:         make([]Bar, 0, len(items)),
	}
	for _, it := range items {
		l.Bars = append(l.Bars, Bar{Interval: it, Placement: Place(w, it.Start, it.End)})
	}
	return l
}
