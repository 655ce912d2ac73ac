package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/zulandar/stopyard/internal/filter"
	"github.com/zulandar/stopyard/internal/models"
	"github.com/zulandar/stopyard/internal/schedule"
	"github.com/zulandar/stopyard/internal/stop"
	"github.com/zulandar/stopyard/internal/strategy"
	"github.com/zulandar/stopyard/internal/timeline"
	"gorm.io/gorm"
)

// Item kinds.
const (
	KindOccurrence = "occurrence"
	KindStop       = "stop"
)

// Item is one bar on a row.
type Item struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	StrategyID string    `json:"strategy_id,omitempty"`
	Title      string    `json:"title"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Priority   string    `json:"priority"`
	Status     string    `json:"status,omitempty"`
	Completion int       `json:"completion"`
	Color      string    `json:"color"`
	Progress   string    `json:"progress"`
	timeline.Placement
}

// Row is one group line of the Gantt chart.
type Row struct {
	filter.Group
	Items []Item `json:"items"`
}

// View is everything needed to render the timeline for the current board
// state.
type View struct {
	State        filter.State    `json:"state"`
	Options      filter.Options  `json:"options"`
	Window       schedule.Window `json:"window"`
	PixelsPerDay int             `json:"pixels_per_day"`
	TotalDays    int             `json:"total_days"`
	TotalWidth   int             `json:"total_width"`
	MinWidth     int             `json:"min_width"`
	Ruler        []timeline.Tick `json:"ruler"`
	Rows         []Row           `json:"rows"`
	Truncated    int             `json:"truncated"`
}

// View builds the timeline: filtered groups in row order, capped at the
// board's row limit; their active strategies expanded over the selected
// year; occurrences and stops clipped to the window by start; and every bar
// placed on the canvas.
func (b *Board) View(ctx context.Context, db *gorm.DB, now time.Time) (*View, error) {
	snap := b.snapshot()
	sel := snap.state.Selection()
	w, err := schedule.WindowFor(sel, b.loc)
	if err != nil {
		return nil, fmt.Errorf("planner: %w: %w", err, models.ErrValidation)
	}
	ppd := timeline.PixelsPerDay(sel.Zoomed())
	geo := timeline.Compute(w, nil, ppd)

	v := &View{
		State:        snap.state,
		Options:      snap.options,
		Window:       w,
		PixelsPerDay: ppd,
		TotalDays:    geo.TotalDays,
		TotalWidth:   geo.TotalWidth,
		MinWidth:     geo.MinWidth,
		Ruler:        timeline.Ruler(w, sel, b.ruler, ppd, now),
		Rows:         []Row{},
	}

	rows := snap.rows
	if len(rows) > b.maxRows {
		v.Truncated = len(rows) - b.maxRows
		rows = rows[:b.maxRows]
	}
	if len(rows) == 0 {
		return v, nil
	}
	ids := make([]string, len(rows))
	for i, g := range rows {
		ids[i] = g.ID
	}

	strategies, err := strategy.List(ctx, db, strategy.ListFilters{GroupIDs: ids, ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("planner: view: %w", err)
	}
	byStrategy := make(map[string]models.Strategy, len(strategies))
	for i := range strategies {
		strategies[i].StartDate = strategies[i].StartDate.In(b.loc)
		byStrategy[strategies[i].ID] = strategies[i]
	}
	occ := schedule.ClipOccurrences(strategy.Occurrences(strategies, sel.Year), w)

	yw := schedule.YearWindow(sel.Year, b.loc)
	stops, err := stop.List(ctx, db, stop.ListFilters{GroupIDs: ids, Window: &yw})
	if err != nil {
		return nil, fmt.Errorf("planner: view: %w", err)
	}
	stops = schedule.Clip(stops, w, func(s models.Stop) time.Time { return s.PlannedStart })

	items := make(map[string][]Item, len(rows))
	for _, o := range occ {
		s := byStrategy[o.StrategyID]
		items[s.GroupID] = append(items[s.GroupID], occurrenceItem(w, s, o))
	}
	for _, s := range stops {
		items[s.GroupID] = append(items[s.GroupID], stopItem(w, s, b.loc))
	}

	for _, g := range rows {
		row := Row{Group: g, Items: items[g.ID]}
		if row.Items == nil {
			row.Items = []Item{}
		}
		v.Rows = append(v.Rows, row)
	}
	return v, nil
}

func occurrenceItem(w schedule.Window, s models.Strategy, o schedule.Occurrence) Item {
	return Item{
		ID:         fmt.Sprintf("%s@%s", s.ID, o.Start.Format(time.DateOnly)),
		Kind:       KindOccurrence,
		StrategyID: s.ID,
		Title:      s.Name,
		Start:      o.Start,
		End:        o.End,
		Priority:   s.Priority,
		Color:      timeline.PriorityColor(s.Priority).Hex(),
		Progress:   string(timeline.CompletionColor(0)),
		Placement:  timeline.Place(w, o.Start, o.End),
	}
}

func stopItem(w schedule.Window, s models.Stop, loc *time.Location) Item {
	start, end := s.PlannedStart.In(loc), s.PlannedEnd.In(loc)
	it := Item{
		ID:         s.ID,
		Kind:       KindStop,
		Title:      s.Title,
		Start:      start,
		End:        end,
		Priority:   s.Priority,
		Status:     s.Status,
		Completion: s.Completion(),
		Color:      timeline.PriorityColor(s.Priority).Hex(),
		Progress:   string(timeline.CompletionColor(s.Completion())),
		Placement:  timeline.Place(w, start, end),
	}
	if s.StrategyID != nil {
		it.StrategyID = *s.StrategyID
	}
	return it
}
