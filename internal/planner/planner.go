// Package planner composes the filter, schedule and timeline packages into
// the Gantt view served by the dashboard.
package planner

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/zulandar/stopyard/internal/filter"
	"github.com/zulandar/stopyard/internal/group"
	"github.com/zulandar/stopyard/internal/models"
	"github.com/zulandar/stopyard/internal/timeline"
	"gorm.io/gorm"
)

// DefaultMaxRows caps the number of group rows in a view.
const DefaultMaxRows = 50

// Filter fields accepted by Apply.
const (
	FieldSearch = "search"
	FieldCenter = "center"
	FieldPhase  = "phase"
	FieldYear   = "year"
	FieldMonth  = "month"
	FieldWeek   = "week"
	FieldClear  = "clear"
)

// Change is one filter transition.
type Change struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// Options configures a Board.
type Options struct {
	MaxRows  int
	Ruler    timeline.RulerMode
	Location *time.Location
	Now      func() time.Time
}

// Board is the shared dashboard state: the cascading filter selection, the
// manual row order and the groups both are computed from. It is safe for
// concurrent use. The dashboard holds one Board, so every client sees and
// changes the same filters and row order.
type Board struct {
	mu      sync.Mutex
	cascade *filter.Cascade
	rows    filter.RowOrder
	groups  map[string]filter.Group

	maxRows int
	ruler   timeline.RulerMode
	loc     *time.Location
	now     func() time.Time
}

// NewBoard returns an empty board. Call Refresh to load groups.
func NewBoard(opts Options) *Board {
	if opts.MaxRows <= 0 {
		opts.MaxRows = DefaultMaxRows
	}
	if opts.Ruler == "" {
		opts.Ruler = timeline.RulerMonths
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Board{
		cascade: filter.NewCascade(nil, opts.Now),
		groups:  make(map[string]filter.Group),
		maxRows: opts.MaxRows,
		ruler:   opts.Ruler,
		loc:     opts.Location,
		now:     opts.Now,
	}
}

// Refresh reloads the groups from the database. Selections that no longer
// apply are coerced to all and the row order is reset if the filtered set
// changed.
func (b *Board) Refresh(ctx context.Context, db *gorm.DB) error {
	groups, err := group.List(ctx, db, group.ListFilters{})
	if err != nil {
		return fmt.Errorf("planner: refresh: %w", err)
	}
	b.SetGroups(FilterGroups(groups))
	return nil
}

// SetGroups replaces the board's groups.
func (b *Board) SetGroups(groups []filter.Group) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.groups = make(map[string]filter.Group, len(groups))
	for _, g := range groups {
		b.groups[g.ID] = g
	}
	b.cascade.SetGroups(groups)
	b.rows.Sync(b.cascade.FilteredIDs())
}

// FilterGroups converts stored groups into the form the filters work on.
func FilterGroups(groups []models.AssetGroup) []filter.Group {
	out := make([]filter.Group, len(groups))
	for i, g := range groups {
		out[i] = filter.Group{
			ID:         g.ID,
			Name:       g.Name,
			CenterCode: g.CenterCode,
			CenterName: g.Center.Name,
			Phase:      g.Phase,
		}
	}
	return out
}

// Apply performs a filter transition and resets the row order to the new
// filtered set, discarding any manual moves.
func (b *Board) Apply(c Change) (filter.State, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch c.Field {
	case FieldSearch:
		b.cascade.SetSearch(c.Value)
	case FieldCenter:
		b.cascade.SetCenter(c.Value)
	case FieldPhase:
		b.cascade.SetPhase(c.Value)
	case FieldYear:
		year, err := strconv.Atoi(c.Value)
		if err != nil || year < 1 {
			return b.cascade.State(), fmt.Errorf("planner: year %q: %w", c.Value, models.ErrValidation)
		}
		b.cascade.SetYear(year)
	case FieldMonth:
		b.cascade.SetMonth(filter.ParseMonth(c.Value))
	case FieldWeek:
		b.cascade.SetWeek(filter.ParseWeek(c.Value))
	case FieldClear:
		b.cascade.ClearAll()
	default:
		return b.cascade.State(), fmt.Errorf("planner: unknown filter %q: %w", c.Field, models.ErrValidation)
	}
	b.rows.Reset(b.cascade.FilteredIDs())
	return b.cascade.State(), nil
}

// Move reorders the visible rows.
func (b *Board) Move(from, to int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.rows.Move(from, to); err != nil {
		return fmt.Errorf("planner: %w: %w", err, models.ErrValidation)
	}
	return nil
}

// MoveID moves the row of group active to where group over sits.
func (b *Board) MoveID(active, over string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.rows.MoveID(active, over); err != nil {
		return fmt.Errorf("planner: %w: %w", err, models.ErrValidation)
	}
	return nil
}

// State returns the current filter selection.
func (b *Board) State() filter.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cascade.State()
}

// FilterOptions returns the option sets for the current selection.
func (b *Board) FilterOptions() filter.Options {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cascade.Options()
}

// RowIDs returns the group ids in display order.
func (b *Board) RowIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rows.IDs()
}

// snapshot copies what View needs so the lock is not held during queries.
type snapshot struct {
	state   filter.State
	options filter.Options
	rows    []filter.Group
}

func (b *Board) snapshot() snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := b.rows.IDs()
	rows := make([]filter.Group, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, b.groups[id])
	}
	return snapshot{state: b.cascade.State(), options: b.cascade.Options(), rows: rows}
}
