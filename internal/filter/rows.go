package filter

import (
	"fmt"
	"slices"
)

// RowOrder is the user's display order of group rows. It is always a
// permutation of the last synced id set and only changes presentation.
type RowOrder struct {
	source []string
	order  []string
}

// Sync adopts ids as the new row set after a data reload. When ids differ
// from the last synced set the manual order is discarded and replaced by ids
// in their given order. Reports whether a reset happened.
func (r *RowOrder) Sync(ids []string) bool {
	if slices.Equal(r.source, ids) {
		return false
	}
	r.Reset(ids)
	return true
}

// Reset discards the manual order unconditionally. Every filter change
// resets, even one that leaves the row set unchanged.
func (r *RowOrder) Reset(ids []string) {
	r.source = slices.Clone(ids)
	r.order = slices.Clone(ids)
}

// Move relocates the row at from to index to, shifting the rows between.
func (r *RowOrder) Move(from, to int) error {
	n := len(r.order)
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("filter: move %d -> %d out of range for %d rows", from, to, n)
	}
	if from == to {
		return nil
	}
	id := r.order[from]
	r.order = slices.Delete(r.order, from, from+1)
	r.order = slices.Insert(r.order, to, id)
	return nil
}

// MoveID relocates the row with id active to the position of row over.
func (r *RowOrder) MoveID(active, over string) error {
	from := slices.Index(r.order, active)
	to := slices.Index(r.order, over)
	if from < 0 || to < 0 {
		return fmt.Errorf("filter: unknown row %q or %q", active, over)
	}
	return r.Move(from, to)
}

// IDs returns a copy of the current order.
func (r *RowOrder) IDs() []string {
	return slices.Clone(r.order)
}

// Len is the number of rows.
func (r *RowOrder) Len() int { return len(r.order) }
