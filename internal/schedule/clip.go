package schedule

import "time"

// Clip keeps the items whose start lies in w. Items are matched by start
// containment only: one that starts before w and ends inside it is dropped.
// The input order is preserved and the input slice is not modified.
func Clip[T any](items []T, w Window, startOf func(T) time.Time) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if w.Contains(startOf(it)) {
			out = append(out, it)
		}
	}
	return out
}

// ClipOccurrences is Clip specialised for occurrences.
func ClipOccurrences(occ []Occurrence, w Window) []Occurrence {
	return Clip(occ, w, func(o Occurrence) time.Time { return o.Start })
}
