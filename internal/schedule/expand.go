package schedule

import "time"

// Occurrence is one concrete instance of a rule. It is derived on demand and
// never stored.
type Occurrence struct {
	StrategyID string    `json:"strategy_id,omitempty"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
}

// Expand returns every occurrence of r whose start falls inside the calendar
// year (in the rule start's location). The result is freshly computed on
// every call.
func Expand(r Rule, year int) []Occurrence {
	w := YearWindow(year, r.Start.Location())
	return ExpandWindow(r, w)
}

// ExpandWindow returns every occurrence of r whose start lies in w.
func ExpandWindow(r Rule, w Window) []Occurrence {
	if r.Frequency.Value < 1 || r.Start.After(w.End) {
		return nil
	}

	var out []Occurrence
	for cursor := r.Start; !cursor.After(w.End); cursor = r.Next(cursor) {
		if r.End != nil && cursor.After(*r.End) {
			break
		}
		if cursor.Before(w.Start) {
			continue
		}
		out = append(out, Occurrence{Start: cursor, End: r.EndOf(cursor)})
	}
	return out
}

// ExpandFor is Expand with the strategy id stamped on every occurrence.
func ExpandFor(strategyID string, r Rule, year int) []Occurrence {
	occ := Expand(r, year)
	for i := range occ {
		occ[i].StrategyID = strategyID
	}
	return occ
}
