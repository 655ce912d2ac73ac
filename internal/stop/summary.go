package stop

import (
	"context"

	"github.com/zulandar/stopyard/internal/models"
	"gorm.io/gorm"
)

// Summary aggregates a set of stops.
type Summary struct {
	Total          int                `json:"total"`
	ByStatus       map[string]int     `json:"byStatus"`
	ByPriority     map[string]int     `json:"byPriority"`
	EstimatedCost  float64            `json:"estimatedCost"`
	ActualCost     float64            `json:"actualCost"`
	CostByStatus   map[string]float64 `json:"costByStatus"`
	TotalHours     float64            `json:"totalHours"`
	MeanCompletion float64            `json:"meanCompletion"`
}

// Summarize computes counts and cost totals over stops. Every known status
// and priority is present in the maps, zero or not. CostByStatus sums the
// actual cost when recorded, else the estimate.
func Summarize(stops []models.Stop) Summary {
	sum := Summary{
		Total:        len(stops),
		ByStatus:     make(map[string]int, len(models.StopStatuses)),
		ByPriority:   make(map[string]int, len(models.Priorities)),
		CostByStatus: make(map[string]float64, len(models.StopStatuses)),
	}
	for _, st := range models.StopStatuses {
		sum.ByStatus[st] = 0
		sum.CostByStatus[st] = 0
	}
	for _, p := range models.Priorities {
		sum.ByPriority[p] = 0
	}

	var completion int
	for _, s := range stops {
		sum.ByStatus[s.Status]++
		sum.ByPriority[s.Priority]++
		sum.TotalHours += s.DurationHours
		completion += s.Completion()

		var cost float64
		if s.EstimatedCost != nil {
			sum.EstimatedCost += *s.EstimatedCost
			cost = *s.EstimatedCost
		}
		if s.ActualCost != nil {
			sum.ActualCost += *s.ActualCost
			cost = *s.ActualCost
		}
		sum.CostByStatus[s.Status] += cost
	}
	if len(stops) > 0 {
		sum.MeanCompletion = float64(completion) / float64(len(stops))
	}
	return sum
}

// SummaryOf lists stops matching filters and summarizes them.
func SummaryOf(ctx context.Context, db *gorm.DB, filters ListFilters) (Summary, error) {
	stops, err := List(ctx, db, filters)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(stops), nil
}
