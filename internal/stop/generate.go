package stop

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/stopyard/internal/models"
	"github.com/zulandar/stopyard/internal/strategy"
	"gorm.io/gorm"
)

// UnassignedTeam is the responsible team of generated stops whose strategy
// lists no teams.
const UnassignedTeam = "unassigned"

// GenerateResult counts what Generate did.
type GenerateResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// Generate materializes one planned stop per occurrence of every active
// strategy in year. Start dates are interpreted in loc. An occurrence that
// already has a stop from the same strategy at the same planned start is
// skipped, so running Generate twice creates nothing the second time.
func Generate(ctx context.Context, db *gorm.DB, year int, loc *time.Location) (GenerateResult, error) {
	var res GenerateResult
	if loc == nil {
		loc = time.UTC
	}
	db = db.WithContext(ctx)

	strategies, err := strategy.List(ctx, db, strategy.ListFilters{ActiveOnly: true})
	if err != nil {
		return res, fmt.Errorf("stop: generate: %w", err)
	}
	if len(strategies) == 0 {
		return res, nil
	}

	groupIDs := make([]string, 0, len(strategies))
	strategyIDs := make([]string, 0, len(strategies))
	for i := range strategies {
		strategies[i].StartDate = strategies[i].StartDate.In(loc)
		groupIDs = append(groupIDs, strategies[i].GroupID)
		strategyIDs = append(strategyIDs, strategies[i].ID)
	}

	var groups []models.AssetGroup
	if err := db.Preload("Assets", byTag).Where("id IN ?", groupIDs).Find(&groups).Error; err != nil {
		return res, fmt.Errorf("stop: generate: load groups: %w", err)
	}
	byGroup := make(map[string]models.AssetGroup, len(groups))
	for _, g := range groups {
		byGroup[g.ID] = g
	}

	var existing []models.Stop
	if err := db.Select("strategy_id", "planned_start").Where("strategy_id IN ?", strategyIDs).Find(&existing).Error; err != nil {
		return res, fmt.Errorf("stop: generate: load stops: %w", err)
	}
	seen := make(map[string]bool, len(existing))
	for _, s := range existing {
		if s.StrategyID != nil {
			seen[occurrenceKey(*s.StrategyID, s.PlannedStart)] = true
		}
	}

	byID := make(map[string]models.Strategy, len(strategies))
	for _, s := range strategies {
		byID[s.ID] = s
	}

	var toCreate []models.Stop
	for _, occ := range strategy.Occurrences(strategies, year) {
		if seen[occurrenceKey(occ.StrategyID, occ.Start)] {
			res.Skipped++
			continue
		}
		st := byID[occ.StrategyID]
		g, ok := byGroup[st.GroupID]
		if !ok {
			res.Skipped++
			continue
		}
		team := strings.Join(st.Teams, ", ")
		if team == "" {
			team = UnassignedTeam
		}
		id := st.ID
		toCreate = append(toCreate, newStop(g, &id, CreateOpts{
			Title:           st.Name,
			Description:     st.Description,
			PlannedStart:    occ.Start,
			PlannedEnd:      occ.End,
			DurationHours:   occ.End.Sub(occ.Start).Hours(),
			Status:          models.StatusPlanned,
			Priority:        st.Priority,
			ResponsibleTeam: team,
		}))
	}
	if len(toCreate) == 0 {
		return res, nil
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		for i := range toCreate {
			if err := insert(tx, &toCreate[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return GenerateResult{}, fmt.Errorf("stop: generate: %w", err)
	}
	res.Created = len(toCreate)
	return res, nil
}

func occurrenceKey(strategyID string, start time.Time) string {
	return strategyID + "@" + start.UTC().Format(time.RFC3339)
}
