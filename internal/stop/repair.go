package stop

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/zulandar/stopyard/internal/changefeed"
	"github.com/zulandar/stopyard/internal/models"
	"gorm.io/gorm"
)

// Match describes how an orphaned stop found its new group.
type Match string

const (
	MatchCenterPhase Match = "center+phase"
	MatchCenter      Match = "center"
	MatchFirst       Match = "first"
)

// Reassignment records one repaired stop.
type Reassignment struct {
	StopID      string `json:"stopId"`
	FromGroupID string `json:"fromGroupId"`
	ToGroupID   string `json:"toGroupId"`
	Match       Match  `json:"match"`
}

// RepairOrphans returns stops with every orphan (a stop whose group is not
// in groups) moved to a compatible group: one sharing the stop's center and
// phase, else one sharing its center, else the first group. Ties go to the
// lowest group ID. A moved stop takes the group's center, phase and assets.
// Stops are returned unchanged when groups is empty. The input slice is not
// modified.
func RepairOrphans(stops []models.Stop, groups []models.AssetGroup) ([]models.Stop, []Reassignment) {
	out := slices.Clone(stops)
	if len(groups) == 0 {
		return out, nil
	}

	sorted := slices.Clone(groups)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	known := make(map[string]bool, len(sorted))
	for _, g := range sorted {
		known[g.ID] = true
	}

	var moved []Reassignment
	for i := range out {
		s := &out[i]
		if known[s.GroupID] {
			continue
		}
		g, match := compatible(*s, sorted)
		moved = append(moved, Reassignment{StopID: s.ID, FromGroupID: s.GroupID, ToGroupID: g.ID, Match: match})
		s.GroupID = g.ID
		s.CenterCode = g.CenterCode
		s.Phase = g.Phase
		s.AffectedAssets = assetIDs(g)
	}
	return out, moved
}

// compatible picks from groups, which must be sorted by ID and non-empty.
func compatible(s models.Stop, groups []models.AssetGroup) (models.AssetGroup, Match) {
	for _, g := range groups {
		if g.CenterCode == s.CenterCode && g.Phase == s.Phase {
			return g, MatchCenterPhase
		}
	}
	for _, g := range groups {
		if g.CenterCode == s.CenterCode {
			return g, MatchCenter
		}
	}
	return groups[0], MatchFirst
}

// Repair finds stops whose group no longer exists and reassigns them in the
// database. Each reassignment bumps the stop's version and is logged at
// debug level; orphans are never reported as errors.
func Repair(ctx context.Context, db *gorm.DB, logger *log.Logger) ([]Reassignment, error) {
	if logger == nil {
		logger = log.Default()
	}
	db = db.WithContext(ctx)

	var orphans []models.Stop
	err := db.Where("group_id NOT IN (?)", db.Model(&models.AssetGroup{}).Select("id")).
		Order("id ASC").Find(&orphans).Error
	if err != nil {
		return nil, fmt.Errorf("stop: find orphans: %w", err)
	}
	if len(orphans) == 0 {
		return nil, nil
	}

	var groups []models.AssetGroup
	if err := db.Preload("Assets", byTag).Order("id ASC").Find(&groups).Error; err != nil {
		return nil, fmt.Errorf("stop: load groups: %w", err)
	}
	fixed, moved := RepairOrphans(orphans, groups)
	if len(moved) == 0 {
		logger.Debug("orphaned stops left as-is, no groups exist", "count", len(orphans))
		return nil, nil
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		for i := range fixed {
			s := &fixed[i]
			version := s.Version
			s.Version = version + 1
			cols := []string{"group_id", "center_code", "phase", "affected_assets"}
			if err := models.UpdateVersioned(tx, s.ID, version, s, cols); err != nil {
				return err
			}
			if err := changefeed.Record(tx, table, models.KindUpdate, s.ID, s); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("stop: repair: %w", err)
	}
	for _, r := range moved {
		logger.Debug("reassigned orphaned stop", "stop", r.StopID, "from", r.FromGroupID, "to", r.ToGroupID, "match", r.Match)
	}
	return moved, nil
}
