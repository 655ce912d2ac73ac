// Package strategy manages recurring maintenance strategies and expands
// them into occurrences.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/stopyard/internal/changefeed"
	"github.com/zulandar/stopyard/internal/models"
	"github.com/zulandar/stopyard/internal/schedule"
	"gorm.io/gorm"
)

const table = "maintenance_strategies"

// CreateOpts holds parameters for creating a new strategy.
type CreateOpts struct {
	Name               string
	GroupID            string
	Frequency          schedule.Frequency
	Duration           schedule.Span
	StartDate          time.Time
	EndDate            *time.Time
	Inactive           bool
	Description        string
	Priority           string // defaults to medium
	Teams              []string
	TotalHours         float64
	MaintenancePackage string
	TaskListID         string
	CreatedBy          string
}

// ListFilters holds optional filters for listing strategies.
type ListFilters struct {
	GroupID    string
	GroupIDs   []string
	Priority   string
	ActiveOnly bool
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Name         *string             `json:"name,omitempty"`
	Frequency    *schedule.Frequency `json:"frequency,omitempty"`
	Duration     *schedule.Span      `json:"duration,omitempty"`
	StartDate    *time.Time          `json:"startDate,omitempty"`
	EndDate      *time.Time          `json:"endDate,omitempty"`
	ClearEndDate bool                `json:"clearEndDate,omitempty"`
	Description  *string             `json:"description,omitempty"`
	Priority     *string             `json:"priority,omitempty"`
	Teams        []string            `json:"teams,omitempty"`
	TotalHours   *float64            `json:"totalHours,omitempty"`
	ModifiedBy   *string             `json:"modifiedBy,omitempty"`
}

// Rule rebuilds the validated recurrence rule of s.
func Rule(s models.Strategy) (schedule.Rule, error) {
	fu, err := schedule.ParseFrequencyUnit(s.FrequencyUnit)
	if err != nil {
		return schedule.Rule{}, err
	}
	du, err := schedule.ParseDurationUnit(s.DurationUnit)
	if err != nil {
		return schedule.Rule{}, err
	}
	return schedule.NewRule(s.StartDate, s.EndDate,
		schedule.Frequency{Value: s.FrequencyValue, Unit: fu},
		schedule.Span{Value: s.DurationValue, Unit: du})
}

// Create validates opts and inserts a new strategy.
func Create(ctx context.Context, db *gorm.DB, opts CreateOpts) (*models.Strategy, error) {
	if strings.TrimSpace(opts.Name) == "" {
		return nil, fmt.Errorf("strategy: name is required: %w", models.ErrValidation)
	}
	if opts.GroupID == "" {
		return nil, fmt.Errorf("strategy: group is required: %w", models.ErrValidation)
	}
	if opts.Priority == "" {
		opts.Priority = "medium"
	}
	if !models.ValidPriority(opts.Priority) {
		return nil, fmt.Errorf("strategy: priority %q must be one of %v: %w", opts.Priority, models.Priorities, models.ErrValidation)
	}
	rule, err := schedule.NewRule(opts.StartDate, opts.EndDate, opts.Frequency, opts.Duration)
	if err != nil {
		return nil, fmt.Errorf("strategy: %w: %w", err, models.ErrValidation)
	}

	db = db.WithContext(ctx)
	var count int64
	if err := db.Model(&models.AssetGroup{}).Where("id = ?", opts.GroupID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("strategy: check group %s: %w", opts.GroupID, err)
	}
	if count == 0 {
		return nil, fmt.Errorf("strategy: group %s: %w", opts.GroupID, models.ErrNotFound)
	}

	s := models.Strategy{
		ID:                 uuid.NewString(),
		Name:               strings.TrimSpace(opts.Name),
		GroupID:            opts.GroupID,
		IsActive:           !opts.Inactive,
		Description:        opts.Description,
		Priority:           opts.Priority,
		Teams:              opts.Teams,
		TotalHours:         opts.TotalHours,
		MaintenancePackage: opts.MaintenancePackage,
		TaskListID:         opts.TaskListID,
		SAPFields:          models.SAPFields{CreatedBy: opts.CreatedBy},
		Version:            1,
	}
	setRule(&s, rule)

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&s).Error; err != nil {
			return err
		}
		return changefeed.Record(tx, table, models.KindInsert, s.ID, s)
	})
	if err != nil {
		return nil, fmt.Errorf("strategy: create: %w", err)
	}
	return &s, nil
}

// Get retrieves a strategy by ID.
func Get(ctx context.Context, db *gorm.DB, id string) (*models.Strategy, error) {
	var s models.Strategy
	if err := db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("strategy: %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("strategy: get %s: %w", id, err)
	}
	return &s, nil
}

// List returns strategies matching the filters ordered by group then name.
func List(ctx context.Context, db *gorm.DB, filters ListFilters) ([]models.Strategy, error) {
	q := db.WithContext(ctx).Model(&models.Strategy{})
	if filters.GroupID != "" {
		q = q.Where("group_id = ?", filters.GroupID)
	}
	if filters.GroupIDs != nil {
		q = q.Where("group_id IN ?", filters.GroupIDs)
	}
	if filters.Priority != "" {
		q = q.Where("priority = ?", filters.Priority)
	}
	if filters.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}

	var strategies []models.Strategy
	if err := q.Order("group_id ASC, name ASC, id ASC").Find(&strategies).Error; err != nil {
		return nil, fmt.Errorf("strategy: list: %w", err)
	}
	return strategies, nil
}

// Update applies patch when version matches. The resulting recurrence is
// validated as a whole before anything is written.
func Update(ctx context.Context, db *gorm.DB, id string, version int, patch Patch) (*models.Strategy, error) {
	var s models.Strategy
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&s).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%s: %w", id, models.ErrNotFound)
			}
			return err
		}
		cols, err := patch.apply(&s)
		if err != nil {
			return err
		}
		s.Version = version + 1
		if err := models.UpdateVersioned(tx, id, version, &s, cols); err != nil {
			return err
		}
		return changefeed.Record(tx, table, models.KindUpdate, id, s)
	})
	if err != nil {
		return nil, fmt.Errorf("strategy: update %s: %w", id, err)
	}
	return &s, nil
}

// SetActive toggles whether the strategy generates occurrences.
func SetActive(ctx context.Context, db *gorm.DB, id string, version int, active bool) (*models.Strategy, error) {
	var s models.Strategy
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&s).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%s: %w", id, models.ErrNotFound)
			}
			return err
		}
		s.IsActive = active
		s.Version = version + 1
		if err := models.UpdateVersioned(tx, id, version, &s, []string{"is_active"}); err != nil {
			return err
		}
		return changefeed.Record(tx, table, models.KindUpdate, id, s)
	})
	if err != nil {
		return nil, fmt.Errorf("strategy: set active %s: %w", id, err)
	}
	return &s, nil
}

// Occurrences expands every active strategy over year, ordered by start.
// Strategies whose stored rule no longer validates are skipped.
func Occurrences(strategies []models.Strategy, year int) []schedule.Occurrence {
	var out []schedule.Occurrence
	for _, s := range strategies {
		if !s.IsActive {
			continue
		}
		rule, err := Rule(s)
		if err != nil {
			continue
		}
		out = append(out, schedule.ExpandFor(s.ID, rule, year)...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

func setRule(s *models.Strategy, r schedule.Rule) {
	s.FrequencyValue = r.Frequency.Value
	s.FrequencyUnit = string(r.Frequency.Unit)
	s.DurationValue = r.Duration.Value
	s.DurationUnit = string(r.Duration.Unit)
	s.StartDate = r.Start
	s.EndDate = r.End
}

// apply copies the set fields onto s, re-validating the recurrence, and
// returns the touched columns.
func (p Patch) apply(s *models.Strategy) ([]string, error) {
	var cols []string

	if p.Name != nil {
		if strings.TrimSpace(*p.Name) == "" {
			return nil, fmt.Errorf("name is required: %w", models.ErrValidation)
		}
		s.Name = strings.TrimSpace(*p.Name)
		cols = append(cols, "name")
	}
	if p.Priority != nil {
		if !models.ValidPriority(*p.Priority) {
			return nil, fmt.Errorf("priority %q must be one of %v: %w", *p.Priority, models.Priorities, models.ErrValidation)
		}
		s.Priority = *p.Priority
		cols = append(cols, "priority")
	}
	if p.Description != nil {
		s.Description = *p.Description
		cols = append(cols, "description")
	}
	if p.Teams != nil {
		s.Teams = p.Teams
		cols = append(cols, "teams")
	}
	if p.TotalHours != nil {
		s.TotalHours = *p.TotalHours
		cols = append(cols, "total_hours")
	}
	if p.ModifiedBy != nil {
		s.ModifiedBy = *p.ModifiedBy
		cols = append(cols, "modified_by")
	}

	if p.Frequency == nil && p.Duration == nil && p.StartDate == nil && p.EndDate == nil && !p.ClearEndDate {
		return cols, nil
	}
	current, err := Rule(*s)
	if err != nil {
		return nil, fmt.Errorf("stored rule: %w", err)
	}
	freq, dur, start, end := current.Frequency, current.Duration, current.Start, current.End
	if p.Frequency != nil {
		freq = *p.Frequency
	}
	if p.Duration != nil {
		dur = *p.Duration
	}
	if p.StartDate != nil {
		start = *p.StartDate
	}
	if p.EndDate != nil {
		end = p.EndDate
	}
	if p.ClearEndDate {
		end = nil
	}
	rule, err := schedule.NewRule(start, end, freq, dur)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", err, models.ErrValidation)
	}
	setRule(s, rule)
	return append(cols, "frequency_value", "frequency_unit", "duration_value", "duration_unit", "start_date", "end_date"), nil
}
