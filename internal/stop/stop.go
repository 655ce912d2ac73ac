// Package stop manages maintenance stops: their lifecycle, generation from
// strategies and repair of stops whose group no longer exists.
package stop

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/stopyard/internal/changefeed"
	"github.com/zulandar/stopyard/internal/models"
	"github.com/zulandar/stopyard/internal/schedule"
	"gorm.io/gorm"
)

const table = "maintenance_stops"

// ValidTransitions maps each status to its valid next statuses.
var ValidTransitions = map[string][]string{
	models.StatusPlanned:    {models.StatusInProgress, models.StatusCancelled},
	models.StatusInProgress: {models.StatusCompleted, models.StatusCancelled},
	models.StatusCancelled:  {models.StatusPlanned},
}

// CreateOpts holds parameters for creating a new stop.
type CreateOpts struct {
	GroupID         string
	StrategyID      string
	Title           string
	Description     string
	PlannedStart    time.Time
	PlannedEnd      time.Time
	DurationHours   float64 // derived from the planned span when zero
	Status          string  // defaults to planned
	Priority        string  // defaults to medium
	AffectedAssets  []string
	ResponsibleTeam string
	EstimatedCost   *float64
	CostCenter      string
	CreatedBy       string
}

// ListFilters holds optional filters for listing stops. GroupIDs restricts
// to a set when non-nil. Window keeps stops whose planned start lies inside
// it.
type ListFilters struct {
	GroupID    string
	GroupIDs   []string
	StrategyID string
	Status     string
	Priority   string
	CenterCode string
	Phase      string
	Search     string
	Window     *schedule.Window
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Title           *string    `json:"title,omitempty"`
	Description     *string    `json:"description,omitempty"`
	PlannedStart    *time.Time `json:"plannedStart,omitempty"`
	PlannedEnd      *time.Time `json:"plannedEnd,omitempty"`
	ActualStart     *time.Time `json:"actualStart,omitempty"`
	ActualEnd       *time.Time `json:"actualEnd,omitempty"`
	DurationHours   *float64   `json:"durationHours,omitempty"`
	Status          *string    `json:"status,omitempty"`
	Priority        *string    `json:"priority,omitempty"`
	AffectedAssets  []string   `json:"affectedAssets,omitempty"`
	ResponsibleTeam *string    `json:"responsibleTeam,omitempty"`
	EstimatedCost   *float64   `json:"estimatedCost,omitempty"`
	ActualCost      *float64   `json:"actualCost,omitempty"`
	WorkOrderID     *string    `json:"workOrderId,omitempty"`
	NotificationID  *string    `json:"notificationId,omitempty"`
	CostCenter      *string    `json:"costCenter,omitempty"`
	ModifiedBy      *string    `json:"modifiedBy,omitempty"`
}

// Create validates opts and inserts a new stop. Center and phase are copied
// from the group, and the group's assets become the affected assets when
// none are given.
func Create(ctx context.Context, db *gorm.DB, opts CreateOpts) (*models.Stop, error) {
	if err := validateCreate(&opts); err != nil {
		return nil, fmt.Errorf("stop: %w", err)
	}

	db = db.WithContext(ctx)
	var g models.AssetGroup
	if err := db.Preload("Assets", byTag).Where("id = ?", opts.GroupID).First(&g).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("stop: group %s: %w", opts.GroupID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("stop: get group %s: %w", opts.GroupID, err)
	}
	var strategyID *string
	if opts.StrategyID != "" {
		var count int64
		if err := db.Model(&models.Strategy{}).Where("id = ?", opts.StrategyID).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("stop: check strategy %s: %w", opts.StrategyID, err)
		}
		if count == 0 {
			return nil, fmt.Errorf("stop: strategy %s: %w", opts.StrategyID, models.ErrNotFound)
		}
		strategyID = &opts.StrategyID
	}

	s := newStop(g, strategyID, opts)
	err := db.Transaction(func(tx *gorm.DB) error {
		return insert(tx, &s)
	})
	if err != nil {
		return nil, fmt.Errorf("stop: create: %w", err)
	}
	return &s, nil
}

func validateCreate(opts *CreateOpts) error {
	opts.Title = strings.TrimSpace(opts.Title)
	opts.ResponsibleTeam = strings.TrimSpace(opts.ResponsibleTeam)
	if opts.Status == "" {
		opts.Status = models.StatusPlanned
	}
	if opts.Priority == "" {
		opts.Priority = "medium"
	}

	switch {
	case opts.Title == "":
		return fmt.Errorf("title is required: %w", models.ErrValidation)
	case opts.GroupID == "":
		return fmt.Errorf("group is required: %w", models.ErrValidation)
	case opts.PlannedStart.IsZero() || opts.PlannedEnd.IsZero():
		return fmt.Errorf("planned start and end are required: %w", models.ErrValidation)
	case opts.PlannedEnd.Before(opts.PlannedStart):
		return fmt.Errorf("planned end %s is before planned start %s: %w",
			opts.PlannedEnd.Format(time.DateOnly), opts.PlannedStart.Format(time.DateOnly), models.ErrValidation)
	case opts.ResponsibleTeam == "":
		return fmt.Errorf("responsible team is required: %w", models.ErrValidation)
	case !models.ValidStopStatus(opts.Status):
		return fmt.Errorf("status %q must be one of %v: %w", opts.Status, models.StopStatuses, models.ErrValidation)
	case !models.ValidPriority(opts.Priority):
		return fmt.Errorf("priority %q must be one of %v: %w", opts.Priority, models.Priorities, models.ErrValidation)
	case opts.DurationHours < 0:
		return fmt.Errorf("duration must not be negative: %w", models.ErrValidation)
	}
	if opts.DurationHours == 0 {
		opts.DurationHours = opts.PlannedEnd.Sub(opts.PlannedStart).Hours()
	}
	return nil
}

func newStop(g models.AssetGroup, strategyID *string, opts CreateOpts) models.Stop {
	assets := opts.AffectedAssets
	if len(assets) == 0 {
		assets = assetIDs(g)
	}
	s := models.Stop{
		ID:              uuid.NewString(),
		GroupID:         g.ID,
		CenterCode:      g.CenterCode,
		Phase:           g.Phase,
		StrategyID:      strategyID,
		Title:           opts.Title,
		Description:     opts.Description,
		PlannedStart:    opts.PlannedStart.UTC(),
		PlannedEnd:      opts.PlannedEnd.UTC(),
		DurationHours:   opts.DurationHours,
		Status:          opts.Status,
		Priority:        opts.Priority,
		AffectedAssets:  assets,
		ResponsibleTeam: opts.ResponsibleTeam,
		EstimatedCost:   opts.EstimatedCost,
		CostCenter:      opts.CostCenter,
		SAPFields:       models.SAPFields{CreatedBy: opts.CreatedBy},
		Version:         1,
	}
	// Stops recorded as already underway or done take their planned span.
	if s.Status == models.StatusInProgress || s.Status == models.StatusCompleted {
		start := s.PlannedStart
		s.ActualStart = &start
	}
	if s.Status == models.StatusCompleted {
		end := s.PlannedEnd
		s.ActualEnd = &end
	}
	return s
}

func insert(tx *gorm.DB, s *models.Stop) error {
	if err := tx.Create(s).Error; err != nil {
		return err
	}
	return changefeed.Record(tx, table, models.KindInsert, s.ID, s)
}

// Get retrieves a stop by ID.
func Get(ctx context.Context, db *gorm.DB, id string) (*models.Stop, error) {
	var s models.Stop
	if err := db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("stop: %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("stop: get %s: %w", id, err)
	}
	return &s, nil
}

// List returns stops matching the filters ordered by planned start.
func List(ctx context.Context, db *gorm.DB, filters ListFilters) ([]models.Stop, error) {
	q := db.WithContext(ctx).Model(&models.Stop{})

	if filters.GroupID != "" {
		q = q.Where("maintenance_stops.group_id = ?", filters.GroupID)
	}
	if filters.GroupIDs != nil {
		q = q.Where("maintenance_stops.group_id IN ?", filters.GroupIDs)
	}
	if filters.StrategyID != "" {
		q = q.Where("maintenance_stops.strategy_id = ?", filters.StrategyID)
	}
	if filters.Status != "" {
		q = q.Where("maintenance_stops.status = ?", filters.Status)
	}
	if filters.Priority != "" {
		q = q.Where("maintenance_stops.priority = ?", filters.Priority)
	}
	if filters.CenterCode != "" {
		q = q.Where("maintenance_stops.center_code = ?", filters.CenterCode)
	}
	if filters.Phase != "" {
		q = q.Where("maintenance_stops.phase = ?", filters.Phase)
	}
	if s := strings.TrimSpace(filters.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Joins("LEFT JOIN asset_groups ON asset_groups.id = maintenance_stops.group_id").
			Where("LOWER(maintenance_stops.title) LIKE ? OR LOWER(asset_groups.name) LIKE ?", like, like)
	}
	if w := filters.Window; w != nil {
		q = q.Where("maintenance_stops.planned_start BETWEEN ? AND ?", w.Start.UTC(), w.End.UTC())
	}

	var stops []models.Stop
	if err := q.Order("maintenance_stops.planned_start ASC, maintenance_stops.id ASC").Find(&stops).Error; err != nil {
		return nil, fmt.Errorf("stop: list: %w", err)
	}
	return stops, nil
}

// Update applies patch when version matches. Status changes are validated
// against ValidTransitions; starting a stop stamps its actual start and
// completing it stamps its actual end.
func Update(ctx context.Context, db *gorm.DB, id string, version int, patch Patch) (*models.Stop, error) {
	var s models.Stop
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&s).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%s: %w", id, models.ErrNotFound)
			}
			return err
		}
		cols, err := patch.apply(&s, time.Now().UTC())
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
		return nil, fmt.Errorf("stop: update %s: %w", id, err)
	}
	return &s, nil
}

// SetStatus is Update with only a status change.
func SetStatus(ctx context.Context, db *gorm.DB, id string, version int, status string) (*models.Stop, error) {
	return Update(ctx, db, id, version, Patch{Status: &status})
}

// Delete removes a stop when version matches.
func Delete(ctx context.Context, db *gorm.DB, id string, version int) error {
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var s models.Stop
		if err := tx.Where("id = ?", id).First(&s).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%s: %w", id, models.ErrNotFound)
			}
			return err
		}
		if s.Version != version {
			return fmt.Errorf("%s at version %d: %w", id, version, models.ErrConflict)
		}
		res := tx.Where("id = ? AND version = ?", id, version).Delete(&models.Stop{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%s at version %d: %w", id, version, models.ErrConflict)
		}
		return changefeed.Record(tx, table, models.KindDelete, id, s)
	})
	if err != nil {
		return fmt.Errorf("stop: delete %s: %w", id, err)
	}
	return nil
}

func isValidTransition(from, to string) bool {
	if from == to {
		return true
	}
	return slices.Contains(ValidTransitions[from], to)
}

// stampActuals fills in actual dates implied by moving from one status to
// another. Reopening a cancelled stop clears them.
func stampActuals(s *models.Stop, from, to string, now time.Time) []string {
	var cols []string
	switch to {
	case models.StatusInProgress:
		if s.ActualStart == nil {
			s.ActualStart = &now
			cols = append(cols, "actual_start")
		}
	case models.StatusCompleted:
		if s.ActualStart == nil {
			start := s.PlannedStart
			s.ActualStart = &start
			cols = append(cols, "actual_start")
		}
		if s.ActualEnd == nil {
			end := now
			if end.Before(*s.ActualStart) {
				end = *s.ActualStart
			}
			s.ActualEnd = &end
			cols = append(cols, "actual_end")
		}
	case models.StatusPlanned:
		if from == models.StatusCancelled {
			s.ActualStart, s.ActualEnd = nil, nil
			cols = append(cols, "actual_start", "actual_end")
		}
	}
	return cols
}

// apply copies the set fields onto s and returns the touched columns. The
// resulting stop is validated as a whole.
func (p Patch) apply(s *models.Stop, now time.Time) ([]string, error) {
	var cols []string
	str := func(dst *string, src *string, col string) {
		if src != nil {
			*dst = *src
			cols = append(cols, col)
		}
	}

	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return nil, fmt.Errorf("title is required: %w", models.ErrValidation)
	}
	if p.ResponsibleTeam != nil && strings.TrimSpace(*p.ResponsibleTeam) == "" {
		return nil, fmt.Errorf("responsible team is required: %w", models.ErrValidation)
	}
	if p.Priority != nil && !models.ValidPriority(*p.Priority) {
		return nil, fmt.Errorf("priority %q must be one of %v: %w", *p.Priority, models.Priorities, models.ErrValidation)
	}
	if p.DurationHours != nil && *p.DurationHours < 0 {
		return nil, fmt.Errorf("duration must not be negative: %w", models.ErrValidation)
	}

	str(&s.Title, p.Title, "title")
	str(&s.Description, p.Description, "description")
	str(&s.Priority, p.Priority, "priority")
	str(&s.ResponsibleTeam, p.ResponsibleTeam, "responsible_team")
	str(&s.WorkOrderID, p.WorkOrderID, "work_order_id")
	str(&s.NotificationID, p.NotificationID, "notification_id")
	str(&s.CostCenter, p.CostCenter, "cost_center")
	str(&s.ModifiedBy, p.ModifiedBy, "modified_by")
	s.Title = strings.TrimSpace(s.Title)

	if p.PlannedStart != nil {
		s.PlannedStart = p.PlannedStart.UTC()
		cols = append(cols, "planned_start")
	}
	if p.PlannedEnd != nil {
		s.PlannedEnd = p.PlannedEnd.UTC()
		cols = append(cols, "planned_end")
	}
	if p.ActualStart != nil {
		t := p.ActualStart.UTC()
		s.ActualStart = &t
		cols = append(cols, "actual_start")
	}
	if p.ActualEnd != nil {
		t := p.ActualEnd.UTC()
		s.ActualEnd = &t
		cols = append(cols, "actual_end")
	}
	if p.DurationHours != nil {
		s.DurationHours = *p.DurationHours
		cols = append(cols, "duration_hours")
	} else if p.PlannedStart != nil || p.PlannedEnd != nil {
		s.DurationHours = s.PlannedEnd.Sub(s.PlannedStart).Hours()
		cols = append(cols, "duration_hours")
	}
	if p.AffectedAssets != nil {
		s.AffectedAssets = p.AffectedAssets
		cols = append(cols, "affected_assets")
	}
	if p.EstimatedCost != nil {
		s.EstimatedCost = p.EstimatedCost
		cols = append(cols, "estimated_cost")
	}
	if p.ActualCost != nil {
		s.ActualCost = p.ActualCost
		cols = append(cols, "actual_cost")
	}

	if p.Status != nil && *p.Status != s.Status {
		to := *p.Status
		if !models.ValidStopStatus(to) {
			return nil, fmt.Errorf("status %q must be one of %v: %w", to, models.StopStatuses, models.ErrValidation)
		}
		if !isValidTransition(s.Status, to) {
			return nil, fmt.Errorf("invalid status transition from %q to %q; valid transitions: %v: %w",
				s.Status, to, ValidTransitions[s.Status], models.ErrValidation)
		}
		from := s.Status
		s.Status = to
		cols = append(cols, "status")
		cols = append(cols, stampActuals(s, from, to, now)...)
	}

	if s.PlannedEnd.Before(s.PlannedStart) {
		return nil, fmt.Errorf("planned end is before planned start: %w", models.ErrValidation)
	}
	if s.ActualStart != nil && s.ActualEnd != nil && s.ActualEnd.Before(*s.ActualStart) {
		return nil, fmt.Errorf("actual end is before actual start: %w", models.ErrValidation)
	}
	return dedupe(cols), nil
}

func dedupe(cols []string) []string {
	seen := make(map[string]bool, len(cols))
	out := cols[:0]
	for _, c := range cols {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

func byTag(q *gorm.DB) *gorm.DB { return q.Order("tag ASC") }

func assetIDs(g models.AssetGroup) []string {
	ids := make([]string, 0, len(g.Assets))
	for _, a := range g.Assets {
		ids = append(ids, a.ID)
	}
	return ids
}
