// Package group manages location centers, asset groups and their assets.
package group

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/zulandar/stopyard/internal/changefeed"
	"github.com/zulandar/stopyard/internal/models"
	"gorm.io/gorm"
)

const (
	tableGroups  = "asset_groups"
	tableAssets  = "assets"
	tableCenters = "location_centers"
)

// CreateOpts holds parameters for creating a new group.
type CreateOpts struct {
	Name                 string
	Type                 string
	CenterCode           string
	Phase                string
	System               string
	Category             string
	ExecutiveDirectorate string
	ExecutiveManagement  string
	PlantCode            string
	MaintenancePlant     string
	PlannerGroup         string
	CreatedBy            string
}

// ListFilters holds optional filters for listing groups.
type ListFilters struct {
	CenterCode string
	Phase      string
	Search     string // group or center name, case-insensitive
}

// AssetOpts holds parameters for adding an asset to a group.
type AssetOpts struct {
	Tag                string
	Name               string
	Type               string
	System             string
	Category           string
	PlantCode          string
	WorkCenter         string
	FunctionalLocation string
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Name                 *string `json:"name,omitempty"`
	Type                 *string `json:"type,omitempty"`
	CenterCode           *string `json:"centerCode,omitempty"`
	Phase                *string `json:"phase,omitempty"`
	System               *string `json:"system,omitempty"`
	Category             *string `json:"category,omitempty"`
	ExecutiveDirectorate *string `json:"executiveDirectorate,omitempty"`
	ExecutiveManagement  *string `json:"executiveManagement,omitempty"`
	PlantCode            *string `json:"plantCode,omitempty"`
	MaintenancePlant     *string `json:"maintenancePlant,omitempty"`
	PlannerGroup         *string `json:"plannerGroup,omitempty"`
	ModifiedBy           *string `json:"modifiedBy,omitempty"`
}

// apply copies the set fields onto g and returns the touched columns.
func (p Patch) apply(g *models.AssetGroup) []string {
	var cols []string
	set := func(dst *string, src *string, col string) {
		if src != nil {
			*dst = *src
			cols = append(cols, col)
		}
	}
	set(&g.Name, p.Name, "name")
	set(&g.Type, p.Type, "type")
	set(&g.CenterCode, p.CenterCode, "center_code")
	set(&g.Phase, p.Phase, "phase")
	set(&g.System, p.System, "system")
	set(&g.Category, p.Category, "category")
	set(&g.ExecutiveDirectorate, p.ExecutiveDirectorate, "executive_directorate")
	set(&g.ExecutiveManagement, p.ExecutiveManagement, "executive_management")
	set(&g.PlantCode, p.PlantCode, "plant_code")
	set(&g.MaintenancePlant, p.MaintenancePlant, "maintenance_plant")
	set(&g.PlannerGroup, p.PlannerGroup, "planner_group")
	set(&g.ModifiedBy, p.ModifiedBy, "modified_by")
	return cols
}

// CreateCenter inserts a location center.
func CreateCenter(ctx context.Context, db *gorm.DB, code, name, region string) (*models.LocationCenter, error) {
	if code == "" || name == "" {
		return nil, fmt.Errorf("group: center code and name are required: %w", models.ErrValidation)
	}
	center := models.LocationCenter{Code: code, Name: name, Region: region}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&center).Error; err != nil {
			return err
		}
		return changefeed.Record(tx, tableCenters, models.KindInsert, center.Code, center)
	})
	if err != nil {
		return nil, fmt.Errorf("group: create center %s: %w", code, err)
	}
	return &center, nil
}

// ListCenters returns all centers ordered by code.
func ListCenters(ctx context.Context, db *gorm.DB) ([]models.LocationCenter, error) {
	var centers []models.LocationCenter
	if err := db.WithContext(ctx).Order("code ASC").Find(&centers).Error; err != nil {
		return nil, fmt.Errorf("group: list centers: %w", err)
	}
	return centers, nil
}

// Create validates opts and inserts a new group.
func Create(ctx context.Context, db *gorm.DB, opts CreateOpts) (*models.AssetGroup, error) {
	if strings.TrimSpace(opts.Name) == "" {
		return nil, fmt.Errorf("group: name is required: %w", models.ErrValidation)
	}
	if opts.CenterCode == "" {
		return nil, fmt.Errorf("group: location center is required: %w", models.ErrValidation)
	}
	if !models.ValidPhase(opts.Phase) {
		return nil, fmt.Errorf("group: phase %q must be one of %v: %w", opts.Phase, models.Phases, models.ErrValidation)
	}

	db = db.WithContext(ctx)
	if err := centerExists(db, opts.CenterCode); err != nil {
		return nil, err
	}

	g := models.AssetGroup{
		ID:                   uuid.NewString(),
		Name:                 strings.TrimSpace(opts.Name),
		Type:                 opts.Type,
		CenterCode:           opts.CenterCode,
		Phase:                opts.Phase,
		System:               opts.System,
		Category:             opts.Category,
		ExecutiveDirectorate: opts.ExecutiveDirectorate,
		ExecutiveManagement:  opts.ExecutiveManagement,
		PlantCode:            opts.PlantCode,
		MaintenancePlant:     opts.MaintenancePlant,
		PlannerGroup:         opts.PlannerGroup,
		SAPFields:            models.SAPFields{CreatedBy: opts.CreatedBy},
		Version:              1,
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Center", "Assets", "Strategies").Create(&g).Error; err != nil {
			return err
		}
		return changefeed.Record(tx, tableGroups, models.KindInsert, g.ID, g)
	})
	if err != nil {
		return nil, fmt.Errorf("group: create: %w", err)
	}
	return &g, nil
}

// Get retrieves a group by ID, preloading its center, assets and strategies.
func Get(ctx context.Context, db *gorm.DB, id string) (*models.AssetGroup, error) {
	var g models.AssetGroup
	err := db.WithContext(ctx).
		Preload("Center").
		Preload("Assets", func(q *gorm.DB) *gorm.DB { return q.Order("tag ASC") }).
		Preload("Strategies", func(q *gorm.DB) *gorm.DB { return q.Order("name ASC") }).
		Where("id = ?", id).First(&g).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("group: %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("group: get %s: %w", id, err)
	}
	return &g, nil
}

// List returns groups matching the filters ordered by name, with centers
// preloaded.
func List(ctx context.Context, db *gorm.DB, filters ListFilters) ([]models.AssetGroup, error) {
	q := db.WithContext(ctx).Model(&models.AssetGroup{}).Preload("Center")

	if filters.CenterCode != "" {
		q = q.Where("asset_groups.center_code = ?", filters.CenterCode)
	}
	if filters.Phase != "" {
		q = q.Where("asset_groups.phase = ?", filters.Phase)
	}
	if s := strings.TrimSpace(filters.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Joins("LEFT JOIN location_centers ON location_centers.code = asset_groups.center_code").
			Where("LOWER(asset_groups.name) LIKE ? OR LOWER(location_centers.name) LIKE ?", like, like)
	}

	var groups []models.AssetGroup
	if err := q.Order("asset_groups.name ASC, asset_groups.id ASC").Find(&groups).Error; err != nil {
		return nil, fmt.Errorf("group: list: %w", err)
	}
	return groups, nil
}

// Update applies patch when version matches the stored version and returns
// the updated group.
func Update(ctx context.Context, db *gorm.DB, id string, version int, patch Patch) (*models.AssetGroup, error) {
	if patch.Phase != nil && !models.ValidPhase(*patch.Phase) {
		return nil, fmt.Errorf("group: phase %q must be one of %v: %w", *patch.Phase, models.Phases, models.ErrValidation)
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, fmt.Errorf("group: name is required: %w", models.ErrValidation)
	}

	db = db.WithContext(ctx)
	if patch.CenterCode != nil {
		if err := centerExists(db, *patch.CenterCode); err != nil {
			return nil, err
		}
	}

	var g models.AssetGroup
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&g).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%s: %w", id, models.ErrNotFound)
			}
			return err
		}
		cols := patch.apply(&g)
		g.Version = version + 1
		if err := models.UpdateVersioned(tx, id, version, &g, cols); err != nil {
			return err
		}
		return changefeed.Record(tx, tableGroups, models.KindUpdate, id, g)
	})
	if err != nil {
		return nil, fmt.Errorf("group: update %s: %w", id, err)
	}
	return &g, nil
}

// AddAsset creates an asset inside a group. The asset inherits the group's
// center and phase.
func AddAsset(ctx context.Context, db *gorm.DB, groupID string, opts AssetOpts) (*models.Asset, error) {
	if strings.TrimSpace(opts.Tag) == "" {
		return nil, fmt.Errorf("group: asset tag is required: %w", models.ErrValidation)
	}
	if strings.TrimSpace(opts.Name) == "" {
		return nil, fmt.Errorf("group: asset name is required: %w", models.ErrValidation)
	}

	db = db.WithContext(ctx)
	var g models.AssetGroup
	if err := db.Where("id = ?", groupID).First(&g).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("group: %s: %w", groupID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("group: get %s: %w", groupID, err)
	}

	a := models.Asset{
		ID:                   uuid.NewString(),
		Tag:                  strings.TrimSpace(opts.Tag),
		Name:                 strings.TrimSpace(opts.Name),
		Type:                 opts.Type,
		CenterCode:           g.CenterCode,
		Phase:                g.Phase,
		System:               opts.System,
		Category:             opts.Category,
		ExecutiveDirectorate: g.ExecutiveDirectorate,
		ExecutiveManagement:  g.ExecutiveManagement,
		GroupID:              &g.ID,
		PlantCode:            opts.PlantCode,
		WorkCenter:           opts.WorkCenter,
		FunctionalLocation:   opts.FunctionalLocation,
		Version:              1,
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&a).Error; err != nil {
			return err
		}
		return changefeed.Record(tx, tableAssets, models.KindInsert, a.ID, a)
	})
	if err != nil {
		return nil, fmt.Errorf("group: add asset to %s: %w", groupID, err)
	}
	return &a, nil
}

func centerExists(db *gorm.DB, code string) error {
	var count int64
	if err := db.Model(&models.LocationCenter{}).Where("code = ?", code).Count(&count).Error; err != nil {
		return fmt.Errorf("group: check center %s: %w", code, err)
	}
	if count == 0 {
		return fmt.Errorf("group: location center %s: %w", code, models.ErrNotFound)
	}
	return nil
}
