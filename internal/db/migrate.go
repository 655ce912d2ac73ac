package db

import (
	"fmt"

	"github.com/zulandar/stopyard/internal/config"
	"github.com/zulandar/stopyard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns every GORM model for migration, parents first.
func AllModels() []interface{} {
	return []interface{}{
		&models.LocationCenter{},
		&models.AssetGroup{},
		&models.Asset{},
		&models.Strategy{},
		&models.Stop{},
		&models.ChangeEvent{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedCenters upserts LocationCenter rows from configuration.
func SeedCenters(db *gorm.DB, centers []config.CenterConfig) error {
	for _, cc := range centers {
		center := models.LocationCenter{
			Code:   cc.Code,
			Name:   cc.Name,
			Region: cc.Region,
		}
		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "region", "updated_at"}),
		}).Create(&center)
		if result.Error != nil {
			return fmt.Errorf("db: seed center %q: %w", cc.Code, result.Error)
		}
	}
	return nil
}
