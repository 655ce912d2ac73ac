package models

import "time"

// AssetGroup is a set of assets maintained together. It is the row unit of
// the timeline.
type AssetGroup struct {
	ID                   string `gorm:"primaryKey;size:36"`
	Name                 string `gorm:"size:128;not null"`
	Type                 string `gorm:"size:64"`
	CenterCode           string `gorm:"size:16;not null;index"`
	Phase                string `gorm:"size:32;not null;index"`
	System               string `gorm:"size:64"`
	Category             string `gorm:"size:64"`
	ExecutiveDirectorate string `gorm:"size:128"`
	ExecutiveManagement  string `gorm:"size:128"`
	PlantCode            string `gorm:"size:16"`
	MaintenancePlant     string `gorm:"size:16"`
	PlannerGroup         string `gorm:"size:16"`
	SAPFields            `gorm:"embedded"`
	Version              int `gorm:"not null;default:1"`
	CreatedAt            time.Time
	UpdatedAt            time.Time

	Center     LocationCenter `gorm:"foreignKey:CenterCode;references:Code"`
	Assets     []Asset        `gorm:"foreignKey:GroupID"`
	Strategies []Strategy     `gorm:"foreignKey:GroupID"`
}

func (AssetGroup) TableName() string { return "asset_groups" }

// Asset is a single piece of equipment.
type Asset struct {
	ID                   string  `gorm:"primaryKey;size:36"`
	Tag                  string  `gorm:"size:64;not null;index"`
	Name                 string  `gorm:"size:128;not null"`
	Type                 string  `gorm:"size:64"`
	CenterCode           string  `gorm:"size:16;index"`
	Phase                string  `gorm:"size:32"`
	System               string  `gorm:"size:64"`
	Category             string  `gorm:"size:64"`
	ExecutiveDirectorate string  `gorm:"size:128"`
	ExecutiveManagement  string  `gorm:"size:128"`
	GroupID              *string `gorm:"size:36;index"`
	PlantCode            string  `gorm:"size:16"`
	WorkCenter           string  `gorm:"size:16"`
	FunctionalLocation   string  `gorm:"size:64"`
	SAPFields            `gorm:"embedded"`
	Version              int `gorm:"not null;default:1"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (Asset) TableName() string { return "assets" }
