package models

import "time"

// Strategy is a recurring maintenance plan attached to a group.
type Strategy struct {
	ID                 string     `gorm:"primaryKey;size:36"`
	Name               string     `gorm:"size:128;not null"`
	GroupID            string     `gorm:"size:36;not null;index"`
	FrequencyValue     int        `gorm:"not null"`
	FrequencyUnit      string     `gorm:"size:8;not null"`
	DurationValue      int        `gorm:"not null"`
	DurationUnit       string     `gorm:"size:8;not null"`
	StartDate          time.Time  `gorm:"not null"`
	EndDate            *time.Time
	IsActive           bool       `gorm:"not null;index"`
	Description        string     `gorm:"type:text"`
	Priority           string     `gorm:"size:16;not null;default:medium"`
	Teams              []string   `gorm:"serializer:json;type:text"`
	TotalHours         float64
	SAPStrategyID      string `gorm:"column:sap_strategy_id;size:64"`
	MaintenancePackage string `gorm:"size:64"`
	TaskListID         string `gorm:"size:64"`
	SAPFields          `gorm:"embedded"`
	Version            int `gorm:"not null;default:1"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (Strategy) TableName() string { return "maintenance_strategies" }
