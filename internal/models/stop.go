package models

import "time"

// Stop is a scheduled maintenance outage for a group. CenterCode and Phase
// are copied from the group when the stop is written so an orphaned stop can
// still be matched to a compatible group.
type Stop struct {
	ID              string     `gorm:"primaryKey;size:36"`
	GroupID         string     `gorm:"size:36;not null;index"`
	CenterCode      string     `gorm:"size:16;index"`
	Phase           string     `gorm:"size:32"`
	StrategyID      *string    `gorm:"size:36;index"`
	Title           string     `gorm:"size:256;not null"`
	Description     string     `gorm:"type:text"`
	PlannedStart    time.Time  `gorm:"not null;index"`
	PlannedEnd      time.Time  `gorm:"not null"`
	ActualStart     *time.Time
	ActualEnd       *time.Time
	DurationHours   float64
	Status          string   `gorm:"size:16;not null;default:planned;index"`
	Priority        string   `gorm:"size:16;not null;default:medium"`
	AffectedAssets  []string `gorm:"serializer:json;type:text"`
	ResponsibleTeam string   `gorm:"size:128"`
	EstimatedCost   *float64
	ActualCost      *float64
	WorkOrderID     string `gorm:"size:64"`
	NotificationID  string `gorm:"size:64"`
	CostCenter      string `gorm:"size:32"`
	SAPFields       `gorm:"embedded"`
	Version         int `gorm:"not null;default:1"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (Stop) TableName() string { return "maintenance_stops" }

// Completion is the stop's progress derived from its status.
func (s Stop) Completion() int {
	switch s.Status {
	case StatusCompleted:
		return 100
	case StatusInProgress:
		return 50
	}
	return 0
}
