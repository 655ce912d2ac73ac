package models

import "time"

// LocationCenter is a physical site (plant, port, mine) identified by its
// SAP location code.
type LocationCenter struct {
	Code      string `gorm:"primaryKey;size:16"`
	Name      string `gorm:"size:128;not null"`
	Region    string `gorm:"size:64"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (LocationCenter) TableName() string { return "location_centers" }

// SAPFields are the metadata columns every SAP-synchronised record carries.
type SAPFields struct {
	SAPID      string `gorm:"column:sap_id;size:64" json:"sapId,omitempty"`
	ClientID   string `gorm:"size:8" json:"clientId,omitempty"`
	CreatedBy  string `gorm:"size:64" json:"createdBy,omitempty"`
	ModifiedBy string `gorm:"size:64" json:"modifiedBy,omitempty"`
}
