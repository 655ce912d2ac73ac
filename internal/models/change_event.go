package models

import "time"

// Change kinds recorded in the feed.
const (
	KindInsert = "INSERT"
	KindUpdate = "UPDATE"
	KindDelete = "DELETE"
)

// ChangeEvent is one row-level write, appended in the same transaction as
// the write itself. Table names the table the change happened in.
type ChangeEvent struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Table     string    `gorm:"column:table_name;size:64;not null;index" json:"table"`
	Kind      string    `gorm:"size:8;not null" json:"kind"`
	RecordID  string    `gorm:"size:64;not null" json:"recordId"`
	Payload   string    `gorm:"type:text" json:"payload,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

func (ChangeEvent) TableName() string { return "change_events" }
