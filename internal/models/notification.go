package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification is one status event or alert published by a session.
type Notification struct {
	ID        uint           `gorm:"primaryKey;autoIncrement"`
	SessionID string         `gorm:"size:64;index"`
	Kind      string         `gorm:"size:8;not null"`
	Priority  string         `gorm:"size:16"`
	Action    string         `gorm:"size:32;index"`
	Message   string         `gorm:"type:text"`
	Fields    datatypes.JSON `gorm:"column:fields"`
	CreatedAt time.Time      `gorm:"index"`
}

// TableName returns the notification table name.
func (Notification) TableName() string { return "cpg_notification" }
