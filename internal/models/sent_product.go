package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SentProductRecord is the audit row written for every disseminated product.
type SentProductRecord struct {
	ID         string    `gorm:"primaryKey;size:36"`
	ProdID     string    `gorm:"column:prod_id;size:32;not null;index"`
	SessionID  string    `gorm:"size:64;index"`
	PeriodType int       `gorm:"column:period_type"`
	ProdType   string    `gorm:"column:prod_type;size:8"`
	FileName   string    `gorm:"column:file_name;size:256"`
	ProdText   string    `gorm:"column:prod_text;type:text"`
	SendTime   time.Time `gorm:"column:send_time;not null;index"`
	UserID     string    `gorm:"column:user_id;size:64"`
}

// TableName pins the table name shared with operator tooling.
func (SentProductRecord) TableName() string { return "sent_prod_record" }

// BeforeCreate assigns an ID when none was set.
func (r *SentProductRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
