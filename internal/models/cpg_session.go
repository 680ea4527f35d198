package models

import (
	"time"

	"gorm.io/datatypes"
)

// CPGSession is the persisted record of one product generation run.
type CPGSession struct {
	ID            string         `gorm:"column:cpg_session_id;primaryKey;size:64"`
	RunType       int            `gorm:"not null"`
	ProdType      int            `gorm:"not null;index"`
	State         int            `gorm:"not null;index"`
	Status        int            `gorm:"not null;index"`
	StatusDesc    string         `gorm:"type:text"`
	GlobalConfig  datatypes.JSON `gorm:"column:global_config"`
	ProdSetting   datatypes.JSON `gorm:"column:prod_setting"`
	ReportData    []byte         `gorm:"column:report_data"`
	ProdData      []byte         `gorm:"column:prod_data"`
	StartAt       time.Time      `gorm:"column:start_at;not null"`
	LastUpdated   time.Time      `gorm:"column:last_updated;not null;index"`
	PendingExpire *time.Time     `gorm:"column:pending_expire"`
}

// TableName pins the table name shared with operator tooling.
func (CPGSession) TableName() string { return "cpg_session" }
