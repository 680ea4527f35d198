package db

import (
	"fmt"

	"github.com/zulandar/cpg/internal/models"
	"gorm.io/gorm"
)

// AllModels returns every GORM model in the cpg schema.
func AllModels() []interface{} {
	return []interface{}{
		&models.CPGSession{},
		&models.SentProductRecord{},
		&models.Notification{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// Reset drops every cpg table and recreates the schema.
func Reset(db *gorm.DB) error {
	if err := db.Migrator().DropTable(AllModels()...); err != nil {
		return fmt.Errorf("db: drop tables: %w", err)
	}
	return AutoMigrate(db)
}
