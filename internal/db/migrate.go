package db

import (
	"fmt"

	"github.com/zulandar/benchdesk/internal/models"
	"gorm.io/gorm"
)

// AllModels returns the ledger models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Submission{},
		&models.OrphanedClient{},
	}
}

// AutoMigrate creates or updates the ledger tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
