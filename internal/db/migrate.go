package db

import (
	"fmt"

	"github.com/zulandar/taskrelay/internal/models"
	"gorm.io/gorm"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Account{},
		&models.Task{},
		&models.PendingCommand{},
		&models.ReminderRecord{},
		&models.Notification{},
	}
}

// AutoMigrate creates or updates all gateway tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
