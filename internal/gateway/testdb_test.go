package gateway

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/taskrelay/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Account{},
		&models.Task{},
		&models.PendingCommand{},
		&models.ReminderRecord{},
		&models.Notification{},
	); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

// seedAccount inserts a linked, active account and returns it.
func seedAccount(t *testing.T, db *gorm.DB, role string, userID, chatID int64) *models.Account {
	t.Helper()
	now := time.Now()
	acct := models.Account{
		ID:               uuid.NewString(),
		Name:             "user-" + uuid.NewString()[:8],
		Role:             role,
		Active:           true,
		TelegramChatID:   &chatID,
		TelegramUserID:   &userID,
		TelegramUsername: "tester",
		TelegramLinked:   true,
		TelegramLinkedAt: &now,
	}
	if err := db.Create(&acct).Error; err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return &acct
}

// seedTask inserts a task assigned to acct, due at the given time.
func seedTask(t *testing.T, db *gorm.DB, acct *models.Account, status string, due *time.Time) *models.Task {
	t.Helper()
	task := models.Task{
		ID:       uuid.NewString(),
		Title:    "Ship the widget",
		Status:   status,
		Priority: "medium",
		Credits:  3,
		DueAt:    due,
	}
	if acct != nil {
		task.AssigneeID = &acct.ID
	}
	if err := db.Create(&task).Error; err != nil {
		t.Fatalf("seed task: %v", err)
	}
	return &task
}
