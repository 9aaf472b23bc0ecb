package models

import "time"

// Task statuses used by the gateway. The tracker owns the full lifecycle;
// the gateway only moves tasks between these states.
const (
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
	TaskStatusOverdue    = "overdue"
)

// Task is the tracker work item, restricted to the fields the gateway reads
// and writes. Notes are append-only from the gateway side. The Telegram
// message bookkeeping fields let callbacks edit a previously sent reminder.
type Task struct {
	ID                string     `gorm:"primaryKey;size:36"`
	Title             string     `gorm:"not null"`
	Description       string     `gorm:"type:text"`
	Status            string     `gorm:"size:16;default:pending;index"`
	Priority          string     `gorm:"size:8;default:medium"` // low, medium, high
	Credits           int        `gorm:"default:0"`
	Notes             string     `gorm:"type:text"`
	AssigneeID        *string    `gorm:"size:36;index"`
	DueAt             *time.Time `gorm:"index"`
	CompletedAt       *time.Time
	TelegramChatID    int64
	TelegramMessageID int
	CreatedAt         time.Time
	UpdatedAt         time.Time

	Assignee *Account `gorm:"foreignKey:AssigneeID"`
}
