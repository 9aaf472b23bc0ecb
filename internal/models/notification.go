package models

import "time"

// Notification types and channels written by the dispatcher.
const (
	NotificationTypeReminder = "task_reminder"
	NotificationTypeSummary  = "daily_summary"

	NotificationChannelTelegram = "telegram"
)

// Notification is an append-only delivery audit record. The dispatcher
// checks for an existing same-day row with identical (account, type, title)
// before inserting, which suppresses duplicate outbound sends.
type Notification struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	AccountID string    `gorm:"size:36;not null;index"`
	Type      string    `gorm:"size:24;not null;index"`
	Title     string    `gorm:"size:256;not null"`
	Body      string    `gorm:"type:text"`
	Channel   string    `gorm:"size:16;default:telegram"`
	Status    string    `gorm:"size:16;default:sent"` // sent, failed
	CreatedAt time.Time `gorm:"index"`
}
