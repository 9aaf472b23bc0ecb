package models

import "time"

// ReminderRecord is the idempotency guard for the reminder sweep. The unique
// (task_id, window) index guarantees at most one sent reminder per task per
// lookahead window, even when sweeps overlap or retry.
type ReminderRecord struct {
	ID        uint       `gorm:"primaryKey;autoIncrement"`
	TaskID    string     `gorm:"size:36;not null;uniqueIndex:idx_task_window"`
	Window    string     `gorm:"size:16;not null;uniqueIndex:idx_task_window"` // e.g. "24h", "6h"
	AccountID string     `gorm:"size:36;index"`
	Message   string     `gorm:"type:text"` // rendered text, doubles as the dedup audit trail
	Sent      bool       `gorm:"default:false;index"`
	SentAt    *time.Time
	CreatedAt time.Time
}
