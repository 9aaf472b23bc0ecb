package models

import "time"

// PendingCommand kinds.
const (
	PendingKindConnect = "connect"
	PendingKindComment = "pending_comment"
)

// PendingCommand is short-lived cross-invocation state keyed by Telegram
// identity: an outstanding connection code, or a "next free-text message is
// a comment on task X" marker. Rows are consumed (Processed=true) exactly
// once; unconsumed rows go stale and are ignored past their TTL.
type PendingCommand struct {
	ID              uint      `gorm:"primaryKey;autoIncrement"`
	ChatID          int64     `gorm:"not null;index"`
	UserID          int64     `gorm:"not null;index"`
	Kind            string    `gorm:"size:24;not null;index"` // connect, pending_comment
	Code            string    `gorm:"size:8;index"`           // connect: 6-digit code
	Username        string    `gorm:"size:64"`                // connect: display name at issue time
	TaskID          string    `gorm:"size:36"`                // pending_comment: target task
	OriginMessageID int       // pending_comment: message the buttons were on
	Processed       bool      `gorm:"default:false;index"`
	CreatedAt       time.Time
}
