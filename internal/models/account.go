package models

import "time"

// Account is an internal user account as seen by the gateway. The account
// system owns creation; the gateway only binds and reads the Telegram
// identity fields.
type Account struct {
	ID               string     `gorm:"primaryKey;size:36"`
	Name             string     `gorm:"size:128;not null"`
	Role             string     `gorm:"size:16;default:member;index"` // member, admin
	Active           bool       `gorm:"default:true"`
	TelegramChatID   *int64     `gorm:"uniqueIndex"`
	TelegramUserID   *int64     `gorm:"uniqueIndex"`
	TelegramUsername string     `gorm:"size:64"`
	TelegramLinked   bool       `gorm:"default:false;index"`
	TelegramLinkedAt *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
