// Package domain defines the persistence models of the Tevasul backend:
// Telegram bot configuration, wizard sessions, request rows, the support
// chat, the accounting ledger and staff profiles. These types are mapped
// with GORM and shared by the repository and service layers.
package domain

import "time"

// Bot purposes. Each purpose has its own token, webhook and telegram_config row.
const (
	BotMain       = "main"
	BotAccounting = "accounting"
)

// TelegramConfig is the runtime configuration of one bot, keyed by purpose.
// Tokens are normally supplied by the environment; the row controls whether
// the bot is enabled and which chat receives admin notifications.
type TelegramConfig struct {
	ID          uint      `json:"id"            gorm:"primaryKey"`
	Purpose     string    `json:"purpose"       gorm:"type:varchar(32);not null;uniqueIndex"`
	BotToken    string    `json:"-"             gorm:"type:text"`
	AdminChatID string    `json:"admin_chat_id" gorm:"type:varchar(64)"`
	IsEnabled   bool      `json:"is_enabled"    gorm:"not null"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for TelegramConfig.
func (TelegramConfig) TableName() string { return "telegram_config" }

// AllowedUser is a Telegram username that may link its chat to receive
// notifications. TelegramChatID is filled in by /start.
type AllowedUser struct {
	ID               string    `json:"id"                 gorm:"type:char(36);primaryKey"`
	TelegramUsername string    `json:"telegram_username"  gorm:"type:varchar(64);not null;uniqueIndex"`
	TelegramChatID   string    `json:"telegram_chat_id"   gorm:"type:varchar(64)"`
	FullName         string    `json:"full_name"          gorm:"type:varchar(255)"`
	IsActive         bool      `json:"is_active"          gorm:"not null"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName returns the database table name for AllowedUser.
func (AllowedUser) TableName() string { return "telegram_allowed_users" }

// ProcessedUpdate records that an update_id from a given bot was accepted.
// The (bot, update_id) pair is unique, so a redelivered update fails to insert.
type ProcessedUpdate struct {
	ID          uint      `gorm:"primaryKey"`
	Bot         string    `gorm:"type:varchar(32);not null;uniqueIndex:ux_bot_update,priority:1"`
	UpdateID    int64     `gorm:"not null;uniqueIndex:ux_bot_update,priority:2"`
	ProcessedAt time.Time `gorm:"not null"`
	ExpiresAt   time.Time `gorm:"not null;index"`
}

// TableName returns the database table name for ProcessedUpdate.
func (ProcessedUpdate) TableName() string { return "processed_updates" }
