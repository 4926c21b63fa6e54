package repo

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tevasul/tevasul-backend/internal/domain"
)

// GetTelegramConfig returns the config row for purpose, or ErrNotFound.
func GetTelegramConfig(ctx context.Context, db *gorm.DB, purpose string) (*domain.TelegramConfig, error) {
	var c domain.TelegramConfig
	if err := db.WithContext(ctx).Where("purpose = ?", purpose).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// UpsertTelegramConfig inserts or replaces the row for c.Purpose.
func UpsertTelegramConfig(ctx context.Context, db *gorm.DB, c *domain.TelegramConfig) error {
	now := time.Now().UTC()
	c.UpdatedAt = now
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "purpose"}},
		DoUpdates: clause.AssignmentColumns([]string{"bot_token", "admin_chat_id", "is_enabled", "updated_at"}),
	}).Create(c).Error
}

// FindAllowedUser returns the allowed-user row for a Telegram username,
// ignoring a leading '@' and letter case.
func FindAllowedUser(ctx context.Context, db *gorm.DB, username string) (*domain.AllowedUser, error) {
	u := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(username), "@"))
	var out domain.AllowedUser
	if err := db.WithContext(ctx).Where("LOWER(telegram_username) = ?", u).First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

// FindAllowedUserByChat returns the active allowed user linked to chatID.
func FindAllowedUserByChat(ctx context.Context, db *gorm.DB, chatID string) (*domain.AllowedUser, error) {
	var out domain.AllowedUser
	err := db.WithContext(ctx).
		Where("telegram_chat_id = ? AND is_active = ?", chatID, true).
		First(&out).Error
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// LinkAllowedUserChat records chatID on the allowed user with id.
func LinkAllowedUserChat(ctx context.Context, db *gorm.DB, id, chatID string) error {
	res := db.WithContext(ctx).Model(&domain.AllowedUser{}).
		Where("id = ?", id).
		Updates(map[string]any{"telegram_chat_id": chatID, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListLinkedChats returns the chat ids of active allowed users that have
// linked a chat, oldest link first.
func ListLinkedChats(ctx context.Context, db *gorm.DB) ([]string, error) {
	var out []string
	err := db.WithContext(ctx).Model(&domain.AllowedUser{}).
		Where("is_active = ? AND telegram_chat_id IS NOT NULL AND telegram_chat_id <> ''", true).
		Order("created_at ASC").
		Pluck("telegram_chat_id", &out).Error
	return out, err
}
