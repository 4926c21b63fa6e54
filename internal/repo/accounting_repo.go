package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tevasul/tevasul-backend/internal/domain"
)

// UpsertAccountingAuth creates or refreshes the login bound to a.TelegramChatID.
func UpsertAccountingAuth(ctx context.Context, db *gorm.DB, a *domain.AccountingAuth) error {
	now := time.Now().UTC()
	a.UpdatedAt = now
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "telegram_chat_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_id", "email", "authenticated_at", "expires_at", "is_active", "updated_at",
		}),
	}).Create(a).Error
}

// GetAccountingAuth returns the login for chatID, active or not.
func GetAccountingAuth(ctx context.Context, db *gorm.DB, chatID string) (*domain.AccountingAuth, error) {
	var a domain.AccountingAuth
	if err := db.WithContext(ctx).Where("telegram_chat_id = ?", chatID).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// DeactivateAccountingAuth logs chatID out.
func DeactivateAccountingAuth(ctx context.Context, db *gorm.DB, chatID string) error {
	return db.WithContext(ctx).Model(&domain.AccountingAuth{}).
		Where("telegram_chat_id = ?", chatID).
		Updates(map[string]any{"is_active": false, "updated_at": time.Now().UTC()}).Error
}

// ActiveAccountingChats lists chat ids of active logins that have not
// expired at now.
func ActiveAccountingChats(ctx context.Context, db *gorm.DB, now time.Time) ([]string, error) {
	var out []string
	err := db.WithContext(ctx).Model(&domain.AccountingAuth{}).
		Where("is_active = ? AND (expires_at IS NULL OR expires_at > ?)", true, now).
		Order("id ASC").
		Pluck("telegram_chat_id", &out).Error
	return out, err
}

// ListTransactions returns transactions with from <= transaction_date < to,
// newest first, with their category preloaded. A zero from or to leaves
// that side open. limit <= 0 means no limit.
func ListTransactions(ctx context.Context, db *gorm.DB, from, to time.Time, limit int) ([]domain.AccountingTransaction, error) {
	q := db.WithContext(ctx).Preload("Category")
	if !from.IsZero() {
		q = q.Where("transaction_date >= ?", from.UTC())
	}
	if !to.IsZero() {
		q = q.Where("transaction_date < ?", to.UTC())
	}
	q = q.Order("transaction_date DESC, created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []domain.AccountingTransaction
	err := q.Find(&out).Error
	return out, err
}
