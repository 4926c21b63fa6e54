// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the safe-retry records used by the
// support chat POST endpoint and the update_id claims that deduplicate
// Telegram webhook deliveries.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tevasul/tevasul-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound so callers can use either.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate reports a unique-constraint violation: an idempotency record
// for the same (session_id, key), or an already claimed update_id.
var ErrDuplicate = errors.New("duplicate")

// isUniqueViolation detects duplicate-key errors across drivers.
// glebarez/sqlite often returns plain-text errors; pgx returns SQLSTATE 23505.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "sqlstate 23505") ||
		strings.Contains(low, "duplicate key value")
}

// GetIdempotency returns a non-expired record or ErrNotFound.
func GetIdempotency(ctx context.Context, db *gorm.DB, sessionID, key string, now time.Time) (*domain.Idempotency, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := db.WithContext(ctx).
		Where("session_id = ? AND key = ? AND expires_at > ?", sessionID, key, now).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateIdempotency inserts a record and returns ErrDuplicate on unique violation.
func CreateIdempotency(ctx context.Context, db *gorm.DB, sessionID, key, messageID string, status int, ttl time.Duration) (*domain.Idempotency, error) {
	now := time.Now().UTC()
	rec := &domain.Idempotency{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Key:       key,
		MessageID: messageID,
		Status:    status,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// ClaimUpdate records (bot, updateID) as processed. The first caller wins;
// every later call for the same pair gets ErrDuplicate, including calls made
// concurrently by another replica.
func ClaimUpdate(ctx context.Context, db *gorm.DB, bot string, updateID int64, ttl time.Duration) error {
	now := time.Now().UTC()
	rec := &domain.ProcessedUpdate{
		Bot:         bot,
		UpdateID:    updateID,
		ProcessedAt: now,
		ExpiresAt:   now.Add(ttl),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// PruneExpired deletes idempotency records and update claims whose TTL has
// passed, returning the total number of rows removed.
func PruneExpired(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	var total int64
	for _, mdl := range []any{&domain.Idempotency{}, &domain.ProcessedUpdate{}} {
		res := db.WithContext(ctx).Where("expires_at <= ?", now).Delete(mdl)
		if res.Error != nil {
			return total, res.Error
		}
		total += res.RowsAffected
	}
	return total, nil
}
