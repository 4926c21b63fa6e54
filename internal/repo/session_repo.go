package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tevasul/tevasul-backend/internal/domain"
)

// StartSession replaces any active session of chatID with a fresh one at
// step, carrying the encoded state in answers. Both writes happen in one
// transaction so a chat never has two active sessions.
func StartSession(ctx context.Context, db *gorm.DB, chatID int64, step string, answers []byte, ttl time.Duration) (*domain.ConversationSession, error) {
	now := time.Now().UTC()
	s := &domain.ConversationSession{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Flow:      domain.FlowVoluntaryReturn,
		Step:      step,
		Status:    domain.SessionActive,
		Answers:   answers,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.ConversationSession{}).
			Where("chat_id = ? AND status = ?", chatID, domain.SessionActive).
			Updates(map[string]any{"status": domain.SessionReplaced, "updated_at": now}).Error; err != nil {
			return err
		}
		return tx.Create(s).Error
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetActiveSession returns the active session of chatID, or ErrNotFound.
// Expiry is not checked here; callers decide what an expired session means.
func GetActiveSession(ctx context.Context, db *gorm.DB, chatID int64) (*domain.ConversationSession, error) {
	var s domain.ConversationSession
	err := db.WithContext(ctx).
		Where("chat_id = ? AND status = ?", chatID, domain.SessionActive).
		Order("created_at DESC").
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// SaveSessionState stores the new step and encoded state of an active
// session and pushes its deadline to expiresAt. It returns ErrNotFound when
// the session is no longer active.
func SaveSessionState(ctx context.Context, db *gorm.DB, id, step string, answers []byte, expiresAt time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.ConversationSession{}).
		Where("id = ? AND status = ?", id, domain.SessionActive).
		Updates(map[string]any{
			"step":       step,
			"answers":    datatypes.JSON(answers),
			"expires_at": expiresAt,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// FinishSession moves an active session to a terminal status, recording its
// final step and state. formID links a completed session to its petition.
func FinishSession(ctx context.Context, db *gorm.DB, id, status, step string, answers []byte, formID *string) error {
	now := time.Now().UTC()
	fields := map[string]any{
		"status":     status,
		"step":       step,
		"answers":    datatypes.JSON(answers),
		"updated_at": now,
	}
	if status == domain.SessionCompleted {
		fields["completed_at"] = now
	}
	if formID != nil {
		fields["form_id"] = *formID
	}
	res := db.WithContext(ctx).
		Model(&domain.ConversationSession{}).
		Where("id = ? AND status = ?", id, domain.SessionActive).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ExpireSessions marks every active session whose deadline is before now as
// expired and returns how many were changed.
func ExpireSessions(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.ConversationSession{}).
		Where("status = ? AND expires_at < ?", domain.SessionActive, now).
		Updates(map[string]any{"status": domain.SessionExpired, "updated_at": now})
	return res.RowsAffected, res.Error
}
