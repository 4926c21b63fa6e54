// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the support
// chat: sessions opened by website visitors and their messages.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: no business logic, only persistence and query composition.
//
// Error semantics:
//   - A missing session returns ErrNotFound (gorm.ErrRecordNotFound).
//   - Other DB errors are propagated unchanged.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tevasul/tevasul-backend/internal/domain"
)

// CreateChatSession inserts an open support session.
func CreateChatSession(ctx context.Context, db *gorm.DB, visitorID, language, title string) (*domain.ChatSession, error) {
	now := time.Now().UTC()
	s := &domain.ChatSession{
		ID:        uuid.NewString(),
		VisitorID: visitorID,
		Language:  language,
		Status:    domain.SupportOpen,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// GetChatSession fetches a session by id.
func GetChatSession(ctx context.Context, db *gorm.DB, id string) (*domain.ChatSession, error) {
	var s domain.ChatSession
	if err := db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// SetChatSessionStatus updates the status of session id and reports whether
// it changed. Setting the current status again is not a change.
func SetChatSessionStatus(ctx context.Context, db *gorm.DB, id, status string) (bool, error) {
	res := db.WithContext(ctx).Model(&domain.ChatSession{}).
		Where("id = ? AND status <> ?", id, status).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()})
	return res.RowsAffected > 0, res.Error
}

// TouchChatSession bumps updated_at so ETags change when messages are added.
func TouchChatSession(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Model(&domain.ChatSession{}).
		Where("id = ?", id).
		Update("updated_at", time.Now().UTC()).Error
}

// CreateChatMessage inserts a message into session sessionID.
func CreateChatMessage(ctx context.Context, db *gorm.DB, sessionID, sender, content string, score *float64) (*domain.ChatMessage, error) {
	now := time.Now().UTC()
	m := &domain.ChatMessage{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Sender:    sender,
		Content:   content,
		Score:     score,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// GetChatMessage fetches a message by id.
func GetChatMessage(ctx context.Context, db *gorm.DB, id string) (*domain.ChatMessage, error) {
	var m domain.ChatMessage
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// CountChatMessages returns the number of messages in a session.
func CountChatMessages(ctx context.Context, db *gorm.DB, sessionID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.ChatMessage{}).
		Where("session_id = ?", sessionID).
		Count(&total).Error
	return total, err
}

// ListChatMessagesPage returns a page ordered (created_at ASC, id ASC).
func ListChatMessagesPage(ctx context.Context, db *gorm.DB, sessionID string, offset, limit int) ([]domain.ChatMessage, error) {
	var out []domain.ChatMessage
	err := db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
