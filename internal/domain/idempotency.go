package domain

import "time"

// Idempotency represents a recorded result of a previously processed support
// chat POST, keyed by (session_id, key). A retry with the same key returns
// the originally produced message without storing it twice.
type Idempotency struct {
	ID        string    `gorm:"type:varchar(36);not null;primaryKey"`
	SessionID string    `gorm:"type:varchar(36);not null;uniqueIndex:ux_session_key,priority:1"`
	Key       string    `gorm:"type:varchar(128);not null;uniqueIndex:ux_session_key,priority:2"`
	MessageID string    `gorm:"type:varchar(36);not null"`
	Status    int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
