package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Session status values. A session is "active" while the wizard is
// collecting answers; the other values are terminal.
const (
	SessionActive    = "active"
	SessionCompleted = "completed"
	SessionCancelled = "cancelled"
	SessionExpired   = "expired"
	SessionReplaced  = "replaced"
)

// FlowVoluntaryReturn is the only wizard flow today.
const FlowVoluntaryReturn = "voluntary_return"

// ConversationSession is one run of the Telegram wizard for a chat.
//
// Step names the current wizard state and doubles as the discriminator of
// Answers, which holds the JSON encoding of that state's typed struct.
// ExpiresAt is pushed forward on every accepted message.
type ConversationSession struct {
	ID          string         `json:"id"           gorm:"type:char(36);primaryKey"`
	ChatID      int64          `json:"chat_id"      gorm:"not null;index:idx_session_chat_status,priority:1"`
	Flow        string         `json:"flow"         gorm:"type:varchar(32);not null"`
	Step        string         `json:"step"         gorm:"type:varchar(40);not null"`
	Status      string         `json:"status"       gorm:"type:varchar(16);not null;index:idx_session_chat_status,priority:2"`
	Answers     datatypes.JSON `json:"answers"`
	FormID      *string        `json:"form_id,omitempty" gorm:"type:char(36)"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	ExpiresAt   time.Time      `json:"expires_at"   gorm:"not null;index"`
}

// TableName returns the database table name for ConversationSession.
func (ConversationSession) TableName() string { return "telegram_conversation_sessions" }

// Expired reports whether the session is past its deadline at now.
func (s ConversationSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
