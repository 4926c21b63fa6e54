package domain

import (
	"time"
)

// Support session status values.
const (
	SupportOpen      = "open"
	SupportEscalated = "escalated"
	SupportClosed    = "closed"
)

// Message sender values.
const (
	SenderUser  = "user"
	SenderBot   = "bot"
	SenderAdmin = "admin"
)

// ChatSession is a support conversation opened by a website visitor.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - VisitorID: anonymous identifier supplied by the widget; indexed.
//   - Language: "ar", "en" or "tr"; drives the language of bot replies.
//   - Status: open, escalated (handed to staff) or closed.
//   - Title: first words of the opening message.
type ChatSession struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	VisitorID string    `json:"visitor_id" gorm:"type:varchar(64);not null;index:idx_visitor_sessions"`
	Language  string    `json:"language"   gorm:"type:varchar(8);not null"`
	Status    string    `json:"status"     gorm:"type:varchar(16);not null;check:status IN ('open','escalated','closed')"`
	Title     string    `json:"title"      gorm:"type:varchar(255);not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for ChatSession.
func (ChatSession) TableName() string { return "telegram_chat_sessions" }

// ChatMessage is one message in a support session. Bot answers carry the
// retrieval score that selected them.
type ChatMessage struct {
	ID        string    `json:"id"              gorm:"type:char(36);primaryKey"`
	SessionID string    `json:"session_id"      gorm:"type:char(36);not null;index:idx_session_msgs,priority:1"`
	Sender    string    `json:"sender"          gorm:"type:varchar(16);not null;check:sender IN ('user','bot','admin')"`
	Content   string    `json:"content"         gorm:"type:text;not null"`
	Score     *float64  `json:"score,omitempty"`
	CreatedAt time.Time `json:"created_at"      gorm:"index:idx_session_msgs,priority:2"`
	UpdatedAt time.Time `json:"updated_at"`

	Session ChatSession `json:"-" gorm:"foreignKey:SessionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ChatMessage.
func (ChatMessage) TableName() string { return "chat_messages" }
