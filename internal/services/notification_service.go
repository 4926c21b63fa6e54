package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tevasul/tevasul-backend/internal/document"
	"github.com/tevasul/tevasul-backend/internal/domain"
	"github.com/tevasul/tevasul-backend/internal/observability"
	"github.com/tevasul/tevasul-backend/internal/repo"
	"github.com/tevasul/tevasul-backend/internal/telegram"
)

// UserInfo identifies the person behind a request.
type UserInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Attachment is a file sent along with a notification. Data is base64,
// optionally as a data: URL.
type Attachment struct {
	Name string `json:"name"`
	Data string `json:"data"`
}

// Notification is one admin alert about a website or bot request.
type Notification struct {
	SessionID      string         `json:"sessionId"`
	Message        string         `json:"message"`
	Language       string         `json:"language"`
	RequestType    string         `json:"requestType"`
	UserInfo       *UserInfo      `json:"userInfo"`
	AdditionalData map[string]any `json:"additionalData"`
	RequestID      string         `json:"requestId"`
	Priority       string         `json:"priority"`
	Status         string         `json:"status"`
	File           *Attachment    `json:"file,omitempty"`

	// Document is an already rendered file, used by the wizard.
	Document *document.Artifact `json:"-"`
}

// NotifyResult reports what was delivered. MessageID is the message in the
// first chat that received it.
type NotifyResult struct {
	MessageID    int    `json:"message_id"`
	DocumentSent bool   `json:"document_sent"`
	Recipients   int    `json:"recipients"`
	Delivered    int    `json:"delivered"`
	Failed       int    `json:"failed"`
	Message      string `json:"message"`
}

// NotificationService sends admin notifications through the main bot to
// the admin chat and to every linked allowed user.
type NotificationService struct {
	DB  *gorm.DB
	Bot Messenger
	// FallbackChatID is used when telegram_config has no chat id.
	FallbackChatID string

	log zerolog.Logger
}

// NewNotificationService wires a NotificationService.
func NewNotificationService(db *gorm.DB, bot Messenger, fallbackChatID string) *NotificationService {
	return &NotificationService{
		DB:             db,
		Bot:            bot,
		FallbackChatID: fallbackChatID,
		log:            log.With().Str("component", "notifications").Logger(),
	}
}

// Notify formats n and sends it with the admin keyboard. An attachment, if
// any, follows as a document; a failed attachment is logged and does not
// fail the notification.
func (s *NotificationService) Notify(ctx context.Context, n Notification) (NotifyResult, error) {
	normalizeNotification(&n)
	ctx, span := otel.Tracer("services/NotificationService").Start(ctx, "Notify",
		trace.WithAttributes(attribute.String("request.type", n.RequestType)),
	)
	defer span.End()

	res, err := s.notify(ctx, n)
	observability.NotificationsSent.WithLabelValues(n.RequestType, observability.ResultOf(err)).Inc()
	if err != nil {
		span.RecordError(err)
	}
	return res, err
}

func (s *NotificationService) notify(ctx context.Context, n Notification) (NotifyResult, error) {
	if strings.TrimSpace(n.Message) == "" {
		return NotifyResult{}, ErrEmptyMessage
	}
	if s.Bot == nil {
		return NotifyResult{}, ErrTelegramDisabled
	}
	chats, err := s.recipients(ctx)
	if err != nil {
		return NotifyResult{}, err
	}

	ref := n.RequestID
	if ref == "" {
		ref = n.SessionID
	}
	text := formatNotification(n)
	markup := inlineMarkup(telegram.AdminKeyboard(ref, n.Language))
	name, data, hasFile := s.attachment(n)

	res := NotifyResult{Recipients: len(chats), Message: lblNotified.in(n.Language)}
	var lastErr error
	for _, chatID := range chats {
		msgID, err := s.Bot.SendText(ctx, chatID, text, markup)
		if err != nil {
			s.log.Warn().Err(err).Int64("chat_id", chatID).Str("type", n.RequestType).Msg("notification not delivered")
			res.Failed++
			lastErr = err
			continue
		}
		res.Delivered++
		if res.MessageID == 0 {
			res.MessageID = msgID
		}
		if !hasFile {
			continue
		}
		if _, err := s.Bot.SendDocument(ctx, chatID, name, data, lblCaption.in(n.Language)); err != nil {
			s.log.Warn().Err(err).Int64("chat_id", chatID).Str("type", n.RequestType).Msg("attachment not delivered")
		} else {
			res.DocumentSent = true
		}
	}
	if res.Delivered == 0 {
		return res, lastErr
	}
	return res, nil
}

// recipients is the admin chat followed by the linked allowed users, each
// chat once. A disabled main bot row disables every recipient.
func (s *NotificationService) recipients(ctx context.Context) ([]int64, error) {
	var (
		out  []int64
		seen = map[int64]bool{}
	)
	add := func(id int64) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}

	admin, err := adminChat(ctx, s.DB, domain.BotMain, s.FallbackChatID)
	switch {
	case err == nil:
		add(admin)
	case !errors.Is(err, errNoAdminChat):
		return nil, err
	}

	linked, err := repo.ListLinkedChats(ctx, s.DB)
	if err != nil {
		return nil, fmt.Errorf("list linked chats: %w", err)
	}
	for _, c := range linked {
		id, err := strconv.ParseInt(strings.TrimSpace(c), 10, 64)
		if err != nil {
			s.log.Warn().Str("chat_id", c).Msg("linked chat id is not numeric")
			continue
		}
		add(id)
	}
	if len(out) == 0 {
		return nil, ErrTelegramDisabled
	}
	return out, nil
}

// attachment picks the rendered document or decodes the uploaded file.
func (s *NotificationService) attachment(n Notification) (string, []byte, bool) {
	if n.Document != nil && len(n.Document.Bytes) > 0 {
		return n.Document.Name, n.Document.Bytes, true
	}
	if n.File == nil || n.File.Data == "" {
		return "", nil, false
	}
	data, err := DecodeAttachment(n.File.Data)
	if err != nil {
		s.log.Warn().Err(err).Msg("attachment skipped")
		return "", nil, false
	}
	name := path.Base(strings.TrimSpace(n.File.Name))
	if name == "" || name == "." || name == "/" {
		name = "file"
	}
	return name, data, true
}

// DecodeAttachment decodes base64 data, accepting a data: URL prefix.
func DecodeAttachment(raw string) ([]byte, error) {
	if strings.HasPrefix(raw, "data:") {
		if _, rest, ok := strings.Cut(raw, ";base64,"); ok {
			raw = rest
		}
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(raw))
	if err != nil {
		return nil, ErrInvalidAttachment
	}
	return data, nil
}

func normalizeNotification(n *Notification) {
	if n.Language == "" {
		n.Language = "ar"
	}
	if n.RequestType == "" {
		n.RequestType = TypeChatSupport
	}
	if _, ok := requestKinds[n.RequestType]; !ok {
		n.RequestType = TypeGeneralInquiry
	}
	if _, ok := priorities[n.Priority]; !ok {
		n.Priority = PriorityNormal
	}
	if n.Status == "" {
		n.Status = domain.StatusPending
	}
}
