package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tevasul/tevasul-backend/internal/http/middleware"
	"github.com/tevasul/tevasul-backend/internal/services"
)

// NotifyResponse answers a delivered admin notification.
type NotifyResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	MessageID    int    `json:"message_id"`
	DocumentSent bool   `json:"document_sent"`
	Recipients   int    `json:"recipients"`
	Delivered    int    `json:"delivered"`
	Failed       int    `json:"failed"`
}

// PostNotification relays a website request to the admin and linked chats. The body is
// services.Notification as the website sends it.
func (h *Handlers) PostNotification(c *gin.Context) {
	if h.d.Notifier == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeTelegramUnavailable, "notifications are not configured")
		return
	}
	var n services.Notification
	if err := c.ShouldBindJSON(&n); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid notification body")
		return
	}
	// Documents only come from the wizard.
	n.Document = nil

	res, err := h.d.Notifier.Notify(c.Request.Context(), n)
	switch {
	case errors.Is(err, services.ErrEmptyMessage):
		fail(c, http.StatusBadRequest, ErrCodeValidation, "message is required")
	case errors.Is(err, services.ErrTelegramDisabled):
		fail(c, http.StatusServiceUnavailable, ErrCodeTelegramUnavailable, "telegram is not configured")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeNotifyFailed, "failed to send notification")
	default:
		ok(c, http.StatusOK, NotifyResponse{
			Success:      true,
			Message:      res.Message,
			MessageID:    res.MessageID,
			DocumentSent: res.DocumentSent,
			Recipients:   res.Recipients,
			Delivered:    res.Delivered,
			Failed:       res.Failed,
		})
	}
}

// AccountingNotificationRequest is the accounting broadcast body. The
// transaction fields only go to the log; Message is sent as is.
type AccountingNotificationRequest struct {
	ChatID          string `json:"chat_id"`
	Message         string `json:"message"`
	TransactionID   string `json:"transaction_id"`
	TransactionType string `json:"transaction_type"`
	ReportType      string `json:"report_type"`
}

// BroadcastResponse reports an accounting broadcast.
type BroadcastResponse struct {
	Success bool `json:"success"`
	services.BroadcastResult
}

// PostAccountingNotification broadcasts through the accounting bot.
func (h *Handlers) PostAccountingNotification(c *gin.Context) {
	if h.d.Accounting == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeTelegramUnavailable, "accounting bot is not configured")
		return
	}
	var req AccountingNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid notification body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		fail(c, http.StatusBadRequest, ErrCodeValidation, "message is required")
		return
	}

	middleware.LoggerFrom(c).Info().
		Str("transaction_id", req.TransactionID).
		Str("transaction_type", req.TransactionType).
		Str("report_type", req.ReportType).
		Msg("accounting notification")

	res, err := h.d.Accounting.Broadcast(c.Request.Context(), req.Message, strings.TrimSpace(req.ChatID))
	switch {
	case errors.Is(err, services.ErrEmptyMessage):
		fail(c, http.StatusBadRequest, ErrCodeValidation, "message is required")
	case errors.Is(err, services.ErrNoRecipients):
		fail(c, http.StatusBadRequest, ErrCodeValidation, "no recipients: log in to the accounting bot or pass chat_id")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeNotifyFailed, "failed to send notification")
	default:
		ok(c, http.StatusOK, BroadcastResponse{Success: true, BroadcastResult: res})
	}
}
