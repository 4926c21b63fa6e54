package handlers

import (
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tevasul/tevasul-backend/internal/domain"
	"github.com/tevasul/tevasul-backend/internal/http/middleware"
	"github.com/tevasul/tevasul-backend/internal/services"
	"github.com/tevasul/tevasul-backend/internal/utils"
)

// HeaderVisitorID identifies an anonymous website visitor.
const HeaderVisitorID = "X-Visitor-ID"

// OpenSessionRequest starts a support session. VisitorID falls back to the
// X-Visitor-ID header. A non-empty Message is posted right away.
type OpenSessionRequest struct {
	VisitorID string `json:"visitor_id"`
	Language  string `json:"language"`
	Message   string `json:"message"`
}

// OpenSessionResponse is the new session and, when a first message was
// sent, its answer.
type OpenSessionResponse struct {
	Session   *domain.ChatSession `json:"session"`
	User      *domain.ChatMessage `json:"user_message,omitempty"`
	Reply     *domain.ChatMessage `json:"reply,omitempty"`
	Escalated bool                `json:"escalated"`
}

// PostSupportMessageRequest is one visitor message.
type PostSupportMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// PostSupportMessageResponse carries the stored message and its answer. On
// a replay only the message stored the first time is set.
type PostSupportMessageResponse struct {
	User      *domain.ChatMessage `json:"user_message,omitempty"`
	Reply     *domain.ChatMessage `json:"reply,omitempty"`
	Escalated bool                `json:"escalated"`
}

// Pagination describes a page of a list.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListSupportMessagesResponse is a page of session messages.
type ListSupportMessagesResponse struct {
	Messages   []domain.ChatMessage `json:"messages"`
	Pagination Pagination           `json:"pagination"`
}

var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeContent turns CRLF and CR into LF, collapses runs of three or
// more newlines to two and trims.
func sanitizeContent(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// supportFail maps support service errors to responses.
func supportFail(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "session not found")
	case errors.Is(err, services.ErrSessionClosed):
		fail(c, http.StatusConflict, ErrCodeSessionClosed, "session is closed")
	case errors.Is(err, services.ErrEmptyMessage):
		fail(c, http.StatusBadRequest, ErrCodeValidation, "content required")
	case errors.Is(err, services.ErrTooLong):
		fail(c, http.StatusBadRequest, ErrCodeValidation, "content too long")
	case errors.Is(err, services.ErrInvalidLanguage):
		fail(c, http.StatusBadRequest, ErrCodeValidation, "language must be ar, en or tr")
	case errors.Is(err, services.ErrMissingVisitor):
		fail(c, http.StatusBadRequest, ErrCodeValidation, "visitor_id required")
	default:
		fail(c, http.StatusInternalServerError, fallback, "support chat failed")
	}
}

// OpenSupportSession handles POST /support/sessions.
func (h *Handlers) OpenSupportSession(c *gin.Context) {
	if h.d.Support == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeInternal, "support chat is not configured")
		return
	}
	var req OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid session body")
		return
	}
	if strings.TrimSpace(req.VisitorID) == "" {
		req.VisitorID = c.GetHeader(HeaderVisitorID)
	}
	first := sanitizeContent(req.Message)

	ctx := c.Request.Context()
	sess, err := h.d.Support.OpenSession(ctx, req.VisitorID, req.Language, first)
	if err != nil {
		supportFail(c, err, ErrCodeInternal)
		return
	}
	resp := OpenSessionResponse{Session: sess}
	if first != "" {
		res, err := h.d.Support.Post(ctx, sess.ID, first, "")
		if err != nil {
			supportFail(c, err, ErrCodeAnswerFailed)
			return
		}
		resp.User, resp.Reply, resp.Escalated = res.User, res.Reply, res.Escalated
	}
	ok(c, http.StatusCreated, resp)
}

// PostSupportMessage handles POST /support/sessions/:id/messages. With an
// Idempotency-Key a retry answers 200 with the first result and
// Idempotency-Replayed: true.
func (h *Handlers) PostSupportMessage(c *gin.Context) {
	if h.d.Support == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeInternal, "support chat is not configured")
		return
	}
	var req PostSupportMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}
	content := sanitizeContent(req.Content)
	key, _ := middleware.GetIdempotencyKey(c)

	res, err := h.d.Support.Post(c.Request.Context(), c.Param("id"), content, key)
	if err != nil {
		supportFail(c, err, ErrCodeAnswerFailed)
		return
	}
	body := PostSupportMessageResponse{User: res.User, Reply: res.Reply, Escalated: res.Escalated}
	if res.Replayed {
		c.Header("Idempotency-Replayed", "true")
		ok(c, http.StatusOK, body)
		return
	}
	ok(c, http.StatusCreated, body)
}

// ListSupportMessages handles GET /support/sessions/:id/messages. It honors
// If-None-Match against the session's weak ETag.
func (h *Handlers) ListSupportMessages(c *gin.Context) {
	if h.d.Support == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeInternal, "support chat is not configured")
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")

	if etag, err := h.d.Support.ETag(ctx, id); err == nil && etag != "" {
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	page, pageSize := utils.ClampPage(c.Query("page"), c.Query("page_size"))
	items, total, err := h.d.Support.ListMessages(ctx, id, page, pageSize)
	if err != nil {
		supportFail(c, err, ErrCodeListFailed)
		return
	}
	pages := utils.TotalPages(total, pageSize)
	ok(c, http.StatusOK, ListSupportMessagesResponse{
		Messages: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: pages,
			HasNext:    page < pages,
		},
	})
}
