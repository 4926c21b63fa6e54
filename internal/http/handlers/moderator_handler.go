package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tevasul/tevasul-backend/internal/domain"
	"github.com/tevasul/tevasul-backend/internal/services"
)

// PromoteRequest names the profile to promote.
type PromoteRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ModeratorsResponse lists the moderator projection.
type ModeratorsResponse struct {
	Moderators []domain.Moderator `json:"moderators"`
}

func moderatorFail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "no profile with that email")
	case errors.Is(err, services.ErrCannotDemoteAdmin):
		fail(c, http.StatusConflict, ErrCodeConflict, "admins cannot be demoted")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "moderator update failed")
	}
}

// PromoteModerator handles POST /admin/moderators.
func (h *Handlers) PromoteModerator(c *gin.Context) {
	if h.d.Moderators == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeInternal, "moderators are not configured")
		return
	}
	var req PromoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "valid email required")
		return
	}
	p, err := h.d.Moderators.Promote(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		moderatorFail(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// DemoteModerator handles DELETE /admin/moderators/:email.
func (h *Handlers) DemoteModerator(c *gin.Context) {
	if h.d.Moderators == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeInternal, "moderators are not configured")
		return
	}
	email := strings.ToLower(strings.TrimSpace(c.Param("email")))
	if email == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "email required")
		return
	}
	if _, err := h.d.Moderators.Demote(c.Request.Context(), email); err != nil {
		moderatorFail(c, err)
		return
	}
	noContent(c)
}

// SyncModerators handles POST /admin/moderators/sync.
func (h *Handlers) SyncModerators(c *gin.Context) {
	if h.d.Moderators == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeInternal, "moderators are not configured")
		return
	}
	res, err := h.d.Moderators.Sync(c.Request.Context())
	if err != nil {
		moderatorFail(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// ListModerators handles GET /admin/moderators.
func (h *Handlers) ListModerators(c *gin.Context) {
	if h.d.Moderators == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeInternal, "moderators are not configured")
		return
	}
	items, err := h.d.Moderators.List(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "failed to list moderators")
		return
	}
	if items == nil {
		items = []domain.Moderator{}
	}
	ok(c, http.StatusOK, ModeratorsResponse{Moderators: items})
}
