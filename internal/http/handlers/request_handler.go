package handlers

import (
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tevasul/tevasul-backend/internal/domain"
	"github.com/tevasul/tevasul-backend/internal/http/middleware"
	"github.com/tevasul/tevasul-backend/internal/services"
	"github.com/tevasul/tevasul-backend/internal/wizard"
)

// UpdateStatusRequest is the body of PUT /requests/:id/status.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateRequestStatus sets the status of the health insurance, service or
// voluntary-return request identified by :id. Health insurance requests
// also match on their session id.
func (h *Handlers) UpdateRequestStatus(c *gin.Context) {
	if h.d.Status == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeInternal, "status updates are not configured")
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "status required")
		return
	}
	id := c.Param("id")

	found, err := h.d.Status.UpdateStatus(c.Request.Context(), id, strings.TrimSpace(req.Status))
	switch {
	case errors.Is(err, services.ErrMissingID):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "request id required")
	case errors.Is(err, services.ErrInvalidStatus):
		fail(c, http.StatusBadRequest, ErrCodeValidation, "unknown status "+req.Status)
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to update status")
	case !found:
		fail(c, http.StatusNotFound, ErrCodeNotFound, "request not found")
	default:
		ok(c, http.StatusOK, gin.H{"success": true, "id": id, "status": req.Status})
	}
}

// refakatEntry is one companion as the website form sends it.
type refakatEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// VoluntaryReturnFormData is the website's petition form.
type VoluntaryReturnFormData struct {
	FullNameTR     string         `json:"fullNameTR"`
	FullNameAR     string         `json:"fullNameAR"`
	KimlikNo       string         `json:"kimlikNo"`
	GSM            string         `json:"gsm"`
	RefakatEntries []refakatEntry `json:"refakatEntries"`
	BorderPoint    string         `json:"borderPoint"`
	TravelDate     string         `json:"travelDate"`
}

// RenderPetitionRequest wraps the form the way the website posts it.
type RenderPetitionRequest struct {
	FormData *VoluntaryReturnFormData `json:"formData" binding:"required"`
}

func (f VoluntaryReturnFormData) input() wizard.FormInput {
	in := wizard.FormInput{
		FullName:   f.FullNameTR,
		FullNameAR: f.FullNameAR,
		Kimlik:     f.KimlikNo,
		GSM:        f.GSM,
		Border:     f.BorderPoint,
		TravelDate: f.TravelDate,
	}
	for _, e := range f.RefakatEntries {
		in.Companions = append(in.Companions, domain.Companion{Kimlik: e.ID, Name: e.Name})
	}
	return in
}

// RenderVoluntaryReturn validates the form and answers the petition as a
// download: application/pdf, or text/html when no PDF renderer succeeded.
// X-Document-Fallback is "true" on the HTML answer.
func (h *Handlers) RenderVoluntaryReturn(c *gin.Context) {
	if h.d.Renderer == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeRenderFailed, "document rendering is not configured")
		return
	}
	var req RenderPetitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "formData required")
		return
	}
	form, verr := h.d.Catalog.BuildForm(req.FormData.input(), h.today())
	if verr != nil {
		fail(c, http.StatusBadRequest, ErrCodeValidation, verr.Message)
		return
	}

	art, err := h.d.Renderer.Render(c.Request.Context(), form)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeRenderFailed, "failed to render petition")
		return
	}
	middleware.LoggerFrom(c).Info().
		Str("border", form.Border.Key).
		Int("companions", len(form.Companions)).
		Bool("fallback", art.Fallback).
		Msg("petition rendered")

	if art.Fallback {
		c.Header("X-Document-Fallback", "true")
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": art.Name}))
	c.Data(http.StatusOK, art.MIME, art.Bytes)
}
