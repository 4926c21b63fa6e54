package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tevasul/tevasul-backend/internal/http/middleware"
	"github.com/tevasul/tevasul-backend/internal/services"
)

// InvoiceRequest is an HTML invoice to convert and deliver.
type InvoiceRequest struct {
	InvoiceHTML   string `json:"invoice_html"`
	InvoiceNumber string `json:"invoice_number"`
	ChatID        string `json:"chat_id"`
}

// ReportResponse reports a pushed accounting report.
type ReportResponse struct {
	Success bool   `json:"success"`
	Report  string `json:"report"`
	Year    int    `json:"year,omitempty"`
	Month   int    `json:"month,omitempty"`
	services.BroadcastResult
}

// PostInvoice converts an invoice to PDF and sends it through the
// accounting bot.
func (h *Handlers) PostInvoice(c *gin.Context) {
	if h.d.Ledger == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeTelegramUnavailable, "accounting bot is not configured")
		return
	}
	var req InvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid invoice body")
		return
	}
	res, err := h.d.Ledger.SendInvoice(c.Request.Context(), services.Invoice{
		HTML:   req.InvoiceHTML,
		Number: req.InvoiceNumber,
		ChatID: strings.TrimSpace(req.ChatID),
	})
	switch {
	case errors.Is(err, services.ErrMissingInvoice):
		fail(c, http.StatusBadRequest, ErrCodeValidation, "invoice_html is required")
	case errors.Is(err, services.ErrNoRecipients):
		fail(c, http.StatusBadRequest, ErrCodeValidation, "no recipients: log in to the accounting bot or pass chat_id")
	case errors.Is(err, services.ErrPDFUnavailable):
		fail(c, http.StatusServiceUnavailable, ErrCodeRenderFailed, "pdf conversion is not configured")
	case err != nil:
		middleware.LoggerFrom(c).Error().Err(err).Str("invoice", req.InvoiceNumber).Msg("invoice delivery failed")
		fail(c, http.StatusInternalServerError, ErrCodeRenderFailed, "failed to send invoice")
	default:
		ok(c, http.StatusOK, BroadcastResponse{Success: true, BroadcastResult: res})
	}
}

// PostDailyReport pushes today's summary to the accounting recipients.
func (h *Handlers) PostDailyReport(c *gin.Context) {
	if h.d.Ledger == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeTelegramUnavailable, "accounting bot is not configured")
		return
	}
	res, err := h.d.Ledger.SendDailyReport(c.Request.Context())
	h.reportDone(c, ReportResponse{Report: "daily", BroadcastResult: res}, err)
}

// PostMonthlyReport pushes a detailed monthly report. The optional month
// and year query parameters default to the current month.
func (h *Handlers) PostMonthlyReport(c *gin.Context) {
	if h.d.Ledger == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeTelegramUnavailable, "accounting bot is not configured")
		return
	}
	month, okM := queryInt(c, "month", 1, 12)
	year, okY := queryInt(c, "year", 2000, 2100)
	if !okM || !okY {
		fail(c, http.StatusBadRequest, ErrCodeValidation, "month must be 1-12 and year 2000-2100")
		return
	}
	now := h.d.Now().In(h.d.Location)
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}
	res, err := h.d.Ledger.SendMonthlyReport(c.Request.Context(), year, time.Month(month))
	h.reportDone(c, ReportResponse{Report: "monthly", Year: year, Month: month, BroadcastResult: res}, err)
}

func (h *Handlers) reportDone(c *gin.Context, resp ReportResponse, err error) {
	switch {
	case errors.Is(err, services.ErrNoRecipients):
		fail(c, http.StatusBadRequest, ErrCodeValidation, "no recipients: log in to the accounting bot")
	case err != nil:
		middleware.LoggerFrom(c).Error().Err(err).Str("report", resp.Report).Msg("accounting report failed")
		fail(c, http.StatusInternalServerError, ErrCodeNotifyFailed, "failed to send report")
	default:
		resp.Success = true
		ok(c, http.StatusOK, resp)
	}
}

// queryInt reads an optional integer query parameter within [lo, hi]. An
// absent parameter gives 0.
func queryInt(c *gin.Context, key string, lo, hi int) (int, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < lo || v > hi {
		return 0, false
	}
	return v, true
}
