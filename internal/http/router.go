// Package httpapi wires the Gin transport to the handlers and middleware.
//
// Middleware order:
//  1. otelgin traces every request
//  2. RequestID correlates the request with its logs
//  3. RedactingLogger writes the access log with PII scrubbed
//  4. Recovery turns panics into a JSON 500 carrying the request id
//  5. body size limit
//  6. Prometheus metrics, served on /metrics
//  7. security headers
//
// The JSON API group adds gzip, the idempotency validator and the rate
// limiter, in that order, so that replays skip the limiter.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tevasul/tevasul-backend/internal/config"
	"github.com/tevasul/tevasul-backend/internal/domain"
	"github.com/tevasul/tevasul-backend/internal/http/handlers"
	"github.com/tevasul/tevasul-backend/internal/http/middleware"
	"github.com/tevasul/tevasul-backend/internal/repo"
)

// maxBodyBytes fits a base64 attachment of a few megabytes.
const maxBodyBytes = 12 << 20

// RegisterRoutes attaches the middleware and every endpoint to r. db backs
// the idempotency lookup; deps are the services behind the handlers.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, deps handlers.Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS: cfg.Security.EnableHSTS,
		HSTSMaxAge: cfg.Security.HSTSMaxAge,
	}))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	h := handlers.New(deps)

	// Telegram webhooks sit outside the API group: no gzip, no rate limit.
	tg := r.Group("/telegram/webhook")
	{
		tg.POST("/main", middleware.TelegramSecret(cfg.Telegram.WebhookSecret), h.TelegramWebhook(domain.BotMain))
		tg.POST("/accounting", middleware.TelegramSecret(cfg.Accounting.WebhookSecret), h.TelegramWebhook(domain.BotAccounting))
	}

	apiBase := cfg.APIBasePath
	api := groupWithPrefix(r, apiBase)
	api.Use(
		gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{strings.TrimSuffix(apiBase, "/") + "/documents"})),
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, idempotencyLookup(db)),
		middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByHeaderOrIP(handlers.HeaderVisitorID)).Handler(),
		middleware.SecurityHeaders(middleware.SecurityOptions{NoStore: true}),
	)
	{
		api.POST("/notifications", h.PostNotification)
		api.POST("/accounting/notifications", h.PostAccountingNotification)
		api.POST("/accounting/invoices", h.PostInvoice)
		api.POST("/documents/voluntary-return", h.RenderVoluntaryReturn)

		api.POST("/support/sessions", h.OpenSupportSession)
		api.GET("/support/sessions/:id/messages", h.ListSupportMessages)
		api.POST("/support/sessions/:id/messages", h.PostSupportMessage)
	}

	admin := api.Group("", middleware.APIKey(cfg.AdminAPIKey))
	{
		admin.PUT("/requests/:id/status", h.UpdateRequestStatus)

		admin.POST("/accounting/reports/daily", h.PostDailyReport)
		admin.POST("/accounting/reports/monthly", h.PostMonthlyReport)

		admin.GET("/moderators", h.ListModerators)
		admin.POST("/moderators", h.PromoteModerator)
		admin.POST("/moderators/sync", h.SyncModerators)
		admin.DELETE("/moderators/:email", h.DemoteModerator)
	}
}

// idempotencyLookup reports whether a live idempotency record exists for
// (session, key). A nil db disables replay detection.
func idempotencyLookup(db *gorm.DB) middleware.IdempotencyLookup {
	return func(ctx context.Context, scope, key string, now time.Time) (bool, error) {
		if db == nil {
			return false, nil
		}
		rec, err := repo.GetIdempotency(ctx, db, scope, key, now)
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return rec != nil, nil
	}
}

// limitBody caps request bodies at maxBytes. Reads past the cap fail, which
// the handlers report as a bad request.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
