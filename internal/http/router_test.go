package httpapi

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tevasul/tevasul-backend/internal/config"
	"github.com/tevasul/tevasul-backend/internal/domain"
	"github.com/tevasul/tevasul-backend/internal/http/handlers"
	"github.com/tevasul/tevasul-backend/internal/http/middleware"
	"github.com/tevasul/tevasul-backend/internal/repo"
	"github.com/tevasul/tevasul-backend/internal/services"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:router_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

type nopDispatcher struct{ calls int }

func (d *nopDispatcher) Dispatch(context.Context, string, tgbotapi.Update) error {
	d.calls++
	return nil
}

type stubSupport struct{}

func (stubSupport) OpenSession(context.Context, string, string, string) (*domain.ChatSession, error) {
	return &domain.ChatSession{ID: "s1"}, nil
}

func (stubSupport) Post(context.Context, string, string, string) (*services.PostResult, error) {
	return &services.PostResult{User: &domain.ChatMessage{ID: "m1"}}, nil
}

func (stubSupport) ListMessages(context.Context, string, int, int) ([]domain.ChatMessage, int64, error) {
	return []domain.ChatMessage{{ID: "m1", Content: "hello there, this body is long enough to be worth compressing"}}, 1, nil
}

func (stubSupport) ETag(context.Context, string) (string, error) { return `W/"s1-1-0"`, nil }

func testConfig() config.Config {
	return config.Config{
		APIBasePath: "/api/v1",
		Telegram:    config.TelegramConfig{WebhookSecret: "main-secret"},
		Accounting:  config.AccountingConfig{WebhookSecret: "acct-secret"},
		AdminAPIKey: "admin-key",
		OTEL:        config.OTELConfig{ServiceName: "test-svc"},
	}
}

func newRouter(t *testing.T, cfg config.Config, deps handlers.Deps) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	db := newTestDB(t)
	RegisterRoutes(r, db, deps, cfg)
	return r, db
}

func serve(r http.Handler, method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_HealthMetricsFallbacks(t *testing.T) {
	r, _ := newRouter(t, testConfig(), handlers.Deps{})

	w := serve(r, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK || w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("GET /health = %d rid=%q", w.Code, w.Header().Get("X-Request-ID"))
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("security headers missing: %v", w.Header())
	}
	if w.Header().Get("Cache-Control") == "no-store" {
		t.Fatalf("no-store should be limited to the API group")
	}

	if w := serve(r, http.MethodGet, "/metrics", "", nil); w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("GET /metrics = %d len=%d", w.Code, w.Body.Len())
	}
	if w := serve(r, http.MethodGet, "/nope", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope = %d", w.Code)
	}
	if w := serve(r, http.MethodPost, "/health", "", nil); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health = %d", w.Code)
	}
}

func TestRegisterRoutes_WebhookSecrets(t *testing.T) {
	d := &nopDispatcher{}
	r, _ := newRouter(t, testConfig(), handlers.Deps{Dispatcher: d})

	tests := []struct {
		path, secret string
		want         int
	}{
		{"/telegram/webhook/main", "main-secret", http.StatusOK},
		{"/telegram/webhook/main", "acct-secret", http.StatusUnauthorized},
		{"/telegram/webhook/main", "", http.StatusUnauthorized},
		{"/telegram/webhook/accounting", "acct-secret", http.StatusOK},
	}
	for _, tc := range tests {
		hdr := map[string]string{}
		if tc.secret != "" {
			hdr[middleware.HeaderTelegramSecret] = tc.secret
		}
		if w := serve(r, http.MethodPost, tc.path, `{"update_id":1}`, hdr); w.Code != tc.want {
			t.Fatalf("%s with %q = %d; want %d", tc.path, tc.secret, w.Code, tc.want)
		}
	}
	if d.calls != 2 {
		t.Fatalf("dispatch calls = %d; want 2", d.calls)
	}
}

func TestRegisterRoutes_AdminKey(t *testing.T) {
	r, _ := newRouter(t, testConfig(), handlers.Deps{})

	// Auth runs before the handler, so a nil service answers 503 only once authorized.
	if w := serve(r, http.MethodGet, "/api/v1/moderators", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("no key = %d", w.Code)
	}
	w := serve(r, http.MethodGet, "/api/v1/moderators", "", map[string]string{middleware.HeaderAPIKey: "admin-key"})
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("with key = %d", w.Code)
	}
	for _, p := range []string{"/api/v1/accounting/reports/daily", "/api/v1/accounting/reports/monthly"} {
		if w := serve(r, http.MethodPost, p, "", nil); w.Code != http.StatusUnauthorized {
			t.Fatalf("POST %s without key = %d", p, w.Code)
		}
	}
	if w := serve(r, http.MethodPost, "/api/v1/accounting/invoices", `{"invoice_html":"x"}`, nil); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("POST invoices = %d; want the public route to reach the handler", w.Code)
	}

	cfg := testConfig()
	cfg.AdminAPIKey = ""
	r, _ = newRouter(t, cfg, handlers.Deps{})
	if w := serve(r, http.MethodPut, "/api/v1/requests/x/status", `{"status":"approved"}`, map[string]string{middleware.HeaderAPIKey: "anything"}); w.Code != http.StatusForbidden {
		t.Fatalf("disabled admin API = %d", w.Code)
	}
}

func TestRegisterRoutes_APIGroupGzipAndNoStore(t *testing.T) {
	r, _ := newRouter(t, testConfig(), handlers.Deps{Support: stubSupport{}})

	w := serve(r, http.MethodGet, "/api/v1/support/sessions/s1/messages", "", map[string]string{"Accept-Encoding": "gzip"})
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	if w.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("Cache-Control = %q", w.Header().Get("Cache-Control"))
	}
	if w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("Content-Encoding = %q", w.Header().Get("Content-Encoding"))
	}
	zr, err := gzip.NewReader(w.Body)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	body, _ := io.ReadAll(zr)
	if !bytes.Contains(body, []byte(`"total":1`)) {
		t.Fatalf("body = %s", body)
	}
}

func TestRegisterRoutes_ReplayBypassesRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateRPS, cfg.RateBurst = 0.001, 1
	r, db := newRouter(t, cfg, handlers.Deps{Support: stubSupport{}})

	if _, err := repo.CreateIdempotency(context.Background(), db, "s1", "retry-1", "m1", http.StatusCreated, time.Hour); err != nil {
		t.Fatalf("seed idempotency: %v", err)
	}

	const path = "/api/v1/support/sessions/s1/messages"
	visitor := map[string]string{handlers.HeaderVisitorID: "v-1"}
	if w := serve(r, http.MethodPost, path, `{"content":"hi"}`, visitor); w.Code != http.StatusCreated {
		t.Fatalf("first post = %d", w.Code)
	}
	if w := serve(r, http.MethodPost, path, `{"content":"hi"}`, visitor); w.Code != http.StatusTooManyRequests {
		t.Fatalf("second post = %d; want 429", w.Code)
	}

	replay := map[string]string{handlers.HeaderVisitorID: "v-1", middleware.HeaderIdempotencyKey: "retry-1"}
	if w := serve(r, http.MethodPost, path, `{"content":"hi"}`, replay); w.Code == http.StatusTooManyRequests {
		t.Fatalf("replay was rate limited")
	}

	bad := map[string]string{middleware.HeaderIdempotencyKey: "has spaces"}
	if w := serve(r, http.MethodPost, path, `{"content":"hi"}`, bad); w.Code != http.StatusBadRequest {
		t.Fatalf("malformed key = %d", w.Code)
	}
}

func Test_limitBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	for body, want := range map[string]int{"short": http.StatusOK, "0123456789AB": http.StatusRequestEntityTooLarge} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString(body)))
		if w.Code != want {
			t.Fatalf("body %q = %d; want %d", body, w.Code, want)
		}
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	groupWithPrefix(r, "/").GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	groupWithPrefix(r, "").GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK || w.Body.String() != want {
			t.Fatalf("GET %s = %d %q", path, w.Code, w.Body.String())
		}
	}
}
