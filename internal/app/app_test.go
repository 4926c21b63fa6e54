package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tevasul/tevasul-backend/internal/config"
	"github.com/tevasul/tevasul-backend/internal/domain"
	"github.com/tevasul/tevasul-backend/internal/repo"
	"github.com/tevasul/tevasul-backend/internal/search"
	"github.com/tevasul/tevasul-backend/internal/services"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:app_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := Migrate(config.Config{DB: config.DBConfig{Driver: "sqlite"}}, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func testConfig() config.Config {
	return config.Config{
		GinMode:        "test",
		APIBasePath:    "/api/v1",
		FAQThreshold:   0.3,
		SessionTTL:     time.Hour,
		IdempotencyTTL: time.Hour,
		UpdateDedupTTL: time.Hour,
		Document:       config.DocumentConfig{Timezone: "Europe/Istanbul", Timeout: time.Second},
		OTEL:           config.OTELConfig{ServiceName: "app-test"},
	}
}

func TestNew_WithoutBots(t *testing.T) {
	db := newTestDB(t)
	a := New(testConfig(), db, Bots{}, search.NewIndexFromEntries(nil))
	if a.Wizard != nil {
		t.Fatalf("wizard wired without a main bot")
	}

	serve := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		a.Engine.ServeHTTP(w, req)
		return w
	}

	if w := serve(http.MethodGet, "/health", ""); w.Code != http.StatusOK {
		t.Fatalf("health = %d", w.Code)
	}
	// Notifications need the main bot.
	if w := serve(http.MethodPost, "/api/v1/notifications", `{"message":"hi"}`); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("notify = %d %s", w.Code, w.Body.String())
	}
	// The accounting endpoint has no service at all.
	if w := serve(http.MethodPost, "/api/v1/accounting/notifications", `{"message":"hi"}`); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("accounting = %d", w.Code)
	}

	// Updates for unconfigured bots are claimed and ignored.
	if err := a.Dispatcher.Dispatch(context.Background(), domain.BotMain, tgbotapi.Update{UpdateID: 5}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if err := a.pollHandler(domain.BotMain)(context.Background(), tgbotapi.Update{UpdateID: 5}); err != nil {
		t.Fatalf("duplicate from poller should be swallowed, got %v", err)
	}

	// With an empty index every question escalates to staff.
	w := serve(http.MethodPost, "/api/v1/support/sessions", `{"visitor_id":"v1","language":"en","message":"opening hours?"}`)
	if w.Code != http.StatusCreated || !strings.Contains(w.Body.String(), `"escalated":true`) {
		t.Fatalf("open session = %d %s", w.Code, w.Body.String())
	}
}

func TestSweep(t *testing.T) {
	db := newTestDB(t)
	a := New(testConfig(), db, Bots{}, search.NewIndexFromEntries(nil))
	ctx := context.Background()

	stale, err := repo.StartSession(ctx, db, 42, "awaiting_name", []byte(`{}`), -time.Minute)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	if _, err := repo.StartSession(ctx, db, 43, "awaiting_name", []byte(`{}`), time.Hour); err != nil {
		t.Fatalf("start session: %v", err)
	}
	if _, err := repo.CreateIdempotency(ctx, db, "s1", "old", "m1", http.StatusCreated, -time.Minute); err != nil {
		t.Fatalf("idempotency: %v", err)
	}
	if _, err := repo.CreateIdempotency(ctx, db, "s1", "live", "m2", http.StatusCreated, time.Hour); err != nil {
		t.Fatalf("idempotency: %v", err)
	}

	if err := a.Sweep(ctx); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	var got domain.ConversationSession
	if err := db.First(&got, "id = ?", stale.ID).Error; err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.SessionExpired {
		t.Fatalf("stale session status = %q", got.Status)
	}
	var active, idem int64
	db.Model(&domain.ConversationSession{}).Where("status = ?", domain.SessionActive).Count(&active)
	db.Model(&domain.Idempotency{}).Count(&idem)
	if active != 1 || idem != 1 {
		t.Fatalf("active sessions = %d, idempotency rows = %d; want 1, 1", active, idem)
	}
}

func TestRunSweeper_StopsWithContext(t *testing.T) {
	a := New(testConfig(), newTestDB(t), Bots{}, search.NewIndexFromEntries(nil))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.RunSweeper(ctx, 5*time.Millisecond)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

// botAPI answers getMe and sendMessage like the Bot API and records the
// chat of every message.
type botAPI struct {
	mu    sync.Mutex
	chats []string
	texts []string
}

func (b *botAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Acct","username":"acct_bot"}}`))
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		b.mu.Lock()
		b.chats = append(b.chats, r.Form.Get("chat_id"))
		b.texts = append(b.texts, r.Form.Get("text"))
		b.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":     true,
			"result": map[string]any{"message_id": 1, "date": 0, "chat": map[string]any{"id": 1, "type": "private"}},
		})
	default:
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	}
}

func TestPushReports(t *testing.T) {
	api := &botAPI{}
	srv := httptest.NewServer(api)
	defer srv.Close()

	cfg := testConfig()
	cfg.Telegram.APIEndpoint = srv.URL + "/bot%s/%s"
	cfg.Accounting.BotToken = "1:acct"
	cfg.Accounting.ReportTime = "21:00"
	cfg.Document.PDFAPIURL = "http://pdf.local"
	bots, err := ConnectBots(cfg)
	if err != nil {
		t.Fatalf("ConnectBots: %v", err)
	}
	db := newTestDB(t)
	a := New(cfg, db, bots, search.NewIndexFromEntries(nil))
	if a.Accounting == nil || a.Accounting.PDF == nil {
		t.Fatalf("accounting service or invoice converter not wired")
	}
	ctx := context.Background()
	if err := repo.UpsertTelegramConfig(ctx, db, &domain.TelegramConfig{Purpose: domain.BotAccounting, AdminChatID: "-100", IsEnabled: true}); err != nil {
		t.Fatalf("seed config: %v", err)
	}

	at, _ := cfg.Accounting.ReportAt()
	sched := &services.ReportSchedule{At: at, Location: cfg.Location(), Enabled: true}
	first := time.Date(2025, 7, 1, 21, 30, 0, 0, cfg.Location())
	a.pushReports(ctx, sched, first)
	a.pushReports(ctx, sched, first.Add(time.Minute))

	api.mu.Lock()
	defer api.mu.Unlock()
	if strings.Join(api.chats, ",") != "-100,-100" {
		t.Fatalf("messages went to %v; want the daily and the monthly report once each", api.chats)
	}
	if !strings.Contains(api.texts[0], "ملخص اليوم") || !strings.Contains(api.texts[1], "يونيو 2025") {
		t.Fatalf("reports = %q", api.texts)
	}
}

func TestRunReports_Disabled(t *testing.T) {
	a := New(testConfig(), newTestDB(t), Bots{}, search.NewIndexFromEntries(nil))
	done := make(chan struct{})
	go func() {
		a.RunReports(context.Background(), time.Millisecond)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunReports kept running without an accounting bot")
	}
}

func TestNewRenderer(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.DocumentConfig
		want []string
	}{
		{"html only", config.DocumentConfig{}, nil},
		{"remote", config.DocumentConfig{PDFAPIURL: "http://pdf.local"}, []string{"remote"}},
		{"both", config.DocumentConfig{PDFAPIURL: "http://pdf.local", FontPath: "/fonts/x.ttf"}, []string{"remote", "local"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRenderer(tc.cfg)
			var got []string
			for _, p := range r.PDF {
				got = append(got, p.Name())
			}
			if strings.Join(got, ",") != strings.Join(tc.want, ",") {
				t.Fatalf("renderers = %v; want %v", got, tc.want)
			}
		})
	}
}

func TestLoadIndex(t *testing.T) {
	if idx := LoadIndex(filepath.Join(t.TempDir(), "missing.md")); idx == nil || idx.Len() != 0 {
		t.Fatalf("missing file should give an empty index")
	}

	path := filepath.Join(t.TempDir(), "faq.md")
	var b bytes.Buffer
	b.WriteString("## What are your opening hours?\nWe are open 9 to 5.\n")
	if err := os.WriteFile(path, b.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}
	if idx := LoadIndex(path); idx.Len() == 0 {
		t.Fatalf("faq entries not loaded")
	}
}

var _ services.PetitionRenderer = NewRenderer(config.DocumentConfig{})
