// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, database selection, the two Telegram bots, document rendering,
// wizard sessions, rate limiting and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve on hosts without a zoneinfo database
)

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "tevasul-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// DBConfig selects and locates the database.
type DBConfig struct {
	Driver      string // sqlite|postgres
	Path        string // SQLite file
	URL         string // Postgres DSN (Supabase)
	AutoMigrate bool
}

// TelegramConfig holds the customer bot and webhook settings.
type TelegramConfig struct {
	BotToken      string
	AdminChatID   string // fallback when telegram_config has no row for "main"
	WebhookSecret string // X-Telegram-Bot-Api-Secret-Token
	WebhookURL    string // public base URL, used by botctl
	APIEndpoint   string // format string with two %s (token, method); empty = api.telegram.org
	Mode          string // webhook|polling
	RPS           float64
}

// AccountingConfig holds the accounting bot settings.
type AccountingConfig struct {
	BotToken        string
	WebhookSecret   string
	SessionTTL      time.Duration
	SupabaseURL     string
	SupabaseAnonKey string
	// ReportTime is the local HH:MM at which the daily report is pushed;
	// the monthly report for the month before follows on the 1st. Empty
	// turns both off.
	ReportTime string
}

// ReportAt returns ReportTime as an offset from local midnight. ok is
// false when scheduled reports are off.
func (a AccountingConfig) ReportAt() (at time.Duration, ok bool) {
	if a.ReportTime == "" {
		return 0, false
	}
	t, err := time.Parse("15:04", a.ReportTime)
	if err != nil {
		return 0, false
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, true
}

// DocumentConfig configures petition rendering.
type DocumentConfig struct {
	PDFAPIURL string // empty disables the remote renderer
	PDFAPIKey string
	FontPath  string // UTF-8 TTF for the local renderer
	Timeout   time.Duration
	Timezone  string
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test
	APIBasePath       string        // base path for API routes

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	DB         DBConfig
	Telegram   TelegramConfig
	Accounting AccountingConfig
	Document   DocumentConfig

	// Wizard
	SessionTTL time.Duration

	// Support chat
	FAQPath      string
	FAQThreshold float64 // retrieval confidence threshold [0,1]

	// Admin API; empty disables the admin routes
	AdminAPIKey string

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	Security SecurityConfig

	// Idempotency and webhook dedup
	IdempotencyTTL time.Duration
	UpdateDedupTTL time.Duration

	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),
		APIBasePath:       normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		DB: DBConfig{
			Driver:      strings.ToLower(getenv("DB_DRIVER", "sqlite")),
			Path:        getenv("DB_PATH", "tevasul.db"),
			URL:         getenv("DATABASE_URL", ""),
			AutoMigrate: getbool("DB_AUTO_MIGRATE", true),
		},

		Telegram: TelegramConfig{
			BotToken:      getenv("TELEGRAM_BOT_TOKEN", ""),
			AdminChatID:   getenv("TELEGRAM_ADMIN_CHAT_ID", ""),
			WebhookSecret: getenv("TELEGRAM_WEBHOOK_SECRET", ""),
			WebhookURL:    strings.TrimRight(getenv("TELEGRAM_WEBHOOK_URL", ""), "/"),
			APIEndpoint:   getenv("TELEGRAM_API_ENDPOINT", ""),
			Mode:          strings.ToLower(getenv("TELEGRAM_MODE", "webhook")),
			RPS:           getfloat("TELEGRAM_RPS", 25),
		},

		Accounting: AccountingConfig{
			BotToken:        getenv("ACCOUNTING_BOT_TOKEN", ""),
			WebhookSecret:   getenv("ACCOUNTING_WEBHOOK_SECRET", ""),
			SessionTTL:      getdur("ACCOUNTING_SESSION_TTL", 30*24*time.Hour),
			SupabaseURL:     strings.TrimRight(getenv("SUPABASE_URL", ""), "/"),
			SupabaseAnonKey: getenv("SUPABASE_ANON_KEY", ""),
			ReportTime:      lookup("ACCOUNTING_REPORT_TIME", "21:00"),
		},

		Document: DocumentConfig{
			PDFAPIURL: lookup("PDF_API_URL", "https://api.html2pdf.app/v1/generate"),
			PDFAPIKey: getenv("PDF_API_KEY", ""),
			FontPath:  getenv("PDF_FONT_PATH", ""),
			Timeout:   getdur("PDF_TIMEOUT", 20*time.Second),
			Timezone:  getenv("TIMEZONE", "Europe/Istanbul"),
		},

		SessionTTL: getdur("SESSION_TTL", 24*time.Hour),

		FAQPath:      getenv("FAQ_PATH", "data/faq.md"),
		FAQThreshold: getfloat("FAQ_THRESHOLD", 0.3),

		AdminAPIKey: getenv("ADMIN_API_KEY", ""),

		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),
		UpdateDedupTTL: getdur("UPDATE_DEDUP_TTL", 48*time.Hour),

		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "tevasul-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.DB.Driver == "postgresql" || cfg.DB.Driver == "supabase" {
		cfg.DB.Driver = "postgres"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.DB.Driver {
	case "sqlite":
		if strings.TrimSpace(cfg.DB.Path) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(cfg.DB.URL) == "" {
			return cfg, errors.New("DATABASE_URL must be set when DB_DRIVER is postgres")
		}
	default:
		return cfg, errors.New("DB_DRIVER must be sqlite or postgres")
	}
	switch cfg.Telegram.Mode {
	case "webhook", "polling":
	default:
		return cfg, errors.New("TELEGRAM_MODE must be webhook or polling")
	}
	if cfg.Telegram.RPS <= 0 {
		return cfg, errors.New("TELEGRAM_RPS must be > 0")
	}
	if cfg.Telegram.APIEndpoint != "" && strings.Count(cfg.Telegram.APIEndpoint, "%s") != 2 {
		return cfg, errors.New("TELEGRAM_API_ENDPOINT must contain two %s verbs (token, method)")
	}
	if cfg.Accounting.SessionTTL <= 0 {
		return cfg, errors.New("ACCOUNTING_SESSION_TTL must be > 0")
	}
	if _, ok := cfg.Accounting.ReportAt(); cfg.Accounting.ReportTime != "" && !ok {
		return cfg, errors.New("ACCOUNTING_REPORT_TIME must be HH:MM or empty")
	}
	if cfg.Document.Timeout <= 0 {
		return cfg, errors.New("PDF_TIMEOUT must be > 0")
	}
	if _, err := time.LoadLocation(cfg.Document.Timezone); err != nil {
		return cfg, errors.New("TIMEZONE must be a valid IANA zone")
	}
	if cfg.SessionTTL <= 0 {
		return cfg, errors.New("SESSION_TTL must be > 0")
	}
	if cfg.FAQThreshold < 0 || cfg.FAQThreshold > 1 {
		return cfg, errors.New("FAQ_THRESHOLD must be between 0 and 1")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.UpdateDedupTTL <= 0 {
		return cfg, errors.New("UPDATE_DEDUP_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// Location returns the configured time zone for "today" in the wizard.
// Load has already validated the name, so the UTC fallback only covers
// hand-built configs in tests.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Document.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ---- helpers ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

// lookup is like getenv but lets an explicitly empty value through, so
// PDF_API_URL="" can switch a feature off.
func lookup(k, def string) string {
	if v, ok := os.LookupEnv(k); ok {
		return strings.TrimSpace(v)
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
