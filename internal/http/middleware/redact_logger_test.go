package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func withCapturedLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf)
	return &buf
}

func lastLogLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var m map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &m); err != nil {
		t.Fatalf("decode log line %q: %v", lines[len(lines)-1], err)
	}
	return m
}

func TestRedact(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", ""},
		{"id=123e4567-e89b-12d3-a456-426614174000", "id=[REDACTED:id]"},
		{"to ali@example.com", "to [REDACTED:email]"},
		{"gsm +90 555 123 45 67", "gsm [REDACTED:phone]"},
		{"gsm=905551234567", "gsm=[REDACTED:phone]"},
		{"kimlik=12345678901", "kimlik=[REDACTED:kimlik]"},
		{"page=2&page_size=20", "page=2&page_size=20"},
	}
	for _, tc := range tests {
		if got := Redact(tc.in); got != tc.want {
			t.Errorf("Redact(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

func TestRedactingLogger_ScrubsAndMasks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := withCapturedLogger(t)

	r := gin.New()
	r.Use(RequestID(), RedactingLogger(RedactOptions{MaskHeaders: []string{"X-Visitor-ID"}}))
	r.GET("/support/sessions/:id/messages", func(c *gin.Context) {
		LoggerFrom(c).Info().Msg("inside")
		c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/support/sessions/abc/messages?email=ali@example.com", nil)
	req.Header.Set("X-Request-ID", "rid-1")
	req.Header.Set("X-API-Key", "secret")
	req.Header.Set("X-Visitor-ID", "v-1")
	req.Header.Set(HeaderTelegramSecret, "tg")
	req.Header.Set("X-Note", "call 05551234567")
	r.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	for _, leak := range []string{"secret", "ali@example.com", "05551234567", "v-1", `"tg"`} {
		if strings.Contains(out, leak) {
			t.Fatalf("log leaks %q:\n%s", leak, out)
		}
	}
	if !strings.Contains(out, `"message":"inside"`) || strings.Count(out, `"request_id":"rid-1"`) != 2 {
		t.Fatalf("request-scoped logger not attached:\n%s", out)
	}

	line := lastLogLine(t, buf)
	if line["path"] != "/support/sessions/:id/messages" || line["level"] != "info" || line["status"] != float64(200) {
		t.Fatalf("access line = %v", line)
	}
}

func TestRedactingLogger_LevelByStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		status int
		want   string
	}{
		{http.StatusOK, "info"},
		{http.StatusNotFound, "warn"},
		{http.StatusBadGateway, "error"},
	}
	for _, tc := range tests {
		buf := withCapturedLogger(t)
		r := gin.New()
		r.Use(RedactingLogger(RedactOptions{}))
		r.GET("/x", func(c *gin.Context) { c.Status(tc.status) })
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
		if got := lastLogLine(t, buf)["level"]; got != tc.want {
			t.Errorf("status %d logged at %v; want %s", tc.status, got, tc.want)
		}
	}
}

func TestRedactingLogger_UnmatchedPathIsRedacted(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := withCapturedLogger(t)
	r := gin.New()
	r.Use(RedactingLogger(RedactOptions{}))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/u/ali@example.com", nil))
	if got := lastLogLine(t, buf)["path"]; got != "/u/[REDACTED:email]" {
		t.Fatalf("path = %v", got)
	}
}
