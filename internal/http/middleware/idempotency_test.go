package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

type lookupCall struct{ scope, key string }

func idemRouter(t *testing.T, opts IdempotencyOptions, lookup IdempotencyLookup) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(IdempotencyValidator(opts, lookup))
	h := func(c *gin.Context) {
		key, _ := GetIdempotencyKey(c)
		c.JSON(http.StatusOK, gin.H{"key": key, "replay": IsReplay(c), "bypass": IsRateBypass(c)})
	}
	r.POST("/support/sessions/:id/messages", h)
	r.GET("/support/sessions/:id/messages", h)
	return r
}

func TestIdempotencyValidator(t *testing.T) {
	var calls []lookupCall
	lookup := func(_ context.Context, scope, key string, _ time.Time) (bool, error) {
		calls = append(calls, lookupCall{scope, key})
		switch key {
		case "seen":
			return true, nil
		case "broken":
			return true, errors.New("db down")
		}
		return false, nil
	}

	tests := []struct {
		name       string
		method     string
		key        string
		wantStatus int
		wantBody   string
		wantLookup bool
	}{
		{"no header", http.MethodPost, "", http.StatusOK, `"replay":false`, false},
		{"fresh key", http.MethodPost, "k-1", http.StatusOK, `"key":"k-1"`, true},
		{"stored key replays", http.MethodPost, "seen", http.StatusOK, `"replay":true`, true},
		{"lookup error is not a replay", http.MethodPost, "broken", http.StatusOK, `"bypass":false`, true},
		{"bad characters", http.MethodPost, "a b", http.StatusBadRequest, "bad_idempotency_key", false},
		{"too long", http.MethodPost, strings.Repeat("k", 201), http.StatusBadRequest, "bad_idempotency_key", false},
		{"safe method ignored", http.MethodGet, "seen", http.StatusOK, `"key":""`, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			calls = nil
			r := idemRouter(t, IdempotencyOptions{}, lookup)
			req := httptest.NewRequest(tc.method, "/support/sessions/s-1/messages", nil)
			if tc.key != "" {
				req.Header.Set(HeaderIdempotencyKey, tc.key)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tc.wantStatus || !strings.Contains(w.Body.String(), tc.wantBody) {
				t.Fatalf("got %d %s; want %d containing %s", w.Code, w.Body.String(), tc.wantStatus, tc.wantBody)
			}
			if tc.wantLookup != (len(calls) == 1) {
				t.Fatalf("lookup calls = %v", calls)
			}
			if tc.wantLookup && calls[0] != (lookupCall{"s-1", tc.key}) {
				t.Fatalf("lookup = %+v", calls[0])
			}
		})
	}
}

func TestIdempotencyValidator_CustomPattern(t *testing.T) {
	r := idemRouter(t, IdempotencyOptions{MaxLen: 8, Pattern: regexp.MustCompile(`^[0-9]+$`)}, nil)
	for key, want := range map[string]int{"123": http.StatusOK, "abc": http.StatusBadRequest, "123456789": http.StatusBadRequest} {
		req := httptest.NewRequest(http.MethodPost, "/support/sessions/s/messages", nil)
		req.Header.Set(HeaderIdempotencyKey, key)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != want {
			t.Errorf("key %q -> %d; want %d", key, w.Code, want)
		}
	}
}
