package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// PasswordVerifier checks an email/password pair.
type PasswordVerifier interface {
	Verify(ctx context.Context, email, password string) error
}

// GoTrueVerifier verifies passwords against a Supabase GoTrue instance with
// the password grant. It keeps nothing from the response but its outcome.
type GoTrueVerifier struct {
	BaseURL string
	AnonKey string
	Client  *http.Client
}

// NewGoTrueVerifier returns nil when baseURL or anonKey is empty, which
// disables password checks.
func NewGoTrueVerifier(baseURL, anonKey string) *GoTrueVerifier {
	if baseURL == "" || anonKey == "" {
		return nil
	}
	return &GoTrueVerifier{
		BaseURL: strings.TrimRight(baseURL, "/"),
		AnonKey: anonKey,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// Verify returns ErrInvalidCredentials when GoTrue refuses the pair.
func (v *GoTrueVerifier) Verify(ctx context.Context, email, password string) error {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.BaseURL+"/auth/v1/token?grant_type=password", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", v.AnonKey)

	hc := v.Client
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("gotrue: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		_, _ = io.Copy(io.Discard, resp.Body)
		if resp.StatusCode >= 500 {
			return fmt.Errorf("gotrue: status %d", resp.StatusCode)
		}
		return ErrInvalidCredentials
	}
	var tok tokenResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&tok); err != nil || tok.AccessToken == "" {
		return ErrInvalidCredentials
	}
	return nil
}
