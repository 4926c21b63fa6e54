package document

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tevasul/tevasul-backend/internal/wizard"
)

// maxPDFBytes bounds the converted document. Telegram rejects larger
// uploads from bots anyway.
var maxPDFBytes int64 = 20 << 20

// RemoteRenderer converts the HTML with an HTML-to-PDF web service that
// accepts {html, printBackground, format} and answers with the PDF.
type RemoteRenderer struct {
	URL    string
	APIKey string
	Client *http.Client
}

// NewRemoteRenderer returns a renderer for url with its own client timeout.
func NewRemoteRenderer(url, apiKey string, timeout time.Duration) *RemoteRenderer {
	return &RemoteRenderer{URL: url, APIKey: apiKey, Client: &http.Client{Timeout: timeout}}
}

func (r *RemoteRenderer) Name() string { return "remote" }

type remoteRequest struct {
	HTML            string `json:"html"`
	PrintBackground bool   `json:"printBackground"`
	Format          string `json:"format"`
	APIKey          string `json:"apiKey,omitempty"`
}

// RenderPDF posts the petition html to the service.
func (r *RemoteRenderer) RenderPDF(ctx context.Context, _ wizard.Form, html []byte) ([]byte, error) {
	return r.ConvertHTML(ctx, html)
}

// ConvertHTML converts any A4 HTML page, such as an invoice.
func (r *RemoteRenderer) ConvertHTML(ctx context.Context, html []byte) ([]byte, error) {
	if r.URL == "" {
		return nil, errors.New("document: remote renderer has no url")
	}
	body, err := json.Marshal(remoteRequest{HTML: string(html), PrintBackground: true, Format: "A4", APIKey: r.APIKey})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", MIMEPDF)

	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("document: remote render: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("document: remote render: status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	pdf, err := io.ReadAll(io.LimitReader(resp.Body, maxPDFBytes+1))
	if err != nil {
		return nil, fmt.Errorf("document: remote render: read body: %w", err)
	}
	if int64(len(pdf)) > maxPDFBytes {
		return nil, fmt.Errorf("document: remote render: pdf larger than %d bytes", maxPDFBytes)
	}
	if !isPDF(pdf) {
		return nil, errors.New("document: remote render: response is not a pdf")
	}
	return pdf, nil
}
