// Package document renders the bilingual voluntary-return petition.
//
// The HTML rendering always succeeds for a valid form and is the
// deliverable of last resort. PDF renderers are tried in order and the
// first one that produces a PDF wins.
package document

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tevasul/tevasul-backend/internal/observability"
	"github.com/tevasul/tevasul-backend/internal/wizard"
)

// MIME types of artifacts.
const (
	MIMEPDF  = "application/pdf"
	MIMEHTML = "text/html; charset=utf-8"
)

//go:embed petition.html.tmpl
var petitionTmpl string

var petition = template.Must(template.New("petition").Parse(petitionTmpl))

type petitionData struct {
	wizard.Form
	BorderUpper string
}

// RenderHTML fills the petition template with f.
func RenderHTML(f wizard.Form) ([]byte, error) {
	data := petitionData{
		Form:        f,
		BorderUpper: cases.Upper(language.Turkish).String(f.Border.NameTR),
	}
	var buf bytes.Buffer
	if err := petition.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render petition: %w", err)
	}
	return buf.Bytes(), nil
}

// Artifact is a rendered petition ready to be sent or served.
type Artifact struct {
	Name     string
	MIME     string
	Bytes    []byte
	Fallback bool // true when Bytes is the HTML rendering
}

// FileName returns the base name for the artifact of f with extension ext.
func FileName(f wizard.Form, ext string) string {
	return "voluntary_return_" + f.Kimlik + "." + ext
}

// HTMLArtifact renders f as the HTML fallback artifact.
func HTMLArtifact(f wizard.Form) (Artifact, error) {
	html, err := RenderHTML(f)
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{Name: FileName(f, "html"), MIME: MIMEHTML, Bytes: html, Fallback: true}, nil
}

// PDFRenderer turns a form, and its HTML rendering, into PDF bytes.
type PDFRenderer interface {
	Name() string
	RenderPDF(ctx context.Context, f wizard.Form, html []byte) ([]byte, error)
}

// ErrNoPDF is wrapped into the log entry when every renderer failed.
var ErrNoPDF = errors.New("document: no pdf renderer succeeded")

// Renderer tries each PDF renderer in order and falls back to HTML.
type Renderer struct {
	PDF []PDFRenderer
}

// Render returns a PDF artifact when any renderer succeeds and the HTML
// artifact otherwise. An error is returned only when the HTML itself
// cannot be produced.
func (r Renderer) Render(ctx context.Context, f wizard.Form) (Artifact, error) {
	ctx, span := observability.StartSpan(ctx, "document.render")
	defer span.End()

	html, err := RenderHTML(f)
	if err != nil {
		return Artifact{}, err
	}
	for _, p := range r.PDF {
		pdf, err := p.RenderPDF(ctx, f, html)
		if err != nil {
			log.Warn().Err(err).Str("component", "document").Str("renderer", p.Name()).Msg("pdf renderer failed")
			continue
		}
		observability.DocumentsRendered.WithLabelValues("pdf").Inc()
		return Artifact{Name: FileName(f, "pdf"), MIME: MIMEPDF, Bytes: pdf}, nil
	}
	if len(r.PDF) > 0 {
		log.Warn().Err(ErrNoPDF).Str("component", "document").Str("kimlik_suffix", suffix(f.Kimlik)).Msg("sending html petition")
	}
	observability.DocumentsRendered.WithLabelValues("html").Inc()
	return Artifact{Name: FileName(f, "html"), MIME: MIMEHTML, Bytes: html, Fallback: true}, nil
}

// suffix keeps the last four characters of an identifier for logs.
func suffix(s string) string {
	if len(s) <= 4 {
		return s
	}
	return s[len(s)-4:]
}

// isPDF reports whether b starts with the PDF magic.
func isPDF(b []byte) bool { return bytes.HasPrefix(b, []byte("%PDF")) }
