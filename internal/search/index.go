// Package search answers support questions from a Markdown FAQ.
//
// The index is built once and is read-only afterwards, so one value can be
// shared by every request. Text in Arabic, Turkish and English is folded by
// Normalize before tokenizing. Scoring is the Jaccard similarity between
// the query token set and an entry's token set: |Q ∩ E| / |Q ∪ E|.
package search

import (
	"bytes"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Result is a ranked answer with its similarity score.
type Result struct {
	Question string
	Snippet  string
	Score    float64
}

// Index is implemented by every search index.
type Index interface {
	TopK(query string, k int) []Result
	Len() int
}

type Option func(*config)

type config struct {
	minAnswerRunes int
	stopwords      map[string]struct{}
	maxDocs        int
}

func defaultConfig() config {
	return config{minAnswerRunes: 10}
}

// WithMinAnswerRunes drops entries whose answer is shorter than n runes.
func WithMinAnswerRunes(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.minAnswerRunes = n
		}
	}
}

// WithStopwords ignores the given words in entries and queries. Words are
// normalized the same way as the text they are matched against.
func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = Normalize(strings.TrimSpace(w))
			if w != "" {
				m[w] = struct{}{}
			}
		}
		if len(m) > 0 {
			c.stopwords = m
		}
	}
}

func WithMaxDocs(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxDocs = n
		}
	}
}

// DefaultStopwords are frequent function words of the three site languages.
var DefaultStopwords = []string{
	"the", "a", "an", "is", "are", "to", "of", "and", "or", "in", "on", "for", "how", "what", "do", "i", "my", "can",
	"bir", "ve", "ile", "bu", "da", "de", "mi", "mı", "ne", "nasıl",
	"في", "من", "على", "الى", "إلى", "عن", "ما", "هل", "كيف", "أن", "او", "أو", "مع", "هذا", "هذه",
}

type doc struct {
	entry  Entry
	tokens map[string]struct{}
}

type index struct {
	cfg  config
	docs []doc
}

// NewIndexFromMarkdown builds an Index from the FAQ file at path.
func NewIndexFromMarkdown(path string, opts ...Option) (Index, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return &index{cfg: defaultConfig()}, err
	}
	return NewIndexFromReader(bytes.NewReader(b), opts...)
}

// NewIndexFromReader parses Markdown from r with ParseFAQ and indexes it.
func NewIndexFromReader(r io.Reader, opts ...Option) (Index, error) {
	cfg := newConfig(opts)
	entries, err := ParseFAQ(r)
	if err != nil {
		return &index{cfg: cfg}, err
	}
	return buildIndex(entries, cfg), nil
}

// NewIndexFromEntries indexes entries directly.
func NewIndexFromEntries(entries []Entry, opts ...Option) Index {
	return buildIndex(entries, newConfig(opts))
}

func newConfig(opts []Option) config {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

func buildIndex(entries []Entry, cfg config) *index {
	docs := make([]doc, 0, len(entries))
	for _, e := range entries {
		e.Question = strings.TrimSpace(normalizeWhitespace(e.Question))
		e.Answer = strings.TrimSpace(e.Answer)
		if e.Answer == "" {
			continue
		}
		if cfg.minAnswerRunes > 0 && utf8.RuneCountInString(e.Answer) < cfg.minAnswerRunes {
			continue
		}
		toks := tokenize(e.Question+"\n"+e.Answer, cfg.stopwords)
		if len(toks) == 0 {
			continue
		}
		docs = append(docs, doc{entry: e, tokens: toks})
		if cfg.maxDocs > 0 && len(docs) >= cfg.maxDocs {
			break
		}
	}
	return &index{cfg: cfg, docs: docs}
}

func (i *index) Len() int { return len(i.docs) }

// TopK returns up to k best-matching entries. k <= 0 means 3.
func (i *index) TopK(q string, k int) []Result {
	if len(i.docs) == 0 || strings.TrimSpace(q) == "" {
		return nil
	}
	if k <= 0 {
		k = 3
	}
	qTokens := tokenize(q, i.cfg.stopwords)
	if len(qTokens) == 0 {
		return nil
	}

	type scored struct {
		Result
		lenRunes int
	}
	buf := make([]scored, 0, min(k*4, len(i.docs)))
	for _, d := range i.docs {
		over := overlap(qTokens, d.tokens)
		if over == 0 {
			continue
		}
		union := len(qTokens) + len(d.tokens) - over
		if union <= 0 {
			continue
		}
		buf = append(buf, scored{
			Result:   Result{Question: d.entry.Question, Snippet: d.entry.Answer, Score: float64(over) / float64(union)},
			lenRunes: utf8.RuneCountInString(d.entry.Answer),
		})
	}
	if len(buf) == 0 {
		return nil
	}

	sort.SliceStable(buf, func(a, b int) bool {
		if buf[a].Score != buf[b].Score {
			return buf[a].Score > buf[b].Score
		}
		if buf[a].lenRunes != buf[b].lenRunes {
			return buf[a].lenRunes < buf[b].lenRunes
		}
		return buf[a].Snippet < buf[b].Snippet
	})

	k = min(k, len(buf))
	out := make([]Result, k)
	for j := range out {
		out[j] = buf[j].Result
	}
	return out
}

// Best returns the top result when its score reaches threshold.
func Best(idx Index, query string, threshold float64) (Result, bool) {
	if idx == nil {
		return Result{}, false
	}
	res := idx.TopK(query, 1)
	if len(res) == 0 || res[0].Score < threshold {
		return Result{}, false
	}
	return res[0], true
}

var wordRE = regexp.MustCompile(`[\p{L}\p{N}]+`)

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	words := wordRE.FindAllString(Normalize(s), -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if _, skip := stop[w]; skip {
			continue
		}
		out[w] = struct{}{}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func overlap(a, b map[string]struct{}) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

func normalizeWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\r' {
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
			continue
		}
		prevSpace = false
		b.WriteRune(r)
	}
	return b.String()
}
