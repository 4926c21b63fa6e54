package wizard

import (
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

//go:embed borders.yaml
var bordersYAML []byte

// Border is one crossing of the catalog.
type Border struct {
	Key    string `yaml:"key" json:"key"`
	NameTR string `yaml:"tr"  json:"name_tr"`
	NameAR string `yaml:"ar"  json:"name_ar"`
}

// Catalog is the fixed, ordered list of border crossings. It is read-only
// after construction and safe for concurrent use.
type Catalog struct {
	All   []Border
	byKey map[string]int
	folds map[string]int
}

// ParseCatalog reads a catalog from YAML of the form {borders: [{key,tr,ar}]}.
func ParseCatalog(data []byte) (*Catalog, error) {
	var doc struct {
		Borders []Border `yaml:"borders"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("wizard: parse catalog: %w", err)
	}
	if len(doc.Borders) == 0 {
		return nil, errors.New("wizard: catalog is empty")
	}
	c := &Catalog{
		All:   doc.Borders,
		byKey: make(map[string]int, len(doc.Borders)),
		folds: make(map[string]int, 3*len(doc.Borders)),
	}
	for i, b := range doc.Borders {
		if b.Key == "" || b.NameTR == "" || b.NameAR == "" {
			return nil, fmt.Errorf("wizard: catalog entry %d is incomplete", i+1)
		}
		if _, dup := c.byKey[b.Key]; dup {
			return nil, fmt.Errorf("wizard: duplicate border key %q", b.Key)
		}
		c.byKey[b.Key] = i
		for _, name := range []string{b.Key, b.NameTR, b.NameAR} {
			c.folds[foldName(name)] = i
		}
	}
	return c, nil
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// DefaultCatalog returns the embedded catalog.
func DefaultCatalog() *Catalog {
	defaultOnce.Do(func() {
		c, err := ParseCatalog(bordersYAML)
		if err != nil {
			panic(err)
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Lookup returns the border with key.
func (c *Catalog) Lookup(key string) (Border, bool) {
	i, ok := c.byKey[key]
	if !ok {
		return Border{}, false
	}
	return c.All[i], true
}

// Match resolves typed text to a border. It accepts the key, the Turkish
// or Arabic name in any casing and without diacritics, or the 1-based
// position in the menu.
func (c *Catalog) Match(text string) (Border, bool) {
	t := strings.TrimSpace(normalizeDigits(text))
	if n, err := strconv.Atoi(t); err == nil {
		if n >= 1 && n <= len(c.All) {
			return c.All[n-1], true
		}
		return Border{}, false
	}
	i, ok := c.folds[foldName(t)]
	if !ok {
		return Border{}, false
	}
	return c.All[i], true
}

// foldName lower-cases s with Turkish rules, strips combining marks and
// keeps only letters and digits, so "İSTANBUL  havalimanı" and
// "istanbul_havalimani" fold to the same key.
func foldName(s string) string {
	s = cases.Lower(language.Turkish).String(s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(t, s); err == nil {
		s = out
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == 'ı':
			b.WriteRune('i')
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		}
	}
	return b.String()
}
