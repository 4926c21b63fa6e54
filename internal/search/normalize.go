package search

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const tatweel = 'ـ'

// arabicLetters unifies spelling variants that users type interchangeably.
var arabicLetters = strings.NewReplacer(
	"أ", "ا", "إ", "ا", "آ", "ا", "ٱ", "ا",
	"ى", "ي", "ئ", "ي",
	"ؤ", "و",
	"ة", "ه",
)

// Normalize folds s into the form used for matching. Case is folded,
// combining marks (Arabic harakat, Latin accents) are dropped, tatweel is
// removed and Arabic letter variants are unified. Arabic-Indic digits
// become ASCII and the Turkish dotless i matches i.
func Normalize(s string) string {
	// A Caser keeps state between calls, so each call gets its own.
	folded := cases.Fold().String(s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, folded)
	if err != nil {
		stripped = folded
	}
	stripped = arabicLetters.Replace(stripped)

	var b strings.Builder
	b.Grow(len(stripped))
	for _, r := range stripped {
		switch {
		case r == tatweel:
			continue
		case r == 'ı':
			b.WriteRune('i')
		case r >= '٠' && r <= '٩':
			b.WriteRune('0' + (r - '٠'))
		case r >= '۰' && r <= '۹':
			b.WriteRune('0' + (r - '۰'))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
