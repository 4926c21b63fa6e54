package wizard

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ValidationError describes rejected input. The step does not change and
// Message is shown to the user together with the step's prompt.
type ValidationError struct {
	Step    Step
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("wizard: %s: %s", e.Step, e.Code)
}

func invalid(step Step, code string) *ValidationError {
	return &ValidationError{Step: step, Code: code, Message: validationMessages[code]}
}

// Validation codes.
const (
	CodeNameLength          = "name_length"
	CodeNameArabic          = "name_arabic"
	CodeKimlikLength        = "kimlik_length"
	CodeGSMLength           = "gsm_length"
	CodeCompanionsRange     = "companions_range"
	CodeCompanionNameLength = "companion_name_length"
	CodeBorderUnknown       = "border_unknown"
	CodeDateFormat          = "date_format"
	CodeDateRange           = "date_range"
	CodeChoiceRequired      = "choice_required"
)

const (
	nameMinRunes          = 3
	nameMaxRunes          = 100
	companionNameMinRunes = 2
	kimlikDigits          = 11
	gsmMinDigits          = 10
	gsmMaxDigits          = 15
	minTravelYear         = 2025
	maxTravelYear         = 2030
)

// foldSpace trims s and collapses inner whitespace runs to one space.
func foldSpace(s string) string { return strings.Join(strings.Fields(s), " ") }

// normalizeDigits maps Arabic-Indic and Extended Arabic-Indic digits to
// ASCII and leaves every other rune alone.
func normalizeDigits(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '٠' && r <= '٩':
			return '0' + (r - '٠')
		case r >= '۰' && r <= '۹':
			return '0' + (r - '۰')
		}
		return r
	}, s)
}

// Digits returns the digit-only projection of s in ASCII.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range normalizeDigits(s) {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func runeLenBetween(s string, lo, hi int) bool {
	n := utf8.RuneCountInString(s)
	return n >= lo && n <= hi
}

// ValidateName checks the Latin-script full name.
func ValidateName(text string) (string, *ValidationError) {
	name := foldSpace(text)
	if !runeLenBetween(name, nameMinRunes, nameMaxRunes) {
		return "", invalid(StepAwaitingName, CodeNameLength)
	}
	return name, nil
}

// ValidateNameAR checks the Arabic full name. It must contain at least one
// Arabic letter.
func ValidateNameAR(text string) (string, *ValidationError) {
	name := foldSpace(text)
	if !runeLenBetween(name, nameMinRunes, nameMaxRunes) {
		return "", invalid(StepAwaitingNameAR, CodeNameLength)
	}
	for _, r := range name {
		if unicode.Is(unicode.Arabic, r) && unicode.IsLetter(r) {
			return name, nil
		}
	}
	return "", invalid(StepAwaitingNameAR, CodeNameArabic)
}

// ValidateKimlik accepts text whose digit projection has exactly 11 digits
// and returns that projection.
func ValidateKimlik(step Step, text string) (string, *ValidationError) {
	d := Digits(text)
	if len(d) != kimlikDigits {
		return "", invalid(step, CodeKimlikLength)
	}
	return d, nil
}

// ValidateGSM accepts 10 to 15 digits.
func ValidateGSM(text string) (string, *ValidationError) {
	d := Digits(text)
	if len(d) < gsmMinDigits || len(d) > gsmMaxDigits {
		return "", invalid(StepAwaitingGSM, CodeGSMLength)
	}
	return d, nil
}

// ValidateCompanionCount accepts an integer in [0, MaxCompanions].
func ValidateCompanionCount(text string) (int, *ValidationError) {
	n, err := strconv.Atoi(strings.TrimSpace(normalizeDigits(text)))
	if err != nil || n < 0 || n > MaxCompanions {
		return 0, invalid(StepAwaitingCompanions, CodeCompanionsRange)
	}
	return n, nil
}

// ValidateCompanionName checks a companion's full name.
func ValidateCompanionName(text string) (string, *ValidationError) {
	name := foldSpace(text)
	if !runeLenBetween(name, companionNameMinRunes, nameMaxRunes) {
		return "", invalid(StepAwaitingCompanionName, CodeCompanionNameLength)
	}
	return name, nil
}

var dateRe = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{4})$`)

// ValidateDate accepts DD.MM.YYYY with day in [1,31], month in [1,12] and
// year in [2025,2030]. The result is zero padded.
func ValidateDate(step Step, text string) (string, *ValidationError) {
	m := dateRe.FindStringSubmatch(strings.TrimSpace(normalizeDigits(text)))
	if m == nil {
		return "", invalid(step, CodeDateFormat)
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	if day < 1 || day > 31 || month < 1 || month > 12 || year < minTravelYear || year > maxTravelYear {
		return "", invalid(step, CodeDateRange)
	}
	return fmt.Sprintf("%02d.%02d.%04d", day, month, year), nil
}
