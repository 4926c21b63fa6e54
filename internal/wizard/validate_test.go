package wizard

import (
	"strings"
	"testing"
)

func TestValidateKimlik_DigitProjection(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"12345678901", "12345678901", true},
		{" 123 456 789 01 ", "12345678901", true},
		{"123-456-789-01", "12345678901", true},
		{"١٢٣٤٥٦٧٨٩٠١", "12345678901", true},
		{"۱۲۳۴۵۶۷۸۹۰۱", "12345678901", true},
		{"1234567890", "", false},
		{"123456789012", "", false},
		{"abcdefghijk", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, v := ValidateKimlik(StepAwaitingKimlik, tc.in)
		if (v == nil) != tc.ok || got != tc.want {
			t.Fatalf("ValidateKimlik(%q) = %q, %v; want %q ok=%v", tc.in, got, v, tc.want, tc.ok)
		}
		if v != nil && (v.Step != StepAwaitingKimlik || v.Code != CodeKimlikLength || v.Message == "") {
			t.Fatalf("unexpected validation error: %+v", v)
		}
	}
}

func TestValidateDate_Ranges(t *testing.T) {
	cases := []struct {
		in   string
		want string
		code string
	}{
		{"15.03.2026", "15.03.2026", ""},
		{"1.1.2025", "01.01.2025", ""},
		{"31.12.2030", "31.12.2030", ""},
		{"١٥.٠٣.٢٠٢٦", "15.03.2026", ""},
		{"00.03.2026", "", CodeDateRange},
		{"32.03.2026", "", CodeDateRange},
		{"15.13.2026", "", CodeDateRange},
		{"15.03.2024", "", CodeDateRange},
		{"15.03.2031", "", CodeDateRange},
		{"15/03/2026", "", CodeDateFormat},
		{"2026-03-15", "", CodeDateFormat},
		{"tomorrow", "", CodeDateFormat},
	}
	for _, tc := range cases {
		got, v := ValidateDate(StepAwaitingDateInput, tc.in)
		code := ""
		if v != nil {
			code = v.Code
		}
		if got != tc.want || code != tc.code {
			t.Fatalf("ValidateDate(%q) = %q, %q; want %q, %q", tc.in, got, code, tc.want, tc.code)
		}
	}
}

func TestValidateNames(t *testing.T) {
	if got, v := ValidateName("  Ahmed   Yılmaz "); v != nil || got != "Ahmed Yılmaz" {
		t.Fatalf("ValidateName = %q, %v", got, v)
	}
	if _, v := ValidateName("Al"); v == nil || v.Code != CodeNameLength {
		t.Fatalf("short name must be rejected, got %v", v)
	}
	if _, v := ValidateName(strings.Repeat("a", 101)); v == nil {
		t.Fatalf("long name must be rejected")
	}
	if got, v := ValidateNameAR("أحمد يلماز"); v != nil || got != "أحمد يلماز" {
		t.Fatalf("ValidateNameAR = %q, %v", got, v)
	}
	if _, v := ValidateNameAR("Ahmed"); v == nil || v.Code != CodeNameArabic {
		t.Fatalf("latin-only arabic name must be rejected, got %v", v)
	}
	if _, v := ValidateCompanionName("A"); v == nil {
		t.Fatalf("one-letter companion name must be rejected")
	}
	if got, v := ValidateCompanionName("Li"); v != nil || got != "Li" {
		t.Fatalf("two-letter companion name = %q, %v", got, v)
	}
}

func TestValidateGSMAndCount(t *testing.T) {
	if got, v := ValidateGSM("+90 555 123 45 67"); v != nil || got != "905551234567" {
		t.Fatalf("ValidateGSM = %q, %v", got, v)
	}
	if _, v := ValidateGSM("555123"); v == nil {
		t.Fatalf("short phone must be rejected")
	}
	if _, v := ValidateGSM("1234567890123456"); v == nil {
		t.Fatalf("16-digit phone must be rejected")
	}
	for in, want := range map[string]int{"0": 0, " 20 ": 20, "٣": 3} {
		if n, v := ValidateCompanionCount(in); v != nil || n != want {
			t.Fatalf("ValidateCompanionCount(%q) = %d, %v", in, n, v)
		}
	}
	for _, in := range []string{"21", "-1", "two", "1.5", ""} {
		if _, v := ValidateCompanionCount(in); v == nil {
			t.Fatalf("ValidateCompanionCount(%q) should fail", in)
		}
	}
}
