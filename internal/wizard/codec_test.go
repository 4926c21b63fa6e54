package wizard

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tevasul/tevasul-backend/internal/domain"
)

func TestEncodeDecode_CompanionName(t *testing.T) {
	st := AwaitingCompanionName{
		Contact: Contact{
			Applicant: Applicant{Identity: Identity{FullName: "Ahmed Yılmaz", FullNameAR: "أحمد يلماز"}, Kimlik: "12345678901"},
			GSM:       "05551234567",
		},
		Total:         2,
		Collected:     []domain.Companion{{Kimlik: "11111111111", Name: "Ali"}},
		PendingKimlik: "22222222222",
	}
	raw, err := Encode(st)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(string(st.Step()), raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if diff := cmp.Diff(State(st), got); diff != "" {
		t.Fatalf("round trip (-want +got):\n%s", diff)
	}
}

func TestDecode_FlatJSONLayout(t *testing.T) {
	// Embedded structs flatten, so rows written by hand stay readable.
	raw := []byte(`{"full_name":"A B C","full_name_ar":"أ ب","kimlik":"12345678901"}`)
	st, err := Decode("awaiting_gsm", raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	g, ok := st.(AwaitingGSM)
	if !ok || g.Kimlik != "12345678901" || g.FullNameAR != "أ ب" {
		t.Fatalf("decoded %#v", st)
	}
}

func TestDecode_EmptyAndErrors(t *testing.T) {
	st, err := Decode("awaiting_name", nil)
	if err != nil || st != (AwaitingName{}) {
		t.Fatalf("empty decode = %#v, %v", st, err)
	}
	if _, err := Decode("awaiting_lunch", []byte(`{}`)); !errors.Is(err, ErrUnknownStep) {
		t.Fatalf("unknown step err = %v", err)
	}
	if _, err := Decode("awaiting_kimlik", []byte(`{"full_name":`)); err == nil {
		t.Fatalf("expected error for broken JSON")
	}
	if _, err := Encode(nil); err == nil {
		t.Fatalf("expected error for nil state")
	}
}
