package wizard

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/tevasul/tevasul-backend/internal/domain"
)

var testNow = time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)

// drive feeds inputs one by one and fails on any error or rejection.
func drive(t *testing.T, st State, inputs ...Input) (State, []string) {
	t.Helper()
	ctx := context.Background()
	var events []string
	for i, in := range inputs {
		next, out, err := Advance(ctx, st, in, testNow, DefaultCatalog())
		if err != nil {
			t.Fatalf("input %d (%+v) at %s: %v", i, in, st.Step(), err)
		}
		if out.Invalid != nil {
			t.Fatalf("input %d (%+v) at %s rejected: %s", i, in, st.Step(), out.Invalid.Code)
		}
		events = append(events, out.Event)
		st = next
	}
	return st, events
}

func TestAdvance_HappyPathToday(t *testing.T) {
	st, events := drive(t, Start(),
		TextInput("Ahmed Yılmaz"),
		TextInput("أحمد يلماز"),
		TextInput("12345678901"),
		TextInput("05551234567"),
		TextInput("0"),
		TextInput("Cilvegözü"),
		ButtonInput(ActionDate, ValueToday),
	)
	done, ok := st.(Completed)
	if !ok {
		t.Fatalf("final state = %T; want Completed", st)
	}
	want := Form{
		FullName:   "Ahmed Yılmaz",
		FullNameAR: "أحمد يلماز",
		Kimlik:     "12345678901",
		GSM:        "05551234567",
		Companions: []domain.Companion{},
		Border:     Border{Key: "cilvegozu", NameTR: "Cilvegözü", NameAR: "باب الهوى"},
		TravelDate: "15.03.2026",
	}
	if diff := cmp.Diff(want, done.Form); diff != "" {
		t.Fatalf("form mismatch (-want +got):\n%s", diff)
	}
	wantEvents := []string{EventName, EventNameAR, EventKimlik, EventGSM, EventCompanionsNone, EventBorder, EventDateToday}
	if diff := cmp.Diff(wantEvents, events); diff != "" {
		t.Fatalf("events (-want +got):\n%s", diff)
	}
}

func TestAdvance_CustomDateByButtonThenText(t *testing.T) {
	st, _ := drive(t, Start(),
		TextInput("Sara Ali"), TextInput("سارة علي"), TextInput("98765432109"),
		TextInput("905551112233"), TextInput("0"), ButtonInput(ActionBorder, "akcakale"),
		ButtonInput(ActionDate, ValueCustom),
	)
	if st.Step() != StepAwaitingDateInput {
		t.Fatalf("step = %s; want awaiting_date_input", st.Step())
	}
	next, out, err := Advance(context.Background(), st, TextInput("1.4.2026"), testNow, DefaultCatalog())
	if err != nil || out.Event != EventDateEntered || out.Form == nil || out.Form.TravelDate != "01.04.2026" {
		t.Fatalf("date input = %+v, %v", out, err)
	}
	if next.Step() != StepCompleted {
		t.Fatalf("next = %s", next.Step())
	}
}

func TestAdvance_CompanionLoopCollectsExactlyN(t *testing.T) {
	for _, n := range []int{0, 1, 3, MaxCompanions} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			st, _ := drive(t, Start(),
				TextInput("Ahmed Yılmaz"), TextInput("أحمد يلماز"),
				TextInput("12345678901"), TextInput("05551234567"),
				TextInput(fmt.Sprint(n)),
			)
			for i := 0; i < n; i++ {
				if st.Step() != StepAwaitingCompanionKimlik {
					t.Fatalf("companion %d: step = %s", i, st.Step())
				}
				st, _ = drive(t, st, TextInput(fmt.Sprintf("%011d", i+1)), TextInput(fmt.Sprintf("Companion %d", i+1)))
			}
			b, ok := st.(AwaitingBorder)
			if !ok {
				t.Fatalf("after %d companions state = %T; want AwaitingBorder", n, st)
			}
			if len(b.Companions) != n {
				t.Fatalf("collected %d companions; want %d", len(b.Companions), n)
			}
			if n > 0 && b.Companions[n-1].Kimlik != fmt.Sprintf("%011d", n) {
				t.Fatalf("last companion = %+v", b.Companions[n-1])
			}
		})
	}
}

func TestAdvance_InvalidInputKeepsState(t *testing.T) {
	ctx := context.Background()
	st := AwaitingKimlik{Identity{FullName: "Ahmed Yılmaz", FullNameAR: "أحمد يلماز"}}
	for _, in := range []string{"123", "123456789012", "kimlik", ""} {
		next, out, err := Advance(ctx, st, TextInput(in), testNow, DefaultCatalog())
		if err != nil {
			t.Fatalf("Advance(%q): %v", in, err)
		}
		if out.Invalid == nil || out.Event != "" {
			t.Fatalf("Advance(%q) outcome = %+v; want rejection", in, out)
		}
		if diff := cmp.Diff(State(st), next); diff != "" {
			t.Fatalf("state changed on invalid input (-want +got):\n%s", diff)
		}
	}

	border := AwaitingBorder{}
	_, out, _ := Advance(ctx, border, ButtonInput(ActionBorder, "kapikule"), testNow, DefaultCatalog())
	if out.Invalid == nil || out.Invalid.Code != CodeBorderUnknown {
		t.Fatalf("unknown border button = %+v", out)
	}
}

func TestAdvance_CancelFromEveryOpenStep(t *testing.T) {
	ctx := context.Background()
	states := []State{
		AwaitingName{}, AwaitingNameAR{}, AwaitingKimlik{}, AwaitingGSM{}, AwaitingCompanions{},
		AwaitingCompanionKimlik{Total: 1}, AwaitingCompanionName{Total: 1}, AwaitingBorder{},
		AwaitingDateChoice{}, AwaitingDateInput{},
	}
	inputs := []Input{TextInput("/cancel"), TextInput(" إلغاء "), TextInput("IPTAL"), ButtonInput(ActionWizard, ValueCancel)}
	for _, st := range states {
		for _, in := range inputs {
			next, out, err := Advance(ctx, st, in, testNow, DefaultCatalog())
			if err != nil || out.Event != EventCancel {
				t.Fatalf("cancel %+v at %s = %+v, %v", in, st.Step(), out, err)
			}
			if c, ok := next.(Cancelled); !ok || c.From != st.Step() {
				t.Fatalf("cancel at %s -> %#v", st.Step(), next)
			}
		}
	}
}

func TestAdvance_FinishedStates(t *testing.T) {
	for _, st := range []State{Completed{}, Cancelled{}} {
		if _, _, err := Advance(context.Background(), st, TextInput("hi"), testNow, DefaultCatalog()); !errors.Is(err, ErrFinished) {
			t.Fatalf("Advance at %s = %v; want ErrFinished", st.Step(), err)
		}
	}
}

func TestFire_RejectsEventsOutsideTable(t *testing.T) {
	ctx := context.Background()
	if err := fire(ctx, StepAwaitingName, EventGSM, StepAwaitingCompanions); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("gsm from awaiting_name = %v; want ErrIllegalTransition", err)
	}
	if err := fire(ctx, StepCompleted, EventCancel, StepCancelled); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("cancel from completed = %v; want ErrIllegalTransition", err)
	}
	if err := fire(ctx, StepAwaitingName, EventName, StepAwaitingKimlik); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("wrong destination = %v; want ErrIllegalTransition", err)
	}
	if err := fire(ctx, StepAwaitingDateInput, EventDateToday, StepCompleted); err != nil {
		t.Fatalf("today from date input: %v", err)
	}
}

func TestAdvance_StoredBorderMissing(t *testing.T) {
	st := AwaitingDateChoice{Route{Border: "gone"}}
	if _, _, err := Advance(context.Background(), st, ButtonInput(ActionDate, ValueToday), testNow, DefaultCatalog()); !errors.Is(err, ErrUnknownBorder) {
		t.Fatalf("err = %v; want ErrUnknownBorder", err)
	}
}

func TestPromptFor_BorderMenuAndCompanionCounter(t *testing.T) {
	cat := DefaultCatalog()
	p := PromptFor(AwaitingBorder{}, cat)
	if len(p.Choices) != len(cat.All) || p.Choices[0].Action != ActionBorder || p.Choices[0].Value != "yayladagi" {
		t.Fatalf("border prompt = %+v", p)
	}
	c := PromptFor(AwaitingCompanionName{Total: 3, Collected: make([]domain.Companion, 1)}, cat)
	if c.Text != "المرافق 2 من 3: أرسل الاسم الكامل." {
		t.Fatalf("companion prompt = %q", c.Text)
	}
	r := Reprompt(AwaitingKimlik{}, invalid(StepAwaitingKimlik, CodeKimlikLength), cat)
	if r.Text == PromptFor(AwaitingKimlik{}, cat).Text {
		t.Fatalf("reprompt must carry the diagnostic")
	}
}
