package wizard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/looplab/fsm"

	"github.com/tevasul/tevasul-backend/internal/domain"
)

var (
	// ErrFinished is returned when input reaches a completed or cancelled state.
	ErrFinished = errors.New("wizard: dialogue already finished")
	// ErrIllegalTransition means a handler produced an event the transition
	// table does not allow from the current step.
	ErrIllegalTransition = errors.New("wizard: illegal transition")
	// ErrUnknownBorder means a stored border key is missing from the catalog.
	ErrUnknownBorder = errors.New("wizard: unknown border")
)

// Events fired by Advance.
const (
	EventName            = "name"
	EventNameAR          = "name_ar"
	EventKimlik          = "kimlik"
	EventGSM             = "gsm"
	EventCompanionsNone  = "companions_none"
	EventCompanionsSome  = "companions_some"
	EventCompanionKimlik = "companion_kimlik"
	EventCompanionNext   = "companion_next"
	EventCompanionsDone  = "companions_done"
	EventBorder          = "border"
	EventDateToday       = "date_today"
	EventDateCustom      = "date_custom"
	EventDateEntered     = "date_entered"
	EventCancel          = "cancel"
)

// Button actions understood by Advance. Callback data is "<action>:<value>".
const (
	ActionWizard = "wizard"
	ActionBorder = "border"
	ActionDate   = "date"

	ValueCancel          = "cancel"
	ValueVoluntaryReturn = "voluntary_return"
	ValueToday           = "today"
	ValueCustom          = "custom"
)

func src(steps ...Step) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = string(s)
	}
	return out
}

var openSteps = []Step{
	StepAwaitingName, StepAwaitingNameAR, StepAwaitingKimlik, StepAwaitingGSM,
	StepAwaitingCompanions, StepAwaitingCompanionKimlik, StepAwaitingCompanionName,
	StepAwaitingBorder, StepAwaitingDateChoice, StepAwaitingDateInput,
}

// transitions is the complete transition table of the dialogue.
var transitions = fsm.Events{
	{Name: EventName, Src: src(StepAwaitingName), Dst: string(StepAwaitingNameAR)},
	{Name: EventNameAR, Src: src(StepAwaitingNameAR), Dst: string(StepAwaitingKimlik)},
	{Name: EventKimlik, Src: src(StepAwaitingKimlik), Dst: string(StepAwaitingGSM)},
	{Name: EventGSM, Src: src(StepAwaitingGSM), Dst: string(StepAwaitingCompanions)},
	{Name: EventCompanionsNone, Src: src(StepAwaitingCompanions), Dst: string(StepAwaitingBorder)},
	{Name: EventCompanionsSome, Src: src(StepAwaitingCompanions), Dst: string(StepAwaitingCompanionKimlik)},
	{Name: EventCompanionKimlik, Src: src(StepAwaitingCompanionKimlik), Dst: string(StepAwaitingCompanionName)},
	{Name: EventCompanionNext, Src: src(StepAwaitingCompanionName), Dst: string(StepAwaitingCompanionKimlik)},
	{Name: EventCompanionsDone, Src: src(StepAwaitingCompanionName), Dst: string(StepAwaitingBorder)},
	{Name: EventBorder, Src: src(StepAwaitingBorder), Dst: string(StepAwaitingDateChoice)},
	{Name: EventDateCustom, Src: src(StepAwaitingDateChoice), Dst: string(StepAwaitingDateInput)},
	{Name: EventDateToday, Src: src(StepAwaitingDateChoice, StepAwaitingDateInput), Dst: string(StepCompleted)},
	{Name: EventDateEntered, Src: src(StepAwaitingDateChoice, StepAwaitingDateInput), Dst: string(StepCompleted)},
	{Name: EventCancel, Src: src(openSteps...), Dst: string(StepCancelled)},
}

func newMachine(from Step) *fsm.FSM {
	return fsm.NewFSM(string(from), transitions, fsm.Callbacks{})
}

// fire runs event from the step and checks that the table lands on to.
func fire(ctx context.Context, from Step, event string, to Step) error {
	m := newMachine(from)
	if err := m.Event(ctx, event); err != nil {
		return fmt.Errorf("%w: %s from %s: %v", ErrIllegalTransition, event, from, err)
	}
	if Step(m.Current()) != to {
		return fmt.Errorf("%w: %s from %s lands on %s, not %s", ErrIllegalTransition, event, from, m.Current(), to)
	}
	return nil
}

// Input is one user message or button press.
type Input struct {
	Text   string
	Action string // button action, empty for text
	Value  string // button value
}

// TextInput builds an Input from a text message.
func TextInput(text string) Input { return Input{Text: text} }

// ButtonInput builds an Input from a parsed callback.
func ButtonInput(action, value string) Input { return Input{Action: action, Value: value} }

var cancelWords = map[string]bool{"/cancel": true, "إلغاء": true, "الغاء": true, "iptal": true}

// IsCancel reports whether in asks to abandon the dialogue.
func (in Input) IsCancel() bool {
	if in.Action == ActionWizard && in.Value == ValueCancel {
		return true
	}
	if in.Action != "" {
		return false
	}
	return cancelWords[strings.ToLower(strings.TrimSpace(in.Text))]
}

// Outcome reports what Advance did. When Invalid is set the state is
// unchanged and Event is empty.
type Outcome struct {
	Event   string
	Invalid *ValidationError
	Form    *Form
}

// Advance applies in to st. now is the current time in the user's
// timezone and decides what "today" means.
func Advance(ctx context.Context, st State, in Input, now time.Time, cat *Catalog) (State, Outcome, error) {
	if st == nil {
		st = Start()
	}
	from := st.Step()
	if from.Terminal() {
		return st, Outcome{}, ErrFinished
	}

	var (
		next  State
		event string
		verr  *ValidationError
		err   error
	)
	if in.IsCancel() {
		next, event = Cancelled{From: from}, EventCancel
	} else {
		next, event, verr, err = step(st, in, now, cat)
	}
	if err != nil {
		return st, Outcome{}, err
	}
	if verr != nil {
		return st, Outcome{Invalid: verr}, nil
	}
	if err := fire(ctx, from, event, next.Step()); err != nil {
		return st, Outcome{}, err
	}

	out := Outcome{Event: event}
	if c, ok := next.(Completed); ok {
		out.Form = &c.Form
	}
	return next, out, nil
}

// step validates in against st and computes the next state.
func step(st State, in Input, now time.Time, cat *Catalog) (State, string, *ValidationError, error) {
	button := in.Action != ""
	switch s := st.(type) {
	case AwaitingName:
		if button {
			return nil, "", invalid(s.Step(), CodeNameLength), nil
		}
		name, v := ValidateName(in.Text)
		if v != nil {
			return nil, "", v, nil
		}
		return AwaitingNameAR{FullName: name}, EventName, nil, nil

	case AwaitingNameAR:
		if button {
			return nil, "", invalid(s.Step(), CodeNameLength), nil
		}
		name, v := ValidateNameAR(in.Text)
		if v != nil {
			return nil, "", v, nil
		}
		return AwaitingKimlik{Identity{FullName: s.FullName, FullNameAR: name}}, EventNameAR, nil, nil

	case AwaitingKimlik:
		k, v := ValidateKimlik(s.Step(), in.Text)
		if v != nil {
			return nil, "", v, nil
		}
		return AwaitingGSM{Applicant{Identity: s.Identity, Kimlik: k}}, EventKimlik, nil, nil

	case AwaitingGSM:
		g, v := ValidateGSM(in.Text)
		if v != nil {
			return nil, "", v, nil
		}
		return AwaitingCompanions{Contact{Applicant: s.Applicant, GSM: g}}, EventGSM, nil, nil

	case AwaitingCompanions:
		n, v := ValidateCompanionCount(in.Text)
		if v != nil {
			return nil, "", v, nil
		}
		if n == 0 {
			return AwaitingBorder{Party{Contact: s.Contact, Companions: []domain.Companion{}}}, EventCompanionsNone, nil, nil
		}
		return AwaitingCompanionKimlik{Contact: s.Contact, Total: n, Collected: []domain.Companion{}}, EventCompanionsSome, nil, nil

	case AwaitingCompanionKimlik:
		k, v := ValidateKimlik(s.Step(), in.Text)
		if v != nil {
			return nil, "", v, nil
		}
		return AwaitingCompanionName{Contact: s.Contact, Total: s.Total, Collected: s.Collected, PendingKimlik: k}, EventCompanionKimlik, nil, nil

	case AwaitingCompanionName:
		if button {
			return nil, "", invalid(s.Step(), CodeCompanionNameLength), nil
		}
		name, v := ValidateCompanionName(in.Text)
		if v != nil {
			return nil, "", v, nil
		}
		collected := append(append([]domain.Companion(nil), s.Collected...), domain.Companion{Kimlik: s.PendingKimlik, Name: name})
		if len(collected) >= s.Total {
			return AwaitingBorder{Party{Contact: s.Contact, Companions: collected}}, EventCompanionsDone, nil, nil
		}
		return AwaitingCompanionKimlik{Contact: s.Contact, Total: s.Total, Collected: collected}, EventCompanionNext, nil, nil

	case AwaitingBorder:
		var (
			b  Border
			ok bool
		)
		switch {
		case in.Action == ActionBorder:
			b, ok = cat.Lookup(in.Value)
		case !button:
			b, ok = cat.Match(in.Text)
		}
		if !ok {
			return nil, "", invalid(s.Step(), CodeBorderUnknown), nil
		}
		return AwaitingDateChoice{Route{Party: s.Party, Border: b.Key}}, EventBorder, nil, nil

	case AwaitingDateChoice:
		if in.Action == ActionDate && in.Value == ValueCustom {
			return AwaitingDateInput(s), EventDateCustom, nil, nil
		}
		return finishWithDate(s.Route, s.Step(), in, now, cat)

	case AwaitingDateInput:
		return finishWithDate(s.Route, s.Step(), in, now, cat)
	}
	return nil, "", nil, fmt.Errorf("%w: no handler for %T", ErrIllegalTransition, st)
}

var todayWords = map[string]bool{"today": true, "اليوم": true, "bugün": true, "bugun": true}

func finishWithDate(r Route, at Step, in Input, now time.Time, cat *Catalog) (State, string, *ValidationError, error) {
	var (
		date  string
		event string
	)
	switch {
	case in.Action == ActionDate && in.Value == ValueToday:
		date, event = now.Format("02.01.2006"), EventDateToday
	case in.Action != "":
		return nil, "", invalid(at, CodeChoiceRequired), nil
	case todayWords[strings.ToLower(strings.TrimSpace(in.Text))]:
		date, event = now.Format("02.01.2006"), EventDateToday
	default:
		d, v := ValidateDate(at, in.Text)
		if v != nil {
			return nil, "", v, nil
		}
		date, event = d, EventDateEntered
	}
	b, ok := cat.Lookup(r.Border)
	if !ok {
		return nil, "", nil, fmt.Errorf("%w: %q", ErrUnknownBorder, r.Border)
	}
	return Completed{Form: Form{
		FullName:   r.FullName,
		FullNameAR: r.FullNameAR,
		Kimlik:     r.Kimlik,
		GSM:        r.GSM,
		Companions: r.Companions,
		Border:     b,
		TravelDate: date,
	}}, event, nil, nil
}
