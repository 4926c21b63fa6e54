// Package wizard implements the voluntary-return conversation as a finite
// state machine.
//
// Each step of the dialogue has its own state type carrying exactly the
// answers collected so far, so a step can only read fields that earlier
// steps have already filled in. States are persisted with Encode and read
// back with Decode; the step name is the discriminator.
//
// The package is pure: it does not talk to Telegram or the database. The
// caller feeds one Input at a time to Advance and acts on the Outcome.
package wizard

import "github.com/tevasul/tevasul-backend/internal/domain"

// Step names a wizard state. The values are stored in the step column of
// telegram_conversation_sessions.
type Step string

const (
	StepAwaitingName            Step = "awaiting_name"
	StepAwaitingNameAR          Step = "awaiting_name_ar"
	StepAwaitingKimlik          Step = "awaiting_kimlik"
	StepAwaitingGSM             Step = "awaiting_gsm"
	StepAwaitingCompanions      Step = "awaiting_companions"
	StepAwaitingCompanionKimlik Step = "awaiting_companion_kimlik"
	StepAwaitingCompanionName   Step = "awaiting_companion_name"
	StepAwaitingBorder          Step = "awaiting_border"
	StepAwaitingDateChoice      Step = "awaiting_date_choice"
	StepAwaitingDateInput       Step = "awaiting_date_input"
	StepCompleted               Step = "completed"
	StepCancelled               Step = "cancelled"
)

// Terminal reports whether no further input is accepted in s.
func (s Step) Terminal() bool { return s == StepCompleted || s == StepCancelled }

// MaxCompanions is the largest accepted companion count.
const MaxCompanions = 20

// State is one of the Awaiting*, Completed or Cancelled types below.
type State interface {
	Step() Step
}

// Identity holds both spellings of the applicant's name.
type Identity struct {
	FullName   string `json:"full_name"`
	FullNameAR string `json:"full_name_ar"`
}

// Applicant is Identity plus the Kimlik number.
type Applicant struct {
	Identity
	Kimlik string `json:"kimlik"`
}

// Contact is Applicant plus the phone number.
type Contact struct {
	Applicant
	GSM string `json:"gsm"`
}

// Party is Contact plus every companion.
type Party struct {
	Contact
	Companions []domain.Companion `json:"companions"`
}

// Route is Party plus the chosen border crossing key.
type Route struct {
	Party
	Border string `json:"border"`
}

type (
	AwaitingName   struct{}
	AwaitingNameAR struct {
		FullName string `json:"full_name"`
	}
	AwaitingKimlik     struct{ Identity }
	AwaitingGSM        struct{ Applicant }
	AwaitingCompanions struct{ Contact }

	// AwaitingCompanionKimlik waits for the Kimlik of companion
	// len(Collected)+1 out of Total.
	AwaitingCompanionKimlik struct {
		Contact
		Total     int                `json:"total"`
		Collected []domain.Companion `json:"collected"`
	}

	// AwaitingCompanionName waits for the name that goes with PendingKimlik.
	AwaitingCompanionName struct {
		Contact
		Total         int                `json:"total"`
		Collected     []domain.Companion `json:"collected"`
		PendingKimlik string             `json:"pending_kimlik"`
	}

	AwaitingBorder     struct{ Party }
	AwaitingDateChoice struct{ Route }
	AwaitingDateInput  struct{ Route }

	Completed struct {
		Form Form `json:"form"`
	}
	Cancelled struct {
		From Step `json:"from"`
	}
)

func (AwaitingName) Step() Step            { return StepAwaitingName }
func (AwaitingNameAR) Step() Step          { return StepAwaitingNameAR }
func (AwaitingKimlik) Step() Step          { return StepAwaitingKimlik }
func (AwaitingGSM) Step() Step             { return StepAwaitingGSM }
func (AwaitingCompanions) Step() Step      { return StepAwaitingCompanions }
func (AwaitingCompanionKimlik) Step() Step { return StepAwaitingCompanionKimlik }
func (AwaitingCompanionName) Step() Step   { return StepAwaitingCompanionName }
func (AwaitingBorder) Step() Step          { return StepAwaitingBorder }
func (AwaitingDateChoice) Step() Step      { return StepAwaitingDateChoice }
func (AwaitingDateInput) Step() Step       { return StepAwaitingDateInput }
func (Completed) Step() Step               { return StepCompleted }
func (Cancelled) Step() Step               { return StepCancelled }

// Start returns the first state of a new dialogue.
func Start() State { return AwaitingName{} }

// Form is the finished petition data.
type Form struct {
	FullName   string             `json:"full_name"`
	FullNameAR string             `json:"full_name_ar"`
	Kimlik     string             `json:"kimlik"`
	GSM        string             `json:"gsm"`
	Companions []domain.Companion `json:"companions"`
	Border     Border             `json:"border"`
	TravelDate string             `json:"travel_date"` // DD.MM.YYYY
}
