package wizard

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownStep is returned by Decode for a step name it does not know.
var ErrUnknownStep = errors.New("wizard: unknown step")

// Encode returns the JSON form of st for the answers column.
func Encode(st State) ([]byte, error) {
	if st == nil {
		return nil, errors.New("wizard: nil state")
	}
	return json.Marshal(st)
}

// Decode rebuilds the state persisted under step. Empty raw decodes to the
// zero value of the step's type.
func Decode(step string, raw []byte) (State, error) {
	switch Step(step) {
	case StepAwaitingName:
		return decodeInto[AwaitingName](raw)
	case StepAwaitingNameAR:
		return decodeInto[AwaitingNameAR](raw)
	case StepAwaitingKimlik:
		return decodeInto[AwaitingKimlik](raw)
	case StepAwaitingGSM:
		return decodeInto[AwaitingGSM](raw)
	case StepAwaitingCompanions:
		return decodeInto[AwaitingCompanions](raw)
	case StepAwaitingCompanionKimlik:
		return decodeInto[AwaitingCompanionKimlik](raw)
	case StepAwaitingCompanionName:
		return decodeInto[AwaitingCompanionName](raw)
	case StepAwaitingBorder:
		return decodeInto[AwaitingBorder](raw)
	case StepAwaitingDateChoice:
		return decodeInto[AwaitingDateChoice](raw)
	case StepAwaitingDateInput:
		return decodeInto[AwaitingDateInput](raw)
	case StepCompleted:
		return decodeInto[Completed](raw)
	case StepCancelled:
		return decodeInto[Cancelled](raw)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStep, step)
}

func decodeInto[T State](raw []byte) (State, error) {
	var v T
	if len(raw) == 0 || string(raw) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("wizard: decode %s: %w", v.Step(), err)
	}
	return v, nil
}
