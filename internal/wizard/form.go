package wizard

import "github.com/tevasul/tevasul-backend/internal/domain"

// FormInput is a petition submitted in one piece, as the website's
// document endpoint receives it. Border is matched like typed wizard text.
type FormInput struct {
	FullName   string             `json:"full_name"`
	FullNameAR string             `json:"full_name_ar"`
	Kimlik     string             `json:"kimlik"`
	GSM        string             `json:"gsm"`
	Companions []domain.Companion `json:"companions"`
	Border     string             `json:"border"`
	TravelDate string             `json:"travel_date"`
}

// BuildForm runs in through the same validators as the wizard steps and
// returns the first failure. An empty TravelDate means today.
func (c *Catalog) BuildForm(in FormInput, today string) (Form, *ValidationError) {
	var (
		f   Form
		err *ValidationError
	)
	if f.FullName, err = ValidateName(in.FullName); err != nil {
		return Form{}, err
	}
	if f.FullNameAR, err = ValidateNameAR(in.FullNameAR); err != nil {
		return Form{}, err
	}
	if f.Kimlik, err = ValidateKimlik(StepAwaitingKimlik, in.Kimlik); err != nil {
		return Form{}, err
	}
	if f.GSM, err = ValidateGSM(in.GSM); err != nil {
		return Form{}, err
	}
	if len(in.Companions) > MaxCompanions {
		return Form{}, invalid(StepAwaitingCompanions, CodeCompanionsRange)
	}
	f.Companions = make([]domain.Companion, 0, len(in.Companions))
	for _, comp := range in.Companions {
		k, err := ValidateKimlik(StepAwaitingCompanionKimlik, comp.Kimlik)
		if err != nil {
			return Form{}, err
		}
		name, err := ValidateCompanionName(comp.Name)
		if err != nil {
			return Form{}, err
		}
		f.Companions = append(f.Companions, domain.Companion{Kimlik: k, Name: name})
	}
	b, ok := c.Match(in.Border)
	if !ok {
		return Form{}, invalid(StepAwaitingBorder, CodeBorderUnknown)
	}
	f.Border = b
	if in.TravelDate == "" {
		f.TravelDate = today
		return f, nil
	}
	if f.TravelDate, err = ValidateDate(StepAwaitingDateInput, in.TravelDate); err != nil {
		return Form{}, err
	}
	return f, nil
}
