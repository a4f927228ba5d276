package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/pauljones0/epic-free-games-bot/internal/models"
)

// Validator checks that an extracted promotion carries the fields its
// identity key and notifications depend on.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	return &Validator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// ValidatePromotion reports the missing required fields of p by their
// stored names, e.g. "missing startDate". Optional fields such as the image
// and store URLs are kept as the upstream sent them and never fail here.
func (v *Validator) ValidatePromotion(p *models.Promotion) error {
	if p == nil {
		return errors.New("invalid promotion: nil")
	}
	err := v.validate.Struct(p)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("invalid promotion %q: %w", p.Title, err)
	}
	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			problems = append(problems, "missing "+storedName(fe.Field()))
			continue
		}
		problems = append(problems, fmt.Sprintf("%s fails %s", storedName(fe.Field()), fe.Tag()))
	}
	return fmt.Errorf("invalid promotion %q: %s", p.Title, strings.Join(problems, ", "))
}

// storedName maps a Go field name to its document field name.
func storedName(field string) string {
	switch field {
	case "StartDate":
		return "startDate"
	case "EndDate":
		return "endDate"
	case "Title":
		return "title"
	}
	return field
}
