package appointments

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	dateRule = "datetime=2006-01-02"
	timeRule = "datetime=15:04"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// invalidInput converts validator output into an ErrInvalidInput chain with a
// readable message.
func invalidInput(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(parts, ", "))
}

func (s *Service) validateNew(in *NewAppointment) error {
	in.Normalize()
	if err := s.validate.Struct(in); err != nil {
		return invalidInput(err)
	}
	if in.Treatment.IsZero() {
		return ErrTreatmentRequired
	}
	return nil
}

func (s *Service) validatePatch(p *Patch) error {
	if p.Empty() {
		return ErrEmptyPatch
	}
	if p.Status != nil || p.CancellationReason != nil {
		return fmt.Errorf("%w: status changes go through cancel, resume or complete", ErrInvalidInput)
	}
	if p.Name != nil {
		trimmed := strings.TrimSpace(*p.Name)
		if trimmed == "" {
			return fmt.Errorf("%w: name failed required", ErrInvalidInput)
		}
		p.Name = &trimmed
	}
	checks := []struct {
		field string
		value *string
		rule  string
	}{
		{"email", p.Email, "omitempty,email"},
		{"phone", p.Phone, "omitempty,max=32"},
		{"date", p.Date, "required," + dateRule},
		{"time", p.Time, "required," + timeRule},
	}
	for _, c := range checks {
		if c.value == nil {
			continue
		}
		trimmed := strings.TrimSpace(*c.value)
		*c.value = trimmed
		if err := s.validate.Var(trimmed, c.rule); err != nil {
			return fmt.Errorf("%w: %s failed %s", ErrInvalidInput, c.field, c.rule)
		}
	}
	if p.Treatment != nil && p.Treatment.IsZero() {
		return ErrTreatmentRequired
	}
	return nil
}

func (s *Service) validateMessage(in *MessageInput) error {
	in.Text = strings.TrimSpace(in.Text)
	if err := s.validate.Struct(in); err != nil {
		return invalidInput(err)
	}
	return nil
}
