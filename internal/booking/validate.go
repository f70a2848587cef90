package booking

import (
	"errors"
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterValidation("specialty", validateSpecialty)
	validate.RegisterValidation("consultation_type", validateConsultationType)
	validate.RegisterValidation("appointment_status", validateAppointmentStatus)
	validate.RegisterValidation("past_date", validatePastDate)
	validate.RegisterCustomTypeFunc(decimalValuer, decimal.Decimal{})
	validate.RegisterValidation("price", validatePrice)
}

func validateSpecialty(fl validator.FieldLevel) bool {
	return Specialty(fl.Field().String()).Valid()
}

func validateConsultationType(fl validator.FieldLevel) bool {
	return ConsultationType(fl.Field().String()).Valid()
}

func validateAppointmentStatus(fl validator.FieldLevel) bool {
	return AppointmentStatus(fl.Field().String()).Valid()
}

func validatePastDate(fl validator.FieldLevel) bool {
	t, ok := fl.Field().Interface().(time.Time)
	return ok && !t.IsZero() && t.Before(time.Now())
}

// decimalValuer lets validator see decimal.Decimal as its string form so
// custom rules receive a scalar instead of the struct internals.
func decimalValuer(field reflect.Value) interface{} {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		return d.String()
	}
	return nil
}

func validatePrice(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	return err == nil && !d.IsNegative()
}

// Validate checks enumeration membership, price sign and field shape,
// reporting the first offending field. No side effects.
func (d *Doctor) Validate() error { return checkStruct(d) }

func (p *Patient) Validate() error { return checkStruct(p) }

func (a *Appointment) Validate() error { return checkStruct(a) }

func checkStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &ValidationError{Field: snakeCase(fe.Field()), Reason: reasonFor(fe)}
	}
	return &ValidationError{Field: "input", Reason: err.Error()}
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must not be empty"
	case "email":
		return "must be a well-formed email address"
	case "max":
		return "exceeds maximum length of " + fe.Param()
	case "url":
		return "must be a well-formed URL"
	case "past_date":
		return "must be a date in the past"
	case "price":
		return "must be a non-negative decimal"
	case "specialty", "consultation_type", "appointment_status":
		return "is not a recognized value"
	}
	return "failed rule " + fe.Tag()
}

func snakeCase(field string) string {
	var b strings.Builder
	runes := []rune(field)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			// Break before a new word, keeping acronym runs like URL intact.
			if i > 0 && (!unicode.IsUpper(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
