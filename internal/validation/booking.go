package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"hotelsync/internal/domain"
	"hotelsync/internal/models"

	"github.com/go-playground/validator/v10"
)

// BookingValidator checks a single booking's field and date invariants.
// It is safe for concurrent use.
type BookingValidator struct {
	validate *validator.Validate
}

func NewBookingValidator() *BookingValidator {
	v := validator.New()
	v.RegisterTagNameFunc(jsonName)
	_ = v.RegisterValidation("booking_status", func(fl validator.FieldLevel) bool {
		return models.BookingStatus(fl.Field().String()).Valid()
	})
	return &BookingValidator{validate: v}
}

// Validate returns one message per violated field; an empty result means the
// booking is valid. All fields are checked in one pass.
func (v *BookingValidator) Validate(b models.Booking) []string {
	err := v.validate.Struct(b)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, message(fe))
	}
	return msgs
}

// Check is Validate in error form.
func (v *BookingValidator) Check(b models.Booking) error {
	if msgs := v.Validate(b); len(msgs) > 0 {
		return &domain.ValidationError{Messages: msgs}
	}
	return nil
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "gtfield":
		return fmt.Sprintf("%s must be after %s", fe.Field(), bookingFieldName(fe.Param()))
	case "booking_status":
		return fmt.Sprintf("%s %q is not a known booking status", fe.Field(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}

func jsonName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "" || name == "-" {
		return f.Name
	}
	return name
}

func bookingFieldName(goName string) string {
	if f, ok := reflect.TypeOf(models.Booking{}).FieldByName(goName); ok {
		return jsonName(f)
	}
	return goName
}
