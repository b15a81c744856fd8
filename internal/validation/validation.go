// Package validation wraps go-playground/validator with field level errors
// suitable for showing to users.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// Validator returns the shared validator instance (singleton)
func Validator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Struct validates v and converts failures to a MultiError
func Struct(v any) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}
	if fields := ToMultiError(err); len(fields) > 0 {
		return fields
	}
	return err
}

// FieldError represents a validation error for a specific field
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// MultiError is a collection of field errors (implements error interface)
type MultiError []FieldError

func (m MultiError) Error() string {
	if len(m) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range m {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Has reports whether any error concerns field
func (m MultiError) Has(field string) bool {
	for _, e := range m {
		if e.Field == field {
			return true
		}
	}
	return false
}

// ToMultiError converts go-playground/validator errors to MultiError
func ToMultiError(err error) MultiError {
	var fieldErrors MultiError

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return fieldErrors
	}

	for _, e := range validationErrs {
		fieldName := strings.ToLower(e.Namespace())
		if i := strings.Index(fieldName, "."); i >= 0 {
			fieldName = fieldName[i+1:]
		}

		var message string
		switch e.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", e.Field())
		case "min", "gte":
			message = fmt.Sprintf("%s must be at least %s", e.Field(), e.Param())
		case "max", "lte":
			message = fmt.Sprintf("%s must be at most %s", e.Field(), e.Param())
		case "oneof":
			message = fmt.Sprintf("%s must be one of [%s]", e.Field(), e.Param())
		case "hexcolor":
			message = fmt.Sprintf("%s must be a hex color", e.Field())
		case "hostname_port":
			message = fmt.Sprintf("%s must be host:port", e.Field())
		default:
			message = fmt.Sprintf("%s is invalid", e.Field())
		}

		fieldErrors = append(fieldErrors, FieldError{
			Field:   fieldName,
			Message: message,
		})
	}

	return fieldErrors
}
