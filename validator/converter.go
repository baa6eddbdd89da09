// Package validator converts ozzo-validation results into layered errors.
package validator

import (
	"errors"

	"github.com/KOMKZ/go-yogan-admission/errcode"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ErrValidationFailed is the generic validation failure used when a caller has no module sentinel.
var ErrValidationFailed = errcode.Register(errcode.New(
	1, 1010,
	"common",
	"error.common.validation_failed",
	"validation failed",
	400,
))

// Validatable is implemented by anything with ozzo rules.
type Validatable interface {
	Validate() error
}

// ValidateRequest runs v.Validate and converts an ozzo error into ErrValidationFailed.
func ValidateRequest(v Validatable) error {
	return ValidateAs(v, ErrValidationFailed)
}

// ValidateAs runs v.Validate and converts an ozzo error into base with the field messages
// attached under "fields". Non-ozzo errors are returned unchanged.
func ValidateAs(v Validatable, base *errcode.LayeredError) error {
	err := v.Validate()
	if err == nil {
		return nil
	}

	var validationErrs validation.Errors
	if errors.As(err, &validationErrs) {
		return ConvertValidationError(validationErrs, base)
	}
	return err
}

// ConvertValidationError flattens validationErrs into a field -> message map on base.
// Nested validation.Errors (struct or map fields) are keyed as "parent.child".
func ConvertValidationError(validationErrs validation.Errors, base *errcode.LayeredError) *errcode.LayeredError {
	if base == nil {
		base = ErrValidationFailed
	}
	fields := make(map[string]string)
	flatten("", validationErrs, fields)
	return base.WithData("fields", fields).Wrap(validationErrs)
}

func flatten(prefix string, errs validation.Errors, out map[string]string) {
	for field, fieldErr := range errs {
		if fieldErr == nil {
			continue
		}
		name := field
		if prefix != "" {
			name = prefix + "." + field
		}
		if nested, ok := fieldErr.(validation.Errors); ok {
			flatten(name, nested, out)
			continue
		}
		out[name] = fieldErr.Error()
	}
}
