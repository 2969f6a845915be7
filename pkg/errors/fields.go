package errors

import (
	stdErrors "errors"
	"fmt"

	"go.uber.org/multierr"
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field  string
	Reason string
}

func (f FieldError) Error() string {
	return fmt.Sprintf("%s: %s", f.Field, f.Reason)
}

// Field is shorthand for building a FieldError.
func Field(field, reason string) error {
	return FieldError{Field: field, Reason: reason}
}

// Invalid folds errors accumulated with multierr.Append into a single validation
// error whose details map field names to reasons. Returns nil when err is nil.
func Invalid(message string, err error) error {
	if err == nil {
		return nil
	}
	details := make(map[string]string)
	for _, e := range multierr.Errors(err) {
		var fe FieldError
		if stdErrors.As(e, &fe) {
			if _, seen := details[fe.Field]; !seen {
				details[fe.Field] = fe.Reason
			}
			continue
		}
		return Wrap(CodeInternal, err, "unexpected validation failure")
	}
	return New(CodeValidation, message).WithDetails(details)
}
