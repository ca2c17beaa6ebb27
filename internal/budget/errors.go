package budget

import (
	"errors"
	"fmt"
)

// ErrDuplicateIteration is returned when an iteration number is already in the ledger.
var ErrDuplicateIteration = errors.New("iteration number already exists")

// ErrIterationNotFound is returned when an edit targets a missing iteration.
var ErrIterationNotFound = errors.New("iteration not found")

// ErrIterationLimit is returned when an addition would exceed the ledger cap.
// It is a warning: the ledger is left unchanged and callers report it to the
// user rather than failing the request.
var ErrIterationLimit = errors.New("iteration limit reached")

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

func invalid(field string, value interface{}) error {
	return &ValidationError{Field: field, Value: value, Reason: "must be positive"}
}

// IsValidation reports whether err is a user input error.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) || errors.Is(err, ErrDuplicateIteration)
}
