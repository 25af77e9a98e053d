package core

import "errors"

var (
	// ErrValidation indicates that input data failed validation checks.
	ErrValidation = errors.New("validation error")

	// ErrDuplicateRecurring is returned when a template was already
	// materialized for the same day.
	ErrDuplicateRecurring = errors.New("recurring template already added today")

	// ErrNotFound indicates that a referenced record does not exist.
	ErrNotFound = errors.New("not found")
)

// ValidationError reports the first offending input field.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Is makes every ValidationError match ErrValidation, plus its cause if set.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation || (e.Err != nil && errors.Is(e.Err, target))
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
