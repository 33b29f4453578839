package tracker

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("record not found")

// ValidationError rejects a write before anything is persisted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// ConstraintError reports a write refused by referential integrity, such as
// a reference to a parent row that does not exist.
type ConstraintError struct {
	Constraint string
	Err        error
}

func (e *ConstraintError) Error() string {
	if e.Constraint == "" {
		return fmt.Sprintf("constraint violation: %v", e.Err)
	}
	return fmt.Sprintf("constraint %s violated: %v", e.Constraint, e.Err)
}

func (e *ConstraintError) Unwrap() error {
	return e.Err
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsConstraint reports whether err is, or wraps, a ConstraintError.
func IsConstraint(err error) bool {
	var c *ConstraintError
	return errors.As(err, &c)
}
