// Package apperr defines the expected business outcomes of funnel
// operations. Everything here is a normal result for some caller; only
// errors that are not one of these sentinels are infrastructure faults.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrCapacityExceeded   = errors.New("private customer capacity exceeded")
	ErrInvalidTransition  = errors.New("invalid state transition")
	ErrLossReasonRequired = errors.New("loss reason required")
	ErrValidation         = errors.New("validation failed")
	ErrHasDependents      = errors.New("customer has dependent records")
	ErrConflict           = errors.New("lost race to concurrent update")
)

// NotFoundf wraps ErrNotFound with entity context.
func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

// Forbiddenf wraps ErrForbidden with actor context.
func Forbiddenf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrForbidden)...)
}

// Validationf wraps ErrValidation with field context.
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrValidation)...)
}

// InvalidTransitionf wraps ErrInvalidTransition with the attempted and
// current states for diagnostics.
func InvalidTransitionf(current, target string) error {
	return fmt.Errorf("cannot move from %s to %s: %w", current, target, ErrInvalidTransition)
}
