package apperr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrappersPreserveSentinel(t *testing.T) {
	err := NotFoundf("customer %d", 42)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "customer 42")

	err = Forbiddenf("actor %d", 7)
	assert.ErrorIs(t, err, ErrForbidden)

	err = Validationf("quantity must be positive")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestInvalidTransitionCarriesBothStates(t *testing.T) {
	err := InvalidTransitionf("REJECTED", "APPROVED")

	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Contains(t, err.Error(), "REJECTED")
	assert.Contains(t, err.Error(), "APPROVED")
}

func TestSentinelsAreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNotFound, ErrForbidden, ErrCapacityExceeded, ErrInvalidTransition,
		ErrLossReasonRequired, ErrValidation, ErrHasDependents, ErrConflict,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			assert.False(t, errors.Is(a, b))
		}
	}
}
