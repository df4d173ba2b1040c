package service

import (
	"fmt"
	"testing"

	"funnel-service/internal/apperr"
	"funnel-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestClaimFailureReason(t *testing.T) {
	assert.Equal(t, "capacity_exceeded",
		claimFailureReason(fmt.Errorf("owner 7 holds 50 of 50: %w", apperr.ErrCapacityExceeded)))
	assert.Equal(t, "conflict",
		claimFailureReason(fmt.Errorf("customer 3 is no longer in the public pool: %w", apperr.ErrConflict)))
	assert.Equal(t, "not_found", claimFailureReason(apperr.NotFoundf("customer %d", 3)))
	assert.Equal(t, "error", claimFailureReason(fmt.Errorf("connection reset")))
}

func TestPartitionClaimsStopsAtCapacity(t *testing.T) {
	attempted := make([]int64, 0)
	claim := func(id int64) error {
		attempted = append(attempted, id)
		if len(attempted) >= 3 {
			return fmt.Errorf("owner 7 holds 2 of 2: %w", apperr.ErrCapacityExceeded)
		}
		return nil
	}

	result := partitionClaims([]int64{10, 11, 12, 13, 14}, claim)

	assert.Equal(t, []int64{10, 11}, result.Succeeded)
	assert.Len(t, result.Failed, 3)

	// The id that hit the ceiling was attempted; the rest were not.
	assert.Equal(t, []int64{10, 11, 12}, attempted)
	assert.Equal(t, int64(13), result.Failed[1].CustomerID)
	assert.Equal(t, apperr.ErrCapacityExceeded.Error(), result.Failed[1].Reason)
	assert.Equal(t, int64(14), result.Failed[2].CustomerID)
	assert.Equal(t, apperr.ErrCapacityExceeded.Error(), result.Failed[2].Reason)
}

func TestPartitionClaimsNonCapacityFailuresAreIsolated(t *testing.T) {
	claim := func(id int64) error {
		if id == 21 {
			return fmt.Errorf("customer 21 is no longer in the public pool: %w", apperr.ErrConflict)
		}
		return nil
	}

	result := partitionClaims([]int64{20, 21, 22}, claim)

	// A conflict on one id does not stop the ids after it.
	assert.Equal(t, []int64{20, 22}, result.Succeeded)
	assert.Len(t, result.Failed, 1)
	assert.Equal(t, int64(21), result.Failed[0].CustomerID)
}

func TestCanActOnCustomer(t *testing.T) {
	admin := models.Actor{ID: 1, Role: models.RoleAdministrator}
	rep := models.Actor{ID: 2, Role: models.RoleSalesRep}
	otherRep := models.Actor{ID: 3, Role: models.RoleSalesRep}
	owner := int64(2)

	assert.True(t, canActOnCustomer(admin, &owner))
	assert.True(t, canActOnCustomer(admin, nil))
	assert.True(t, canActOnCustomer(rep, &owner))
	assert.False(t, canActOnCustomer(otherRep, &owner))
	assert.False(t, canActOnCustomer(rep, nil))
}

func TestBoolLabel(t *testing.T) {
	assert.Equal(t, "true", boolLabel(true))
	assert.Equal(t, "false", boolLabel(false))
}

func TestNewBaseEvent(t *testing.T) {
	e := newBaseEvent("CUSTOMER_CLAIMED")

	assert.Equal(t, "CUSTOMER_CLAIMED", e.EventType)
	assert.NotEmpty(t, e.EventID)
	assert.False(t, e.Timestamp.IsZero())
}
