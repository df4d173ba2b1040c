package service

import (
	"strings"
	"testing"

	"funnel-service/internal/apperr"
	"funnel-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestValidateItems(t *testing.T) {
	err := validateItems(nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	err = validateItems([]QuoteItemRequest{{ProductID: 1, Quantity: 0, UnitPrice: 10}})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	err = validateItems([]QuoteItemRequest{{ProductID: 1, Quantity: 1, UnitPrice: -5}})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	err = validateItems([]QuoteItemRequest{{ProductID: 1, Quantity: 1, UnitPrice: 10}})
	assert.NoError(t, err)
}

func TestApprovalRoleAllowed(t *testing.T) {
	assert.True(t, approvalRoleAllowed(models.QuoteStatusPendingManager, models.RoleSalesManager))
	assert.True(t, approvalRoleAllowed(models.QuoteStatusPendingManager, models.RoleAdministrator))
	assert.False(t, approvalRoleAllowed(models.QuoteStatusPendingManager, models.RoleFinance))
	assert.False(t, approvalRoleAllowed(models.QuoteStatusPendingManager, models.RoleSalesRep))

	assert.True(t, approvalRoleAllowed(models.QuoteStatusPendingDirector, models.RoleFinance))
	assert.True(t, approvalRoleAllowed(models.QuoteStatusPendingDirector, models.RoleAdministrator))
	assert.False(t, approvalRoleAllowed(models.QuoteStatusPendingDirector, models.RoleSalesManager))

	// No decision is possible outside the two pending queues.
	assert.False(t, approvalRoleAllowed(models.QuoteStatusDraft, models.RoleAdministrator))
	assert.False(t, approvalRoleAllowed(models.QuoteStatusApproved, models.RoleAdministrator))
}

func TestNewQuoteNumber(t *testing.T) {
	a := newQuoteNumber()
	b := newQuoteNumber()

	assert.True(t, strings.HasPrefix(a, "Q-"))
	assert.Len(t, a, 10)
	assert.NotEqual(t, a, b)
}

func TestOptionalString(t *testing.T) {
	assert.Nil(t, optionalString(""))
	assert.Nil(t, optionalString("   "))

	got := optionalString("  fine by me ")
	assert.NotNil(t, got)
	assert.Equal(t, "fine by me", *got)
}
