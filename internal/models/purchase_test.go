// internal/models/purchase_test.go
package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPurchaseStatusTransitions(t *testing.T) {
	cases := []struct {
		from    PurchaseStatus
		to      PurchaseStatus
		allowed bool
	}{
		{PurchaseStatusPending, PurchaseStatusPaid, true},
		{PurchaseStatusPending, PurchaseStatusFailed, true},
		{PurchaseStatusPaid, PurchaseStatusRefunded, true},
		{PurchaseStatusPending, PurchaseStatusRefunded, false},
		{PurchaseStatusPaid, PurchaseStatusPaid, false},
		{PurchaseStatusPaid, PurchaseStatusPending, false},
		{PurchaseStatusPaid, PurchaseStatusFailed, false},
		{PurchaseStatusRefunded, PurchaseStatusPaid, false},
		{PurchaseStatusRefunded, PurchaseStatusPending, false},
		{PurchaseStatusFailed, PurchaseStatusPaid, false},
		{PurchaseStatusFailed, PurchaseStatusPending, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransition(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestPurchaseStatusTerminal(t *testing.T) {
	assert.False(t, PurchaseStatusPending.Terminal())
	assert.False(t, PurchaseStatusPaid.Terminal())
	assert.True(t, PurchaseStatusRefunded.Terminal())
	assert.True(t, PurchaseStatusFailed.Terminal())
}

func TestLicenseStatusTransitions(t *testing.T) {
	assert.True(t, LicenseStatusActive.CanTransition(LicenseStatusRevoked))
	assert.False(t, LicenseStatusRevoked.CanTransition(LicenseStatusActive))
	assert.False(t, LicenseStatusActive.CanTransition(LicenseStatusActive))
}

func TestLicenseTypeValid(t *testing.T) {
	assert.True(t, LicenseTypePersonal.Valid())
	assert.True(t, LicenseTypeCommercial.Valid())
	assert.True(t, LicenseTypeExtended.Valid())
	assert.False(t, LicenseType("enterprise").Valid())
	assert.False(t, LicenseType("").Valid())
}

func TestPayoutEligible(t *testing.T) {
	u := &User{StripeAccountID: "acct_123", StripeAccountStatus: StripeAccountEnabled}
	assert.True(t, u.PayoutEligible())

	u.StripeAccountStatus = StripeAccountPending
	assert.False(t, u.PayoutEligible())

	u.StripeAccountStatus = StripeAccountEnabled
	u.StripeAccountID = ""
	assert.False(t, u.PayoutEligible())
}
