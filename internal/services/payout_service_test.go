// internal/services/payout_service_test.go
package services

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockmart/blockmart-backend/internal/models"
)

type fakeTransferGateway struct {
	transfers []TransferRecord
	requests  []TransferRequest
	failFor   string // destination to fail on, "" for none
	nextID    int
}

func (g *fakeTransferGateway) CreateTransfer(req TransferRequest) (*TransferRecord, error) {
	if g.failFor != "" && req.Destination == g.failFor {
		return nil, errors.New("gateway timeout")
	}

	g.nextID++
	record := TransferRecord{
		ID:          fmt.Sprintf("tr_%03d", g.nextID),
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
		Destination: req.Destination,
	}
	g.transfers = append(g.transfers, record)
	g.requests = append(g.requests, req)
	return &record, nil
}

func (g *fakeTransferGateway) ListTransfersByGroupKey(groupKey string) ([]TransferRecord, error) {
	return g.transfers, nil
}

func newCreator(status models.StripeAccountStatus) models.User {
	u := models.User{
		StripeAccountID:     "acct_" + uuid.NewString()[:8],
		StripeAccountStatus: status,
	}
	u.ID = uuid.New()
	return u
}

func paidPurchase(items ...models.PurchaseItem) *models.Purchase {
	now := time.Now()
	p := &models.Purchase{
		BuyerID:          uuid.New(),
		Status:           models.PurchaseStatusPaid,
		Currency:         "usd",
		PaymentReference: "pi_test_123",
		PaidAt:           &now,
		Items:            items,
	}
	p.ID = uuid.New()
	return p
}

func itemFor(creator models.User, price float64, feeBps int) models.PurchaseItem {
	block := models.Block{
		CreatorID:      creator.ID,
		Price:          price,
		Currency:       "usd",
		PlatformFeeBps: feeBps,
		Creator:        creator,
	}
	block.ID = uuid.New()

	return models.PurchaseItem{
		BlockID:   block.ID,
		UnitPrice: price,
		Quantity:  1,
		Block:     block,
	}
}

func TestBuildPayoutPlanGroupsByCreator(t *testing.T) {
	x := newCreator(models.StripeAccountEnabled)
	y := newCreator(models.StripeAccountEnabled)
	purchase := paidPurchase(
		itemFor(x, 20.00, 1500),
		itemFor(y, 30.00, 1500),
		itemFor(x, 15.50, 1500),
	)

	plan, err := buildPayoutPlan(purchase)
	require.NoError(t, err)
	require.Len(t, plan, 2)

	assert.Equal(t, x.ID, plan[0].CreatorID)
	assert.Equal(t, int64(3550), plan[0].AmountMinor)
	assert.Equal(t, x.StripeAccountID, plan[0].Destination)

	assert.Equal(t, y.ID, plan[1].CreatorID)
	assert.Equal(t, int64(3000), plan[1].AmountMinor)
}

func TestBuildPayoutPlanNotPaid(t *testing.T) {
	x := newCreator(models.StripeAccountEnabled)
	purchase := paidPurchase(itemFor(x, 20.00, 1500))
	purchase.Status = models.PurchaseStatusPending

	_, err := buildPayoutPlan(purchase)
	assert.ErrorIs(t, err, ErrPurchaseNotPaid)
}

func TestBuildPayoutPlanMissingPaymentReference(t *testing.T) {
	x := newCreator(models.StripeAccountEnabled)
	purchase := paidPurchase(itemFor(x, 20.00, 1500))
	purchase.PaymentReference = ""

	_, err := buildPayoutPlan(purchase)
	assert.ErrorIs(t, err, ErrMissingPaymentReference)
}

func TestBuildPayoutPlanIneligibleCreatorAbortsBatch(t *testing.T) {
	x := newCreator(models.StripeAccountEnabled)
	y := newCreator(models.StripeAccountPending)
	purchase := paidPurchase(
		itemFor(x, 20.00, 1500),
		itemFor(y, 30.00, 1500),
	)

	plan, err := buildPayoutPlan(purchase)
	assert.ErrorIs(t, err, ErrCreatorPayoutIneligible)
	assert.Nil(t, plan)
}

func TestSettleIssuesTransfersPerCreator(t *testing.T) {
	x := newCreator(models.StripeAccountEnabled)
	y := newCreator(models.StripeAccountEnabled)
	purchase := paidPurchase(
		itemFor(x, 20.00, 1500),
		itemFor(y, 30.00, 1500),
	)

	gateway := &fakeTransferGateway{}
	svc := NewPayoutService(nil, gateway)

	payouts, err := svc.settle(purchase)
	require.NoError(t, err)
	require.Len(t, payouts, 2)

	assert.Equal(t, 20.00, payouts[0].Amount)
	assert.Equal(t, 30.00, payouts[1].Amount)
	assert.Equal(t, purchase.ID, payouts[0].PurchaseID)
	assert.NotEmpty(t, payouts[0].TransferReference)

	require.Len(t, gateway.requests, 2)
	assert.Equal(t, purchase.ID.String(), gateway.requests[0].GroupKey)
	assert.Equal(t, purchase.ID.String(), gateway.requests[0].Metadata["purchase_id"])
	assert.Equal(t, x.ID.String(), gateway.requests[0].Metadata["creator_id"])
}

func TestSettleAlreadySettledIssuesNothing(t *testing.T) {
	x := newCreator(models.StripeAccountEnabled)
	y := newCreator(models.StripeAccountEnabled)
	purchase := paidPurchase(
		itemFor(x, 20.00, 1500),
		itemFor(y, 30.00, 1500),
	)

	gateway := &fakeTransferGateway{}
	svc := NewPayoutService(nil, gateway)

	_, err := svc.settle(purchase)
	require.NoError(t, err)
	require.Len(t, gateway.transfers, 2)

	// Re-run for the same purchase: every creator reconciles, zero new
	// transfers go out.
	payouts, err := svc.settle(purchase)
	require.NoError(t, err)
	assert.Empty(t, payouts)
	assert.Len(t, gateway.transfers, 2)
}

func TestSettleRetryAfterPartialFailure(t *testing.T) {
	x := newCreator(models.StripeAccountEnabled)
	y := newCreator(models.StripeAccountEnabled)
	purchase := paidPurchase(
		itemFor(x, 20.00, 1500),
		itemFor(y, 30.00, 1500),
	)

	gateway := &fakeTransferGateway{failFor: y.StripeAccountID}
	svc := NewPayoutService(nil, gateway)

	payouts, err := svc.settle(purchase)
	require.Error(t, err)
	require.Len(t, payouts, 1)
	assert.Equal(t, x.ID, payouts[0].CreatorID)
	require.Len(t, gateway.transfers, 1)

	// Retry with the gateway healthy: X reconciles against its recorded
	// transfer and only Y is issued.
	gateway.failFor = ""
	payouts, err = svc.settle(purchase)
	require.NoError(t, err)
	require.Len(t, payouts, 1)
	assert.Equal(t, y.ID, payouts[0].CreatorID)
	assert.Equal(t, 30.00, payouts[0].Amount)
	assert.Len(t, gateway.transfers, 2)
}

func TestReconcilePayoutsAmountMismatchStillDue(t *testing.T) {
	creatorID := uuid.New()
	plan := []creatorPayout{
		{CreatorID: creatorID, Destination: "acct_x", AmountMinor: 2000, Currency: "usd"},
	}

	// Same destination but different amount: not proof of prior payment.
	existing := []TransferRecord{
		{ID: "tr_1", Destination: "acct_x", AmountMinor: 1500, Currency: "usd"},
	}

	due := reconcilePayouts(plan, existing)
	assert.Contains(t, due, creatorID)

	// Exact match settles it.
	existing = append(existing, TransferRecord{ID: "tr_2", Destination: "acct_x", AmountMinor: 2000, Currency: "usd"})
	due = reconcilePayouts(plan, existing)
	assert.NotContains(t, due, creatorID)
}
