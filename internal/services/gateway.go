// internal/services/gateway.go
package services

import (
	"fmt"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/checkout/session"
	"github.com/stripe/stripe-go/v74/paymentintent"
	"github.com/stripe/stripe-go/v74/refund"
	"github.com/stripe/stripe-go/v74/transfer"

	"github.com/blockmart/blockmart-backend/internal/config"
)

// TransferRequest asks the gateway to move funds to a creator's connected
// account. GroupKey scopes the transfer for later idempotency lookups.
type TransferRequest struct {
	AmountMinor int64
	Currency    string
	Destination string
	GroupKey    string
	Metadata    map[string]string
}

// TransferRecord is the gateway's view of an issued transfer.
type TransferRecord struct {
	ID          string
	AmountMinor int64
	Currency    string
	Destination string
}

// TransferGateway is the external system-of-record for creator payouts. The
// payout aggregator reconciles against ListTransfersByGroupKey before issuing
// anything, so implementations must return every transfer tagged with the
// group key, in any order.
type TransferGateway interface {
	CreateTransfer(req TransferRequest) (*TransferRecord, error)
	ListTransfersByGroupKey(groupKey string) ([]TransferRecord, error)
}

type CheckoutLine struct {
	Name        string
	AmountMinor int64
	Currency    string
	Quantity    int64
}

type CheckoutSessionRequest struct {
	PurchaseID string
	BuyerID    string
	Lines      []CheckoutLine
	SuccessURL string
	CancelURL  string
}

type CheckoutSession struct {
	ID  string
	URL string
}

// PaymentGateway covers the buyer-facing payment operations on top of the
// creator transfer surface.
type PaymentGateway interface {
	TransferGateway
	CreateCheckoutSession(req CheckoutSessionRequest) (*CheckoutSession, error)
	RefundPayment(paymentRef string, amountMinor int64) (string, error)
	GetProcessingFee(paymentRef string) (int64, error)
}

type StripeGateway struct {
	config *config.Config
}

func NewStripeGateway(config *config.Config) *StripeGateway {
	stripe.Key = config.Payment.StripeSecretKey

	return &StripeGateway{config: config}
}

func (g *StripeGateway) CreateCheckoutSession(req CheckoutSessionRequest) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			TransferGroup: stripe.String(req.PurchaseID),
			Metadata: map[string]string{
				"purchase_id": req.PurchaseID,
				"buyer_id":    req.BuyerID,
			},
		},
	}

	for _, line := range req.Lines {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(line.Currency),
				UnitAmount: stripe.Int64(line.AmountMinor),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(line.Name),
				},
			},
			Quantity: stripe.Int64(line.Quantity),
		})
	}

	params.AddMetadata("purchase_id", req.PurchaseID)

	sess, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func (g *StripeGateway) CreateTransfer(req TransferRequest) (*TransferRecord, error) {
	params := &stripe.TransferParams{
		Amount:        stripe.Int64(req.AmountMinor),
		Currency:      stripe.String(req.Currency),
		Destination:   stripe.String(req.Destination),
		TransferGroup: stripe.String(req.GroupKey),
	}

	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	t, err := transfer.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create transfer: %w", err)
	}

	record := &TransferRecord{
		ID:          t.ID,
		AmountMinor: t.Amount,
		Currency:    string(t.Currency),
	}
	if t.Destination != nil {
		record.Destination = t.Destination.ID
	}

	return record, nil
}

func (g *StripeGateway) ListTransfersByGroupKey(groupKey string) ([]TransferRecord, error) {
	params := &stripe.TransferListParams{
		TransferGroup: stripe.String(groupKey),
	}

	var records []TransferRecord
	iter := transfer.List(params)
	for iter.Next() {
		t := iter.Transfer()
		record := TransferRecord{
			ID:          t.ID,
			AmountMinor: t.Amount,
			Currency:    string(t.Currency),
		}
		if t.Destination != nil {
			record.Destination = t.Destination.ID
		}
		records = append(records, record)
	}

	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}

	return records, nil
}

func (g *StripeGateway) RefundPayment(paymentRef string, amountMinor int64) (string, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentRef),
		Amount:        stripe.Int64(amountMinor),
		Reason:        stripe.String("requested_by_customer"),
	}

	r, err := refund.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create refund: %w", err)
	}

	return r.ID, nil
}

// GetProcessingFee reads the gateway's own processing fee for a settled
// payment. Informational only; recorded post-hoc on the purchase.
func (g *StripeGateway) GetProcessingFee(paymentRef string) (int64, error) {
	params := &stripe.PaymentIntentParams{}
	params.AddExpand("latest_charge.balance_transaction")

	pi, err := paymentintent.Get(paymentRef, params)
	if err != nil {
		return 0, fmt.Errorf("failed to get payment intent: %w", err)
	}

	if pi.LatestCharge == nil || pi.LatestCharge.BalanceTransaction == nil {
		return 0, nil
	}

	return pi.LatestCharge.BalanceTransaction.Fee, nil
}
