// internal/services/pricing.go
package services

import (
	"errors"

	"github.com/google/uuid"

	"github.com/blockmart/blockmart-backend/internal/utils"
)

var (
	ErrEmptyCart        = errors.New("cart is empty")
	ErrCurrencyMismatch = errors.New("cart items must share a single currency")
)

// BlockQuote is a block's price as read from the catalog at checkout time.
type BlockQuote struct {
	BlockID  uuid.UUID `json:"block_id"`
	Price    float64   `json:"price"`
	Currency string    `json:"currency"`
}

type CheckoutPricing struct {
	Subtotal    float64 `json:"subtotal"`
	PlatformFee float64 `json:"platform_fee"`
	Total       float64 `json:"total"`
	Currency    string  `json:"currency"`
}

// PriceCheckout computes subtotal, platform fee, and total for a cart. The
// fee is a flat rate on the subtotal (feeBps basis points); the per-block fee
// bps on the catalog applies at payout validation, not here. All arithmetic
// happens in minor units so Subtotal + PlatformFee == Total exactly.
func PriceCheckout(quotes []BlockQuote, feeBps int64) (*CheckoutPricing, error) {
	if len(quotes) == 0 {
		return nil, ErrEmptyCart
	}

	currency := quotes[0].Currency
	var subtotalMinor int64

	for _, q := range quotes {
		if q.Currency != currency {
			return nil, ErrCurrencyMismatch
		}

		cents, err := utils.ToMinorUnits(q.Price)
		if err != nil {
			return nil, err
		}
		subtotalMinor += cents
	}

	feeMinor := utils.CalcFeeMinorUnits(subtotalMinor, feeBps)

	return &CheckoutPricing{
		Subtotal:    utils.FromMinorUnits(subtotalMinor),
		PlatformFee: utils.FromMinorUnits(feeMinor),
		Total:       utils.FromMinorUnits(subtotalMinor + feeMinor),
		Currency:    currency,
	}, nil
}
