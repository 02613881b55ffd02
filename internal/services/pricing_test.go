// internal/services/pricing_test.go
package services

import (
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockmart/blockmart-backend/internal/utils"
)

func TestPriceCheckoutTwoBlocks(t *testing.T) {
	quotes := []BlockQuote{
		{BlockID: uuid.New(), Price: 20.00, Currency: "usd"},
		{BlockID: uuid.New(), Price: 30.00, Currency: "usd"},
	}

	pricing, err := PriceCheckout(quotes, 1500)
	require.NoError(t, err)

	assert.Equal(t, 50.00, pricing.Subtotal)
	assert.Equal(t, 7.50, pricing.PlatformFee)
	assert.Equal(t, 57.50, pricing.Total)
	assert.Equal(t, "usd", pricing.Currency)
}

func TestPriceCheckoutInvariant(t *testing.T) {
	carts := [][]float64{
		{9.99},
		{0.01, 0.01, 0.01},
		{19.99, 30.01},
		{149.50, 75.25, 12.99},
	}

	for _, prices := range carts {
		var quotes []BlockQuote
		for _, p := range prices {
			quotes = append(quotes, BlockQuote{BlockID: uuid.New(), Price: p, Currency: "usd"})
		}

		pricing, err := PriceCheckout(quotes, 1500)
		require.NoError(t, err)

		// total == subtotal + fee, exactly, in minor units
		sub, _ := utils.ToMinorUnits(pricing.Subtotal)
		fee, _ := utils.ToMinorUnits(pricing.PlatformFee)
		total, _ := utils.ToMinorUnits(pricing.Total)
		assert.Equal(t, total, sub+fee, "cart %v", prices)
		assert.Equal(t, utils.CalcFeeMinorUnits(sub, 1500), fee, "cart %v", prices)
	}
}

func TestPriceCheckoutEmptyCart(t *testing.T) {
	_, err := PriceCheckout(nil, 1500)
	assert.ErrorIs(t, err, ErrEmptyCart)

	_, err = PriceCheckout([]BlockQuote{}, 1500)
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestPriceCheckoutCurrencyMismatch(t *testing.T) {
	quotes := []BlockQuote{
		{BlockID: uuid.New(), Price: 20.00, Currency: "usd"},
		{BlockID: uuid.New(), Price: 30.00, Currency: "eur"},
	}

	_, err := PriceCheckout(quotes, 1500)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
}

func TestPriceCheckoutInvalidPrice(t *testing.T) {
	quotes := []BlockQuote{
		{BlockID: uuid.New(), Price: math.NaN(), Currency: "usd"},
	}

	_, err := PriceCheckout(quotes, 1500)
	assert.ErrorIs(t, err, utils.ErrInvalidAmount)
}

func TestPriceCheckoutZeroFee(t *testing.T) {
	quotes := []BlockQuote{{BlockID: uuid.New(), Price: 42.00, Currency: "usd"}}

	pricing, err := PriceCheckout(quotes, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, pricing.PlatformFee)
	assert.Equal(t, pricing.Subtotal, pricing.Total)
}
