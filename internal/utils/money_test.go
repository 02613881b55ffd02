// internal/utils/money_test.go
package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMinorUnits(t *testing.T) {
	cases := []struct {
		amount float64
		cents  int64
	}{
		{0, 0},
		{0.01, 1},
		{1, 100},
		{19.99, 1999},
		{20.00, 2000},
		{57.50, 5750},
		{0.005, 1},  // rounds half away from zero
		{0.004, 0},  // rounds down
		{-2.50, -250},
	}

	for _, tc := range cases {
		cents, err := ToMinorUnits(tc.amount)
		require.NoError(t, err, "amount %v", tc.amount)
		assert.Equal(t, tc.cents, cents, "amount %v", tc.amount)
	}
}

func TestToMinorUnitsInvalid(t *testing.T) {
	for _, amount := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), 1e17} {
		_, err := ToMinorUnits(amount)
		assert.ErrorIs(t, err, ErrInvalidAmount, "amount %v", amount)
	}
}

func TestMoneyRoundTrip(t *testing.T) {
	// Any amount with at most two fractional digits must survive the trip.
	amounts := []float64{0, 0.01, 0.10, 1.00, 9.99, 19.99, 20, 30, 42.42, 57.50, 999999.99}

	for _, a := range amounts {
		cents, err := ToMinorUnits(a)
		require.NoError(t, err)
		assert.Equal(t, a, FromMinorUnits(cents), "amount %v", a)
	}
}

func TestCalcFeeMinorUnits(t *testing.T) {
	cases := []struct {
		priceMinor int64
		feeBps     int64
		fee        int64
	}{
		{5000, 1500, 750},  // $50.00 at 15% -> $7.50
		{2000, 1500, 300},
		{999, 1500, 150},   // 149.85 rounds up
		{333, 1500, 50},    // 49.95 rounds up
		{1, 1500, 0},       // 0.15 rounds down
		{10000, 0, 0},
		{0, 1500, 0},
		{100, 10000, 100},  // 100% fee
		{-5000, 1500, -750},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.fee, CalcFeeMinorUnits(tc.priceMinor, tc.feeBps),
			"price=%d bps=%d", tc.priceMinor, tc.feeBps)
	}
}
