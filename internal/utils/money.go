// internal/utils/money.go
package utils

import (
	"errors"
	"math"
)

// ErrInvalidAmount flags malformed numeric input. It indicates a data
// integrity problem upstream and must never be silently coerced.
var ErrInvalidAmount = errors.New("invalid amount")

const maxSafeMinorUnits = int64(1) << 53

// ToMinorUnits converts a decimal currency amount to integer minor units
// (cents), rounding half away from zero. The same rounding is used by
// CalcFeeMinorUnits; downstream reconciliation depends on the per-transaction
// penny behavior, so it must not change.
func ToMinorUnits(amount float64) (int64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, ErrInvalidAmount
	}

	cents := math.Round(amount * 100)
	if cents >= float64(maxSafeMinorUnits) || cents <= -float64(maxSafeMinorUnits) {
		return 0, ErrInvalidAmount
	}

	return int64(cents), nil
}

// FromMinorUnits converts integer minor units back to a decimal amount.
func FromMinorUnits(cents int64) float64 {
	return float64(cents) / 100
}

// CalcFeeMinorUnits computes round(priceMinor * feeBps / 10000) in pure
// integer arithmetic, rounding half away from zero.
func CalcFeeMinorUnits(priceMinor, feeBps int64) int64 {
	n := priceMinor * feeBps
	if n >= 0 {
		return (n + 5000) / 10000
	}
	return -((-n + 5000) / 10000)
}
