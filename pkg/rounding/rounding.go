// Package rounding holds the rounding rules used for billing figures.
package rounding

import (
	"math"

	"github.com/shopspring/decimal"
)

// ConsumptionToNearestEvenHundredth rounds a kWh figure to two decimal places,
// sending exact halves to the even neighbour (0.025 -> 0.02, 0.055 -> 0.06).
// This is the rule the supplier applies on its invoices.
func ConsumptionToNearestEvenHundredth(x float64) float64 {
	if !finite(x) {
		return x
	}
	return decimal.NewFromFloat(x).RoundBank(2).InexactFloat64()
}

// ToTwoDecimalPlaces rounds a money figure to two decimal places, halves away from zero.
func ToTwoDecimalPlaces(x float64) float64 {
	if !finite(x) {
		return x
	}
	return decimal.NewFromFloat(x).Round(2).InexactFloat64()
}

// decimal.NewFromFloat panics on NaN and Inf.
func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
