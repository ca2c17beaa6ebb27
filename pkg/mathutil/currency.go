// Package mathutil provides common mathematical utility functions.
package mathutil

import (
	"math"

	"github.com/iwvelando/sprint-budget/pkg/constants"
	"github.com/shopspring/decimal"
)

// Round rounds a value to two decimals, i.e. to represent real currency.
// Rounding happens in decimal space so that values such as 1.005 round up.
func Round(val float64) float64 {
	return decimal.NewFromFloat(val).Round(constants.DecimalPlaces).InexactFloat64()
}

// WithinTolerance checks if two values are within a specified tolerance
func WithinTolerance(val1, val2, tolerance float64) bool {
	return math.Abs(val1-val2) <= tolerance
}

// CalculatePercentage calculates what percentage value is of total
func CalculatePercentage(value, total float64) float64 {
	if total == 0 {
		return 0
	}
	return (value / total) * constants.PercentageMultiplier
}

// CeilRatio returns ceil(numerator/denominator) for positive inputs and 0
// otherwise. A tiny epsilon absorbs float noise so that 100000/20000 is 5,
// not 6.
func CeilRatio(numerator, denominator float64) int {
	if numerator <= 0 || denominator <= 0 {
		return 0
	}
	ratio := numerator / denominator
	return int(math.Ceil(ratio - 1e-9))
}
