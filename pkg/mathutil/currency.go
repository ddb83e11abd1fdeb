// Package mathutil provides common mathematical utility functions.
package mathutil

import (
	"math"

	"github.com/agrof66/machine-dashboard/pkg/constants"
)

// Round rounds a value to two decimals, i.e. to represent real currency.
// Used for making logical comparisons.
func Round(val float64) float64 {
	return math.Round(val*constants.DecimalPrecision) / constants.DecimalPrecision
}

// IsZero checks if a value is effectively zero (within tolerance)
func IsZero(val float64) bool {
	return math.Abs(val) <= constants.CurrencyTolerance
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

// Margin returns the contribution margin in percent of revenue. A zero
// revenue yields a zero margin rather than NaN or Inf.
func Margin(db, revenue float64) float64 {
	m := CalculatePercentage(db, revenue)
	if math.IsNaN(m) || math.IsInf(m, 0) {
		return 0
	}
	return m
}
