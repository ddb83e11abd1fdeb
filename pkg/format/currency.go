// Package format renders euro amounts and percentages the way the dashboard
// tables and chart labels show them.
package format

import (
	"fmt"
	"math"
	"strings"
)

// Euro returns a whole-euro string with thousands separators (e.g., "€ -1,235").
func Euro(amount float64) string {
	return "€ " + grouped(amount, 0)
}

// EuroCents returns a euro string with cents (e.g., "€ 1,234.56").
func EuroCents(amount float64) string {
	return "€ " + grouped(amount, 2)
}

// KiloEuro returns the compact bar label used on charts (e.g., "€12k").
// A zero amount yields an empty label when blankZero is set.
func KiloEuro(amount float64, blankZero bool) string {
	if blankZero && amount == 0 {
		return ""
	}
	return fmt.Sprintf("€%.0fk", amount/1000)
}

// Percent returns a percentage with one decimal (e.g., "12.3%").
func Percent(value float64) string {
	return fmt.Sprintf("%.1f%%", value)
}

// Count returns an integer with thousands separators.
func Count(n int) string {
	return grouped(float64(n), 0)
}

func grouped(value float64, decimals int) string {
	sign := ""
	formatted := fmt.Sprintf("%.*f", decimals, math.Abs(value))
	if value < 0 && strings.Trim(formatted, "0.") != "" {
		sign = "-"
	}

	parts := strings.SplitN(formatted, ".", 2)
	intPart := parts[0]

	if len(intPart) > 3 {
		var builder strings.Builder
		for i, digit := range intPart {
			if i > 0 && (len(intPart)-i)%3 == 0 {
				builder.WriteByte(',')
			}
			builder.WriteRune(digit)
		}
		intPart = builder.String()
	}

	if len(parts) == 2 {
		return sign + intPart + "." + parts[1]
	}
	return sign + intPart
}
