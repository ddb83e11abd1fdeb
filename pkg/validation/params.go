package validation

import (
	"fmt"
	"strings"
)

// MaxRankingSize bounds top and worst lists.
const MaxRankingSize = 100

// ValidateSortKey checks that key is one of allowed.
func ValidateSortKey(key string, allowed ...string) error {
	for _, a := range allowed {
		if key == a {
			return nil
		}
	}
	return fmt.Errorf("expected sort key of %s, got %s", strings.Join(allowed, ", "), key)
}

// ValidateRankingSize checks the length of a top or worst list.
func ValidateRankingSize(n int) error {
	if n < 1 || n > MaxRankingSize {
		return fmt.Errorf("ranking size must be between 1 and %d, got %d", MaxRankingSize, n)
	}
	return nil
}

// ValidateShare checks a Pareto share such as 0.8.
func ValidateShare(share float64) error {
	if share <= 0 || share > 1 {
		return fmt.Errorf("share must be greater than 0 and at most 1, got %v", share)
	}
	return nil
}

// ValidateExportFormat checks a download file extension.
func ValidateExportFormat(format string, allowed ...string) error {
	for _, a := range allowed {
		if format == a {
			return nil
		}
	}
	return fmt.Errorf("unsupported export format %q", format)
}
