// Package datetime provides date and time utility functions for month
// column labels and export stamps.
package datetime

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// StampLayout is used for export watermarks.
	StampLayout = "02.01.2006 15:04"
	// FileLayout is used in download file names.
	FileLayout = "20060102"
)

var monthNames = map[string]time.Month{
	"jan": time.January, "januar": time.January, "january": time.January,
	"feb": time.February, "februar": time.February, "february": time.February,
	"mar": time.March, "mär": time.March, "märz": time.March, "march": time.March, "mrz": time.March,
	"apr": time.April, "april": time.April,
	"mai": time.May, "may": time.May,
	"jun": time.June, "juni": time.June, "june": time.June,
	"jul": time.July, "juli": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "sept": time.September, "september": time.September,
	"okt": time.October, "oct": time.October, "oktober": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dez": time.December, "dec": time.December, "dezember": time.December, "december": time.December,
}

var germanMonths = [...]string{"Januar", "Februar", "März", "April", "Mai", "Juni", "Juli", "August", "September", "Oktober", "November", "Dezember"}

// Stamp formats t for a watermark, e.g. "02.04.2025 09:05".
func Stamp(t time.Time) string {
	return t.Format(StampLayout)
}

// FileDate formats t for a file name, e.g. "20250402".
func FileDate(t time.Time) string {
	return t.Format(FileLayout)
}

// ParseMonth parses a month column label such as "Jan 25", "Mär 2025",
// "01/2025" or "2025-01" into the first day of that month.
func ParseMonth(label string) (time.Time, error) {
	label = strings.TrimSpace(label)
	for _, layout := range []string{"2006-01", "01/2006", "01.2006"} {
		if t, err := time.Parse(layout, label); err == nil {
			return t, nil
		}
	}

	fields := strings.Fields(strings.ReplaceAll(label, ".", " "))
	if len(fields) != 2 {
		return time.Time{}, fmt.Errorf("unrecognized month label %q", label)
	}
	month, ok := monthNames[strings.ToLower(fields[0])]
	if !ok {
		return time.Time{}, fmt.Errorf("unrecognized month name in %q", label)
	}
	year, err := strconv.Atoi(strings.TrimPrefix(fields[1], "'"))
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized year in %q", label)
	}
	if year < 100 {
		year += 2000
	}
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC), nil
}

// LongMonth renders t as "März 2025".
func LongMonth(t time.Time) string {
	return fmt.Sprintf("%s %d", germanMonths[t.Month()-1], t.Year())
}

// Period describes the span of months, e.g. "Januar 2025 bis März 2025".
// Labels that do not parse are shown as they are.
func Period(months []string) string {
	if len(months) == 0 {
		return ""
	}
	long := func(label string) string {
		if t, err := ParseMonth(label); err == nil {
			return LongMonth(t)
		}
		return label
	}
	first, last := long(months[0]), long(months[len(months)-1])
	if first == last {
		return first
	}
	return first + " bis " + last
}
