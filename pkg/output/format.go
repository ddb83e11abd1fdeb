// Package output provides utilities for formatting and displaying machine
// reports on the command line.
package output

import (
	"fmt"
	"io"

	"github.com/agrof66/machine-dashboard/internal/dashboard"
	"github.com/agrof66/machine-dashboard/internal/sheet"
	"github.com/agrof66/machine-dashboard/pkg/datetime"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Report is everything the command line report prints.
type Report struct {
	Title    string
	Months   []string
	Totals   dashboard.Totals
	Monthly  []dashboard.MonthRow
	Insights *dashboard.MonthInsights
	Top      []sheet.Machine
	Worst    []sheet.Machine
	Pareto   dashboard.ParetoResult
}

// PrettyFormat outputs a human-readable rather than machine-readable report.
func PrettyFormat(w io.Writer, r Report) {
	p := message.NewPrinter(language.English)

	if period := datetime.Period(r.Months); period != "" {
		_, _ = fmt.Fprintf(w, "--- %s (%s) ---\n", r.Title, period)
	} else {
		_, _ = fmt.Fprintf(w, "--- %s ---\n", r.Title)
	}
	_, _ = p.Fprintf(w, "Maschinen: %d | Kosten: €%.2f | Umsätze: €%.2f | DB: €%.2f | Marge: %.1f%%\n\n",
		r.Totals.Machines, r.Totals.Cost, r.Totals.Revenue, r.Totals.DB, r.Totals.Margin)

	_, _ = fmt.Fprintf(w, "Monat  | Kosten | Umsätze | DB | Marge\n")
	_, _ = fmt.Fprintf(w, "_____  | ______ | _______ | __ | _____\n")
	for _, row := range r.Monthly {
		_, _ = p.Fprintf(w, "%s | €%.2f | €%.2f | €%.2f | %.1f%%\n",
			row.Month, row.Cost, row.Revenue, row.DB, row.Margin)
	}

	if r.Insights != nil {
		_, _ = p.Fprintf(w, "\nBester Monat: %s (%.1f%%) | Schwächster Monat: %s (%.1f%%) | Höchster Umsatz: %s (€%.2f)\n",
			r.Insights.BestMonth, r.Insights.BestMargin, r.Insights.WorstMonth, r.Insights.WorstMargin,
			r.Insights.TopRevenueMonth, r.Insights.TopRevenue)
	}

	printMachines(w, p, "Top Maschinen", r.Top)
	printMachines(w, p, "Schwächste Maschinen", r.Worst)

	_, _ = fmt.Fprintf(w, "\n--- 80/20 Analyse ---\n")
	if r.Pareto.TotalCount == 0 {
		_, _ = fmt.Fprintf(w, "Keine Maschinen mit Kosten ohne Umsatz.\n")
		return
	}
	_, _ = p.Fprintf(w, "%d von %d Maschinen ohne Umsatz (%.1f%%) verursachen €%.2f von €%.2f Kosten (%.1f%%)\n",
		len(r.Pareto.Machines), r.Pareto.TotalCount, r.Pareto.CountPercentage,
		r.Pareto.SelectedCost, r.Pareto.TotalCost, r.Pareto.CostPercentage)
}

func printMachines(w io.Writer, p *message.Printer, title string, machines []sheet.Machine) {
	if len(machines) == 0 {
		return
	}
	_, _ = fmt.Fprintf(w, "\n--- %s ---\n", title)
	for i, m := range machines {
		_, _ = p.Fprintf(w, "%d. %s | %s | DB €%.2f | Umsätze €%.2f | Marge %.1f%%\n",
			i+1, m.Label(), m.Branch, m.DBYTD, m.RevenueYTD, m.MarginYTD)
	}
}

// CsvFormat outputs the monthly table in comma-separated value format.
func CsvFormat(w io.Writer, r Report) {
	_, _ = fmt.Fprintf(w, `"month","cost","revenue","db","margin","cumulative revenue","cumulative db"`+"\n")
	for _, row := range r.Monthly {
		_, _ = fmt.Fprintf(w, `"%s","%.2f","%.2f","%.2f","%.2f","%.2f","%.2f"`+"\n",
			row.Month, row.Cost, row.Revenue, row.DB, row.Margin, row.CumulativeRevenue, row.CumulativeDB)
	}
}
