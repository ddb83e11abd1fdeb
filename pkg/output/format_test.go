package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/agrof66/machine-dashboard/internal/dashboard"
	"github.com/agrof66/machine-dashboard/pkg/testutil"
)

func sampleReport(t *testing.T) Report {
	ds := testutil.SampleDataset(t)
	machines := dashboard.Filter{ActiveOnly: true}.Apply(ds.Machines)
	monthly := dashboard.Monthly(ds.Months, machines)
	return Report{
		Title:    "Maschinen-Report Gesamt",
		Months:   ds.Months,
		Totals:   dashboard.Overview(machines),
		Monthly:  monthly,
		Insights: dashboard.Insights(monthly),
		Top:      dashboard.Top(machines, dashboard.ByDB, 2),
		Worst:    dashboard.Worst(machines, dashboard.ByDB, 2),
		Pareto:   dashboard.Pareto(machines, 0.8),
	}
}

func TestPrettyFormat(t *testing.T) {
	var buf bytes.Buffer
	PrettyFormat(&buf, sampleReport(t))
	output := buf.String()

	expected := []string{
		"--- Maschinen-Report Gesamt (Januar 2025 bis März 2025) ---",
		"Maschinen: 5 | Kosten: €20,000.00 | Umsätze: €18,000.00 | DB: €-2,000.00 | Marge: -11.1%",
		"Monat  | Kosten | Umsätze | DB | Marge",
		"Jan 25 | €7,000.00 | €6,000.00 | €-1,000.00 | -16.7%",
		"Bester Monat: Mar 25 (0.0%)",
		"--- Top Maschinen ---",
		"1. 1003 | H-300 | Peine",
		"--- Schwächste Maschinen ---",
		"1. 1004 | H-400 | Peine",
		"1 von 2 Maschinen ohne Umsatz (50.0%) verursachen €5,000.00 von €6,200.00 Kosten (80.6%)",
	}
	for _, want := range expected {
		if !strings.Contains(output, want) {
			t.Errorf("PrettyFormat output missing %q\n%s", want, output)
		}
	}
}

func TestPrettyFormatWithoutPareto(t *testing.T) {
	var buf bytes.Buffer
	PrettyFormat(&buf, Report{Title: "Leer"})
	output := buf.String()

	if !strings.Contains(output, "--- Leer ---") {
		t.Errorf("PrettyFormat missing title without period:\n%s", output)
	}
	if !strings.Contains(output, "Keine Maschinen mit Kosten ohne Umsatz.") {
		t.Errorf("PrettyFormat missing empty Pareto note:\n%s", output)
	}
	if strings.Contains(output, "Top Maschinen") {
		t.Errorf("PrettyFormat printed an empty ranking:\n%s", output)
	}
}

func TestCsvFormat(t *testing.T) {
	var buf bytes.Buffer
	CsvFormat(&buf, sampleReport(t))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")

	if len(lines) != 4 {
		t.Fatalf("Expected header plus 3 months, got %d lines:\n%s", len(lines), buf.String())
	}
	if lines[0] != `"month","cost","revenue","db","margin","cumulative revenue","cumulative db"` {
		t.Errorf("Unexpected header %s", lines[0])
	}
	if lines[2] != `"Feb 25","7000.00","6000.00","-1000.00","-16.67","12000.00","-2000.00"` {
		t.Errorf("Unexpected February row %s", lines[2])
	}
}
