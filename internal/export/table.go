// Package export renders dashboard tables as Excel or CSV downloads.
package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/agrof66/machine-dashboard/internal/dashboard"
	"github.com/agrof66/machine-dashboard/internal/sheet"
	"github.com/agrof66/machine-dashboard/pkg/constants"
	"github.com/agrof66/machine-dashboard/pkg/datetime"
)

// Table is a rectangular export. Cells hold strings, ints or float64s.
type Table struct {
	Sheet   string
	Headers []string
	Rows    [][]any
}

// Options control the watermark line.
type Options struct {
	Watermark bool
	User      string
	Now       time.Time
}

func (o Options) watermark() string {
	now := o.Now
	if now.IsZero() {
		now = time.Now()
	}
	return fmt.Sprintf("Exportiert von %s am %s", o.User, datetime.Stamp(now))
}

// MachineTable lists machines with their YTD figures. Product columns are
// included when withProducts is set.
func MachineTable(machines []sheet.Machine, withProducts bool) Table {
	headers := []string{constants.ColumnVHNr, constants.ColumnCode, constants.ColumnDescriptionDE, constants.ColumnBranch}
	if withProducts {
		headers = append(headers, constants.ColumnFamily, constants.ColumnGroup)
	}
	headers = append(headers, constants.ColumnCostYTD, constants.ColumnRevenueYTD, constants.ColumnDBYTD, constants.ColumnMarginYTD)

	t := Table{Sheet: constants.ExportSheetName, Headers: headers}
	for _, m := range machines {
		row := []any{m.VHNr, m.Code, m.Description, m.Branch}
		if withProducts {
			row = append(row, m.ProductFamily, m.ProductGroup)
		}
		row = append(row, m.CostYTD, m.RevenueYTD, m.DBYTD, m.MarginYTD)
		t.Rows = append(t.Rows, row)
	}
	return t
}

// MonthlyTable lists the monthly totals.
func MonthlyTable(rows []dashboard.MonthRow) Table {
	t := Table{
		Sheet:   constants.ExportSheetName,
		Headers: []string{"Monat", "Kosten", "Umsätze", "DB", "Marge %", "Umsätze kumuliert", "DB kumuliert"},
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, []any{r.Month, r.Cost, r.Revenue, r.DB, r.Margin, r.CumulativeRevenue, r.CumulativeDB})
	}
	return t
}

// ProductTable lists product family or group statistics under label.
func ProductTable(stats []dashboard.ProductStat, label string) Table {
	t := Table{
		Sheet:   constants.ExportSheetName,
		Headers: []string{label, "Anzahl", "Kosten", "Umsätze", "DB", "Marge %"},
	}
	for _, s := range stats {
		t.Rows = append(t.Rows, []any{s.Name, s.Count, s.Cost, s.Revenue, s.DB, s.Margin})
	}
	return t
}

// ParetoTable lists the cost-only machines of a Pareto result with their
// running cost share.
func ParetoTable(res dashboard.ParetoResult) Table {
	t := Table{
		Sheet:   constants.ExportSheetName,
		Headers: []string{constants.ColumnVHNr, constants.ColumnDescriptionDE, constants.ColumnBranch, constants.ColumnCostYTD, "Anteil kumuliert %"},
	}
	var running float64
	for _, m := range res.Machines {
		running += m.CostYTD
		share := 0.0
		if res.TotalCost > 0 {
			share = running / res.TotalCost * constants.PercentageMultiplier
		}
		t.Rows = append(t.Rows, []any{m.VHNr, m.Description, m.Branch, m.CostYTD, share})
	}
	return t
}

// Redact returns a copy of t without the named columns.
func Redact(t Table, columns []string) Table {
	if len(columns) == 0 {
		return t
	}
	drop := make(map[string]bool, len(columns))
	for _, c := range columns {
		drop[strings.TrimSpace(c)] = true
	}

	var keep []int
	out := Table{Sheet: t.Sheet}
	for i, h := range t.Headers {
		if !drop[h] {
			keep = append(keep, i)
			out.Headers = append(out.Headers, h)
		}
	}
	for _, row := range t.Rows {
		r := make([]any, 0, len(keep))
		for _, i := range keep {
			if i < len(row) {
				r = append(r, row[i])
			}
		}
		out.Rows = append(out.Rows, r)
	}
	return out
}

// Filename builds <kind>_<branch>_<YYYYMMDD>.<ext>.
func Filename(kind, branch string, now time.Time, ext string) string {
	if branch == "" {
		branch = constants.BranchAll
	}
	branch = strings.Join(strings.Fields(branch), "_")
	return fmt.Sprintf("%s_%s_%s.%s", kind, branch, datetime.FileDate(now), strings.TrimPrefix(ext, "."))
}
