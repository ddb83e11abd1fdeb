package dashboard

import (
	"github.com/agrof66/machine-dashboard/internal/sheet"
	"github.com/agrof66/machine-dashboard/pkg/constants"
	"github.com/agrof66/machine-dashboard/pkg/mathutil"
)

// Totals are the YTD key figures of a set of machines.
type Totals struct {
	Machines  int     `json:"machines"`
	Cost      float64 `json:"cost"`
	Revenue   float64 `json:"revenue"`
	DB        float64 `json:"db"`
	Margin    float64 `json:"margin"`
	AverageDB float64 `json:"averageDb"`
}

// Overview sums the YTD columns.
func Overview(machines []sheet.Machine) Totals {
	var t Totals
	for _, m := range machines {
		t.Cost += m.CostYTD
		t.Revenue += m.RevenueYTD
		t.DB += m.DBYTD
	}
	t.Machines = len(machines)
	t.Cost = mathutil.Round(t.Cost)
	t.Revenue = mathutil.Round(t.Revenue)
	t.DB = mathutil.Round(t.DB)
	t.Margin = mathutil.Margin(t.DB, t.Revenue)
	if t.Machines > 0 {
		t.AverageDB = mathutil.Round(t.DB / float64(t.Machines))
	}
	return t
}

// MonthRow is one month of the monthly development table.
type MonthRow struct {
	Month             string  `json:"month"`
	Cost              float64 `json:"cost"`
	Revenue           float64 `json:"revenue"`
	DB                float64 `json:"db"`
	Margin            float64 `json:"margin"`
	CumulativeRevenue float64 `json:"cumulativeRevenue"`
	CumulativeDB      float64 `json:"cumulativeDb"`
}

// Monthly sums cost, revenue and DB per month in the data set's month order.
func Monthly(months []string, machines []sheet.Machine) []MonthRow {
	rows := make([]MonthRow, 0, len(months))
	var cumRevenue, cumDB float64
	for _, month := range months {
		row := MonthRow{Month: month}
		for _, m := range machines {
			row.Cost += m.Cost[month]
			row.Revenue += m.Revenue[month]
			row.DB += m.DB[month]
		}
		row.Cost = mathutil.Round(row.Cost)
		row.Revenue = mathutil.Round(row.Revenue)
		row.DB = mathutil.Round(row.DB)
		row.Margin = mathutil.Margin(row.DB, row.Revenue)

		cumRevenue += row.Revenue
		cumDB += row.DB
		row.CumulativeRevenue = mathutil.Round(cumRevenue)
		row.CumulativeDB = mathutil.Round(cumDB)
		rows = append(rows, row)
	}
	return rows
}

// MonthInsights names the notable months of a monthly table.
type MonthInsights struct {
	BestMonth       string  `json:"bestMonth"`
	BestMargin      float64 `json:"bestMargin"`
	WorstMonth      string  `json:"worstMonth"`
	WorstMargin     float64 `json:"worstMargin"`
	TopRevenueMonth string  `json:"topRevenueMonth"`
	TopRevenue      float64 `json:"topRevenue"`
	TotalDB         float64 `json:"totalDb"`
	TotalMargin     float64 `json:"totalMargin"`
}

// Insights returns nil for an empty table. The first month wins ties.
func Insights(rows []MonthRow) *MonthInsights {
	if len(rows) == 0 {
		return nil
	}
	best, worst, top := rows[0], rows[0], rows[0]
	var totalDB, totalRevenue float64
	for _, r := range rows {
		if r.Margin > best.Margin {
			best = r
		}
		if r.Margin < worst.Margin {
			worst = r
		}
		if r.Revenue > top.Revenue {
			top = r
		}
		totalDB += r.DB
		totalRevenue += r.Revenue
	}
	return &MonthInsights{
		BestMonth:       best.Month,
		BestMargin:      best.Margin,
		WorstMonth:      worst.Month,
		WorstMargin:     worst.Margin,
		TopRevenueMonth: top.Month,
		TopRevenue:      top.Revenue,
		TotalDB:         mathutil.Round(totalDB),
		TotalMargin:     mathutil.Margin(totalDB, totalRevenue),
	}
}

// MarginBand classifies a margin for colouring: good, warn or bad.
func MarginBand(pct float64) string {
	switch {
	case pct >= constants.MarginGood:
		return "good"
	case pct >= constants.MarginWarn:
		return "warn"
	default:
		return "bad"
	}
}

// Deviation is a machine whose monthly figures do not add up to its YTD column.
type Deviation struct {
	VHNr       string  `json:"vhNr"`
	Measure    string  `json:"measure"`
	MonthlySum float64 `json:"monthlySum"`
	YTD        float64 `json:"ytd"`
}

// CheckConsistency compares the monthly sums against the YTD columns.
func CheckConsistency(ds *sheet.Dataset, tolerance float64) []Deviation {
	if ds == nil || len(ds.Months) == 0 {
		return nil
	}
	var out []Deviation
	for _, m := range ds.Machines {
		var cost, revenue, db float64
		for _, month := range ds.Months {
			cost += m.Cost[month]
			revenue += m.Revenue[month]
			db += m.DB[month]
		}
		checks := []struct {
			measure string
			sum     float64
			ytd     float64
		}{
			{"Kosten", cost, m.CostYTD},
			{"Umsätze", revenue, m.RevenueYTD},
			{"DB", db, m.DBYTD},
		}
		for _, c := range checks {
			if !mathutil.WithinTolerance(c.sum, c.ytd, tolerance) {
				out = append(out, Deviation{
					VHNr:       m.VHNr,
					Measure:    c.measure,
					MonthlySum: mathutil.Round(c.sum),
					YTD:        c.ytd,
				})
			}
		}
	}
	return out
}
