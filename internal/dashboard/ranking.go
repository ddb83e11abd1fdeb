package dashboard

import (
	"fmt"
	"sort"

	"github.com/agrof66/machine-dashboard/internal/sheet"
	"github.com/agrof66/machine-dashboard/pkg/constants"
	"github.com/agrof66/machine-dashboard/pkg/mathutil"
)

// SortKey selects the measure a ranking or product table is ordered by.
type SortKey string

// Supported sort keys.
const (
	ByDB      SortKey = "db"
	ByRevenue SortKey = "revenue"
	ByMargin  SortKey = "margin"
	ByCost    SortKey = "cost"
	ByCount   SortKey = "count"
)

// RankingKeys are the measures the top and worst lists can be ranked by.
var RankingKeys = []SortKey{ByDB, ByRevenue, ByMargin, ByCost}

// ProductKeys are the measures the product tables can be sorted by.
var ProductKeys = []SortKey{ByRevenue, ByDB, ByMargin, ByCount, ByCost}

// ParseSortKey validates a sort key; empty selects fallback.
func ParseSortKey(v string, fallback SortKey) (SortKey, error) {
	if v == "" {
		return fallback, nil
	}
	switch k := SortKey(v); k {
	case ByDB, ByRevenue, ByMargin, ByCost, ByCount:
		return k, nil
	}
	return "", fmt.Errorf("unsupported sort key %q", v)
}

func machineValue(m sheet.Machine, key SortKey) float64 {
	switch key {
	case ByRevenue:
		return m.RevenueYTD
	case ByMargin:
		return m.MarginYTD
	case ByCost:
		return m.CostYTD
	default:
		return m.DBYTD
	}
}

// Top returns the n best machines by key among those with at least 1000 EUR
// YTD revenue, presented by DB YTD descending.
func Top(machines []sheet.Machine, key SortKey, n int) []sheet.Machine {
	relevant := make([]sheet.Machine, 0, len(machines))
	for _, m := range machines {
		if m.RevenueYTD >= constants.RelevanceFloor {
			relevant = append(relevant, m)
		}
	}
	picked := pick(relevant, key, n, true)
	sort.SliceStable(picked, func(i, j int) bool { return picked[i].DBYTD > picked[j].DBYTD })
	return picked
}

// Worst returns the n weakest machines by key among those with at least 1000
// EUR YTD cost, presented by DB YTD ascending. For the cost key the most
// expensive machines are the weakest.
func Worst(machines []sheet.Machine, key SortKey, n int) []sheet.Machine {
	relevant := make([]sheet.Machine, 0, len(machines))
	for _, m := range machines {
		if m.CostYTD >= constants.RelevanceFloor {
			relevant = append(relevant, m)
		}
	}
	picked := pick(relevant, key, n, key == ByCost)
	sort.SliceStable(picked, func(i, j int) bool { return picked[i].DBYTD < picked[j].DBYTD })
	return picked
}

func pick(machines []sheet.Machine, key SortKey, n int, largest bool) []sheet.Machine {
	sorted := append([]sheet.Machine(nil), machines...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if largest {
			return machineValue(sorted[i], key) > machineValue(sorted[j], key)
		}
		return machineValue(sorted[i], key) < machineValue(sorted[j], key)
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// ProductStat aggregates the machines of one product family or group.
type ProductStat struct {
	Name    string  `json:"name"`
	Count   int     `json:"count"`
	Cost    float64 `json:"cost"`
	Revenue float64 `json:"revenue"`
	DB      float64 `json:"db"`
	Margin  float64 `json:"margin"`
}

func (p ProductStat) value(key SortKey) float64 {
	switch key {
	case ByDB:
		return p.DB
	case ByMargin:
		return p.Margin
	case ByCount:
		return float64(p.Count)
	case ByCost:
		return p.Cost
	default:
		return p.Revenue
	}
}

// ProductFamilies groups machines by product family, sorted descending by key.
func ProductFamilies(machines []sheet.Machine, key SortKey) []ProductStat {
	return productStats(machines, func(m sheet.Machine) string { return m.ProductFamily }, key, -1)
}

// ProductGroups groups machines by product group, sorted descending by key
// and truncated to limit entries (no limit when negative).
func ProductGroups(machines []sheet.Machine, key SortKey, limit int) []ProductStat {
	return productStats(machines, func(m sheet.Machine) string { return m.ProductGroup }, key, limit)
}

func productStats(machines []sheet.Machine, name func(sheet.Machine) string, key SortKey, limit int) []ProductStat {
	index := make(map[string]int)
	var stats []ProductStat
	for _, m := range machines {
		n := name(m)
		if n == "" {
			continue
		}
		i, ok := index[n]
		if !ok {
			i = len(stats)
			index[n] = i
			stats = append(stats, ProductStat{Name: n})
		}
		stats[i].Count++
		stats[i].Cost += m.CostYTD
		stats[i].Revenue += m.RevenueYTD
		stats[i].DB += m.DBYTD
	}

	for i := range stats {
		stats[i].Cost = mathutil.Round(stats[i].Cost)
		stats[i].Revenue = mathutil.Round(stats[i].Revenue)
		stats[i].DB = mathutil.Round(stats[i].DB)
		stats[i].Margin = mathutil.Margin(stats[i].DB, stats[i].Revenue)
	}

	sort.SliceStable(stats, func(i, j int) bool {
		vi, vj := stats[i].value(key), stats[j].value(key)
		if vi != vj {
			return vi > vj
		}
		return stats[i].Name < stats[j].Name
	})
	if limit >= 0 && len(stats) > limit {
		stats = stats[:limit]
	}
	return stats
}

// ParetoResult is the minimal set of cost-only machines covering the target
// share of their total cost.
type ParetoResult struct {
	Machines        []sheet.Machine `json:"machines"`
	TotalCount      int             `json:"totalCount"`
	TotalCost       float64         `json:"totalCost"`
	SelectedCost    float64         `json:"selectedCost"`
	CountPercentage float64         `json:"countPercentage"`
	CostPercentage  float64         `json:"costPercentage"`
	Share           float64         `json:"share"`
}

// Pareto scans the machines with cost but no revenue, most expensive first,
// and returns the shortest prefix whose cumulative cost reaches share of the
// total. A share outside (0, 1] falls back to 0.8.
func Pareto(machines []sheet.Machine, share float64) ParetoResult {
	if share <= 0 || share > 1 {
		share = constants.ParetoShare
	}

	var candidates []sheet.Machine
	for _, m := range machines {
		if m.CostYTD > 0 && m.RevenueYTD == 0 {
			candidates = append(candidates, m)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].CostYTD > candidates[j].CostYTD })

	res := ParetoResult{TotalCount: len(candidates), Share: share, Machines: []sheet.Machine{}}
	for _, m := range candidates {
		res.TotalCost += m.CostYTD
	}
	res.TotalCost = mathutil.Round(res.TotalCost)
	if len(candidates) == 0 {
		return res
	}

	target := res.TotalCost * share
	var cumulative float64
	count := 0
	for _, m := range candidates {
		cumulative += m.CostYTD
		count++
		if cumulative >= target {
			break
		}
	}

	res.Machines = candidates[:count]
	res.SelectedCost = mathutil.Round(cumulative)
	res.CountPercentage = mathutil.CalculatePercentage(float64(count), float64(len(candidates)))
	res.CostPercentage = mathutil.CalculatePercentage(res.SelectedCost, res.TotalCost)
	return res
}
