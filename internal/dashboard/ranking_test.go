package dashboard

import (
	"testing"

	"github.com/agrof66/machine-dashboard/internal/sheet"
	"github.com/agrof66/machine-dashboard/pkg/testutil"
)

func TestTop(t *testing.T) {
	ds := testutil.SampleDataset(t)

	tests := []struct {
		name     string
		key      SortKey
		n        int
		expected []string
	}{
		{"By DB", ByDB, 10, []string{"1003", "1001", "1002"}},
		{"By margin limited", ByMargin, 2, []string{"1003", "1001"}},
		{"By revenue limited", ByRevenue, 1, []string{"1003"}},
		{"By cost", ByCost, 2, []string{"1003", "1001"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := vhNrs(Top(ds.Machines, tt.key, tt.n))
			if !equalStrings(got, tt.expected) {
				t.Errorf("Top(%s, %d) = %v, expected %v", tt.key, tt.n, got, tt.expected)
			}
		})
	}
}

func TestWorst(t *testing.T) {
	ds := testutil.SampleDataset(t)

	tests := []struct {
		name     string
		key      SortKey
		n        int
		expected []string
	}{
		{"By DB", ByDB, 2, []string{"1004", "1005"}},
		{"By cost takes most expensive", ByCost, 2, []string{"1004", "1003"}},
		{"By revenue", ByRevenue, 2, []string{"1004", "1005"}},
		{"All relevant", ByDB, 10, []string{"1004", "1005", "1002", "1001", "1003"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := vhNrs(Worst(ds.Machines, tt.key, tt.n))
			if !equalStrings(got, tt.expected) {
				t.Errorf("Worst(%s, %d) = %v, expected %v", tt.key, tt.n, got, tt.expected)
			}
		})
	}
}

func TestRankingRelevanceFloor(t *testing.T) {
	machines := []sheet.Machine{
		{VHNr: "small", RevenueYTD: 999, CostYTD: 999, DBYTD: 0},
		{VHNr: "big", RevenueYTD: 1000, CostYTD: 1000, DBYTD: 0},
	}
	if got := vhNrs(Top(machines, ByDB, 10)); !equalStrings(got, []string{"big"}) {
		t.Errorf("Top ignored the revenue floor: %v", got)
	}
	if got := vhNrs(Worst(machines, ByDB, 10)); !equalStrings(got, []string{"big"}) {
		t.Errorf("Worst ignored the cost floor: %v", got)
	}
}

func TestParseSortKey(t *testing.T) {
	if k, err := ParseSortKey("", ByDB); err != nil || k != ByDB {
		t.Errorf("ParseSortKey(\"\") = %v, %v", k, err)
	}
	if k, err := ParseSortKey("margin", ByDB); err != nil || k != ByMargin {
		t.Errorf("ParseSortKey(margin) = %v, %v", k, err)
	}
	if _, err := ParseSortKey("bogus", ByDB); err == nil {
		t.Error("expected error for unsupported key")
	}
}

func TestProductFamilies(t *testing.T) {
	ds := testutil.SampleDataset(t)
	stats := ProductFamilies(ds.Machines, ByRevenue)

	if len(stats) != 3 {
		t.Fatalf("expected 3 families, got %+v", stats)
	}
	names := []string{stats[0].Name, stats[1].Name, stats[2].Name}
	if !equalStrings(names, []string{"Erntemaschinen", "Traktoren", "Anhänger"}) {
		t.Errorf("unexpected order %v", names)
	}
	if stats[1].Count != 3 || !near(stats[1].Cost, 9000) || !near(stats[1].DB, 0) {
		t.Errorf("unexpected Traktoren stats %+v", stats[1])
	}
	if !near(stats[0].Margin, -22.22) {
		t.Errorf("Erntemaschinen margin = %v, expected -22.22", stats[0].Margin)
	}
}

func TestProductGroupsLimit(t *testing.T) {
	ds := testutil.SampleDataset(t)
	stats := ProductGroups(ds.Machines, ByCount, 2)

	if len(stats) != 2 {
		t.Fatalf("expected 2 groups, got %+v", stats)
	}
	if stats[0].Name != "Häcksler" || stats[1].Name != "Standard" {
		t.Errorf("unexpected groups %+v", stats)
	}
}

func TestPareto(t *testing.T) {
	ds := testutil.SampleDataset(t)
	res := Pareto(ds.Machines, 0.8)

	if res.TotalCount != 2 {
		t.Errorf("TotalCount = %d, expected 2", res.TotalCount)
	}
	if got := vhNrs(res.Machines); !equalStrings(got, []string{"1004"}) {
		t.Errorf("Machines = %v, expected [1004]", got)
	}
	if !near(res.TotalCost, 6200) || !near(res.SelectedCost, 5000) {
		t.Errorf("unexpected costs %+v", res)
	}
	if !near(res.CountPercentage, 50) || !near(res.CostPercentage, 80.65) {
		t.Errorf("unexpected percentages %+v", res)
	}
	if res.SelectedCost < res.Share*res.TotalCost {
		t.Errorf("selected cost %v below target share of %v", res.SelectedCost, res.TotalCost)
	}
}

func TestParetoReachesShare(t *testing.T) {
	machines := []sheet.Machine{
		{VHNr: "a", CostYTD: 100},
		{VHNr: "b", CostYTD: 100},
		{VHNr: "c", CostYTD: 100},
		{VHNr: "d", CostYTD: 100},
		{VHNr: "e", CostYTD: 100},
		{VHNr: "revenue", CostYTD: 1000, RevenueYTD: 10},
	}

	res := Pareto(machines, 0)
	if len(res.Machines) != 4 {
		t.Errorf("expected 4 machines to reach 80%% of 500, got %d", len(res.Machines))
	}
	if res.Share != 0.8 {
		t.Errorf("expected default share 0.8, got %v", res.Share)
	}
}

func TestParetoEmpty(t *testing.T) {
	res := Pareto(nil, 0.8)
	if res.TotalCount != 0 || res.TotalCost != 0 || len(res.Machines) != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}
	if res.Machines == nil {
		t.Error("expected non-nil machine slice for JSON encoding")
	}
}
