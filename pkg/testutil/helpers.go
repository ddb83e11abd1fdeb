// Package testutil provides common utility functions for testing.
package testutil

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/agrof66/machine-dashboard/internal/sheet"
	"github.com/xuri/excelize/v2"
)

// SampleHeader is the header of the sample workbook: three months, YTD
// aggregates and product classification.
var SampleHeader = []string{
	"VH-nr.", "Code", "Omschrijving", "Niederlassung", "1. Product Family", "2. Product Group",
	"Kosten Jan 25", "Umsätze Jan 25", "DB Jan 25",
	"Kosten Feb 25", "Umsätze Feb 25", "DB Feb 25",
	"Kosten Mar 25", "Umsätze Mar 25", "DB Mar 25",
	"Kosten YTD", "Umsätze YTD", "DB YTD", "Marge YTD %",
}

// SampleRows returns the header plus six machines across three branches.
//
//	M1 Leipzig  tractor  revenue 6000 cost 4500 DB 1500
//	M2 Leipzig  tractor  revenue 3000 cost 3300 DB -300
//	M3 Peine    harvest  revenue 9000 cost 6000 DB 3000
//	M4 Peine    harvest  cost only 5000
//	M5 Hamburg  tractor  cost only 1200
//	M6 Hamburg  trailer  no activity
func SampleRows() [][]string {
	return [][]string{
		SampleHeader,
		machineRow("1001", "T-100", "Traktor 100", "Leipzig", "Traktoren", "Standard",
			[3][3]float64{{1500, 2000, 500}, {1500, 2000, 500}, {1500, 2000, 500}}),
		machineRow("1002", "T-200", "Traktor 200", "Leipzig", "Traktoren", "Kompakt",
			[3][3]float64{{1100, 1000, -100}, {1100, 1000, -100}, {1100, 1000, -100}}),
		machineRow("1003", "H-300", "Häcksler 300", "Peine", "Erntemaschinen", "Häcksler",
			[3][3]float64{{2000, 3000, 1000}, {2000, 3000, 1000}, {2000, 3000, 1000}}),
		machineRow("1004", "H-400", "Häcksler 400", "Peine", "Erntemaschinen", "Häcksler",
			[3][3]float64{{2000, 0, -2000}, {2000, 0, -2000}, {1000, 0, -1000}}),
		machineRow("1005", "T-500", "Traktor 500", "Hamburg", "Traktoren", "Standard",
			[3][3]float64{{400, 0, -400}, {400, 0, -400}, {400, 0, -400}}),
		machineRow("1006", "A-600", "Anhänger 600", "Hamburg", "Anhänger", "Kipper",
			[3][3]float64{{0, 0, 0}, {0, 0, 0}, {0, 0, 0}}),
	}
}

func machineRow(vh, code, desc, branch, family, group string, months [3][3]float64) []string {
	row := []string{vh, code, desc, branch, family, group}
	var cost, revenue, db float64
	for _, m := range months {
		row = append(row, num(m[0]), num(m[1]), num(m[2]))
		cost += m[0]
		revenue += m[1]
		db += m[2]
	}
	margin := 0.0
	if revenue != 0 {
		margin = db / revenue * 100
	}
	return append(row, num(cost), num(revenue), num(db), num(margin))
}

func num(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// SampleDataset parses SampleRows.
func SampleDataset(t testing.TB) *sheet.Dataset {
	t.Helper()
	ds, err := sheet.FromRows(SampleRows())
	if err != nil {
		t.Fatalf("failed to build sample dataset: %v", err)
	}
	ds.Source = "sample.xlsx"
	return ds
}

// WorkbookBytes renders rows into an in-memory xlsx workbook.
func WorkbookBytes(t testing.TB, rows [][]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheetName := f.GetSheetName(0)
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("failed to compute cell name: %v", err)
		}
		if err := f.SetSheetRow(sheetName, cell, &cells); err != nil {
			t.Fatalf("failed to write row %d: %v", i, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("failed to write workbook: %v", err)
	}
	return buf.Bytes()
}

// SampleWorkbook is SampleRows rendered as xlsx.
func SampleWorkbook(t testing.TB) []byte {
	return WorkbookBytes(t, SampleRows())
}
