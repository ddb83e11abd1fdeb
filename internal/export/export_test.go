package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/agrof66/machine-dashboard/internal/dashboard"
	"github.com/agrof66/machine-dashboard/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var exportTime = time.Date(2025, 4, 2, 9, 5, 0, 0, time.UTC)

func TestMachineTable(t *testing.T) {
	ds := testutil.SampleDataset(t)

	table := MachineTable(ds.Machines[:2], true)
	assert.Equal(t, "Daten", table.Sheet)
	assert.Equal(t, []string{
		"VH-nr.", "Code", "Beschreibung", "Niederlassung", "1. Product Family", "2. Product Group",
		"Kosten YTD", "Umsätze YTD", "DB YTD", "Marge YTD %",
	}, table.Headers)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "1001", table.Rows[0][0])
	assert.Equal(t, 1500.0, table.Rows[0][8])

	plain := MachineTable(ds.Machines, false)
	assert.Len(t, plain.Headers, 8)
}

func TestParetoTable(t *testing.T) {
	ds := testutil.SampleDataset(t)
	table := ParetoTable(dashboard.Pareto(ds.Machines, 1))

	require.Len(t, table.Rows, 2)
	assert.Equal(t, "1004", table.Rows[0][0])
	assert.InDelta(t, 80.65, table.Rows[0][4].(float64), 0.01)
	assert.InDelta(t, 100.0, table.Rows[1][4].(float64), 0.01)
}

func TestRedact(t *testing.T) {
	ds := testutil.SampleDataset(t)
	table := Redact(MachineTable(ds.Machines, false), []string{"DB YTD", "Marge YTD %"})

	assert.Equal(t, []string{"VH-nr.", "Code", "Beschreibung", "Niederlassung", "Kosten YTD", "Umsätze YTD"}, table.Headers)
	for _, row := range table.Rows {
		assert.Len(t, row, 6)
	}

	same := Redact(table, nil)
	assert.Equal(t, table, same)
}

func TestCSV(t *testing.T) {
	ds := testutil.SampleDataset(t)
	table := MonthlyTable(dashboard.Monthly(ds.Months, ds.Machines))

	data, err := CSV(table, Options{Watermark: true, User: "admin@colle.eu", Now: exportTime})
	require.NoError(t, err)

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 5)
	assert.Equal(t, "Monat", records[0][0])
	assert.Equal(t, []string{"Jan 25", "7000.00", "6000.00", "-1000.00", "-16.67", "6000.00", "-1000.00"}, records[1])
	assert.Equal(t, []string{"Exportiert von admin@colle.eu am 02.04.2025 09:05"}, records[4])

	plain, err := CSV(table, Options{})
	require.NoError(t, err)
	assert.NotContains(t, string(plain), "Exportiert")
}

func TestXLSX(t *testing.T) {
	ds := testutil.SampleDataset(t)
	table := ProductTable(dashboard.ProductFamilies(ds.Machines, dashboard.ByRevenue), "Produktfamilie")

	data, err := XLSX(table, Options{Watermark: true, User: "admin@colle.eu", Now: exportTime})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{"Daten"}, f.GetSheetList())

	rows, err := f.GetRows("Daten")
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.Equal(t, "Produktfamilie", rows[0][0])
	assert.Equal(t, "Erntemaschinen", rows[1][0])
	assert.True(t, strings.HasPrefix(rows[5][0], "Exportiert von admin@colle.eu"))

	assert.Equal(t, "11000", rows[1][2])

	width, err := f.GetColWidth("Daten", "A")
	require.NoError(t, err)
	assert.InDelta(t, float64(len("Erntemaschinen")+2), width, 0.01)

	props, err := f.GetDocProps()
	require.NoError(t, err)
	assert.Equal(t, "admin@colle.eu", props.Creator)
}

func TestFormulaTextIsNeutralized(t *testing.T) {
	table := Table{
		Headers: []string{"Beschreibung", "Niederlassung", "DB"},
		Rows: [][]any{
			{"=HYPERLINK(\"http://x\")", "+Peine", -300.0},
			{"-Rabatt", "@SUM(A1)", 12.5},
			{"Traktor 100", "Leipzig", 0.0},
		},
	}

	data, err := CSV(table, Options{})
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"'=HYPERLINK(\"http://x\")", "'+Peine", "-300.00"}, records[1])
	assert.Equal(t, []string{"'-Rabatt", "'@SUM(A1)", "12.50"}, records[2])
	assert.Equal(t, []string{"Traktor 100", "Leipzig", "0.00"}, records[3])

	data, err = XLSX(table, Options{})
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	formula, err := f.GetCellFormula("Daten", "A2")
	require.NoError(t, err)
	assert.Empty(t, formula)
	rows, err := f.GetRows("Daten")
	require.NoError(t, err)
	assert.Equal(t, "'=HYPERLINK(\"http://x\")", rows[1][0])
	assert.Equal(t, "'@SUM(A1)", rows[2][1])
	assert.Equal(t, "-300", rows[1][2])
}

func TestColumnWidthCap(t *testing.T) {
	table := Table{Headers: []string{"Kurz"}, Rows: [][]any{{strings.Repeat("x", 80)}}}
	assert.Equal(t, []float64{50}, columnWidths(table))
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "top_Leipzig_20250402.xlsx", Filename("top", "Leipzig", exportTime, "xlsx"))
	assert.Equal(t, "machines_Gesamt_20250402.csv", Filename("machines", "", exportTime, ".csv"))
	assert.Equal(t, "pareto_Bad_Oeynhausen_20250402.csv", Filename("pareto", "Bad Oeynhausen", exportTime, "csv"))
}
