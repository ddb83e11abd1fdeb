// Package sheet reads the machine master workbook into typed records.
//
// The workbook is a flat table: one row per machine, identifier and
// classification columns, one cost / revenue / DB column per month and the
// year-to-date aggregates. Only the header row defines the schema, so new
// months appear without code changes.
package sheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/agrof66/machine-dashboard/pkg/constants"
	"github.com/agrof66/machine-dashboard/pkg/mathutil"
	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

var (
	// ErrEmptySheet is returned when the workbook has no usable worksheet or rows.
	ErrEmptySheet = errors.New("worksheet is empty")

	// ErrMissingColumns is returned when required columns are absent.
	ErrMissingColumns = errors.New("missing required columns")

	// ErrUnsupportedFormat is returned for file types other than xlsx, xls and csv.
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// maxXLSRows bounds the legacy reader, which has no streaming API.
const maxXLSRows = 200000

// Machine is one row of the master workbook.
type Machine struct {
	VHNr          string             `json:"vhNr"`
	Code          string             `json:"code"`
	Description   string             `json:"description"`
	Branch        string             `json:"branch"`
	ProductFamily string             `json:"productFamily,omitempty"`
	ProductGroup  string             `json:"productGroup,omitempty"`
	CostYTD       float64            `json:"costYtd"`
	RevenueYTD    float64            `json:"revenueYtd"`
	DBYTD         float64            `json:"dbYtd"`
	MarginYTD     float64            `json:"marginYtd"`
	Cost          map[string]float64 `json:"-"`
	Revenue       map[string]float64 `json:"-"`
	DB            map[string]float64 `json:"-"`
}

// Label is the short chart label "VH-nr. | Code".
func (m Machine) Label() string {
	return m.VHNr + " | " + m.Code
}

// Dataset is a parsed workbook.
type Dataset struct {
	Machines    []Machine
	Months      []string
	Columns     []string
	HasBranch   bool
	HasProducts bool
	Source      string
}

// MissingColumnsError lists the required columns absent from a header.
type MissingColumnsError struct {
	Missing   []string
	Available []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingColumns.Error(), strings.Join(e.Missing, ", "))
}

func (e *MissingColumnsError) Unwrap() error {
	return ErrMissingColumns
}

// ValidateColumns returns the required columns missing from columns.
func ValidateColumns(columns []string) []string {
	present := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		present[strings.TrimSpace(c)] = struct{}{}
	}

	var missing []string
	for _, required := range constants.RequiredColumns {
		if _, ok := present[required]; !ok {
			missing = append(missing, required)
		}
	}
	return missing
}

// Parse reads the first worksheet of data. The filename extension selects
// the reader.
func Parse(data []byte, filename string) (*Dataset, error) {
	rows, raw, err := readRows(data, filename)
	if err != nil {
		return nil, err
	}
	parse := ParseNumber
	if raw {
		parse = parseRawNumber
	}
	ds, err := fromRows(rows, parse)
	if err != nil {
		return nil, err
	}
	ds.Source = filepath.Base(filename)
	return ds, nil
}

// readRows returns the rows of the first worksheet. raw is set when numeric
// cells hold unformatted values ("1234.567") rather than display text.
func readRows(data []byte, filename string) ([][]string, bool, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".xls":
		workbook, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
		if err != nil {
			return nil, false, fmt.Errorf("failed to open xls workbook: %w", err)
		}
		if workbook == nil || workbook.NumSheets() == 0 {
			return nil, false, ErrEmptySheet
		}
		first := workbook.GetSheet(0)
		if first == nil || first.MaxRow == 0 {
			return nil, false, ErrEmptySheet
		}
		// ReadAllCells lays the worksheets out back to back with MaxRow+1
		// rows each, so the first worksheet is the leading block.
		rows := workbook.ReadAllCells(maxXLSRows)
		if n := int(first.MaxRow) + 1; len(rows) > n {
			rows = rows[:n]
		}
		if len(rows) == 0 {
			return nil, false, ErrEmptySheet
		}
		return rows, false, nil
	case ".csv":
		reader := csv.NewReader(bytes.NewReader(data))
		reader.FieldsPerRecord = -1
		reader.LazyQuotes = true
		if sep := sniffSeparator(data); sep != ',' {
			reader.Comma = sep
		}
		rows, err := reader.ReadAll()
		if err != nil {
			return nil, false, fmt.Errorf("failed to read csv: %w", err)
		}
		if len(rows) == 0 {
			return nil, false, ErrEmptySheet
		}
		return rows, false, nil
	case ".xlsx", ".xlsm", "":
		file, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, false, fmt.Errorf("failed to open xlsx workbook: %w", err)
		}
		defer func() { _ = file.Close() }()

		sheetName := file.GetSheetName(0)
		if sheetName == "" {
			return nil, false, ErrEmptySheet
		}
		rows, err := file.GetRows(sheetName, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, false, fmt.Errorf("failed to read worksheet %s: %w", sheetName, err)
		}
		if len(rows) == 0 {
			return nil, false, ErrEmptySheet
		}
		return rows, true, nil
	default:
		return nil, false, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

// sniffSeparator picks ';' for exports from German Excel installations.
func sniffSeparator(data []byte) rune {
	line := data
	if idx := bytes.IndexByte(data, '\n'); idx >= 0 {
		line = data[:idx]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}

// FromRows builds a Dataset from a header row followed by data rows holding
// display text.
func FromRows(rows [][]string) (*Dataset, error) {
	return fromRows(rows, ParseNumber)
}

func fromRows(rows [][]string, parse func(string) float64) (*Dataset, error) {
	if len(rows) == 0 {
		return nil, ErrEmptySheet
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
	}

	if missing := ValidateColumns(header); len(missing) > 0 {
		return nil, &MissingColumnsError{Missing: missing, Available: header}
	}

	idx := indexColumns(header)
	ds := &Dataset{
		Columns:     header,
		Months:      Months(header),
		HasBranch:   idx.has(constants.ColumnBranch),
		HasProducts: idx.has(constants.ColumnFamily),
	}

	for _, row := range rows[1:] {
		m, ok := buildMachine(row, idx, ds.Months, parse)
		if !ok {
			continue
		}
		ds.Machines = append(ds.Machines, m)
	}

	return ds, nil
}

// Months extracts the month labels from "Kosten <month>" headers in header
// order, skipping the YTD aggregate.
func Months(header []string) []string {
	var months []string
	for _, h := range header {
		if strings.HasPrefix(h, constants.PrefixCost) && !strings.Contains(h, constants.MarkerYTD) {
			months = append(months, strings.TrimSpace(strings.TrimPrefix(h, constants.PrefixCost)))
		}
	}
	return months
}

type columnIndex map[string]int

func indexColumns(header []string) columnIndex {
	idx := make(columnIndex, len(header))
	for i, h := range header {
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	return idx
}

func (c columnIndex) has(name string) bool {
	_, ok := c[name]
	return ok
}

func (c columnIndex) text(row []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (c columnIndex) number(row []string, name string, parse func(string) float64) (float64, bool) {
	i, ok := c[name]
	if !ok || i >= len(row) {
		return 0, false
	}
	return parse(row[i]), true
}

func buildMachine(row []string, idx columnIndex, months []string, parse func(string) float64) (Machine, bool) {
	m := Machine{
		VHNr:          normalizeID(idx.text(row, constants.ColumnVHNr)),
		Code:          normalizeID(idx.text(row, constants.ColumnCode)),
		Description:   idx.text(row, constants.ColumnDescription),
		Branch:        idx.text(row, constants.ColumnBranch),
		ProductFamily: idx.text(row, constants.ColumnFamily),
		ProductGroup:  idx.text(row, constants.ColumnGroup),
		Cost:          make(map[string]float64, len(months)),
		Revenue:       make(map[string]float64, len(months)),
		DB:            make(map[string]float64, len(months)),
	}
	if m.Description == "" {
		m.Description = idx.text(row, constants.ColumnDescriptionDE)
	}

	m.CostYTD, _ = idx.number(row, constants.ColumnCostYTD, parse)
	m.RevenueYTD, _ = idx.number(row, constants.ColumnRevenueYTD, parse)
	m.DBYTD, _ = idx.number(row, constants.ColumnDBYTD, parse)
	if v, ok := idx.number(row, constants.ColumnMarginYTD, parse); ok {
		m.MarginYTD = v
	} else {
		m.MarginYTD = mathutil.Round(mathutil.Margin(m.DBYTD, m.RevenueYTD))
	}

	hasFigures := m.CostYTD != 0 || m.RevenueYTD != 0 || m.DBYTD != 0
	for _, month := range months {
		cost, _ := idx.number(row, constants.PrefixCost+month, parse)
		revenue, _ := idx.number(row, constants.PrefixRevenue+month, parse)
		db, _ := idx.number(row, constants.PrefixDB+month, parse)
		m.Cost[month] = cost
		m.Revenue[month] = revenue
		m.DB[month] = db
		if cost != 0 || revenue != 0 || db != 0 {
			hasFigures = true
		}
	}

	if m.VHNr == "" && !hasFigures {
		return Machine{}, false
	}
	return m, true
}

// normalizeID strips the ".0" spreadsheet tools append to numeric identifiers.
func normalizeID(v string) string {
	if strings.HasSuffix(v, ".0") {
		if _, err := strconv.ParseInt(strings.TrimSuffix(v, ".0"), 10, 64); err == nil {
			return strings.TrimSuffix(v, ".0")
		}
	}
	return v
}

// ParseNumber coerces display text to a number rounded to cents. Blank or
// unparseable cells yield 0. "1234.5", "1,234.50", the German "1.234,50"
// and grouped integers such as "1.234.567" are understood.
func ParseNumber(raw string) float64 {
	s := strings.TrimSpace(raw)
	s = strings.NewReplacer("€", "", "%", "", " ", "", "\u00a0", "").Replace(s)
	if s == "" || s == "-" {
		return 0
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") == 1 && len(s)-lastComma-1 <= 2 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastDot >= 0:
		if germanThousands(s) {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return mathutil.Round(v)
}

// parseRawNumber reads an unformatted xlsx value and falls back to
// ParseNumber for cells stored as text.
func parseRawNumber(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return ParseNumber(raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return mathutil.Round(v)
}

// germanThousands reports whether the dots in s group thousands: either
// several dots, or one dot followed by exactly three digits after a leading
// group of one to three digits that does not start with 0 ("12.500").
func germanThousands(s string) bool {
	digits := strings.TrimPrefix(s, "-")
	groups := strings.Split(digits, ".")
	if len(groups) < 2 {
		return false
	}
	head := groups[0]
	if head == "" || len(head) > 3 || !allDigits(head) {
		return false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 || !allDigits(g) {
			return false
		}
	}
	return len(groups) > 2 || head[0] != '0'
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
