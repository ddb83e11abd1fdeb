package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/agrof66/machine-dashboard/pkg/constants"
	"github.com/xuri/excelize/v2"
)

// XLSX renders t as a workbook with a single sheet.
func XLSX(t Table, opts Options) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	name := t.Sheet
	if name == "" {
		name = constants.ExportSheetName
	}
	if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]any, len(t.Headers))
	for i, h := range t.Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(name, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	for i, row := range t.Rows {
		r := make([]any, len(row))
		for j, v := range row {
			if str, ok := v.(string); ok {
				v = neutralize(str)
			}
			r[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(name, cell, &r); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	for col, width := range columnWidths(t) {
		colName, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(name, colName, colName, width); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	if opts.Watermark {
		mark := opts.watermark()
		cell, err := excelize.CoordinatesToCellName(1, len(t.Rows)+3)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellStr(name, cell, mark); err != nil {
			return nil, fmt.Errorf("failed to write watermark: %w", err)
		}
		if err := f.SetDocProps(&excelize.DocProperties{Creator: opts.User, Description: mark}); err != nil {
			return nil, fmt.Errorf("failed to set document properties: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// columnWidths is the longest cell of each column plus 2, capped.
func columnWidths(t Table) []float64 {
	widths := make([]float64, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = float64(utf8.RuneCountInString(h))
	}
	for _, row := range t.Rows {
		for i, v := range row {
			if i >= len(widths) {
				break
			}
			if n := float64(utf8.RuneCountInString(cellText(v))); n > widths[i] {
				widths[i] = n
			}
		}
	}
	for i := range widths {
		widths[i] += 2
		if widths[i] > constants.MaxColumnWidth {
			widths[i] = constants.MaxColumnWidth
		}
	}
	return widths
}

// CSV renders t as comma separated UTF-8.
func CSV(t Table, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(t.Headers); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range t.Rows {
		record := make([]string, len(row))
		for i, v := range row {
			record[i] = cellText(v)
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write row: %w", err)
		}
	}
	if opts.Watermark {
		if err := w.Write([]string{opts.watermark()}); err != nil {
			return nil, fmt.Errorf("failed to write watermark: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func cellText(v any) string {
	switch x := v.(type) {
	case string:
		return neutralize(x)
	case float64:
		return strconv.FormatFloat(x, 'f', 2, 64)
	case int:
		return strconv.Itoa(x)
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}

// neutralize keeps spreadsheet programs from evaluating a text cell as a
// formula.
func neutralize(s string) string {
	if s != "" && strings.ContainsRune("=+-@\t\r", rune(s[0])) {
		return "'" + s
	}
	return s
}
