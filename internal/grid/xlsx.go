package grid

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// SummarySheetNames lists sheet names that hold totals rather than
// transactions. They are skipped unless nothing else is left.
var SummarySheetNames = []string{"סיכום", "Summary", "תקציר"}

// Built-in number formats that render a serial number as a date or date-time.
var dateNumFmts = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 18: true, 19: true,
	20: true, 21: true, 22: true, 45: true, 46: true, 47: true,
}

// LoadXLSX reads all relevant sheets of an XLSX workbook into grids.
func LoadXLSX(data []byte) ([]Grid, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("LoadXLSX: opening workbook: %w", err)
	}
	defer f.Close()

	sheets := relevantSheets(f.GetSheetList())

	var grids []Grid
	for _, sheet := range sheets {
		g, err := readSheet(f, sheet)
		if err != nil {
			// One unreadable sheet should not sink the whole workbook.
			continue
		}
		if len(g.Rows) == 0 {
			continue
		}
		grids = append(grids, g)
	}

	if len(grids) == 0 {
		return nil, fmt.Errorf("LoadXLSX: %w", ErrEmptyWorkbook)
	}
	return grids, nil
}

func relevantSheets(all []string) []string {
	var out []string
	for _, s := range all {
		if !isSummarySheet(s) {
			out = append(out, s)
		}
	}
	if len(out) == 0 && len(all) > 0 {
		return all[:1]
	}
	return out
}

func isSummarySheet(name string) bool {
	name = strings.TrimSpace(name)
	for _, s := range SummarySheetNames {
		if name == s {
			return true
		}
	}
	return false
}

func readSheet(f *excelize.File, sheet string) (Grid, error) {
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return Grid{}, fmt.Errorf("readSheet %q: %w", sheet, err)
	}

	styles := make(map[int]bool) // style index -> renders as date
	g := Grid{Name: sheet, Rows: make([][]Cell, 0, len(rows))}

	for i, row := range rows {
		cells := make([]Cell, len(row))
		for j, raw := range row {
			cells[j] = typedCell(f, sheet, i, j, raw, styles)
		}
		g.Rows = append(g.Rows, cells)
	}

	// Trailing all-blank rows carry no information.
	for len(g.Rows) > 0 && rowIsBlank(g.Rows[len(g.Rows)-1]) {
		g.Rows = g.Rows[:len(g.Rows)-1]
	}
	return g, nil
}

func typedCell(f *excelize.File, sheet string, row, col int, raw string, styles map[int]bool) Cell {
	if strings.TrimSpace(raw) == "" {
		return Cell{Kind: Blank}
	}

	// ParseFloat also accepts "NaN" and "Inf", which are text in a statement.
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return TextCell(raw)
	}

	axis, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return NumberCell(v)
	}
	if isDateStyled(f, sheet, axis, styles) {
		if t, err := excelize.ExcelDateToTime(v, false); err == nil {
			return DateCell(t)
		}
	}
	return NumberCell(v)
}

func isDateStyled(f *excelize.File, sheet, axis string, cache map[int]bool) bool {
	idx, err := f.GetCellStyle(sheet, axis)
	if err != nil || idx == 0 {
		return false
	}
	if isDate, ok := cache[idx]; ok {
		return isDate
	}

	isDate := false
	if style, err := f.GetStyle(idx); err == nil && style != nil {
		if dateNumFmts[style.NumFmt] {
			isDate = true
		} else if style.CustomNumFmt != nil {
			isDate = looksLikeDateFormat(*style.CustomNumFmt)
		}
	}
	cache[idx] = isDate
	return isDate
}

// looksLikeDateFormat reports whether a custom number format renders a date:
// it must reference a year or a day and must not be a plain numeric mask.
func looksLikeDateFormat(format string) bool {
	f := strings.ToLower(format)
	return strings.Contains(f, "yy") || strings.Contains(f, "dd") || strings.Contains(f, "d/") || strings.Contains(f, "d.")
}

func rowIsBlank(row []Cell) bool {
	for _, c := range row {
		if !c.IsEmpty() {
			return false
		}
	}
	return true
}
