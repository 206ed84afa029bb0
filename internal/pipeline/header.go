package pipeline

import (
	"fmt"
	"strings"

	"github.com/dvloznov/statement-insights/internal/grid"
)

// Table is a sheet after header promotion and junk-row removal. Every row
// has exactly len(Columns) cells.
type Table struct {
	Sheet   string
	Columns []string
	Rows    [][]grid.Cell
}

// ColumnIndex returns the index of the column with the exact name, or -1.
func (t Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns the cells of column i.
func (t Table) Column(i int) []grid.Cell {
	out := make([]grid.Cell, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row[i]
	}
	return out
}

// DetectHeaderRow returns the index of the first row within the lookahead
// window that mentions enough header keywords, and whether one was found.
func DetectHeaderRow(g grid.Grid, cfg DetectionConfig) (int, bool) {
	limit := min(cfg.HeaderLookahead, len(g.Rows))
	for i := 0; i < limit; i++ {
		if headerScore(g.Rows[i], cfg.HeaderKeywords) >= cfg.HeaderMinMatches {
			return i, true
		}
	}
	return 0, false
}

func headerScore(row []grid.Cell, keywords []string) int {
	var texts []string
	for _, c := range row {
		if !c.IsEmpty() {
			texts = append(texts, strings.ToLower(strings.TrimSpace(c.String())))
		}
	}
	joined := strings.Join(texts, " ")

	matches := 0
	for _, k := range keywords {
		if strings.Contains(joined, strings.ToLower(k)) {
			matches++
		}
	}
	return matches
}

// ClassifyGrid promotes the header row, drops summary and near-empty rows,
// and removes columns that hold no data. It never fails; an empty grid
// yields an empty table.
func ClassifyGrid(g grid.Grid, cfg DetectionConfig) Table {
	t := Table{Sheet: g.Name}
	if len(g.Rows) == 0 {
		return t
	}

	headerIdx, _ := DetectHeaderRow(g, cfg)
	width := g.Width()

	t.Columns = make([]string, width)
	header := g.Rows[headerIdx]
	for i := range t.Columns {
		name := ""
		if i < len(header) {
			name = strings.TrimSpace(header[i].String())
		}
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		t.Columns[i] = name
	}

	for _, row := range g.Rows[headerIdx+1:] {
		padded := padRow(row, width)
		if isJunkRow(padded, cfg) {
			continue
		}
		t.Rows = append(t.Rows, padded)
	}

	return dropEmptyColumns(t)
}

func padRow(row []grid.Cell, width int) []grid.Cell {
	out := make([]grid.Cell, width)
	copy(out, row)
	return out
}

func isJunkRow(row []grid.Cell, cfg DetectionConfig) bool {
	empty := 0
	for _, c := range row {
		if c.IsEmpty() {
			empty++
			continue
		}
		text := strings.ToLower(c.String())
		for _, k := range cfg.SummaryKeywords {
			if strings.Contains(text, strings.ToLower(k)) {
				return true
			}
		}
	}
	return float64(empty) > float64(len(row))*cfg.MaxEmptyRatio
}

func dropEmptyColumns(t Table) Table {
	if len(t.Rows) == 0 {
		return t
	}

	var keep []int
	for i := range t.Columns {
		for _, row := range t.Rows {
			if !row[i].IsEmpty() {
				keep = append(keep, i)
				break
			}
		}
	}
	if len(keep) == len(t.Columns) {
		return t
	}

	out := Table{Sheet: t.Sheet, Columns: make([]string, len(keep)), Rows: make([][]grid.Cell, len(t.Rows))}
	for j, i := range keep {
		out.Columns[j] = t.Columns[i]
	}
	for r, row := range t.Rows {
		cells := make([]grid.Cell, len(keep))
		for j, i := range keep {
			cells[j] = row[i]
		}
		out.Rows[r] = cells
	}
	return out
}
