package grid

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrUnsupportedFormat is returned by Load for file types the loader cannot read.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrEmptyWorkbook is returned when no sheet holds any data.
	ErrEmptyWorkbook = errors.New("no data found in file")
)

// CellKind identifies the type of value held by a Cell.
type CellKind int

const (
	Blank CellKind = iota
	Text
	Number
	Date
)

// Cell is a single heterogeneous value read from a sheet.
type Cell struct {
	Kind   CellKind
	Text   string    // set for Text
	Number float64   // set for Number
	Time   time.Time // set for Date
}

// TextCell returns a Text cell, or a Blank cell when s holds only whitespace.
func TextCell(s string) Cell {
	if strings.TrimSpace(s) == "" {
		return Cell{Kind: Blank}
	}
	return Cell{Kind: Text, Text: s}
}

// NumberCell returns a Number cell.
func NumberCell(v float64) Cell {
	return Cell{Kind: Number, Number: v}
}

// DateCell returns a Date cell.
func DateCell(t time.Time) Cell {
	return Cell{Kind: Date, Time: t}
}

// IsEmpty reports whether the cell carries no value.
func (c Cell) IsEmpty() bool {
	switch c.Kind {
	case Blank:
		return true
	case Text:
		return strings.TrimSpace(c.Text) == ""
	default:
		return false
	}
}

// String renders the cell as text. Numbers use the shortest exact
// representation, dates use ISO format.
func (c Cell) String() string {
	switch c.Kind {
	case Text:
		return c.Text
	case Number:
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	case Date:
		return c.Time.Format("2006-01-02")
	default:
		return ""
	}
}

// Grid is one sheet of raw cells with no assumed header.
type Grid struct {
	Name string
	Rows [][]Cell
}

// Width returns the length of the longest row.
func (g Grid) Width() int {
	w := 0
	for _, r := range g.Rows {
		if len(r) > w {
			w = len(r)
		}
	}
	return w
}

// FromStrings builds a grid of Text/Blank cells. Used by callers that already
// hold decoded text, and by tests.
func FromStrings(name string, rows [][]string) Grid {
	g := Grid{Name: name, Rows: make([][]Cell, len(rows))}
	for i, r := range rows {
		cells := make([]Cell, len(r))
		for j, s := range r {
			cells[j] = TextCell(s)
		}
		g.Rows[i] = cells
	}
	return g
}

// Load reads every usable sheet of a statement file. The format is chosen
// from the file extension.
func Load(filename string, data []byte) ([]Grid, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return LoadXLSX(data)
	case ".csv", ".txt":
		g, err := LoadCSV(data)
		if err != nil {
			return nil, err
		}
		g.Name = filename
		return []Grid{g}, nil
	default:
		return nil, fmt.Errorf("Load: %q: %w", filename, ErrUnsupportedFormat)
	}
}
