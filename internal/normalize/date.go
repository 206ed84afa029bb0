package normalize

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-insights/internal/grid"
)

// DateLayouts are tried in order over a whole column. A row parsed by an
// earlier layout is never re-parsed by a later one.
var DateLayouts = []string{
	"2-1-2006",
	"2/1/2006",
	"2006-1-2",
	"2.1.2006",
	"2006/1/2",
	"1/2/2006",
}

// fallbackLayouts read the day before the month wherever that is ambiguous.
var fallbackLayouts = []string{
	"2/1/06",
	"2-1-06",
	"2.1.06",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2.1.2006 15:04",
	"2-Jan-2006",
	"2-Jan-06",
	"2 Jan 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"20060102",
	time.RFC3339,
}

// ParseDates parses a column of cells. Date cells pass through unchanged.
// Unparsed entries are returned with Defaulted set and a zero Value.
func ParseDates(cells []grid.Cell) []Result[civil.Date] {
	out := make([]Result[civil.Date], len(cells))
	pending := make([]int, 0, len(cells))

	for i, c := range cells {
		out[i].Defaulted = true
		switch c.Kind {
		case grid.Date:
			out[i] = Result[civil.Date]{Value: civil.DateOf(c.Time)}
		case grid.Text, grid.Number:
			pending = append(pending, i)
		}
	}

	for _, layout := range DateLayouts {
		pending = parsePending(cells, out, pending, layout)
		if len(pending) == 0 {
			return out
		}
	}
	for _, layout := range fallbackLayouts {
		pending = parsePending(cells, out, pending, layout)
		if len(pending) == 0 {
			break
		}
	}
	return out
}

// ParseDate parses a single cell.
func ParseDate(c grid.Cell) Result[civil.Date] {
	return ParseDates([]grid.Cell{c})[0]
}

func parsePending(cells []grid.Cell, out []Result[civil.Date], pending []int, layout string) []int {
	remaining := pending[:0]
	for _, i := range pending {
		s := strings.TrimSpace(cells[i].String())
		t, err := time.Parse(layout, s)
		if err != nil {
			remaining = append(remaining, i)
			continue
		}
		out[i] = Result[civil.Date]{Value: civil.DateOf(t)}
	}
	return remaining
}
