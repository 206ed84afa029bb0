package grid

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

var candidateDelimiters = []rune{',', ';', '\t', '|'}

// LoadCSV reads a delimited text file into a single grid. The input must
// already be UTF-8; a leading byte-order mark is removed.
func LoadCSV(data []byte) (Grid, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(data)) == 0 {
		return Grid{}, fmt.Errorf("LoadCSV: %w", ErrEmptyWorkbook)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffDelimiter(data)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	var g Grid
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Malformed lines are skipped, same as blank ones.
			continue
		}
		cells := make([]Cell, len(record))
		for i, s := range record {
			cells[i] = TextCell(s)
		}
		g.Rows = append(g.Rows, cells)
	}

	if len(g.Rows) == 0 {
		return Grid{}, fmt.Errorf("LoadCSV: %w", ErrEmptyWorkbook)
	}
	return g, nil
}

// sniffDelimiter picks the delimiter that splits the first lines into the
// most consistent, non-trivial number of fields. Comma wins ties.
func sniffDelimiter(data []byte) rune {
	lines := strings.Split(string(data), "\n")
	if len(lines) > 20 {
		lines = lines[:20]
	}

	best := ','
	bestScore := 0
	for _, d := range candidateDelimiters {
		counts := make(map[int]int)
		for _, line := range lines {
			if strings.TrimSpace(line) == "" {
				continue
			}
			if n := strings.Count(line, string(d)); n > 0 {
				counts[n]++
			}
		}
		// Score: how many lines agree on the most common non-zero count.
		score := 0
		for _, c := range counts {
			if c > score {
				score = c
			}
		}
		if score > bestScore {
			best, bestScore = d, score
		}
	}
	return best
}
