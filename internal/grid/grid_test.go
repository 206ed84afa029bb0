package grid

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

func TestLoadCSV_SniffsDelimiter(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "comma",
			input: "date,description,amount\n01/02/2024,Coffee,-3.50\n",
			want:  []string{"date", "description", "amount"},
		},
		{
			name:  "semicolon with decimal commas",
			input: "date;description;amount\n01.02.2024;Coffee;-3,50\n02.02.2024;Lunch;-12,00\n",
			want:  []string{"date", "description", "amount"},
		},
		{
			name:  "tab",
			input: "date\tdescription\tamount\n01/02/2024\tCoffee\t-3.50\n",
			want:  []string{"date", "description", "amount"},
		},
		{
			name:  "byte order mark",
			input: "\xef\xbb\xbfdate,description,amount\n",
			want:  []string{"date", "description", "amount"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := LoadCSV([]byte(tt.input))
			if err != nil {
				t.Fatalf("LoadCSV() error = %v", err)
			}
			if len(g.Rows) == 0 {
				t.Fatal("expected rows, got none")
			}
			header := g.Rows[0]
			if len(header) != len(tt.want) {
				t.Fatalf("header has %d cells, want %d", len(header), len(tt.want))
			}
			for i, w := range tt.want {
				if header[i].String() != w {
					t.Errorf("header[%d] = %q, want %q", i, header[i].String(), w)
				}
			}
		})
	}
}

func TestLoadCSV_Empty(t *testing.T) {
	_, err := LoadCSV([]byte("  \n"))
	if !errors.Is(err, ErrEmptyWorkbook) {
		t.Errorf("expected ErrEmptyWorkbook, got %v", err)
	}
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	_, err := Load("statement.pdf", []byte("%PDF"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestLoadXLSX_TypesCellsAndSkipsSummary(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Transactions"
	f.SetSheetName("Sheet1", sheet)
	f.SetCellValue(sheet, "A1", "Date")
	f.SetCellValue(sheet, "B1", "Description")
	f.SetCellValue(sheet, "C1", "Amount")
	f.SetCellValue(sheet, "A2", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
	f.SetCellValue(sheet, "B2", "Grocer")
	f.SetCellValue(sheet, "C2", -42.5)

	if _, err := f.NewSheet("Summary"); err != nil {
		t.Fatalf("NewSheet: %v", err)
	}
	f.SetCellValue("Summary", "A1", "Total")

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("writing workbook: %v", err)
	}

	grids, err := LoadXLSX(buf.Bytes())
	if err != nil {
		t.Fatalf("LoadXLSX() error = %v", err)
	}
	if len(grids) != 1 {
		t.Fatalf("expected 1 grid, got %d", len(grids))
	}
	g := grids[0]
	if g.Name != sheet {
		t.Errorf("grid name = %q, want %q", g.Name, sheet)
	}
	if len(g.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(g.Rows))
	}

	date := g.Rows[1][0]
	if date.Kind != Date {
		t.Fatalf("A2 kind = %v, want Date", date.Kind)
	}
	if y, m, d := date.Time.Date(); y != 2024 || m != time.March || d != 15 {
		t.Errorf("A2 = %v, want 2024-03-15", date.Time)
	}

	amount := g.Rows[1][2]
	if amount.Kind != Number || amount.Number != -42.5 {
		t.Errorf("C2 = %+v, want Number -42.5", amount)
	}
	if g.Rows[1][1].Kind != Text {
		t.Errorf("B2 kind = %v, want Text", g.Rows[1][1].Kind)
	}
}

func TestLoadXLSX_NonFiniteTextStaysText(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	f.SetCellValue("Sheet1", "A1", "Amount")
	f.SetCellValue("Sheet1", "A2", -10)
	f.SetCellValue("Sheet1", "A3", "NaN")
	f.SetCellValue("Sheet1", "A4", "Inf")
	f.SetCellValue("Sheet1", "A5", "-Infinity")

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("writing workbook: %v", err)
	}

	grids, err := LoadXLSX(buf.Bytes())
	if err != nil {
		t.Fatalf("LoadXLSX() error = %v", err)
	}
	rows := grids[0].Rows
	if len(rows) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(rows))
	}
	if rows[1][0].Kind != Number || rows[1][0].Number != -10 {
		t.Errorf("A2 = %+v, want Number -10", rows[1][0])
	}
	for _, r := range rows[2:] {
		if r[0].Kind != Text {
			t.Errorf("%q kind = %v, want Text", r[0].Text, r[0].Kind)
		}
	}
}

func TestRelevantSheets_KeepsFirstWhenAllSummary(t *testing.T) {
	got := relevantSheets([]string{"Summary", "סיכום"})
	if len(got) != 1 || got[0] != "Summary" {
		t.Errorf("relevantSheets() = %v, want [Summary]", got)
	}
}

func TestCell_String(t *testing.T) {
	tests := []struct {
		cell Cell
		want string
	}{
		{Cell{}, ""},
		{TextCell("  "), ""},
		{NumberCell(1234.5), "1234.5"},
		{NumberCell(-3), "-3"},
		{DateCell(time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)), "2025-01-02"},
	}
	for _, tt := range tests {
		if got := tt.cell.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
