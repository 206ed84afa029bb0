// Package export writes transaction collections to spreadsheet files.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/xuri/excelize/v2"
)

// DateLayout is the export date format (dd/mm/yyyy).
const DateLayout = "02/01/2006"

// Filename is the suggested attachment name for exports.
const Filename = "transactions.xlsx"

// ContentType is the MIME type of the generated workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const headerColor = "667EEA"

// Options controls the sheet layout.
type Options struct {
	SheetName   string
	Headers     [4]string
	RightToLeft bool
}

// DefaultOptions returns an English, left-to-right layout.
func DefaultOptions() Options {
	return Options{
		SheetName: "Transactions",
		Headers:   [4]string{"Date", "Description", "Category", "Amount"},
	}
}

var columnWidths = []struct {
	col   string
	width float64
}{
	{"A", 12}, {"B", 40}, {"C", 20}, {"D", 15},
}

// WriteXLSX writes one row per transaction: date, description, category and
// absolute amount, under a styled header row.
func WriteXLSX(w io.Writer, txs []domain.Transaction, opts Options) error {
	if opts.SheetName == "" {
		opts.SheetName = DefaultOptions().SheetName
	}
	if opts.Headers == ([4]string{}) {
		opts.Headers = DefaultOptions().Headers
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := opts.SheetName
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("WriteXLSX: rename sheet: %w", err)
	}

	align := "left"
	if opts.RightToLeft {
		align = "right"
		rtl := true
		if err := f.SetSheetView(sheet, 0, &excelize.ViewOptions{RightToLeft: &rtl}); err != nil {
			return fmt.Errorf("WriteXLSX: sheet view: %w", err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{headerColor}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: align, Vertical: "center"},
		Border:    thinBorder(),
	})
	if err != nil {
		return fmt.Errorf("WriteXLSX: header style: %w", err)
	}
	cellStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: align, Vertical: "center"},
		Border:    thinBorder(),
	})
	if err != nil {
		return fmt.Errorf("WriteXLSX: cell style: %w", err)
	}

	header := make([]interface{}, len(opts.Headers))
	for i, h := range opts.Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("WriteXLSX: header row: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", "D1", headerStyle); err != nil {
		return fmt.Errorf("WriteXLSX: header style: %w", err)
	}

	for i, tx := range txs {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("WriteXLSX: row %d: %w", i, err)
		}
		row := []interface{}{
			tx.Date.In(time.UTC).Format(DateLayout),
			tx.Description,
			tx.Category,
			tx.AbsoluteAmount,
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("WriteXLSX: row %d: %w", i, err)
		}
	}
	if len(txs) > 0 {
		if err := f.SetCellStyle(sheet, "A2", fmt.Sprintf("D%d", len(txs)+1), cellStyle); err != nil {
			return fmt.Errorf("WriteXLSX: cell style: %w", err)
		}
	}

	for _, cw := range columnWidths {
		if err := f.SetColWidth(sheet, cw.col, cw.col, cw.width); err != nil {
			return fmt.Errorf("WriteXLSX: column width: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("WriteXLSX: write workbook: %w", err)
	}
	return nil
}

func thinBorder() []excelize.Border {
	var borders []excelize.Border
	for _, side := range []string{"left", "top", "right", "bottom"} {
		borders = append(borders, excelize.Border{Type: side, Color: "000000", Style: 1})
	}
	return borders
}
