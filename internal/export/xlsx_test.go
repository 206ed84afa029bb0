package export

import (
	"bytes"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteXLSX(t *testing.T) {
	txs := []domain.Transaction{
		domain.NewTransaction(civil.Date{Year: 2024, Month: 3, Day: 5}, nil, -1234.5, "Grocer", "Food"),
		domain.NewTransaction(civil.Date{Year: 2024, Month: 12, Day: 31}, nil, 80, "Refund", "Fun"),
	}

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, txs, DefaultOptions()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Transactions"}, f.GetSheetList())

	rows, err := f.GetRows("Transactions")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{"Date", "Description", "Category", "Amount"}, rows[0])
	assert.Equal(t, []string{"05/03/2024", "Grocer", "Food", "1234.5"}, rows[1])
	assert.Equal(t, []string{"31/12/2024", "Refund", "Fun", "80"}, rows[2])

	styleID, err := f.GetCellStyle("Transactions", "B1")
	require.NoError(t, err)
	style, err := f.GetStyle(styleID)
	require.NoError(t, err)
	assert.True(t, style.Font.Bold)
}

func TestWriteXLSX_EmptyAndCustomLayout(t *testing.T) {
	opts := Options{
		SheetName:   "עסקאות",
		Headers:     [4]string{"תאריך", "תיאור", "קטגוריה", "סכום"},
		RightToLeft: true,
	}

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, nil, opts))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("עסקאות")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "סכום", rows[0][3])
}
