package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionRow is one archived canonical transaction.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED
	UploadID      string `bigquery:"upload_id"`      // REQUIRED
	SessionID     string `bigquery:"session_id"`     // NULLABLE

	TransactionDate civil.Date        `bigquery:"transaction_date"` // REQUIRED
	BillingDate     bigquery.NullDate `bigquery:"billing_date"`     // NULLABLE

	Amount         *big.Rat `bigquery:"amount"`          // REQUIRED NUMERIC
	AbsoluteAmount *big.Rat `bigquery:"absolute_amount"` // REQUIRED NUMERIC

	Description string `bigquery:"description"` // REQUIRED
	Category    string `bigquery:"category"`    // REQUIRED

	Month   string `bigquery:"month"`   // REQUIRED, MM/YYYY
	Weekday int64  `bigquery:"weekday"` // REQUIRED, 0 = Monday

	RowIndex int64 `bigquery:"row_index"` // REQUIRED, position within the upload

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

// NewTransactionRow converts a canonical transaction for archiving. Amounts
// are stored as NUMERIC rounded to cents.
func NewTransactionRow(uploadID, sessionID string, index int, tx domain.Transaction, created time.Time) *TransactionRow {
	row := &TransactionRow{
		TransactionID:   uuid.NewString(),
		UploadID:        uploadID,
		SessionID:       sessionID,
		TransactionDate: tx.Date,
		Amount:          numeric(tx.Amount),
		AbsoluteAmount:  numeric(tx.AbsoluteAmount),
		Description:     tx.Description,
		Category:        tx.Category,
		Month:           tx.Month.String(),
		Weekday:         int64(tx.Weekday),
		RowIndex:        int64(index),
		CreatedTS:       created,
	}
	if tx.BillingDate != nil {
		row.BillingDate = bigquery.NullDate{Date: *tx.BillingDate, Valid: true}
	}
	return row
}

// Transaction rebuilds the canonical transaction from an archived row.
func (r *TransactionRow) Transaction() domain.Transaction {
	var billing *civil.Date
	if r.BillingDate.Valid {
		d := r.BillingDate.Date
		billing = &d
	}
	amount := 0.0
	if r.Amount != nil {
		amount, _ = r.Amount.Float64()
	}
	return domain.NewTransaction(r.TransactionDate, billing, amount, r.Description, r.Category)
}

func numeric(v float64) *big.Rat {
	return decimal.NewFromFloat(v).Round(2).Rat()
}
