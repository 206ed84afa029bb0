package domain

import (
	"math"
	"time"

	"cloud.google.com/go/civil"
)

// Transaction is one canonical statement row. Amount is signed: negative
// values are expenses, positive values income. A built Transaction always has
// a Date, a non-zero Amount and non-empty Description and Category.
type Transaction struct {
	Date           civil.Date  `json:"date"`
	BillingDate    *civil.Date `json:"billing_date,omitempty"`
	Amount         float64     `json:"amount"`
	AbsoluteAmount float64     `json:"absolute_amount"`
	Description    string      `json:"description"`
	Category       string      `json:"category"`
	Month          Month       `json:"month"`
	BillingMonth   *Month      `json:"billing_month,omitempty"`
	Weekday        int         `json:"weekday"` // 0 = Monday
}

// NewTransaction fills the derived fields from the given values.
func NewTransaction(date civil.Date, billing *civil.Date, amount float64, description, category string) Transaction {
	tx := Transaction{
		Date:           date,
		BillingDate:    billing,
		Amount:         amount,
		AbsoluteAmount: math.Abs(amount),
		Description:    description,
		Category:       category,
		Month:          MonthOf(date),
		Weekday:        MondayWeekday(date),
	}
	if billing != nil {
		m := MonthOf(*billing)
		tx.BillingMonth = &m
	}
	return tx
}

// IsExpense reports whether the transaction is money out.
func (t Transaction) IsExpense() bool {
	return t.Amount < 0
}

// MondayWeekday returns the day of week with Monday as 0 and Sunday as 6.
func MondayWeekday(d civil.Date) int {
	wd := d.In(time.UTC).Weekday()
	return (int(wd) + 6) % 7
}
