package analytics

import (
	"sort"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-insights/internal/domain"
)

// minTrendSample is the row count above which Summary reports a trend.
const minTrendSample = 10

// OtherCategory collects the categories beyond the CategoryTotals limit.
const OtherCategory = "Other"

// Summary holds the headline figures for a collection.
type Summary struct {
	TotalTransactions  int     `json:"total_transactions"`
	TotalExpenses      float64 `json:"total_expenses"`
	TotalIncome        float64 `json:"total_income"`
	AverageTransaction float64 `json:"average_transaction"`
	// Trend is "up" or "down" comparing the second half of the rows to the
	// first by mean absolute amount. Nil for ten rows or fewer.
	Trend *string `json:"trend"`
}

// Summarize computes headline totals over every finite transaction.
func Summarize(txs []domain.Transaction) Summary {
	var s Summary
	abs := make([]float64, 0, len(txs))
	for _, tx := range txs {
		if !isFinite(tx.Amount) {
			continue
		}
		s.TotalTransactions++
		if tx.Amount < 0 {
			s.TotalExpenses += tx.AbsoluteAmount
		} else {
			s.TotalIncome += tx.Amount
		}
		abs = append(abs, tx.AbsoluteAmount)
	}
	s.TotalExpenses = round2(s.TotalExpenses)
	s.TotalIncome = round2(s.TotalIncome)
	s.AverageTransaction = round2(mean(abs))

	if len(abs) > minTrendSample {
		mid := len(abs) / 2
		first, second := mean(abs[:mid]), mean(abs[mid:])
		if first > 0 {
			trend := TrendDown
			if (second-first)/first > 0 {
				trend = TrendUp
			}
			s.Trend = &trend
		}
	}
	return s
}

// CategoryTotal is the expense total of one category.
type CategoryTotal struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
}

// CategoryTotals returns expense totals per category, largest first. When
// limit > 0 and there are more categories, the remainder is folded into
// OtherCategory.
func CategoryTotals(txs []domain.Transaction, limit int) []CategoryTotal {
	sums := make(map[string]float64)
	for _, tx := range expenses(txs) {
		sums[tx.Category] += tx.AbsoluteAmount
	}
	out := make([]CategoryTotal, 0, len(sums))
	for name, total := range sums {
		out = append(out, CategoryTotal{Category: name, Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Category < out[j].Category
	})

	if limit > 0 && len(out) > limit {
		other := 0.0
		for _, ct := range out[limit:] {
			other += ct.Total
		}
		out = append(out[:limit:limit], CategoryTotal{Category: OtherCategory, Total: other})
	}
	for i := range out {
		out[i].Total = round2(out[i].Total)
	}
	return out
}

// MonthlyTotals returns expense totals per data month in chronological order.
func MonthlyTotals(txs []domain.Transaction) []MonthlyPoint {
	months, totals := monthlyExpenseTotals(expenses(txs))
	out := make([]MonthlyPoint, len(months))
	for i, m := range months {
		out[i] = MonthlyPoint{Month: m, Total: round2(totals[m])}
	}
	return out
}

// WeekdayTotal is the expense total of one weekday, Monday = 0.
type WeekdayTotal struct {
	Weekday int     `json:"weekday"`
	Name    string  `json:"name"`
	Total   float64 `json:"total"`
}

var weekdayNames = [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// WeekdayTotals always returns seven entries, Monday first.
func WeekdayTotals(txs []domain.Transaction) []WeekdayTotal {
	var sums [7]float64
	for _, tx := range expenses(txs) {
		if tx.Weekday >= 0 && tx.Weekday < 7 {
			sums[tx.Weekday] += tx.AbsoluteAmount
		}
	}
	out := make([]WeekdayTotal, 7)
	for i := range out {
		out[i] = WeekdayTotal{Weekday: i, Name: weekdayNames[i], Total: round2(sums[i])}
	}
	return out
}

// MerchantTotal is the expense total for one description.
type MerchantTotal struct {
	Merchant string  `json:"merchant"`
	Total    float64 `json:"total"`
	Count    int     `json:"count"`
}

// TopMerchants returns the n descriptions with the largest expense totals.
func TopMerchants(txs []domain.Transaction, n int) []MerchantTotal {
	byName := make(map[string]*MerchantTotal)
	for _, tx := range expenses(txs) {
		mt, ok := byName[tx.Description]
		if !ok {
			mt = &MerchantTotal{Merchant: tx.Description}
			byName[tx.Description] = mt
		}
		mt.Total += tx.AbsoluteAmount
		mt.Count++
	}
	out := make([]MerchantTotal, 0, len(byName))
	for _, mt := range byName {
		mt.Total = round2(mt.Total)
		out = append(out, *mt)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Merchant < out[j].Merchant
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// BalancePoint is the running signed total after a transaction.
type BalancePoint struct {
	Date    civil.Date `json:"date"`
	Balance float64    `json:"balance"`
}

// CumulativeBalance returns the running sum of signed amounts in date order.
func CumulativeBalance(txs []domain.Transaction) []BalancePoint {
	sorted := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if isFinite(tx.Amount) {
			sorted = append(sorted, tx)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	out := make([]BalancePoint, len(sorted))
	running := 0.0
	for i, tx := range sorted {
		running += tx.Amount
		out[i] = BalancePoint{Date: tx.Date, Balance: round2(running)}
	}
	return out
}
