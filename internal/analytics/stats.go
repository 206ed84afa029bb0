// Package analytics derives read-only statistics from canonical transactions.
// Every function is total: empty input yields an empty or zero result.
package analytics

import (
	"math"
	"sort"

	"github.com/dvloznov/statement-insights/internal/domain"
)

// expenses returns the transactions with a negative, finite amount.
func expenses(txs []domain.Transaction) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.Amount < 0 && isFinite(tx.Amount) {
			out = append(out, tx)
		}
	}
	return out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// populationStdDev divides by n, not n-1.
func populationStdDev(values []float64, m float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sumSq float64
	for _, v := range values {
		d := v - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	r := math.Round(v*p) / p
	if r == 0 {
		return 0 // no negative zero in output
	}
	return r
}

func round2(v float64) float64 { return round(v, 2) }

// computeLinearRegression fits y over x = 0, 1, 2, ... and returns slope,
// intercept and R². A flat series has R² = 1.
func computeLinearRegression(points []float64) (slope, intercept, rSquared float64) {
	n := float64(len(points))
	if n < 2 {
		return 0, mean(points), 0
	}
	var sumX, sumY, sumXY, sumX2 float64
	for i, y := range points {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}
	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return 0, sumY / n, 0
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n

	meanY := sumY / n
	var ssRes, ssTot float64
	for i, y := range points {
		predicted := slope*float64(i) + intercept
		ssRes += (y - predicted) * (y - predicted)
		ssTot += (y - meanY) * (y - meanY)
	}
	if ssTot == 0 {
		return slope, intercept, 1
	}
	return slope, intercept, 1 - ssRes/ssTot
}

// monthlyExpenseTotals sums absolute expense amounts per month in
// chronological order.
func monthlyExpenseTotals(exp []domain.Transaction) ([]domain.Month, map[domain.Month]float64) {
	totals := make(map[domain.Month]float64)
	for _, tx := range exp {
		totals[tx.Month] += tx.AbsoluteAmount
	}
	return sortedMonths(totals), totals
}

func sortedMonths[V any](m map[domain.Month]V) []domain.Month {
	months := make([]domain.Month, 0, len(m))
	for month := range m {
		months = append(months, month)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })
	return months
}
