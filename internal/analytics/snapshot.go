package analytics

import (
	"math"
	"sort"

	"github.com/dvloznov/statement-insights/internal/domain"
)

// SparklineMonths is the number of trailing data months in a sparkline.
const SparklineMonths = 6

// SnapshotOptions restricts the snapshot to an inclusive month range. Nil
// bounds are open.
type SnapshotOptions struct {
	From *domain.Month
	To   *domain.Month
}

// CategorySnapshotEntry summarises one expense category.
type CategorySnapshotEntry struct {
	Name             string    `json:"name"`
	Total            float64   `json:"total"`
	Count            int       `json:"count"`
	Percent          float64   `json:"percent"`
	AvgTransaction   float64   `json:"avg_transaction"`
	MonthlyAvg       float64   `json:"monthly_avg"`
	MonthsActive     int       `json:"months_active"`
	MonthChange      float64   `json:"month_change"`
	TopMerchant      string    `json:"top_merchant"`
	TopMerchantTotal float64   `json:"top_merchant_total"`
	Sparkline        []float64 `json:"sparkline"`
}

// CategorySnapshot is the per-category breakdown of expenses.
type CategorySnapshot struct {
	Categories []CategorySnapshotEntry `json:"categories"`
	Total      float64                 `json:"total"`
	TotalCount int                     `json:"total_count"`
	MonthCount int                     `json:"month_count"`
	LastMonth  string                  `json:"last_month"`
	PrevMonth  string                  `json:"prev_month"`
}

// InRange reports whether m lies within the options' bounds. Comparison is
// chronological, so 01/2026 is after 12/2025.
func (o SnapshotOptions) InRange(m domain.Month) bool {
	if o.From != nil && m.Before(*o.From) {
		return false
	}
	if o.To != nil && o.To.Before(m) {
		return false
	}
	return true
}

type categoryAccum struct {
	total     float64
	count     int
	byMonth   map[domain.Month]float64
	merchants map[string]float64
}

// BuildCategorySnapshot aggregates expenses per category over the requested
// month range. An inverted range matches nothing.
func BuildCategorySnapshot(txs []domain.Transaction, opts SnapshotOptions) CategorySnapshot {
	snap := CategorySnapshot{Categories: []CategorySnapshotEntry{}}

	cats := make(map[string]*categoryAccum)
	dataMonths := make(map[domain.Month]bool)

	for _, tx := range expenses(txs) {
		if !opts.InRange(tx.Month) {
			continue
		}
		acc, ok := cats[tx.Category]
		if !ok {
			acc = &categoryAccum{byMonth: map[domain.Month]float64{}, merchants: map[string]float64{}}
			cats[tx.Category] = acc
		}
		acc.total += tx.AbsoluteAmount
		acc.count++
		acc.byMonth[tx.Month] += tx.AbsoluteAmount
		acc.merchants[tx.Description] += tx.AbsoluteAmount

		snap.Total += tx.AbsoluteAmount
		snap.TotalCount++
		dataMonths[tx.Month] = true
	}
	if snap.TotalCount == 0 {
		return snap
	}

	months := sortedMonths(dataMonths)
	snap.MonthCount = len(months)
	last := months[len(months)-1]
	snap.LastMonth = last.String()
	var prev *domain.Month
	if len(months) > 1 {
		p := months[len(months)-2]
		prev = &p
		snap.PrevMonth = p.String()
	}

	sparkMonths := months
	if len(sparkMonths) > SparklineMonths {
		sparkMonths = sparkMonths[len(sparkMonths)-SparklineMonths:]
	}

	for name, acc := range cats {
		entry := CategorySnapshotEntry{
			Name:           name,
			Total:          round2(acc.total),
			Count:          acc.count,
			AvgTransaction: round2(acc.total / float64(acc.count)),
			MonthsActive:   len(acc.byMonth),
			MonthlyAvg:     round2(acc.total / float64(len(acc.byMonth))),
		}
		if prev != nil {
			entry.MonthChange = round(monthChange(acc.byMonth[last], acc.byMonth[*prev]), 1)
		}
		entry.TopMerchant, entry.TopMerchantTotal = topMerchant(acc.merchants)

		entry.Sparkline = make([]float64, len(sparkMonths))
		for i, m := range sparkMonths {
			entry.Sparkline[i] = round2(acc.byMonth[m])
		}
		snap.Categories = append(snap.Categories, entry)
	}

	sort.Slice(snap.Categories, func(i, j int) bool {
		a, b := snap.Categories[i], snap.Categories[j]
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		return a.Name < b.Name
	})

	if snap.Total > 0 {
		shares := make([]float64, len(snap.Categories))
		for i, c := range snap.Categories {
			shares[i] = cats[c.Name].total / snap.Total * 100
		}
		for i, p := range apportion(shares, 1) {
			snap.Categories[i].Percent = p
		}
	}

	snap.Total = round2(snap.Total)
	return snap
}

// apportion rounds shares that sum to 100 to the given decimal places with the
// largest-remainder method, so the rounded values still sum to 100. Ties in
// remainder go to the earlier share.
func apportion(shares []float64, places int) []float64 {
	scale := math.Pow(10, float64(places))
	units := make([]int, len(shares))
	rems := make([]float64, len(shares))
	left := int(math.Round(100 * scale))
	for i, s := range shares {
		u := math.Floor(s * scale)
		units[i] = int(u)
		rems[i] = s*scale - u
		left -= units[i]
	}

	order := make([]int, len(shares))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return rems[order[a]] > rems[order[b]] })
	for k := 0; k < left && k < len(order); k++ {
		units[order[k]]++
	}

	out := make([]float64, len(shares))
	for i, u := range units {
		out[i] = float64(u) / scale
	}
	return out
}

// monthChange is the percentage change from prev to cur.
func monthChange(cur, prev float64) float64 {
	switch {
	case prev == 0 && cur > 0:
		return 100
	case prev == 0:
		return 0
	default:
		return (cur - prev) / prev * 100
	}
}

// topMerchant returns the merchant with the largest spend; ties go to the
// lexicographically smallest name.
func topMerchant(merchants map[string]float64) (string, float64) {
	best, bestTotal := "", -1.0
	for name, total := range merchants {
		if total > bestTotal || (total == bestTotal && name < best) {
			best, bestTotal = name, total
		}
	}
	if bestTotal < 0 {
		return "", 0
	}
	return best, round2(bestTotal)
}
