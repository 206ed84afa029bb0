package analytics

import (
	"math"
	"sort"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-insights/internal/domain"
)

const (
	minRecurringOccurrences = 3
	maxAmountCV             = 0.2
	maxUnknownGapStdDev     = 7.0
)

// Frequency labels for recurring payments.
const (
	FrequencyWeekly    = "weekly"
	FrequencyBiweekly  = "biweekly"
	FrequencyMonthly   = "monthly"
	FrequencyBimonthly = "bimonthly"
	FrequencyQuarterly = "quarterly"
	FrequencyUnknown   = "unknown"
)

type frequencyBand struct {
	label    string
	min, max float64
}

var frequencyBands = []frequencyBand{
	{FrequencyWeekly, 5, 10},
	{FrequencyBiweekly, 12, 18},
	{FrequencyMonthly, 25, 35},
	{FrequencyBimonthly, 55, 70},
	{FrequencyQuarterly, 80, 100},
}

// RecurringCandidate is a merchant charged at a steady interval with a
// stable amount.
type RecurringCandidate struct {
	Merchant     string     `json:"merchant"`
	AvgAmount    float64    `json:"avg_amount"`
	Frequency    string     `json:"frequency"`
	Count        int        `json:"count"`
	NextDate     civil.Date `json:"next_date"`
	Total        float64    `json:"total"`
	IntervalDays float64    `json:"interval_days"`
	AmountCV     float64    `json:"amount_cv"`
}

// classifyFrequency maps a mean gap in days to a band label. ok is false when
// the gap is outside every band.
func classifyFrequency(meanGap float64) (string, bool) {
	for _, b := range frequencyBands {
		if meanGap >= b.min && meanGap <= b.max {
			return b.label, true
		}
	}
	return "", false
}

// DetectRecurring groups expenses by description and returns the merchants
// that look like subscriptions, largest total first.
func DetectRecurring(txs []domain.Transaction) []RecurringCandidate {
	groups := make(map[string][]domain.Transaction)
	for _, tx := range expenses(txs) {
		groups[tx.Description] = append(groups[tx.Description], tx)
	}

	out := []RecurringCandidate{}
	for merchant, group := range groups {
		if c, ok := recurringCandidate(merchant, group); ok {
			out = append(out, c)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Merchant < out[j].Merchant
	})
	return out
}

func recurringCandidate(merchant string, group []domain.Transaction) (RecurringCandidate, bool) {
	if len(group) < minRecurringOccurrences {
		return RecurringCandidate{}, false
	}

	amounts := make([]float64, len(group))
	total := 0.0
	for i, tx := range group {
		amounts[i] = tx.AbsoluteAmount
		total += tx.AbsoluteAmount
	}
	avg := mean(amounts)
	if avg == 0 {
		return RecurringCandidate{}, false
	}
	cv := populationStdDev(amounts, avg) / avg
	if cv > maxAmountCV {
		return RecurringCandidate{}, false
	}

	sorted := make([]domain.Transaction, len(group))
	copy(sorted, group)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	gaps := make([]float64, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		gaps = append(gaps, float64(sorted[i].Date.DaysSince(sorted[i-1].Date)))
	}
	meanGap := mean(gaps)
	if meanGap <= 0 {
		return RecurringCandidate{}, false
	}

	freq, ok := classifyFrequency(meanGap)
	if !ok {
		if populationStdDev(gaps, meanGap) > maxUnknownGapStdDev {
			return RecurringCandidate{}, false
		}
		freq = FrequencyUnknown
	}

	last := sorted[len(sorted)-1].Date
	return RecurringCandidate{
		Merchant:     merchant,
		AvgAmount:    round2(avg),
		Frequency:    freq,
		Count:        len(group),
		NextDate:     last.AddDays(int(math.Round(meanGap))),
		Total:        round2(total),
		IntervalDays: round(meanGap, 1),
		AmountCV:     round(cv, 3),
	}, true
}
