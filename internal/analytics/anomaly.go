package analytics

import (
	"sort"

	"github.com/dvloznov/statement-insights/internal/domain"
)

const (
	minAnomalySample = 5
	anomalyZScore    = 2.0
)

// Anomaly is an expense unusually large for its category.
type Anomaly struct {
	Transaction  domain.Transaction `json:"transaction"`
	ZScore       float64            `json:"z_score"`
	CategoryMean float64            `json:"category_mean"`
	CategoryStd  float64            `json:"category_std"`
}

// DetectAnomalies flags expenses more than two standard deviations above
// their category mean. Categories with fewer than five expenses or no
// variance are skipped.
func DetectAnomalies(txs []domain.Transaction) []Anomaly {
	byCategory := make(map[string][]domain.Transaction)
	for _, tx := range expenses(txs) {
		byCategory[tx.Category] = append(byCategory[tx.Category], tx)
	}

	out := []Anomaly{}
	for _, group := range byCategory {
		if len(group) < minAnomalySample {
			continue
		}
		amounts := make([]float64, len(group))
		for i, tx := range group {
			amounts[i] = tx.AbsoluteAmount
		}
		m := mean(amounts)
		std := populationStdDev(amounts, m)
		if std == 0 {
			continue
		}
		for _, tx := range group {
			z := (tx.AbsoluteAmount - m) / std
			if z > anomalyZScore {
				out = append(out, Anomaly{
					Transaction:  tx,
					ZScore:       round2(z),
					CategoryMean: round2(m),
					CategoryStd:  round2(std),
				})
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ZScore != out[j].ZScore {
			return out[i].ZScore > out[j].ZScore
		}
		return out[i].Transaction.Date.Before(out[j].Transaction.Date)
	})
	return out
}
