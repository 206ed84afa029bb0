package analytics

import (
	"math"

	"github.com/dvloznov/statement-insights/internal/domain"
)

// Confidence tiers.
const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

// Trend directions.
const (
	TrendUp     = "up"
	TrendDown   = "down"
	TrendStable = "stable"
)

// trendThreshold is the slope, as a share of average monthly spend, below
// which the trend is stable.
const trendThreshold = 0.02

// MonthlyPoint is one month of the forecast input series.
type MonthlyPoint struct {
	Month domain.Month `json:"month"`
	Total float64      `json:"total"`
}

// ForecastResult projects next month's spending. NextMonth is nil when there
// are no expenses to project from.
type ForecastResult struct {
	NextMonth  *domain.Month  `json:"next_month"`
	Forecast   float64        `json:"forecast"`
	Confidence string         `json:"confidence"`
	Trend      string         `json:"trend"`
	Slope      float64        `json:"slope"`
	RSquared   float64        `json:"r_squared"`
	Average    float64        `json:"average"`
	Series     []MonthlyPoint `json:"series"`
}

// Forecast fits a least-squares line over monthly expense totals and
// evaluates it one month past the last data month.
func Forecast(txs []domain.Transaction) ForecastResult {
	months, totals := monthlyExpenseTotals(expenses(txs))

	res := ForecastResult{
		Confidence: ConfidenceLow,
		Trend:      TrendStable,
		Series:     make([]MonthlyPoint, len(months)),
	}
	values := make([]float64, len(months))
	for i, m := range months {
		values[i] = totals[m]
		res.Series[i] = MonthlyPoint{Month: m, Total: round2(totals[m])}
	}
	if len(months) == 0 {
		return res
	}

	avg := mean(values)
	res.Average = round2(avg)
	next := months[len(months)-1].Next()
	res.NextMonth = &next

	if len(values) < 2 {
		res.Forecast = round2(avg)
		return res
	}

	slope, intercept, r2 := computeLinearRegression(values)
	res.Slope = round2(slope)
	res.RSquared = round(r2, 3)
	res.Forecast = round2(math.Max(0, slope*float64(len(values))+intercept))

	switch n := len(values); {
	case n >= 6 && r2 > 0.7:
		res.Confidence = ConfidenceHigh
	case n >= 3 && r2 > 0.4:
		res.Confidence = ConfidenceMedium
	}

	if threshold := avg * trendThreshold; slope > threshold {
		res.Trend = TrendUp
	} else if slope < -threshold {
		res.Trend = TrendDown
	}
	return res
}
