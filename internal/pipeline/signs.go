package pipeline

import "strings"

// SignConvention decides whether a sheet's amounts are recorded with
// expenses as positive numbers and need their polarity inverted.
type SignConvention interface {
	ShouldInvert(amountColumn string, amounts []float64) bool
}

// PositiveMajority inverts polarity when more than Threshold of the nonzero
// amounts are positive, unless the amount column name marks a ledger-style
// statement whose signs are already correct.
type PositiveMajority struct {
	Threshold      float64
	LedgerKeywords []string
}

// NewPositiveMajority builds the default convention from cfg.
func NewPositiveMajority(cfg DetectionConfig) PositiveMajority {
	return PositiveMajority{Threshold: cfg.PositiveMajority, LedgerKeywords: cfg.LedgerKeywords}
}

func (p PositiveMajority) ShouldInvert(amountColumn string, amounts []float64) bool {
	if IsLedgerColumn(amountColumn, p.LedgerKeywords) {
		return false
	}

	nonZero, positive := 0, 0
	for _, a := range amounts {
		if a == 0 {
			continue
		}
		nonZero++
		if a > 0 {
			positive++
		}
	}
	if nonZero == 0 {
		return false
	}
	return float64(positive)/float64(nonZero) > p.Threshold
}

// IsLedgerColumn reports whether the column name carries a ledger keyword.
func IsLedgerColumn(name string, keywords []string) bool {
	lower := strings.ToLower(name)
	for _, k := range keywords {
		if k != "" && strings.Contains(lower, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

// invertPolarity flips signs two ways: negatives become income, everything
// else becomes an expense.
func invertPolarity(a float64) float64 {
	return -a
}
