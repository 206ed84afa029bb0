package pipeline

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/dvloznov/statement-insights/internal/grid"
	"github.com/dvloznov/statement-insights/internal/normalize"
)

// BuildReport counts how a table degraded on its way to transactions.
type BuildReport struct {
	Sheet                 string          `json:"sheet,omitempty"`
	Mapping               map[Role]string `json:"mapping,omitempty"`
	RowsIn                int             `json:"rows_in"`
	RowsEmitted           int             `json:"rows_emitted"`
	DroppedZeroAmount     int             `json:"dropped_zero_amount"`
	DroppedMissingDate    int             `json:"dropped_missing_date"`
	DefaultedDescriptions int             `json:"defaulted_descriptions"`
	DefaultedCategories   int             `json:"defaulted_categories"`
	UnparsedBillingDates  int             `json:"unparsed_billing_dates"`
	BilledAmountFallbacks int             `json:"billed_amount_fallbacks"`
	Reclassified          int             `json:"reclassified"`
	PolarityInverted      bool            `json:"polarity_inverted"`
}

// Builder turns classified tables into canonical transactions.
type Builder struct {
	cfg   DetectionConfig
	signs SignConvention
}

// NewBuilder returns a Builder. A nil convention uses PositiveMajority from cfg.
func NewBuilder(cfg DetectionConfig, signs SignConvention) *Builder {
	if signs == nil {
		signs = NewPositiveMajority(cfg)
	}
	return &Builder{cfg: cfg, signs: signs}
}

// Build assembles transactions from t using mapping m. Rows with a zero
// amount or an unparsed date are dropped; an empty result is valid.
func (b *Builder) Build(t Table, m ColumnMapping) ([]domain.Transaction, BuildReport) {
	report := BuildReport{Sheet: t.Sheet, Mapping: m.Names(), RowsIn: len(t.Rows)}
	n := len(t.Rows)
	if n == 0 {
		return nil, report
	}

	// 1. dates
	dates := make([]normalize.Result[civil.Date], n)
	if ref, ok := m.Lookup(RoleDate); ok {
		dates = normalize.ParseDates(t.Column(ref.Index))
	} else {
		for i := range dates {
			dates[i].Defaulted = true
		}
	}
	var billing []normalize.Result[civil.Date]
	if ref, ok := m.Lookup(RoleBillingDate); ok {
		billing = normalize.ParseDates(t.Column(ref.Index))
	}

	// 2. amounts
	amounts := make([]float64, n)
	amountRef, hasAmount := m.Lookup(RoleAmount)
	if hasAmount {
		for i, row := range t.Rows {
			amounts[i] = normalize.ParseAmount(row[amountRef.Index]).Value
		}
		if orig := b.originalAmountColumn(t, amountRef); orig >= 0 {
			for i, row := range t.Rows {
				if amounts[i] != 0 {
					continue
				}
				if v := normalize.ParseAmount(row[orig]).Value; v != 0 {
					amounts[i] = v
					report.BilledAmountFallbacks++
				}
			}
		}
	}

	// 3. sign convention
	if hasAmount && b.signs.ShouldInvert(amountRef.Name, amounts) {
		report.PolarityInverted = true
		for i := range amounts {
			amounts[i] = invertPolarity(amounts[i])
		}
	}

	descRef, hasDesc := m.Lookup(RoleDescription)
	catRef, hasCat := m.Lookup(RoleCategory)

	txs := make([]domain.Transaction, 0, n)
	for i, row := range t.Rows {
		// 4. description
		desc := normalize.Text("", b.cfg.DescriptionPlaceholder)
		if hasDesc {
			desc = normalize.Text(row[descRef.Index].String(), b.cfg.DescriptionPlaceholder)
		}

		// 5. category
		cat := normalize.Text("", b.cfg.DefaultCategory)
		if hasCat {
			cat = normalize.Text(row[catRef.Index].String(), b.cfg.DefaultCategory)
		}

		var billingDate *civil.Date
		if billing != nil {
			if billing[i].Defaulted {
				if !row[m[RoleBillingDate].Index].IsEmpty() {
					report.UnparsedBillingDates++
				}
			} else {
				d := billing[i].Value
				billingDate = &d
			}
		}

		// 6. filter
		if dates[i].Defaulted {
			report.DroppedMissingDate++
			continue
		}
		if amounts[i] == 0 {
			report.DroppedZeroAmount++
			continue
		}

		if desc.Defaulted {
			report.DefaultedDescriptions++
		}
		if cat.Defaulted {
			report.DefaultedCategories++
		}

		// 7. keyword reclassification
		category := cat.Value
		if reclassified, ok := b.reclassify(desc.Value); ok {
			category = reclassified
			report.Reclassified++
		}

		// 8. derived fields
		txs = append(txs, domain.NewTransaction(dates[i].Value, billingDate, amounts[i], desc.Value, category))
	}

	report.RowsEmitted = len(txs)
	return txs, report
}

// originalAmountColumn returns the original-amount column to fall back on
// when the amount column is a billed-amount column, or -1.
func (b *Builder) originalAmountColumn(t Table, amount ColumnRef) int {
	if !nameIn(amount.Name, b.cfg.BilledAmountColumns) {
		return -1
	}
	for i, name := range t.Columns {
		if i != amount.Index && nameIn(name, b.cfg.OriginalAmountColumns) {
			return i
		}
	}
	return -1
}

// reclassify returns the category forced by a description keyword. Standing
// order keywords win over cheque keywords.
func (b *Builder) reclassify(description string) (string, bool) {
	lower := strings.ToLower(description)
	if containsAny(lower, b.cfg.StandingOrderKeywords) {
		return b.cfg.StandingOrderCategory, true
	}
	if containsAny(lower, b.cfg.ChequeKeywords) {
		return b.cfg.RentCategory, true
	}
	return "", false
}

// containsAny reports whether any keyword occurs in lower as whole words, so
// "atm" matches "ATM 0231" but not "treatment".
func containsAny(lower string, keywords []string) bool {
	for _, k := range keywords {
		if k != "" && containsWord(lower, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

func containsWord(s, word string) bool {
	first, _ := utf8.DecodeRuneInString(word)
	last, _ := utf8.DecodeLastRuneInString(word)
	for from := 0; from <= len(s)-len(word); {
		i := strings.Index(s[from:], word)
		if i < 0 {
			return false
		}
		start, end := from+i, from+i+len(word)
		before, _ := utf8.DecodeLastRuneInString(s[:start])
		after, _ := utf8.DecodeRuneInString(s[end:])
		if (!isWordRune(first) || !isWordRune(before)) && (!isWordRune(last) || !isWordRune(after)) {
			return true
		}
		_, size := utf8.DecodeRuneInString(s[start:])
		from = start + size
	}
	return false
}

func isWordRune(r rune) bool {
	return r != utf8.RuneError && (unicode.IsLetter(r) || unicode.IsDigit(r))
}

func nameIn(name string, names []string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, n := range names {
		if name == strings.ToLower(strings.TrimSpace(n)) {
			return true
		}
	}
	return false
}

// BuildTable is a convenience for callers holding a raw grid: it classifies,
// detects columns and builds in one call.
func BuildTable(g grid.Grid, cfg DetectionConfig, manual map[Role]string) ([]domain.Transaction, BuildReport, error) {
	t := ClassifyGrid(g, cfg)
	m, err := DetectColumns(t, cfg, manual)
	if err != nil {
		return nil, BuildReport{Sheet: t.Sheet, RowsIn: len(t.Rows)}, err
	}
	txs, report := NewBuilder(cfg, nil).Build(t, m)
	return txs, report, nil
}
