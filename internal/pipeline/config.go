package pipeline

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Default values for detection and building.
const (
	// DefaultHeaderLookahead is how many leading rows are scanned for a header.
	DefaultHeaderLookahead = 20

	// DefaultHeaderMinMatches is the keyword count that promotes a row to header.
	DefaultHeaderMinMatches = 3

	// DefaultMaxEmptyRatio drops rows whose share of empty cells exceeds it.
	DefaultMaxEmptyRatio = 0.8

	// DefaultPositiveMajority is the share of positive amounts above which
	// polarity is inverted.
	DefaultPositiveMajority = 0.8

	// DefaultModelName is the Gemini model used for column suggestions.
	DefaultModelName = "gemini-2.5-flash"
)

// DetectionConfig holds every keyword list and label the classifier, the
// column detector and the builder rely on. Zero-value fields in a YAML
// profile keep their defaults.
type DetectionConfig struct {
	HeaderKeywords   []string `yaml:"header_keywords"`
	HeaderLookahead  int      `yaml:"header_lookahead"`
	HeaderMinMatches int      `yaml:"header_min_matches"`

	SummaryKeywords []string `yaml:"summary_keywords"`
	MaxEmptyRatio   float64  `yaml:"max_empty_ratio"`

	DateColumns        []string `yaml:"date_columns"`
	BillingDateColumns []string `yaml:"billing_date_columns"`
	DescriptionColumns []string `yaml:"description_columns"`
	CategoryColumns    []string `yaml:"category_columns"`

	PreferredAmountColumns []string `yaml:"preferred_amount_columns"`
	AmountKeywords         []string `yaml:"amount_keywords"`
	BilledAmountColumns    []string `yaml:"billed_amount_columns"`
	OriginalAmountColumns  []string `yaml:"original_amount_columns"`

	LedgerKeywords   []string `yaml:"ledger_keywords"`
	PositiveMajority float64  `yaml:"positive_majority"`

	ChequeKeywords        []string `yaml:"cheque_keywords"`
	StandingOrderKeywords []string `yaml:"standing_order_keywords"`

	DescriptionPlaceholder string `yaml:"description_placeholder"`
	DefaultCategory        string `yaml:"default_category"`
	RentCategory           string `yaml:"rent_category"`
	StandingOrderCategory  string `yaml:"standing_order_category"`
}

// DefaultDetectionConfig returns the built-in bilingual (Hebrew/English)
// profile.
func DefaultDetectionConfig() DetectionConfig {
	return DetectionConfig{
		HeaderKeywords: []string{
			"תאריך", "שם בית העסק", "סכום", "קטגוריה", "תיאור", "חיוב", "עסקה",
			"date", "amount", "description", "merchant", "category",
		},
		HeaderLookahead:  DefaultHeaderLookahead,
		HeaderMinMatches: DefaultHeaderMinMatches,

		SummaryKeywords: []string{"סך הכל", `סה"כ`, "total", "סיכום", "יתרה"},
		MaxEmptyRatio:   DefaultMaxEmptyRatio,

		DateColumns:        []string{"תאריך עסקה", "תאריך", "date", "Date"},
		BillingDateColumns: []string{"תאריך חיוב", "billing date", "charge date", "posting date"},
		DescriptionColumns: []string{"שם בית העסק", "תיאור", "description", "merchant"},
		CategoryColumns:    []string{"קטגוריה", "category", "Category"},

		PreferredAmountColumns: []string{"סכום חיוב", "סכום עסקה מקורי", "סכום"},
		AmountKeywords:         []string{"amount", "sum", "סכום", "total", "חיוב"},
		BilledAmountColumns:    []string{"סכום חיוב", "billed amount", "charge amount"},
		OriginalAmountColumns:  []string{"סכום עסקה מקורי", "original amount"},

		LedgerKeywords:   []string{"זכות", "חובה", "credit", "debit", "ledger", "signed"},
		PositiveMajority: DefaultPositiveMajority,

		ChequeKeywords: []string{
			"צ'ק", "שיק", "משיכת מזומן",
			"cheque", "check no", "check #", "cash withdrawal", "atm",
		},
		StandingOrderKeywords: []string{`הוראת קבע`, `הו"ק`, "standing order", "direct debit"},

		DescriptionPlaceholder: "Unknown",
		DefaultCategory:        "Other",
		RentCategory:           "Rent",
		StandingOrderCategory:  "Standing Orders",
	}
}

// ParseDetectionProfile decodes a YAML profile over the defaults. Lists in
// the profile replace the default lists; omitted keys keep their defaults.
func ParseDetectionProfile(data []byte) (DetectionConfig, error) {
	cfg := DefaultDetectionConfig()
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return DetectionConfig{}, fmt.Errorf("ParseDetectionProfile: decode yaml: %w", err)
	}
	return cfg.withDefaults(), nil
}

// LoadDetectionProfile reads a YAML profile from disk. An empty path returns
// the defaults.
func LoadDetectionProfile(path string) (DetectionConfig, error) {
	if path == "" {
		return DefaultDetectionConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return DetectionConfig{}, fmt.Errorf("LoadDetectionProfile: read %s: %w", path, err)
	}
	return ParseDetectionProfile(data)
}

// withDefaults restores numeric and label fields a profile zeroed out.
func (c DetectionConfig) withDefaults() DetectionConfig {
	d := DefaultDetectionConfig()
	if c.HeaderLookahead <= 0 {
		c.HeaderLookahead = d.HeaderLookahead
	}
	if c.HeaderMinMatches <= 0 {
		c.HeaderMinMatches = d.HeaderMinMatches
	}
	if c.MaxEmptyRatio <= 0 || c.MaxEmptyRatio > 1 {
		c.MaxEmptyRatio = d.MaxEmptyRatio
	}
	if c.PositiveMajority <= 0 || c.PositiveMajority > 1 {
		c.PositiveMajority = d.PositiveMajority
	}
	if c.DescriptionPlaceholder == "" {
		c.DescriptionPlaceholder = d.DescriptionPlaceholder
	}
	if c.DefaultCategory == "" {
		c.DefaultCategory = d.DefaultCategory
	}
	if c.RentCategory == "" {
		c.RentCategory = d.RentCategory
	}
	if c.StandingOrderCategory == "" {
		c.StandingOrderCategory = d.StandingOrderCategory
	}
	return c
}
