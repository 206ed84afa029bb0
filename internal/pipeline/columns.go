package pipeline

import (
	"math"
	"slices"
	"strings"

	"github.com/dvloznov/statement-insights/internal/normalize"
)

// Role is the semantic meaning of a column.
type Role string

const (
	RoleDate        Role = "date"
	RoleBillingDate Role = "billing_date"
	RoleAmount      Role = "amount"
	RoleDescription Role = "description"
	RoleCategory    Role = "category"
	RoleUnknown     Role = "unknown"
)

// RequiredRoles must be mapped for a sheet to produce transactions.
var RequiredRoles = []Role{RoleDate, RoleAmount, RoleDescription}

// ColumnRef points at a table column.
type ColumnRef struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
}

// ColumnMapping assigns columns to roles. Roles with no column are absent.
type ColumnMapping map[Role]ColumnRef

// Lookup returns the column mapped to r.
func (m ColumnMapping) Lookup(r Role) (ColumnRef, bool) {
	ref, ok := m[r]
	return ref, ok
}

// Names returns role -> column name, for reporting.
func (m ColumnMapping) Names() map[Role]string {
	out := make(map[Role]string, len(m))
	for r, ref := range m {
		out[r] = ref.Name
	}
	return out
}

// RoleOf returns the role assigned to a column name, or RoleUnknown.
func (m ColumnMapping) RoleOf(name string) Role {
	for r, ref := range m {
		if ref.Name == name {
			return r
		}
	}
	return RoleUnknown
}

// RoleRule describes how one role is found. Exact matches against
// Candidates are tried first in candidate order, then substring matches
// against Keywords (Candidates when empty) in column order. When AnyValid is
// set, the first column passing Valid is taken as a last resort.
type RoleRule struct {
	Role       Role
	Candidates []string
	Keywords   []string
	Valid      func(t Table, col int) bool
	AnyValid   bool
}

// Rules returns the detection rules in evaluation order. A column claimed by
// an earlier rule is not offered to later ones.
func (c DetectionConfig) Rules() []RoleRule {
	return []RoleRule{
		{Role: RoleBillingDate, Candidates: c.BillingDateColumns, Valid: hasParsedDates},
		{Role: RoleDate, Candidates: c.DateColumns},
		{
			Role:       RoleAmount,
			Candidates: c.PreferredAmountColumns,
			Keywords:   c.AmountKeywords,
			Valid:      HasValidAmounts,
			AnyValid:   true,
		},
		{Role: RoleDescription, Candidates: c.DescriptionColumns},
		{Role: RoleCategory, Candidates: c.CategoryColumns},
	}
}

// FindColumn returns the index of the first column named exactly like a
// candidate, else the first column whose name contains a candidate
// (case-insensitive), else -1.
func FindColumn(t Table, candidates []string) int {
	return findRuleColumn(t, RoleRule{Candidates: candidates}, nil)
}

// DetectAmountColumn returns the amount column index or -1. Only columns
// whose parsed values have a nonzero absolute total qualify.
func DetectAmountColumn(t Table, cfg DetectionConfig) int {
	for _, rule := range cfg.Rules() {
		if rule.Role == RoleAmount {
			return findRuleColumn(t, rule, nil)
		}
	}
	return -1
}

// HasValidAmounts reports whether a column's parsed amounts sum to a nonzero
// absolute total.
func HasValidAmounts(t Table, col int) bool {
	total := 0.0
	for _, row := range t.Rows {
		total += math.Abs(normalize.ParseAmount(row[col]).Value)
	}
	return total > 0
}

func hasParsedDates(t Table, col int) bool {
	for _, r := range normalize.ParseDates(t.Column(col)) {
		if !r.Defaulted {
			return true
		}
	}
	return false
}

func findRuleColumn(t Table, rule RoleRule, claimed map[int]bool) int {
	usable := func(i int) bool {
		if claimed[i] {
			return false
		}
		return rule.Valid == nil || rule.Valid(t, i)
	}

	for _, cand := range rule.Candidates {
		cand = strings.TrimSpace(cand)
		for i, name := range t.Columns {
			if strings.TrimSpace(name) == cand && usable(i) {
				return i
			}
		}
	}

	keywords := rule.Keywords
	if len(keywords) == 0 {
		keywords = rule.Candidates
	}
	for i, name := range t.Columns {
		lower := strings.ToLower(name)
		for _, k := range keywords {
			if k != "" && strings.Contains(lower, strings.ToLower(k)) && usable(i) {
				return i
			}
		}
	}

	if rule.AnyValid && rule.Valid != nil {
		for i := range t.Columns {
			if usable(i) {
				return i
			}
		}
	}
	return -1
}

// DetectColumns maps table columns to roles. Entries in manual (role ->
// column name) override detection for their role. Missing required roles
// yield a *SchemaError.
func DetectColumns(t Table, cfg DetectionConfig, manual map[Role]string) (ColumnMapping, error) {
	mapping := make(ColumnMapping)
	claimed := make(map[int]bool)

	var missing []Role
	for role, name := range manual {
		idx := t.ColumnIndex(strings.TrimSpace(name))
		if idx < 0 {
			missing = append(missing, role)
			continue
		}
		mapping[role] = ColumnRef{Index: idx, Name: t.Columns[idx]}
		claimed[idx] = true
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, &SchemaError{Sheet: t.Sheet, Missing: missing, Columns: slices.Clone(t.Columns)}
	}

	for _, rule := range cfg.Rules() {
		if _, ok := mapping[rule.Role]; ok {
			continue
		}
		if idx := findRuleColumn(t, rule, claimed); idx >= 0 {
			mapping[rule.Role] = ColumnRef{Index: idx, Name: t.Columns[idx]}
			claimed[idx] = true
		}
	}

	for _, role := range RequiredRoles {
		if _, ok := mapping[role]; !ok {
			missing = append(missing, role)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Sheet: t.Sheet, Missing: missing, Columns: slices.Clone(t.Columns)}
	}
	return mapping, nil
}
