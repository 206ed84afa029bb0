package analytics

import (
	"sort"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-insights/internal/domain"
)

// Query defaults.
const (
	DefaultPageSize = 100
	MaxPageSize     = 1000
)

// Sort fields accepted by Query.
const (
	SortByDate        = "date"
	SortByAmount      = "amount"
	SortByDescription = "description"
	SortByCategory    = "category"
)

// Query filters, sorts and pages a transaction collection.
type Query struct {
	StartDate *civil.Date
	EndDate   *civil.Date
	Category  string
	Search    string
	SortBy    string
	SortDesc  bool
	Page      int
	PageSize  int
}

// Page is one page of query results. Total counts every match.
type Page struct {
	Transactions []domain.Transaction `json:"transactions"`
	Total        int                  `json:"total"`
	Page         int                  `json:"page"`
	PageSize     int                  `json:"page_size"`
}

// NewQuery returns a query sorted by date, newest first.
func NewQuery() Query {
	return Query{SortBy: SortByDate, SortDesc: true, Page: 1, PageSize: DefaultPageSize}
}

// Match reports whether tx passes the query's filters.
func (q Query) Match(tx domain.Transaction) bool {
	if q.StartDate != nil && tx.Date.Before(*q.StartDate) {
		return false
	}
	if q.EndDate != nil && tx.Date.After(*q.EndDate) {
		return false
	}
	if q.Category != "" && tx.Category != q.Category {
		return false
	}
	if q.Search != "" && !strings.Contains(strings.ToLower(tx.Description), strings.ToLower(q.Search)) {
		return false
	}
	return true
}

// Filter returns the matching transactions in the query's sort order
// without paging.
func (q Query) Filter(txs []domain.Transaction) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if q.Match(tx) {
			out = append(out, tx)
		}
	}

	less := lessFunc(q.SortBy)
	sort.SliceStable(out, func(i, j int) bool {
		if q.SortDesc {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
	return out
}

// Run filters, sorts and returns the requested page. Pages past the end are
// empty.
func (q Query) Run(txs []domain.Transaction) Page {
	page, size := q.Page, q.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}

	matched := q.Filter(txs)
	res := Page{Total: len(matched), Page: page, PageSize: size, Transactions: []domain.Transaction{}}

	start := (page - 1) * size
	if start >= len(matched) {
		return res
	}
	end := start + size
	if end > len(matched) {
		end = len(matched)
	}
	res.Transactions = matched[start:end]
	return res
}

// Categories returns the sorted distinct categories.
func Categories(txs []domain.Transaction) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, tx := range txs {
		if !seen[tx.Category] {
			seen[tx.Category] = true
			out = append(out, tx.Category)
		}
	}
	sort.Strings(out)
	return out
}

func lessFunc(field string) func(a, b domain.Transaction) bool {
	switch field {
	case SortByAmount:
		return func(a, b domain.Transaction) bool { return a.Amount < b.Amount }
	case SortByDescription:
		return func(a, b domain.Transaction) bool { return a.Description < b.Description }
	case SortByCategory:
		return func(a, b domain.Transaction) bool { return a.Category < b.Category }
	default:
		return func(a, b domain.Transaction) bool { return a.Date.Before(b.Date) }
	}
}

// ValidSortField reports whether Query understands field.
func ValidSortField(field string) bool {
	switch field {
	case SortByDate, SortByAmount, SortByDescription, SortByCategory:
		return true
	}
	return false
}
