package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-insights/internal/analytics"
	"github.com/dvloznov/statement-insights/internal/api/middleware"
	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/dvloznov/statement-insights/internal/export"
	"github.com/dvloznov/statement-insights/internal/logger"
	"github.com/dvloznov/statement-insights/internal/session"
)

// Chart sizes.
const (
	chartCategories = 10
	chartMerchants  = 8
)

// AnalyticsHandler serves read-only views of a session's transactions.
type AnalyticsHandler struct {
	sessions session.Store
	export   export.Options
}

// NewAnalyticsHandler creates a new analytics handler. Exports use
// export.DefaultOptions.
func NewAnalyticsHandler(sessions session.Store) *AnalyticsHandler {
	return &AnalyticsHandler{sessions: sessions, export: export.DefaultOptions()}
}

// WithExportOptions sets the spreadsheet layout used by Export.
func (h *AnalyticsHandler) WithExportOptions(opts export.Options) *AnalyticsHandler {
	h.export = opts
	return h
}

// get loads the session for a GET request. ok is false when a response was
// already written.
func (h *AnalyticsHandler) get(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	if r.Method != http.MethodGet {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return nil, false
	}
	return loadSession(w, r, h.sessions)
}

// Transactions handles GET /api/transactions.
//
// Query parameters: start_date and end_date (YYYY-MM-DD), category, search,
// sort_by (date, amount, description, category), sort_order (asc, desc),
// page and page_size.
func (h *AnalyticsHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.get(w, r)
	if !ok {
		return
	}

	q, err := parseQuery(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	middleware.WriteJSON(w, http.StatusOK, q.Run(sess.Transactions))
}

func parseQuery(r *http.Request) (analytics.Query, error) {
	v := r.URL.Query()
	q := analytics.NewQuery()

	for _, p := range []struct {
		name string
		dst  **civil.Date
	}{
		{"start_date", &q.StartDate},
		{"end_date", &q.EndDate},
	} {
		raw := strings.TrimSpace(v.Get(p.name))
		if raw == "" {
			continue
		}
		d, err := civil.ParseDate(raw)
		if err != nil {
			return q, fmt.Errorf("invalid %s %q, want YYYY-MM-DD", p.name, raw)
		}
		*p.dst = &d
	}

	q.Category = strings.TrimSpace(v.Get("category"))
	q.Search = strings.TrimSpace(v.Get("search"))

	if s := v.Get("sort_by"); s != "" {
		if !analytics.ValidSortField(s) {
			return q, fmt.Errorf("invalid sort_by %q", s)
		}
		q.SortBy = s
	}
	switch v.Get("sort_order") {
	case "", "desc":
	case "asc":
		q.SortDesc = false
	default:
		return q, fmt.Errorf("invalid sort_order %q, want asc or desc", v.Get("sort_order"))
	}

	var err error
	if q.Page, err = positiveInt(v.Get("page"), q.Page); err != nil {
		return q, fmt.Errorf("invalid page: %w", err)
	}
	if q.PageSize, err = positiveInt(v.Get("page_size"), q.PageSize); err != nil {
		return q, fmt.Errorf("invalid page_size: %w", err)
	}
	return q, nil
}

func positiveInt(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("must be at least 1, got %d", n)
	}
	return n, nil
}

// Summary handles GET /api/summary.
func (h *AnalyticsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.get(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, analytics.Summarize(sess.Transactions))
}

// Categories handles GET /api/categories.
func (h *AnalyticsHandler) Categories(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.get(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string][]string{
		"categories": analytics.Categories(sess.Transactions),
	})
}

// ChartsResponse holds the series behind the dashboard charts.
type ChartsResponse struct {
	Categories []analytics.CategoryTotal `json:"categories"`
	Monthly    []analytics.MonthlyPoint  `json:"monthly"`
	Weekdays   []analytics.WeekdayTotal  `json:"weekdays"`
	Merchants  []analytics.MerchantTotal `json:"merchants"`
	Balance    []analytics.BalancePoint  `json:"balance"`
}

// Charts handles GET /api/charts.
func (h *AnalyticsHandler) Charts(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.get(w, r)
	if !ok {
		return
	}
	txs := sess.Transactions
	middleware.WriteJSON(w, http.StatusOK, ChartsResponse{
		Categories: analytics.CategoryTotals(txs, chartCategories),
		Monthly:    analytics.MonthlyTotals(txs),
		Weekdays:   analytics.WeekdayTotals(txs),
		Merchants:  analytics.TopMerchants(txs, chartMerchants),
		Balance:    analytics.CumulativeBalance(txs),
	})
}

// CategorySnapshot handles GET /api/analytics/category-snapshot. The
// optional from and to parameters are MM/YYYY months, inclusive.
func (h *AnalyticsHandler) CategorySnapshot(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.get(w, r)
	if !ok {
		return
	}

	var opts analytics.SnapshotOptions
	for _, p := range []struct {
		name string
		dst  **domain.Month
	}{
		{"from", &opts.From},
		{"to", &opts.To},
	} {
		raw := strings.TrimSpace(r.URL.Query().Get(p.name))
		if raw == "" {
			continue
		}
		m, err := domain.ParseMonth(raw)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s %q, want MM/YYYY", p.name, raw))
			return
		}
		*p.dst = &m
	}

	middleware.WriteJSON(w, http.StatusOK, analytics.BuildCategorySnapshot(sess.Transactions, opts))
}

// Recurring handles GET /api/analytics/recurring.
func (h *AnalyticsHandler) Recurring(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.get(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"recurring": analytics.DetectRecurring(sess.Transactions),
	})
}

// Anomalies handles GET /api/analytics/anomalies.
func (h *AnalyticsHandler) Anomalies(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.get(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"anomalies": analytics.DetectAnomalies(sess.Transactions),
	})
}

// Forecast handles GET /api/analytics/forecast.
func (h *AnalyticsHandler) Forecast(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.get(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, analytics.Forecast(sess.Transactions))
}

// Export handles GET /api/export. The same filters as Transactions apply;
// paging is ignored.
func (h *AnalyticsHandler) Export(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.get(w, r)
	if !ok {
		return
	}
	q, err := parseQuery(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, q.Filter(sess.Transactions), h.export); err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Str("session_id", sess.ID).Msg("Export failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to export transactions")
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
