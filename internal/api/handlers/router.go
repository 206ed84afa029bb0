package handlers

import "net/http"

// NewRouter registers every API route. jobs may be nil, which leaves the
// asynchronous ingestion routes unregistered.
func NewRouter(sessions *SessionsHandler, analytics *AnalyticsHandler, jobs *JobsHandler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", Health)

	mux.HandleFunc("/api/upload", sessions.Upload)
	mux.HandleFunc("/api/sessions/", sessions.Session)

	mux.HandleFunc("/api/transactions", analytics.Transactions)
	mux.HandleFunc("/api/summary", analytics.Summary)
	mux.HandleFunc("/api/categories", analytics.Categories)
	mux.HandleFunc("/api/charts", analytics.Charts)
	mux.HandleFunc("/api/analytics/category-snapshot", analytics.CategorySnapshot)
	mux.HandleFunc("/api/analytics/recurring", analytics.Recurring)
	mux.HandleFunc("/api/analytics/anomalies", analytics.Anomalies)
	mux.HandleFunc("/api/analytics/forecast", analytics.Forecast)
	mux.HandleFunc("/api/export", analytics.Export)

	if jobs != nil {
		mux.HandleFunc("/api/ingest", jobs.Ingest)
		mux.HandleFunc("/api/jobs", jobs.List)
		mux.HandleFunc("/api/jobs/", jobs.Job)
	}

	return mux
}
