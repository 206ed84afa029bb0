package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dvloznov/statement-insights/internal/export"
	"github.com/dvloznov/statement-insights/internal/grid"
	"github.com/dvloznov/statement-insights/internal/ingest"
	"github.com/dvloznov/statement-insights/internal/jobs"
	jobsinmemory "github.com/dvloznov/statement-insights/internal/jobs/inmemory"
	"github.com/dvloznov/statement-insights/internal/logger"
	"github.com/dvloznov/statement-insights/internal/pipeline"
	"github.com/dvloznov/statement-insights/internal/session/inmemory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const statementCSV = `Account statement
Date,Merchant,Amount,Category
01/03/2024,Grocer,-120.50,Food
02/03/2024,Bakery,-15.20,Food
03/03/2024,Fuel Station,-200,Transport
05/03/2024,Salary,8000,Income
08/03/2024,Cinema,-45,Fun
10/03/2024,Pharmacy,-32.90,Health
12/03/2024,Grocer,-98.10,Food
15/03/2024,Refund,20,Fun
20/03/2024,Bus,-6.80,Transport
25/03/2024,Books,-59.90,Fun
`

// MockPublisher is a mock implementation of jobs.Publisher.
type MockPublisher struct {
	PublishIngestFunc func(ctx context.Context, job *jobs.IngestJob) error
}

func (m *MockPublisher) PublishIngest(ctx context.Context, job *jobs.IngestJob) error {
	if m.PublishIngestFunc != nil {
		return m.PublishIngestFunc(ctx, job)
	}
	return nil
}

func (m *MockPublisher) Close() error { return nil }

type testServer struct {
	handler   http.Handler
	sessions  *inmemory.Store
	jobStore  *jobsinmemory.Store
	published []*jobs.IngestJob
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		sessions: inmemory.NewStore(time.Hour),
		jobStore: jobsinmemory.NewStore(),
	}
	ingestor := pipeline.NewIngestor(pipeline.DefaultDetectionConfig(), nil, nil, nil)
	service := ingest.NewService(ingestor, ts.sessions, ingest.Options{})
	publisher := &MockPublisher{PublishIngestFunc: func(ctx context.Context, job *jobs.IngestJob) error {
		ts.published = append(ts.published, job)
		return ts.jobStore.SaveJob(ctx, job)
	}}

	mux := NewRouter(
		NewSessionsHandler(service, ts.sessions),
		NewAnalyticsHandler(ts.sessions),
		NewJobsHandler(publisher, ts.jobStore),
	)
	quiet := logger.NewWithWriter(io.Discard)
	ts.handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mux.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context(), quiet)))
	})
	return ts
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, filename, content string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func (ts *testServer) upload(t *testing.T) string {
	t.Helper()
	rec := ts.do(uploadRequest(t, "march.csv", statementCSV, nil))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.SessionID)
	return resp.SessionID
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestUpload(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(uploadRequest(t, "march.csv", statementCSV, map[string]string{
		"mapping": `{"category":"Category"}`,
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp UploadResponse
	decode(t, rec, &resp)
	assert.Equal(t, "march.csv", resp.Filename)
	assert.Equal(t, 10, resp.TransactionCount)
	assert.Equal(t, 10, resp.Summary.TotalTransactions)
	assert.Equal(t, []string{"Food", "Fun", "Health", "Income", "Transport"}, resp.Categories)
	require.Len(t, resp.Reports, 1)
	assert.Equal(t, "Category", resp.Reports[0].Mapping[pipeline.RoleCategory])
	assert.Equal(t, 1, ts.sessions.Len())

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/sessions/"+resp.SessionID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var info SessionInfo
	decode(t, rec, &info)
	assert.Equal(t, 10, info.TransactionCount)
}

func TestUpload_Errors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		req    *http.Request
		status int
	}{
		{"wrong method", httptest.NewRequest(http.MethodGet, "/api/upload", nil), http.StatusMethodNotAllowed},
		{"not multipart", httptest.NewRequest(http.MethodPost, "/api/upload", bytes.NewBufferString("x")), http.StatusBadRequest},
		{"unsupported type", uploadRequest(t, "statement.pdf", "%PDF-1.4", nil), http.StatusUnsupportedMediaType},
		{"bad mapping json", uploadRequest(t, "march.csv", statementCSV, map[string]string{"mapping": "[1,2]"}), http.StatusBadRequest},
		{"unknown mapping role", uploadRequest(t, "march.csv", statementCSV, map[string]string{"mapping": `{"colour":"x"}`}), http.StatusBadRequest},
		{"empty file", uploadRequest(t, "empty.csv", "  \n", nil), http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(tt.req)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
	assert.Equal(t, 0, ts.sessions.Len())
}

func TestUpload_SchemaErrorListsColumns(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(uploadRequest(t, "contacts.csv", "Name,City\nDana,Haifa\nEli,Eilat\n", nil))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp schemaErrorResponse
	decode(t, rec, &resp)
	assert.Contains(t, resp.MissingRoles, "date")
	assert.Contains(t, resp.FoundColumns, "Name")
	assert.Contains(t, resp.FoundColumns, "City")
}

func TestUpload_TooLarge(t *testing.T) {
	ts := newTestServer(t)
	sessions := NewSessionsHandler(nil, ts.sessions)
	sessions.MaxUploadBytes = 64

	rec := httptest.NewRecorder()
	sessions.Upload(rec, uploadRequest(t, "march.csv", statementCSV, nil))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestWriteIngestError(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("wrapped: %w", &pipeline.SchemaError{Missing: []pipeline.Role{pipeline.RoleAmount}}), http.StatusUnprocessableEntity},
		{fmt.Errorf("step 6: %w", pipeline.ErrNoTransactions), http.StatusUnprocessableEntity},
		{grid.ErrEmptyWorkbook, http.StatusUnprocessableEntity},
		{grid.ErrUnsupportedFormat, http.StatusUnsupportedMediaType},
		{ingest.ErrInvalidMapping, http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		writeIngestError(context.Background(), rec, tt.err)
		assert.Equal(t, tt.status, rec.Code, tt.err.Error())
	}
}

func TestSessionLookup(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/summary", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/summary?session_id=nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	id := ts.upload(t)
	req := httptest.NewRequest(http.MethodGet, "/api/summary", nil)
	req.Header.Set(SessionHeader, id)
	rec = ts.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(httptest.NewRequest(http.MethodDelete, "/api/sessions/"+id, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/summary?session_id="+id, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTransactions(t *testing.T) {
	ts := newTestServer(t)
	id := ts.upload(t)

	rec := ts.do(httptest.NewRequest(http.MethodGet,
		"/api/transactions?session_id="+id+"&sort_by=amount&sort_order=asc&page_size=2", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var page struct {
		Transactions []struct {
			Description string  `json:"description"`
			Amount      float64 `json:"amount"`
		} `json:"transactions"`
		Total    int `json:"total"`
		PageSize int `json:"page_size"`
	}
	decode(t, rec, &page)
	assert.Equal(t, 10, page.Total)
	assert.Equal(t, 2, page.PageSize)
	require.Len(t, page.Transactions, 2)
	assert.Equal(t, "Fuel Station", page.Transactions[0].Description)
	assert.Equal(t, -200.0, page.Transactions[0].Amount)

	rec = ts.do(httptest.NewRequest(http.MethodGet,
		"/api/transactions?session_id="+id+"&category=Food&search=groc&start_date=2024-03-05", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &page)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, -98.10, page.Transactions[0].Amount)

	for _, bad := range []string{"sort_by=colour", "sort_order=up", "page=0", "page_size=x", "start_date=03/05/2024"} {
		rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/transactions?session_id="+id+"&"+bad, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}
}

func TestCategoriesAndCharts(t *testing.T) {
	ts := newTestServer(t)
	id := ts.upload(t)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/categories?session_id="+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var cats map[string][]string
	decode(t, rec, &cats)
	assert.Len(t, cats["categories"], 5)

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/charts?session_id="+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var charts ChartsResponse
	decode(t, rec, &charts)
	assert.Len(t, charts.Weekdays, 7)
	assert.Len(t, charts.Balance, 10)
	require.NotEmpty(t, charts.Categories)
	assert.Equal(t, "Food", charts.Categories[0].Category)
	require.Len(t, charts.Monthly, 1)
}

func TestCategorySnapshot(t *testing.T) {
	ts := newTestServer(t)
	id := ts.upload(t)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/analytics/category-snapshot?session_id="+id+"&from=03/2024&to=03/2024", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var snap struct {
		Categories []struct {
			Name  string  `json:"name"`
			Total float64 `json:"total"`
		} `json:"categories"`
		Total      float64 `json:"total"`
		TotalCount int     `json:"total_count"`
	}
	decode(t, rec, &snap)
	assert.Equal(t, 8, snap.TotalCount)
	assert.InDelta(t, 578.4, snap.Total, 0.01)
	assert.Equal(t, "Food", snap.Categories[0].Name)

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/analytics/category-snapshot?session_id="+id+"&from=04/2024", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &snap)
	assert.Empty(t, snap.Categories)

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/analytics/category-snapshot?session_id="+id+"&from=2024-03", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDetectors(t *testing.T) {
	ts := newTestServer(t)
	id := ts.upload(t)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/analytics/recurring?session_id="+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"recurring":[]}`, rec.Body.String())

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/analytics/anomalies?session_id="+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"anomalies":[]}`, rec.Body.String())

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/analytics/forecast?session_id="+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var fc struct {
		NextMonth  string  `json:"next_month"`
		Forecast   float64 `json:"forecast"`
		Confidence string  `json:"confidence"`
	}
	decode(t, rec, &fc)
	assert.Equal(t, "04/2024", fc.NextMonth)
	assert.InDelta(t, 578.4, fc.Forecast, 0.01)
	assert.Equal(t, "low", fc.Confidence)

	rec = ts.do(httptest.NewRequest(http.MethodPost, "/api/analytics/forecast?session_id="+id, nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestExport(t *testing.T) {
	ts := newTestServer(t)
	id := ts.upload(t)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/export?session_id="+id+"&category=Food&sort_order=asc", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, export.ContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), export.Filename)

	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Transactions")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"01/03/2024", "Grocer", "Food", "120.5"}, rows[1])
}

func TestIngestAndJobs(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(httptest.NewRequest(http.MethodPost, "/api/ingest",
		bytes.NewBufferString(`{"gcs_uri":"gs://raw/march.csv","mapping":{"category":"Category"},"archive":true}`)))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var accepted IngestResponse
	decode(t, rec, &accepted)
	require.Len(t, ts.published, 1)
	job := ts.published[0]
	assert.Equal(t, accepted.JobID, job.JobID)
	assert.Equal(t, accepted.SessionID, job.SessionID)
	assert.Equal(t, "gs://raw/march.csv", job.GCSURI)
	assert.True(t, job.Archive)

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/jobs/"+accepted.JobID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got jobs.IngestJob
	decode(t, rec, &got)
	assert.Equal(t, "gs://raw/march.csv", got.GCSURI)

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/jobs?session_id="+accepted.SessionID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list map[string][]jobs.IngestJob
	decode(t, rec, &list)
	assert.Len(t, list["jobs"], 1)

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/jobs/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIngest_Validation(t *testing.T) {
	ts := newTestServer(t)

	for name, body := range map[string]string{
		"not json":     `gs://raw/march.csv`,
		"local path":   `{"gcs_uri":"/tmp/march.csv"}`,
		"no object":    `{"gcs_uri":"gs://raw"}`,
		"unknown role": `{"gcs_uri":"gs://raw/a.csv","mapping":{"colour":"x"}}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := ts.do(httptest.NewRequest(http.MethodPost, "/api/ingest", bytes.NewBufferString(body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Empty(t, ts.published)
}

func TestIngest_PublishFailure(t *testing.T) {
	h := NewJobsHandler(&MockPublisher{PublishIngestFunc: func(ctx context.Context, job *jobs.IngestJob) error {
		return errors.New("queue is closed")
	}}, jobsinmemory.NewStore())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/ingest", bytes.NewBufferString(`{"gcs_uri":"gs://raw/a.csv"}`))
	h.Ingest(rec, req.WithContext(logger.WithContext(req.Context(), logger.NewWithWriter(io.Discard))))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
