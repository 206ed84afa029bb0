package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/dvloznov/statement-insights/internal/api/middleware"
	"github.com/dvloznov/statement-insights/internal/gcsuploader"
	"github.com/dvloznov/statement-insights/internal/ingest"
	"github.com/dvloznov/statement-insights/internal/jobs"
	"github.com/dvloznov/statement-insights/internal/logger"
	"github.com/google/uuid"
)

// JobsHandler handles asynchronous ingestion requests.
type JobsHandler struct {
	publisher jobs.Publisher
	store     jobs.JobStore
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(publisher jobs.Publisher, store jobs.JobStore) *JobsHandler {
	return &JobsHandler{publisher: publisher, store: store}
}

// IngestRequest is the body of POST /api/ingest.
type IngestRequest struct {
	GCSURI  string            `json:"gcs_uri"`
	Mapping map[string]string `json:"mapping,omitempty"`
	Archive bool              `json:"archive,omitempty"`
}

// IngestResponse is returned when a job is accepted.
type IngestResponse struct {
	JobID     string `json:"job_id"`
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// Ingest handles POST /api/ingest. The session ID is assigned up front so
// the client can poll the job and then read the session.
func (h *JobsHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.GCSURI = strings.TrimSpace(req.GCSURI)
	if _, _, err := gcsuploader.ParseGCSURI(req.GCSURI); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "gcs_uri must look like gs://bucket/object")
		return
	}
	if _, err := ingest.ParseManualMapping(req.Mapping); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	job := &jobs.IngestJob{
		JobID:     uuid.New().String(),
		SessionID: uuid.New().String(),
		GCSURI:    req.GCSURI,
		Mapping:   req.Mapping,
		Archive:   req.Archive,
	}
	if err := h.publisher.PublishIngest(r.Context(), job); err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Str("gcs_uri", req.GCSURI).Msg("Failed to publish ingest job")
		middleware.WriteError(w, http.StatusServiceUnavailable, "Failed to queue ingestion")
		return
	}

	middleware.WriteJSON(w, http.StatusAccepted, IngestResponse{
		JobID:     job.JobID,
		SessionID: job.SessionID,
		Status:    string(jobs.JobStatusPending),
	})
}

// Job handles GET /api/jobs/{id}.
func (h *JobsHandler) Job(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if jobID == "" || strings.Contains(jobID, "/") {
		middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to retrieve job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// List handles GET /api/jobs with optional session_id, status, limit and
// offset parameters.
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	q := r.URL.Query()
	filter := jobs.JobFilter{
		SessionID: q.Get("session_id"),
		Status:    jobs.JobStatus(q.Get("status")),
		Limit:     50,
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid offset")
			return
		}
		filter.Offset = n
	}

	list, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}
	if list == nil {
		list = []*jobs.IngestJob{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"jobs": list})
}
