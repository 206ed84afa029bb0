package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/statement-insights/internal/analytics"
	"github.com/dvloznov/statement-insights/internal/api/middleware"
	"github.com/dvloznov/statement-insights/internal/ingest"
	"github.com/dvloznov/statement-insights/internal/logger"
	"github.com/dvloznov/statement-insights/internal/pipeline"
	"github.com/dvloznov/statement-insights/internal/session"
)

// DefaultMaxUploadBytes caps the size of an uploaded statement.
const DefaultMaxUploadBytes = 32 << 20

// SessionsHandler handles statement uploads and session lifecycle.
type SessionsHandler struct {
	service        *ingest.Service
	sessions       session.Store
	MaxUploadBytes int64
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(service *ingest.Service, sessions session.Store) *SessionsHandler {
	return &SessionsHandler{
		service:        service,
		sessions:       sessions,
		MaxUploadBytes: DefaultMaxUploadBytes,
	}
}

// UploadResponse is returned by a successful upload.
type UploadResponse struct {
	SessionID        string                 `json:"session_id"`
	Filename         string                 `json:"filename"`
	TransactionCount int                    `json:"transaction_count"`
	Reports          []pipeline.BuildReport `json:"reports"`
	Summary          analytics.Summary      `json:"summary"`
	Categories       []string               `json:"categories"`
	ingest.Outcome
}

// SessionInfo describes a stored session without its transactions.
type SessionInfo struct {
	SessionID        string                 `json:"session_id"`
	Filename         string                 `json:"filename"`
	CreatedAt        time.Time              `json:"created_at"`
	TransactionCount int                    `json:"transaction_count"`
	Reports          []pipeline.BuildReport `json:"reports"`
}

// Upload handles POST /api/upload. The multipart form carries the statement
// in "file", an optional role -> column JSON object in "mapping", and
// "archive=true" to copy the result to the archive.
func (h *SessionsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	log := logger.FromContext(r.Context())

	if r.ContentLength > h.MaxUploadBytes {
		middleware.WriteError(w, http.StatusRequestEntityTooLarge, "File too large")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		middleware.WriteError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	if filename == "" || filename == "." {
		middleware.WriteError(w, http.StatusBadRequest, "No file selected")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read file")
		return
	}

	manual, err := parseMappingField(r.FormValue("mapping"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	archive, _ := strconv.ParseBool(r.FormValue("archive"))

	log.Info().Str("filename", filename).Int("bytes", len(data)).Msg("Statement uploaded")

	out, err := h.service.IngestFile(r.Context(), filename, data, manual, archive)
	if err != nil {
		writeIngestError(r.Context(), w, err)
		return
	}

	sess := out.Session
	middleware.WriteJSON(w, http.StatusCreated, UploadResponse{
		SessionID:        sess.ID,
		Filename:         sess.Filename,
		TransactionCount: len(sess.Transactions),
		Reports:          sess.Reports,
		Summary:          analytics.Summarize(sess.Transactions),
		Categories:       analytics.Categories(sess.Transactions),
		Outcome:          *out,
	})
}

// parseMappingField decodes the optional "mapping" form field.
func parseMappingField(raw string) (map[pipeline.Role]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("mapping must be a JSON object of role to column name")
	}
	return ingest.ParseManualMapping(m)
}

// Session handles GET and DELETE /api/sessions/{id}.
func (h *SessionsHandler) Session(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	if id == "" || strings.Contains(id, "/") {
		middleware.WriteError(w, http.StatusBadRequest, "Session ID is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		sess, err := h.sessions.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, session.ErrNotFound) {
				middleware.WriteError(w, http.StatusNotFound, "Session not found")
				return
			}
			log := logger.FromContext(r.Context())
			log.Error().Err(err).Str("session_id", id).Msg("Failed to load session")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to load session")
			return
		}
		middleware.WriteJSON(w, http.StatusOK, SessionInfo{
			SessionID:        sess.ID,
			Filename:         sess.Filename,
			CreatedAt:        sess.CreatedAt,
			TransactionCount: len(sess.Transactions),
			Reports:          sess.Reports,
		})
	case http.MethodDelete:
		if err := h.sessions.Delete(r.Context(), id); err != nil {
			log := logger.FromContext(r.Context())
			log.Error().Err(err).Str("session_id", id).Msg("Failed to delete session")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete session")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
