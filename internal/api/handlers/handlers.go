// Package handlers implements the HTTP API over ingested statement sessions.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dvloznov/statement-insights/internal/api/middleware"
	"github.com/dvloznov/statement-insights/internal/grid"
	"github.com/dvloznov/statement-insights/internal/ingest"
	"github.com/dvloznov/statement-insights/internal/logger"
	"github.com/dvloznov/statement-insights/internal/pipeline"
	"github.com/dvloznov/statement-insights/internal/session"
)

// SessionHeader may carry the session ID instead of the session_id query
// parameter.
const SessionHeader = "X-Session-ID"

// sessionID returns the session named by the request, or "".
func sessionID(r *http.Request) string {
	if id := strings.TrimSpace(r.URL.Query().Get("session_id")); id != "" {
		return id
	}
	return strings.TrimSpace(r.Header.Get(SessionHeader))
}

// loadSession fetches the request's session and writes the error response
// itself when it cannot. ok is false when a response was written.
func loadSession(w http.ResponseWriter, r *http.Request, store session.Store) (*session.Session, bool) {
	id := sessionID(r)
	if id == "" {
		middleware.WriteError(w, http.StatusBadRequest, "session_id is required")
		return nil, false
	}

	sess, err := store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Session not found, upload the statement again")
			return nil, false
		}
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Str("session_id", id).Msg("Failed to load session")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load session")
		return nil, false
	}
	return sess, true
}

// schemaErrorResponse is returned with 422 when required columns are missing.
type schemaErrorResponse struct {
	Error        string   `json:"error"`
	Sheet        string   `json:"sheet,omitempty"`
	MissingRoles []string `json:"missing_roles"`
	FoundColumns []string `json:"found_columns"`
}

// writeIngestError maps an ingestion failure to a status code.
func writeIngestError(ctx context.Context, w http.ResponseWriter, err error) {
	var schemaErr *pipeline.SchemaError
	switch {
	case errors.As(err, &schemaErr):
		missing := make([]string, len(schemaErr.Missing))
		for i, r := range schemaErr.Missing {
			missing[i] = string(r)
		}
		found := schemaErr.Columns
		if found == nil {
			found = []string{}
		}
		middleware.WriteJSON(w, http.StatusUnprocessableEntity, schemaErrorResponse{
			Error:        "Could not detect the required columns",
			Sheet:        schemaErr.Sheet,
			MissingRoles: missing,
			FoundColumns: found,
		})
	case errors.Is(err, pipeline.ErrNoTransactions):
		middleware.WriteError(w, http.StatusUnprocessableEntity, "No valid transactions found in the file")
	case errors.Is(err, grid.ErrEmptyWorkbook):
		middleware.WriteError(w, http.StatusUnprocessableEntity, "The file contains no data")
	case errors.Is(err, grid.ErrUnsupportedFormat):
		middleware.WriteError(w, http.StatusUnsupportedMediaType, "Unsupported file type, upload .xlsx or .csv")
	case errors.Is(err, ingest.ErrInvalidMapping), errors.Is(err, ingest.ErrInvalidURI):
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		log := logger.FromContext(ctx)
		log.Error().Err(err).Msg("Ingestion failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to process the statement")
	}
}

// Health reports liveness.
func Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
