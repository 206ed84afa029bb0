// Package ingest turns uploaded or stored statements into sessions, with
// optional raw-file upload to GCS and archiving to BigQuery.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/dvloznov/statement-insights/internal/gcsuploader"
	"github.com/dvloznov/statement-insights/internal/grid"
	"github.com/dvloznov/statement-insights/internal/jobs"
	"github.com/dvloznov/statement-insights/internal/logger"
	"github.com/dvloznov/statement-insights/internal/pipeline"
	"github.com/dvloznov/statement-insights/internal/session"
)

// StatementIngestor runs the ingestion pipeline. *pipeline.Ingestor
// satisfies it.
type StatementIngestor interface {
	Ingest(ctx context.Context, source string, data []byte, manual map[pipeline.Role]string) (*pipeline.Result, error)
}

// Uploader stores raw statement bytes.
type Uploader interface {
	UploadBytes(ctx context.Context, bucketName, objectName string, data []byte) error
}

// Archiver copies a session's transactions to long-term storage.
// *bigquery.Archiver satisfies it.
type Archiver interface {
	Archive(ctx context.Context, sessionID, filename, gcsURI string, txs []domain.Transaction) (string, error)
}

// Options configures the optional collaborators of a Service.
type Options struct {
	// Uploader and Bucket enable keeping a copy of uploaded files.
	Uploader Uploader
	Bucket   string

	// Archiver enables archiving on request.
	Archiver Archiver
}

// Service ingests statements into sessions.
type Service struct {
	ingestor StatementIngestor
	sessions session.Store
	opts     Options
	now      func() time.Time
}

// NewService creates a Service.
func NewService(ingestor StatementIngestor, sessions session.Store, opts Options) *Service {
	return &Service{ingestor: ingestor, sessions: sessions, opts: opts, now: time.Now}
}

// Outcome describes a finished ingestion.
type Outcome struct {
	Session *session.Session `json:"-"`
	GCSURI  string           `json:"gcs_uri,omitempty"`

	// UploadID is the archive upload, set when archiving succeeded.
	UploadID string `json:"upload_id,omitempty"`
	// ArchiveError is set when archiving was requested and failed. The
	// session is still saved.
	ArchiveError string `json:"archive_error,omitempty"`
}

// ArchiveAvailable reports whether archive requests can be honoured.
func (s *Service) ArchiveAvailable() bool {
	return s.opts.Archiver != nil
}

// IngestFile ingests an uploaded file held in memory.
func (s *Service) IngestFile(ctx context.Context, filename string, data []byte, manual map[pipeline.Role]string, archive bool) (*Outcome, error) {
	res, err := s.ingestor.Ingest(ctx, filename, data, manual)
	if err != nil {
		return nil, fmt.Errorf("IngestFile: %w", err)
	}
	sess := session.New(res)
	out := &Outcome{Session: sess}

	if s.opts.Uploader != nil && s.opts.Bucket != "" {
		object := gcsuploader.StatementObjectName(sess.ID, filename, s.now())
		if err := s.opts.Uploader.UploadBytes(ctx, s.opts.Bucket, object, data); err != nil {
			log := logger.FromContext(ctx)
			log.Warn().Err(err).Str("session_id", sess.ID).Msg("Failed to keep a copy of the statement")
		} else {
			out.GCSURI = gcsuploader.GCSURI(s.opts.Bucket, object)
		}
	}

	if err := s.finish(ctx, out, archive); err != nil {
		return nil, fmt.Errorf("IngestFile: %w", err)
	}
	return out, nil
}

// IngestURI ingests a statement stored at a gs:// URI. A non-empty
// sessionID is used instead of a generated one.
func (s *Service) IngestURI(ctx context.Context, gcsURI, sessionID string, manual map[pipeline.Role]string, archive bool) (*Outcome, error) {
	if !gcsuploader.IsGCSURI(gcsURI) {
		return nil, fmt.Errorf("IngestURI: %w: %q", ErrInvalidURI, gcsURI)
	}
	res, err := s.ingestor.Ingest(ctx, gcsURI, nil, manual)
	if err != nil {
		return nil, fmt.Errorf("IngestURI: %w", err)
	}
	sess := session.New(res)
	if sessionID != "" {
		sess.ID = sessionID
	}
	out := &Outcome{Session: sess, GCSURI: gcsURI}

	if err := s.finish(ctx, out, archive); err != nil {
		return nil, fmt.Errorf("IngestURI: %w", err)
	}
	return out, nil
}

func (s *Service) finish(ctx context.Context, out *Outcome, archive bool) error {
	sess := out.Session
	if err := s.sessions.Save(ctx, sess); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}

	if !archive {
		return nil
	}
	if s.opts.Archiver == nil {
		out.ArchiveError = ErrArchiveDisabled.Error()
		return nil
	}
	uploadID, err := s.opts.Archiver.Archive(ctx, sess.ID, sess.Filename, out.GCSURI, sess.Transactions)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Str("session_id", sess.ID).Msg("Archiving failed")
		out.ArchiveError = err.Error()
		return nil
	}
	out.UploadID = uploadID
	return nil
}

// HandleJob is the jobs.JobHandler for ingest jobs. Input problems that a
// retry cannot fix are returned as permanent errors.
func (s *Service) HandleJob(ctx context.Context, job *jobs.IngestJob) error {
	log := logger.FromContext(ctx).With().
		Str("job_id", job.JobID).
		Str("gcs_uri", job.GCSURI).
		Logger()
	ctx = logger.WithContext(ctx, log)

	manual, err := ParseManualMapping(job.Mapping)
	if err != nil {
		return jobs.Permanent(fmt.Errorf("HandleJob: %w", err))
	}

	log.Info().Msg("Processing ingest job")

	out, err := s.IngestURI(ctx, job.GCSURI, job.SessionID, manual, job.Archive)
	if err != nil {
		if IsInputError(err) {
			return jobs.Permanent(fmt.Errorf("HandleJob: %w", err))
		}
		return fmt.Errorf("HandleJob: %w", err)
	}

	job.SessionID = out.Session.ID
	job.TransactionCount = len(out.Session.Transactions)
	if out.ArchiveError != "" {
		job.Warning = "archive: " + out.ArchiveError
	}

	log.Info().
		Str("session_id", job.SessionID).
		Int("transactions", job.TransactionCount).
		Msg("Ingest job completed")
	return nil
}

var (
	// ErrInvalidURI means a source is not a gs:// URI.
	ErrInvalidURI = errors.New("invalid gcs uri")

	// ErrInvalidMapping means a manual mapping names an unknown role.
	ErrInvalidMapping = errors.New("invalid column mapping")

	// ErrArchiveDisabled is reported when archiving was requested but no
	// archive is configured.
	ErrArchiveDisabled = errors.New("archive is not configured")
)

// IsInputError reports whether err comes from the statement itself rather
// than from infrastructure.
func IsInputError(err error) bool {
	return errors.Is(err, pipeline.ErrSchemaNotDetected) ||
		errors.Is(err, pipeline.ErrNoTransactions) ||
		errors.Is(err, grid.ErrUnsupportedFormat) ||
		errors.Is(err, grid.ErrEmptyWorkbook) ||
		errors.Is(err, ErrInvalidURI) ||
		errors.Is(err, ErrInvalidMapping)
}

var mappableRoles = map[pipeline.Role]bool{
	pipeline.RoleDate:        true,
	pipeline.RoleBillingDate: true,
	pipeline.RoleAmount:      true,
	pipeline.RoleDescription: true,
	pipeline.RoleCategory:    true,
}

// ParseManualMapping converts a role name -> column name map. Empty column
// names are ignored; unknown roles are an error.
func ParseManualMapping(m map[string]string) (map[pipeline.Role]string, error) {
	if len(m) == 0 {
		return nil, nil
	}
	out := make(map[pipeline.Role]string, len(m))
	for k, v := range m {
		role := pipeline.Role(k)
		if !mappableRoles[role] {
			return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidMapping, k)
		}
		if v == "" {
			continue
		}
		out[role] = v
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}
