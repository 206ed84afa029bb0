package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/statement-insights/internal/logger"
	"github.com/google/uuid"
)

const (
	uploadsTable       = "uploads"
	maxErrorMessageLen = 2000
)

// Dataset locates the archive tables.
type Dataset struct {
	ProjectID string
	DatasetID string
}

func (d Dataset) table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", d.ProjectID, d.DatasetID, name)
}

// StartUploadWithClient inserts a new row into uploads with status=RUNNING
// and returns the generated upload_id.
func StartUploadWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, sessionID, filename, gcsURI string) (string, error) {
	uploadID := uuid.NewString()

	q := client.Query(fmt.Sprintf(`
		INSERT %s (
			upload_id,
			session_id,
			filename,
			gcs_uri,
			started_ts,
			status
		)
		VALUES (
			@upload_id,
			@session_id,
			@filename,
			NULLIF(@gcs_uri, ""),
			@started_ts,
			@status
		)
	`, ds.table(uploadsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "upload_id", Value: uploadID},
		{Name: "session_id", Value: sessionID},
		{Name: "filename", Value: filename},
		{Name: "gcs_uri", Value: gcsURI},
		{Name: "started_ts", Value: time.Now()},
		{Name: "status", Value: UploadStatusRunning},
	}

	if err := runDML(ctx, q); err != nil {
		return "", fmt.Errorf("StartUpload: %w", err)
	}
	return uploadID, nil
}

// MarkUploadSucceededWithClient sets status=SUCCESS, finished_ts and the
// archived transaction count.
func MarkUploadSucceededWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, uploadID string, count int) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    transaction_count = @transaction_count,
		    error_message = ""
		WHERE upload_id = @upload_id
	`, ds.table(uploadsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: UploadStatusSuccess},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "transaction_count", Value: int64(count)},
		{Name: "upload_id", Value: uploadID},
	}

	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("MarkUploadSucceeded: %w", err)
	}
	return nil
}

// MarkUploadFailedWithClient sets status=FAILED, finished_ts and
// error_message. Failures are logged, not returned.
func MarkUploadFailedWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, uploadID string, cause error) {
	log := logger.FromContext(ctx)

	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = @error_message
		WHERE upload_id = @upload_id
	`, ds.table(uploadsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: UploadStatusFailed},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "error_message", Value: truncateError(cause)},
		{Name: "upload_id", Value: uploadID},
	}

	if err := runDML(ctx, q); err != nil {
		log.Error().
			Err(err).
			Str("upload_id", uploadID).
			Msg("MarkUploadFailed: update failed")
	}
}

func runDML(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}

func truncateError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > maxErrorMessageLen {
		msg = msg[:maxErrorMessageLen]
	}
	return msg
}
