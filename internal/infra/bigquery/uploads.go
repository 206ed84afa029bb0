package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
)

// Upload statuses.
const (
	UploadStatusRunning = "RUNNING"
	UploadStatusSuccess = "SUCCESS"
	UploadStatusFailed  = "FAILED"
)

// UploadRow is one archived statement file.
type UploadRow struct {
	UploadID  string `bigquery:"upload_id"`  // REQUIRED
	SessionID string `bigquery:"session_id"` // NULLABLE

	Filename string              `bigquery:"filename"` // REQUIRED
	GCSURI   bigquery.NullString `bigquery:"gcs_uri"`  // NULLABLE

	StartedTS  time.Time              `bigquery:"started_ts"`  // REQUIRED
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts"` // NULLABLE

	Status       string `bigquery:"status"`        // NULLABLE
	ErrorMessage string `bigquery:"error_message"` // NULLABLE

	TransactionCount bigquery.NullInt64 `bigquery:"transaction_count"` // NULLABLE
}
