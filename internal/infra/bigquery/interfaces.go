package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

// ArchiveRepository provides an interface for the statement archive tables.
type ArchiveRepository interface {
	// StartUpload records a new upload with status=RUNNING and returns its ID.
	StartUpload(ctx context.Context, sessionID, filename, gcsURI string) (string, error)

	// MarkUploadSucceeded sets status=SUCCESS and the transaction count.
	MarkUploadSucceeded(ctx context.Context, uploadID string, count int) error

	// MarkUploadFailed sets status=FAILED with the error message.
	MarkUploadFailed(ctx context.Context, uploadID string, cause error)

	// InsertTransactions inserts a batch of TransactionRow.
	InsertTransactions(ctx context.Context, rows []*TransactionRow) error

	// QueryTransactionsByUpload reads back the rows of a successful upload.
	QueryTransactionsByUpload(ctx context.Context, uploadID string) ([]*TransactionRow, error)
}

// BigQueryArchiveRepository is the concrete implementation of
// ArchiveRepository. It holds a shared BigQuery client to avoid creating a
// new connection for each operation.
type BigQueryArchiveRepository struct {
	client  *bigquery.Client
	dataset Dataset
}

// NewBigQueryArchiveRepository creates a repository with a shared client
// for the given project and dataset.
func NewBigQueryArchiveRepository(ctx context.Context, ds Dataset) (*BigQueryArchiveRepository, error) {
	if ds.ProjectID == "" || ds.DatasetID == "" {
		return nil, fmt.Errorf("NewBigQueryArchiveRepository: project and dataset are required")
	}
	client, err := bigquery.NewClient(ctx, ds.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryArchiveRepository: creating client: %w", err)
	}
	return &BigQueryArchiveRepository{client: client, dataset: ds}, nil
}

// Close closes the BigQuery client connection.
func (r *BigQueryArchiveRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// StartUpload delegates to StartUploadWithClient with the shared client.
func (r *BigQueryArchiveRepository) StartUpload(ctx context.Context, sessionID, filename, gcsURI string) (string, error) {
	return StartUploadWithClient(ctx, r.client, r.dataset, sessionID, filename, gcsURI)
}

// MarkUploadSucceeded delegates to MarkUploadSucceededWithClient with the shared client.
func (r *BigQueryArchiveRepository) MarkUploadSucceeded(ctx context.Context, uploadID string, count int) error {
	return MarkUploadSucceededWithClient(ctx, r.client, r.dataset, uploadID, count)
}

// MarkUploadFailed delegates to MarkUploadFailedWithClient with the shared client.
func (r *BigQueryArchiveRepository) MarkUploadFailed(ctx context.Context, uploadID string, cause error) {
	MarkUploadFailedWithClient(ctx, r.client, r.dataset, uploadID, cause)
}

// InsertTransactions delegates to InsertTransactionsWithClient with the shared client.
func (r *BigQueryArchiveRepository) InsertTransactions(ctx context.Context, rows []*TransactionRow) error {
	return InsertTransactionsWithClient(ctx, r.client, r.dataset, rows)
}

// QueryTransactionsByUpload delegates to QueryTransactionsByUploadWithClient with the shared client.
func (r *BigQueryArchiveRepository) QueryTransactionsByUpload(ctx context.Context, uploadID string) ([]*TransactionRow, error) {
	return QueryTransactionsByUploadWithClient(ctx, r.client, r.dataset, uploadID)
}

var _ ArchiveRepository = (*BigQueryArchiveRepository)(nil)
