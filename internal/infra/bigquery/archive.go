package bigquery

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/dvloznov/statement-insights/internal/logger"
)

// Archiver copies ingested sessions into the archive tables.
type Archiver struct {
	repo ArchiveRepository
	now  func() time.Time
}

// NewArchiver returns an Archiver writing through repo.
func NewArchiver(repo ArchiveRepository) *Archiver {
	return &Archiver{repo: repo, now: time.Now}
}

// Archive records an upload and its transactions and returns the upload ID.
// The upload is marked FAILED if inserting transactions fails.
func (a *Archiver) Archive(ctx context.Context, sessionID, filename, gcsURI string, txs []domain.Transaction) (string, error) {
	log := logger.FromContext(ctx)

	uploadID, err := a.repo.StartUpload(ctx, sessionID, filename, gcsURI)
	if err != nil {
		return "", fmt.Errorf("Archive: %w", err)
	}

	created := a.now()
	rows := make([]*TransactionRow, len(txs))
	for i, tx := range txs {
		rows[i] = NewTransactionRow(uploadID, sessionID, i, tx, created)
	}

	if err := a.repo.InsertTransactions(ctx, rows); err != nil {
		a.repo.MarkUploadFailed(ctx, uploadID, err)
		return "", fmt.Errorf("Archive: %w", err)
	}
	if err := a.repo.MarkUploadSucceeded(ctx, uploadID, len(rows)); err != nil {
		return "", fmt.Errorf("Archive: %w", err)
	}

	log.Info().
		Str("upload_id", uploadID).
		Str("session_id", sessionID).
		Int("transactions", len(rows)).
		Msg("Archived upload")
	return uploadID, nil
}

// Restore reads back the canonical transactions of an archived upload.
func (a *Archiver) Restore(ctx context.Context, uploadID string) ([]domain.Transaction, error) {
	rows, err := a.repo.QueryTransactionsByUpload(ctx, uploadID)
	if err != nil {
		return nil, fmt.Errorf("Restore: %w", err)
	}
	txs := make([]domain.Transaction, len(rows))
	for i, r := range rows {
		txs[i] = r.Transaction()
	}
	return txs, nil
}
