package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

const (
	transactionsTable = "transactions"
	insertBatchSize   = 500
)

// InsertTransactionsWithClient streams rows into the transactions table in
// batches using the provided BigQuery client.
func InsertTransactionsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, rows []*TransactionRow) error {
	if len(rows) == 0 {
		return nil
	}

	inserter := client.DatasetInProject(ds.ProjectID, ds.DatasetID).Table(transactionsTable).Inserter()
	for start := 0; start < len(rows); start += insertBatchSize {
		end := min(start+insertBatchSize, len(rows))
		if err := inserter.Put(ctx, rows[start:end]); err != nil {
			return fmt.Errorf("InsertTransactions: inserting rows %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// QueryTransactionsByUploadWithClient reads back the transactions of one
// successful upload in their original order.
func QueryTransactionsByUploadWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, uploadID string) ([]*TransactionRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			t.transaction_id,
			t.upload_id,
			t.session_id,
			t.transaction_date,
			t.billing_date,
			t.amount,
			t.absolute_amount,
			t.description,
			t.category,
			t.month,
			t.weekday,
			t.row_index,
			t.created_ts
		FROM %s t
		INNER JOIN %s u
		  ON t.upload_id = u.upload_id
		WHERE t.upload_id = @upload_id
		  AND u.status = @status
		ORDER BY t.row_index
	`, ds.table(transactionsTable), ds.table(uploadsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "upload_id", Value: uploadID},
		{Name: "status", Value: UploadStatusSuccess},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryTransactionsByUpload: query read: %w", err)
	}

	var rows []*TransactionRow
	for {
		var r TransactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryTransactionsByUpload: iter next: %w", err)
		}
		rows = append(rows, &r)
	}
	return rows, nil
}
