package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/statement-insights/internal/jobs"
)

const pollInterval = 200 * time.Millisecond

// queue is the part of the job queue the batch runner needs.
type queue interface {
	jobs.Publisher
	jobs.Consumer
}

// runBatch publishes one ingest job per URI, starts the consumers and waits
// until every job has completed or failed. On timeout it returns the jobs in
// their last known state together with the context error.
func runBatch(ctx context.Context, q queue, store jobs.JobStore, handler jobs.JobHandler, uris []string, archive bool) ([]*jobs.IngestJob, error) {
	if err := q.Start(ctx, handler); err != nil {
		return nil, fmt.Errorf("runBatch: %w", err)
	}

	ids := make([]string, 0, len(uris))
	for _, uri := range uris {
		job := &jobs.IngestJob{GCSURI: uri, Archive: archive}
		if err := q.PublishIngest(ctx, job); err != nil {
			return nil, fmt.Errorf("runBatch: publish %s: %w", uri, err)
		}
		ids = append(ids, job.JobID)
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		results, done, err := collect(ctx, store, ids)
		if err != nil {
			return nil, fmt.Errorf("runBatch: %w", err)
		}
		if done {
			return results, nil
		}
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		case <-ticker.C:
		}
	}
}

func collect(ctx context.Context, store jobs.JobStore, ids []string) ([]*jobs.IngestJob, bool, error) {
	results := make([]*jobs.IngestJob, 0, len(ids))
	done := true
	for _, id := range ids {
		j, err := store.GetJob(ctx, id)
		if err != nil {
			return nil, false, err
		}
		if j.Status != jobs.JobStatusCompleted && j.Status != jobs.JobStatusFailed {
			done = false
		}
		results = append(results, j)
	}
	return results, done, nil
}
