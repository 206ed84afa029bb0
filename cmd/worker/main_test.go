package main

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dvloznov/statement-insights/internal/jobs"
	"github.com/dvloznov/statement-insights/internal/jobs/inmemory"
	"github.com/dvloznov/statement-insights/internal/logger"
)

func TestRunBatch(t *testing.T) {
	ctx, cancel := context.WithTimeout(logger.WithContext(context.Background(), logger.NewWithWriter(io.Discard)), 10*time.Second)
	defer cancel()

	store := inmemory.NewStore()
	q := inmemory.NewQueue(3, 2, store)
	defer q.Stop(context.Background())

	handler := func(ctx context.Context, job *jobs.IngestJob) error {
		if job.GCSURI == "gs://b/bad.csv" {
			return jobs.Permanent(errors.New("no valid transactions found"))
		}
		job.SessionID = "s-" + job.JobID
		job.TransactionCount = 4
		return nil
	}

	results, err := runBatch(ctx, q, store, handler, []string{"gs://b/a.csv", "gs://b/bad.csv", "gs://b/c.csv"}, true)
	if err != nil {
		t.Fatalf("runBatch() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results", len(results))
	}

	want := []jobs.JobStatus{jobs.JobStatusCompleted, jobs.JobStatusFailed, jobs.JobStatusCompleted}
	for i, r := range results {
		if r.Status != want[i] {
			t.Errorf("%s status = %s, want %s", r.GCSURI, r.Status, want[i])
		}
		if !r.Archive {
			t.Errorf("%s should request archiving", r.GCSURI)
		}
	}
	if results[0].TransactionCount != 4 || results[0].SessionID == "" {
		t.Errorf("unexpected result: %+v", results[0])
	}
}

func TestRunBatch_Timeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(logger.WithContext(context.Background(), logger.NewWithWriter(io.Discard)), 300*time.Millisecond)
	defer cancel()

	store := inmemory.NewStore()
	q := inmemory.NewQueue(1, 1, store)
	defer q.Stop(context.Background())

	release := make(chan struct{})
	defer close(release)
	handler := func(ctx context.Context, job *jobs.IngestJob) error {
		<-release
		return nil
	}

	results, err := runBatch(ctx, q, store, handler, []string{"gs://b/slow.csv"}, false)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("runBatch() error = %v, want deadline exceeded", err)
	}
	if len(results) != 1 || results[0].Status == jobs.JobStatusCompleted {
		t.Errorf("unexpected results: %+v", results)
	}
}

func TestReadURIList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uris.txt")
	content := "# march\ngs://b/march.xlsx\n\n  gs://b/april.csv  \n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := readURIList(path)
	if err != nil {
		t.Fatalf("readURIList() error = %v", err)
	}
	if len(got) != 2 || got[0] != "gs://b/march.xlsx" || got[1] != "gs://b/april.csv" {
		t.Errorf("got %v", got)
	}
}
