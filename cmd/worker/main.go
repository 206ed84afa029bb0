package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dvloznov/statement-insights/internal/app"
	"github.com/dvloznov/statement-insights/internal/config"
	"github.com/dvloznov/statement-insights/internal/jobs"
	"github.com/dvloznov/statement-insights/internal/jobs/inmemory"
	"github.com/dvloznov/statement-insights/internal/logger"
)

// The worker ingests a batch of gs:// statements through the job queue. With
// REDIS_URL set the resulting sessions are visible to the API.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	cfg.RegisterFlags(flag.CommandLine)
	listFile := flag.String("list", "", "File with one gs:// URI per line (in addition to arguments)")
	archive := flag.Bool("archive", false, "Copy each result to the BigQuery archive")
	timeout := flag.Duration("timeout", 30*time.Minute, "Give up after this long")
	flag.Parse()

	// Initialize logger
	log := logger.NewWithLevel(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	uris := flag.Args()
	if *listFile != "" {
		fromFile, err := readURIList(*listFile)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read URI list")
		}
		uris = append(uris, fromFile...)
	}
	if len(uris) == 0 {
		log.Fatal().Msg("Usage: worker [-list FILE] gs://bucket/statement.xlsx ...")
	}

	// Create context that cancels on interrupt
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	components, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize components")
	}
	defer components.Close()

	// Initialize job store and queue
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(len(uris), cfg.Workers, jobStore)

	log.Info().Int("statements", len(uris)).Int("workers", cfg.Workers).Msg("Starting worker")

	results, err := runBatch(ctx, jobQueue, jobStore, components.Service.HandleJob, uris, *archive)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if stopErr := jobQueue.Stop(shutdownCtx); stopErr != nil {
		log.Error().Err(stopErr).Msg("Error during graceful shutdown")
	}

	failed := printResults(os.Stdout, results)
	if err != nil {
		log.Fatal().Err(err).Msg("Batch did not finish")
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func readURIList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var uris []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		uris = append(uris, line)
	}
	return uris, sc.Err()
}

func printResults(w io.Writer, results []*jobs.IngestJob) int {
	failed := 0
	for _, j := range results {
		switch j.Status {
		case jobs.JobStatusCompleted:
			fmt.Fprintf(w, "OK      %s  session=%s  transactions=%d\n", j.GCSURI, j.SessionID, j.TransactionCount)
			if j.Warning != "" {
				fmt.Fprintf(w, "        %s\n", j.Warning)
			}
		default:
			failed++
			fmt.Fprintf(w, "%-7s %s  %s\n", strings.ToUpper(string(j.Status)), j.GCSURI, j.Error)
		}
	}
	return failed
}
