// Package app assembles the ingestion components from a Config.
package app

import (
	"context"
	"fmt"

	"github.com/dvloznov/statement-insights/internal/config"
	"github.com/dvloznov/statement-insights/internal/gcsuploader"
	infraBQ "github.com/dvloznov/statement-insights/internal/infra/bigquery"
	"github.com/dvloznov/statement-insights/internal/ingest"
	"github.com/dvloznov/statement-insights/internal/logger"
	"github.com/dvloznov/statement-insights/internal/pipeline"
	"github.com/dvloznov/statement-insights/internal/session"
	"github.com/dvloznov/statement-insights/internal/session/inmemory"
	"github.com/dvloznov/statement-insights/internal/session/redisstore"
)

// Components are the wired collaborators shared by the binaries.
type Components struct {
	Detection pipeline.DetectionConfig
	Storage   *gcsuploader.GCSStorageService
	Ingestor  *pipeline.Ingestor
	Sessions  session.Store
	Archiver  *infraBQ.Archiver
	Service   *ingest.Service

	closers []func() error
}

// Build wires components for cfg. Optional backends (Redis, BigQuery,
// Gemini, the upload bucket) are enabled only when configured.
func Build(ctx context.Context, cfg config.Config) (*Components, error) {
	log := logger.FromContext(ctx)
	c := &Components{Storage: gcsuploader.NewGCSStorageService()}

	c.Detection = pipeline.DefaultDetectionConfig()
	if cfg.DetectionProfile != "" {
		det, err := pipeline.LoadDetectionProfile(cfg.DetectionProfile)
		if err != nil {
			return nil, fmt.Errorf("Build: %w", err)
		}
		c.Detection = det
		log.Info().Str("profile", cfg.DetectionProfile).Msg("Loaded detection profile")
	}

	var suggester pipeline.ColumnSuggester
	if cfg.GeminiModel != "" {
		suggester = pipeline.NewGeminiSuggester(cfg.GeminiModel)
		log.Info().Str("model", cfg.GeminiModel).Msg("Column suggestions enabled")
	}
	c.Ingestor = pipeline.NewIngestor(c.Detection, c.Storage, suggester, nil)

	if cfg.RedisURL != "" {
		client, err := redisstore.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("Build: %w", err)
		}
		c.closers = append(c.closers, client.Close)
		c.Sessions = redisstore.NewStore(client, cfg.SessionTTL)
		log.Info().Msg("Using Redis session store")
	} else {
		c.Sessions = inmemory.NewStore(cfg.SessionTTL)
		log.Info().Msg("Using in-memory session store")
	}

	opts := ingest.Options{}
	if cfg.GCSBucket != "" {
		opts.Uploader = c.Storage
		opts.Bucket = cfg.GCSBucket
	}
	if cfg.ArchiveEnabled() {
		repo, err := infraBQ.NewBigQueryArchiveRepository(ctx, infraBQ.Dataset{
			ProjectID: cfg.BQProject,
			DatasetID: cfg.BQDataset,
		})
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("Build: %w", err)
		}
		c.closers = append(c.closers, repo.Close)
		c.Archiver = infraBQ.NewArchiver(repo)
		opts.Archiver = c.Archiver
		log.Info().Str("project", cfg.BQProject).Str("dataset", cfg.BQDataset).Msg("Archive enabled")
	}

	c.Service = ingest.NewService(c.Ingestor, c.Sessions, opts)
	return c, nil
}

// Close releases backend connections. It returns the first error.
func (c *Components) Close() error {
	var first error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	c.closers = nil
	return first
}
