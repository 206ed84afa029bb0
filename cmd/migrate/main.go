package main

import (
	"context"
	"flag"
	"os"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/statement-insights/internal/config"
	infraBQ "github.com/dvloznov/statement-insights/internal/infra/bigquery"
	"github.com/dvloznov/statement-insights/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	cfg.RegisterFlags(flag.CommandLine)
	appliedBy := flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
	migrationsDir := flag.String("migrations", "", "Directory of NNNN_name.sql files (defaults to the built-in archive schema)")
	flag.Parse()

	log := logger.NewWithLevel(cfg.LogLevel)

	if cfg.BQProject == "" {
		log.Fatal().Msg("Error: -bq-project (or BQ_PROJECT) is required")
	}
	ds := infraBQ.Dataset{ProjectID: cfg.BQProject, DatasetID: cfg.BQDataset}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	var migrations []infraBQ.Migration
	if *migrationsDir != "" {
		migrations, err = infraBQ.ReadMigrations(os.DirFS(*migrationsDir), ".", ds)
	} else {
		migrations, err = infraBQ.ReadMigrations(infraBQ.MigrationFiles, "migrations", ds)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read migrations")
	}

	client, err := bigquery.NewClient(ctx, ds.ProjectID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer client.Close()

	log.Info().Str("project", ds.ProjectID).Str("dataset", ds.DatasetID).Msg("Connected to BigQuery")

	applied, err := infraBQ.MigrateWithClient(ctx, client, ds, migrations, *appliedBy)
	if err != nil {
		log.Fatal().Err(err).Int("applied", applied).Msg("Migration failed")
	}

	if applied == 0 {
		log.Info().Msg("No new migrations to apply. Dataset is up to date.")
	} else {
		log.Info().Int("applied", applied).Msg("Migrations applied")
	}
}
