package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dvloznov/statement-insights/internal/analytics"
	"github.com/dvloznov/statement-insights/internal/app"
	"github.com/dvloznov/statement-insights/internal/config"
	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/dvloznov/statement-insights/internal/export"
	"github.com/dvloznov/statement-insights/internal/gcsuploader"
	"github.com/dvloznov/statement-insights/internal/ingest"
	"github.com/dvloznov/statement-insights/internal/logger"
	"github.com/dvloznov/statement-insights/internal/pipeline"
	"github.com/rs/zerolog"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	switch os.Args[1] {
	case "ingest":
		runIngest(cfg)
	case "analyze":
		runAnalyze(cfg)
	case "export":
		runExport(cfg)
	case "upload":
		runUpload(cfg)
	case "inspect":
		runInspect(cfg)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Statement Insights CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  ingest    Parse a statement (local path or gs:// URI) and print a report")
	fmt.Println("  analyze   Print category snapshot, recurring, anomalies and forecast as JSON")
	fmt.Println("  export    Write the transactions of a statement to an .xlsx file")
	fmt.Println("  upload    Upload a statement file to GCS")
	fmt.Println("  inspect   Show the transactions of an archived upload")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// sourceFlags are shared by the commands that read a statement.
type sourceFlags struct {
	source   string
	uploadID string
	mapping  string
}

func (s *sourceFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&s.source, "source", "", "Statement path or gs:// URI")
	fs.StringVar(&s.uploadID, "upload-id", "", "Read an archived upload instead of a file")
	fs.StringVar(&s.mapping, "map", "", "Manual columns, e.g. date=Posted,amount=Sum")
}

// setup parses flags for a subcommand and wires the components.
func setup(cfg *config.Config, fs *flag.FlagSet, timeout time.Duration) (context.Context, context.CancelFunc, zerolog.Logger, *app.Components) {
	cfg.RegisterFlags(fs)
	fs.Parse(os.Args[2:])

	log := logger.NewWithLevel(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = logger.WithContext(ctx, log)

	components, err := app.Build(ctx, *cfg)
	if err != nil {
		cancel()
		log.Fatal().Err(err).Msg("Failed to initialize components")
	}
	return ctx, cancel, log, components
}

// load returns the transactions named by the source flags. res is nil for
// archived uploads.
func load(ctx context.Context, c *app.Components, s sourceFlags) ([]domain.Transaction, *pipeline.Result, error) {
	switch {
	case s.uploadID != "":
		if c.Archiver == nil {
			return nil, nil, ingest.ErrArchiveDisabled
		}
		txs, err := c.Archiver.Restore(ctx, s.uploadID)
		return txs, nil, err
	case s.source != "":
		raw, err := parseMapping(s.mapping)
		if err != nil {
			return nil, nil, err
		}
		manual, err := ingest.ParseManualMapping(raw)
		if err != nil {
			return nil, nil, err
		}
		res, err := c.Ingestor.Ingest(ctx, s.source, nil, manual)
		if err != nil {
			return nil, nil, err
		}
		return res.Transactions, res, nil
	default:
		return nil, nil, fmt.Errorf("one of -source or -upload-id is required")
	}
}

func runIngest(cfg config.Config) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	var src sourceFlags
	src.register(fs)
	archive := fs.Bool("archive", false, "Copy the transactions to the BigQuery archive")
	from := fs.String("from", "", "First month of the snapshot (MM/YYYY)")
	to := fs.String("to", "", "Last month of the snapshot (MM/YYYY)")

	ctx, cancel, log, c := setup(&cfg, fs, 5*time.Minute)
	defer cancel()
	defer c.Close()

	if src.source == "" {
		log.Fatal().Msg("Error: -source is required")
	}
	opts, err := snapshotOptions(*from, *to)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid month range")
	}

	txs, res, err := load(ctx, c, sourceFlags{source: src.source, mapping: src.mapping})
	if err != nil {
		log.Fatal().Err(err).Msg("Ingestion failed")
	}

	printReport(os.Stdout, res)
	printSnapshot(os.Stdout, analytics.BuildCategorySnapshot(txs, opts))

	if *archive {
		if c.Archiver == nil {
			log.Fatal().Msg("Error: -archive needs -bq-project (or BQ_PROJECT)")
		}
		gcsURI := ""
		if gcsuploader.IsGCSURI(src.source) {
			gcsURI = src.source
		}
		uploadID, err := c.Archiver.Archive(ctx, "", res.Filename, gcsURI, txs)
		if err != nil {
			log.Fatal().Err(err).Msg("Archiving failed")
		}
		fmt.Printf("\nArchived as upload %s\n", uploadID)
	}
}

func runAnalyze(cfg config.Config) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	var src sourceFlags
	src.register(fs)
	from := fs.String("from", "", "First month of the snapshot (MM/YYYY)")
	to := fs.String("to", "", "Last month of the snapshot (MM/YYYY)")

	ctx, cancel, log, c := setup(&cfg, fs, 5*time.Minute)
	defer cancel()
	defer c.Close()

	opts, err := snapshotOptions(*from, *to)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid month range")
	}

	txs, _, err := load(ctx, c, src)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load transactions")
	}

	if err := writeJSON(os.Stdout, buildAnalysis(txs, opts)); err != nil {
		log.Fatal().Err(err).Msg("Failed to write output")
	}
}

func runExport(cfg config.Config) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	var src sourceFlags
	src.register(fs)
	out := fs.String("out", export.Filename, "Output .xlsx path")
	rtl := fs.Bool("rtl", false, "Right-to-left sheet layout")

	ctx, cancel, log, c := setup(&cfg, fs, 5*time.Minute)
	defer cancel()
	defer c.Close()

	txs, _, err := load(ctx, c, src)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load transactions")
	}

	f, err := os.Create(*out)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create output file")
	}
	defer f.Close()

	opts := export.DefaultOptions()
	opts.RightToLeft = *rtl
	if err := export.WriteXLSX(f, txs, opts); err != nil {
		log.Fatal().Err(err).Msg("Export failed")
	}

	fmt.Printf("Wrote %d transactions to %s\n", len(txs), *out)
}

func runUpload(cfg config.Config) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	objectName := fs.String("object", "", "GCS object name (defaults to statements/YYYY/MM/<id>/<filename>)")
	filePath := fs.String("file", "", "Path to local statement file")

	ctx, cancel, log, c := setup(&cfg, fs, 5*time.Minute)
	defer cancel()
	defer c.Close()

	if cfg.GCSBucket == "" || *filePath == "" {
		log.Fatal().Msg("Usage: cli upload -gcs-bucket NAME -file PATH")
	}

	if *objectName == "" {
		*objectName = gcsuploader.StatementObjectName(uuidString(), filepath.Base(*filePath), time.Now())
	}

	log.Info().
		Str("bucket", cfg.GCSBucket).
		Str("object", *objectName).
		Str("file", *filePath).
		Msg("Uploading file to GCS")

	if err := c.Storage.UploadFile(ctx, cfg.GCSBucket, *objectName, *filePath); err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("Uploaded %s to %s\n", *filePath, gcsuploader.GCSURI(cfg.GCSBucket, *objectName))
}

func runInspect(cfg config.Config) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	uploadID := fs.String("upload-id", "", "Archived upload to inspect")

	ctx, cancel, log, c := setup(&cfg, fs, 2*time.Minute)
	defer cancel()
	defer c.Close()

	if *uploadID == "" {
		log.Fatal().Msg("Error: -upload-id is required")
	}

	txs, _, err := load(ctx, c, sourceFlags{uploadID: *uploadID})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to restore upload")
	}

	printTransactions(os.Stdout, *uploadID, txs)
}
