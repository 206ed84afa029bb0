package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/dvloznov/statement-insights/internal/grid"
	"github.com/dvloznov/statement-insights/internal/logger"
)

// PipelineStep represents a single step in the ingestion pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	// Source is a local path or a gs:// URI. When Data is already set the
	// fetch step is skipped and Source only names the file.
	Source   string
	Filename string
	Data     []byte

	// Manual overrides column detection for the roles it names.
	Manual map[Role]string

	Grids        []grid.Grid
	Tables       []Table
	Mappings     []ColumnMapping // parallel to Tables; nil for skipped sheets
	Transactions []domain.Transaction
	Reports      []BuildReport
}

// Step 1: FetchStep reads the statement bytes from GCS or local disk.
type FetchStep struct {
	Storage StorageService
}

func (s *FetchStep) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)

	if state.Filename == "" {
		state.Filename = filepath.Base(state.Source)
	}
	if state.Data != nil {
		return nil
	}

	if strings.HasPrefix(state.Source, "gs://") {
		if s.Storage == nil {
			return fmt.Errorf("FetchStep: no storage configured for %s", state.Source)
		}
		data, err := s.Storage.FetchFromGCS(ctx, state.Source)
		if err != nil {
			return err
		}
		state.Filename = s.Storage.ExtractFilenameFromGCSURI(state.Source)
		state.Data = data
	} else {
		data, err := os.ReadFile(state.Source)
		if err != nil {
			return fmt.Errorf("FetchStep: reading %s: %w", state.Source, err)
		}
		state.Data = data
	}

	log.Debug().Str("source", state.Source).Int("bytes", len(state.Data)).Msg("Fetched statement")
	return nil
}

// Step 2: LoadGridsStep decodes the file into one grid per sheet.
type LoadGridsStep struct{}

func (s *LoadGridsStep) Execute(ctx context.Context, state *PipelineState) error {
	grids, err := grid.Load(state.Filename, state.Data)
	if err != nil {
		return err
	}
	state.Grids = grids

	log := logger.FromContext(ctx)
	log.Debug().Int("sheets", len(grids)).Msg("Loaded sheets")
	return nil
}

// Step 3: ClassifyStep promotes headers and removes junk rows.
type ClassifyStep struct {
	Config DetectionConfig
}

func (s *ClassifyStep) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)

	state.Tables = make([]Table, len(state.Grids))
	for i, g := range state.Grids {
		t := ClassifyGrid(g, s.Config)
		state.Tables[i] = t
		log.Debug().
			Str("sheet", t.Sheet).
			Strs("columns", t.Columns).
			Int("rows", len(t.Rows)).
			Msg("Classified sheet")
	}
	return nil
}

// Step 4: DetectColumnsStep maps columns to roles for each sheet. Sheets that
// fail are skipped as long as one sheet succeeds.
type DetectColumnsStep struct {
	Config    DetectionConfig
	Suggester ColumnSuggester
}

func (s *DetectColumnsStep) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)

	state.Mappings = make([]ColumnMapping, len(state.Tables))
	var firstErr error
	detected := 0

	for i, t := range state.Tables {
		m, err := DetectColumns(t, s.Config, state.Manual)
		if err != nil && s.Suggester != nil && errors.Is(err, ErrSchemaNotDetected) {
			m = s.suggest(ctx, t, state.Manual)
			if m != nil {
				err = nil
			}
		}
		if err != nil {
			log.Warn().Err(err).Str("sheet", t.Sheet).Msg("Skipping sheet")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		state.Mappings[i] = m
		detected++
		log.Info().Str("sheet", t.Sheet).Interface("mapping", m.Names()).Msg("Detected columns")
	}

	if detected == 0 {
		if firstErr == nil {
			firstErr = &SchemaError{Missing: RequiredRoles}
		}
		return firstErr
	}
	return nil
}

// suggest asks the suggester for a mapping and validates it. Manual entries
// still take precedence. A failed or invalid suggestion returns nil.
func (s *DetectColumnsStep) suggest(ctx context.Context, t Table, manual map[Role]string) ColumnMapping {
	log := logger.FromContext(ctx)

	suggested, err := s.Suggester.SuggestMapping(ctx, t)
	if err != nil {
		log.Warn().Err(err).Str("sheet", t.Sheet).Msg("Column suggestion failed")
		return nil
	}
	if suggested == nil {
		suggested = make(map[Role]string)
	}
	for role, name := range manual {
		suggested[role] = name
	}

	m, err := DetectColumns(t, s.Config, suggested)
	if err != nil {
		log.Warn().Err(err).Str("sheet", t.Sheet).Msg("Column suggestion rejected")
		return nil
	}
	return m
}

// Step 5: BuildStep builds transactions for every mapped sheet and
// concatenates them.
type BuildStep struct {
	Builder *Builder
}

func (s *BuildStep) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)

	for i, t := range state.Tables {
		m := state.Mappings[i]
		if m == nil {
			continue
		}
		txs, report := s.Builder.Build(t, m)
		state.Transactions = append(state.Transactions, txs...)
		state.Reports = append(state.Reports, report)

		log.Info().
			Str("sheet", t.Sheet).
			Int("rows_in", report.RowsIn).
			Int("rows_emitted", report.RowsEmitted).
			Bool("polarity_inverted", report.PolarityInverted).
			Msg("Built transactions")
	}
	return nil
}

// Step 6: VerifyStep fails when nothing survived filtering.
type VerifyStep struct{}

func (s *VerifyStep) Execute(ctx context.Context, state *PipelineState) error {
	if len(state.Transactions) == 0 {
		return ErrNoTransactions
	}
	return nil
}
