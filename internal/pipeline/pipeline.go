package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/dvloznov/statement-insights/internal/logger"
)

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// Result is the outcome of ingesting one statement file.
type Result struct {
	Filename     string               `json:"filename"`
	Transactions []domain.Transaction `json:"transactions"`
	Reports      []BuildReport        `json:"reports"`
}

// Ingestor wires the standard ingestion pipeline with its collaborators.
type Ingestor struct {
	cfg       DetectionConfig
	storage   StorageService
	suggester ColumnSuggester
	signs     SignConvention
}

// NewIngestor creates an Ingestor. storage, suggester and signs may be nil:
// gs:// sources then fail, detection has no model fallback, and polarity uses
// PositiveMajority.
func NewIngestor(cfg DetectionConfig, storage StorageService, suggester ColumnSuggester, signs SignConvention) *Ingestor {
	return &Ingestor{cfg: cfg, storage: storage, suggester: suggester, signs: signs}
}

// NewStatementIngestionPipeline creates the standard 6-step pipeline.
func (i *Ingestor) NewStatementIngestionPipeline() *Pipeline {
	return NewPipeline(
		&FetchStep{Storage: i.storage},
		&LoadGridsStep{},
		&ClassifyStep{Config: i.cfg},
		&DetectColumnsStep{Config: i.cfg, Suggester: i.suggester},
		&BuildStep{Builder: NewBuilder(i.cfg, i.signs)},
		&VerifyStep{},
	)
}

// Ingest runs the pipeline over a statement. When data is nil the file is
// read from source (a local path or gs:// URI); otherwise source only names
// the file. manual may be nil.
func (i *Ingestor) Ingest(ctx context.Context, source string, data []byte, manual map[Role]string) (*Result, error) {
	log := logger.FromContext(ctx).With().Str("source", source).Logger()
	ctx = logger.WithContext(ctx, log)

	state := &PipelineState{Source: source, Data: data, Manual: manual}
	if err := i.NewStatementIngestionPipeline().Execute(ctx, state); err != nil {
		log.Error().Err(err).Msg("Ingestion failed")
		return nil, err
	}

	log.Info().
		Int("transactions", len(state.Transactions)).
		Int("sheets", len(state.Reports)).
		Msg("Statement ingested")

	return &Result{
		Filename:     state.Filename,
		Transactions: state.Transactions,
		Reports:      state.Reports,
	}, nil
}
