package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/dvloznov/statement-insights/internal/logger"
	"github.com/xuri/excelize/v2"
)

// MockStorageService is a mock implementation of StorageService.
type MockStorageService struct {
	FetchFromGCSFunc              func(ctx context.Context, gcsURI string) ([]byte, error)
	ExtractFilenameFromGCSURIFunc func(uri string) string
}

func (m *MockStorageService) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	if m.FetchFromGCSFunc != nil {
		return m.FetchFromGCSFunc(ctx, gcsURI)
	}
	return nil, nil
}

func (m *MockStorageService) ExtractFilenameFromGCSURI(uri string) string {
	if m.ExtractFilenameFromGCSURIFunc != nil {
		return m.ExtractFilenameFromGCSURIFunc(uri)
	}
	return ""
}

// MockColumnSuggester is a mock implementation of ColumnSuggester.
type MockColumnSuggester struct {
	SuggestMappingFunc func(ctx context.Context, t Table) (map[Role]string, error)
	Calls              int
}

func (m *MockColumnSuggester) SuggestMapping(ctx context.Context, t Table) (map[Role]string, error) {
	m.Calls++
	if m.SuggestMappingFunc != nil {
		return m.SuggestMappingFunc(ctx, t)
	}
	return nil, errors.New("not configured")
}

func quietContext() context.Context {
	return logger.WithContext(context.Background(), logger.NewWithWriter(io.Discard))
}

const creditCardCSV = `פירוט עסקאות
כרטיס 1234

תאריך עסקה,שם בית העסק,קטגוריה,סכום עסקה מקורי,סכום חיוב
01/03/2024,שופרסל,מזון,"₪1,234.50","₪1,234.50"
05/03/2024,פז,רכב,200.00,200.00
09/03/2024,נטפליקס,פנאי,49.90,49.90
12/03/2024,הוראת קבע ועד בית,,300.00,300.00
20/03/2024,סופר פארם,בריאות,80.00,80.00
15/03/2024,זיכוי,מזון,-50.00,-50.00
,סה"כ,,,"1,734.40"
`

func TestIngest_HeaderAtRowThree(t *testing.T) {
	ing := NewIngestor(DefaultDetectionConfig(), nil, nil, nil)

	res, err := ing.Ingest(quietContext(), "statement.csv", []byte(creditCardCSV), nil)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if len(res.Transactions) != 6 {
		t.Fatalf("expected 6 transactions, got %d", len(res.Transactions))
	}
	if len(res.Reports) != 1 || !res.Reports[0].PolarityInverted {
		t.Fatalf("expected a single inverted report, got %+v", res.Reports)
	}

	first := res.Transactions[0]
	if first.Amount != -1234.5 || first.Description != "שופרסל" || first.Category != "מזון" {
		t.Errorf("unexpected first transaction: %+v", first)
	}
	if first.Month.String() != "03/2024" {
		t.Errorf("Month = %v, want 03/2024", first.Month)
	}

	standing := res.Transactions[3]
	if standing.Category != DefaultDetectionConfig().StandingOrderCategory {
		t.Errorf("standing order category = %q", standing.Category)
	}

	refund := res.Transactions[5]
	if refund.Amount != 50 {
		t.Errorf("refund amount = %v, want 50", refund.Amount)
	}
}

func TestIngest_SchemaNotDetected(t *testing.T) {
	ing := NewIngestor(DefaultDetectionConfig(), nil, nil, nil)

	_, err := ing.Ingest(quietContext(), "s.csv", []byte("foo,bar\nx,y\n"), nil)

	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected *SchemaError, got %v", err)
	}
	if len(schemaErr.Columns) != 2 {
		t.Errorf("Columns = %v, want the two found columns", schemaErr.Columns)
	}
	if errors.Is(err, ErrNoTransactions) {
		t.Error("schema failure must be distinct from no transactions")
	}
}

func TestIngest_NoTransactions(t *testing.T) {
	ing := NewIngestor(DefaultDetectionConfig(), nil, nil, nil)
	csv := "date,description,amount\nnot-a-date,Coffee,-3\n"

	_, err := ing.Ingest(quietContext(), "s.csv", []byte(csv), nil)
	if !errors.Is(err, ErrNoTransactions) {
		t.Errorf("expected ErrNoTransactions, got %v", err)
	}
	if errors.Is(err, ErrSchemaNotDetected) {
		t.Error("no transactions must be distinct from schema failure")
	}
}

func TestIngest_ManualMapping(t *testing.T) {
	ing := NewIngestor(DefaultDetectionConfig(), nil, nil, nil)
	csv := "when,payee,value\n01/01/2024,Coffee,-3\n"

	res, err := ing.Ingest(quietContext(), "s.csv", []byte(csv), map[Role]string{
		RoleDate: "when", RoleDescription: "payee", RoleAmount: "value",
	})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if len(res.Transactions) != 1 || res.Transactions[0].Description != "Coffee" {
		t.Errorf("unexpected result: %+v", res.Transactions)
	}
}

func TestIngest_SuggesterFallback(t *testing.T) {
	csv := "when,payee,value\n01/01/2024,Coffee,-3\n"

	t.Run("valid suggestion", func(t *testing.T) {
		sugg := &MockColumnSuggester{
			SuggestMappingFunc: func(ctx context.Context, tbl Table) (map[Role]string, error) {
				return map[Role]string{RoleDate: "when", RoleDescription: "payee", RoleAmount: "value"}, nil
			},
		}
		ing := NewIngestor(DefaultDetectionConfig(), nil, sugg, nil)

		res, err := ing.Ingest(quietContext(), "s.csv", []byte(csv), nil)
		if err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}
		if sugg.Calls != 1 || len(res.Transactions) != 1 {
			t.Errorf("calls = %d, transactions = %d", sugg.Calls, len(res.Transactions))
		}
	})

	t.Run("invalid suggestion keeps schema error", func(t *testing.T) {
		sugg := &MockColumnSuggester{
			SuggestMappingFunc: func(ctx context.Context, tbl Table) (map[Role]string, error) {
				return map[Role]string{RoleDate: "nope"}, nil
			},
		}
		ing := NewIngestor(DefaultDetectionConfig(), nil, sugg, nil)

		_, err := ing.Ingest(quietContext(), "s.csv", []byte(csv), nil)
		if !errors.Is(err, ErrSchemaNotDetected) {
			t.Errorf("expected ErrSchemaNotDetected, got %v", err)
		}
	})
}

func TestIngest_FromGCS(t *testing.T) {
	var fetched string
	storage := &MockStorageService{
		FetchFromGCSFunc: func(ctx context.Context, gcsURI string) ([]byte, error) {
			fetched = gcsURI
			return []byte("date,description,amount\n01/01/2024,Coffee,-3\n"), nil
		},
		ExtractFilenameFromGCSURIFunc: func(uri string) string {
			return "statement.csv"
		},
	}
	ing := NewIngestor(DefaultDetectionConfig(), storage, nil, nil)

	res, err := ing.Ingest(quietContext(), "gs://bucket/statements/statement.csv", nil, nil)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if fetched != "gs://bucket/statements/statement.csv" {
		t.Errorf("fetched %q", fetched)
	}
	if res.Filename != "statement.csv" || len(res.Transactions) != 1 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestIngest_FetchError(t *testing.T) {
	storage := &MockStorageService{
		FetchFromGCSFunc: func(ctx context.Context, gcsURI string) ([]byte, error) {
			return nil, errors.New("bucket not found")
		},
	}
	ing := NewIngestor(DefaultDetectionConfig(), storage, nil, nil)

	if _, err := ing.Ingest(quietContext(), "gs://bucket/x.csv", nil, nil); err == nil {
		t.Error("expected fetch error")
	}
}

func TestIngest_MultiSheetSkipsUndetectedSheet(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", "Notes")
	f.SetSheetRow("Notes", "A1", &[]interface{}{"just", "some", "notes"})
	f.SetSheetRow("Notes", "A2", &[]interface{}{"a", "b", "c"})

	if _, err := f.NewSheet("March"); err != nil {
		t.Fatalf("NewSheet: %v", err)
	}
	f.SetSheetRow("March", "A1", &[]interface{}{"Date", "Description", "Amount"})
	f.SetSheetRow("March", "A2", &[]interface{}{"01/03/2024", "Coffee", -3.5})
	f.SetSheetRow("March", "A3", &[]interface{}{"02/03/2024", "Salary", 1000})

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("writing workbook: %v", err)
	}

	ing := NewIngestor(DefaultDetectionConfig(), nil, nil, nil)
	res, err := ing.Ingest(quietContext(), "book.xlsx", buf.Bytes(), nil)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if len(res.Reports) != 1 || res.Reports[0].Sheet != "March" {
		t.Errorf("expected only the March sheet to be built, got %+v", res.Reports)
	}
	if len(res.Transactions) != 2 {
		t.Errorf("expected 2 transactions, got %d", len(res.Transactions))
	}
}

func TestPipeline_WrapsStepErrors(t *testing.T) {
	boom := errors.New("boom")
	p := NewPipeline(&VerifyStep{}, stepFunc(func(context.Context, *PipelineState) error { return boom }))

	err := p.Execute(context.Background(), &PipelineState{})
	if !errors.Is(err, ErrNoTransactions) {
		t.Errorf("expected first step error, got %v", err)
	}
	if err.Error() != "pipeline step 1 failed: "+ErrNoTransactions.Error() {
		t.Errorf("unexpected message %q", err.Error())
	}
}

type stepFunc func(ctx context.Context, state *PipelineState) error

func (f stepFunc) Execute(ctx context.Context, state *PipelineState) error { return f(ctx, state) }
