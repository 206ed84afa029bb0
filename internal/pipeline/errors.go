package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSchemaNotDetected means a sheet lacks a date, amount or description column.
	ErrSchemaNotDetected = errors.New("required columns not detected")

	// ErrNoTransactions means every row was filtered out.
	ErrNoTransactions = errors.New("no valid transactions found")
)

// SchemaError details which roles could not be mapped on a sheet.
type SchemaError struct {
	Sheet   string
	Missing []Role
	Columns []string
}

func (e *SchemaError) Error() string {
	missing := make([]string, len(e.Missing))
	for i, r := range e.Missing {
		missing[i] = string(r)
	}
	return fmt.Sprintf("%v: sheet %q: missing %s (found columns: %s)",
		ErrSchemaNotDetected, e.Sheet, strings.Join(missing, ", "), strings.Join(e.Columns, ", "))
}

func (e *SchemaError) Unwrap() error {
	return ErrSchemaNotDetected
}
