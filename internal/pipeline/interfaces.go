package pipeline

import (
	"context"
)

// StorageService fetches statement files from object storage.
type StorageService interface {
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)
	ExtractFilenameFromGCSURI(uri string) string
}

// ColumnSuggester proposes a role -> column name mapping for a table whose
// columns could not be detected from keywords.
type ColumnSuggester interface {
	SuggestMapping(ctx context.Context, t Table) (map[Role]string, error)
}
