// Package session keeps ingested transaction collections between requests.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/dvloznov/statement-insights/internal/pipeline"
	"github.com/google/uuid"
)

// DefaultTTL bounds how long an idle session is kept.
const DefaultTTL = 24 * time.Hour

// ErrNotFound is returned for an unknown or expired session ID.
var ErrNotFound = errors.New("session not found")

// Session is one uploaded statement and its canonical transactions.
type Session struct {
	ID           string                 `json:"id"`
	Filename     string                 `json:"filename"`
	CreatedAt    time.Time              `json:"created_at"`
	Transactions []domain.Transaction   `json:"transactions"`
	Reports      []pipeline.BuildReport `json:"reports"`
}

// New creates a session with a fresh ID from an ingestion result.
func New(res *pipeline.Result) *Session {
	s := &Session{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
	}
	if res != nil {
		s.Filename = res.Filename
		s.Transactions = res.Transactions
		s.Reports = res.Reports
	}
	return s
}

// Store persists sessions. Implementations are safe for concurrent use.
type Store interface {
	Save(ctx context.Context, s *Session) error
	// Get returns ErrNotFound (possibly wrapped) for unknown IDs.
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

// Clone returns a deep copy, so stored sessions never alias caller data.
func (s *Session) Clone() *Session {
	c := *s
	c.Transactions = append([]domain.Transaction(nil), s.Transactions...)
	c.Reports = make([]pipeline.BuildReport, len(s.Reports))
	for i, r := range s.Reports {
		c.Reports[i] = r
		if r.Mapping != nil {
			c.Reports[i].Mapping = make(map[pipeline.Role]string, len(r.Mapping))
			for k, v := range r.Mapping {
				c.Reports[i].Mapping[k] = v
			}
		}
	}
	return &c
}
