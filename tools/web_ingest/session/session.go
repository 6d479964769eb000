package session

import (
	"time"

	"github.com/mohammad-safakhou/specharvest/tools/web_ingest/models"
)

// Store interface for session management. A session holds the search index
// of one run and shares the run's ID.
type Store interface {
	EnsureSession(id string, ttl time.Duration) (Session, error)
	GetSession(id string) (Session, error)
	DeleteSession(id string) error
}

// Session interface for session operations
type Session interface {
	ID() string
	Expire(ttl time.Duration)
	Reset() error
	AddChunk(chunk models.DocChunk) error
	Chunks() []models.DocChunk
	Search(query string, size int) ([]models.Hit, error)
}
