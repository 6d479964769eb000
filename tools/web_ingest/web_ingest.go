package web_ingest

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mohammad-safakhou/specharvest/internal/helpers"
	rootmodels "github.com/mohammad-safakhou/specharvest/models"
	"github.com/mohammad-safakhou/specharvest/tools/web_ingest/models"
	"github.com/mohammad-safakhou/specharvest/tools/web_ingest/session"
	"github.com/mohammad-safakhou/specharvest/tools/web_ingest/session/inmemory"
	redis_session "github.com/mohammad-safakhou/specharvest/tools/web_ingest/session/redis"
	"github.com/redis/go-redis/v9"
)

const (
	chunkRunes   = 1000
	chunkOverlap = 200
	DefaultTTL   = 48 * time.Hour
)

// ErrSessionNotFound is returned when searching a run that was never ingested.
var ErrSessionNotFound = errors.New("search session not found")

// Ingest indexes plain documents per run for full-text search.
type Ingest struct {
	Store session.Store // Store interface for session management
	TTL   time.Duration
}

type StoreType string

const (
	InMemoryStore StoreType = "inmemory"
	RedisStore    StoreType = "redis"
)

// NewIngest creates a new Ingest instance backed by storeType. client is
// only used by RedisStore.
func NewIngest(storeType StoreType, client *redis.Client) (*Ingest, error) {
	var store session.Store
	switch storeType {
	case InMemoryStore:
		store = inmemory.NewInMemorySessionStore()
	case RedisStore:
		if client == nil {
			return nil, errors.New("redis client required for redis search store")
		}
		store = redis_session.NewRedisSessionStore(client)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", storeType)
	}
	return &Ingest{Store: store, TTL: DefaultTTL}, nil
}

// Ingest replaces the index of runID with docs.
func (i *Ingest) Ingest(runID string, docs []rootmodels.PlainDocument) (models.IngestResponse, error) {
	if runID == "" {
		return models.IngestResponse{}, errors.New("run id required")
	}
	ttl := i.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	sess, err := i.Store.EnsureSession(runID, ttl)
	if err != nil {
		return models.IngestResponse{}, err
	}
	if err := sess.Reset(); err != nil {
		return models.IngestResponse{}, fmt.Errorf("reset session: %w", err)
	}

	resp := models.IngestResponse{SessionID: sess.ID()}
	now := time.Now()
	for _, doc := range docs {
		text := helpers.PlainText(doc.Body)
		if strings.TrimSpace(text) == "" {
			continue
		}
		hash := sha1Hex(doc.Target + "\n" + text)
		for n, part := range makeChunks(text, chunkRunes, chunkOverlap) {
			chunk := models.DocChunk{
				DocID:       fmt.Sprintf("%s#%03d", hash, n),
				RunID:       runID,
				SourceName:  doc.SourceName,
				Title:       doc.Title,
				Section:     doc.Section,
				URL:         doc.Target,
				Text:        part,
				ContentHash: hash,
				ChunkIndex:  n,
				IngestedAt:  now,
			}
			if err := sess.AddChunk(chunk); err != nil {
				return models.IngestResponse{}, fmt.Errorf("failed to add chunk: %w", err)
			}
			resp.Chunks++
		}
		resp.Documents++
	}
	return resp, nil
}

// Search queries the index of runID.
func (i *Ingest) Search(runID, query string, size int) ([]models.Hit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("query required")
	}
	sess, err := i.Store.GetSession(runID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	return sess.Search(query, size)
}

// Drop removes the index of runID.
func (i *Ingest) Drop(runID string) error {
	return i.Store.DeleteSession(runID)
}

func sha1Hex(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:])
}

// makeChunks splits text into windows of approx runes overlapping by overlap.
func makeChunks(text string, approx, overlap int) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= approx {
		return []string{string(runes)}
	}
	var chunks []string
	for start := 0; start < len(runes); {
		end := start + approx
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
		start = end - overlap
		if start < 0 {
			start = 0
		}
	}
	return chunks
}
