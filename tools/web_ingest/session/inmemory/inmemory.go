package inmemory

import (
	"sync"
	"time"

	"github.com/blevesearch/bleve"
	"github.com/google/uuid"
	"github.com/mohammad-safakhou/specharvest/tools/web_ingest/models"
	"github.com/mohammad-safakhou/specharvest/tools/web_ingest/session"
)

type Store struct {
	sessions map[string]*Session
	mu       sync.RWMutex
}

func NewInMemorySessionStore() session.Store {
	return &Store{sessions: make(map[string]*Session)}
}

func (store *Store) EnsureSession(id string, ttl time.Duration) (session.Session, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if id != "" {
		if sess, ok := store.sessions[id]; ok && !sess.expired() {
			sess.Expire(ttl)
			return sess, nil
		}
	} else {
		id = uuid.NewString()
	}
	index, err := session.NewIndex()
	if err != nil {
		return nil, err
	}
	sess := &Session{
		id:        id,
		expiresAt: time.Now().Add(ttl),
		bleve:     index,
		meta:      make(map[string]models.DocChunk),
	}
	store.sessions[sess.id] = sess
	return sess, nil
}

func (store *Store) GetSession(id string) (session.Session, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()
	sess, ok := store.sessions[id]
	if !ok || sess.expired() {
		return nil, nil
	}
	return sess, nil
}

func (store *Store) DeleteSession(id string) error {
	store.mu.Lock()
	sess, ok := store.sessions[id]
	delete(store.sessions, id)
	store.mu.Unlock()
	if ok {
		return sess.bleve.Close()
	}
	return nil
}

type Session struct {
	id        string
	expiresAt time.Time
	bleve     bleve.Index
	meta      map[string]models.DocChunk
	mu        sync.RWMutex
}

func (s *Session) ID() string { return s.id }

func (s *Session) Expire(ttl time.Duration) {
	s.mu.Lock()
	s.expiresAt = time.Now().Add(ttl)
	s.mu.Unlock()
}

func (s *Session) expired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Now().After(s.expiresAt)
}

func (s *Session) Reset() error {
	index, err := session.NewIndex()
	if err != nil {
		return err
	}
	s.mu.Lock()
	old := s.bleve
	s.bleve = index
	s.meta = make(map[string]models.DocChunk)
	s.mu.Unlock()
	return old.Close()
}

func (s *Session) AddChunk(chunk models.DocChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta[chunk.DocID] = chunk
	return s.bleve.Index(chunk.DocID, chunk)
}

func (s *Session) Chunks() []models.DocChunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.DocChunk, 0, len(s.meta))
	for _, c := range s.meta {
		out = append(out, c)
	}
	return out
}

func (s *Session) Search(query string, size int) ([]models.Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return session.SearchIndex(s.bleve, s.meta, query, size)
}
