package redis_session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/blevesearch/bleve"
	"github.com/google/uuid"
	"github.com/mohammad-safakhou/specharvest/tools/web_ingest/models"
	"github.com/mohammad-safakhou/specharvest/tools/web_ingest/session"
	"github.com/redis/go-redis/v9"
)

// Store keeps chunk metadata in Redis so any instance can rebuild the
// in-memory bleve index of a session on first search.
type Store struct {
	client *redis.Client
	mu     sync.Mutex
	cache  map[string]*Session
}

func NewRedisSessionStore(client *redis.Client) session.Store {
	return &Store{client: client, cache: make(map[string]*Session)}
}

func metaKey(id string) string { return fmt.Sprintf("specharvest:search:%s:chunks", id) }

func (store *Store) EnsureSession(id string, ttl time.Duration) (session.Session, error) {
	ctx := context.Background()
	if id == "" {
		id = uuid.NewString()
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	if sess, ok := store.cache[id]; ok {
		sess.Expire(ttl)
		return sess, nil
	}
	sess := &Session{client: store.client, id: id, ttl: ttl}
	exists, err := store.client.Exists(ctx, metaKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		// Store empty meta to initialize
		if err := store.client.Set(ctx, metaKey(id), "{}", ttl).Err(); err != nil {
			return nil, err
		}
	} else {
		_ = store.client.Expire(ctx, metaKey(id), ttl).Err()
	}
	store.cache[id] = sess
	return sess, nil
}

func (store *Store) GetSession(id string) (session.Session, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if sess, ok := store.cache[id]; ok {
		return sess, nil
	}
	exists, err := store.client.Exists(context.Background(), metaKey(id)).Result()
	if err != nil || exists == 0 {
		return nil, err
	}
	sess := &Session{client: store.client, id: id, ttl: redis.KeepTTL}
	store.cache[id] = sess
	return sess, nil
}

func (store *Store) DeleteSession(id string) error {
	store.mu.Lock()
	delete(store.cache, id)
	store.mu.Unlock()
	return store.client.Del(context.Background(), metaKey(id)).Err()
}

type Session struct {
	client *redis.Client
	id     string
	ttl    time.Duration
	mu     sync.Mutex
	bleve  bleve.Index // in-memory per process, rebuilt from Redis
}

func (s *Session) ID() string { return s.id }

func (s *Session) Expire(ttl time.Duration) {
	s.mu.Lock()
	s.ttl = ttl
	s.mu.Unlock()
	_ = s.client.Expire(context.Background(), metaKey(s.id), ttl).Err()
}

func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bleve = nil
	return s.client.Set(context.Background(), metaKey(s.id), "{}", s.ttl).Err()
}

func (s *Session) AddChunk(chunk models.DocChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta, err := s.load()
	if err != nil {
		return err
	}
	meta[chunk.DocID] = chunk
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	if err := s.client.Set(context.Background(), metaKey(s.id), data, s.ttl).Err(); err != nil {
		return err
	}
	if s.bleve == nil {
		return nil
	}
	return s.bleve.Index(chunk.DocID, chunk)
}

func (s *Session) Chunks() []models.DocChunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta, err := s.load()
	if err != nil {
		return nil
	}
	out := make([]models.DocChunk, 0, len(meta))
	for _, c := range meta {
		out = append(out, c)
	}
	return out
}

func (s *Session) Search(query string, size int) ([]models.Hit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta, err := s.load()
	if err != nil {
		return nil, err
	}
	if s.bleve == nil {
		index, err := session.NewIndex()
		if err != nil {
			return nil, err
		}
		for id, chunk := range meta {
			if err := index.Index(id, chunk); err != nil {
				return nil, err
			}
		}
		s.bleve = index
	}
	return session.SearchIndex(s.bleve, meta, query, size)
}

func (s *Session) load() (map[string]models.DocChunk, error) {
	meta := map[string]models.DocChunk{}
	val, err := s.client.Get(context.Background(), metaKey(s.id)).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}
	if val != "" {
		if err := json.Unmarshal([]byte(val), &meta); err != nil {
			return nil, err
		}
	}
	return meta, nil
}
