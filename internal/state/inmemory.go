package state

import (
	"context"
	"sync"
	"time"

	"github.com/mohammad-safakhou/specharvest/models"
)

// InMemoryStore keeps encoded snapshots in process memory.
type InMemoryStore struct {
	mu     sync.RWMutex
	runs   map[string][]byte
	status map[string]models.RunStatus
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{runs: make(map[string][]byte), status: make(map[string]models.RunStatus)}
}

func (s *InMemoryStore) Create(ctx context.Context, baseURL string) (*models.RunState, error) {
	run := newRun(baseURL)
	if err := s.Save(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

func (s *InMemoryStore) Get(_ context.Context, id string) (*models.RunState, error) {
	s.mu.RLock()
	data, ok := s.runs[id]
	status := s.status[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrRunNotFound
	}
	run, err := decode(data)
	if err != nil {
		return nil, err
	}
	run.Status = status
	return run, nil
}

func (s *InMemoryStore) Save(_ context.Context, run *models.RunState) error {
	run.UpdatedAt = time.Now().UTC()
	data, err := encode(run)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = data
	s.status[run.ID] = run.Status
	return nil
}

func (s *InMemoryStore) SetStatus(_ context.Context, id string, status models.RunStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[id]; !ok {
		return ErrRunNotFound
	}
	if status.UpdatedAt.IsZero() {
		status.UpdatedAt = time.Now().UTC()
	}
	s.status[id] = status
	return nil
}

func (s *InMemoryStore) Status(_ context.Context, id string) (models.RunStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.runs[id]; !ok {
		return models.RunStatus{}, ErrRunNotFound
	}
	return s.status[id], nil
}

func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[id]; !ok {
		return ErrRunNotFound
	}
	delete(s.runs, id)
	delete(s.status, id)
	return nil
}
