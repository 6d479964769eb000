package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mohammad-safakhou/specharvest/models"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps runs in Redis. The status lives under its own key so
// progress updates do not rewrite the whole run.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{client: client, ttl: ttl}
}

func runKey(id string) string    { return fmt.Sprintf("specharvest:run:%s", id) }
func statusKey(id string) string { return fmt.Sprintf("specharvest:run:%s:status", id) }

func (s *RedisStore) Create(ctx context.Context, baseURL string) (*models.RunState, error) {
	run := newRun(baseURL)
	if err := s.Save(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*models.RunState, error) {
	data, err := s.client.Get(ctx, runKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	run, err := decode(data)
	if err != nil {
		return nil, err
	}
	if status, err := s.Status(ctx, id); err == nil {
		run.Status = status
	}
	return run, nil
}

func (s *RedisStore) Save(ctx context.Context, run *models.RunState) error {
	run.UpdatedAt = time.Now().UTC()
	data, err := encode(run)
	if err != nil {
		return err
	}
	status, err := json.Marshal(run.Status)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, runKey(run.ID), data, s.ttl)
		pipe.Set(ctx, statusKey(run.ID), status, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

func (s *RedisStore) SetStatus(ctx context.Context, id string, status models.RunStatus) error {
	if status.UpdatedAt.IsZero() {
		status.UpdatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(status)
	if err != nil {
		return err
	}
	ok, err := s.client.SetXX(ctx, statusKey(id), data, redis.KeepTTL).Result()
	if err != nil {
		return fmt.Errorf("set status %s: %w", id, err)
	}
	if !ok {
		return ErrRunNotFound
	}
	return nil
}

func (s *RedisStore) Status(ctx context.Context, id string) (models.RunStatus, error) {
	data, err := s.client.Get(ctx, statusKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.RunStatus{}, ErrRunNotFound
	}
	if err != nil {
		return models.RunStatus{}, fmt.Errorf("get status %s: %w", id, err)
	}
	var status models.RunStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return models.RunStatus{}, fmt.Errorf("decode status %s: %w", id, err)
	}
	return status, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, runKey(id), statusKey(id)).Result()
	if err != nil {
		return fmt.Errorf("delete run %s: %w", id, err)
	}
	if n == 0 {
		return ErrRunNotFound
	}
	return nil
}
