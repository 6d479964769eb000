// Package state persists per-run pipeline state.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mohammad-safakhou/specharvest/config"
	"github.com/mohammad-safakhou/specharvest/models"
	"github.com/redis/go-redis/v9"
)

// ErrRunNotFound is returned for unknown or expired run ids.
var ErrRunNotFound = errors.New("run not found")

// Store keeps run state. Implementations return copies: mutating a run
// returned by Get has no effect until it is passed to Save.
type Store interface {
	Create(ctx context.Context, baseURL string) (*models.RunState, error)
	Get(ctx context.Context, id string) (*models.RunState, error)
	Save(ctx context.Context, run *models.RunState) error
	SetStatus(ctx context.Context, id string, status models.RunStatus) error
	Status(ctx context.Context, id string) (models.RunStatus, error)
	Delete(ctx context.Context, id string) error
}

// NewStore returns the backend named in cfg. client is required for redis.
func NewStore(cfg config.StorageConfig, client *redis.Client) (Store, error) {
	switch cfg.Backend {
	case "", "inmemory":
		return NewInMemoryStore(), nil
	case "redis":
		if client == nil {
			return nil, fmt.Errorf("redis store requires a client")
		}
		return NewRedisStore(client, cfg.Redis.TTL), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// NewRedisClient connects and pings the configured server.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr(), err)
	}
	return client, nil
}

func newRun(baseURL string) *models.RunState {
	run := models.NewRunState(uuid.NewString())
	run.BaseURL = baseURL
	return run
}

func encode(run *models.RunState) ([]byte, error) {
	data, err := json.Marshal(run)
	if err != nil {
		return nil, fmt.Errorf("encode run %s: %w", run.ID, err)
	}
	return data, nil
}

func decode(data []byte) (*models.RunState, error) {
	var run models.RunState
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("decode run: %w", err)
	}
	return &run, nil
}
