package pipeline

import (
	"context"
	"fmt"

	"github.com/mohammad-safakhou/specharvest/config"
	"github.com/mohammad-safakhou/specharvest/internal/output"
	"github.com/mohammad-safakhou/specharvest/internal/runtime"
	"github.com/mohammad-safakhou/specharvest/internal/state"
	"github.com/mohammad-safakhou/specharvest/tools/web_fetch"
	"github.com/mohammad-safakhou/specharvest/tools/web_ingest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// Components is a fully wired pipeline with its backing services.
type Components struct {
	Pipeline *Pipeline
	Store    state.Store
	Redis    *redis.Client // nil unless storage.backend is redis
	Metrics  *runtime.Metrics
}

// Close releases backing connections.
func (c *Components) Close() error {
	if c.Redis != nil {
		return c.Redis.Close()
	}
	return nil
}

// Build wires storage, search, fetcher and metrics from cfg. reg may be nil
// to skip metrics registration.
func Build(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (*Components, error) {
	comps := &Components{}
	if cfg.Storage.Backend == "redis" {
		client, err := state.NewRedisClient(ctx, cfg.Storage.Redis)
		if err != nil {
			return nil, err
		}
		comps.Redis = client
	}

	store, err := state.NewStore(cfg.Storage, comps.Redis)
	if err != nil {
		_ = comps.Close()
		return nil, err
	}
	comps.Store = store

	search, err := web_ingest.NewIngest(web_ingest.StoreType(cfg.Storage.Backend), comps.Redis)
	if err != nil {
		_ = comps.Close()
		return nil, fmt.Errorf("search index: %w", err)
	}
	if cfg.Storage.Redis.TTL > 0 {
		search.TTL = cfg.Storage.Redis.TTL
	}

	fc := cfg.Fetch.Normalize()
	fetcher, err := web_fetch.NewWebFetcher(web_fetch.FetcherType(fc.Type), web_fetch.Options{
		Timeout:   fc.Timeout,
		UserAgent: fc.UserAgent,
		MaxBytes:  fc.MaxContentBytes,
	})
	if err != nil {
		_ = comps.Close()
		return nil, err
	}

	if reg != nil {
		metrics, err := runtime.NewMetrics(reg)
		if err != nil {
			_ = comps.Close()
			return nil, err
		}
		comps.Metrics = metrics
	}

	comps.Pipeline = New(cfg, Deps{
		Fetcher: fetcher,
		Store:   store,
		Sink:    output.NewSink(cfg.Output.Dir),
		Search:  search,
		Metrics: comps.Metrics,
	})
	return comps, nil
}
