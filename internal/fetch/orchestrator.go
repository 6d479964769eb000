// Package fetch retrieves linked documents with a bounded worker pool.
package fetch

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/mohammad-safakhou/specharvest/config"
	"github.com/mohammad-safakhou/specharvest/internal/helpers"
	"github.com/mohammad-safakhou/specharvest/internal/runtime"
	"github.com/mohammad-safakhou/specharvest/models"
	"golang.org/x/sync/errgroup"
)

// Fetcher retrieves one document.
type Fetcher interface {
	Exec(ctx context.Context, url string) (models.FetchResult, error)
}

// Progress is a completed/total snapshot.
type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// ProgressFunc observes every completion. It is called with the progress
// lock held, so snapshots arrive in increasing order and must be handled quickly.
type ProgressFunc func(p Progress, outcome models.RetrievalOutcome)

// Orchestrator fetches link records concurrently.
type Orchestrator struct {
	Fetcher    Fetcher
	Policy     config.HostPolicyConfig
	Timeout    time.Duration // per item
	Pause      time.Duration // after each completion, per worker
	Extension  string
	Metrics    *runtime.Metrics
	Logger     *log.Logger
	OnProgress ProgressFunc
}

// NewOrchestrator builds an orchestrator from fetch and index settings.
func NewOrchestrator(fetcher Fetcher, fc config.FetchConfig, ic config.IndexConfig, metrics *runtime.Metrics) *Orchestrator {
	fc = fc.Normalize()
	ic = ic.Normalize()
	return &Orchestrator{
		Fetcher:   fetcher,
		Policy:    fc.HostPolicy,
		Timeout:   fc.Timeout,
		Pause:     fc.Pause,
		Extension: ic.Extension,
		Metrics:   metrics,
		Logger:    log.New(log.Writer(), "[FETCH] ", log.LstdFlags),
	}
}

type collector struct {
	mu        sync.Mutex
	outcomes  []models.RetrievalOutcome
	completed int
	total     int
	observe   ProgressFunc
}

func (c *collector) add(o models.RetrievalOutcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes = append(c.outcomes, o)
	c.completed++
	if c.observe != nil {
		c.observe(Progress{Completed: c.completed, Total: c.total}, o)
	}
}

// FetchAll retrieves every record with at most limit concurrent requests
// and returns exactly one outcome per record, in completion order. Failures
// are recorded in the outcome; a failing target never cancels its siblings.
func (o *Orchestrator) FetchAll(ctx context.Context, records []models.LinkRecord, limit int) []models.RetrievalOutcome {
	if len(records) == 0 {
		return []models.RetrievalOutcome{}
	}
	if limit <= 0 {
		limit = config.DefaultConcurrency
	}
	if limit > len(records) {
		limit = len(records)
	}

	col := &collector{outcomes: make([]models.RetrievalOutcome, 0, len(records)), total: len(records), observe: o.OnProgress}
	jobs := make(chan models.LinkRecord)

	var g errgroup.Group
	for w := 0; w < limit; w++ {
		g.Go(func() error {
			for rec := range jobs {
				col.add(o.fetchOne(ctx, rec))
				o.pause(ctx)
			}
			return nil
		})
	}
	for _, rec := range records {
		jobs <- rec
	}
	close(jobs)
	_ = g.Wait()

	failed := 0
	for _, out := range col.outcomes {
		if !out.Succeeded() {
			failed++
		}
	}
	o.logger().Printf("fetched %d documents (%d failed) with %d workers", len(col.outcomes), failed, limit)
	return col.outcomes
}

func (o *Orchestrator) fetchOne(ctx context.Context, rec models.LinkRecord) models.RetrievalOutcome {
	out := models.RetrievalOutcome{
		Record:   rec,
		SafeName: helpers.SafeFileName(rec.Title, rec.ResolvedTarget, o.extension()),
	}
	if !o.Policy.Allows(rec.ResolvedTarget) {
		out.Error = failure(rec, "host not allowed by policy")
		o.Metrics.ObserveFetch(false, 0)
		return out
	}

	timeout := o.Timeout
	if timeout <= 0 {
		timeout = config.DefaultFetchTimeout
	}
	ictx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	t0 := time.Now()
	res, err := o.Fetcher.Exec(ictx, rec.ResolvedTarget)
	o.Metrics.ObserveFetch(err == nil, time.Since(t0))
	if err != nil {
		o.logger().Printf("fetch %s failed: %v", rec.ResolvedTarget, err)
		out.Error = failure(rec, err.Error())
		return out
	}
	body := res.Body
	out.Content = &body
	out.ByteSize = len(body)
	return out
}

func (o *Orchestrator) pause(ctx context.Context) {
	if o.Pause <= 0 {
		return
	}
	t := time.NewTimer(o.Pause)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (o *Orchestrator) extension() string {
	if o.Extension == "" {
		return ".md"
	}
	return o.Extension
}

func (o *Orchestrator) logger() *log.Logger {
	if o.Logger == nil {
		return log.Default()
	}
	return o.Logger
}

func failure(rec models.LinkRecord, msg string) *models.Failure {
	return &models.Failure{Kind: models.ErrorKindFetchFailed, Target: rec.ResolvedTarget, Message: msg}
}
