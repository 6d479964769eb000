// Package scheduler refreshes configured documentation sites periodically.
package scheduler

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/mohammad-safakhou/specharvest/config"
	"github.com/mohammad-safakhou/specharvest/internal/state"
	"github.com/mohammad-safakhou/specharvest/models"
	"github.com/redis/go-redis/v9"
)

const lockTTL = 30 * time.Minute

// Runner executes a full pipeline run.
type Runner interface {
	Run(ctx context.Context, run *models.RunState, baseAddress string) (models.PipelineReport, error)
}

type Scheduler struct {
	Targets  []config.ScheduleTarget
	Interval time.Duration
	Store    state.Store
	Runner   Runner
	Rdb      *redis.Client // optional, enables cross-instance locks
	Logger   *log.Logger

	mu   sync.Mutex
	last map[string]time.Time
	stop chan struct{}
	wg   sync.WaitGroup
	now  func() time.Time
}

func New(cfg config.ScheduleConfig, store state.Store, runner Runner, rdb *redis.Client) *Scheduler {
	cfg = cfg.Normalize()
	return &Scheduler{
		Targets:  cfg.Targets,
		Interval: cfg.Interval,
		Store:    store,
		Runner:   runner,
		Rdb:      rdb,
		Logger:   log.New(log.Writer(), "[SCHED] ", log.LstdFlags),
	}
}

// Start ticks until Stop is called. It is a no-op without targets.
func (s *Scheduler) Start() {
	if len(s.Targets) == 0 {
		return
	}
	s.mu.Lock()
	if s.stop != nil {
		s.mu.Unlock()
		return
	}
	s.stop = make(chan struct{})
	stop := s.stop
	s.mu.Unlock()

	interval := s.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()
		s.tick()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

// Stop halts ticking and waits for in-flight runs.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func (s *Scheduler) tick() {
	ctx := context.Background()
	now := s.clock()
	for _, t := range s.Targets {
		s.mu.Lock()
		if s.last == nil {
			s.last = make(map[string]time.Time)
		}
		var last *time.Time
		if ts, ok := s.last[t.Name]; ok {
			last = &ts
		}
		s.mu.Unlock()
		if !isDue(t.Cron, last, now) {
			continue
		}

		// distributed lock to avoid duplicate runs
		lockKey := "specharvest:sched:lock:" + t.Name
		if s.Rdb != nil {
			ok, err := s.Rdb.SetNX(ctx, lockKey, "1", lockTTL).Result()
			if err != nil || !ok {
				continue
			}
		}

		s.mu.Lock()
		s.last[t.Name] = now
		s.mu.Unlock()

		s.wg.Add(1)
		go func(target config.ScheduleTarget) {
			defer s.wg.Done()
			if s.Rdb != nil {
				defer s.Rdb.Del(ctx, lockKey)
			}
			s.fire(ctx, target)
		}(t)
	}
}

func (s *Scheduler) fire(ctx context.Context, t config.ScheduleTarget) {
	run, err := s.Store.Create(ctx, t.BaseURL)
	if err != nil {
		s.Logger.Printf("target %s: create run: %v", t.Name, err)
		return
	}
	s.Logger.Printf("target %s: starting run %s", t.Name, run.ID)
	report, err := s.Runner.Run(ctx, run, t.BaseURL)
	if err != nil {
		s.Logger.Printf("target %s: run %s failed: %v", t.Name, run.ID, err)
		return
	}
	s.Logger.Printf("target %s: run %s merged %d documents (%d failures)", t.Name, run.ID, len(report.Documents), len(report.Failures))
}

// isDue reports whether a target with cronSpec should run at now given its
// last run. Supports "@daily", "@hourly" and standard cron expressions;
// an invalid expression is treated as @daily. A target that never ran is due.
func isDue(cronSpec string, last *time.Time, now time.Time) bool {
	if last == nil {
		return true
	}
	switch strings.TrimSpace(cronSpec) {
	case "@daily", "":
		return now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		return now.Sub(*last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			return now.Sub(*last) >= 24*time.Hour
		}
		next := expr.Next(*last)
		return !next.IsZero() && !next.After(now)
	}
}
