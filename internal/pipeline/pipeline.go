// Package pipeline sequences index parsing, fetching, extraction and merging
// over an explicit per-run state.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mohammad-safakhou/specharvest/config"
	"github.com/mohammad-safakhou/specharvest/internal/classify"
	"github.com/mohammad-safakhou/specharvest/internal/extract"
	"github.com/mohammad-safakhou/specharvest/internal/fetch"
	"github.com/mohammad-safakhou/specharvest/internal/index"
	"github.com/mohammad-safakhou/specharvest/internal/merge"
	"github.com/mohammad-safakhou/specharvest/internal/output"
	"github.com/mohammad-safakhou/specharvest/internal/runtime"
	"github.com/mohammad-safakhou/specharvest/internal/state"
	"github.com/mohammad-safakhou/specharvest/models"
	"github.com/mohammad-safakhou/specharvest/tools/web_ingest"
	ingestmodels "github.com/mohammad-safakhou/specharvest/tools/web_ingest/models"
)

// ErrBaseRequired is returned when an index holds relative links and no base
// address was given to resolve them against.
var ErrBaseRequired = errors.New("base address required to resolve relative links")

// Deps are the collaborators of a Pipeline. Store, Search and Metrics are
// optional.
type Deps struct {
	Fetcher fetch.Fetcher
	Store   state.Store
	Sink    *output.Sink
	Search  *web_ingest.Ingest
	Metrics *runtime.Metrics
}

type Pipeline struct {
	cfg        *config.Config
	fetcher    fetch.Fetcher
	store      state.Store
	sink       *output.Sink
	search     *web_ingest.Ingest
	metrics    *runtime.Metrics
	extractor  *extract.Extractor
	classifier *classify.Classifier
	merger     *merge.Engine
	logger     *log.Logger
}

func New(cfg *config.Config, deps Deps) *Pipeline {
	if cfg == nil {
		cfg = config.Default()
	}
	sink := deps.Sink
	if sink == nil {
		sink = output.NewSink(cfg.Output.Dir)
	}
	return &Pipeline{
		cfg:        cfg,
		fetcher:    deps.Fetcher,
		store:      deps.Store,
		sink:       sink,
		search:     deps.Search,
		metrics:    deps.Metrics,
		extractor:  extract.New(),
		classifier: classify.New(),
		merger:     merge.NewEngine(cfg.Merge),
		logger:     log.New(log.Writer(), "[PIPELINE] ", log.LstdFlags),
	}
}

// Search queries the plain documents of a run. It returns
// web_ingest.ErrSessionNotFound when search is disabled or the run has no index.
func (p *Pipeline) Search(runID, query string, size int) ([]ingestmodels.Hit, error) {
	if p.search == nil {
		return nil, web_ingest.ErrSessionNotFound
	}
	return p.search.Search(runID, query, size)
}

// Forget drops everything stored for a run outside the run store.
func (p *Pipeline) Forget(runID string) error {
	if p.search != nil {
		if err := p.search.Drop(runID); err != nil {
			p.logger.Printf("drop search index %s: %v", runID, err)
		}
	}
	return p.sink.ResetAll(runID)
}

// Run executes every stage on run, downloading the index from baseAddress.
// The report is rebuilt from scratch.
func (p *Pipeline) Run(ctx context.Context, run *models.RunState, baseAddress string) (models.PipelineReport, error) {
	return p.runAll(ctx, run, func() error {
		_, err := p.RunIndexAndFetchStage(ctx, run, baseAddress)
		return err
	})
}

// RunWithIndex executes every stage on run using the supplied index text,
// which is never replaced by a download even when blank.
func (p *Pipeline) RunWithIndex(ctx context.Context, run *models.RunState, baseAddress, indexText string) (models.PipelineReport, error) {
	return p.runAll(ctx, run, func() error {
		_, err := p.IndexAndFetch(ctx, run, baseAddress, indexText)
		return err
	})
}

func (p *Pipeline) runAll(ctx context.Context, run *models.RunState, indexStage func() error) (models.PipelineReport, error) {
	run.Report = models.PipelineReport{StartedAt: time.Now().UTC()}

	if err := indexStage(); err != nil {
		return p.finish(ctx, run), err
	}
	if _, err := p.RunExtractAndConvertStage(ctx, run); err != nil {
		return p.finish(ctx, run), err
	}
	if _, err := p.RunMergeStage(ctx, run); err != nil {
		return p.finish(ctx, run), err
	}

	report := p.finish(ctx, run)
	p.publish(ctx, run, models.RunStatus{
		Stage:     models.StageMerge,
		Phase:     models.RunPhaseCompleted,
		Message:   fmt.Sprintf("run finished: %d documents, %d failures", len(report.Documents), len(report.Failures)),
		Completed: len(report.Documents),
		Total:     report.Merge.Attempted,
	})
	p.save(ctx, run)
	return report, nil
}

func (p *Pipeline) finish(ctx context.Context, run *models.RunState) models.PipelineReport {
	rebuildReport(run)
	run.Report.EndedAt = time.Now().UTC()
	p.save(ctx, run)
	return run.Report
}

// rebuildReport derives failures and locations from the run's current data.
func rebuildReport(run *models.RunState) {
	failures := append([]models.Failure(nil), run.IndexFailures...)
	for _, o := range run.Outcomes {
		if o.Error != nil {
			failures = append(failures, *o.Error)
		}
	}
	failures = append(failures, run.MergeFailures...)
	run.Report.Failures = failures

	docs := make([]string, 0, len(run.Documents))
	for _, d := range run.Documents {
		docs = append(docs, d.Location)
	}
	run.Report.Documents = docs
	run.Report.DocsZip = run.DocsZip
}

func (p *Pipeline) begin(ctx context.Context, run *models.RunState, stage models.Stage, msg string, total int) time.Time {
	p.logger.Printf("run %s: %s", run.ID, msg)
	p.publish(ctx, run, models.RunStatus{Stage: stage, Phase: models.RunPhaseRunning, Message: msg, Total: total})
	return time.Now()
}

func (p *Pipeline) complete(ctx context.Context, run *models.RunState, stage models.Stage, started time.Time, msg string, completed, total int) {
	p.metrics.ObserveStage(stage, time.Since(started))
	p.logger.Printf("run %s: %s", run.ID, msg)
	p.publish(ctx, run, models.RunStatus{Stage: stage, Phase: models.RunPhaseCompleted, Message: msg, Completed: completed, Total: total})
	rebuildReport(run)
	p.save(ctx, run)
}

func (p *Pipeline) fail(ctx context.Context, run *models.RunState, stage models.Stage, err error) error {
	p.logger.Printf("run %s: %s stage failed: %v", run.ID, stage, err)
	p.publish(ctx, run, models.RunStatus{Stage: stage, Phase: models.RunPhaseError, Message: fmt.Sprintf("%s stage failed", stage), Error: err.Error()})
	p.save(ctx, run)
	return err
}

func (p *Pipeline) publish(ctx context.Context, run *models.RunState, status models.RunStatus) {
	status.UpdatedAt = time.Now().UTC()
	run.Status = status
	if p.store == nil {
		return
	}
	if err := p.store.SetStatus(ctx, run.ID, status); err != nil {
		p.logger.Printf("run %s: publish status: %v", run.ID, err)
	}
}

func (p *Pipeline) save(ctx context.Context, run *models.RunState) {
	if p.store == nil {
		return
	}
	if err := p.store.Save(ctx, run); err != nil {
		p.logger.Printf("run %s: save: %v", run.ID, err)
	}
}

func (p *Pipeline) filter() index.Filter {
	return index.Filter{
		Keywords: p.cfg.Index.Keywords,
		Include:  p.cfg.Index.Include,
		Exclude:  p.cfg.Index.Exclude,
	}
}
