package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/mohammad-safakhou/specharvest/internal/classify"
	"github.com/mohammad-safakhou/specharvest/internal/fetch"
	"github.com/mohammad-safakhou/specharvest/internal/helpers"
	"github.com/mohammad-safakhou/specharvest/internal/index"
	"github.com/mohammad-safakhou/specharvest/models"
)

// FetchStageResult summarises index parsing and retrieval.
type FetchStageResult struct {
	LinkCount    int                  `json:"link_count"`
	InvalidCount int                  `json:"invalid_count,omitempty"`
	FetchedCount int                  `json:"fetched_count"`
	FailedCount  int                  `json:"failed_count"`
	Failures     []models.Failure     `json:"failures,omitempty"`
	Sections     []index.SectionCount `json:"sections,omitempty"`
	NothingToDo  bool                 `json:"nothing_to_do"`
}

// ExtractStageResult summarises extraction and classification.
type ExtractStageResult struct {
	ProcessedCount int                     `json:"processed_count"`
	ValidCount     int                     `json:"valid_count"`
	PlainCount     int                     `json:"plain_count"`
	DuplicateCount int                     `json:"duplicate_count,omitempty"`
	Categories     map[models.Category]int `json:"categories,omitempty"`
	DocsBundle     string                  `json:"docs_bundle,omitempty"`
	NothingToDo    bool                    `json:"nothing_to_do"`
}

// MergeStageResult summarises the per-category merge.
type MergeStageResult struct {
	MergedCategoryCount int              `json:"merged_category_count"`
	OutputLocations     []string         `json:"output_locations"`
	Failures            []models.Failure `json:"failures,omitempty"`
	NothingToDo         bool             `json:"nothing_to_do"`
}

// RunIndexAndFetchStage downloads the index file below baseAddress and runs
// IndexAndFetch on it. baseAddress may also point at the index file itself.
func (p *Pipeline) RunIndexAndFetchStage(ctx context.Context, run *models.RunState, baseAddress string) (FetchStageResult, error) {
	if p.fetcher == nil {
		return FetchStageResult{}, p.fail(ctx, run, models.StageIndex, fmt.Errorf("no fetcher configured"))
	}
	base, indexURL := index.Location(p.cfg.Index, baseAddress)
	if base == "" {
		return FetchStageResult{}, p.fail(ctx, run, models.StageIndex, fmt.Errorf("base address required"))
	}
	p.begin(ctx, run, models.StageIndex, fmt.Sprintf("downloading %s", indexURL), 0)

	ictx, cancel := context.WithTimeout(ctx, p.cfg.Fetch.Normalize().Timeout)
	defer cancel()
	res, err := p.fetcher.Exec(ictx, indexURL)
	if err != nil {
		return FetchStageResult{}, p.fail(ctx, run, models.StageIndex, fmt.Errorf("download index %s: %w", indexURL, err))
	}
	return p.IndexAndFetch(ctx, run, base, res.Body)
}

// IndexAndFetch parses indexText, resolving links against baseAddress, and
// fetches every record. baseAddress may point at the index file itself.
// Only an empty index, or relative links without a base address, is an
// error; zero links is a valid, empty result. Links that cannot be resolved
// are reported as failures.
func (p *Pipeline) IndexAndFetch(ctx context.Context, run *models.RunState, baseAddress, indexText string) (FetchStageResult, error) {
	started := p.begin(ctx, run, models.StageIndex, "parsing index", 0)

	base, _ := index.Location(p.cfg.Index, baseAddress)
	parsed, err := index.NewParser(p.cfg.Index, base).ParseIndex(indexText)
	if err != nil {
		run.Report.Index = models.StageCounts{Attempted: 1, Failed: 1}
		return FetchStageResult{NothingToDo: true}, p.fail(ctx, run, models.StageIndex, err)
	}
	if base == "" && hasRelativeTarget(parsed.Failures) {
		run.IndexFailures = parsed.Failures
		run.Report.Index = models.StageCounts{Attempted: len(parsed.Records) + len(parsed.Failures), Failed: len(parsed.Failures)}
		return FetchStageResult{}, p.fail(ctx, run, models.StageIndex, ErrBaseRequired)
	}
	records, err := p.filter().Apply(parsed.Records)
	if err != nil {
		return FetchStageResult{}, p.fail(ctx, run, models.StageIndex, err)
	}
	for _, f := range parsed.Failures {
		p.logger.Printf("run %s: skipping link %s: %s", run.ID, f.Target, f.Message)
	}
	p.metrics.ObserveLinks(len(records))

	run.BaseURL = base
	run.Records = records
	run.IndexFailures = parsed.Failures
	run.Outcomes = nil
	run.Fragments, run.PlainDocs, run.DocsZip = nil, nil, ""
	run.Documents, run.MergeFailures = nil, nil
	run.Report.Index = models.StageCounts{
		Attempted: len(records) + len(parsed.Failures),
		Succeeded: len(records),
		Failed:    len(parsed.Failures),
	}
	run.Report.Fetch = models.StageCounts{}
	p.complete(ctx, run, models.StageIndex, started, fmt.Sprintf("parsed %d links", len(records)), len(records), len(records))

	result := FetchStageResult{
		LinkCount:    len(records),
		InvalidCount: len(parsed.Failures),
		Failures:     append([]models.Failure(nil), parsed.Failures...),
		Sections:     index.SectionCounts(records),
	}
	if len(records) == 0 {
		result.NothingToDo = true
		p.complete(ctx, run, models.StageFetch, started, "nothing to fetch", 0, 0)
		return result, nil
	}

	started = p.begin(ctx, run, models.StageFetch, fmt.Sprintf("fetching %d documents", len(records)), len(records))
	orch := fetch.NewOrchestrator(p.fetcher, p.cfg.Fetch, p.cfg.Index, p.metrics)
	orch.OnProgress = func(pr fetch.Progress, o models.RetrievalOutcome) {
		p.publish(ctx, run, models.RunStatus{
			Stage:     models.StageFetch,
			Phase:     models.RunPhaseRunning,
			Message:   fmt.Sprintf("fetched %s", o.Record.Title),
			Completed: pr.Completed,
			Total:     pr.Total,
		})
	}
	outcomes := orch.FetchAll(ctx, records, p.cfg.Fetch.Concurrency)
	sort.SliceStable(outcomes, func(i, j int) bool { return outcomes[i].Record.Seq < outcomes[j].Record.Seq })
	run.Outcomes = outcomes

	for _, o := range outcomes {
		if o.Succeeded() {
			result.FetchedCount++
			continue
		}
		result.FailedCount++
		result.Failures = append(result.Failures, *o.Error)
	}
	run.Report.Fetch = models.StageCounts{Attempted: len(outcomes), Succeeded: result.FetchedCount, Failed: result.FailedCount}
	p.complete(ctx, run, models.StageFetch, started,
		fmt.Sprintf("fetched %d/%d documents", result.FetchedCount, len(outcomes)), len(outcomes), len(outcomes))
	return result, nil
}

// RunExtractAndConvertStage extracts specifications from fetched documents
// in index order. Documents without one are cleaned, written and bundled as
// plain content and indexed for search.
func (p *Pipeline) RunExtractAndConvertStage(ctx context.Context, run *models.RunState) (ExtractStageResult, error) {
	outcomes := make([]models.RetrievalOutcome, 0, len(run.Outcomes))
	for _, o := range run.Outcomes {
		if o.Succeeded() {
			outcomes = append(outcomes, o)
		}
	}
	sort.SliceStable(outcomes, func(i, j int) bool { return outcomes[i].Record.Seq < outcomes[j].Record.Seq })

	started := p.begin(ctx, run, models.StageExtract, fmt.Sprintf("extracting %d documents", len(outcomes)), len(outcomes))
	if err := p.sink.Reset(run.ID, models.StageExtract); err != nil {
		return ExtractStageResult{}, p.fail(ctx, run, models.StageExtract, err)
	}
	run.Fragments, run.PlainDocs, run.DocsZip = nil, nil, ""

	result := ExtractStageResult{Categories: make(map[models.Category]int)}
	if len(outcomes) == 0 {
		result.NothingToDo = true
		run.Report.Extract = models.StageCounts{}
		p.complete(ctx, run, models.StageExtract, started, "nothing to extract", 0, 0)
		return result, nil
	}

	seen := make(map[string]struct{}, len(outcomes))
	for i, o := range outcomes {
		if _, dup := seen[o.SafeName]; dup {
			// the same link listed twice in the index
			result.DuplicateCount++
			p.logger.Printf("run %s: skipping duplicate document %s (seq %d)", run.ID, o.SafeName, o.Record.Seq)
			continue
		}
		seen[o.SafeName] = struct{}{}
		ex := p.extractor.Extract(o.SafeName, *o.Content)
		result.ProcessedCount++
		if ex.HasFragment() {
			cat := p.classifier.Classify(*ex.Fragment)
			run.Fragments = append(run.Fragments, models.ClassifiedFragment{Seq: o.Record.Seq, Category: cat, Fragment: *ex.Fragment})
			result.ValidCount++
			result.Categories[cat]++
			p.metrics.ObserveFragment(cat)
		} else {
			doc := models.PlainDocument{
				Seq:        o.Record.Seq,
				SourceName: o.SafeName,
				Title:      o.Record.Title,
				Section:    o.Record.Section,
				Target:     o.Record.ResolvedTarget,
				Reason:     ex.Reason,
				Body:       ex.Cleaned,
			}
			loc, err := p.sink.WritePlain(run.ID, doc)
			if err != nil {
				return result, p.fail(ctx, run, models.StageExtract, err)
			}
			doc.Location = loc
			run.PlainDocs = append(run.PlainDocs, doc)
			result.PlainCount++
			p.metrics.ObservePlain()
		}
		p.publish(ctx, run, models.RunStatus{
			Stage:     models.StageExtract,
			Phase:     models.RunPhaseRunning,
			Message:   fmt.Sprintf("processed %s", o.SafeName),
			Completed: i + 1,
			Total:     len(outcomes),
		})
	}

	bundle, err := p.sink.BundlePlain(run.ID, run.PlainDocs)
	if err != nil {
		return result, p.fail(ctx, run, models.StageExtract, err)
	}
	run.DocsZip = bundle
	result.DocsBundle = bundle

	if p.search != nil {
		if resp, err := p.search.Ingest(run.ID, run.PlainDocs); err != nil {
			p.logger.Printf("run %s: search index: %v", run.ID, err)
		} else {
			p.logger.Printf("run %s: indexed %d plain documents (%d chunks)", run.ID, resp.Documents, resp.Chunks)
		}
	}

	run.Report.Extract = models.StageCounts{Attempted: result.ProcessedCount, Succeeded: result.ValidCount, Skipped: result.PlainCount}
	p.complete(ctx, run, models.StageExtract, started,
		fmt.Sprintf("extracted %d specifications, %d plain documents", result.ValidCount, result.PlainCount),
		result.ProcessedCount, result.ProcessedCount)
	return result, nil
}

// RunMergeStage merges the classified fragments per category and writes one
// document per merged category. A failing category does not stop the others.
func (p *Pipeline) RunMergeStage(ctx context.Context, run *models.RunState) (MergeStageResult, error) {
	groups := classify.GroupByCategory(run.Fragments)
	started := p.begin(ctx, run, models.StageMerge, fmt.Sprintf("merging %d categories", len(groups)), len(groups))
	if err := p.sink.Reset(run.ID, models.StageMerge); err != nil {
		return MergeStageResult{}, p.fail(ctx, run, models.StageMerge, err)
	}
	run.Documents, run.MergeFailures = nil, nil

	result := MergeStageResult{OutputLocations: []string{}}
	if len(groups) == 0 {
		result.NothingToDo = true
		run.Report.Merge = models.StageCounts{}
		p.complete(ctx, run, models.StageMerge, started, "nothing to merge", 0, 0)
		return result, nil
	}

	docs, failures := p.merger.Merge(groups)
	for _, doc := range docs {
		loc, err := p.sink.WriteDocument(run.ID, doc)
		if err != nil {
			failures = append(failures, models.Failure{Kind: models.ErrorKindCategoryMergeFailed, Category: doc.Category, Message: err.Error()})
			continue
		}
		doc.Location = loc
		run.Documents = append(run.Documents, doc)
		result.OutputLocations = append(result.OutputLocations, loc)
		p.metrics.ObserveMerge(true)
	}
	for range failures {
		p.metrics.ObserveMerge(false)
	}
	run.MergeFailures = failures
	result.MergedCategoryCount = len(run.Documents)
	result.Failures = failures

	run.Report.Merge = models.StageCounts{Attempted: len(groups), Succeeded: len(run.Documents), Failed: len(failures)}
	p.complete(ctx, run, models.StageMerge, started,
		fmt.Sprintf("merged %d/%d categories", len(run.Documents), len(groups)), len(run.Documents), len(groups))
	return result, nil
}

func hasRelativeTarget(failures []models.Failure) bool {
	for _, f := range failures {
		if !helpers.IsAbsoluteURL(f.Target) {
			return true
		}
	}
	return false
}
