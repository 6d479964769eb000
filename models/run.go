package models

import "time"

// Stage names a pipeline stage.
type Stage string

const (
	StageIndex   Stage = "index"
	StageFetch   Stage = "fetch"
	StageExtract Stage = "extract"
	StageMerge   Stage = "merge"
)

// RunPhase is the coarse state of a run.
type RunPhase string

const (
	RunPhaseIdle      RunPhase = "idle"
	RunPhaseRunning   RunPhase = "running"
	RunPhaseCompleted RunPhase = "completed"
	RunPhaseError     RunPhase = "error"
)

// RunStatus is the progress snapshot polled by clients.
type RunStatus struct {
	Stage     Stage     `json:"stage,omitempty"`
	Phase     RunPhase  `json:"phase"`
	Message   string    `json:"message,omitempty"`
	Completed int       `json:"completed"`
	Total     int       `json:"total"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StageCounts holds attempted/succeeded/failed counters for one stage.
type StageCounts struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped,omitempty"`
}

// PipelineReport aggregates one run. It is rebuilt on every run.
type PipelineReport struct {
	Index     StageCounts `json:"index"`
	Fetch     StageCounts `json:"fetch"`
	Extract   StageCounts `json:"extract"`
	Merge     StageCounts `json:"merge"`
	Failures  []Failure   `json:"failures,omitempty"`
	Documents []string    `json:"documents,omitempty"`
	DocsZip   string      `json:"docs_zip,omitempty"`
	StartedAt time.Time   `json:"started_at"`
	EndedAt   time.Time   `json:"ended_at"`
}

// RunState is the per-run context carried through every stage.
type RunState struct {
	ID        string               `json:"id"`
	BaseURL   string               `json:"base_url,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
	Status    RunStatus            `json:"status"`
	Records   []LinkRecord         `json:"records,omitempty"`
	Outcomes  []RetrievalOutcome   `json:"outcomes,omitempty"`
	Fragments []ClassifiedFragment `json:"fragments,omitempty"`
	PlainDocs []PlainDocument      `json:"plain_docs,omitempty"`
	Documents []MergedDocument     `json:"documents,omitempty"`
	DocsZip   string               `json:"docs_zip,omitempty"`
	Report    PipelineReport       `json:"report"`

	// IndexFailures holds links the last index parse could not resolve.
	IndexFailures []Failure `json:"index_failures,omitempty"`
	// MergeFailures holds the categories that failed in the last merge.
	MergeFailures []Failure `json:"merge_failures,omitempty"`
}

// NewRunState returns an idle run.
func NewRunState(id string) *RunState {
	now := time.Now().UTC()
	return &RunState{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
		Status:    RunStatus{Phase: RunPhaseIdle, UpdatedAt: now},
	}
}

// Document returns the merged document for category, if any.
func (r *RunState) Document(category Category) (MergedDocument, bool) {
	for _, d := range r.Documents {
		if d.Category == category {
			return d, true
		}
	}
	return MergedDocument{}, false
}
