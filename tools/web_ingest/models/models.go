package models

import "time"

// DocChunk is one indexed slice of a plain document.
type DocChunk struct {
	DocID       string    `json:"doc_id"`
	RunID       string    `json:"run_id"`
	SourceName  string    `json:"source_name"`
	Title       string    `json:"title"`
	Section     string    `json:"section"`
	URL         string    `json:"url"`
	Text        string    `json:"text"`
	ContentHash string    `json:"content_hash"`
	ChunkIndex  int       `json:"chunk_index"`
	IngestedAt  time.Time `json:"ingested_at"`
}

// Hit is one search result.
type Hit struct {
	DocID      string  `json:"doc_id"`
	SourceName string  `json:"source_name"`
	Title      string  `json:"title"`
	Section    string  `json:"section"`
	URL        string  `json:"url"`
	Score      float64 `json:"score"`
	Snippet    string  `json:"snippet"`
}

type IngestResponse struct {
	SessionID string `json:"session_id"`
	Documents int    `json:"documents"`
	Chunks    int    `json:"chunks"`
}
