package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyIndex is returned when the index text has no parsable content at all.
var ErrEmptyIndex = errors.New("index is empty")

// ErrorKind classifies failures captured while a run progresses.
type ErrorKind string

const (
	ErrorKindEmptyIndex           ErrorKind = "empty_index"
	ErrorKindInvalidLink          ErrorKind = "invalid_link"
	ErrorKindFetchFailed          ErrorKind = "fetch_failed"
	ErrorKindInvalidSpecification ErrorKind = "invalid_specification"
	ErrorKindCategoryMergeFailed  ErrorKind = "category_merge_failed"
)

// Failure is a per-item failure recorded as data instead of aborting a stage.
// Target holds the link or address for index and fetch failures, Category
// for merge failures.
type Failure struct {
	Kind     ErrorKind `json:"kind"`
	Target   string    `json:"target,omitempty"`
	Category Category  `json:"category,omitempty"`
	Message  string    `json:"message"`
}

func (f Failure) Error() string {
	subject := f.Target
	if subject == "" {
		subject = string(f.Category)
	}
	if subject == "" {
		return fmt.Sprintf("%s: %s", f.Kind, f.Message)
	}
	return fmt.Sprintf("%s %s: %s", f.Kind, subject, f.Message)
}

// LinkRecord is one document link found in the index.
type LinkRecord struct {
	Seq            int    `json:"seq"`
	Title          string `json:"title"`
	RelativeTarget string `json:"relative_target"`
	ResolvedTarget string `json:"resolved_target"`
	Section        string `json:"section"`
}

// RetrievalOutcome is the result of fetching one LinkRecord. Exactly one of
// Content and Error is set.
type RetrievalOutcome struct {
	Record   LinkRecord `json:"record"`
	SafeName string     `json:"safe_name"`
	Content  *string    `json:"content,omitempty"`
	ByteSize int        `json:"byte_size"`
	Error    *Failure   `json:"error,omitempty"`
}

// Succeeded reports whether the outcome carries content.
func (o RetrievalOutcome) Succeeded() bool {
	return o.Content != nil && o.Error == nil
}

// FetchResult is what a web fetcher returns for one address.
type FetchResult struct {
	URL         string `json:"url"`
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Title       string `json:"title,omitempty"`
	Body        string `json:"body"`
	Converted   bool   `json:"converted"`
	RenderMS    int    `json:"render_ms"`
}

// Category is the topic bucket a fragment is merged into.
type Category string

const (
	CategoryChat      Category = "chat"
	CategoryImage     Category = "image"
	CategoryAudio     Category = "audio"
	CategoryEmbedding Category = "embedding"
	CategoryModel     Category = "model"
	CategoryFile      Category = "file"
	CategoryDefault   Category = "default"
)

// Title returns the display name used in merged document titles.
func (c Category) Title() string {
	s := string(c)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// PlainDocument is a fetched document without a usable embedded specification.
type PlainDocument struct {
	Seq        int    `json:"seq"`
	SourceName string `json:"source_name"`
	Title      string `json:"title"`
	Section    string `json:"section"`
	Target     string `json:"target"`
	Reason     string `json:"reason,omitempty"`
	Body       string `json:"body"`
	Location   string `json:"location,omitempty"`
}
