// Package extract pulls the embedded specification block out of a document.
package extract

import (
	"errors"
	"fmt"

	"github.com/mohammad-safakhou/specharvest/internal/helpers"
	"github.com/mohammad-safakhou/specharvest/models"
)

// Reasons a document is kept as plain content.
const (
	ReasonNoBlock      = "no yaml block"
	ReasonUnterminated = "unterminated yaml block"
	ReasonNoPaths      = "no paths mapping"
)

// Extraction is the result of examining one document. A nil Fragment means
// the document is plain content and Reason says why.
type Extraction struct {
	Cleaned  string
	Fragment *models.SpecFragment
	Reason   string
}

// HasFragment reports whether a specification was found.
func (e Extraction) HasFragment() bool { return e.Fragment != nil }

// Extractor finds the first yaml fenced block of a document.
type Extractor struct {
	Languages []string
}

// New returns an extractor accepting yaml and yml fences.
func New() *Extractor {
	return &Extractor{Languages: []string{"yaml", "yml"}}
}

// Extract never fails: malformed or missing specifications produce an
// Extraction without a fragment.
func (x *Extractor) Extract(sourceName, content string) Extraction {
	out := Extraction{Cleaned: helpers.CleanMarkdown(content)}

	langs := x.Languages
	if len(langs) == 0 {
		langs = []string{"yaml", "yml"}
	}
	block, ok := helpers.ExtractMarkdown(content, langs...)
	if !ok {
		out.Reason = ReasonNoBlock
		return out
	}
	if !block.Terminated {
		out.Reason = ReasonUnterminated
		return out
	}

	paths, err := models.ParsePaths(block.Body)
	if err != nil {
		out.Reason = reason(err)
		return out
	}
	out.Fragment = &models.SpecFragment{SourceName: sourceName, RawSpecText: block.Body, Paths: paths}
	return out
}

func reason(err error) string {
	if errors.Is(err, models.ErrNoPaths) {
		return ReasonNoPaths
	}
	return fmt.Sprintf("invalid specification: %v", err)
}
