// Package index parses llms.txt style index files into link records.
package index

import (
	"path"
	"strings"
	"unicode"

	"github.com/mohammad-safakhou/specharvest/config"
	"github.com/mohammad-safakhou/specharvest/internal/helpers"
	"github.com/mohammad-safakhou/specharvest/models"
)

// Parser turns index text into ordered link records.
type Parser struct {
	BaseURL       string
	HeadingMarker string
	Extension     string
}

// NewParser builds a parser for baseURL using the index grammar in cfg.
func NewParser(cfg config.IndexConfig, baseURL string) *Parser {
	cfg = cfg.Normalize()
	return &Parser{BaseURL: baseURL, HeadingMarker: cfg.HeadingMarker, Extension: cfg.Extension}
}

// Parsed is the outcome of reading one index. Failures lists the links
// that were recognised but could not be resolved to an address.
type Parsed struct {
	Records  []models.LinkRecord
	Failures []models.Failure
}

// Parse reads the index and returns its resolvable records. See ParseIndex.
func (p *Parser) Parse(text string) ([]models.LinkRecord, error) {
	parsed, err := p.ParseIndex(text)
	return parsed.Records, err
}

// ParseIndex reads the index top to bottom. A heading line sets the current
// section; link lines before the first heading are ignored. It returns
// models.ErrEmptyIndex when text holds nothing but whitespace, and no records
// when no link is recognised.
func (p *Parser) ParseIndex(text string) (Parsed, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Parsed{}, models.ErrEmptyIndex
	}
	marker := strings.TrimRight(p.HeadingMarker, " ")
	var (
		out     Parsed
		section string
		inside  bool
	)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if heading, ok := p.heading(line, marker); ok {
			section, inside = heading, true
			continue
		}
		if !inside {
			continue
		}
		title, target, ok := p.extractLink(line)
		if !ok {
			continue
		}
		resolved, err := helpers.ResolveTarget(p.BaseURL, target)
		if err != nil {
			out.Failures = append(out.Failures, models.Failure{
				Kind:    models.ErrorKindInvalidLink,
				Target:  target,
				Message: err.Error(),
			})
			continue
		}
		out.Records = append(out.Records, models.LinkRecord{
			Seq:            len(out.Records),
			Title:          title,
			RelativeTarget: target,
			ResolvedTarget: resolved,
			Section:        section,
		})
	}
	return out, nil
}

func (p *Parser) heading(line, marker string) (string, bool) {
	if !strings.HasPrefix(line, p.HeadingMarker) {
		// "##" alone still opens an unnamed section
		if line != marker {
			return "", false
		}
	}
	return strings.TrimSpace(strings.TrimPrefix(line, marker)), true
}

// extractLink applies the two link forms in precedence order: the first
// inline [title](target) link, then the first bare token ending with the
// extension.
func (p *Parser) extractLink(line string) (title, target string, ok bool) {
	if t, tgt, found := firstInlineLink(line); found {
		tgt = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(tgt), ":"))
		if p.hasExtension(tgt) {
			title = helpers.PlainText(t)
			if title == "" {
				title = p.titleFromTarget(tgt)
			}
			return title, tgt, true
		}
	}
	for _, tok := range strings.Fields(line) {
		tok = strings.TrimRightFunc(tok, isTrailingPunct)
		tok = strings.TrimLeft(tok, "<(\"'")
		if p.hasExtension(tok) && len(tok) > len(p.Extension) {
			return p.titleFromTarget(tok), tok, true
		}
	}
	return "", "", false
}

func (p *Parser) hasExtension(target string) bool {
	u := target
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	return strings.HasSuffix(strings.ToLower(u), p.Extension)
}

// titleFromTarget synthesizes a title from the final path segment.
func (p *Parser) titleFromTarget(target string) string {
	if i := strings.IndexAny(target, "?#"); i >= 0 {
		target = target[:i]
	}
	name := path.Base(target)
	name = name[:len(name)-len(p.Extension)]
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	words := strings.Fields(name)
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	if len(words) == 0 {
		return "Untitled"
	}
	return strings.Join(words, " ")
}

func isTrailingPunct(r rune) bool {
	return strings.ContainsRune(".,;:!?)]>\"'", r)
}
