// Package merge consolidates classified fragments into one document per category.
package merge

import (
	"bytes"
	"fmt"
	"log"

	"github.com/mohammad-safakhou/specharvest/config"
	"github.com/mohammad-safakhou/specharvest/internal/classify"
	"github.com/mohammad-safakhou/specharvest/models"
	"gopkg.in/yaml.v3"
)

// Engine merges category groups.
type Engine struct {
	cfg    config.MergeConfig
	logger *log.Logger
}

func NewEngine(cfg config.MergeConfig) *Engine {
	return &Engine{
		cfg:    cfg.Normalize(),
		logger: log.New(log.Writer(), "[MERGE] ", log.LstdFlags),
	}
}

// Merge produces one document per group. Within a group fragments are
// applied in order and a later (path, method) overwrites an earlier one.
// A failing category is reported and skipped; the others still merge.
func (e *Engine) Merge(groups []classify.Group) ([]models.MergedDocument, []models.Failure) {
	var (
		docs     []models.MergedDocument
		failures []models.Failure
	)
	for _, g := range groups {
		if len(g.Fragments) == 0 {
			continue
		}
		doc, err := e.mergeGroup(g)
		if err != nil {
			e.logger.Printf("category %s failed: %v", g.Category, err)
			failures = append(failures, models.Failure{
				Kind:     models.ErrorKindCategoryMergeFailed,
				Category: g.Category,
				Message:  err.Error(),
			})
			continue
		}
		e.logger.Printf("category %s: %d fragments, %d operations", g.Category, doc.Fragments, doc.Paths.OperationCount())
		docs = append(docs, doc)
	}
	return docs, failures
}

func (e *Engine) mergeGroup(g classify.Group) (models.MergedDocument, error) {
	merged := models.NewPaths()
	for _, cf := range g.Fragments {
		if cf.Fragment.Paths == nil || cf.Fragment.Paths.OperationCount() == 0 {
			return models.MergedDocument{}, fmt.Errorf("fragment %q has no operations", cf.Fragment.SourceName)
		}
		for _, path := range cf.Fragment.Paths.Paths() {
			for _, op := range cf.Fragment.Paths.Operations(path) {
				merged.Set(path, op.Method, op.Details)
			}
		}
	}

	title := Title(g.Category)
	out, err := e.render(title, g.Category, merged)
	if err != nil {
		return models.MergedDocument{}, fmt.Errorf("render: %w", err)
	}
	return models.MergedDocument{
		Category:  g.Category,
		Title:     title,
		Paths:     merged,
		Fragments: len(g.Fragments),
		YAML:      out,
	}, nil
}

// Title is the info.title of a category document.
func Title(c models.Category) string {
	return c.Title() + " API"
}

func (e *Engine) render(title string, c models.Category, paths *models.Paths) ([]byte, error) {
	info := mapping(
		str("title"), str(title),
		str("description"), str(fmt.Sprintf("%s related API endpoints", c.Title())),
		str("version"), str(e.cfg.DocVersion),
	)
	server := mapping(
		str("url"), str(e.cfg.ServerURL),
		str("description"), str(e.cfg.ServerDescription),
	)
	root := mapping(
		str("openapi"), str(e.cfg.OpenAPIVersion),
		str("info"), info,
		str("servers"), &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Content: []*yaml.Node{server}},
		str("paths"), paths.Node(),
	)
	doc := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func mapping(kv ...*yaml.Node) *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Content: kv}
}

func str(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}
