package merge

import (
	"strings"
	"testing"

	"github.com/mohammad-safakhou/specharvest/config"
	"github.com/mohammad-safakhou/specharvest/internal/classify"
	"github.com/mohammad-safakhou/specharvest/models"
	"gopkg.in/yaml.v3"
)

func classified(t *testing.T, seq int, cat models.Category, name, spec string) models.ClassifiedFragment {
	t.Helper()
	paths, err := models.ParsePaths(spec)
	if err != nil {
		t.Fatalf("ParsePaths: %v", err)
	}
	return models.ClassifiedFragment{Seq: seq, Category: cat, Fragment: models.SpecFragment{SourceName: name, RawSpecText: spec, Paths: paths}}
}

func description(t *testing.T, doc models.MergedDocument, path, method string) string {
	t.Helper()
	node, ok := doc.Paths.Get(path, method)
	if !ok {
		t.Fatalf("missing %s %s", method, path)
	}
	var v struct {
		Description string `yaml:"description"`
	}
	if err := node.Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v.Description
}

func TestMergeLaterFragmentWins(t *testing.T) {
	groups := classify.GroupByCategory([]models.ClassifiedFragment{
		classified(t, 0, models.CategoryChat, "a.md", "paths:\n  /x:\n    get:\n      description: first\n    post:\n      description: only-a\n"),
		classified(t, 1, models.CategoryChat, "b.md", "paths:\n  /x:\n    get:\n      description: second\n  /y:\n    get:\n      description: y\n"),
	})

	docs, failures := NewEngine(config.MergeConfig{}).Merge(groups)
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %+v", failures)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	doc := docs[0]
	if got := description(t, doc, "/x", "get"); got != "second" {
		t.Fatalf("collision: got %q, want second", got)
	}
	if got := description(t, doc, "/x", "post"); got != "only-a" {
		t.Fatalf("union lost /x post: %q", got)
	}
	if doc.Paths.Paths()[0] != "/x" || doc.Paths.Paths()[1] != "/y" {
		t.Fatalf("unexpected path order %v", doc.Paths.Paths())
	}
	if doc.Fragments != 2 || doc.Title != "Chat API" {
		t.Fatalf("unexpected document %+v", doc)
	}
}

func TestMergeRenderedShape(t *testing.T) {
	groups := classify.GroupByCategory([]models.ClassifiedFragment{
		classified(t, 0, models.CategoryImage, "img.md", "paths:\n  /v1/images:\n    post:\n      summary: gen\n"),
	})
	docs, _ := NewEngine(config.MergeConfig{ServerURL: "https://api.acme.dev"}).Merge(groups)
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}

	var out struct {
		OpenAPI string `yaml:"openapi"`
		Info    struct {
			Title       string `yaml:"title"`
			Description string `yaml:"description"`
			Version     string `yaml:"version"`
		} `yaml:"info"`
		Servers []struct {
			URL string `yaml:"url"`
		} `yaml:"servers"`
		Paths map[string]map[string]any `yaml:"paths"`
	}
	if err := yaml.Unmarshal(docs[0].YAML, &out); err != nil {
		t.Fatalf("rendered yaml invalid: %v\n%s", err, docs[0].YAML)
	}
	if out.OpenAPI != "3.1.0" || out.Info.Title != "Image API" || out.Info.Version != "1.0.0" || out.Info.Description == "" {
		t.Fatalf("unexpected header: %+v", out)
	}
	if len(out.Servers) != 1 || out.Servers[0].URL != "https://api.acme.dev" {
		t.Fatalf("unexpected servers: %+v", out.Servers)
	}
	if _, ok := out.Paths["/v1/images"]["post"]; !ok {
		t.Fatalf("missing path: %+v", out.Paths)
	}
	if !strings.HasPrefix(string(docs[0].YAML), "openapi:") {
		t.Fatalf("header order not preserved:\n%s", docs[0].YAML)
	}
}

func TestMergeIsolatesCategoryFailure(t *testing.T) {
	good := classified(t, 1, models.CategoryAudio, "tts.md", "paths:\n  /v1/audio/speech:\n    post: {}\n")
	broken := models.ClassifiedFragment{Seq: 0, Category: models.CategoryChat, Fragment: models.SpecFragment{SourceName: "broken.md"}}

	docs, failures := NewEngine(config.MergeConfig{}).Merge(classify.GroupByCategory([]models.ClassifiedFragment{broken, good}))
	if len(docs) != 1 || docs[0].Category != models.CategoryAudio {
		t.Fatalf("expected audio document only, got %+v", docs)
	}
	if len(failures) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(failures))
	}
	f := failures[0]
	if f.Kind != models.ErrorKindCategoryMergeFailed || f.Category != "chat" || !strings.Contains(f.Message, "broken.md") {
		t.Fatalf("unexpected failure %+v", f)
	}
}

func TestMergeEmpty(t *testing.T) {
	docs, failures := NewEngine(config.MergeConfig{}).Merge(nil)
	if len(docs) != 0 || len(failures) != 0 {
		t.Fatalf("expected nothing, got %d docs %d failures", len(docs), len(failures))
	}
}
