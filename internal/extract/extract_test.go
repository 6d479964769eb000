package extract

import (
	"strings"
	"testing"
)

const chatDoc = "# Chat\n\nSome prose.   \n\n\n\n```yaml\nopenapi: 3.1.0\npaths:\n  /chat:\n    post:\n      summary: create\n```\n\n```yaml\npaths:\n  /other:\n    get: {}\n```\n"

func TestExtractFirstBlock(t *testing.T) {
	got := New().Extract("chat.md", chatDoc)
	if !got.HasFragment() {
		t.Fatalf("expected fragment, reason %q", got.Reason)
	}
	f := got.Fragment
	if f.SourceName != "chat.md" {
		t.Fatalf("unexpected source name %q", f.SourceName)
	}
	if _, ok := f.Paths.Get("/chat", "post"); !ok {
		t.Fatalf("missing /chat post: %v", f.Paths.Summary())
	}
	if _, ok := f.Paths.Get("/other", "get"); ok {
		t.Fatalf("second block must be ignored")
	}
	if strings.Contains(got.Cleaned, "   \n") || strings.Contains(got.Cleaned, "\n\n\n") {
		t.Fatalf("content not cleaned: %q", got.Cleaned)
	}
}

func TestExtractPlainContent(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		input  string
		reason string
	}{
		{name: "no block", input: "# Intro\n\nNothing here.\n", reason: ReasonNoBlock},
		{name: "other language", input: "```json\n{\"paths\": {}}\n```\n", reason: ReasonNoBlock},
		{name: "unterminated", input: "```yaml\npaths:\n  /x:\n    get: {}\n", reason: ReasonUnterminated},
		{name: "no paths key", input: "```yaml\ninfo:\n  title: x\n```\n", reason: ReasonNoPaths},
		{name: "empty paths", input: "```yaml\npaths: {}\n```\n", reason: ReasonNoPaths},
		{name: "paths not mapping", input: "```yaml\npaths: [1, 2]\n```\n", reason: ReasonNoPaths},
		{name: "scalar path items", input: "```yaml\npaths:\n  /x: nope\n```\n", reason: ReasonNoPaths},
		{name: "malformed yaml", input: "```yaml\npaths: {/x: [\n```\n"},
		{name: "list document", input: "```yml\n- a\n- b\n```\n"},
		{name: "empty", input: ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := New().Extract("doc.md", tt.input)
			if got.HasFragment() {
				t.Fatalf("expected no fragment, got %v", got.Fragment.Paths.Summary())
			}
			if got.Reason == "" {
				t.Fatalf("expected a reason")
			}
			if tt.reason != "" && got.Reason != tt.reason {
				t.Fatalf("reason = %q, want %q", got.Reason, tt.reason)
			}
		})
	}
}

func TestExtractTildeFenceAndYml(t *testing.T) {
	doc := "~~~yml\npaths:\n  /v1/embeddings:\n    post: {}\n~~~\n"
	got := New().Extract("embed.md", doc)
	if !got.HasFragment() {
		t.Fatalf("expected fragment, reason %q", got.Reason)
	}
	if got.Fragment.Paths.OperationCount() != 1 {
		t.Fatalf("unexpected operations %v", got.Fragment.Paths.Summary())
	}
}

func TestExtractSkipsNonMappingItems(t *testing.T) {
	doc := "```yaml\npaths:\n  /bad: 3\n  /good:\n    get:\n      summary: ok\n```\n"
	got := New().Extract("mixed.md", doc)
	if !got.HasFragment() {
		t.Fatalf("expected fragment, reason %q", got.Reason)
	}
	if got.Fragment.Paths.Len() != 1 {
		t.Fatalf("expected only /good, got %v", got.Fragment.Paths.Paths())
	}
}

func TestExtractSkipsUntaggedBlocks(t *testing.T) {
	doc := "# Intro\n\n```\ncurl https://x\n```\n\n```yaml\npaths:\n  /v1/chat:\n    post: {}\n```\n"
	got := New().Extract("doc.md", doc)
	if !got.HasFragment() {
		t.Fatalf("expected fragment, reason %q", got.Reason)
	}
	if _, ok := got.Fragment.Paths.Get("/v1/chat", "post"); !ok {
		t.Fatalf("missing /v1/chat post: %v", got.Fragment.Paths.Summary())
	}
}

func TestExtractKeepsBlockVerbatim(t *testing.T) {
	block := "paths:\n  /v1/chat:\n    post:\n      description: |\n        line one   \n\n\n\n        line two\n      summary: create"
	doc := "# Chat\n\n```yaml\n" + block + "\n```\n"
	got := New().Extract("chat.md", doc)
	if !got.HasFragment() {
		t.Fatalf("expected fragment, reason %q", got.Reason)
	}
	if got.Fragment.RawSpecText != block {
		t.Fatalf("raw text changed:\n%q\nwant\n%q", got.Fragment.RawSpecText, block)
	}
	op, _ := got.Fragment.Paths.Get("/v1/chat", "post")
	var details struct {
		Description string `yaml:"description"`
	}
	if err := op.Decode(&details); err != nil {
		t.Fatalf("decode operation: %v", err)
	}
	if want := "line one   \n\n\n\nline two\n"; details.Description != want {
		t.Fatalf("description = %q, want %q", details.Description, want)
	}
	if strings.Contains(got.Cleaned, "\n\n\n") {
		t.Fatalf("cleaned output still has blank runs: %q", got.Cleaned)
	}
}
