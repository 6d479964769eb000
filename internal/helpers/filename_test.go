package helpers

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSafeFileNameDeterministic(t *testing.T) {
	t.Parallel()
	addr := "https://docs.example.com/api/chat.md"
	a := SafeFileName("Chat API", addr, ".md")
	b := SafeFileName("Chat API", addr, ".md")
	if a != b {
		t.Fatalf("expected deterministic name, got %q vs %q", a, b)
	}
	if !strings.HasSuffix(a, "_Chat_API.md") {
		t.Fatalf("unexpected name %q", a)
	}
}

func TestSafeFileNameDistinctAddresses(t *testing.T) {
	t.Parallel()
	seen := make(map[string]string)
	addrs := []string{
		"https://docs.example.com/api/chat.md",
		"https://docs.example.com/api/chat2.md",
		"https://docs.example.com/v1/123a456.md",
		"https://docs.example.com/v2/123a456.md",
		"https://other.example.com/api/chat.md",
	}
	for _, addr := range addrs {
		name := SafeFileName("Same Title", addr, ".md")
		if prev, ok := seen[name]; ok {
			t.Fatalf("collision between %s and %s: %s", prev, addr, name)
		}
		seen[name] = addr
	}
}

func TestSafeFileNameUsesEmbeddedID(t *testing.T) {
	t.Parallel()
	name := SafeFileName("Create Chat", "https://docs.example.com/api-123a456.md", ".md")
	if !strings.HasPrefix(name, "123a456_") {
		t.Fatalf("expected embedded id prefix, got %q", name)
	}
	if EmbeddedID("https://docs.example.com/guide.md", ".md") != "" {
		t.Fatalf("unexpected id for plain name")
	}
}

func TestSanitizeTitle(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
	}{
		{in: "Chat / Completions: v2!", want: "Chat_Completions_v2"},
		{in: "聊天 接口", want: "聊天_接口"},
		{in: "  ***  ", want: "untitled"},
		{in: "Files (beta)", want: "Files_(beta)"},
	}
	for _, tt := range tests {
		if got := SanitizeTitle(tt.in); got != tt.want {
			t.Fatalf("SanitizeTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	long := SanitizeTitle(strings.Repeat("a", 80))
	if utf8.RuneCountInString(long) != maxTitleRunes {
		t.Fatalf("expected title capped at %d runes, got %d", maxTitleRunes, utf8.RuneCountInString(long))
	}
}
