package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{
  "fetch": {"concurrency": 8, "timeout": "5s", "host_policy": {"allow": ["Docs.Example.com"]}},
  "merge": {"server_url": "https://api.acme.dev"},
  "storage": {"backend": "inmemory"},
  "schedule": {"targets": [{"base_url": "https://docs.example.com"}]}
}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SPECHARVEST_OUTPUT_DIR", "/tmp/out")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Fetch.Concurrency != 8 || cfg.Fetch.Timeout != 5*time.Second {
		t.Fatalf("unexpected fetch config: %+v", cfg.Fetch)
	}
	if cfg.Fetch.HostPolicy.Allow[0] != "docs.example.com" {
		t.Fatalf("host policy not normalised: %+v", cfg.Fetch.HostPolicy)
	}
	if cfg.Merge.ServerURL != "https://api.acme.dev" || cfg.Merge.OpenAPIVersion != "3.1.0" {
		t.Fatalf("unexpected merge config: %+v", cfg.Merge)
	}
	if cfg.Output.Dir != "/tmp/out" {
		t.Fatalf("env override not applied: %q", cfg.Output.Dir)
	}
	if cfg.Index.HeadingMarker != "## " || cfg.Index.Extension != ".md" {
		t.Fatalf("unexpected index defaults: %+v", cfg.Index)
	}
	if got := cfg.Schedule.Targets[0]; got.Cron != "@daily" || got.Name != "https://docs.example.com" {
		t.Fatalf("schedule target not normalised: %+v", got)
	}
}

func TestLoadConfigRejectsUnknownBackend(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"storage": {"backend": "etcd"}}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Fetch.Concurrency != DefaultConcurrency || cfg.Fetch.Type != "http" {
		t.Fatalf("unexpected fetch defaults: %+v", cfg.Fetch)
	}
	if cfg.Index.FileName != "llms.txt" {
		t.Fatalf("unexpected index file name %q", cfg.Index.FileName)
	}
}
