package output

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mohammad-safakhou/specharvest/models"
)

func TestSinkLayout(t *testing.T) {
	root := t.TempDir()
	s := NewSink(root)
	s.now = func() time.Time { return time.Date(2026, 3, 1, 12, 30, 45, 0, time.UTC) }

	docPath, err := s.WriteDocument("run-1", models.MergedDocument{Category: models.CategoryChat, YAML: []byte("openapi: 3.1.0\n")})
	if err != nil {
		t.Fatalf("WriteDocument: %v", err)
	}
	if want := filepath.Join(root, "run-1", "final", "chat.yml"); docPath != want {
		t.Fatalf("doc path = %q, want %q", docPath, want)
	}

	plain := []models.PlainDocument{
		{SourceName: "abc_Intro.md", Body: "# Intro\n"},
		{SourceName: "def_Guide.md", Body: "# Guide\n"},
	}
	for _, d := range plain {
		if _, err := s.WritePlain("run-1", d); err != nil {
			t.Fatalf("WritePlain: %v", err)
		}
	}
	if _, err := os.Stat(filepath.Join(root, "run-1", "final", "md", "abc_Intro.md")); err != nil {
		t.Fatalf("plain doc missing: %v", err)
	}

	zipPath, err := s.BundlePlain("run-1", plain)
	if err != nil {
		t.Fatalf("BundlePlain: %v", err)
	}
	if filepath.Base(zipPath) != "docs_20260301_123045.zip" {
		t.Fatalf("unexpected bundle name %q", zipPath)
	}
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	defer zr.Close()
	if len(zr.File) != 2 || zr.File[0].Name != "docs/abc_Intro.md" {
		t.Fatalf("unexpected zip entries: %v", zr.File)
	}
}

func TestSinkReset(t *testing.T) {
	root := t.TempDir()
	s := NewSink(root)
	if _, err := s.WriteDocument("r", models.MergedDocument{Category: models.CategoryImage, YAML: []byte("x: 1\n")}); err != nil {
		t.Fatalf("WriteDocument: %v", err)
	}
	plain := models.PlainDocument{SourceName: "a.md", Body: "a"}
	if _, err := s.WritePlain("r", plain); err != nil {
		t.Fatalf("WritePlain: %v", err)
	}
	if _, err := s.BundlePlain("r", []models.PlainDocument{plain}); err != nil {
		t.Fatalf("BundlePlain: %v", err)
	}

	if err := s.Reset("r", models.StageMerge); err != nil {
		t.Fatalf("Reset merge: %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.RunDir("r"), "image.yml")); !os.IsNotExist(err) {
		t.Fatalf("merge output survived reset")
	}
	if _, err := os.Stat(filepath.Join(s.RunDir("r"), "md", "a.md")); err != nil {
		t.Fatalf("merge reset removed plain docs: %v", err)
	}

	if err := s.Reset("r", models.StageExtract); err != nil {
		t.Fatalf("Reset extract: %v", err)
	}
	matches, _ := filepath.Glob(filepath.Join(s.RunDir("r"), "*.zip"))
	if len(matches) != 0 {
		t.Fatalf("bundle survived reset: %v", matches)
	}
	if _, err := os.Stat(filepath.Join(s.RunDir("r"), "md")); !os.IsNotExist(err) {
		t.Fatalf("plain dir survived reset")
	}
}

func TestSinkRunIDCannotEscapeRoot(t *testing.T) {
	s := NewSink("/srv/out")
	if got := s.RunDir("../../etc"); got != filepath.Join("/srv/out", "etc", "final") {
		t.Fatalf("unexpected run dir %q", got)
	}
}

func TestBundlePlainEmpty(t *testing.T) {
	path, err := NewSink(t.TempDir()).BundlePlain("r", nil)
	if err != nil || path != "" {
		t.Fatalf("expected no bundle, got %q (%v)", path, err)
	}
}

func TestBundlePlainSkipsRepeatedNames(t *testing.T) {
	s := NewSink(t.TempDir())
	docs := []models.PlainDocument{
		{SourceName: "abc_Intro.md", Body: "first"},
		{SourceName: "abc_Intro.md", Body: "second"},
	}
	zipPath, err := s.BundlePlain("run-1", docs)
	if err != nil {
		t.Fatalf("BundlePlain: %v", err)
	}
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	defer zr.Close()
	if len(zr.File) != 1 {
		t.Fatalf("expected one entry, got %d", len(zr.File))
	}
	rc, err := zr.File[0].Open()
	if err != nil {
		t.Fatalf("open entry: %v", err)
	}
	defer rc.Close()
	body, err := io.ReadAll(rc)
	if err != nil || string(body) != "first" {
		t.Fatalf("unexpected entry body %q err %v", body, err)
	}
}
