// Package output writes run artifacts to the filesystem.
package output

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mohammad-safakhou/specharvest/models"
)

const (
	finalDir   = "final"
	plainDir   = "md"
	zipPrefix  = "docs_"
	zipLayout  = "20060102_150405"
	zipFolder  = "docs"
	docFileExt = ".yml"
)

// Sink lays out files as <root>/<run>/final/{<category>.yml, md/<name>, docs_<ts>.zip}.
type Sink struct {
	root string
	now  func() time.Time
}

func NewSink(root string) *Sink {
	if strings.TrimSpace(root) == "" {
		root = "data"
	}
	return &Sink{root: root, now: time.Now}
}

// RunDir is the final output directory of a run.
func (s *Sink) RunDir(runID string) string {
	return filepath.Join(s.root, sanitizeID(runID), finalDir)
}

// Reset removes what stage produced for the run so a re-run starts clean.
func (s *Sink) Reset(runID string, stage models.Stage) error {
	dir := s.RunDir(runID)
	switch stage {
	case models.StageExtract:
		if err := os.RemoveAll(filepath.Join(dir, plainDir)); err != nil {
			return fmt.Errorf("reset plain documents: %w", err)
		}
		return removeGlob(filepath.Join(dir, zipPrefix+"*.zip"))
	case models.StageMerge:
		return removeGlob(filepath.Join(dir, "*"+docFileExt))
	default:
		return nil
	}
}

// ResetAll removes every artifact of the run.
func (s *Sink) ResetAll(runID string) error {
	return os.RemoveAll(filepath.Join(s.root, sanitizeID(runID)))
}

// WriteDocument stores a merged document and returns its path.
func (s *Sink) WriteDocument(runID string, doc models.MergedDocument) (string, error) {
	dir := s.RunDir(runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, DocumentFileName(doc.Category))
	if err := os.WriteFile(path, doc.YAML, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", doc.Category, err)
	}
	return path, nil
}

// DocumentFileName is the file name of a category document.
func DocumentFileName(c models.Category) string {
	return strings.ReplaceAll(string(c), " ", "_") + docFileExt
}

// WritePlain stores a plain document under md/ and returns its path.
func (s *Sink) WritePlain(runID string, doc models.PlainDocument) (string, error) {
	dir := filepath.Join(s.RunDir(runID), plainDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create plain dir: %w", err)
	}
	path := filepath.Join(dir, filepath.Base(doc.SourceName))
	if err := os.WriteFile(path, []byte(doc.Body), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", doc.SourceName, err)
	}
	return path, nil
}

// BundlePlain zips the plain documents under docs/ and returns the archive
// path. No archive is written when docs is empty. A repeated file name keeps
// its first document.
func (s *Sink) BundlePlain(runID string, docs []models.PlainDocument) (string, error) {
	if len(docs) == 0 {
		return "", nil
	}
	dir := s.RunDir(runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, zipPrefix+s.now().Format(zipLayout)+".zip")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create bundle: %w", err)
	}
	zw := zip.NewWriter(f)
	added := make(map[string]struct{}, len(docs))
	for _, doc := range docs {
		name := zipFolder + "/" + filepath.Base(doc.SourceName)
		if _, ok := added[name]; ok {
			continue
		}
		added[name] = struct{}{}
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: s.now(),
		})
		if err != nil {
			_ = zw.Close()
			_ = f.Close()
			return "", fmt.Errorf("add %s: %w", doc.SourceName, err)
		}
		if _, err := w.Write([]byte(doc.Body)); err != nil {
			_ = zw.Close()
			_ = f.Close()
			return "", fmt.Errorf("add %s: %w", doc.SourceName, err)
		}
	}
	if err := zw.Close(); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("finish bundle: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close bundle: %w", err)
	}
	return path, nil
}

func removeGlob(pattern string) error {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", m, err)
		}
	}
	return nil
}

func sanitizeID(id string) string {
	id = filepath.Base(filepath.Clean("/" + id))
	if id == "/" || id == "." || id == "" {
		return "_"
	}
	return id
}
