package models

import (
	"encoding/json"
	"fmt"
)

// SpecFragment is a validated specification block taken from one document.
// Paths is never empty.
type SpecFragment struct {
	SourceName  string
	RawSpecText string
	Paths       *Paths
}

type fragmentJSON struct {
	SourceName  string              `json:"source_name"`
	RawSpecText string              `json:"raw_spec_text"`
	Operations  map[string][]string `json:"operations,omitempty"`
}

func (f SpecFragment) MarshalJSON() ([]byte, error) {
	return json.Marshal(fragmentJSON{
		SourceName:  f.SourceName,
		RawSpecText: f.RawSpecText,
		Operations:  f.Paths.Summary(),
	})
}

// UnmarshalJSON restores the fragment and re-derives Paths from the raw text.
func (f *SpecFragment) UnmarshalJSON(data []byte) error {
	var raw fragmentJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	paths, err := ParsePaths(raw.RawSpecText)
	if err != nil {
		return fmt.Errorf("fragment %s: %w", raw.SourceName, err)
	}
	*f = SpecFragment{SourceName: raw.SourceName, RawSpecText: raw.RawSpecText, Paths: paths}
	return nil
}

// ClassifiedFragment pairs a fragment with its category. Seq is the index
// record position the fragment came from.
type ClassifiedFragment struct {
	Seq      int          `json:"seq"`
	Category Category     `json:"category"`
	Fragment SpecFragment `json:"fragment"`
}

// MergedDocument is the consolidated specification of one category.
type MergedDocument struct {
	Category  Category
	Title     string
	Paths     *Paths
	Fragments int
	YAML      []byte
	Location  string
}

type mergedJSON struct {
	Category       Category            `json:"category"`
	Title          string              `json:"title"`
	Fragments      int                 `json:"fragments"`
	OperationCount int                 `json:"operation_count"`
	Operations     map[string][]string `json:"operations,omitempty"`
	YAML           string              `json:"yaml"`
	Location       string              `json:"location,omitempty"`
}

func (d MergedDocument) MarshalJSON() ([]byte, error) {
	return json.Marshal(mergedJSON{
		Category:       d.Category,
		Title:          d.Title,
		Fragments:      d.Fragments,
		OperationCount: d.Paths.OperationCount(),
		Operations:     d.Paths.Summary(),
		YAML:           string(d.YAML),
		Location:       d.Location,
	})
}

func (d *MergedDocument) UnmarshalJSON(data []byte) error {
	var raw mergedJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	paths, err := ParsePaths(raw.YAML)
	if err != nil {
		return fmt.Errorf("merged document %s: %w", raw.Category, err)
	}
	*d = MergedDocument{
		Category:  raw.Category,
		Title:     raw.Title,
		Paths:     paths,
		Fragments: raw.Fragments,
		YAML:      []byte(raw.YAML),
		Location:  raw.Location,
	}
	return nil
}
