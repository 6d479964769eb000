package index

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mohammad-safakhou/specharvest/config"
	"github.com/mohammad-safakhou/specharvest/models"
)

// Filter narrows parsed records. Keywords match title or target
// case-insensitively (any keyword suffices). Include and Exclude are regular
// expressions: with Include set a record must match one of them against its
// target, and a record matching an Exclude pattern against target or title
// is dropped.
type Filter struct {
	Keywords []string
	Include  []string
	Exclude  []string
}

// Apply returns the records that pass the filter, preserving order.
func (f Filter) Apply(records []models.LinkRecord) ([]models.LinkRecord, error) {
	if len(f.Keywords) == 0 && len(f.Include) == 0 && len(f.Exclude) == 0 {
		return records, nil
	}
	includes, err := compilePatterns("include", f.Include)
	if err != nil {
		return nil, err
	}
	excludes, err := compilePatterns("exclude", f.Exclude)
	if err != nil {
		return nil, err
	}
	out := make([]models.LinkRecord, 0, len(records))
	for _, r := range records {
		if !f.matchesKeyword(r) || !matchesAny(includes, r.RelativeTarget, r.ResolvedTarget) {
			continue
		}
		excluded := false
		for _, re := range excludes {
			if re.MatchString(r.RelativeTarget) || re.MatchString(r.Title) {
				excluded = true
				break
			}
		}
		if !excluded {
			out = append(out, r)
		}
	}
	return out, nil
}

func compilePatterns(kind string, patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, fmt.Errorf("%s pattern %q: %w", kind, pattern, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// matchesAny reports whether one of patterns matches one of values. No
// patterns matches everything.
func matchesAny(patterns []*regexp.Regexp, values ...string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, re := range patterns {
		for _, v := range values {
			if re.MatchString(v) {
				return true
			}
		}
	}
	return false
}

func (f Filter) matchesKeyword(r models.LinkRecord) bool {
	if len(f.Keywords) == 0 {
		return true
	}
	title, target := strings.ToLower(r.Title), strings.ToLower(r.RelativeTarget)
	for _, kw := range f.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && (strings.Contains(title, kw) || strings.Contains(target, kw)) {
			return true
		}
	}
	return false
}

// SectionCount is the number of records in one section.
type SectionCount struct {
	Section string `json:"section"`
	Count   int    `json:"count"`
}

// SectionCounts summarises records per section in order of first appearance.
func SectionCounts(records []models.LinkRecord) []SectionCount {
	var out []SectionCount
	pos := make(map[string]int)
	for _, r := range records {
		i, ok := pos[r.Section]
		if !ok {
			pos[r.Section] = len(out)
			out = append(out, SectionCount{Section: r.Section})
			i = len(out) - 1
		}
		out[i].Count++
	}
	return out
}

// Location splits baseAddress into the documentation base and the index
// address. baseAddress may already point at the index file.
func Location(cfg config.IndexConfig, baseAddress string) (base, indexURL string) {
	base = strings.TrimRight(strings.TrimSpace(baseAddress), "/")
	if base == "" {
		return "", ""
	}
	name := cfg.Normalize().FileName
	if strings.HasSuffix(base, "/"+name) {
		return strings.TrimSuffix(base, "/"+name), base
	}
	return base, base + "/" + name
}
