// Package classify assigns specification fragments to categories.
package classify

import (
	"strings"

	"github.com/mohammad-safakhou/specharvest/models"
)

// Rule maps keywords to a category. Rules are evaluated in order.
type Rule struct {
	Category models.Category
	Keywords []string
}

var defaultRules = []Rule{
	{Category: models.CategoryChat, Keywords: []string{"chat"}},
	{Category: models.CategoryImage, Keywords: []string{"image", "vision"}},
	{Category: models.CategoryAudio, Keywords: []string{"audio", "speech"}},
	{Category: models.CategoryEmbedding, Keywords: []string{"embed"}},
	{Category: models.CategoryModel, Keywords: []string{"model"}},
	{Category: models.CategoryFile, Keywords: []string{"file"}},
}

// Rules returns a copy of the ordered rule list.
func Rules() []Rule {
	out := make([]Rule, len(defaultRules))
	for i, r := range defaultRules {
		out[i] = Rule{Category: r.Category, Keywords: append([]string(nil), r.Keywords...)}
	}
	return out
}

// CategoryOrder is the iteration order used when grouping and merging.
func CategoryOrder() []models.Category {
	out := make([]models.Category, 0, len(defaultRules)+1)
	for _, r := range defaultRules {
		out = append(out, r.Category)
	}
	return append(out, models.CategoryDefault)
}

// Classifier applies rules to a fragment's paths first and its source
// name second. Path matches require the keyword to start a path segment,
// so "/v1/chat/completions" matches chat but "/v1/groupchat" does not.
type Classifier struct {
	rules []Rule
}

// New returns a classifier with the built-in rules.
func New() *Classifier {
	return &Classifier{rules: Rules()}
}

// Classify returns the category of f. Paths are scanned in their original
// order and, per path, rules in precedence order; the first hit wins.
func (c *Classifier) Classify(f models.SpecFragment) models.Category {
	if f.Paths != nil {
		for _, p := range f.Paths.Paths() {
			p = strings.ToLower(p)
			for _, r := range c.rules {
				if matchAny(p, "/", r.Keywords) {
					return r.Category
				}
			}
		}
	}
	name := strings.ToLower(f.SourceName)
	for _, r := range c.rules {
		if matchAny(name, "", r.Keywords) {
			return r.Category
		}
	}
	return models.CategoryDefault
}

func matchAny(s, prefix string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, prefix+kw) {
			return true
		}
	}
	return false
}

// Group buckets classified fragments by category, preserving arrival order
// inside each bucket.
type Group struct {
	Category  models.Category
	Fragments []models.ClassifiedFragment
}

// GroupByCategory returns non-empty groups in CategoryOrder. Categories not
// known to the rule set are appended in first-seen order.
func GroupByCategory(fragments []models.ClassifiedFragment) []Group {
	buckets := make(map[models.Category][]models.ClassifiedFragment)
	var seen []models.Category
	for _, f := range fragments {
		if _, ok := buckets[f.Category]; !ok {
			seen = append(seen, f.Category)
		}
		buckets[f.Category] = append(buckets[f.Category], f)
	}

	var out []Group
	known := make(map[models.Category]bool)
	for _, cat := range CategoryOrder() {
		known[cat] = true
		if frags := buckets[cat]; len(frags) > 0 {
			out = append(out, Group{Category: cat, Fragments: frags})
		}
	}
	for _, cat := range seen {
		if !known[cat] {
			out = append(out, Group{Category: cat, Fragments: buckets[cat]})
		}
	}
	return out
}
