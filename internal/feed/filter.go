package feed

import (
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Query narrows an already ordered list.
type Query struct {
	Search   string
	Category string
}

// IsZero reports whether q matches everything.
func (q Query) IsZero() bool {
	return strings.TrimSpace(q.Search) == "" && q.Category == ""
}

// Apply keeps records whose title or body contains Search (case-insensitive)
// and that carry Category, when those are set. Order is preserved.
func (q Query) Apply(records []Record) []Record {
	if q.IsZero() {
		return records
	}
	needle := strings.ToLower(strings.TrimSpace(q.Search))
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if needle != "" &&
			!strings.Contains(strings.ToLower(r.Title), needle) &&
			!strings.Contains(strings.ToLower(r.Body), needle) {
			continue
		}
		if q.Category != "" && !hasCategory(r, q.Category) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func hasCategory(r Record, category string) bool {
	for _, c := range r.Categories {
		if c == category {
			return true
		}
	}
	return false
}

// Categories returns the distinct categories of records sorted with
// Indonesian collation.
func Categories(records []Record) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, r := range records {
		for _, c := range r.Categories {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	collate.New(language.Indonesian).SortStrings(out)
	return out
}
