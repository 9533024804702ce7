package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"finitefield.org/sheetboard/internal/content"
	"finitefield.org/sheetboard/internal/feed"
	"finitefield.org/sheetboard/internal/sheet"
)

var feedName = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// FeedsFile is the YAML document listing the published sheets.
type FeedsFile struct {
	Feeds []FeedEntry      `yaml:"feeds"`
	Links content.LinkList `yaml:"links"`
}

// FeedEntry declares one sheet.
type FeedEntry struct {
	Name      string            `yaml:"name"`
	Title     string            `yaml:"title"`
	Kind      string            `yaml:"kind"`
	URL       string            `yaml:"url"`
	MediaBase string            `yaml:"media_base"`
	Archive   bool              `yaml:"archive"`
	Columns   map[string]Column `yaml:"columns"`
	Gate      *feed.Gate        `yaml:"gate"`
}

// Column is a column reference: a zero-based index ("3"), a spreadsheet
// label ("D") or "-" for a column the sheet does not have.
type Column string

// UnmarshalYAML accepts scalars of any type.
func (c *Column) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: column must be a scalar", node.Line)
	}
	*c = Column(strings.TrimSpace(node.Value))
	return nil
}

// Index resolves the reference to a zero-based index, -1 for "-".
func (c Column) Index() (int, bool) {
	raw := strings.TrimSpace(string(c))
	switch raw {
	case "":
		return 0, false
	case "-":
		return -1, true
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n, n >= 0
	}
	for _, r := range raw {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return 0, false
		}
	}
	return sheet.ColumnIndex(raw)
}

// LoadFeeds reads and parses the feeds file at path.
func LoadFeeds(path string) (FeedsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return FeedsFile{}, fmt.Errorf("config: feeds file %s: %w", path, err)
		}
		return FeedsFile{}, fmt.Errorf("config: unable to read %s: %w", path, err)
	}
	return ParseFeeds(data)
}

// ParseFeeds decodes a feeds document.
func ParseFeeds(data []byte) (FeedsFile, error) {
	var file FeedsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return FeedsFile{}, fmt.Errorf("config: parse feeds: %w", err)
	}
	return file, nil
}

// Definitions validates the entries and builds feed definitions. extraKeys
// are appended to the bypass keys of every gated feed.
func (f FeedsFile) Definitions(extraKeys ...string) ([]feed.Definition, error) {
	var invalid []string
	seen := map[string]bool{}
	defs := make([]feed.Definition, 0, len(f.Feeds))
	for i, entry := range f.Feeds {
		field := func(name string) string { return fmt.Sprintf("feeds[%d].%s", i, name) }

		name := strings.TrimSpace(entry.Name)
		if !feedName.MatchString(name) || seen[name] {
			invalid = append(invalid, field("name"))
		}
		seen[name] = true

		layout, policy, ok := feed.ForKind(feed.Kind(strings.ToLower(strings.TrimSpace(entry.Kind))))
		if !ok {
			invalid = append(invalid, field("kind"))
		}
		if u, err := url.Parse(strings.TrimSpace(entry.URL)); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			invalid = append(invalid, field("url"))
		}
		for key, col := range entry.Columns {
			idx, ok := col.Index()
			if !ok || !setColumn(&layout, key, idx) {
				invalid = append(invalid, field("columns."+key))
			}
		}

		def := feed.Definition{
			Name:      name,
			Title:     firstNonBlank(entry.Title, name),
			Kind:      feed.Kind(strings.ToLower(strings.TrimSpace(entry.Kind))),
			URL:       strings.TrimSpace(entry.URL),
			MediaBase: strings.TrimSpace(entry.MediaBase),
			Layout:    layout,
			Policy:    policy,
			Archive:   entry.Archive,
		}
		if entry.Gate != nil {
			g := *entry.Gate
			if g.Header == "" && len(g.Columns) == 0 {
				g.Header = feed.DefaultGate.Header
				g.Columns = append([]string(nil), feed.DefaultGate.Columns...)
			}
			g.BypassKeys = append(append([]string(nil), g.BypassKeys...), extraKeys...)
			def.Gate = &g
		}
		defs = append(defs, def)
	}
	if len(invalid) > 0 {
		return nil, &ValidationError{fields: invalid}
	}
	return defs, nil
}

func setColumn(l *feed.Layout, key string, idx int) bool {
	targets := map[string]*int{
		"title":         &l.Title,
		"body":          &l.Body,
		"categories":    &l.Categories,
		"media_flag":    &l.MediaFlag,
		"media":         &l.Media,
		"progress_flag": &l.ProgressFlag,
		"progress":      &l.Progress,
		"publish":       &l.Publish,
		"expire":        &l.Expire,
		"download":      &l.Download,
		"hidden":        &l.Hidden,
		"pinned":        &l.Pinned,
	}
	dst, ok := targets[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return false
	}
	*dst = idx
	return true
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
