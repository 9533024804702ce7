package feed

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"finitefield.org/sheetboard/internal/sheet"
)

// UntitledPlaceholder replaces blank titles.
const UntitledPlaceholder = "(Tanpa judul)"

// Record is one data row of a feed.
type Record struct {
	Title        string
	Body         string
	Categories   []string
	Media        string
	Progress     float64
	HasProgress  bool
	PublishLabel string
	PublishDate  Day
	ExpireLabel  string
	ExpireDate   Day
	DownloadLink string
	Hidden       bool
	Pinned       bool
	RowIndex     int
}

// Layout maps record fields to zero-based CSV columns. A negative index means
// the feed has no such column.
//
// When MediaFlag or ProgressFlag is set, the paired value column is only used
// on rows whose flag cell is "I".
type Layout struct {
	Title        int `yaml:"title"`
	Body         int `yaml:"body"`
	Categories   int `yaml:"categories"`
	MediaFlag    int `yaml:"media_flag"`
	Media        int `yaml:"media"`
	ProgressFlag int `yaml:"progress_flag"`
	Progress     int `yaml:"progress"`
	Publish      int `yaml:"publish"`
	Expire       int `yaml:"expire"`
	Download     int `yaml:"download"`
	Hidden       int `yaml:"hidden"`
	Pinned       int `yaml:"pinned"`
}

// NoticeLayout is the announcement sheet:
// title, description, imageFlag, imagePath, progressFlag, progressValue,
// startDate, endDate, hideFlag, pinFlag.
var NoticeLayout = Layout{
	Title:        0,
	Body:         1,
	Categories:   -1,
	MediaFlag:    2,
	Media:        3,
	ProgressFlag: 4,
	Progress:     5,
	Publish:      6,
	Expire:       7,
	Download:     -1,
	Hidden:       8,
	Pinned:       9,
}

// MaterialLayout is the TEH/TLR material sheet:
// title, materi, kategori, evidence, publishDate, downloadLink, hideFlag, pinFlag.
var MaterialLayout = Layout{
	Title:        0,
	Body:         1,
	Categories:   2,
	MediaFlag:    -1,
	Media:        3,
	ProgressFlag: -1,
	Progress:     -1,
	Publish:      4,
	Expire:       -1,
	Download:     5,
	Hidden:       6,
	Pinned:       7,
}

// EmptyLayout has every column unset; it is the starting point for custom layouts.
var EmptyLayout = Layout{-1, -1, -1, -1, -1, -1, -1, -1, -1, -1, -1, -1}

// Map builds the record for one data row. index is the row's position among
// data rows (header excluded).
func (l Layout) Map(row []string, index int) Record {
	cell := func(i int) string { return strings.TrimSpace(sheet.Cell(row, i)) }

	rec := Record{
		Title:        cell(l.Title),
		Body:         cell(l.Body),
		Categories:   ParseCategories(cell(l.Categories)),
		PublishLabel: cell(l.Publish),
		ExpireLabel:  cell(l.Expire),
		DownloadLink: cell(l.Download),
		Hidden:       flag(cell(l.Hidden)),
		Pinned:       flag(cell(l.Pinned)),
		RowIndex:     index,
	}
	if rec.Title == "" {
		rec.Title = UntitledPlaceholder
	}
	if l.MediaFlag < 0 || flag(cell(l.MediaFlag)) {
		rec.Media = cell(l.Media)
	}
	if l.ProgressFlag < 0 || flag(cell(l.ProgressFlag)) {
		rec.Progress, rec.HasProgress = ParseProgress(cell(l.Progress))
	}
	rec.PublishDate, _ = ParseDay(rec.PublishLabel)
	rec.ExpireDate, _ = ParseDay(rec.ExpireLabel)
	return rec
}

// MapRows maps every data row of a tokenized sheet. Blank rows are dropped and
// the first remaining row is treated as the header.
func (l Layout) MapRows(rows [][]string) []Record {
	rows = sheet.DropBlank(rows)
	if len(rows) <= 1 {
		return []Record{}
	}
	out := make([]Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		out = append(out, l.Map(row, i))
	}
	return out
}

func flag(v string) bool {
	return strings.ToUpper(strings.TrimSpace(v)) == "I"
}

// ParseCategories splits a ';'-separated cell into trimmed, non-empty tags.
func ParseCategories(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

var leadingNumber = regexp.MustCompile(`^[-+]?(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?`)

// ParseProgress reads a percentage such as "42", "42.5%" or "105%" and clamps
// it to [0, 100]. Like a lenient float parse, trailing garbage after the
// number is ignored; input without a leading number is absent.
func ParseProgress(raw string) (float64, bool) {
	raw = strings.TrimSpace(strings.Replace(raw, "%", "", 1))
	if raw == "" {
		return 0, false
	}
	num := leadingNumber.FindString(raw)
	if num == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return math.Min(100, math.Max(0, v)), true
}
