package feed

import (
	"strings"

	"finitefield.org/sheetboard/internal/sheet"
)

// Gate hides a feed behind an overlay while the sheet says so. The switch is
// a single cell: the first "I" or "O" found in the candidate columns wins,
// "I" meaning the gate is up.
type Gate struct {
	// Header is looked up in the header row first.
	Header string `yaml:"header"`
	// Columns are spreadsheet column labels tried after the header match.
	Columns []string `yaml:"columns"`
	// BypassKeys unlock the feed for a browser when passed as ?key=.
	BypassKeys []string `yaml:"bypass_keys"`
}

// DefaultGate mirrors the TEH sheet, where the switch lives in column 2Z.
var DefaultGate = Gate{
	Header:  "2Z",
	Columns: []string{"2Z", "Z", "BZ", "ZZ"},
}

// Active inspects the raw tokenized sheet (header included).
func (g Gate) Active(rows [][]string) bool {
	if len(rows) == 0 {
		return false
	}
	var candidates []int
	add := func(i int) {
		for _, c := range candidates {
			if c == i {
				return
			}
		}
		candidates = append(candidates, i)
	}
	if g.Header != "" {
		if i, ok := sheet.HeaderIndex(rows[0], g.Header); ok {
			add(i)
		}
	}
	for _, label := range g.Columns {
		if i, ok := sheet.ColumnIndex(label); ok {
			add(i)
		}
	}

	for _, col := range candidates {
		for _, row := range rows[1:] {
			switch strings.ToUpper(strings.TrimSpace(sheet.Cell(row, col))) {
			case "I":
				return true
			case "O":
				return false
			}
		}
	}
	return false
}

// Unlocks reports whether key is one of the bypass keys.
func (g Gate) Unlocks(key string) bool {
	if key == "" {
		return false
	}
	for _, k := range g.BypassKeys {
		if k == key {
			return true
		}
	}
	return false
}
