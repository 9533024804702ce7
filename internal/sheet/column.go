package sheet

import "strings"

// ColumnIndex converts a spreadsheet column label ("A", "Z", "BZ") to a
// zero-based index. Non-letters are ignored; a label without letters is not
// a column.
func ColumnIndex(label string) (int, bool) {
	index := 0
	seen := false
	for _, r := range strings.ToUpper(label) {
		if r < 'A' || r > 'Z' {
			continue
		}
		index = index*26 + int(r-'A'+1)
		seen = true
	}
	if !seen {
		return 0, false
	}
	return index - 1, true
}

// ColumnLabel is the inverse of ColumnIndex.
func ColumnLabel(index int) string {
	if index < 0 {
		return ""
	}
	var buf []byte
	for n := index + 1; n > 0; n = (n - 1) / 26 {
		buf = append([]byte{byte('A' + (n-1)%26)}, buf...)
	}
	return string(buf)
}

// HeaderIndex finds the first header cell equal to name, ignoring case and
// surrounding whitespace.
func HeaderIndex(header []string, name string) (int, bool) {
	name = strings.TrimSpace(name)
	for i, cell := range header {
		if strings.EqualFold(strings.TrimSpace(cell), name) {
			return i, true
		}
	}
	return -1, false
}
