// Package sheet tokenizes the CSV exports published by Google Sheets.
//
// Malformed quoting never fails. encoding/csv is not used because it rejects
// stray quotes and does not end rows on a bare CR.
package sheet

import (
	"strings"
)

// Parse splits text into rows of fields.
//
// Rules:
//   - a field that starts with '"' is quoted; inside it "" is a literal quote
//     and a single '"' ends the quoted section. Characters after the closing
//     quote are appended to the same field.
//   - a '"' anywhere else is an ordinary character.
//   - outside quotes, ',' ends a field and "\n", "\r\n" or a bare "\r" ends a row.
//   - an unterminated quoted field runs to the end of input.
//
// The final row is always emitted, so empty input yields one row holding one
// empty field.
func Parse(text string) [][]string {
	var (
		rows     [][]string
		current  []string
		field    strings.Builder
		inQuotes bool
		started  bool // field has consumed at least one character
	)

	endField := func() {
		current = append(current, field.String())
		field.Reset()
		started = false
	}
	endRow := func() {
		endField()
		rows = append(rows, current)
		current = nil
	}

	for i := 0; i < len(text); i++ {
		c := text[i]

		if inQuotes {
			if c == '"' {
				if i+1 < len(text) && text[i+1] == '"' {
					field.WriteByte('"')
					i++
					continue
				}
				inQuotes = false
				continue
			}
			field.WriteByte(c)
			continue
		}

		switch c {
		case '"':
			if !started {
				inQuotes = true
				started = true
				continue
			}
			field.WriteByte(c)
		case ',':
			endField()
		case '\r':
			if i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
			endRow()
		case '\n':
			endRow()
		default:
			field.WriteByte(c)
			started = true
		}
	}

	endRow()
	return rows
}

// DropBlank removes rows whose fields are all empty or whitespace.
func DropBlank(rows [][]string) [][]string {
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		if isBlank(row) {
			continue
		}
		out = append(out, row)
	}
	return out
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// Encode serialises rows back to CSV, quoting only the fields that need it.
// Rows are separated by "\n" and no trailing newline is written, so
// Parse(Encode(rows)) reproduces rows that have at least one field.
func Encode(rows [][]string) string {
	var b strings.Builder
	for i, row := range rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		for j, cell := range row {
			if j > 0 {
				b.WriteByte(',')
			}
			writeField(&b, cell)
		}
	}
	return b.String()
}

func writeField(b *strings.Builder, cell string) {
	if !strings.ContainsAny(cell, ",\"\r\n") {
		b.WriteString(cell)
		return
	}
	b.WriteByte('"')
	b.WriteString(strings.ReplaceAll(cell, `"`, `""`))
	b.WriteByte('"')
}

// Cell returns row[i] or "" when the row is too short or i is negative.
func Cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
