package sheet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseQuotedFields(t *testing.T) {
	t.Parallel()

	rows := Parse("title,body\n\"Hello, world\",\"line one\nline two\"\n\"say \"\"hi\"\"\",x")
	require.Equal(t, [][]string{
		{"title", "body"},
		{"Hello, world", "line one\nline two"},
		{`say "hi"`, "x"},
	}, rows)
}

func TestParseLineEndings(t *testing.T) {
	t.Parallel()

	rows := Parse("a,b\r\nc,d\re,f\ng,h")
	require.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e", "f"}, {"g", "h"}}, rows)
}

func TestParseEmitsTrailingRow(t *testing.T) {
	t.Parallel()

	require.Equal(t, [][]string{{""}}, Parse(""))
	require.Equal(t, [][]string{{"a"}, {""}}, Parse("a\n"))
	require.Equal(t, [][]string{{"a", ""}}, Parse("a,"))
}

func TestParseMalformedQuotes(t *testing.T) {
	t.Parallel()

	// a quote in the middle of an unquoted field is literal
	require.Equal(t, [][]string{{`ab"c`, "d"}}, Parse(`ab"c,d`))
	// characters after a closing quote stay in the same field
	require.Equal(t, [][]string{{"abcd", "e"}}, Parse(`"ab"cd,e`))
	// an unterminated quoted field swallows the rest of the input
	require.Equal(t, [][]string{{"x", "open,\nrest"}}, Parse("x,\"open,\nrest"))
}

func TestDropBlank(t *testing.T) {
	t.Parallel()

	rows := DropBlank([][]string{{"a"}, {"", "  "}, {""}, {" b "}})
	require.Equal(t, [][]string{{"a"}, {" b "}}, rows)
}

func TestEncodeRoundTrip(t *testing.T) {
	t.Parallel()

	cases := [][][]string{
		{{"plain", "fields"}},
		{{"comma, inside", `quote "inside"`}, {"new\nline", "cr\rline", "crlf\r\nline"}},
		{{`"`, `""`, ""}, {"", "", ""}},
		{{"?[123]? and ?{https://x.test}?"}},
		{{" padded ", "tab\tbed"}},
	}
	for _, rows := range cases {
		require.Equal(t, rows, Parse(Encode(rows)))
	}
}

func TestEncodeQuotesOnlyWhenNeeded(t *testing.T) {
	t.Parallel()

	require.Equal(t, "a,\"b,c\",\"d\"\"e\"", Encode([][]string{{"a", "b,c", `d"e`}}))
}

func TestCell(t *testing.T) {
	t.Parallel()

	row := []string{"a", "b"}
	require.Equal(t, "b", Cell(row, 1))
	require.Equal(t, "", Cell(row, 2))
	require.Equal(t, "", Cell(row, -1))
}

func TestColumnIndex(t *testing.T) {
	t.Parallel()

	cases := map[string]int{"A": 0, "Z": 25, "AA": 26, "BZ": 77, "ZZ": 701, "2Z": 25, "b": 1}
	for label, want := range cases {
		got, ok := ColumnIndex(label)
		require.True(t, ok, label)
		require.Equal(t, want, got, label)
	}
	_, ok := ColumnIndex("42")
	require.False(t, ok)

	for _, idx := range []int{0, 25, 26, 77, 701} {
		back, ok := ColumnIndex(ColumnLabel(idx))
		require.True(t, ok)
		require.Equal(t, idx, back)
	}
}

func TestHeaderIndex(t *testing.T) {
	t.Parallel()

	idx, ok := HeaderIndex([]string{"Title", " 2z "}, "2Z")
	require.True(t, ok)
	require.Equal(t, 1, idx)

	_, ok = HeaderIndex([]string{"Title"}, "2Z")
	require.False(t, ok)
}
