// Package testutil holds helpers shared by package tests.
package testutil

import (
	"bytes"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// ParseHTML parses the provided HTML payload into a goquery document for assertions.
func ParseHTML(t testing.TB, body []byte) *goquery.Document {
	t.Helper()

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc
}

// ParseNodes renders nodes inside a wrapper div and parses the result, so
// selectors can run against a fragment.
func ParseNodes(t testing.TB, nodes ...*html.Node) *goquery.Document {
	t.Helper()

	var buf bytes.Buffer
	buf.WriteString(`<div id="root">`)
	for _, n := range nodes {
		if err := html.Render(&buf, n); err != nil {
			t.Fatalf("render node: %v", err)
		}
	}
	buf.WriteString(`</div>`)
	return ParseHTML(t, buf.Bytes())
}

// Squash collapses runs of whitespace, for comparing rendered text.
func Squash(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
