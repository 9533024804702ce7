// Package markup expands the inline conventions used in sheet text cells:
//
//	?[value]?   copy-to-clipboard span
//	?{url}?     copy-and-open span
//	[label](https://...) and bare http(s) URLs become links
//
// Output is a list of html nodes. Cell text only ever becomes text nodes, so
// nothing in a sheet can inject markup.
package markup

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Class names consumed by the copy script.
const (
	CopyClass = "cc-copy"
	LinkClass = "cc-link"
)

var (
	markerPattern = regexp.MustCompile(`(?s)\?\[(.*?)\]\?|\?\{(.*?)\}\?`)
	linkPattern   = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^\s)]+)\)|(https?://[^\s<>"']+)`)
)

// Expand converts text into nodes. Markers are resolved first; links are only
// recognised in the text between markers.
func Expand(text string) []*html.Node {
	text = normalizeNewlines(text)
	var out []*html.Node
	last := 0
	for _, m := range markerPattern.FindAllStringSubmatchIndex(text, -1) {
		if m[0] > last {
			out = append(out, expandLinks(text[last:m[0]])...)
		}
		if m[2] >= 0 {
			out = append(out, markerSpan(text[m[2]:m[3]], CopyClass, false))
		} else {
			out = append(out, markerSpan(text[m[4]:m[5]], LinkClass, true))
		}
		last = m[1]
	}
	if last < len(text) {
		out = append(out, expandLinks(text[last:])...)
	}
	return out
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

func markerSpan(value, class string, open bool) *html.Node {
	attrs := []html.Attribute{
		{Key: "class", Val: class},
		{Key: "data-copy", Val: value},
	}
	if open {
		attrs = append(attrs, html.Attribute{Key: "data-open", Val: value})
	}
	span := Element(atom.Span, attrs...)
	span.AppendChild(Text(value))
	return span
}

func expandLinks(text string) []*html.Node {
	var out []*html.Node
	last := 0
	for _, m := range linkPattern.FindAllStringSubmatchIndex(text, -1) {
		if m[0] > last {
			out = append(out, lines(text[last:m[0]])...)
		}
		if m[6] >= 0 {
			u := text[m[6]:m[7]]
			out = append(out, Link(u, u))
		} else {
			out = append(out, Link(text[m[4]:m[5]], text[m[2]:m[3]]))
		}
		last = m[1]
	}
	if last < len(text) {
		out = append(out, lines(text[last:])...)
	}
	return out
}

// lines turns newlines into <br> elements.
func lines(text string) []*html.Node {
	parts := strings.Split(text, "\n")
	out := make([]*html.Node, 0, len(parts)*2)
	for i, part := range parts {
		if part != "" {
			out = append(out, Text(part))
		}
		if i < len(parts)-1 {
			out = append(out, Element(atom.Br))
		}
	}
	return out
}

// Link builds an anchor that opens in a new browsing context without
// leaking the opener or referrer.
func Link(href, label string) *html.Node {
	a := Element(atom.A,
		html.Attribute{Key: "href", Val: href},
		html.Attribute{Key: "target", Val: "_blank"},
		html.Attribute{Key: "rel", Val: "noopener noreferrer"},
	)
	a.AppendChild(Text(label))
	return a
}

// Element creates an element node.
func Element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
}

// Text creates a text node; its content is escaped when rendered.
func Text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// PlainText returns the text content of nodes, with <br> as "\n".
func PlainText(nodes []*html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			b.WriteString(n.Data)
		case n.Type == html.ElementNode && n.DataAtom == atom.Br:
			b.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return b.String()
}

// SafeURL returns src when it is an http(s) URL or a same-origin path, and
// "" otherwise.
func SafeURL(src string) string {
	src = strings.TrimSpace(src)
	if src == "" {
		return ""
	}
	u, err := url.Parse(src)
	if err != nil {
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return src
	case "":
		if u.Host == "" && !strings.HasPrefix(src, "//") {
			return src
		}
	}
	return ""
}
