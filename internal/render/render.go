// Package render builds html node trees for feed records and renders them
// into templates.
package render

import (
	"fmt"
	"html/template"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"finitefield.org/sheetboard/internal/feed"
	"finitefield.org/sheetboard/internal/format"
	"finitefield.org/sheetboard/internal/lightbox"
	"finitefield.org/sheetboard/internal/markup"
)

// hideMediaBlock runs when a media element fails to load. Only the media
// block disappears; the card stays.
const hideMediaBlock = "var b=this.closest('.card__media');if(b){b.hidden=true}"

// Translator supplies UI strings.
type Translator interface {
	T(lang, key string) string
}

// Renderer turns records into node trees in one language.
type Renderer struct {
	tr         Translator
	lang       string
	viewerPath string
	returnTo   string
}

// Option customises a Renderer.
type Option func(*Renderer)

// WithViewerPath sets the image viewer route. Defaults to /view.
func WithViewerPath(p string) Option {
	return func(r *Renderer) { r.viewerPath = p }
}

// WithReturnTo is the page the viewer's close control leads back to.
func WithReturnTo(p string) Option {
	return func(r *Renderer) { r.returnTo = p }
}

// New builds a Renderer for lang.
func New(tr Translator, lang string, opts ...Option) *Renderer {
	r := &Renderer{tr: tr, lang: lang, viewerPath: "/view"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Renderer) t(key string) string {
	if r.tr == nil {
		return key
	}
	return r.tr.T(r.lang, key)
}

func (r *Renderer) tf(key string, args ...any) string {
	return fmt.Sprintf(r.t(key), args...)
}

// List renders the records of snap in the given order, or the empty
// placeholder when there are none.
func (r *Renderer) List(snap feed.Snapshot, records []feed.Record) []*html.Node {
	if len(records) == 0 {
		return []*html.Node{r.Empty(snap.Feed.Kind)}
	}
	out := make([]*html.Node, 0, len(records))
	for _, rec := range records {
		out = append(out, r.Card(snap.Feed, rec, snap.Status(rec)))
	}
	return out
}

// Latest renders the featured record of snap.
func (r *Renderer) Latest(snap feed.Snapshot) *html.Node {
	rec, ok := snap.Featured()
	if !ok {
		return r.placeholder("feed-empty", r.t("empty.latest"))
	}
	card := r.Card(snap.Feed, rec, snap.Status(rec))
	addClass(card, "card--featured")
	return card
}

// Empty is the single placeholder shown for a feed with nothing to list.
func (r *Renderer) Empty(kind feed.Kind) *html.Node {
	key := "empty.notice"
	if kind == feed.KindMaterial {
		key = "empty.material"
	}
	return r.placeholder("feed-empty", r.t(key))
}

// Error is the single placeholder shown when a feed could not be loaded.
func (r *Renderer) Error(title string) *html.Node {
	p := r.placeholder("feed-error", r.tf("error.load", title))
	p.Attr = append(p.Attr, html.Attribute{Key: "role", Val: "alert"})
	return p
}

func (r *Renderer) placeholder(class, text string) *html.Node {
	p := markup.Element(atom.P, attr("class", class))
	p.AppendChild(markup.Text(text))
	return p
}

// Guard runs build and turns a panic into the error placeholder for title.
func (r *Renderer) Guard(title string, build func() []*html.Node) (out []*html.Node, err error) {
	defer func() {
		if p := recover(); p != nil {
			out = []*html.Node{r.Error(title)}
			err = fmt.Errorf("render %s: %v", title, p)
		}
	}()
	return build(), nil
}

// Card renders one record.
func (r *Renderer) Card(def feed.Definition, rec feed.Record, status feed.Status) *html.Node {
	card := markup.Element(atom.Article,
		attr("class", "card card--"+string(def.Kind)),
		attr("data-row", strconv.Itoa(rec.RowIndex)),
		attr("data-status", status.String()),
	)
	card.AppendChild(r.pinDot(rec.Pinned))

	header := markup.Element(atom.Header, attr("class", "card__header"))
	header.AppendChild(r.status(status))
	title := markup.Element(atom.H3, attr("class", "card__title"))
	title.AppendChild(markup.Text(rec.Title))
	header.AppendChild(title)
	if meta := r.meta(def.Kind, rec); meta != nil {
		header.AppendChild(meta)
	}
	card.AppendChild(header)

	if media := r.media(def.MediaBase, rec); media != nil {
		card.AppendChild(media)
	}
	card.AppendChild(r.body(def.Kind, rec.Body))
	if len(rec.Categories) > 0 {
		card.AppendChild(r.chips(rec.Categories))
	}
	if rec.HasProgress {
		card.AppendChild(r.Progress(rec.Progress))
	}
	if href := markup.SafeURL(rec.DownloadLink); href != "" {
		actions := markup.Element(atom.Div, attr("class", "card__actions"))
		a := markup.Link(href, r.t("card.download"))
		addClass(a, "card__download")
		actions.AppendChild(a)
		card.AppendChild(actions)
	}
	return card
}

func (r *Renderer) pinDot(pinned bool) *html.Node {
	if !pinned {
		return markup.Element(atom.Div, attr("class", "pin-dot pin-dot--off"), attr("aria-hidden", "true"))
	}
	return markup.Element(atom.Div,
		attr("class", "pin-dot pin-dot--on"),
		attr("title", r.t("card.pinned")),
	)
}

func (r *Renderer) status(s feed.Status) *html.Node {
	class := "status status--" + s.String()
	if s != feed.StatusActive {
		class += " status--inactive"
	}
	span := markup.Element(atom.Span, attr("class", class))
	span.AppendChild(markup.Text(r.t("status." + s.String())))
	return span
}

func (r *Renderer) meta(kind feed.Kind, rec feed.Record) *html.Node {
	var lines []string
	if kind == feed.KindNotice {
		if rec.PublishLabel != "" {
			lines = append(lines, r.tf("card.start", rec.PublishLabel))
		}
		if rec.ExpireLabel != "" {
			lines = append(lines, r.tf("card.end", rec.ExpireLabel))
		}
	} else if rec.PublishLabel != "" {
		lines = append(lines, r.tf("card.publish", rec.PublishLabel))
	}
	if len(lines) == 0 {
		return nil
	}
	meta := markup.Element(atom.Div, attr("class", "card__meta"))
	for _, line := range lines {
		span := markup.Element(atom.Span)
		span.AppendChild(markup.Text(line))
		meta.AppendChild(span)
	}
	return meta
}

func (r *Renderer) body(kind feed.Kind, text string) *html.Node {
	div := markup.Element(atom.Div, attr("class", "card__body"))
	if strings.TrimSpace(text) == "" && kind == feed.KindNotice {
		div.AppendChild(markup.Text(r.t("card.untitled_body")))
		return div
	}
	for _, n := range markup.Expand(text) {
		div.AppendChild(n)
	}
	return div
}

func (r *Renderer) chips(categories []string) *html.Node {
	div := markup.Element(atom.Div, attr("class", "card__chips"))
	for _, c := range categories {
		chip := markup.Element(atom.Span, attr("class", "chip"))
		chip.AppendChild(markup.Text(c))
		div.AppendChild(chip)
	}
	return div
}

// Progress renders a bar for v, which must already be within [0, 100].
func (r *Renderer) Progress(v float64) *html.Node {
	wrapper := markup.Element(atom.Div, attr("class", "progress"))
	track := markup.Element(atom.Div, attr("class", "progress__track"))
	track.AppendChild(markup.Element(atom.Div,
		attr("class", "progress__bar"),
		attr("style", format.Width(v)),
	))
	label := markup.Element(atom.Div, attr("class", "progress__label"))
	label.AppendChild(markup.Text(r.tf("card.progress", format.Percent(v))))
	wrapper.AppendChild(track)
	wrapper.AppendChild(label)
	return wrapper
}

func (r *Renderer) media(base string, rec feed.Record) *html.Node {
	m := ResolveMedia(base, rec.Media)
	src := markup.SafeURL(m.Src)
	if m.Kind == MediaNone || src == "" {
		return nil
	}
	block := markup.Element(atom.Div, attr("class", "card__media card__media--"+m.Kind.String()))
	switch m.Kind {
	case MediaFrame:
		block.AppendChild(markup.Element(atom.Iframe,
			attr("src", src),
			attr("title", rec.Title),
			attr("allow", "accelerometer; autoplay; clipboard-write; encrypted-media; gyroscope; picture-in-picture"),
			attr("allowfullscreen", ""),
			attr("loading", "lazy"),
		))
	case MediaVideo:
		block.AppendChild(markup.Element(atom.Video,
			attr("src", src),
			attr("controls", ""),
			attr("preload", "metadata"),
			attr("onerror", hideMediaBlock),
		))
	default:
		link := markup.Element(atom.A, attr("class", "card__zoom"), attr("href", r.viewerHref(src, rec.Title)))
		link.AppendChild(markup.Element(atom.Img,
			attr("src", src),
			attr("alt", rec.Title),
			attr("loading", "lazy"),
			attr("data-fullsrc", src),
			attr("onerror", hideMediaBlock),
		))
		block.AppendChild(link)
	}
	return block
}

func (r *Renderer) viewerHref(src, alt string) string {
	v := lightbox.New(lightbox.DefaultGeometry)
	v.Open(r.pageRelative(src), alt)
	q := v.Query()
	if r.returnTo != "" {
		q.Set("back", r.returnTo)
	}
	return r.viewerPath + "?" + q.Encode()
}

// pageRelative resolves a relative media path against the page the card is
// shown on, so the viewer loads the same file as the card.
func (r *Renderer) pageRelative(src string) string {
	ref, err := url.Parse(src)
	if err != nil || ref.IsAbs() || strings.HasPrefix(src, "/") {
		return src
	}
	page, err := url.Parse(r.returnTo)
	if err != nil || r.returnTo == "" {
		page = &url.URL{Path: "/"}
	}
	return page.ResolveReference(ref).String()
}

// CategoryOptions renders the filter <option>s: "all" first, then each
// category, marking selected.
func (r *Renderer) CategoryOptions(categories []string, selected string) []*html.Node {
	out := make([]*html.Node, 0, len(categories)+1)
	out = append(out, option("", r.t("filter.all"), selected == ""))
	for _, c := range categories {
		out = append(out, option(c, c, c == selected))
	}
	return out
}

func option(value, label string, selected bool) *html.Node {
	o := markup.Element(atom.Option, attr("value", value))
	if selected {
		o.Attr = append(o.Attr, attr("selected", ""))
	}
	o.AppendChild(markup.Text(label))
	return o
}

// HTML renders nodes for use in a template.
func HTML(nodes ...*html.Node) template.HTML {
	var b strings.Builder
	for _, n := range nodes {
		// strings.Builder never fails a write.
		_ = html.Render(&b, n)
	}
	return template.HTML(b.String())
}

func attr(key, val string) html.Attribute {
	return html.Attribute{Key: key, Val: val}
}

func addClass(n *html.Node, class string) {
	for i, a := range n.Attr {
		if a.Key == "class" {
			n.Attr[i].Val = a.Val + " " + class
			return
		}
	}
	n.Attr = append(n.Attr, attr("class", class))
}
