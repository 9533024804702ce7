package handlers

import (
	"encoding/json"
	"html/template"
	"net/http"

	"finitefield.org/sheetboard/internal/content"
	"finitefield.org/sheetboard/internal/format"
	"finitefield.org/sheetboard/internal/lightbox"
)

// panStep is how far one pan control moves the image, in pixels.
const panStep = 120

// ViewerView is the image viewer overlay. Every control is a link to the
// next viewer state.
type ViewerView struct {
	Src    string
	Alt    string
	Style  template.CSS
	Scale  string
	Zoomed bool
	Back   string

	ZoomIn, ZoomOut, Toggle, Reset    string
	PanLeft, PanRight, PanUp, PanDown string
	CanZoomIn, CanZoomOut, CanPan     bool
}

func viewerHref(v lightbox.Viewer, back string) string {
	q := v.Query()
	q.Set("back", back)
	return "/view?" + q.Encode()
}

// View renders the image viewer for the state in the query string. A closed
// or unusable state returns to the page that opened it.
func (h *Handlers) View(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	back := safeBack(q.Get("back"))
	v := lightbox.FromQuery(q)
	if !v.Visible {
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	c := v.Controls(panStep)
	data := h.page(r, v.Alt)
	if data.Title == "" {
		data.Title = data.T("site.title")
	}
	data.Viewer = &ViewerView{
		Src:        v.Src,
		Alt:        v.Alt,
		Style:      template.CSS("transform: " + v.Transform()),
		Scale:      format.Scale(v.Scale),
		Zoomed:     v.Zoomed(),
		Back:       back,
		ZoomIn:     viewerHref(c.ZoomIn, back),
		ZoomOut:    viewerHref(c.ZoomOut, back),
		Toggle:     viewerHref(c.Toggle, back),
		Reset:      viewerHref(c.Reset, back),
		PanLeft:    viewerHref(c.PanLeft, back),
		PanRight:   viewerHref(c.PanRight, back),
		PanUp:      viewerHref(c.PanUp, back),
		PanDown:    viewerHref(c.PanDown, back),
		CanZoomIn:  c.CanZoomIn,
		CanZoomOut: c.CanZoomOut,
		CanPan:     c.CanPan,
	}
	h.render(w, r, "viewer", data)
}

// LinksView is the link page.
type LinksView struct {
	Title string
	Links []LinkButton
}

// LinkButton is one rendered link.
type LinkButton struct {
	Text    string
	URL     string
	Favicon string
}

// Links renders the configured link buttons.
func (h *Handlers) Links(w http.ResponseWriter, r *http.Request) {
	data := h.page(r, "")
	list := h.deps.Links
	view := &LinksView{Title: list.Title}
	if view.Title == "" {
		view.Title = data.T("nav.links")
	}
	for _, l := range list.Visible() {
		view.Links = append(view.Links, linkButton(l))
	}
	data.Title = view.Title
	data.Links = view
	h.render(w, r, "links", data)
}

func linkButton(l content.Link) LinkButton {
	return LinkButton{Text: l.Text(), URL: l.URL, Favicon: l.FaviconURL()}
}

// Loading reports the loading indicator state as JSON.
func (h *Handlers) Loading(w http.ResponseWriter, r *http.Request) {
	var state any = struct{}{}
	if h.deps.Tracker != nil {
		state = h.deps.Tracker.State()
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(state)
}
