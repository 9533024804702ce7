// Package handlers serves the board pages: feed lists, the latest-notice
// fragment, the image viewer, the link page and markdown pages.
package handlers

import (
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"finitefield.org/sheetboard/internal/content"
	"finitefield.org/sheetboard/internal/feed"
	"finitefield.org/sheetboard/internal/i18n"
	"finitefield.org/sheetboard/internal/loader"
	"finitefield.org/sheetboard/internal/middleware"
	"finitefield.org/sheetboard/internal/observability"
	"finitefield.org/sheetboard/internal/render"
)

// Deps wires the handlers to the rest of the application.
type Deps struct {
	Bundle   *i18n.Bundle
	Registry *feed.Registry
	Service  *feed.Service
	Tracker  *loader.Tracker
	Pages    *content.Store
	Links    content.LinkList
	Views    *Views
	// LoaderDelay is passed to the client-side indicator, in milliseconds.
	LoaderDelay int
}

// Handlers holds the HTTP handlers.
type Handlers struct {
	deps Deps
}

// New builds Handlers.
func New(deps Deps) *Handlers {
	return &Handlers{deps: deps}
}

// NavItem is one entry of the top navigation.
type NavItem struct {
	Href   string
	Label  string
	Active bool
}

// PageData is the common layout view model.
type PageData struct {
	Title       string
	Lang        string
	Langs       []string
	Path        string
	Nav         []NavItem
	LoaderDelay int
	Status      int

	Home   *HomeView
	Feed   *FeedView
	Viewer *ViewerView
	Links  *LinksView
	Page   *content.Page

	bundle *i18n.Bundle
}

// T translates key in the page language.
func (p PageData) T(key string) string {
	if p.bundle == nil {
		return key
	}
	return p.bundle.T(p.Lang, key)
}

// HomeView lists the feeds and the featured notice.
type HomeView struct {
	Latest      template.HTML
	LatestFeed  string
	Feeds       []feed.Definition
	HasFeatured bool
}

// FeedView is one feed page.
type FeedView struct {
	Name       string
	Title      string
	Kind       feed.Kind
	Cards      template.HTML
	Categories template.HTML
	Query      feed.Query
	Filterable bool
	Failed     bool
	Gated      bool
	Count      int
}

func (h *Handlers) page(r *http.Request, title string) PageData {
	lang := middleware.Lang(r, h.fallback())
	p := PageData{
		Title:       title,
		Lang:        lang,
		Path:        r.URL.Path,
		LoaderDelay: h.deps.LoaderDelay,
		Status:      http.StatusOK,
		bundle:      h.deps.Bundle,
	}
	if h.deps.Bundle != nil {
		p.Langs = h.deps.Bundle.Supported()
	}
	p.Nav = append(p.Nav, NavItem{Href: "/", Label: p.T("nav.home"), Active: r.URL.Path == "/"})
	for _, def := range h.deps.Registry.All() {
		href := "/feeds/" + def.Name
		p.Nav = append(p.Nav, NavItem{Href: href, Label: def.Title, Active: strings.HasPrefix(r.URL.Path, href)})
	}
	if len(h.deps.Links.Visible()) > 0 {
		p.Nav = append(p.Nav, NavItem{Href: "/links", Label: p.T("nav.links"), Active: r.URL.Path == "/links"})
	}
	return p
}

func (h *Handlers) fallback() string {
	if h.deps.Bundle == nil {
		return i18n.Indonesian
	}
	return h.deps.Bundle.Fallback()
}

func (h *Handlers) renderer(r *http.Request, lang string) *render.Renderer {
	return render.New(h.deps.Bundle, lang, render.WithReturnTo(r.URL.RequestURI()))
}

func (h *Handlers) render(w http.ResponseWriter, r *http.Request, page string, data PageData) {
	if err := h.deps.Views.Render(w, data.Status, page, data); err != nil {
		observability.FromContext(r.Context()).Error("render page",
			zap.String("page", page),
			zap.Error(err),
		)
	}
}

// Home renders the landing page with the featured notice.
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	data := h.page(r, "")
	data.Title = data.T("site.title")
	view := &HomeView{Feeds: h.deps.Registry.All()}
	if def, ok := h.deps.Registry.FirstOfKind(feed.KindNotice); ok {
		view.HasFeatured = true
		view.LatestFeed = def.Name
		node, _ := h.latest(r, data.Lang, def)
		view.Latest = render.HTML(node)
	}
	data.Home = view
	h.render(w, r, "home", data)
}

// Feed renders every visible record of a feed, filtered by ?q= and
// ?category=.
func (h *Handlers) Feed(w http.ResponseWriter, r *http.Request) {
	def, err := h.deps.Registry.Lookup(chi.URLParam(r, "name"))
	if err != nil {
		h.NotFound(w, r)
		return
	}
	logger := observability.FromContext(r.Context()).With(zap.String("feed", def.Name))
	data := h.page(r, def.Title)
	rnd := h.renderer(r, data.Lang)
	view := &FeedView{
		Name:       def.Name,
		Title:      def.Title,
		Kind:       def.Kind,
		Filterable: def.Kind == feed.KindMaterial,
		Query: feed.Query{
			Search:   strings.TrimSpace(r.URL.Query().Get("q")),
			Category: strings.TrimSpace(r.URL.Query().Get("category")),
		},
	}
	data.Feed = view

	snap, err := h.deps.Service.Load(r.Context(), def)
	if err != nil {
		logger.Warn("feed unavailable", zap.Error(err))
		view.Failed = true
		view.Cards = render.HTML(rnd.Error(def.Title))
		h.render(w, r, "feed", data)
		return
	}

	if snap.GateActive && !h.unlocked(w, r, def, logger) {
		view.Gated = true
		h.render(w, r, "feed", data)
		return
	}

	records := snap.List()
	if view.Filterable {
		view.Categories = render.HTML(rnd.CategoryOptions(feed.Categories(records), view.Query.Category)...)
	}
	records = view.Query.Apply(records)
	view.Count = len(records)
	nodes, err := rnd.Guard(def.Title, func() []*html.Node { return rnd.List(snap, records) })
	if err != nil {
		logger.Error("render feed", zap.Error(err))
		view.Failed = true
		view.Count = 0
	}
	view.Cards = render.HTML(nodes...)
	h.render(w, r, "feed", data)
}

// Latest writes the featured card of a feed as an HTML fragment.
func (h *Handlers) Latest(w http.ResponseWriter, r *http.Request) {
	def, err := h.deps.Registry.Lookup(chi.URLParam(r, "name"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	lang := middleware.Lang(r, h.fallback())
	node, ok := h.latest(r, lang, def)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if !ok {
		w.WriteHeader(http.StatusBadGateway)
	}
	_, _ = w.Write([]byte(render.HTML(node)))
}

// latest loads def and renders its featured record; ok is false when the
// feed could not be loaded.
func (h *Handlers) latest(r *http.Request, lang string, def feed.Definition) (*html.Node, bool) {
	rnd := h.renderer(r, lang)
	snap, err := h.deps.Service.Load(r.Context(), def)
	if err != nil {
		observability.FromContext(r.Context()).Warn("latest unavailable",
			zap.String("feed", def.Name),
			zap.Error(err),
		)
		return rnd.Error(def.Title), false
	}
	nodes, err := rnd.Guard(def.Title, func() []*html.Node { return []*html.Node{rnd.Latest(snap)} })
	if err != nil {
		observability.FromContext(r.Context()).Error("render latest", zap.String("feed", def.Name), zap.Error(err))
		return nodes[0], false
	}
	return nodes[0], true
}

func gateCookie(name string) string { return "gate_" + name }

// unlocked reports whether the browser may see a gated feed. A valid ?key=
// is remembered in a cookie for the session.
func (h *Handlers) unlocked(w http.ResponseWriter, r *http.Request, def feed.Definition, logger *zap.Logger) bool {
	if def.Gate == nil {
		return false
	}
	if key := r.URL.Query().Get("key"); key != "" {
		if def.Gate.Unlocks(key) {
			http.SetCookie(w, &http.Cookie{
				Name:     gateCookie(def.Name),
				Value:    "1",
				Path:     "/feeds/" + def.Name,
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
			return true
		}
		logger.Warn("gate key rejected")
		return false
	}
	c, err := r.Cookie(gateCookie(def.Name))
	return err == nil && c.Value == "1"
}

// NotFound renders the 404 page.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	data := h.page(r, "")
	data.Title = data.T("error.not_found")
	data.Status = http.StatusNotFound
	h.render(w, r, "notfound", data)
}

// PageBySlug renders a markdown page.
func (h *Handlers) PageBySlug(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	data := h.page(r, "")
	if h.deps.Pages == nil {
		h.NotFound(w, r)
		return
	}
	pg, err := h.deps.Pages.Page(data.Lang, slug)
	if errors.Is(err, content.ErrNotFound) {
		h.NotFound(w, r)
		return
	}
	if err != nil {
		observability.FromContext(r.Context()).Error("load page", zap.String("slug", slug), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	data.Title = pg.Title
	data.Page = &pg
	h.render(w, r, "page", data)
}

// safeBack accepts only same-site absolute paths.
func safeBack(raw string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return "/"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host != "" || u.Scheme != "" {
		return "/"
	}
	return raw
}
