package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"finitefield.org/sheetboard/internal/content"
	"finitefield.org/sheetboard/internal/feed"
	"finitefield.org/sheetboard/internal/handlers"
	"finitefield.org/sheetboard/internal/i18n"
	"finitefield.org/sheetboard/internal/loader"
	"finitefield.org/sheetboard/internal/testutil"
	"finitefield.org/sheetboard/public"
)

const (
	noticeURL   = "https://sheet.test/notices.csv"
	materialURL = "https://sheet.test/teh.csv"
)

const noticeCSV = "title,description,imageFlag,imagePath,progressFlag,progressValue,start,end,hide,pin\n" +
	"Rapat,Agenda ?[R-01]?,,,I,50,01/05/2025,30/06/2025,,\n" +
	"Libur,Kantor tutup,,,,,01/01/2025,31/01/2025,,\n"

const materialCSV = "title,materi,kategori,evidence,publish,download,hide,pin\n" +
	"Modul Dasar,Pengantar,Dasar,,01/02/2025,https://files.test/a.pdf,,\n" +
	"Modul Lanjut,Studi kasus,Lanjut,foto.png,01/03/2025,,,I\n"

type fakeSheets struct {
	bodies map[string]string
	fail   atomic.Bool
}

func (f *fakeSheets) Fetch(_ context.Context, rawURL string) (string, error) {
	if f.fail.Load() {
		return "", errors.New("network down")
	}
	body, ok := f.bodies[rawURL]
	if !ok {
		return "", &feed.FetchError{URL: rawURL, Status: http.StatusNotFound}
	}
	return body, nil
}

type testServer struct {
	handler http.Handler
	sheets  *fakeSheets
	logs    *observer.ObservedLogs
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, nil)
}

// newTestServerWith lets a test adjust the feed definitions before the
// server is built.
func newTestServerWith(t *testing.T, adjust func(defs []feed.Definition)) *testServer {
	t.Helper()

	bundle, err := i18n.Default()
	require.NoError(t, err)

	templates, err := public.TemplatesFS()
	require.NoError(t, err)
	views, err := handlers.NewViews(templates, false)
	require.NoError(t, err)

	static, err := public.StaticFS()
	require.NoError(t, err)

	gate := feed.DefaultGate
	gate.BypassKeys = []string{"172119"}
	defs := []feed.Definition{
		{Name: "notices", Title: "Pengumuman", Kind: feed.KindNotice, URL: noticeURL, Layout: feed.NoticeLayout, Policy: feed.NoticePolicy},
		{Name: "teh", Title: "TEH", Kind: feed.KindMaterial, URL: materialURL, MediaBase: "https://cdn.test/teh/", Layout: feed.MaterialLayout, Policy: feed.MaterialPolicy, Gate: &gate},
	}

	if adjust != nil {
		adjust(defs)
	}

	sheets := &fakeSheets{bodies: map[string]string{noticeURL: noticeCSV, materialURL: materialCSV}}
	today := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	tracker := loader.New(loader.WithShowDelay(0))
	service := feed.NewService(sheets,
		feed.WithIndicator(tracker),
		feed.WithClock(func() time.Time { return today }),
		feed.WithLocation(time.UTC),
	)

	pages := content.NewStore(fstest.MapFS{
		"id/tentang.md": {Data: []byte("---\ntitle: Tentang Kami\n---\nHalo **dunia**\n")},
	}, i18n.Indonesian, i18n.English)

	core, logs := observer.New(zapcore.DebugLevel)
	h := handlers.New(handlers.Deps{
		Bundle:   bundle,
		Registry: feed.NewRegistry(defs...),
		Service:  service,
		Tracker:  tracker,
		Pages:    pages,
		Links: content.LinkList{Title: "Tautan", Links: []content.Link{
			{Label: "Situs", URL: "https://example.org"},
			{Label: "Kosong"},
		}},
		Views:       views,
		LoaderDelay: 150,
	})

	return &testServer{
		handler: Router(Config{Logger: zap.New(core), Bundle: bundle, Handlers: h, Static: static}),
		sheets:  sheets,
		logs:    logs,
	}
}

func (s *testServer) get(t *testing.T, target string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("Accept-Language", "id")
	for _, m := range mutate {
		m(req)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	rec := srv.get(t, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", strings.TrimSpace(rec.Body.String()))
}

func TestNoticeFeedPage(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	rec := srv.get(t, "/feeds/notices")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	doc := testutil.ParseHTML(t, rec.Body.Bytes())
	cards := doc.Find(".feed-list article.card")
	require.Equal(t, 1, cards.Length(), "expired notice is not listed")
	require.Equal(t, "Rapat", strings.TrimSpace(cards.Find(".card__title").Text()))
	require.Equal(t, "R-01", cards.Find("span.cc-copy").AttrOr("data-copy", ""))
	require.Equal(t, "width:50%", cards.Find(".progress__bar").AttrOr("style", ""))
	require.Equal(t, 0, doc.Find(".feed-filter").Length(), "notices have no filter")
	require.Equal(t, "id", doc.Find("html").AttrOr("lang", ""))
}

func TestMaterialFeedSearchAndCategory(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	doc := testutil.ParseHTML(t, srv.get(t, "/feeds/teh").Body.Bytes())
	titles := doc.Find(".card__title").Map(func(_ int, s *goquery.Selection) string { return strings.TrimSpace(s.Text()) })
	require.Equal(t, []string{"Modul Lanjut", "Modul Dasar"}, titles, "pinned first")
	require.Equal(t, 3, doc.Find(".feed-filter select option").Length())
	require.Equal(t, "https://cdn.test/teh/foto.png", doc.Find(".card__media img").AttrOr("src", ""))

	doc = testutil.ParseHTML(t, srv.get(t, "/feeds/teh?q=studi").Body.Bytes())
	require.Equal(t, 1, doc.Find("article.card").Length())
	require.Equal(t, "studi", doc.Find(`input[name="q"]`).AttrOr("value", ""))

	doc = testutil.ParseHTML(t, srv.get(t, "/feeds/teh?category=Dasar").Body.Bytes())
	require.Equal(t, "Modul Dasar", strings.TrimSpace(doc.Find(".card__title").Text()))
	_, selected := doc.Find(`option[value="Dasar"]`).Attr("selected")
	require.True(t, selected)

	doc = testutil.ParseHTML(t, srv.get(t, "/feeds/teh?q=nothing-matches").Body.Bytes())
	require.Equal(t, 0, doc.Find("article.card").Length())
	require.Equal(t, "Belum ada materi yang sesuai filter.", strings.TrimSpace(doc.Find(".feed-empty").Text()))
}

func TestFeedFetchFailureShowsSingleError(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	srv.sheets.fail.Store(true)

	rec := srv.get(t, "/feeds/teh")
	require.Equal(t, http.StatusOK, rec.Code)

	doc := testutil.ParseHTML(t, rec.Body.Bytes())
	require.Equal(t, 1, doc.Find(".feed-error").Length())
	require.Equal(t, 0, doc.Find("article.card").Length())
	require.Equal(t, 0, doc.Find(".feed-filter").Length())
	require.Equal(t, "Gagal memuat data TEH. Silakan refresh halaman.", strings.TrimSpace(doc.Find(".feed-error").Text()))
}

func TestUnknownFeedIsNotFound(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	rec := srv.get(t, "/feeds/nope")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "404")

	rec = srv.get(t, "/feeds/nope/latest")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.get(t, "/does/not/exist")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLatestFragment(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	rec := srv.get(t, "/feeds/notices/latest")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	doc := testutil.ParseHTML(t, rec.Body.Bytes())
	require.Equal(t, 0, doc.Find("header.site-header").Length(), "fragment has no layout")
	require.Equal(t, "Rapat", strings.TrimSpace(doc.Find("article.card--featured .card__title").Text()))

	srv.sheets.fail.Store(true)
	rec = srv.get(t, "/feeds/notices/latest")
	require.Equal(t, http.StatusBadGateway, rec.Code)
	doc = testutil.ParseHTML(t, rec.Body.Bytes())
	require.Equal(t, 1, doc.Find(".feed-error").Length())
	require.Equal(t, 0, doc.Find("article.card").Length())
}

func TestHomeShowsLatestAndFeeds(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	doc := testutil.ParseHTML(t, srv.get(t, "/").Body.Bytes())
	require.Equal(t, "Rapat", strings.TrimSpace(doc.Find(".latest-slot .card__title").Text()))
	require.Equal(t, 2, doc.Find(".feed-links li").Length())
	require.Equal(t, 1, doc.Find(`nav a[href="/links"]`).Length())
}

func TestGateBlocksUntilKey(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	srv.sheets.bodies = map[string]string{
		noticeURL:   noticeCSV,
		materialURL: "title,materi,kategori,evidence,publish,download,hide,pin,2Z\nModul,isi,,,01/02/2025,,,,I\n",
	}

	doc := testutil.ParseHTML(t, srv.get(t, "/feeds/teh").Body.Bytes())
	require.Equal(t, 1, doc.Find(".gate").Length())
	require.Equal(t, 0, doc.Find("article.card").Length())

	rec := srv.get(t, "/feeds/teh?key=wrong")
	doc = testutil.ParseHTML(t, rec.Body.Bytes())
	require.Equal(t, 1, doc.Find(".gate").Length())
	require.Equal(t, 1, srv.logs.FilterMessage("gate key rejected").Len())

	rec = srv.get(t, "/feeds/teh?key=172119")
	doc = testutil.ParseHTML(t, rec.Body.Bytes())
	require.Equal(t, 0, doc.Find(".gate").Length())
	require.Equal(t, 1, doc.Find("article.card").Length())

	var unlock *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "gate_teh" {
			unlock = c
		}
	}
	require.NotNil(t, unlock)

	doc = testutil.ParseHTML(t, srv.get(t, "/feeds/teh", func(r *http.Request) { r.AddCookie(unlock) }).Body.Bytes())
	require.Equal(t, 1, doc.Find("article.card").Length(), "cookie keeps the feed unlocked")
}

func TestViewer(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	rec := srv.get(t, "/view?back=/feeds/teh")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/feeds/teh", rec.Header().Get("Location"))

	rec = srv.get(t, "/view?src=javascript:alert(1)&back=//evil.test")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/", rec.Header().Get("Location"))

	q := url.Values{"src": {"https://cdn.test/a.png"}, "alt": {"Foto"}, "back": {"/feeds/teh"}}
	rec = srv.get(t, "/view?"+q.Encode())
	require.Equal(t, http.StatusOK, rec.Code)

	doc := testutil.ParseHTML(t, rec.Body.Bytes())
	img := doc.Find("img.viewer__image")
	require.Equal(t, "https://cdn.test/a.png", img.AttrOr("src", ""))
	require.Equal(t, "transform: translate(0px, 0px) scale(1)", img.AttrOr("style", ""))
	require.Equal(t, "/feeds/teh", doc.Find("a.viewer__close").AttrOr("href", ""))

	zoomIn, ok := doc.Find(`a[aria-label="Perbesar"]`).Attr("href")
	require.True(t, ok)
	u, err := url.Parse(zoomIn)
	require.NoError(t, err)
	require.Equal(t, "1.12", u.Query().Get("s"))
	require.Equal(t, "/feeds/teh", u.Query().Get("back"))

	rec = srv.get(t, "/view?"+u.RawQuery)
	doc = testutil.ParseHTML(t, rec.Body.Bytes())
	require.True(t, doc.Find("img.viewer__image").HasClass("is-zoomed"))
	require.Equal(t, "1.12x", strings.TrimSpace(doc.Find(".viewer__scale").Text()))
}

func TestViewerOpensCardImageForRelativeMediaBase(t *testing.T) {
	t.Parallel()

	srv := newTestServerWith(t, func(defs []feed.Definition) {
		defs[1].MediaBase = "media/"
	})
	page := "http://board.test/feeds/teh"
	doc := testutil.ParseHTML(t, srv.get(t, page).Body.Bytes())
	card := doc.Find("article.card").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Find("a.card__zoom").Length() > 0
	})
	require.Equal(t, 1, card.Length())

	base, err := url.Parse(page)
	require.NoError(t, err)
	imgRef, err := url.Parse(card.Find("a.card__zoom img").AttrOr("src", ""))
	require.NoError(t, err)
	cardImage := base.ResolveReference(imgRef).String()
	require.Equal(t, "http://board.test/feeds/media/foto.png", cardImage)

	viewerRef, err := url.Parse(card.Find("a.card__zoom").AttrOr("href", ""))
	require.NoError(t, err)
	viewerPage := base.ResolveReference(viewerRef)
	rec := srv.get(t, viewerPage.String())
	require.Equal(t, http.StatusOK, rec.Code)

	viewerDoc := testutil.ParseHTML(t, rec.Body.Bytes())
	viewerImgRef, err := url.Parse(viewerDoc.Find("img.viewer__image").AttrOr("src", ""))
	require.NoError(t, err)
	require.Equal(t, cardImage, viewerPage.ResolveReference(viewerImgRef).String())
}

func TestLinksPage(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	doc := testutil.ParseHTML(t, srv.get(t, "/links").Body.Bytes())
	links := doc.Find("a.link-btn")
	require.Equal(t, 1, links.Length(), "links without a URL are dropped")
	require.Equal(t, "https://example.org", links.AttrOr("href", ""))
	require.Equal(t, "noopener noreferrer", links.AttrOr("rel", ""))
	require.Contains(t, links.Find("img").AttrOr("src", ""), "domain=example.org")
}

func TestMarkdownPage(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	rec := srv.get(t, "/pages/tentang?hl=en")
	require.Equal(t, http.StatusOK, rec.Code, "falls back to the Indonesian page")
	doc := testutil.ParseHTML(t, rec.Body.Bytes())
	require.Equal(t, "Tentang Kami", strings.TrimSpace(doc.Find("article.page h1").Text()))
	require.Equal(t, "dunia", doc.Find(".page__body strong").Text())
	require.Equal(t, "en", doc.Find("html").AttrOr("lang", ""))

	require.Equal(t, http.StatusNotFound, srv.get(t, "/pages/missing").Code)
}

func TestLanguageSwitch(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	rec := srv.get(t, "/feeds/notices?hl=en")
	doc := testutil.ParseHTML(t, rec.Body.Bytes())
	require.Equal(t, "en", rec.Header().Get("Content-Language"))
	require.Contains(t, doc.Find(".card__meta").Text(), "Starts: ")
}

func TestLoadingStatus(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	rec := srv.get(t, "/status/loading")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var state loader.State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	require.Equal(t, loader.State{}, state)
}

func TestAssets(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	rec := srv.get(t, "/assets/js/copy.js")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("ETag"))
	require.Contains(t, rec.Body.String(), "data-copy")

	require.Equal(t, http.StatusNotFound, srv.get(t, "/assets/js/").Code)
}
