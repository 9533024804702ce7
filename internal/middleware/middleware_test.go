package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	"finitefield.org/sheetboard/internal/i18n"
)

func TestAssetsWithCache(t *testing.T) {
	t.Parallel()

	h := AssetsWithCache(fstest.MapFS{
		"css/app.css": {Data: []byte("body{}")},
	}, false)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/css/app.css", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "body{}", rec.Body.String())
	require.Contains(t, rec.Header().Get("Cache-Control"), "max-age=604800")
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(http.MethodGet, "/css/app.css", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotModified, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/css/", nil))
	require.Equal(t, http.StatusNotFound, rec.Code, "no directory listings")
}

func TestAssetsNoCache(t *testing.T) {
	t.Parallel()

	h := AssetsWithCache(fstest.MapFS{"a.js": {Data: []byte("1")}}, true)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/a.js", nil))
	require.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
}

func TestLocale(t *testing.T) {
	t.Parallel()

	bundle, err := i18n.Default()
	require.NoError(t, err)
	var got string
	h := Locale(bundle)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = Lang(r, "xx")
	}))

	serve := func(req *http.Request) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	req := httptest.NewRequest(http.MethodGet, "/?hl=EN", nil)
	rec := serve(req)
	require.Equal(t, "en", got)
	require.Equal(t, "en", rec.Header().Get("Content-Language"))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, "en", cookies[0].Value)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: LangCookie, Value: "en"})
	req.Header.Set("Accept-Language", "id")
	serve(req)
	require.Equal(t, "en", got, "cookie beats Accept-Language")

	req = httptest.NewRequest(http.MethodGet, "/?hl=fr", nil)
	req.Header.Set("Accept-Language", "en-GB,en;q=0.9")
	rec = serve(req)
	require.Equal(t, "en", got, "unsupported hl is ignored")
	require.Empty(t, rec.Result().Cookies())

	serve(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, "id", got)

	require.Equal(t, "xx", Lang(httptest.NewRequest(http.MethodGet, "/", nil), "xx"))
}
