package middleware

import (
	"context"
	"net/http"
	"strings"

	"finitefield.org/sheetboard/internal/i18n"
)

// LangCookie remembers an explicit ?hl= choice.
const LangCookie = "hl"

type langKey struct{}

// Locale resolves the request language: ?hl= (remembered in a cookie), then
// the cookie, then Accept-Language. Unsupported values are ignored.
func Locale(bundle *i18n.Bundle) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lang := ""
			if q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("hl"))); q != "" && bundle.IsSupported(q) {
				lang = q
				http.SetCookie(w, &http.Cookie{Name: LangCookie, Value: q, Path: "/", SameSite: http.SameSiteLaxMode})
			} else if c, err := r.Cookie(LangCookie); err == nil && bundle.IsSupported(strings.ToLower(c.Value)) {
				lang = strings.ToLower(c.Value)
			} else {
				lang = bundle.Resolve(r.Header.Get("Accept-Language"))
			}
			w.Header().Set("Content-Language", lang)
			w.Header().Add("Vary", "Accept-Language")
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), langKey{}, lang)))
		})
	}
}

// Lang returns the language chosen by Locale, or fallback when the
// middleware did not run.
func Lang(r *http.Request, fallback string) string {
	if v, ok := r.Context().Value(langKey{}).(string); ok && v != "" {
		return v
	}
	return fallback
}
