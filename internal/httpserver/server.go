// Package httpserver assembles the router and the http.Server.
package httpserver

import (
	"io"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"finitefield.org/sheetboard/internal/config"
	"finitefield.org/sheetboard/internal/handlers"
	"finitefield.org/sheetboard/internal/i18n"
	"finitefield.org/sheetboard/internal/middleware"
	"finitefield.org/sheetboard/internal/observability"
)

// Config holds runtime options for the HTTP server.
type Config struct {
	Address  string
	Server   config.ServerConfig
	Logger   *zap.Logger
	Bundle   *i18n.Bundle
	Handlers *handlers.Handlers
	Static   fs.FS
	// NoCache disables asset caching, for development.
	NoCache bool
}

// New constructs the HTTP server with its middleware stack.
func New(cfg Config) *http.Server {
	return &http.Server{
		Addr:              cfg.Address,
		Handler:           Router(cfg),
		ReadTimeout:       orDefault(cfg.Server.ReadTimeout, 10*time.Second),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      orDefault(cfg.Server.WriteTimeout, 30*time.Second),
		IdleTimeout:       orDefault(cfg.Server.IdleTimeout, 60*time.Second),
	}
}

// Router builds the routes.
func Router(cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(observability.InjectLogger(logger))
	router.Use(observability.RequestLogger)
	router.Use(chimw.Recoverer)
	router.Use(chimw.Compress(5))
	router.Use(chimw.Timeout(orDefault(cfg.Server.RequestTimeout, 30*time.Second)))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok")
	})
	if cfg.Static != nil {
		router.Handle("/assets/*", http.StripPrefix("/assets", middleware.AssetsWithCache(cfg.Static, cfg.NoCache)))
	}
	router.Get("/status/loading", cfg.Handlers.Loading)

	router.Group(func(r chi.Router) {
		r.Use(middleware.Locale(cfg.Bundle))
		r.Get("/", cfg.Handlers.Home)
		r.Get("/feeds/{name}", cfg.Handlers.Feed)
		r.Get("/feeds/{name}/latest", cfg.Handlers.Latest)
		r.Get("/view", cfg.Handlers.View)
		r.Get("/links", cfg.Handlers.Links)
		r.Get("/pages/{slug}", cfg.Handlers.PageBySlug)
		r.NotFound(cfg.Handlers.NotFound)
	})
	return router
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
