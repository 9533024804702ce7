package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"finitefield.org/sheetboard/internal/config"
	"finitefield.org/sheetboard/internal/content"
	"finitefield.org/sheetboard/internal/feed"
	"finitefield.org/sheetboard/internal/handlers"
	"finitefield.org/sheetboard/internal/httpserver"
	"finitefield.org/sheetboard/internal/i18n"
	"finitefield.org/sheetboard/internal/loader"
	"finitefield.org/sheetboard/internal/observability"
	"finitefield.org/sheetboard/public"
)

const devTemplatesDir = "public/templates"

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil {
		logger.Error("web server stopped", zap.Error(err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	srv, err := build(cfg, logger)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Info("web listening",
		zap.String("addr", srv.Addr),
		zap.Bool("dev", cfg.Dev),
	)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("web server shut down")
	return nil
}

// build wires configuration into a ready-to-serve http.Server.
func build(cfg config.Config, logger *zap.Logger) (*http.Server, error) {
	bundle, err := i18n.Default()
	if err != nil {
		return nil, fmt.Errorf("load locales: %w", err)
	}

	feeds, err := config.LoadFeeds(cfg.Feeds.File)
	if err != nil {
		return nil, err
	}
	defs, err := feeds.Definitions(cfg.Feeds.GateKeys...)
	if err != nil {
		return nil, err
	}

	tracker := loader.New(
		loader.WithShowDelay(cfg.Feeds.LoaderDelay),
		loader.OnChange(func(visible bool) {
			logger.Debug("loading indicator", zap.Bool("visible", visible))
		}),
	)
	service := feed.NewService(feed.NewHTTPFetcher(cfg.Feeds.FetchTimeout),
		feed.WithIndicator(tracker),
		feed.WithLogger(logger.Named("feed")),
		feed.WithLocation(cfg.Feeds.Location),
	)

	templates, err := public.TemplatesFS()
	if err != nil {
		return nil, fmt.Errorf("embed templates: %w", err)
	}
	if cfg.Dev {
		templates = os.DirFS(devTemplatesDir)
	}
	views, err := handlers.NewViews(templates, cfg.Dev)
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	static, err := public.StaticFS()
	if err != nil {
		return nil, fmt.Errorf("embed static: %w", err)
	}

	h := handlers.New(handlers.Deps{
		Bundle:      bundle,
		Registry:    feed.NewRegistry(defs...),
		Service:     service,
		Tracker:     tracker,
		Pages:       content.NewStore(os.DirFS(cfg.Content.Dir), i18n.Indonesian, i18n.English),
		Links:       feeds.Links,
		Views:       views,
		LoaderDelay: int(cfg.Feeds.LoaderDelay.Milliseconds()),
	})

	logger.Info("feeds registered", zap.Int("count", len(defs)))
	return httpserver.New(httpserver.Config{
		Address:  ":" + cfg.Server.Port,
		Server:   cfg.Server,
		Logger:   logger,
		Bundle:   bundle,
		Handlers: h,
		Static:   static,
		NoCache:  cfg.Dev,
	}), nil
}
