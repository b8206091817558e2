// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"compress/gzip"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/microcosm-cc/bluemonday"

	"github.com/olegiv/sitecms/internal/cache"
	"github.com/olegiv/sitecms/internal/config"
	"github.com/olegiv/sitecms/internal/docstore"
	"github.com/olegiv/sitecms/internal/github"
	"github.com/olegiv/sitecms/internal/handler"
	"github.com/olegiv/sitecms/internal/handler/api"
	"github.com/olegiv/sitecms/internal/logging"
	"github.com/olegiv/sitecms/internal/metrics"
	"github.com/olegiv/sitecms/internal/middleware"
	"github.com/olegiv/sitecms/internal/scheduler"
	"github.com/olegiv/sitecms/internal/version"
	"github.com/olegiv/sitecms/internal/webhook"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

const (
	warmJobPrefix     = "cache-warm:"
	rateLimitMaxIPs   = 10000
	compressMinLength = 1024
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "sitecms - JSON content API backed by a GitHub repository\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  GITHUB_OWNER, GITHUB_REPO, GITHUB_TOKEN   Content repository (required)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  GITHUB_BRANCH              Branch to read and commit (default: main)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SITECMS_CONTENT_DIR        Directory of the JSON documents (default: content)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SITECMS_SERVER_PORT        Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SITECMS_ENV                Environment: development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SITECMS_CACHE_TTL          List cache freshness window (default: 30s)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SITECMS_REDIS_URL          Redis URL for a shared cache (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SITECMS_WEBHOOK_URLS       Comma-separated change notification endpoints (optional)\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	info := version.New(appVersion, appGitCommit, appBuildTime)
	if *showVersion {
		_, _ = fmt.Println(info.String())
		os.Exit(0)
	}

	if err := run(info); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run(info version.Info) error {
	// Load .env file if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logLevel := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	// Warnings and errors are also counted in the metrics registry
	m := metrics.New()
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(logging.NewEventHandler(textHandler, m))
	slog.SetDefault(logger)

	repoConfigured := true
	if err := cfg.GitHub.Validate(); err != nil {
		repoConfigured = false
		slog.Warn("content repository not configured, API requests will fail until it is", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cache backend shared by the collection lists and sections
	cacheResult := cache.NewCache(cache.Config{
		RedisURL:        cfg.RedisURL,
		Prefix:          cfg.CachePrefix,
		DefaultTTL:      cfg.CacheTTL,
		MaxItems:        cfg.CacheMaxSize,
		CleanupInterval: time.Minute,
	})
	defer func() {
		if err := cacheResult.Cache.Close(); err != nil {
			slog.Error("error closing cache", "error", err)
		}
	}()
	if cacheResult.FallbackErr != nil {
		slog.Warn("cache initialized", "backend", cacheResult.Type, "note", "Redis unavailable, using fallback", "error", cacheResult.FallbackErr)
	} else {
		slog.Info("cache initialized", "backend", cacheResult.Type, "ttl", cfg.CacheTTL)
	}

	if sp, ok := cacheResult.Cache.(cache.StatsProvider); ok {
		m.RegisterCacheStats(cacheResult.Type, sp)
	}

	repo := github.NewClient(cfg.GitHub, &http.Client{Timeout: cfg.GitHub.Timeout})

	opts := []docstore.Option{
		docstore.WithLogger(logger),
		docstore.WithObserver(m),
		docstore.WithCache(docstore.NewListCache(cacheResult.Cache, cfg.CacheTTL)),
	}
	if cfg.SanitizeHTML {
		opts = append(opts, docstore.WithSanitizer(bluemonday.UGCPolicy()))
	}
	if cfg.WebhooksEnabled() {
		wcfg := webhook.DefaultConfig()
		wcfg.URLs = cfg.WebhookURLs
		wcfg.Secret = cfg.WebhookSecret
		dispatcher := webhook.NewDispatcher(logger, wcfg)
		dispatcher.Start(ctx)
		defer dispatcher.Stop()
		opts = append(opts, docstore.WithNotifier(dispatcher))
		slog.Info("webhook dispatcher initialized", "endpoints", len(cfg.WebhookURLs))
	}

	collections := docstore.Collections(cfg.ContentDir)
	stores := make([]*docstore.Store, 0, len(collections))
	for _, coll := range collections {
		stores = append(stores, docstore.New(repo, coll, opts...))
	}
	sections := docstore.NewSectionStore(repo, cfg.ContentDir, cfg.Sections, cacheResult.Cache, cfg.CacheTTL, opts...)

	// Periodic cache warm-up keeps list reads off the GitHub API
	sched := scheduler.New(logger)
	sched.OnError = func(job string, _ error) {
		if name, ok := strings.CutPrefix(job, warmJobPrefix); ok {
			m.WarmFailed(name)
		}
	}
	if repoConfigured && cfg.CacheWarmSchedule != "" {
		for _, s := range stores {
			job := scheduler.Job{
				Name:    warmJobPrefix + s.Collection().Name,
				Timeout: cfg.GitHub.Timeout,
				Run:     s.Warm,
			}
			if err := sched.Add(cfg.CacheWarmSchedule, job); err != nil {
				return fmt.Errorf("scheduling cache warm-up: %w", err)
			}
			go func() { _ = sched.RunNow(job) }()
		}
	}
	sched.Start()
	defer sched.Stop()

	rateLimiter := middleware.NewGlobalRateLimiter(cfg.APIRate, cfg.APIBurst)
	rateLimiter.StartCleanup(ctx, time.Minute, rateLimitMaxIPs)

	apiHandler := api.NewHandler(stores, sections, info, logger)
	healthHandler := handler.NewHealthHandler(info, map[string]handler.CheckFunc{
		"repository": func(context.Context) error { return cfg.GitHub.Validate() },
		"cache": func(ctx context.Context) error {
			if p, ok := cacheResult.Cache.(interface{ Ping(context.Context) error }); ok {
				return p.Ping(ctx)
			}
			return nil
		},
	})

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.StripTrailingSlash)
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(cfg.IsDevelopment())))
	r.Use(m.Middleware)
	r.Use(chimw.GetHead)

	r.Handle("/metrics", m.Handler())
	r.Get("/health", healthHandler.Health)
	r.Get("/health/live", healthHandler.Liveness)
	r.Get("/health/ready", healthHandler.Readiness)
	r.Route("/api", func(r chi.Router) {
		r.Use(rateLimiter.Middleware())
		r.Use(middleware.CompressJSON(gzip.DefaultCompression, compressMinLength))
		apiHandler.Routes(r)
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		api.WriteNotFound(w, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		api.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed", nil)
	})

	// No per-request deadline: a mutation is one GitHub read and one
	// conditional write, each bounded by the client timeout.
	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      2*cfg.GitHub.Timeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env, "version", info.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
