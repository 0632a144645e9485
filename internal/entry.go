// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/strand/internal/api"
	"github.com/starford/strand/internal/backup"
	"github.com/starford/strand/internal/contentservice"
	"github.com/starford/strand/internal/index"
	"github.com/starford/strand/internal/mcpserver"
	"github.com/starford/strand/internal/metrics"
	"github.com/starford/strand/internal/sse"
	"github.com/starford/strand/internal/storage"
	"github.com/starford/strand/internal/vcs"
	"github.com/starford/strand/internal/watch"
)

// runtime is the wiring shared by the server and the one-shot commands.
type runtime struct {
	cfg    *Config
	logger *slog.Logger
	store  *storage.FS
	db     *index.DB
	svc    *contentservice.Service
}

func setup(opts []Option, extra ...contentservice.Option) (*runtime, error) {
	app := &application{logOutput: os.Stdout}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("content_root", cfg.Content.Root),
		slog.String("backup_dir", cfg.Content.BackupDir),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Bool("git_enabled", cfg.Git.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure content directory exists.
	if err := os.MkdirAll(cfg.Content.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create content dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Content.Root, cfg.Content.BackupDir)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	recorder := vcs.NewRecorder(vcs.Config{
		Enabled: cfg.Git.Enabled,
		RepoDir: cfg.Git.RepoDir,
		Paths:   store.Root(),
		Timeout: cfg.Git.Timeout,
	}, logger)

	svcOpts := append([]contentservice.Option{
		contentservice.WithRecorder(recorder),
		contentservice.WithIndex(db),
		contentservice.WithLogger(logger),
	}, extra...)

	return &runtime{
		cfg:    cfg,
		logger: logger,
		store:  store,
		db:     db,
		svc:    contentservice.New(store, svcOpts...),
	}, nil
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	rt, err := setup(opts, contentservice.WithPublisher(broker))
	if err != nil {
		return err
	}
	defer rt.db.Close()

	cfg, logger := rt.cfg, rt.logger

	// Run initial sync.
	if err := index.Sync(ctx, rt.db, rt.store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}
	if _, err := rt.svc.RegenerateManifest(ctx); err != nil {
		logger.Warn("initial manifest failed", slog.String("error", err.Error()))
	}

	h := api.NewHandler(rt.svc, rt.db)
	apiRouter := api.NewRouter(h, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(api.CORS(cfg.CORS.AllowedOrigins))

	// Health check endpoints.
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := rt.db.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", metrics.Handler())

	// Public manifest consumed by the landing page.
	r.Get("/manifest.json", h.Manifest)

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Reconcile edits made outside the API.
	g.Go(func() error {
		w := watch.New(rt.store.Root(), logger, rt.svc.Reconcile)
		if err := w.Run(gCtx); err != nil {
			logger.Error("watcher failed", slog.String("error", err.Error()))
		}
		return nil
	})

	// Backup retention.
	g.Go(func() error {
		j := backup.NewJanitor(rt.store.BackupRoot(), cfg.Backups.Policy(), cfg.Backups.Schedule, logger)
		return j.Run(gCtx)
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so long-running components stop with the server.
var errShutdown = errors.New("shutdown")

// Regenerate rebuilds the manifest once and exits.
func Regenerate(ctx context.Context, opts ...Option) error {
	rt, err := setup(opts)
	if err != nil {
		return err
	}
	defer rt.db.Close()

	nodes, err := rt.svc.RegenerateManifest(ctx)
	if err != nil {
		return err
	}
	if err := index.Sync(ctx, rt.db, rt.store, rt.logger); err != nil {
		rt.logger.Warn("index sync failed", slog.String("error", err.Error()))
	}
	rt.logger.Info("Manifest regenerated", slog.Int("nodes", len(nodes)))
	return nil
}

// PruneBackups applies the configured retention policy once and exits.
func PruneBackups(_ context.Context, opts ...Option) error {
	rt, err := setup(opts)
	if err != nil {
		return err
	}
	defer rt.db.Close()

	j := backup.NewJanitor(rt.store.BackupRoot(), rt.cfg.Backups.Policy(), rt.cfg.Backups.Schedule, rt.logger)
	_, err = j.Prune()
	return err
}

// ServeMCP serves the MCP tools over stdio until the client disconnects.
func ServeMCP(ctx context.Context, opts ...Option) error {
	rt, err := setup(opts)
	if err != nil {
		return err
	}
	defer rt.db.Close()

	if err := index.Sync(ctx, rt.db, rt.store, rt.logger); err != nil {
		rt.logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}
	rt.logger.Info("MCP server starting on stdio")
	return mcpserver.New(rt.svc, rt.db).ServeStdio()
}
