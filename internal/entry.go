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

	"github.com/starford/circle/internal/api"
	"github.com/starford/circle/internal/feedservice"
	"github.com/starford/circle/internal/host"
	"github.com/starford/circle/internal/llm"
	"github.com/starford/circle/internal/mcpserver"
	"github.com/starford/circle/internal/pipeline"
	"github.com/starford/circle/internal/roster"
	"github.com/starford/circle/internal/scheduler"
	"github.com/starford/circle/internal/sse"
	"github.com/starford/circle/internal/storage"
	"github.com/starford/circle/internal/store"
)

// components holds the wired application parts shared by the HTTP and MCP
// entry points.
type components struct {
	store  *store.Store
	roster *roster.Roster
	broker *sse.Broker
	pipe   *pipeline.Pipeline
	svc    *feedservice.Service
	sched  *scheduler.Scheduler
	logger *slog.Logger
}

func (c *components) close() {
	c.sched.Stop()
	c.pipe.Wait()
	c.broker.Close()
	if err := c.store.Close(); err != nil {
		c.logger.Error("store close error", slog.String("error", err.Error()))
	}
}

func build(ctx context.Context, cfg *Config, logger *slog.Logger) (*components, error) {
	for _, dir := range []string{cfg.Data.Path, cfg.Data.AvatarsDir(), cfg.Roster.Path} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir %s: %w", dir, err)
		}
	}

	st, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	rosterFiles, err := storage.NewFS(cfg.Roster.Path)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("init roster storage: %w", err)
	}
	dataFiles, err := storage.NewFS(cfg.Data.Path)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("init data storage: %w", err)
	}

	ros := roster.New(rosterFiles, logger)
	if err := ros.Reload(); err != nil {
		logger.Warn("initial roster load failed", slog.String("error", err.Error()))
	}
	logger.Info("roster loaded", slog.Int("personas", ros.Len()))

	gen, err := llm.NewGemini(ctx, llm.GeminiConfig{
		APIKey: cfg.LLM.APIKey,
		Model:  cfg.LLM.Model,
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("init generator: %w", err)
	}

	broker := sse.NewBroker(2 * time.Second)
	hostClient := host.New(cfg.Host.Endpoint, cfg.Host.Token, cfg.Host.Timeout(), logger)
	pipe := pipeline.New(gen, hostClient, st, logger)

	svc, err := feedservice.NewService(st, pipe, ros, broker, dataFiles, logger)
	if err != nil {
		broker.Close()
		st.Close()
		return nil, fmt.Errorf("init service: %w", err)
	}

	sched := scheduler.New(st, pipe, ros, svc, broker, logger)

	return &components{
		store:  st,
		roster: ros,
		broker: broker,
		pipe:   pipe,
		svc:    svc,
		sched:  sched,
		logger: logger,
	}, nil
}

func newLogger(cfg *Config) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// Run starts the HTTP application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config
	logger := newLogger(cfg)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("data_path", cfg.Data.Path),
		slog.String("roster_path", cfg.Roster.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	c, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.close()

	// Autonomous loops start immediately when enabled; the API can start
	// and stop them at runtime either way.
	if c.svc.Current().Enabled {
		c.sched.Start(ctx)
	}

	avatars := api.NewAvatarHandler(cfg.Data.AvatarsDir())
	apiRouter := api.NewRouter(ctx, c.svc, c.sched, cfg.Auth.AuthEnabled(), cfg.Auth.Token, c.broker, avatars)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	// Avatar images are served unauthenticated so feed clients can embed them.
	r.Get("/avatars/{filename}", avatars.ServeFile)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the roster directory for persona card changes.
	g.Go(func() error {
		if err := c.roster.Watch(gCtx, cfg.Roster.Path); err != nil {
			logger.Warn("roster watcher stopped", slog.String("error", err.Error()))
		}
		return nil
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

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP starts the MCP stdio server with the given options. The autonomous
// loops stay stopped; MCP clients trigger generation explicitly.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Logs go to stderr: stdout belongs to the MCP transport.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	c, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.close()

	srv := mcpserver.New(c.svc, c.sched)
	logger.Info("MCP server starting on stdio")
	return srv.ServeStdio()
}
