package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"studysync/internal/api"
	"studysync/internal/config"
	"studysync/internal/database"
	"studysync/internal/hub"
	"studysync/internal/matcher"
	"studysync/internal/metrics"
	"studysync/internal/registry"
	"studysync/internal/router"
	"studysync/internal/websocket"
)

// Application wires all components and owns their lifecycle. Construction
// order follows the dependency chain: storage first, then the session
// core, then transport, then HTTP.
type Application struct {
	config   *config.Config
	logger   *slog.Logger
	database *database.Manager
	hub      *hub.Hub
	server   *http.Server

	mu      sync.Mutex
	running bool
}

// New builds a fully wired application from configuration.
func New(cfg *config.Config) (*Application, error) {
	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	dbManager, err := database.NewManager(cfg.DatabaseConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	met := metrics.New(prometheus.DefaultRegisterer)

	reg := registry.New(logger)
	rooms := websocket.NewRooms(logger)
	match := matcher.New(reg, dbManager, logger)
	route := router.New(reg, rooms, dbManager, dbManager, cfg.Router.RateLimitPerMinute, met, logger)
	messageHub := hub.New(reg, match, route, rooms, met, logger)

	wsHandler := websocket.NewHandler(dbManager, messageHub, rooms, websocket.HandlerConfig{
		PingInterval:   cfg.WebSocket.PingInterval,
		ReadTimeout:    cfg.WebSocket.ReadTimeout,
		SendBufferSize: cfg.WebSocket.SendBufferSize,
	}, logger)

	apiServer := api.NewServer(reg, rooms, dbManager, logger)

	mux := http.NewServeMux()
	mux.Handle("/ws", wsHandler)
	mux.Handle("/api/", apiServer.Routes())
	mux.Handle("/health", apiServer.Routes())
	mux.Handle("/metrics", promhttp.Handler())

	return &Application{
		config:   cfg,
		logger:   logger.With("component", "app"),
		database: dbManager,
		hub:      messageHub,
		server: &http.Server{
			Addr:         cfg.Addr(),
			Handler:      mux,
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
		},
	}, nil
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// Start launches the hub and the HTTP server. Blocks until the server
// exits or ctx is cancelled.
func (a *Application) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("application is already running")
	}
	a.running = true
	a.mu.Unlock()

	if err := a.hub.Start(ctx); err != nil {
		return fmt.Errorf("failed to start hub: %w", err)
	}

	a.logger.Info("listening", "addr", a.server.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
		return nil
	}
}

// Stop shuts the application down in reverse dependency order: stop
// accepting, stop the hub, then flush and close storage.
func (a *Application) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return nil
	}
	a.running = false

	a.logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Warn("http shutdown incomplete", "error", err)
	}

	if err := a.hub.Stop(); err != nil {
		a.logger.Warn("hub stop failed", "error", err)
	}

	if err := a.database.Flush(ctx); err != nil {
		a.logger.Warn("flush before close failed", "error", err)
	}
	if err := a.database.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	a.logger.Info("shutdown complete")
	return nil
}
