// Package app provides centralized dependency wiring and lifecycle control
// for the modelrelay server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"modelrelay/config"
	"modelrelay/internal/core"
	"modelrelay/internal/providers"
	"modelrelay/internal/providers/gemini"
	"modelrelay/internal/providers/lmstudio"
	"modelrelay/internal/server"
)

// App represents the running application with all its dependencies.
type App struct {
	config *config.Config
	router *providers.Router
	server *server.Server

	shutdownMu sync.Mutex
	shutdown   bool
}

// New creates an App with all dependencies initialized. Adapter client
// handles stay uninitialized until first use.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	registry := providers.NewRegistry()
	registry.Register(gemini.New(gemini.Config{
		APIKey:  cfg.Gemini.APIKey,
		BaseURL: cfg.Gemini.BaseURL,
		Model:   cfg.Gemini.Model,
	}))
	registry.Register(lmstudio.New(lmstudio.Config{
		BaseURL: cfg.LMStudio.BaseURL,
		APIKey:  cfg.LMStudio.APIKey,
		Model:   cfg.LMStudio.Model,
	}))

	router, err := providers.NewRouter(registry, cfg.DefaultProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create router: %w", err)
	}

	app := &App{
		config: cfg,
		router: router,
		server: server.New(router, &server.Config{
			MetricsEnabled:  cfg.Metrics.Enabled,
			MetricsEndpoint: cfg.Metrics.Endpoint,
			BodySizeLimit:   cfg.Server.BodySizeLimit,
		}),
	}
	app.logStartupInfo(registry)

	return app, nil
}

// Router returns the provider router, mainly for tests.
func (a *App) Router() core.Gateway {
	return a.router
}

// Start starts the HTTP server on the given address.
// This is a blocking call that returns when the server stops.
func (a *App) Start(addr string) error {
	if a.server == nil {
		return fmt.Errorf("server is not initialized")
	}
	slog.Info("starting server", "address", addr)
	if err := a.server.Start(addr); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			slog.Info("server stopped gracefully")
			return nil
		}
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server. Idempotent; repeated calls are
// no-ops.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownMu.Lock()
	if a.shutdown {
		a.shutdownMu.Unlock()
		return nil
	}
	a.shutdown = true
	a.shutdownMu.Unlock()

	slog.Info("shutting down application...")
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
	}
	slog.Info("application shutdown complete")
	return nil
}

// logStartupInfo logs the resolved configuration and probes backend
// availability without failing startup; an unreachable backend at boot is a
// warning, not a fatal condition.
func (a *App) logStartupInfo(registry *providers.Registry) {
	cfg := a.config

	defaultProvider := cfg.DefaultProvider
	if defaultProvider == "" {
		defaultProvider = providers.DefaultProvider
	}
	slog.Info("providers configured",
		"providers", registry.Names(),
		"default", defaultProvider,
	)

	if cfg.Gemini.APIKey == "" {
		slog.Warn("GEMINI_API_KEY not set - cloud provider calls will fail until configured")
	}
	if cfg.LMStudio.Model == "" {
		slog.Info("no default LM Studio model configured; requests must name one")
	}
	if cfg.Metrics.Enabled {
		slog.Info("prometheus metrics enabled", "endpoint", cfg.Metrics.Endpoint)
	}

	go func() {
		for _, adapter := range registry.Adapters() {
			checker, ok := adapter.(core.AvailabilityChecker)
			if !ok {
				continue
			}
			if err := checker.CheckAvailability(context.Background()); err != nil {
				slog.Warn("provider unavailable at startup", "provider", adapter.Name(), "error", err)
			} else {
				slog.Info("provider available", "provider", adapter.Name())
			}
		}
	}()
}
