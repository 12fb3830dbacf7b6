// Package app wires configuration, telemetry, source documents and the engine
// into one runtime with an ordered shutdown.
package app

import (
	"fmt"
	"sync"

	"collections-graphql/internal/config"
	"collections-graphql/internal/dataaccess"
	"collections-graphql/internal/engine"
	"collections-graphql/internal/events"
	"collections-graphql/internal/logging"
	"collections-graphql/internal/observability"
	"collections-graphql/internal/permissions"
)

// App owns runtime resources for the collections-graphql lifecycle.
type App struct {
	cfg    *config.Config
	logger *logging.Logger

	loggerProvider *observability.LoggerProvider
	meterProvider  *observability.MeterProvider
	tracerProvider *observability.TracerProvider
	engineMetrics  *observability.EngineMetrics
	cacheMetrics   *observability.SchemaCacheMetrics

	permissions permissions.Resolver
	store       *dataaccess.Memory
	bus         *events.Bus
	engine      *engine.Engine

	cleanup cleanupStack

	stateMu     sync.Mutex
	initialized bool
	watching    bool

	shutdownOnce sync.Once
}

// New creates an App lifecycle wrapper.
func New(cfg *config.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &App{cfg: cfg, logger: logger}, nil
}

// AttachLoggerProvider registers an optional logger provider for shutdown cleanup.
func (a *App) AttachLoggerProvider(provider *observability.LoggerProvider) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.loggerProvider = provider
}

// Engine returns the initialized engine, or nil before Init.
func (a *App) Engine() *engine.Engine {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.engine
}

// Store returns the in-memory item store, or nil before Init.
func (a *App) Store() *dataaccess.Memory {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.store
}

// WriteMetrics writes the collected metrics to path in the Prometheus text format.
func (a *App) WriteMetrics(path string) error {
	mp := a.MeterProvider()
	if mp == nil {
		return fmt.Errorf("metrics are disabled; set observability.metrics_enabled")
	}
	if err := mp.WriteTextfile(path); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

// MeterProvider returns the metrics provider when metrics are enabled.
func (a *App) MeterProvider() *observability.MeterProvider {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.meterProvider
}
