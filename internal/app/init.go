package app

import (
	"context"
	"fmt"
	"log/slog"

	"collections-graphql/internal/dataaccess"
	"collections-graphql/internal/engine"
	"collections-graphql/internal/events"
)

// Init initializes all runtime resources. It is idempotent.
func (a *App) Init(ctx context.Context) error {
	a.stateMu.Lock()
	if a.initialized {
		a.stateMu.Unlock()
		return nil
	}
	a.stateMu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}

	cleanup := cleanupStack{}
	success := false
	defer func() {
		if !success {
			cleanup.run(context.Background(), a.logger)
		}
	}()

	if a.loggerProvider != nil {
		cleanup.push("logger provider", func(shutdownCtx context.Context) error {
			return a.loggerProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	meterProvider, engineMetrics, cacheMetrics, err := initMetrics(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry metrics: %w", err)
	}
	if meterProvider != nil {
		cleanup.push("meter provider", func(shutdownCtx context.Context) error {
			return meterProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	tracerProvider, err := initTracing(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry tracing: %w", err)
	}
	if tracerProvider != nil {
		cleanup.push("tracer provider", func(shutdownCtx context.Context) error {
			return tracerProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	schema, err := loadSchema(a.cfg.Schema.File)
	if err != nil {
		return err
	}
	a.logger.Info("relational schema loaded",
		slog.String("file", a.cfg.Schema.File),
		slog.Int("collections", len(schema.Collections)),
		slog.Int("relations", len(schema.Relations)),
		slog.String("fingerprint", schema.Fingerprint()),
	)

	resolver, err := loadPermissions(a.cfg.Permissions)
	if err != nil {
		return err
	}

	store := dataaccess.NewMemory(schema,
		dataaccess.WithLogger(a.logger.Logger),
		dataaccess.WithDefaultLimit(a.cfg.Data.DefaultLimit),
	)
	if err := seedStore(store, a.cfg.Data.File, a.logger); err != nil {
		return err
	}

	bus := events.NewBus(
		events.WithBuffer(a.cfg.Data.SubscriptionBuffer),
		events.WithLogger(a.logger.Logger),
	)

	engineCfg, err := a.cfg.EngineConfig()
	if err != nil {
		return err
	}
	eng, err := engine.New(schema, resolver, store, engineCfg,
		engine.WithLogger(a.logger),
		engine.WithMetrics(engineMetrics),
		engine.WithCacheMetrics(cacheMetrics),
		engine.WithBus(bus),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}

	a.stateMu.Lock()
	a.meterProvider = meterProvider
	a.tracerProvider = tracerProvider
	a.engineMetrics = engineMetrics
	a.cacheMetrics = cacheMetrics
	a.permissions = resolver
	a.store = store
	a.bus = bus
	a.engine = eng
	a.cleanup = cleanup
	a.initialized = true
	a.stateMu.Unlock()

	success = true
	return nil
}
