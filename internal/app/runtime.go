package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"collections-graphql/internal/config"
	"collections-graphql/internal/relschema"
	"collections-graphql/internal/schemacache"
)

// Watch polls the schema file and installs every changed schema into the store
// and the engine, then calls onChange. Polling stops at Shutdown or when ctx ends.
// It requires Init to have completed.
func (a *App) Watch(ctx context.Context, onChange func(*relschema.Schema)) error {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()

	if !a.initialized {
		return fmt.Errorf("app is not initialized")
	}
	if a.watching {
		return nil
	}
	path := a.cfg.Schema.File
	if path == config.StdinSource {
		return fmt.Errorf("schema.file %q cannot be watched", path)
	}

	store, eng := a.store, a.engine
	refresher, err := schemacache.NewRefresher(schemacache.RefresherConfig{
		Source: func(context.Context) (*relschema.Schema, error) {
			return relschema.LoadFile(path)
		},
		Apply: func(schema *relschema.Schema) {
			store.SetSchema(schema)
			eng.SetSchema(schema)
			if onChange != nil {
				onChange(schema)
			}
		},
		MinInterval: a.cfg.Schema.RefreshMinInterval,
		MaxInterval: a.cfg.Schema.RefreshMaxInterval,
		Logger:      a.logger,
	})
	if err != nil {
		return err
	}
	// The first poll records the loaded fingerprint so only later edits apply.
	if _, err := refresher.RefreshNow(ctx); err != nil {
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	refresher.Start(watchCtx)
	a.cleanup.push("schema watcher", func(shutdownCtx context.Context) error {
		cancel()
		return refresher.Wait(shutdownCtx)
	})
	a.watching = true
	a.logger.Info("watching relational schema",
		slog.String("file", path),
		slog.Duration("min_interval", a.cfg.Schema.RefreshMinInterval),
		slog.Duration("max_interval", a.cfg.Schema.RefreshMaxInterval),
	)
	return nil
}

// WaitForStop waits for an OS signal or for ctx to end.
func (a *App) WaitForStop(ctx context.Context, stop <-chan os.Signal) (reason string, err error) {
	if ctx == nil && stop == nil {
		return "", fmt.Errorf("both ctx and stop are nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case sig := <-stop:
		if a.logger != nil {
			a.logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		}
		return "signal", nil
	case <-ctx.Done():
		return "context", ctx.Err()
	}
}
