package schemacache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"collections-graphql/internal/logging"
	"collections-graphql/internal/relschema"
)

// SourceFunc loads the current relational schema.
type SourceFunc func(ctx context.Context) (*relschema.Schema, error)

// ApplyFunc installs a changed relational schema.
type ApplyFunc func(schema *relschema.Schema)

// RefresherConfig controls schema polling.
type RefresherConfig struct {
	Source      SourceFunc
	Apply       ApplyFunc
	MinInterval time.Duration
	MaxInterval time.Duration
	Logger      *logging.Logger
}

// Refresher polls a schema source and applies the schema whenever its
// fingerprint changes. Unchanged polls back off up to MaxInterval.
type Refresher struct {
	source      SourceFunc
	apply       ApplyFunc
	minInterval time.Duration
	maxInterval time.Duration
	logger      *logging.Logger

	mu          sync.Mutex
	fingerprint string
	wg          sync.WaitGroup
}

// NewRefresher validates cfg and returns a refresher that has not polled yet.
func NewRefresher(cfg RefresherConfig) (*Refresher, error) {
	if cfg.Source == nil || cfg.Apply == nil {
		return nil, fmt.Errorf("schema refresher requires a source and an apply function")
	}
	if cfg.Logger == nil {
		cfg.Logger = &logging.Logger{Logger: slog.Default()}
	}
	minInterval, maxInterval := cfg.MinInterval, cfg.MaxInterval
	if minInterval <= 0 {
		minInterval = 2 * time.Second
	}
	if maxInterval < minInterval {
		maxInterval = minInterval
	}
	return &Refresher{
		source:      cfg.Source,
		apply:       cfg.Apply,
		minInterval: minInterval,
		maxInterval: maxInterval,
		logger:      cfg.Logger.WithFields(slog.String("component", "schema_refresh")),
	}, nil
}

// RefreshNow loads the schema and applies it if it changed. It reports whether
// the schema was applied.
func (r *Refresher) RefreshNow(ctx context.Context) (bool, error) {
	schema, err := r.source(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load schema: %w", err)
	}
	fingerprint := schema.Fingerprint()

	r.mu.Lock()
	defer r.mu.Unlock()
	if fingerprint == r.fingerprint {
		return false, nil
	}
	r.apply(schema)
	if r.fingerprint != "" {
		r.logger.Info("schema change applied", slog.String("fingerprint", fingerprint))
	}
	r.fingerprint = fingerprint
	return true, nil
}

// Fingerprint returns the fingerprint of the last applied schema.
func (r *Refresher) Fingerprint() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fingerprint
}

// Start begins polling in the background until ctx is done.
func (r *Refresher) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.loop(ctx)
	}()
}

// Wait blocks until the polling loop exits or ctx is canceled.
func (r *Refresher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Refresher) loop(ctx context.Context) {
	interval := r.minInterval
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("schema refresh stopped")
			return
		case <-timer.C:
			r.refreshOnce(ctx, &interval)
			timer.Reset(interval)
		}
	}
}

func (r *Refresher) refreshOnce(ctx context.Context, interval *time.Duration) {
	changed, err := r.RefreshNow(ctx)
	switch {
	case err != nil:
		r.logger.Warn("schema refresh failed", slog.String("error", err.Error()))
		*interval = r.minInterval
	case changed:
		*interval = r.minInterval
	default:
		*interval = nextInterval(*interval, r.minInterval, r.maxInterval)
	}
}

func nextInterval(current, minInterval, maxInterval time.Duration) time.Duration {
	if current < minInterval {
		return minInterval
	}
	next := current + current/2
	if next > maxInterval {
		return maxInterval
	}
	return next
}
