// Package schemacache memoizes composed GraphQL schemas per caller and keeps the
// relational schema they are built from current.
package schemacache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/graphql-go/graphql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"collections-graphql/internal/logging"
	"collections-graphql/internal/observability"
)

var tracer = otel.Tracer("collections-graphql/schemacache")

// Key identifies one composed schema.
type Key struct {
	Scope  string
	Format string
	Role   string
	User   string
}

func (k Key) attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("schema.scope", k.Scope),
		attribute.String("schema.format", k.Format),
		attribute.String("schema.role", k.Role),
	}
}

// Entry is an immutable built schema. SDL is only set for the sdl output format.
type Entry struct {
	Schema      *graphql.Schema
	SDL         string
	Fingerprint string
	BuiltAt     time.Time
}

// BuildFunc composes the entry for a key on a cache miss.
type BuildFunc func(ctx context.Context) (*Entry, error)

// Cache is a process-wide map of composed schemas. Entries live until Clear.
//
// Builds run outside the lock, so two concurrent misses on one key both build. The
// results are identical and the first one stored wins; the other is discarded.
type Cache struct {
	mu         sync.RWMutex
	entries    map[Key]*Entry
	generation uint64
	metrics    *observability.SchemaCacheMetrics
	logger     *logging.Logger
}

// Option configures a cache.
type Option func(*Cache)

// WithMetrics records hits, misses and builds.
func WithMetrics(metrics *observability.SchemaCacheMetrics) Option {
	return func(c *Cache) {
		c.metrics = metrics
	}
}

// WithLogger sets the cache's logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New returns an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: map[Key]*Entry{},
		logger:  &logging.Logger{Logger: slog.Default()},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithFields(slog.String("component", "schema_cache"))
	return c
}

// Get returns the entry for key if one has been stored.
func (c *Cache) Get(key Key) (*Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	return entry, ok
}

// GetOrBuild returns the cached entry for key, building and storing it on a miss.
// An entry built across a Clear is returned to its caller but not stored.
func (c *Cache) GetOrBuild(ctx context.Context, key Key, build BuildFunc) (*Entry, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	generation := c.generation
	c.mu.RUnlock()
	if ok {
		c.metrics.RecordHit(ctx, key.Scope, key.Format)
		return entry, nil
	}
	c.metrics.RecordMiss(ctx, key.Scope, key.Format)

	ctx, span := tracer.Start(ctx, "schemacache.build")
	span.SetAttributes(key.attributes()...)
	defer span.End()

	start := time.Now()
	built, err := build(ctx)
	c.metrics.RecordBuild(ctx, key.Scope, key.Format, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if built.BuiltAt.IsZero() {
		built.BuiltAt = time.Now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[key]; ok {
		c.logger.Debug("discarding duplicate schema build",
			slog.String("scope", key.Scope),
			slog.String("role", key.Role),
		)
		return existing, nil
	}
	if c.generation != generation {
		return built, nil
	}
	c.entries[key] = built
	c.logger.Debug("schema built",
		slog.String("scope", key.Scope),
		slog.String("format", key.Format),
		slog.String("role", key.Role),
		slog.Duration("duration", time.Since(start)),
	)
	return built, nil
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	dropped := len(c.entries)
	c.entries = map[Key]*Entry{}
	c.generation++
	c.logger.Info("schema cache cleared", slog.Int("entries", dropped))
}

// Len returns the number of stored entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
