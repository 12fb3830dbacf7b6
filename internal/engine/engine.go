// Package engine composes per-caller GraphQL schemas from a relational schema and
// executes documents against them.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"collections-graphql/internal/dataaccess"
	"collections-graphql/internal/events"
	"collections-graphql/internal/gqlrequest"
	"collections-graphql/internal/logging"
	"collections-graphql/internal/naming"
	"collections-graphql/internal/observability"
	"collections-graphql/internal/operations"
	"collections-graphql/internal/permissions"
	"collections-graphql/internal/relschema"
	"collections-graphql/internal/schemacache"
	"collections-graphql/internal/schemafilter"
	"collections-graphql/internal/sdl"
	"collections-graphql/internal/translate"
	"collections-graphql/internal/typegraph"
	"collections-graphql/internal/versions"
)

// Output formats a schema can be requested in.
const (
	FormatGraphQL = "graphql"
	FormatSDL     = "sdl"
)

// DefaultSystemPrefix marks system collections.
const DefaultSystemPrefix = "directus_"

// Config holds the explicit collection lists and limits the engine composes with.
type Config struct {
	Filters schemafilter.Config
	// DenyCollections are structural system collections that never get types.
	DenyCollections     []string
	ReadOnlyCollections []string
	LegacyIDCollections []string
	SystemPrefix        string
	Limits              translate.Limits
	// MaxQueryDepth bounds the selection depth of a whole document; 0 disables it.
	MaxQueryDepth int
	VersionMerge  versions.Mode
	Naming        naming.Config
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		DenyCollections: []string{
			"directus_collections", "directus_fields", "directus_relations", "directus_migrations",
			"directus_sessions", "directus_extensions",
		},
		ReadOnlyCollections: []string{"directus_activity", "directus_revisions"},
		SystemPrefix:        DefaultSystemPrefix,
		Limits:              translate.DefaultLimits(),
		VersionMerge:        versions.ModeRecursive,
		Naming:              naming.DefaultConfig(),
	}
}

// Accountability identifies the caller a schema is composed for.
type Accountability struct {
	Role string
	User string
}

func (a Accountability) role() string {
	if a.Role == "" {
		return permissions.PublicRole
	}
	return a.Role
}

// Engine builds schemas on demand and runs documents against them. It is safe
// for concurrent use; the relational schema can be swapped at any time.
type Engine struct {
	cfg         Config
	schema      atomic.Pointer[relschema.Schema]
	permissions permissions.Resolver
	items       dataaccess.ItemService
	versions    dataaccess.VersionSource
	bus         *events.Bus
	cache       *schemacache.Cache
	metrics     *observability.EngineMetrics
	logger      *logging.Logger

	cacheMetrics *observability.SchemaCacheMetrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's base logger.
func WithLogger(logger *logging.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics records request metrics.
func WithMetrics(metrics *observability.EngineMetrics) Option {
	return func(e *Engine) {
		e.metrics = metrics
	}
}

// WithCacheMetrics records schema cache metrics.
func WithCacheMetrics(metrics *observability.SchemaCacheMetrics) Option {
	return func(e *Engine) {
		e.cacheMetrics = metrics
	}
}

// WithBus publishes mutation events and serves subscriptions from bus.
func WithBus(bus *events.Bus) Option {
	return func(e *Engine) {
		e.bus = bus
	}
}

// WithVersionSource sets where draft version saves are read from. Without it the
// item service is used when it implements dataaccess.VersionSource.
func WithVersionSource(source dataaccess.VersionSource) Option {
	return func(e *Engine) {
		e.versions = source
	}
}

// New returns an engine over schema. The item service executes every canonical query.
func New(schema *relschema.Schema, resolver permissions.Resolver, items dataaccess.ItemService, cfg Config, opts ...Option) (*Engine, error) {
	if schema == nil {
		return nil, fmt.Errorf("engine requires a relational schema")
	}
	if resolver == nil {
		return nil, fmt.Errorf("engine requires a permissions resolver")
	}
	if items == nil {
		return nil, fmt.Errorf("engine requires an item service")
	}
	if cfg.VersionMerge == "" {
		cfg.VersionMerge = versions.ModeRecursive
	}
	if cfg.Limits == (translate.Limits{}) {
		cfg.Limits = translate.DefaultLimits()
	}

	e := &Engine{
		cfg:         cfg,
		permissions: resolver,
		items:       items,
		logger:      &logging.Logger{Logger: slog.Default()},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.versions == nil {
		if source, ok := items.(dataaccess.VersionSource); ok {
			e.versions = source
		}
	}
	e.logger = e.logger.WithFields(slog.String("component", "engine"))
	e.cache = schemacache.New(
		schemacache.WithMetrics(e.cacheMetrics),
		schemacache.WithLogger(e.logger),
	)
	e.schema.Store(schema)
	return e, nil
}

// Schema returns the relational schema currently composed from.
func (e *Engine) Schema() *relschema.Schema {
	return e.schema.Load()
}

// SetSchema swaps the relational schema. Cached graphs are dropped when the
// fingerprint changes.
func (e *Engine) SetSchema(schema *relschema.Schema) {
	if schema == nil {
		return
	}
	previous := e.schema.Swap(schema)
	if previous != nil && previous.Fingerprint() == schema.Fingerprint() {
		return
	}
	e.logger.Info("relational schema replaced", slog.Int("collections", len(schema.Collections)))
	e.cache.Clear()
}

// ClearCache drops every composed schema.
func (e *Engine) ClearCache() {
	e.cache.Clear()
}

// BuildSchema returns the schema composed for scope and caller, building it on
// first use. The sdl format also carries the printed document.
func (e *Engine) BuildSchema(ctx context.Context, scope typegraph.Scope, format string, acc Accountability) (*schemacache.Entry, error) {
	switch scope {
	case typegraph.ScopeItems, typegraph.ScopeSystem:
	default:
		return nil, fmt.Errorf("unknown schema scope %q", scope)
	}
	if format == "" {
		format = FormatGraphQL
	}
	if format != FormatGraphQL && format != FormatSDL {
		return nil, fmt.Errorf("unknown schema output format %q", format)
	}

	key := schemacache.Key{Scope: string(scope), Format: format, Role: acc.role(), User: acc.User}
	return e.cache.GetOrBuild(ctx, key, func(ctx context.Context) (*schemacache.Entry, error) {
		return e.compose(ctx, scope, format, acc)
	})
}

func (e *Engine) compose(ctx context.Context, scope typegraph.Scope, format string, acc Accountability) (entry *schemacache.Entry, err error) {
	ctx, span := startSpan(ctx, "engine.compose",
		attribute.String("schema.scope", string(scope)),
		attribute.String("schema.format", format),
		attribute.String("accountability.role", acc.role()),
	)
	defer func() {
		if err != nil {
			recordSpanError(span, err)
		}
		span.End()
	}()

	base := e.Schema()
	filtered := schemafilter.Apply(base, e.cfg.Filters)

	allowed := make(map[relschema.Action]schemafilter.AllowList, len(relschema.Actions))
	inconsistent := make(map[relschema.Action]permissions.InconsistentFields, len(relschema.Actions))
	for _, action := range relschema.Actions {
		fields, err := e.permissions.AllowedFields(ctx, acc.role(), action)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s permissions: %w", action, err)
		}
		allowed[action] = fields
		mismatched, err := e.permissions.InconsistentFields(ctx, acc.role(), action)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve inconsistent %s fields: %w", action, err)
		}
		inconsistent[action] = mismatched
	}

	graph := typegraph.Build(schemafilter.ForActions(filtered, allowed), inconsistent, scope, typegraph.Options{
		DenyCollections:     e.cfg.DenyCollections,
		LegacyIDCollections: e.cfg.LegacyIDCollections,
		SystemPrefix:        e.cfg.SystemPrefix,
		Naming:              e.cfg.Naming,
		Logger:              e.logger.Logger,
	})
	res := &resolvers{engine: e, schema: filtered}
	schema, err := operations.Assemble(graph, res, operations.Options{
		ReadOnlyCollections: e.cfg.ReadOnlyCollections,
		Naming:              e.cfg.Naming,
		Logger:              e.logger.Logger,
	})
	if err != nil {
		return nil, err
	}

	entry = &schemacache.Entry{Schema: &schema, Fingerprint: base.Fingerprint()}
	if format == FormatSDL {
		entry.SDL, err = sdl.Print(&schema)
		if err != nil {
			return nil, fmt.Errorf("failed to print schema: %w", err)
		}
	}
	return entry, nil
}

// publisher records event metrics for everything published to the bus.
type publisher struct {
	bus     *events.Bus
	metrics *observability.EngineMetrics
}

func (p publisher) Publish(ctx context.Context, collection string, event events.Event, keys ...interface{}) []events.Message {
	messages := p.bus.Publish(ctx, collection, event, keys...)
	p.metrics.RecordEvents(ctx, int64(len(messages)), collection, string(event))
	meta, ok := gqlrequest.ExecMetaFromContext(ctx)
	if !ok {
		return messages
	}
	fields := []any{
		slog.String("collection", collection),
		slog.String("event", string(event)),
		slog.Int("messages", len(messages)),
		slog.String("operation_name", meta.OperationName),
	}
	if analysis := gqlrequest.AnalysisFromContext(ctx); analysis != nil && len(analysis.RootFields) == 1 {
		fields = append(fields, slog.String("mutation", analysis.RootFields[0]))
	}
	logging.FromContext(ctx).Debug("published mutation events", fields...)
	return messages
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer("collections-graphql/engine").Start(ctx, name, trace.WithAttributes(attrs...))
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
