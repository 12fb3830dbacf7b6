package engine

import (
	"context"
	"log/slog"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"collections-graphql/internal/apierror"
	"collections-graphql/internal/dataaccess"
	"collections-graphql/internal/events"
	"collections-graphql/internal/fragments"
	"collections-graphql/internal/logging"
	"collections-graphql/internal/mutation"
	"collections-graphql/internal/query"
	"collections-graphql/internal/relschema"
	"collections-graphql/internal/translate"
	"collections-graphql/internal/versions"
)

// resolvers binds generated operations to the engine's item service. schema is
// the filtered relational schema the graph was composed from.
type resolvers struct {
	engine *Engine
	schema *relschema.Schema
}

// selections returns the inlined sub-selection of the resolved field.
func selections(p graphql.ResolveParams) ([]ast.Selection, error) {
	var out []ast.Selection
	for _, field := range p.Info.FieldASTs {
		if field != nil && field.SelectionSet != nil {
			out = append(out, field.SelectionSet.Selections...)
		}
	}
	return fragments.Inline(out, fragments.FromDefinitions(p.Info.Fragments))
}

func (r *resolvers) translateOptions(p graphql.ResolveParams) []translate.Option {
	return []translate.Option{
		translate.WithLimits(r.engine.cfg.Limits),
		translate.WithVariables(p.Info.VariableValues),
	}
}

func (r *resolvers) query(ctx context.Context, p graphql.ResolveParams) (*query.Query, error) {
	selected, err := selections(p)
	if err != nil {
		return nil, err
	}
	return translate.Query(ctx, p.Args, selected, r.translateOptions(p)...)
}

func (r *resolvers) Read(collection string) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (result interface{}, err error) {
		ctx, span := startSpan(p.Context, "engine.read", attribute.String("collection", collection))
		defer finish(span, &err)

		q, err := r.query(ctx, p)
		if err != nil {
			return nil, err
		}
		def, ok := r.schema.Collection(collection)
		if !ok {
			return nil, apierror.New(apierror.CodeNotFound, "collection %q does not exist", collection)
		}
		version := stringArg(p.Args, "version")

		if def.Singleton {
			item, err := r.engine.items.ReadSingleton(ctx, collection, q)
			if err != nil {
				return nil, err
			}
			if version != "" {
				return r.applyVersion(ctx, collection, version, nil, item, q)
			}
			return nullable(item), nil
		}

		if version != "" && !containsField(q.Fields, def.Primary) {
			q.Fields = append(q.Fields, def.Primary)
		}
		items, err := r.engine.items.ReadByQuery(ctx, collection, q)
		if err != nil {
			return nil, err
		}
		r.engine.metrics.RecordResultsCount(ctx, int64(len(items)), collection)
		span.SetAttributes(attribute.Int("engine.results", len(items)))
		if version == "" {
			return items, nil
		}
		merged := make([]interface{}, 0, len(items))
		for _, item := range items {
			out, err := r.applyVersion(ctx, collection, version, keyOf(item, def.Primary, q.Alias), item, q)
			if err != nil {
				return nil, err
			}
			merged = append(merged, out)
		}
		return merged, nil
	}
}

func (r *resolvers) ReadByID(collection string) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (result interface{}, err error) {
		ctx, span := startSpan(p.Context, "engine.read_by_id", attribute.String("collection", collection))
		defer finish(span, &err)

		q, err := r.query(ctx, p)
		if err != nil {
			return nil, err
		}
		key := p.Args["id"]
		item, err := r.engine.items.ReadOne(ctx, collection, key, q)
		if err != nil {
			return nil, err
		}
		if version := stringArg(p.Args, "version"); version != "" {
			return r.applyVersion(ctx, collection, version, key, item, q)
		}
		return nullable(item), nil
	}
}

func (r *resolvers) ReadByVersion(collection string) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (result interface{}, err error) {
		ctx, span := startSpan(p.Context, "engine.read_by_version", attribute.String("collection", collection))
		defer finish(span, &err)

		q, err := r.query(ctx, p)
		if err != nil {
			return nil, err
		}
		def, ok := r.schema.Collection(collection)
		if !ok {
			return nil, apierror.New(apierror.CodeNotFound, "collection %q does not exist", collection)
		}
		version := stringArg(p.Args, "version")

		var key interface{}
		var item dataaccess.Item
		if def.Singleton {
			item, err = r.engine.items.ReadSingleton(ctx, collection, q)
		} else {
			key = p.Args["id"]
			item, err = r.engine.items.ReadOne(ctx, collection, key, q)
		}
		if err != nil {
			return nil, err
		}
		return r.applyVersion(ctx, collection, version, key, item, q)
	}
}

// applyVersion overlays the saves of version onto item. A missing item with no
// saves stays missing.
func (r *resolvers) applyVersion(ctx context.Context, collection, version string, key interface{}, item dataaccess.Item, q *query.Query) (interface{}, error) {
	if r.engine.versions == nil {
		return nil, apierror.New(apierror.CodeForbidden, "versions are not available")
	}
	saves, err := r.engine.versions.VersionSaves(ctx, version, collection, key)
	if err != nil {
		return nil, err
	}
	if item == nil && len(saves) == 0 {
		return nil, nil
	}
	merged := versions.Merge(item, saves, collection, r.schema, r.engine.cfg.VersionMerge)
	// Saves use real field names; aliased selections read their response keys.
	for alias, real := range q.Alias {
		if value, ok := merged[real]; ok {
			merged[alias] = value
		}
	}
	return merged, nil
}

func (r *resolvers) Aggregate(collection string) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (result interface{}, err error) {
		ctx, span := startSpan(p.Context, "engine.aggregate", attribute.String("collection", collection))
		defer finish(span, &err)

		selected, err := selections(p)
		if err != nil {
			return nil, err
		}
		q, err := translate.Aggregate(ctx, p.Args, selected, r.translateOptions(p)...)
		if err != nil {
			return nil, err
		}
		rows, err := r.engine.items.ReadByQuery(ctx, collection, q)
		if err != nil {
			return nil, err
		}
		r.engine.metrics.RecordResultsCount(ctx, int64(len(rows)), collection)
		return rows, nil
	}
}

func (r *resolvers) Mutate(collection string) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (result interface{}, err error) {
		ctx, span := startSpan(p.Context, "engine.mutate",
			attribute.String("collection", collection),
			attribute.String("graphql.field", p.Info.FieldName),
		)
		defer finish(span, &err)

		op, err := mutation.ParseOperation(p.Info.FieldName)
		if err != nil {
			return nil, err
		}
		def, ok := r.schema.Collection(collection)
		if !ok {
			return nil, apierror.New(apierror.CodeNotFound, "collection %q does not exist", collection)
		}

		q := &query.Query{}
		if op.Action != relschema.ActionDelete {
			if q, err = r.query(ctx, p); err != nil {
				return nil, err
			}
		}

		dispatcher := mutation.NewDispatcher(r.engine.items, r.engine.publisher(), logging.FromContext(ctx).Logger)
		result, err = dispatcher.Dispatch(ctx, mutation.Request{
			Operation:  op,
			Collection: collection,
			Singleton:  def.Singleton,
			Args:       p.Args,
			Query:      q,
		})
		if err != nil {
			return nil, err
		}
		if item, ok := result.(dataaccess.Item); ok {
			return nullable(item), nil
		}
		return result, nil
	}
}

// Subscribe listens on the event bus and emits one {key, event, data} payload per
// message until the subscription context ends. data is read with the selection
// under the payload's data field and is nil for deletes.
func (r *resolvers) Subscribe(collection string) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		if r.engine.bus == nil {
			return nil, apierror.New(apierror.CodeForbidden, "subscriptions are not enabled")
		}
		event := events.Event(stringArg(p.Args, "event"))
		if !event.Valid() {
			return nil, apierror.InvalidQuery("unknown event %q", event)
		}
		dataQuery, err := r.subscriptionQuery(p)
		if err != nil {
			return nil, err
		}

		ctx := p.Context
		logger := logging.FromContext(ctx)
		id, messages := r.engine.bus.Subscribe(collection, event)
		out := make(chan interface{})
		go func() {
			defer close(out)
			defer r.engine.bus.Unsubscribe(id)
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-messages:
					if !ok {
						return
					}
					payload := map[string]interface{}{
						"key":   msg.Key,
						"event": string(msg.Event),
						"data":  nil,
					}
					if dataQuery.HasFields() && msg.Event != events.EventDelete {
						item, err := r.engine.items.ReadOne(ctx, collection, msg.Key, dataQuery)
						if err != nil {
							logger.Warn("failed to read mutated item",
								slog.String("collection", collection),
								slog.Any("key", msg.Key),
								slog.String("error", err.Error()),
							)
						}
						payload["data"] = nullable(item)
					}
					select {
					case out <- payload:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
		return out, nil
	}
}

// subscriptionQuery translates the selection under the payload's data field.
func (r *resolvers) subscriptionQuery(p graphql.ResolveParams) (*query.Query, error) {
	selected, err := selections(p)
	if err != nil {
		return nil, err
	}
	var data []ast.Selection
	for _, selection := range selected {
		field, ok := selection.(*ast.Field)
		if !ok || field.Name == nil || field.Name.Value != "data" || field.SelectionSet == nil {
			continue
		}
		data = append(data, field.SelectionSet.Selections...)
	}
	if len(data) == 0 {
		return &query.Query{}, nil
	}
	return translate.Query(p.Context, nil, data, r.translateOptions(p)...)
}

func (e *Engine) publisher() mutation.Publisher {
	if e.bus == nil {
		return nil
	}
	return publisher{bus: e.bus, metrics: e.metrics}
}

func finish(span trace.Span, err *error) {
	if *err != nil {
		recordSpanError(span, *err)
	}
	span.End()
}

// nullable turns a missing item into a GraphQL null rather than an empty object.
func nullable(item dataaccess.Item) interface{} {
	if item == nil {
		return nil
	}
	return item
}

func stringArg(args map[string]interface{}, name string) string {
	if value, ok := args[name].(string); ok {
		return value
	}
	return ""
}

func containsField(fields []string, name string) bool {
	for _, field := range fields {
		if field == name {
			return true
		}
	}
	return false
}

// keyOf finds the primary key of a projected item, which may only be present
// under an alias.
func keyOf(item dataaccess.Item, primary string, aliases map[string]string) interface{} {
	if value, ok := item[primary]; ok {
		return value
	}
	for alias, real := range aliases {
		if real == primary {
			if value, ok := item[alias]; ok {
				return value
			}
		}
	}
	return nil
}
