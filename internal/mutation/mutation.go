// Package mutation routes generated mutation operations to the item service.
package mutation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"collections-graphql/internal/apierror"
	"collections-graphql/internal/dataaccess"
	"collections-graphql/internal/events"
	"collections-graphql/internal/query"
	"collections-graphql/internal/relschema"
)

// Cardinality is how many records an operation addresses.
type Cardinality string

const (
	CardinalitySingle Cardinality = "single"
	// CardinalityPlural addresses records by explicit ids or by payload list.
	CardinalityPlural Cardinality = "plural"
	// CardinalityBatch is an update where every record carries its own key.
	CardinalityBatch Cardinality = "batch"
)

// Operation is a decomposed mutation name.
type Operation struct {
	Action      relschema.Action
	Collection  string
	Cardinality Cardinality
}

// ParseOperation splits a mutation name such as update_posts_batch. Names that
// were given a numeric suffix to resolve a collision are accepted too.
func ParseOperation(name string) (Operation, error) {
	action, rest, ok := strings.Cut(name, "_")
	if !ok || rest == "" {
		return Operation{}, apierror.InvalidQuery("%q is not a mutation name", name)
	}
	op := Operation{Action: relschema.Action(action), Cardinality: CardinalitySingle}
	switch op.Action {
	case relschema.ActionCreate, relschema.ActionUpdate, relschema.ActionDelete:
	default:
		return Operation{}, apierror.InvalidQuery("%q does not name a mutation action", name)
	}

	base := strings.TrimRight(rest, "0123456789")
	suffixes := []struct {
		suffix      string
		cardinality Cardinality
	}{
		{"_items", CardinalityPlural},
		{"_item", CardinalitySingle},
		{"_batch", CardinalityBatch},
	}
	for _, candidate := range []string{rest, base} {
		for _, s := range suffixes {
			if strings.HasSuffix(candidate, s.suffix) && len(candidate) > len(s.suffix) {
				if s.cardinality == CardinalityBatch && op.Action != relschema.ActionUpdate {
					continue
				}
				op.Collection = strings.TrimSuffix(candidate, s.suffix)
				op.Cardinality = s.cardinality
				return op, nil
			}
		}
	}
	op.Collection = rest
	return op, nil
}

// Request is one mutation call.
type Request struct {
	Operation Operation
	// Collection is the real collection name, which differs from
	// Operation.Collection for system collections.
	Collection string
	Singleton  bool
	Args       map[string]interface{}
	// Query shapes the follow-up read. Without fields no read happens.
	Query *query.Query
}

// Publisher receives mutated keys for subscriptions.
type Publisher interface {
	Publish(ctx context.Context, collection string, event events.Event, keys ...interface{}) []events.Message
}

// Dispatcher executes mutations against an item service.
type Dispatcher struct {
	items     dataaccess.ItemService
	publisher Publisher
	logger    *slog.Logger
}

// NewDispatcher returns a dispatcher. publisher may be nil.
func NewDispatcher(items dataaccess.ItemService, publisher Publisher, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{items: items, publisher: publisher, logger: logger}
}

// Dispatch performs the mutation and the optional follow-up read. Every error
// returned is an *apierror.Error.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (result interface{}, err error) {
	ctx, span := startSpan(ctx, "mutation.dispatch",
		attribute.String("collection", req.Collection),
		attribute.String("action", string(req.Operation.Action)),
		attribute.String("cardinality", string(req.Operation.Cardinality)),
	)
	defer func() {
		if err != nil {
			err = apierror.Normalize(err)
			recordSpanError(span, err)
		}
		span.End()
	}()

	if req.Singleton && req.Operation.Action == relschema.ActionUpdate {
		return d.upsertSingleton(ctx, req)
	}
	switch req.Operation.Action {
	case relschema.ActionCreate:
		return d.create(ctx, req)
	case relschema.ActionUpdate:
		return d.update(ctx, req)
	case relschema.ActionDelete:
		return d.delete(ctx, req)
	default:
		return nil, apierror.InvalidQuery("unsupported mutation action %q", req.Operation.Action)
	}
}

func (d *Dispatcher) upsertSingleton(ctx context.Context, req Request) (interface{}, error) {
	data, err := record(req.Args["data"])
	if err != nil {
		return nil, err
	}
	key, err := d.items.UpsertSingleton(ctx, req.Collection, data)
	if err != nil {
		return nil, err
	}
	d.publish(ctx, req.Collection, events.EventUpdate, key)
	if !req.Query.HasFields() {
		return true, nil
	}
	return d.items.ReadSingleton(ctx, req.Collection, req.Query)
}

func (d *Dispatcher) create(ctx context.Context, req Request) (interface{}, error) {
	if req.Operation.Cardinality == CardinalityPlural {
		data, err := records(req.Args["data"])
		if err != nil {
			return nil, err
		}
		keys, err := d.items.CreateMany(ctx, req.Collection, data)
		if err != nil {
			return nil, err
		}
		d.publish(ctx, req.Collection, events.EventCreate, keys...)
		return d.readMany(ctx, req, keys)
	}
	data, err := record(req.Args["data"])
	if err != nil {
		return nil, err
	}
	key, err := d.items.CreateOne(ctx, req.Collection, data)
	if err != nil {
		return nil, err
	}
	d.publish(ctx, req.Collection, events.EventCreate, key)
	return d.readOne(ctx, req, key)
}

func (d *Dispatcher) update(ctx context.Context, req Request) (interface{}, error) {
	switch req.Operation.Cardinality {
	case CardinalityBatch:
		data, err := records(req.Args["data"])
		if err != nil {
			return nil, err
		}
		keys, err := d.items.UpdateBatch(ctx, req.Collection, data)
		if err != nil {
			return nil, err
		}
		d.publish(ctx, req.Collection, events.EventUpdate, keys...)
		return d.readMany(ctx, req, keys)
	case CardinalityPlural:
		data, err := record(req.Args["data"])
		if err != nil {
			return nil, err
		}
		keys, err := d.items.UpdateMany(ctx, req.Collection, ids(req.Args["ids"]), data)
		if err != nil {
			return nil, err
		}
		d.publish(ctx, req.Collection, events.EventUpdate, keys...)
		return d.readMany(ctx, req, keys)
	default:
		data, err := record(req.Args["data"])
		if err != nil {
			return nil, err
		}
		key, err := d.items.UpdateOne(ctx, req.Collection, req.Args["id"], data)
		if err != nil {
			return nil, err
		}
		d.publish(ctx, req.Collection, events.EventUpdate, key)
		return d.readOne(ctx, req, key)
	}
}

// delete answers with the fixed {ids} or {id} shapes; there is nothing left to read.
func (d *Dispatcher) delete(ctx context.Context, req Request) (interface{}, error) {
	if req.Operation.Cardinality == CardinalityPlural {
		keys, err := d.items.DeleteMany(ctx, req.Collection, ids(req.Args["ids"]))
		if err != nil {
			return nil, err
		}
		d.publish(ctx, req.Collection, events.EventDelete, keys...)
		return map[string]interface{}{"ids": keys}, nil
	}
	key, err := d.items.DeleteOne(ctx, req.Collection, req.Args["id"])
	if err != nil {
		return nil, err
	}
	d.publish(ctx, req.Collection, events.EventDelete, key)
	return map[string]interface{}{"id": key}, nil
}

func (d *Dispatcher) readOne(ctx context.Context, req Request, key interface{}) (interface{}, error) {
	if !req.Query.HasFields() {
		return true, nil
	}
	return d.items.ReadOne(ctx, req.Collection, key, req.Query)
}

// readMany reads back every mutated record regardless of the default page size.
func (d *Dispatcher) readMany(ctx context.Context, req Request, keys []interface{}) (interface{}, error) {
	if !req.Query.HasFields() {
		return true, nil
	}
	q := req.Query.Clone()
	if q.Limit == nil {
		q.Limit = query.IntPtr(-1)
	}
	return d.items.ReadMany(ctx, req.Collection, keys, q)
}

func (d *Dispatcher) publish(ctx context.Context, collection string, event events.Event, keys ...interface{}) {
	if d.publisher == nil || len(keys) == 0 {
		return
	}
	d.publisher.Publish(ctx, collection, event, keys...)
	d.logger.Debug("mutation published",
		slog.String("collection", collection),
		slog.String("event", string(event)),
		slog.Int("count", len(keys)),
	)
}

func record(value interface{}) (dataaccess.Item, error) {
	switch v := value.(type) {
	case map[string]interface{}:
		return v, nil
	case nil:
		return dataaccess.Item{}, nil
	default:
		return nil, apierror.New(apierror.CodeInvalidPayload, "data must be an object, got %T", value)
	}
}

func records(value interface{}) ([]dataaccess.Item, error) {
	list, ok := value.([]interface{})
	if !ok && value != nil {
		return nil, apierror.New(apierror.CodeInvalidPayload, "data must be a list, got %T", value)
	}
	out := make([]dataaccess.Item, 0, len(list))
	for i, entry := range list {
		item, err := record(entry)
		if err != nil {
			return nil, apierror.New(apierror.CodeInvalidPayload, "data[%d]: %s", i, err.Error())
		}
		out = append(out, item)
	}
	return out, nil
}

func ids(value interface{}) []interface{} {
	if list, ok := value.([]interface{}); ok {
		return list
	}
	if value == nil {
		return nil
	}
	return []interface{}{value}
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer("collections-graphql/mutation").Start(ctx, name, trace.WithAttributes(attrs...))
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, fmt.Sprintf("%s: %s", apierror.CodeOf(err), err.Error()))
}
