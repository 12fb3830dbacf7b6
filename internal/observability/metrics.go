package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "collections-graphql"

// EngineMetrics holds the metrics recorded for each executed operation.
type EngineMetrics struct {
	requestDuration metric.Float64Histogram
	requestCounter  metric.Int64Counter
	errorCounter    metric.Int64Counter
	activeRequests  metric.Int64UpDownCounter
	queryDepth      metric.Int64Histogram
	resultsCount    metric.Int64Histogram
	eventsPublished metric.Int64Counter
}

// InitEngineMetrics creates the engine instruments on the global meter provider.
func InitEngineMetrics() (*EngineMetrics, error) {
	meter := otel.Meter(meterName)

	requestDuration, err := meter.Float64Histogram(
		"graphql.request.duration",
		metric.WithDescription("Duration of GraphQL operations in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request duration histogram: %w", err)
	}

	requestCounter, err := meter.Int64Counter(
		"graphql.requests.total",
		metric.WithDescription("Total number of GraphQL operations"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}

	errorCounter, err := meter.Int64Counter(
		"graphql.errors.total",
		metric.WithDescription("Total number of GraphQL errors by code"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create error counter: %w", err)
	}

	activeRequests, err := meter.Int64UpDownCounter(
		"graphql.requests.active",
		metric.WithDescription("Number of operations currently executing"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active requests counter: %w", err)
	}

	queryDepth, err := meter.Int64Histogram(
		"graphql.query.depth",
		metric.WithDescription("Selection depth of GraphQL documents"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create query depth histogram: %w", err)
	}

	resultsCount, err := meter.Int64Histogram(
		"graphql.results.count",
		metric.WithDescription("Number of items returned by a read"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create results count histogram: %w", err)
	}

	eventsPublished, err := meter.Int64Counter(
		"graphql.events.published",
		metric.WithDescription("Number of mutation events published to subscribers"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create events counter: %w", err)
	}

	return &EngineMetrics{
		requestDuration: requestDuration,
		requestCounter:  requestCounter,
		errorCounter:    errorCounter,
		activeRequests:  activeRequests,
		queryDepth:      queryDepth,
		resultsCount:    resultsCount,
		eventsPublished: eventsPublished,
	}, nil
}

// RecordRequest records an operation with its duration and outcome.
func (m *EngineMetrics) RecordRequest(ctx context.Context, duration time.Duration, hasErrors bool, operationType, scope string) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("operation_type", operationType),
		attribute.String("scope", scope),
		attribute.Bool("has_errors", hasErrors),
	)
	m.requestDuration.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	m.requestCounter.Add(ctx, 1, attrs)
}

// RecordError counts one response error by its extension code.
func (m *EngineMetrics) RecordError(ctx context.Context, code, operationType string) {
	if m == nil {
		return
	}
	m.errorCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("code", code),
		attribute.String("operation_type", operationType),
	))
}

// RecordQueryDepth records the selection depth of a document.
func (m *EngineMetrics) RecordQueryDepth(ctx context.Context, depth int64, operationType string) {
	if m == nil {
		return
	}
	m.queryDepth.Record(ctx, depth, metric.WithAttributes(
		attribute.String("operation_type", operationType),
	))
}

// RecordResultsCount records the number of items a read returned.
func (m *EngineMetrics) RecordResultsCount(ctx context.Context, count int64, collection string) {
	if m == nil {
		return
	}
	m.resultsCount.Record(ctx, count, metric.WithAttributes(
		attribute.String("collection", collection),
	))
}

// RecordEvents counts published mutation events.
func (m *EngineMetrics) RecordEvents(ctx context.Context, count int64, collection, event string) {
	if m == nil || count <= 0 {
		return
	}
	m.eventsPublished.Add(ctx, count, metric.WithAttributes(
		attribute.String("collection", collection),
		attribute.String("event", event),
	))
}

// IncrementActiveRequests increments the active requests counter.
func (m *EngineMetrics) IncrementActiveRequests(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeRequests.Add(ctx, 1)
}

// DecrementActiveRequests decrements the active requests counter.
func (m *EngineMetrics) DecrementActiveRequests(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeRequests.Add(ctx, -1)
}

// InitMetrics initializes every engine and schema cache instrument.
func InitMetrics(logger *slog.Logger) (*EngineMetrics, *SchemaCacheMetrics, error) {
	engine, err := InitEngineMetrics()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize engine metrics: %w", err)
	}
	cache, err := InitSchemaCacheMetrics()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize schema cache metrics: %w", err)
	}
	if logger != nil {
		logger.Info("engine metrics initialized")
	}
	return engine, cache, nil
}
