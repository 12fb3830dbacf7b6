package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SchemaCacheMetrics tracks how often composed schemas are served from cache.
type SchemaCacheMetrics struct {
	builds        metric.Int64Counter
	hits          metric.Int64Counter
	misses        metric.Int64Counter
	buildDuration metric.Float64Histogram
}

// InitSchemaCacheMetrics creates the schema cache instruments.
func InitSchemaCacheMetrics() (*SchemaCacheMetrics, error) {
	meter := otel.Meter(meterName)

	builds, err := meter.Int64Counter(
		"schema.cache.builds",
		metric.WithDescription("Number of schema builds by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema builds counter: %w", err)
	}
	hits, err := meter.Int64Counter(
		"schema.cache.hits",
		metric.WithDescription("Number of schema requests served from cache"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema cache hits counter: %w", err)
	}
	misses, err := meter.Int64Counter(
		"schema.cache.misses",
		metric.WithDescription("Number of schema requests that required a build"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema cache misses counter: %w", err)
	}
	buildDuration, err := meter.Float64Histogram(
		"schema.build.duration",
		metric.WithDescription("Duration of schema builds in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema build duration histogram: %w", err)
	}

	return &SchemaCacheMetrics{
		builds:        builds,
		hits:          hits,
		misses:        misses,
		buildDuration: buildDuration,
	}, nil
}

// RecordHit counts a cache hit.
func (m *SchemaCacheMetrics) RecordHit(ctx context.Context, scope, format string) {
	if m == nil {
		return
	}
	m.hits.Add(ctx, 1, metric.WithAttributes(cacheAttrs(scope, format)...))
}

// RecordMiss counts a cache miss.
func (m *SchemaCacheMetrics) RecordMiss(ctx context.Context, scope, format string) {
	if m == nil {
		return
	}
	m.misses.Add(ctx, 1, metric.WithAttributes(cacheAttrs(scope, format)...))
}

// RecordBuild records one build and how long it took.
func (m *SchemaCacheMetrics) RecordBuild(ctx context.Context, scope, format string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	attrs := append(cacheAttrs(scope, format), attribute.String("result", result))
	m.builds.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.buildDuration.Record(ctx, float64(duration.Microseconds())/1000, metric.WithAttributes(attrs...))
}

func cacheAttrs(scope, format string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("scope", scope),
		attribute.String("format", format),
	}
}
