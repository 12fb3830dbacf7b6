package observability

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"collections-graphql/internal/logging"
)

func testConfig() Config {
	return Config{
		ServiceName:    "collections-graphql-test",
		ServiceVersion: "1.0.0",
		Environment:    "test",
	}
}

func TestInitMeterProvider(t *testing.T) {
	mp, err := InitMeterProvider(testConfig())
	require.NoError(t, err)
	require.NotNil(t, mp.provider)
	require.NotNil(t, mp.exporter)
	require.NotNil(t, mp.Registry())

	assert.NoError(t, mp.Shutdown(context.Background(), logging.Discard().Logger))
}

func TestInitMetrics(t *testing.T) {
	mp, err := InitMeterProvider(testConfig())
	require.NoError(t, err)
	defer mp.Shutdown(context.Background(), logging.Discard().Logger)

	engine, cache, err := InitMetrics(logging.Discard().Logger)
	require.NoError(t, err)
	require.NotNil(t, engine.requestDuration)
	require.NotNil(t, engine.errorCounter)
	require.NotNil(t, engine.eventsPublished)
	require.NotNil(t, cache.builds)
	require.NotNil(t, cache.hits)

	ctx := context.Background()
	engine.IncrementActiveRequests(ctx)
	engine.RecordRequest(ctx, 5*time.Millisecond, true, "query", "items")
	engine.RecordError(ctx, "INVALID_QUERY", "query")
	engine.RecordEvents(ctx, 2, "posts", "create")
	engine.DecrementActiveRequests(ctx)
	cache.RecordMiss(ctx, "items", "graphql")
	cache.RecordBuild(ctx, "items", "graphql", time.Millisecond, nil)
	cache.RecordHit(ctx, "items", "graphql")

	families, err := mp.Registry().Gather()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "engine.prom")
	require.NoError(t, mp.WriteTextfile(path))
	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(written), "graphql_requests_total")
	names := make([]string, 0, len(families))
	for _, family := range families {
		names = append(names, family.GetName())
	}
	assert.Contains(t, names, "graphql_errors_total")
	assert.Contains(t, names, "schema_cache_hits_total")
}

func TestNilMetricsAreNoops(t *testing.T) {
	var engine *EngineMetrics
	var cache *SchemaCacheMetrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		engine.RecordRequest(ctx, time.Second, false, "query", "items")
		engine.RecordResultsCount(ctx, 3, "posts")
		engine.IncrementActiveRequests(ctx)
		cache.RecordHit(ctx, "system", "sdl")
		cache.RecordBuild(ctx, "system", "sdl", time.Second, assert.AnError)
	})
}

func TestInitTracerProviderWithoutExporter(t *testing.T) {
	tp, err := InitTracerProvider(context.Background(), testConfig())
	require.NoError(t, err)
	assert.NoError(t, tp.Shutdown(context.Background(), logging.Discard().Logger))
}

func TestInitLoggerProviderRequiresEndpoint(t *testing.T) {
	_, err := InitLoggerProvider(context.Background(), testConfig())
	assert.EqualError(t, err, "log export requires an OTLP endpoint")
}

func TestParseOTLPProtocol(t *testing.T) {
	tests := []struct {
		in      string
		want    otlpProtocol
		wantErr bool
	}{
		{in: "", want: otlpProtocolGRPC},
		{in: "GRPC", want: otlpProtocolGRPC},
		{in: "http", want: otlpProtocolHTTP},
		{in: "http/protobuf", want: otlpProtocolHTTP},
		{in: "thrift", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseOTLPProtocol(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSettingsFor(t *testing.T) {
	s, err := settingsFor(OTLPConfig{Endpoint: "https://collector:4318", Protocol: "http", Insecure: true, Compression: "gzip"})
	require.NoError(t, err)
	assert.True(t, s.url)
	assert.True(t, s.gzip)
	assert.Nil(t, s.tls)

	s, err = settingsFor(OTLPConfig{Endpoint: "collector:4317"})
	require.NoError(t, err)
	assert.False(t, s.url)
	assert.NotNil(t, s.tls)
}

func TestBuildTLSConfig(t *testing.T) {
	t.Run("missing CA file", func(t *testing.T) {
		_, err := buildTLSConfig(OTLPConfig{TLSCertFile: "/nonexistent/ca.pem"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read OTLP TLS CA file")
	})

	t.Run("CA file is not PEM", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ca.pem")
		require.NoError(t, os.WriteFile(path, []byte("not-a-cert"), 0o600))
		_, err := buildTLSConfig(OTLPConfig{TLSCertFile: path})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse OTLP TLS CA file")
	})

	t.Run("client cert without key", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "client.crt")
		require.NoError(t, os.WriteFile(path, []byte("not-a-cert"), 0o600))
		_, err := buildTLSConfig(OTLPConfig{TLSClientCertFile: path})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "OTLP TLS client cert and key must both be set")
	})
}

func TestTraceSamplerForRatio(t *testing.T) {
	params := func(ctx context.Context, id byte) sdktrace.SamplingParameters {
		return sdktrace.SamplingParameters{ParentContext: ctx, TraceID: trace.TraceID{id}, Name: "test"}
	}

	t.Run("boundaries", func(t *testing.T) {
		assert.Equal(t, sdktrace.Drop, traceSamplerForRatio(0).ShouldSample(params(context.Background(), 1)).Decision)
		assert.Equal(t, sdktrace.RecordAndSample, traceSamplerForRatio(1).ShouldSample(params(context.Background(), 2)).Decision)
	})

	t.Run("mid range follows the parent", func(t *testing.T) {
		sampler := traceSamplerForRatio(0.5)
		sampled := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
			TraceID:    trace.TraceID{3},
			SpanID:     trace.SpanID{1},
			TraceFlags: trace.FlagsSampled,
			Remote:     true,
		}))
		assert.Equal(t, sdktrace.RecordAndSample, sampler.ShouldSample(params(sampled, 4)).Decision)

		unsampled := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
			TraceID: trace.TraceID{5},
			SpanID:  trace.SpanID{2},
			Remote:  true,
		}))
		assert.Equal(t, sdktrace.Drop, sampler.ShouldSample(params(unsampled, 6)).Decision)
	})
}
