package observability

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/formbricks/recommender/internal/config"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		fn   func(string) string
		in   string
		want string
	}{
		{"known outcome", NormalizeOutcome, OutcomeEmpty, OutcomeEmpty},
		{"unknown outcome", NormalizeOutcome, "timeout", "other"},
		{"known kind", NormalizeKind, RecommendationKindUser, RecommendationKindUser},
		{"unknown kind", NormalizeKind, "", "other"},
		{"known provider", NormalizeProvider, "google", "google"},
		{"unknown provider", NormalizeProvider, "cohere", "other"},
		{"known cache", NormalizeCacheName, "embedding_redis", "embedding_redis"},
		{"unknown cache", NormalizeCacheName, "sessions", "other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.fn(tt.in))
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestTraceContextHandler_AddsRequestID(t *testing.T) {
	var buf bytes.Buffer

	logger := NewLogger(&buf, "info")
	ctx := WithRequestID(context.Background(), "req-123")

	logger.InfoContext(ctx, "hello")
	assert.Contains(t, buf.String(), "request_id=req-123")

	buf.Reset()
	logger.DebugContext(ctx, "hidden")
	assert.Empty(t, buf.String())
}

func TestTraceContextHandler_AddsTraceIDs(t *testing.T) {
	var buf bytes.Buffer

	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	NewLogger(&buf, "info").InfoContext(ctx, "traced")
	assert.Contains(t, buf.String(), "trace_id="+span.SpanContext().TraceID().String())
}

func TestRecommendationMetrics_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	metrics, err := NewMetrics(mp.Meter("test"))
	require.NoError(t, err)
	require.NotNil(t, metrics)

	ctx := context.Background()
	metrics.Recommendations.RecordRecommendation(ctx, RecommendationKindProduct, OutcomeSuccess, 20*time.Millisecond)
	metrics.Sync.RecordSync(ctx, OutcomeSuccess, 10, 2, time.Second)
	metrics.Sync.SetQueueDepth(3)
	metrics.Cache.RecordHit(ctx, "embedding_lru")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
		}
	}

	assert.True(t, names[MetricNameRecommendations])
	assert.True(t, names[MetricNameSyncRuns])
	assert.True(t, names[MetricNameSyncIndexedProducts])
	assert.True(t, names[MetricNameSyncQueueDepth])
	assert.True(t, names[MetricNameCacheHits])
}

func TestNewMetrics_NilMeter(t *testing.T) {
	metrics, err := NewMetrics(nil)
	require.NoError(t, err)
	assert.Nil(t, metrics)
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	mp, err := NewMeterProvider(context.Background(), &config.Config{})
	require.NoError(t, err)
	assert.Nil(t, mp)
	assert.Nil(t, mp.ServiceMeter())
	assert.NoError(t, ShutdownMeterProvider(context.Background(), mp))
}

func TestNewMeterProvider_Prometheus(t *testing.T) {
	mp, err := NewMeterProvider(context.Background(), &config.Config{OtelMetricsExporter: ExporterPrometheus})
	require.NoError(t, err)
	require.NotNil(t, mp)
	t.Cleanup(func() { _ = ShutdownMeterProvider(context.Background(), mp) })

	assert.NotNil(t, mp.Handler)
	assert.NotNil(t, mp.ServiceMeter())
}

func TestSamplerFromEnv(t *testing.T) {
	assert.Contains(t, samplerFromEnv("always_off", "").Description(), "AlwaysOff")
	assert.Contains(t, samplerFromEnv("traceidratio", "0.25").Description(), "0.25")
	assert.Contains(t, samplerFromEnv("", "").Description(), "ParentBased")
	assert.InDelta(t, 1.0, traceIDRatio("2"), 1e-9)
}
