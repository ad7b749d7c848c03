package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RecommendationMetrics records recommendation request metrics.
type RecommendationMetrics interface {
	RecordRecommendation(ctx context.Context, kind, outcome string, duration time.Duration)
	RecordSupplement(ctx context.Context, outcome string)
}

type recommendationMetrics struct {
	requests   metric.Int64Counter
	duration   metric.Float64Histogram
	supplement metric.Int64Counter
}

// NewRecommendationMetrics creates RecommendationMetrics. Returns (nil, nil) when meter is nil.
func NewRecommendationMetrics(meter metric.Meter) (RecommendationMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	requests, err := meter.Int64Counter(
		MetricNameRecommendations,
		metric.WithDescription("Recommendation requests by kind (product, user) and outcome (success, empty, error)"),
	)
	if err != nil {
		return nil, fmt.Errorf("create recommendations counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		MetricNameRecommendationDuration,
		metric.WithDescription("Recommendation latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create recommendation duration histogram: %w", err)
	}

	supplement, err := meter.Int64Counter(
		MetricNameSupplementSearches,
		metric.WithDescription("Category supplement passes on the user path by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("create supplement counter: %w", err)
	}

	return &recommendationMetrics{requests: requests, duration: duration, supplement: supplement}, nil
}

func (m *recommendationMetrics) RecordRecommendation(ctx context.Context, kind, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(AttrKind, NormalizeKind(kind)),
		attribute.String(AttrOutcome, NormalizeOutcome(outcome)),
	)
	m.requests.Add(ctx, 1, attrs)
	m.duration.Record(ctx, duration.Seconds(), attrs)
}

func (m *recommendationMetrics) RecordSupplement(ctx context.Context, outcome string) {
	m.supplement.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrOutcome, NormalizeOutcome(outcome))))
}

// SyncMetrics records index rebuild metrics.
type SyncMetrics interface {
	RecordSync(ctx context.Context, outcome string, indexed, skipped int, duration time.Duration)
	SetQueueDepth(depth int)
}

type syncMetrics struct {
	runs     metric.Int64Counter
	duration metric.Float64Histogram
	indexed  metric.Int64Gauge
	skipped  metric.Int64Gauge
	queue    metric.Int64Gauge
}

// NewSyncMetrics creates SyncMetrics. Returns (nil, nil) when meter is nil.
func NewSyncMetrics(meter metric.Meter) (SyncMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	runs, err := meter.Int64Counter(MetricNameSyncRuns, metric.WithDescription("Index rebuilds by outcome"))
	if err != nil {
		return nil, fmt.Errorf("create sync runs counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		MetricNameSyncDuration,
		metric.WithDescription("Index rebuild duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create sync duration histogram: %w", err)
	}

	indexed, err := meter.Int64Gauge(MetricNameSyncIndexedProducts, metric.WithDescription("Products indexed by the last rebuild"))
	if err != nil {
		return nil, fmt.Errorf("create sync indexed gauge: %w", err)
	}

	skipped, err := meter.Int64Gauge(MetricNameSyncSkippedProducts, metric.WithDescription("Products skipped by the last rebuild"))
	if err != nil {
		return nil, fmt.Errorf("create sync skipped gauge: %w", err)
	}

	queue, err := meter.Int64Gauge(MetricNameSyncQueueDepth, metric.WithDescription("Sync jobs waiting in the product_sync queue"))
	if err != nil {
		return nil, fmt.Errorf("create sync queue depth gauge: %w", err)
	}

	return &syncMetrics{runs: runs, duration: duration, indexed: indexed, skipped: skipped, queue: queue}, nil
}

func (m *syncMetrics) RecordSync(ctx context.Context, outcome string, indexed, skipped int, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String(AttrOutcome, NormalizeOutcome(outcome)))
	m.runs.Add(ctx, 1, attrs)
	m.duration.Record(ctx, duration.Seconds(), attrs)

	if outcome == OutcomeSuccess {
		m.indexed.Record(ctx, int64(indexed))
		m.skipped.Record(ctx, int64(skipped))
	}
}

func (m *syncMetrics) SetQueueDepth(depth int) {
	m.queue.Record(context.Background(), int64(depth))
}

// EmbeddingMetrics records embedding provider calls.
type EmbeddingMetrics interface {
	RecordEmbedding(ctx context.Context, provider, outcome string, duration time.Duration)
}

type embeddingMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

// NewEmbeddingMetrics creates EmbeddingMetrics. Returns (nil, nil) when meter is nil.
func NewEmbeddingMetrics(meter metric.Meter) (EmbeddingMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	requests, err := meter.Int64Counter(
		MetricNameEmbeddingRequests,
		metric.WithDescription("Embedding provider calls by provider and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding requests counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		MetricNameEmbeddingDuration,
		metric.WithDescription("Embedding provider latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding duration histogram: %w", err)
	}

	return &embeddingMetrics{requests: requests, duration: duration}, nil
}

func (m *embeddingMetrics) RecordEmbedding(ctx context.Context, provider, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(AttrProvider, NormalizeProvider(provider)),
		attribute.String(AttrOutcome, NormalizeOutcome(outcome)),
	)
	m.requests.Add(ctx, 1, attrs)
	m.duration.Record(ctx, duration.Seconds(), attrs)
}
