package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	prometheusexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"

	"github.com/formbricks/recommender/internal/config"
)

// Metrics exporters accepted in OTEL_METRICS_EXPORTER.
const (
	ExporterOTLP       = "otlp"
	ExporterPrometheus = "prometheus"
)

const (
	serviceName          = "recommender-api"
	meterScope           = "github.com/formbricks/recommender"
	metricExportInterval = 60 * time.Second
	cardinalityLimit     = 2000
)

// durationBounds are second-based buckets; the SDK defaults are millisecond-oriented.
var durationBounds = []float64{0, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300}

func newResource() (*resource.Resource, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("merge resource: %w", err)
	}

	return res, nil
}

// MeterProvider bundles the SDK provider with the /metrics handler (Prometheus exporter only).
type MeterProvider struct {
	*sdkmetric.MeterProvider
	// Handler serves /metrics; nil unless the Prometheus exporter is selected.
	Handler http.Handler
}

// NewMeterProvider creates a MeterProvider for cfg.OtelMetricsExporter ("otlp" push or "prometheus" pull).
// Any other value disables metrics and returns (nil, nil).
func NewMeterProvider(ctx context.Context, cfg *config.Config) (*MeterProvider, error) {
	if cfg == nil {
		//nolint:nilnil // intentional: metrics disabled, caller checks for nil
		return nil, nil
	}

	res, err := newResource()
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	var (
		reader  sdkmetric.Reader
		handler http.Handler
	)

	switch cfg.OtelMetricsExporter {
	case ExporterOTLP:
		// SDK reads OTEL_EXPORTER_OTLP_ENDPOINT (and scheme/insecure) from env.
		exp, err := otlpmetrichttp.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("create OTLP metric exporter: %w", err)
		}

		reader = sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(metricExportInterval))
	case ExporterPrometheus:
		reg := prometheus.NewRegistry()

		exp, err := prometheusexporter.New(prometheusexporter.WithRegisterer(reg))
		if err != nil {
			return nil, fmt.Errorf("create prometheus exporter: %w", err)
		}

		reader = exp
		handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	default:
		//nolint:nilnil // intentional: metrics disabled or unsupported exporter, caller checks for nil
		return nil, nil
	}

	view := sdkmetric.NewView(
		sdkmetric.Instrument{Name: "recommender_*_duration_seconds"},
		sdkmetric.Stream{Aggregation: sdkmetric.AggregationExplicitBucketHistogram{Boundaries: durationBounds}},
	)

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
		sdkmetric.WithView(view),
		sdkmetric.WithCardinalityLimit(cardinalityLimit),
	)

	return &MeterProvider{MeterProvider: provider, Handler: handler}, nil
}

// ServiceMeter returns the recommender meter, or nil when metrics are disabled.
func (p *MeterProvider) ServiceMeter() metric.Meter {
	if p == nil {
		return nil
	}

	return p.MeterProvider.Meter(meterScope)
}

// ShutdownMeterProvider flushes and shuts down the MeterProvider. Safe to call with nil.
func ShutdownMeterProvider(ctx context.Context, provider *MeterProvider) error {
	if provider == nil {
		return nil
	}

	if err := provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("meter provider shutdown: %w", err)
	}

	return nil
}

// Metrics holds every metric collector. When metrics are disabled the whole value is nil.
type Metrics struct {
	HTTP            HTTPMetrics
	Recommendations RecommendationMetrics
	Sync            SyncMetrics
	Embeddings      EmbeddingMetrics
	Cache           CacheMetrics
}

// NewMetrics creates all collectors from meter. Returns (nil, nil) when meter is nil.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	httpMetrics, err := NewHTTPMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("http metrics: %w", err)
	}

	recs, err := NewRecommendationMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("recommendation metrics: %w", err)
	}

	syncMetrics, err := NewSyncMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("sync metrics: %w", err)
	}

	emb, err := NewEmbeddingMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("embedding metrics: %w", err)
	}

	cache, err := NewCacheMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("cache metrics: %w", err)
	}

	return &Metrics{
		HTTP:            httpMetrics,
		Recommendations: recs,
		Sync:            syncMetrics,
		Embeddings:      emb,
		Cache:           cache,
	}, nil
}
