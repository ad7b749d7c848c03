package embeddings

import (
	"context"
	"time"

	"github.com/formbricks/recommender/internal/observability"
)

// InstrumentedClient records latency and outcome of every provider call.
type InstrumentedClient struct {
	inner    Client
	provider string
	metrics  observability.EmbeddingMetrics
}

// NewInstrumentedClient wraps inner. It returns inner unchanged when metrics is nil.
func NewInstrumentedClient(inner Client, provider string, metrics observability.EmbeddingMetrics) Client {
	if metrics == nil {
		return inner
	}

	return &InstrumentedClient{inner: inner, provider: provider, metrics: metrics}
}

// CreateEmbedding delegates to the wrapped client.
func (c *InstrumentedClient) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	start := time.Now()

	vec, err := c.inner.CreateEmbedding(ctx, input)

	outcome := observability.OutcomeSuccess
	if err != nil {
		outcome = observability.OutcomeError
	}

	c.metrics.RecordEmbedding(ctx, c.provider, outcome, time.Since(start))

	return vec, err
}
