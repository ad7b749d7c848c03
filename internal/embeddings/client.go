// Package embeddings provides embedding providers for product text: a client for the local
// embedding sidecar, a deterministic mock, and a caching decorator usable over any provider.
package embeddings

import "context"

// Client turns text into a fixed-length unit vector.
type Client interface {
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)
}
