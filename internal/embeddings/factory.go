package embeddings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/formbricks/recommender/internal/config"
	"github.com/formbricks/recommender/internal/googleai"
	"github.com/formbricks/recommender/internal/observability"
	"github.com/formbricks/recommender/internal/openai"
)

// ErrUnsupportedProvider is returned for an unknown EMBEDDING_PROVIDER.
var ErrUnsupportedProvider = errors.New("embeddings: unsupported provider")

// Default model names used in cache keys when EMBEDDING_MODEL is empty.
const (
	defaultHTTPModel = "sidecar"
	defaultMockModel = "mock"
)

// Stack is the embedding client built from configuration, with the resources it owns.
type Stack struct {
	Client Client
	// Provider is the configured provider name, e.g. "http".
	Provider string
	// Model is the model part of the cache key.
	Model string
	redis *RedisStore
}

// Close releases the Redis connection when one was opened.
func (s *Stack) Close() error {
	if s.redis == nil {
		return nil
	}

	return s.redis.Close()
}

// NewStackFromConfig builds provider -> metrics -> LRU (+ Redis) for cfg. metrics may be nil.
func NewStackFromConfig(
	ctx context.Context, cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger,
) (*Stack, error) {
	if logger == nil {
		logger = slog.Default()
	}

	provider, model, err := newProvider(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	var (
		embeddingMetrics observability.EmbeddingMetrics
		cacheMetrics     observability.CacheMetrics
	)

	if metrics != nil {
		embeddingMetrics = metrics.Embeddings
		cacheMetrics = metrics.Cache
	}

	stack := &Stack{Provider: cfg.EmbeddingProvider, Model: cfg.EmbeddingProvider + "/" + model}

	params := CachedClientParams{
		Client:  NewInstrumentedClient(provider, cfg.EmbeddingProvider, embeddingMetrics),
		Model:   stack.Model,
		Size:    cfg.EmbeddingCacheSize,
		TTL:     cfg.EmbeddingCacheTTL,
		Metrics: cacheMetrics,
		Logger:  logger,
	}

	if cfg.RedisURL != "" {
		store, err := NewRedisStore(ctx, cfg.RedisURL, cfg.EmbeddingCacheTTL)
		if err != nil {
			return nil, err
		}

		stack.redis = store
		params.Store = store

		logger.Info("embedding redis cache enabled", "ttl", cfg.EmbeddingCacheTTL)
	}

	cached, err := NewCachedClient(params)
	if err != nil {
		_ = stack.Close()

		return nil, err
	}

	stack.Client = cached

	logger.Info("embeddings configured",
		"provider", cfg.EmbeddingProvider,
		"model", model,
		"dimensions", cfg.EmbeddingDimensions,
		"cache_size", cfg.EmbeddingCacheSize,
	)

	return stack, nil
}

func newProvider(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Client, string, error) {
	switch cfg.EmbeddingProvider {
	case config.EmbeddingProviderOpenAI:
		c := openai.NewClient(cfg.EmbeddingProviderAPIKey,
			openai.WithModel(cfg.EmbeddingModel),
			openai.WithDimensions(cfg.EmbeddingDimensions),
		)

		return c, c.Model(), nil
	case config.EmbeddingProviderGoogle:
		c, err := googleai.NewClient(ctx, cfg.EmbeddingProviderAPIKey,
			googleai.WithModel(cfg.EmbeddingModel),
			googleai.WithDimensions(cfg.EmbeddingDimensions),
		)
		if err != nil {
			return nil, "", fmt.Errorf("create google embedding client: %w", err)
		}

		return c, c.Model(), nil
	case config.EmbeddingProviderHTTP:
		model := cfg.EmbeddingModel
		if model == "" {
			model = defaultHTTPModel
		}

		return NewHTTPClient(HTTPClientOptions{
			BaseURL:    cfg.EmbeddingServiceURL,
			Dimensions: cfg.EmbeddingDimensions,
			Logger:     logger,
		}), model, nil
	case config.EmbeddingProviderMock:
		logger.Warn("using mock embeddings; recommendations are not semantic")

		return NewMockClient(cfg.EmbeddingDimensions), defaultMockModel, nil
	default:
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.EmbeddingProvider)
	}
}
