package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/formbricks/recommender/internal/observability"
	"github.com/formbricks/recommender/pkg/cache"
)

// Cache names used in metrics.
const (
	CacheNameLocal  = "embedding_lru"
	CacheNameRemote = "embedding_redis"
)

// Store is a shared second-level cache for embeddings (e.g. Redis).
type Store interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Set(ctx context.Context, key string, vector []float32) error
}

// CachedClientParams configures NewCachedClient.
type CachedClientParams struct {
	Client Client
	// Model is part of the cache key so vectors of different models never mix.
	Model string
	Size  int
	// TTL bounds how long a vector stays in the local cache; zero keeps it until evicted.
	TTL time.Duration
	// LoadTimeout bounds a shared miss, which is detached from the caller that started it.
	// Zero means 30 seconds.
	LoadTimeout time.Duration
	// Store is optional.
	Store   Store
	Metrics observability.CacheMetrics
	Logger  *slog.Logger
}

// CachedClient decorates a Client with an in-process LRU (with singleflight) and an optional shared store.
// Returned vectors are shared between callers and must not be modified.
type CachedClient struct {
	inner   Client
	model   string
	local   *cache.LoaderCache[string, []float32]
	store   Store
	metrics observability.CacheMetrics
	logger  *slog.Logger
}

var errNilClient = errors.New("embeddings: cached client requires a client")

const defaultLoadTimeout = 30 * time.Second

// NewCachedClient creates the caching decorator.
func NewCachedClient(p CachedClientParams) (*CachedClient, error) {
	if p.Client == nil {
		return nil, errNilClient
	}

	loadTimeout := p.LoadTimeout
	if loadTimeout <= 0 {
		loadTimeout = defaultLoadTimeout
	}

	local, err := cache.NewLoaderCache[string, []float32](p.Size, p.TTL, func(k string) string { return k },
		cache.WithLoadTimeout(loadTimeout))
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}

	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &CachedClient{
		inner:   p.Client,
		model:   p.Model,
		local:   local,
		store:   p.Store,
		metrics: p.Metrics,
		logger:  logger,
	}, nil
}

// CacheKey derives the cache key for model and text.
func CacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(text))

	return model + ":" + hex.EncodeToString(sum[:])
}

// CreateEmbedding returns the cached vector for input, loading it on a miss.
func (c *CachedClient) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	key := CacheKey(c.model, input)

	vec, hit, err := c.local.GetWithStats(ctx, key, func(ctx context.Context, key string) ([]float32, error) {
		return c.load(ctx, key, input)
	})
	if err != nil {
		return nil, err
	}

	if c.metrics != nil {
		if hit {
			c.metrics.RecordHit(ctx, CacheNameLocal)
		} else {
			c.metrics.RecordMiss(ctx, CacheNameLocal)
		}
	}

	return vec, nil
}

func (c *CachedClient) load(ctx context.Context, key, input string) ([]float32, error) {
	if c.store != nil {
		vec, ok, err := c.store.Get(ctx, key)
		if err != nil {
			c.logger.WarnContext(ctx, "embedding store get failed", "error", err)
		} else if ok {
			if c.metrics != nil {
				c.metrics.RecordHit(ctx, CacheNameRemote)
			}

			return vec, nil
		}

		if c.metrics != nil {
			c.metrics.RecordMiss(ctx, CacheNameRemote)
		}
	}

	vec, err := c.inner.CreateEmbedding(ctx, input)
	if err != nil {
		return nil, err
	}

	if c.store != nil {
		if err := c.store.Set(ctx, key, vec); err != nil {
			c.logger.WarnContext(ctx, "embedding store set failed", "error", err)
		}
	}

	return vec, nil
}

// Invalidate drops every locally cached vector (e.g. after a model change).
func (c *CachedClient) Invalidate() {
	c.local.InvalidateAll()
}

var _ Client = (*CachedClient)(nil)
