// Package cache provides a generic loader cache: a size-bounded LRU with optional entry TTL,
// and singleflight so concurrent misses for one key trigger a single load.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// LoaderCache loads values on miss via a callback.
// Keys are converted to strings via keyToString for the LRU and singleflight.
type LoaderCache[K comparable, V any] struct {
	lru         *expirable.LRU[string, V]
	group       singleflight.Group
	keyToString func(K) string
	loadTimeout time.Duration
}

// Option configures a LoaderCache.
type Option func(*options)

type options struct {
	loadTimeout time.Duration
}

// WithLoadTimeout bounds each shared load. Zero leaves loads bounded only by the loader itself.
func WithLoadTimeout(d time.Duration) Option {
	return func(o *options) {
		o.loadTimeout = d
	}
}

// NewLoaderCache creates a loader cache holding at most maxEntries values.
// Entries expire after ttl; ttl <= 0 keeps them until evicted.
func NewLoaderCache[K comparable, V any](
	maxEntries int, ttl time.Duration, keyToString func(K) string, opts ...Option,
) (*LoaderCache[K, V], error) {
	if maxEntries <= 0 {
		return nil, ErrInvalidSize
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	return &LoaderCache[K, V]{
		lru:         expirable.NewLRU[string, V](maxEntries, nil, ttl),
		keyToString: keyToString,
		loadTimeout: o.loadTimeout,
	}, nil
}

// Get returns the value for key, loading it via load on cache miss.
func (c *LoaderCache[K, V]) Get(ctx context.Context, key K, load func(context.Context, K) (V, error)) (V, error) {
	v, _, err := c.GetWithStats(ctx, key, load)

	return v, err
}

// GetWithStats is like Get but also reports whether the value came from the cache.
// The shared load ignores the cancellation of whichever caller started it; each caller stops
// waiting when its own ctx is done.
func (c *LoaderCache[K, V]) GetWithStats(ctx context.Context, key K, load func(context.Context, K) (V, error)) (V, bool, error) {
	keyStr := c.keyToString(key)
	if v, ok := c.lru.Get(keyStr); ok {
		return v, true, nil
	}

	ch := c.group.DoChan(keyStr, func() (any, error) {
		loadCtx := context.WithoutCancel(ctx)

		if c.loadTimeout > 0 {
			var cancel context.CancelFunc

			loadCtx, cancel = context.WithTimeout(loadCtx, c.loadTimeout)
			defer cancel()
		}

		loaded, loadErr := load(loadCtx, key)
		if loadErr != nil {
			return zero[V](), loadErr
		}

		c.lru.Add(keyStr, loaded)

		return loaded, nil
	})

	select {
	case <-ctx.Done():
		return zero[V](), false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero[V](), false, res.Err
		}

		return res.Val.(V), false, nil
	}
}

// Peek returns a cached value without loading or touching recency.
func (c *LoaderCache[K, V]) Peek(key K) (V, bool) {
	return c.lru.Peek(c.keyToString(key))
}

// Add stores value for key, replacing any cached value.
func (c *LoaderCache[K, V]) Add(key K, value V) {
	c.lru.Add(c.keyToString(key), value)
}

func zero[V any]() (z V) { return z }

// Invalidate removes the entry for key.
func (c *LoaderCache[K, V]) Invalidate(key K) {
	c.lru.Remove(c.keyToString(key))
}

// InvalidateAll removes all entries.
func (c *LoaderCache[K, V]) InvalidateAll() {
	c.lru.Purge()
}

// Len returns the number of entries in the cache.
func (c *LoaderCache[K, V]) Len() int {
	return c.lru.Len()
}
