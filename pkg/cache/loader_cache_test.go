package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identity(s string) string { return s }

func TestLoaderCache_GetWithStats_MissThenHit(t *testing.T) {
	loads := atomic.Int32{}

	c, err := NewLoaderCache[string, string](10, 0, identity)
	require.NoError(t, err)

	ctx := context.Background()
	load := func(_ context.Context, key string) (string, error) {
		loads.Add(1)

		return "v-" + key, nil
	}

	v, hit, err := c.GetWithStats(ctx, "a", load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "v-a", v)

	v, hit, err = c.GetWithStats(ctx, "a", load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "v-a", v)
	assert.Equal(t, int32(1), loads.Load())
}

func TestLoaderCache_GetWithStats_Coalesces(t *testing.T) {
	c, err := NewLoaderCache[string, int](10, 0, identity)
	require.NoError(t, err)

	release := make(chan struct{})
	loads := atomic.Int32{}
	load := func(_ context.Context, _ string) (int, error) {
		loads.Add(1)
		<-release

		return 42, nil
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			v, err := c.Get(context.Background(), "x", load)
			assert.NoError(t, err)
			assert.Equal(t, 42, v)
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.GreaterOrEqual(t, loads.Load(), int32(1))
	assert.Equal(t, 1, c.Len())
}

func TestLoaderCache_TTL(t *testing.T) {
	c, err := NewLoaderCache[string, string](10, 30*time.Millisecond, identity)
	require.NoError(t, err)

	c.Add("a", "1")

	v, ok := c.Peek("a")
	require.True(t, ok)
	assert.Equal(t, "1", v)

	assert.Eventually(t, func() bool {
		_, ok := c.Peek("a")

		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestLoaderCache_Invalidate(t *testing.T) {
	c, err := NewLoaderCache[string, string](10, 0, identity)
	require.NoError(t, err)

	ctx := context.Background()
	load := func(_ context.Context, key string) (string, error) { return "v-" + key, nil }

	_, _ = c.Get(ctx, "a", load)
	_, _ = c.Get(ctx, "b", load)
	assert.Equal(t, 2, c.Len())

	c.Invalidate("a")
	assert.Equal(t, 1, c.Len())

	_, hit, _ := c.GetWithStats(ctx, "a", load)
	assert.False(t, hit)

	c.InvalidateAll()
	assert.Equal(t, 0, c.Len())
}

func TestLoaderCache_LoadErrorNotCached(t *testing.T) {
	c, err := NewLoaderCache[string, string](10, 0, identity)
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "a", func(_ context.Context, _ string) (string, error) {
		return "", context.DeadlineExceeded
	})
	require.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, 0, c.Len())
}

func TestNewLoaderCache_InvalidSize(t *testing.T) {
	_, err := NewLoaderCache[string, string](0, 0, identity)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestLoaderCache_Get_CallerCancelDoesNotFailWaiters(t *testing.T) {
	c, err := NewLoaderCache[string, int](10, 0, identity)
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})

	var once sync.Once

	load := func(ctx context.Context, _ string) (int, error) {
		once.Do(func() { close(started) })

		select {
		case <-release:
			return 7, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)

	go func() {
		_, err := c.Get(firstCtx, "k", load)
		firstErr <- err
	}()

	<-started

	second := make(chan int, 1)

	go func() {
		v, err := c.Get(context.Background(), "k", load)
		assert.NoError(t, err)
		second <- v
	}()

	cancelFirst()
	require.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)

	select {
	case v := <-second:
		assert.Equal(t, 7, v)
	case <-time.After(time.Second):
		t.Fatal("waiter did not receive the shared load")
	}

	v, ok := c.Peek("k")
	assert.True(t, ok)
	assert.Equal(t, 7, v)
}

func TestLoaderCache_Get_LoadTimeout(t *testing.T) {
	c, err := NewLoaderCache[string, int](10, 0, identity, WithLoadTimeout(20*time.Millisecond))
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "slow", func(ctx context.Context, _ string) (int, error) {
		<-ctx.Done()

		return 0, ctx.Err()
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, c.Len())
}
