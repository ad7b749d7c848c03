package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbricks/recommender/internal/models"
	"github.com/formbricks/recommender/internal/ranking"
	"github.com/formbricks/recommender/internal/recerrors"
)

func newActivityService(repo ActivityRepository, catalog CategoryProductsLister) *ActivityService {
	return NewActivityService(ActivityServiceParams{Activity: repo, Products: catalog, Params: ranking.DefaultParams()})
}

func TestActivityService_FetchActivity(t *testing.T) {
	svc := newActivityService(activityOf([]int64{5, 5, 3}, []int64{7, 9}), newFakeCatalog())

	activity, err := svc.FetchActivity(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 5, 3}, activity.Purchases)
	assert.Equal(t, []int64{7, 9}, activity.Views)
	assert.True(t, activity.Purchased(3))
	assert.True(t, activity.Viewed(9))
}

func TestActivityService_FetchActivity_StoreFailure(t *testing.T) {
	repo := &mockActivityRepo{
		viewsFunc: func(_ context.Context, _ int64) ([]models.ActivityRecord, error) {
			return nil, errors.New("connection refused")
		},
	}

	_, err := newActivityService(repo, newFakeCatalog()).FetchActivity(context.Background(), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, recerrors.ErrUpstreamUnavailable)
}

func TestActivityService_InteractedProducts(t *testing.T) {
	svc := newActivityService(activityOf([]int64{5}, []int64{7, 5, 9}), newFakeCatalog())

	set, err := svc.InteractedProducts(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, map[int64]struct{}{5: {}, 7: {}, 9: {}}, set)
}

func TestActivityService_RepresentativeProducts(t *testing.T) {
	t.Run("purchases then views, deduplicated", func(t *testing.T) {
		// First five purchase records are 5,3,5,1,2 and yield 5,3,1,2.
		repo := activityOf([]int64{5, 3, 5, 1, 2, 4}, []int64{3, 7, 8, 9, 10, 11, 12})
		svc := newActivityService(repo, newFakeCatalog())

		reps, err := svc.RepresentativeProducts(context.Background(), 1, 10)
		require.NoError(t, err)
		assert.Equal(t, []int64{5, 3, 1, 2, 7, 8, 9, 10}, reps)
	})

	t.Run("stops at max", func(t *testing.T) {
		repo := activityOf([]int64{1, 2, 3, 4, 5}, []int64{6, 7, 8})
		svc := newActivityService(repo, newFakeCatalog())

		reps, err := svc.RepresentativeProducts(context.Background(), 1, 6)
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2, 3, 4, 5, 6}, reps)
	})

	t.Run("falls back to most viewed category", func(t *testing.T) {
		catalog := newFakeCatalog(
			product(7, "Dune", 1, "Books"),
			product(10, "Emma", 1, "Books"),
			product(11, "Ulysses", 1, "Books"),
			product(12, "Kite", 2, "Toys"),
		)
		repo := activityOf(nil, []int64{7})
		repo.mostViewedFunc = func(_ context.Context, _ int64) (*int64, error) { return ptr(int64(1)), nil }

		reps, err := newActivityService(repo, catalog).RepresentativeProducts(context.Background(), 1, 10)
		require.NoError(t, err)
		assert.Equal(t, []int64{7, 10, 11}, reps)
	})

	t.Run("no activity and no fallback is empty", func(t *testing.T) {
		svc := newActivityService(&mockActivityRepo{}, newFakeCatalog())

		reps, err := svc.RepresentativeProducts(context.Background(), 1, 10)
		require.NoError(t, err)
		assert.Empty(t, reps)
	})

	t.Run("deterministic", func(t *testing.T) {
		catalog := newFakeCatalog(product(20, "a", 3, "c"), product(21, "b", 3, "c"), product(22, "c", 3, "c"))
		repo := activityOf([]int64{4, 1}, []int64{9, 4, 2})
		repo.mostViewedFunc = func(_ context.Context, _ int64) (*int64, error) { return ptr(int64(3)), nil }
		svc := newActivityService(repo, catalog)

		first, err := svc.RepresentativeProducts(context.Background(), 1, 10)
		require.NoError(t, err)

		second, err := svc.RepresentativeProducts(context.Background(), 1, 10)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, []int64{4, 1, 9, 2, 20, 21, 22}, first)
	})

	t.Run("fallback lookup failure is fatal", func(t *testing.T) {
		repo := activityOf(nil, []int64{7})
		repo.mostViewedFunc = func(_ context.Context, _ int64) (*int64, error) { return nil, errors.New("timeout") }

		_, err := newActivityService(repo, newFakeCatalog()).RepresentativeProducts(context.Background(), 1, 10)
		assert.ErrorIs(t, err, recerrors.ErrUpstreamUnavailable)
	})
}
