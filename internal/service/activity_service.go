package service

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/formbricks/recommender/internal/models"
	"github.com/formbricks/recommender/internal/ranking"
	"github.com/formbricks/recommender/internal/recerrors"
)

// ActivityRepository reads a user's activity logs.
type ActivityRepository interface {
	ListPurchases(ctx context.Context, userID int64) ([]models.ActivityRecord, error)
	ListViews(ctx context.Context, userID int64) ([]models.ActivityRecord, error)
	MostViewedCategory(ctx context.Context, userID int64) (*int64, error)
}

// CategoryProductsLister lists product ids of a category for the representative fallback.
type CategoryProductsLister interface {
	ListIDsInCategory(ctx context.Context, categoryID int64, exclude []int64, limit int) ([]int64, error)
}

// ActivityService derives activity snapshots and representative products for users.
type ActivityService struct {
	activity ActivityRepository
	products CategoryProductsLister
	params   ranking.Params
	logger   *slog.Logger
}

// ActivityServiceParams configures ActivityService.
type ActivityServiceParams struct {
	Activity ActivityRepository
	Products CategoryProductsLister
	Params   ranking.Params
	Logger   *slog.Logger
}

// NewActivityService creates an ActivityService.
func NewActivityService(p ActivityServiceParams) *ActivityService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ActivityService{
		activity: p.Activity,
		products: p.Products,
		params:   p.Params,
		logger:   logger,
	}
}

// FetchActivity loads the user's purchases and views, most recent first.
// A user without activity yields an empty snapshot, not an error.
func (s *ActivityService) FetchActivity(ctx context.Context, userID int64) (*models.UserActivity, error) {
	var purchases, views []models.ActivityRecord

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error

		purchases, err = s.activity.ListPurchases(gctx, userID)
		if err != nil {
			return fmt.Errorf("list purchases: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		var err error

		views, err = s.activity.ListViews(gctx, userID)
		if err != nil {
			return fmt.Errorf("list views: %w", err)
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		s.logger.ErrorContext(ctx, "fetch activity failed", "user_id", userID, "error", err)

		return nil, recerrors.NewUpstreamUnavailableError(recerrors.DependencyRelationalStore, err)
	}

	return models.NewUserActivity(userID, purchases, views), nil
}

// InteractedProducts returns the set of products the user purchased or viewed.
func (s *ActivityService) InteractedProducts(ctx context.Context, userID int64) (map[int64]struct{}, error) {
	activity, err := s.FetchActivity(ctx, userID)
	if err != nil {
		return nil, err
	}

	return activity.Interacted(), nil
}

// RepresentativeProducts returns up to limit product ids that stand for the user's taste.
// A non-positive limit uses the configured maximum.
func (s *ActivityService) RepresentativeProducts(ctx context.Context, userID int64, limit int) ([]int64, error) {
	activity, err := s.FetchActivity(ctx, userID)
	if err != nil {
		return nil, err
	}

	return s.SelectRepresentatives(ctx, activity, limit)
}

// SelectRepresentatives picks representative products from a snapshot: the most recent purchases,
// then the most recent views, then products of the user's most viewed category.
// Ids are deduplicated as encountered and the result is deterministic for a given snapshot.
func (s *ActivityService) SelectRepresentatives(
	ctx context.Context, activity *models.UserActivity, limit int,
) ([]int64, error) {
	if limit <= 0 {
		limit = s.params.RepresentativeMax
	}

	selected := make([]int64, 0, limit)
	seen := make(map[int64]struct{}, limit)

	take := func(ids []int64, n int) {
		for _, id := range ids[:min(n, len(ids))] {
			if len(selected) >= limit {
				return
			}

			if _, dup := seen[id]; dup {
				continue
			}

			seen[id] = struct{}{}
			selected = append(selected, id)
		}
	}

	take(activity.Purchases, s.params.RepresentativePurchases)
	take(activity.Views, s.params.RepresentativeViews)

	if len(selected) >= limit {
		return selected, nil
	}

	categoryID, err := s.activity.MostViewedCategory(ctx, activity.UserID)
	if err != nil {
		return nil, recerrors.NewUpstreamUnavailableError(recerrors.DependencyRelationalStore, err)
	}

	if categoryID == nil {
		return selected, nil
	}

	fallback, err := s.products.ListIDsInCategory(ctx, *categoryID, selected, limit-len(selected))
	if err != nil {
		return nil, recerrors.NewUpstreamUnavailableError(recerrors.DependencyRelationalStore, err)
	}

	s.logger.DebugContext(ctx, "representative fallback",
		"user_id", activity.UserID, "category_id", *categoryID, "count", len(fallback))

	take(fallback, len(fallback))

	return selected, nil
}
