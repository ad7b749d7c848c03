package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/formbricks/recommender/internal/models"
	"github.com/formbricks/recommender/internal/ranking"
	"github.com/formbricks/recommender/internal/recerrors"
	"github.com/formbricks/recommender/pkg/embeddings"
)

// EmbeddingClient turns text into a unit vector.
type EmbeddingClient interface {
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)
}

// ProductReader reads products and categories from the relational store.
type ProductReader interface {
	GetByID(ctx context.Context, id int64) (*models.Product, error)
	GetByIDs(ctx context.Context, ids []int64) (map[int64]*models.Product, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
}

// ProfileService builds user profile vectors and category preferences.
type ProfileService struct {
	activity   *ActivityService
	products   ProductReader
	embeddings EmbeddingClient
	params     ranking.Params
	logger     *slog.Logger
}

// ProfileServiceParams configures ProfileService.
type ProfileServiceParams struct {
	Activity   *ActivityService
	Products   ProductReader
	Embeddings EmbeddingClient
	Params     ranking.Params
	Logger     *slog.Logger
}

// NewProfileService creates a ProfileService.
func NewProfileService(p ProfileServiceParams) *ProfileService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ProfileService{
		activity:   p.Activity,
		products:   p.Products,
		embeddings: p.Embeddings,
		params:     p.Params,
		logger:     logger,
	}
}

// userProfile is everything derived from one activity snapshot.
type userProfile struct {
	activity        *models.UserActivity
	representatives []int64
	// vector is nil when no profile could be built.
	vector          []float32
	categoryWeights map[int64]float64
	preferredTags   map[string]struct{}
	products        map[int64]*models.Product
}

// BuildProfileVector returns the user's unit-length profile vector, or nil when the user has no
// usable activity. A non-positive limit uses the configured representative maximum.
func (s *ProfileService) BuildProfileVector(ctx context.Context, userID int64, limit int) ([]float32, error) {
	activity, err := s.activity.FetchActivity(ctx, userID)
	if err != nil {
		return nil, err
	}

	reps, err := s.activity.SelectRepresentatives(ctx, activity, limit)
	if err != nil {
		return nil, err
	}

	products, err := s.loadProducts(ctx, reps)
	if err != nil {
		return nil, err
	}

	return s.profileVector(ctx, activity, reps, products)
}

// build derives the full profile of a user from a single activity snapshot.
func (s *ProfileService) build(ctx context.Context, userID int64) (*userProfile, error) {
	activity, err := s.activity.FetchActivity(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile := &userProfile{
		activity:        activity,
		representatives: []int64{},
		categoryWeights: map[int64]float64{},
		preferredTags:   map[string]struct{}{},
		products:        map[int64]*models.Product{},
	}

	reps, err := s.activity.SelectRepresentatives(ctx, activity, s.params.RepresentativeMax)
	if err != nil {
		return nil, err
	}

	profile.representatives = reps

	purchases := firstN(activity.Purchases, s.params.PreferencePurchases)
	views := firstN(activity.Views, s.params.PreferenceViews)

	ids := make([]int64, 0, len(reps)+len(purchases)+len(views))
	ids = append(ids, reps...)
	ids = append(ids, purchases...)
	ids = append(ids, views...)

	profile.products, err = s.loadProducts(ctx, ids)
	if err != nil {
		return nil, err
	}

	profile.vector, err = s.profileVector(ctx, activity, reps, profile.products)
	if err != nil {
		return nil, err
	}

	profile.categoryWeights, profile.preferredTags = s.preferences(purchases, views, profile.products)

	return profile, nil
}

func (s *ProfileService) loadProducts(ctx context.Context, ids []int64) (map[int64]*models.Product, error) {
	if len(ids) == 0 {
		return map[int64]*models.Product{}, nil
	}

	unique := slices.Clone(ids)
	slices.Sort(unique)
	unique = slices.Compact(unique)

	products, err := s.products.GetByIDs(ctx, unique)
	if err != nil {
		return nil, recerrors.NewUpstreamUnavailableError(recerrors.DependencyRelationalStore, err)
	}

	return products, nil
}

// profileVector embeds the representative products and averages them by activity weight.
func (s *ProfileService) profileVector(
	ctx context.Context, activity *models.UserActivity, reps []int64, products map[int64]*models.Product,
) ([]float32, error) {
	if len(reps) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(reps))
	weights := make([]float64, 0, len(reps))

	for _, id := range reps {
		product, ok := products[id]
		if !ok || !models.Embeddable(product) {
			s.logger.DebugContext(ctx, "skipping representative product", "product_id", id)

			continue
		}

		vec, err := s.embeddings.CreateEmbedding(ctx, models.CanonicalText(product))
		if err != nil {
			return nil, recerrors.NewUpstreamUnavailableError(recerrors.DependencyEmbeddingProvider, err)
		}

		vectors = append(vectors, vec)
		weights = append(weights, s.productWeight(activity, id))
	}

	mean, err := embeddings.WeightedMean(vectors, weights)
	if err != nil {
		return nil, fmt.Errorf("average profile vectors: %w", err)
	}

	if mean == nil || !embeddings.NormalizeL2(mean) {
		return nil, nil
	}

	return mean, nil
}

// productWeight prefers the purchase weight when a product was both bought and viewed.
func (s *ProfileService) productWeight(activity *models.UserActivity, productID int64) float64 {
	switch {
	case activity.Purchased(productID):
		return s.params.Weights.Purchase
	case activity.Viewed(productID):
		return s.params.Weights.View
	default:
		return s.params.Weights.Fallback
	}
}

// preferences accumulates category weights over recent purchases and views, and collects the tags
// of the purchased products.
func (s *ProfileService) preferences(
	purchases, views []int64, products map[int64]*models.Product,
) (map[int64]float64, map[string]struct{}) {
	weights := map[int64]float64{}
	tags := map[string]struct{}{}

	for _, id := range purchases {
		product, ok := products[id]
		if !ok {
			continue
		}

		if product.CategoryID != nil {
			weights[*product.CategoryID] += s.params.Weights.Purchase
		}

		for _, tag := range product.Tags {
			tags[tag] = struct{}{}
		}
	}

	for _, id := range views {
		product, ok := products[id]
		if !ok || product.CategoryID == nil {
			continue
		}

		weights[*product.CategoryID] += s.params.Weights.View
	}

	return weights, tags
}

// ExplainProfile reports how the user's profile is derived.
func (s *ProfileService) ExplainProfile(ctx context.Context, userID int64) (*models.ProfileExplanation, error) {
	profile, err := s.build(ctx, userID)
	if err != nil {
		return nil, err
	}

	categories, err := s.products.ListCategories(ctx)
	if err != nil {
		return nil, recerrors.NewUpstreamUnavailableError(recerrors.DependencyRelationalStore, err)
	}

	names := make(map[int64]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	prefs := make([]models.CategoryWeight, 0, len(profile.categoryWeights))
	for _, id := range ranking.TopCategories(profile.categoryWeights, len(profile.categoryWeights)) {
		prefs = append(prefs, models.CategoryWeight{
			CategoryID: id,
			Name:       names[id],
			Weight:     profile.categoryWeights[id],
		})
	}

	excluded := make([]int64, 0, len(profile.activity.PurchaseDates)+len(profile.activity.ViewDates))
	for id := range profile.activity.Interacted() {
		excluded = append(excluded, id)
	}

	slices.Sort(excluded)

	tags := make([]string, 0, len(profile.preferredTags))
	for tag := range profile.preferredTags {
		tags = append(tags, tag)
	}

	slices.Sort(tags)

	return &models.ProfileExplanation{
		UserID:                 userID,
		Purchases:              profile.activity.Purchases,
		Views:                  profile.activity.Views,
		Excluded:               excluded,
		RepresentativeProducts: profile.representatives,
		CategoryPreferences:    prefs,
		PreferredTags:          tags,
		HasProfileVector:       profile.vector != nil,
	}, nil
}

func firstN(ids []int64, n int) []int64 {
	return ids[:min(n, len(ids))]
}
