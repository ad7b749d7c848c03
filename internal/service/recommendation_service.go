package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/formbricks/recommender/internal/models"
	"github.com/formbricks/recommender/internal/observability"
	"github.com/formbricks/recommender/internal/ranking"
	"github.com/formbricks/recommender/internal/recerrors"
)

// VectorSearcher runs nearest-neighbour queries against the vector index.
type VectorSearcher interface {
	Search(ctx context.Context, vector []float32, limit int, filter *models.PayloadFilter) ([]models.ScoredPoint, error)
}

// RecommendationService ranks products similar to a product or matching a user's profile.
type RecommendationService struct {
	products   ProductReader
	index      VectorSearcher
	embeddings EmbeddingClient
	profiles   *ProfileService
	params     ranking.Params
	metrics    observability.RecommendationMetrics
	logger     *slog.Logger
}

// RecommendationServiceParams configures RecommendationService. Metrics may be nil.
type RecommendationServiceParams struct {
	Products   ProductReader
	Index      VectorSearcher
	Embeddings EmbeddingClient
	Profiles   *ProfileService
	Params     ranking.Params
	Metrics    observability.RecommendationMetrics
	Logger     *slog.Logger
}

// NewRecommendationService creates a RecommendationService.
func NewRecommendationService(p RecommendationServiceParams) *RecommendationService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &RecommendationService{
		products:   p.Products,
		index:      p.Index,
		embeddings: p.Embeddings,
		profiles:   p.Profiles,
		params:     p.Params,
		metrics:    p.Metrics,
		logger:     logger,
	}
}

// RecommendForProduct returns up to k products similar to productID, never including productID itself.
// An unknown product yields an empty list.
func (s *RecommendationService) RecommendForProduct(
	ctx context.Context, productID int64, k int,
) ([]models.Recommendation, error) {
	start := time.Now()
	k = ranking.ClampK(k)

	recs, err := s.recommendForProduct(ctx, productID, k)
	s.record(ctx, observability.RecommendationKindProduct, start, len(recs), err)

	return recs, err
}

func (s *RecommendationService) recommendForProduct(
	ctx context.Context, productID int64, k int,
) ([]models.Recommendation, error) {
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, recerrors.ErrNotFound) {
			s.logger.DebugContext(ctx, "recommend for unknown product", "product_id", productID)

			return []models.Recommendation{}, nil
		}

		return nil, recerrors.NewUpstreamUnavailableError(recerrors.DependencyRelationalStore, err)
	}

	if !models.Embeddable(product) {
		return []models.Recommendation{}, nil
	}

	vector, err := s.embeddings.CreateEmbedding(ctx, models.CanonicalText(product))
	if err != nil {
		return nil, recerrors.NewUpstreamUnavailableError(recerrors.DependencyEmbeddingProvider, err)
	}

	hits, err := s.index.Search(ctx, vector, s.params.ProductCandidates, nil)
	if err != nil {
		return nil, recerrors.NewUpstreamUnavailableError(recerrors.DependencyVectorIndex, err)
	}

	tags := models.TagSet(product.Tags)
	candidates := make([]models.ScoredPoint, 0, len(hits))

	for _, hit := range hits {
		if hit.ID == productID {
			continue
		}

		sameCategory := hit.Payload.CategoryName == product.CategoryName
		hit.Score = s.params.ProductScore(hit.Score, sameCategory, models.SharedTagCount(tags, hit.Payload.Tags))
		candidates = append(candidates, hit)
	}

	ranking.SortByScore(candidates)

	if len(candidates) > k {
		candidates = candidates[:k]
	}

	return toRecommendations(candidates), nil
}

// RecommendForUser returns up to k products for the user's profile, excluding everything the user has
// already purchased or viewed. Users without usable activity get an empty list and a message.
func (s *RecommendationService) RecommendForUser(
	ctx context.Context, userID int64, k int,
) (*models.UserRecommendations, error) {
	start := time.Now()
	k = ranking.ClampK(k)

	out, err := s.recommendForUser(ctx, userID, k)

	n := 0
	if out != nil {
		n = len(out.Recommendations)
	}

	s.record(ctx, observability.RecommendationKindUser, start, n, err)

	return out, err
}

func (s *RecommendationService) recommendForUser(
	ctx context.Context, userID int64, k int,
) (*models.UserRecommendations, error) {
	out := &models.UserRecommendations{
		UserID:          userID,
		Source:          models.SourceUserProfile,
		Recommendations: []models.Recommendation{},
	}

	profile, err := s.profiles.build(ctx, userID)
	if err != nil {
		return nil, err
	}

	if profile.vector == nil {
		out.Message = models.MessageNoActivity

		return out, nil
	}

	hits, err := s.index.Search(ctx, profile.vector, s.params.UserCandidatePool(k), nil)
	if err != nil {
		return nil, recerrors.NewUpstreamUnavailableError(recerrors.DependencyVectorIndex, err)
	}

	b := newUserRanker(s.params, profile)
	for _, hit := range hits {
		b.add(hit)
	}

	ranking.SortByScore(b.preferred)
	ranking.SortByScore(b.other)

	if s.params.NeedsSupplement(len(b.preferred), k) {
		s.supplement(ctx, profile, b)
	}

	out.Recommendations = toRecommendations(s.params.Compose(b.preferred, b.other, k))

	return out, nil
}

// supplement runs category-filtered searches for the top preferred categories. Failures are logged
// and the request continues with the candidates gathered so far.
func (s *RecommendationService) supplement(ctx context.Context, profile *userProfile, b *userRanker) {
	categories := ranking.TopCategories(profile.categoryWeights, s.params.SupplementCategories)
	if len(categories) == 0 {
		return
	}

	added := 0
	outcome := observability.OutcomeSuccess

	for _, categoryID := range categories {
		hits, err := s.index.Search(ctx, profile.vector, s.params.SupplementLimit, models.CategoryFilter(categoryID))
		if err != nil {
			s.logger.WarnContext(ctx, "category supplement search failed",
				"user_id", profile.activity.UserID, "category_id", categoryID, "error", err)

			outcome = observability.OutcomeError

			break
		}

		for _, hit := range hits {
			if b.add(hit) {
				added++
			}
		}
	}

	ranking.SortByScore(b.preferred)
	ranking.SortByScore(b.other)

	s.logger.DebugContext(ctx, "category supplement",
		"user_id", profile.activity.UserID, "categories", categories, "added", added)

	if s.metrics != nil {
		s.metrics.RecordSupplement(ctx, outcome)
	}
}

// userRanker scores user-path candidates and partitions them into preferred and other categories.
type userRanker struct {
	params     ranking.Params
	profile    *userProfile
	interacted map[int64]struct{}
	maxWeight  float64
	seen       map[int64]struct{}
	preferred  []models.ScoredPoint
	other      []models.ScoredPoint
}

func newUserRanker(params ranking.Params, profile *userProfile) *userRanker {
	return &userRanker{
		params:     params,
		profile:    profile,
		interacted: profile.activity.Interacted(),
		maxWeight:  ranking.MaxWeight(profile.categoryWeights),
		seen:       map[int64]struct{}{},
		preferred:  []models.ScoredPoint{},
		other:      []models.ScoredPoint{},
	}
}

// add scores hit and files it. It reports false for interacted or already seen products.
func (r *userRanker) add(hit models.ScoredPoint) bool {
	if _, ok := r.interacted[hit.ID]; ok {
		return false
	}

	if _, ok := r.seen[hit.ID]; ok {
		return false
	}

	r.seen[hit.ID] = struct{}{}

	var weight float64
	if hit.Payload.CategoryID != nil {
		weight = r.profile.categoryWeights[*hit.Payload.CategoryID]
	}

	shared := models.SharedTagCount(r.profile.preferredTags, hit.Payload.Tags)
	hit.Score = r.params.UserScore(hit.Score, weight, r.maxWeight, shared)

	if weight > 0 {
		r.preferred = append(r.preferred, hit)
	} else {
		r.other = append(r.other, hit)
	}

	return true
}

func (s *RecommendationService) record(ctx context.Context, kind string, start time.Time, n int, err error) {
	if s.metrics == nil {
		return
	}

	outcome := observability.OutcomeSuccess
	if err != nil {
		outcome = observability.OutcomeError
	} else if n == 0 {
		outcome = observability.OutcomeEmpty
	}

	s.metrics.RecordRecommendation(ctx, kind, outcome, time.Since(start))
}

func toRecommendations(points []models.ScoredPoint) []models.Recommendation {
	out := make([]models.Recommendation, 0, len(points))
	for _, p := range points {
		out = append(out, models.Recommendation{ID: p.ID, Score: p.Score, Payload: p.Payload})
	}

	return out
}
