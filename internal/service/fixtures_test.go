package service

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/formbricks/recommender/internal/models"
	"github.com/formbricks/recommender/internal/ranking"
	"github.com/formbricks/recommender/internal/recerrors"
)

// fakeCatalog is an in-memory relational store for products and categories.
type fakeCatalog struct {
	products   map[int64]*models.Product
	categories []models.Category
	err        error
}

func newFakeCatalog(products ...models.Product) *fakeCatalog {
	c := &fakeCatalog{products: map[int64]*models.Product{}}
	for i := range products {
		p := products[i]
		c.products[p.ID] = &p
	}

	return c
}

func (c *fakeCatalog) GetByID(_ context.Context, id int64) (*models.Product, error) {
	if c.err != nil {
		return nil, c.err
	}

	p, ok := c.products[id]
	if !ok {
		return nil, recerrors.NewNotFoundError("product", "not found")
	}

	return p, nil
}

func (c *fakeCatalog) GetByIDs(_ context.Context, ids []int64) (map[int64]*models.Product, error) {
	if c.err != nil {
		return nil, c.err
	}

	out := map[int64]*models.Product{}
	for _, id := range ids {
		if p, ok := c.products[id]; ok {
			out[id] = p
		}
	}

	return out, nil
}

func (c *fakeCatalog) ListCategories(_ context.Context) ([]models.Category, error) {
	return c.categories, c.err
}

func (c *fakeCatalog) ListAllWithCategory(_ context.Context) ([]models.Product, error) {
	if c.err != nil {
		return nil, c.err
	}

	ids := make([]int64, 0, len(c.products))
	for id := range c.products {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	out := make([]models.Product, 0, len(ids))
	for _, id := range ids {
		out = append(out, *c.products[id])
	}

	return out, nil
}

func (c *fakeCatalog) ListIDsInCategory(_ context.Context, categoryID int64, exclude []int64, limit int) ([]int64, error) {
	if c.err != nil {
		return nil, c.err
	}

	ids := []int64{}
	for id, p := range c.products {
		if p.CategoryID != nil && *p.CategoryID == categoryID && !slices.Contains(exclude, id) {
			ids = append(ids, id)
		}
	}

	slices.Sort(ids)

	return ids[:min(limit, len(ids))], nil
}

type mockActivityRepo struct {
	purchasesFunc  func(ctx context.Context, userID int64) ([]models.ActivityRecord, error)
	viewsFunc      func(ctx context.Context, userID int64) ([]models.ActivityRecord, error)
	mostViewedFunc func(ctx context.Context, userID int64) (*int64, error)
}

func (m *mockActivityRepo) ListPurchases(ctx context.Context, userID int64) ([]models.ActivityRecord, error) {
	if m.purchasesFunc != nil {
		return m.purchasesFunc(ctx, userID)
	}

	return []models.ActivityRecord{}, nil
}

func (m *mockActivityRepo) ListViews(ctx context.Context, userID int64) ([]models.ActivityRecord, error) {
	if m.viewsFunc != nil {
		return m.viewsFunc(ctx, userID)
	}

	return []models.ActivityRecord{}, nil
}

func (m *mockActivityRepo) MostViewedCategory(ctx context.Context, userID int64) (*int64, error) {
	if m.mostViewedFunc != nil {
		return m.mostViewedFunc(ctx, userID)
	}

	return nil, nil
}

// activityOf returns a repo serving fixed purchase and view logs (newest first) for any user.
func activityOf(purchases, views []int64) *mockActivityRepo {
	records := func(kind models.ActivityKind, ids []int64) []models.ActivityRecord {
		base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		out := make([]models.ActivityRecord, 0, len(ids))

		for i, id := range ids {
			out = append(out, models.ActivityRecord{ProductID: id, Kind: kind, At: base.Add(-time.Duration(i) * time.Hour)})
		}

		return out
	}

	return &mockActivityRepo{
		purchasesFunc: func(_ context.Context, _ int64) ([]models.ActivityRecord, error) {
			return records(models.ActivityPurchase, purchases), nil
		},
		viewsFunc: func(_ context.Context, _ int64) ([]models.ActivityRecord, error) {
			return records(models.ActivityView, views), nil
		},
	}
}

type mockEmbeddingClient struct {
	createFunc func(ctx context.Context, input string) ([]float32, error)
}

func (m *mockEmbeddingClient) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, input)
	}

	return []float32{1, 0, 0}, nil
}

// keywordEmbedder maps text to a fixed vector by the first keyword it contains.
func keywordEmbedder(vectors map[string][]float32, fallback []float32) *mockEmbeddingClient {
	keys := make([]string, 0, len(vectors))
	for k := range vectors {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	return &mockEmbeddingClient{
		createFunc: func(_ context.Context, input string) ([]float32, error) {
			for _, k := range keys {
				if strings.Contains(input, k) {
					return slices.Clone(vectors[k]), nil
				}
			}

			return slices.Clone(fallback), nil
		},
	}
}

type mockSearcher struct {
	searchFunc func(ctx context.Context, vector []float32, limit int, filter *models.PayloadFilter) ([]models.ScoredPoint, error)
}

func (m *mockSearcher) Search(
	ctx context.Context, vector []float32, limit int, filter *models.PayloadFilter,
) ([]models.ScoredPoint, error) {
	if m.searchFunc != nil {
		return m.searchFunc(ctx, vector, limit, filter)
	}

	return []models.ScoredPoint{}, nil
}

func ptr[T any](v T) *T { return &v }

func product(id int64, name string, categoryID int64, category string, tags ...string) models.Product {
	if tags == nil {
		tags = []string{}
	}

	p := models.Product{ID: id, Name: name, Description: name + " description", CategoryName: category, Tags: tags}
	if categoryID != 0 {
		p.CategoryID = ptr(categoryID)
	}

	return p
}

func hit(p models.Product, score float64) models.ScoredPoint {
	return models.ScoredPoint{ID: p.ID, Score: score, Payload: models.NewProductPayload(&p)}
}

func ids(recs []models.Recommendation) []int64 {
	out := make([]int64, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ID)
	}

	return out
}

type testServices struct {
	activity        *ActivityService
	profiles        *ProfileService
	recommendations *RecommendationService
}

func newTestServices(
	catalog *fakeCatalog, activity ActivityRepository, emb EmbeddingClient, index VectorSearcher,
) testServices {
	params := ranking.DefaultParams()

	act := NewActivityService(ActivityServiceParams{Activity: activity, Products: catalog, Params: params})
	prof := NewProfileService(ProfileServiceParams{Activity: act, Products: catalog, Embeddings: emb, Params: params})
	recs := NewRecommendationService(RecommendationServiceParams{
		Products:   catalog,
		Index:      index,
		Embeddings: emb,
		Profiles:   prof,
		Params:     params,
	})

	return testServices{activity: act, profiles: prof, recommendations: recs}
}
