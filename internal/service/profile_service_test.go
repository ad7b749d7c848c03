package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbricks/recommender/internal/embeddings"
	"github.com/formbricks/recommender/internal/models"
	"github.com/formbricks/recommender/internal/recerrors"
	pkgembeddings "github.com/formbricks/recommender/pkg/embeddings"
)

func bookshop() *fakeCatalog {
	c := newFakeCatalog(
		product(5, "Dune", 1, "Books", "sci-fi", "paperback"),
		product(7, "Foundation", 1, "Books", "sci-fi"),
		product(9, "Robot kit", 2, "Toys", "robot"),
		product(11, "Hyperion", 1, "Books", "space"),
		product(12, "Neuromancer", 1, "Books", "cyberpunk"),
		product(13, "Lego set", 2, "Toys", "bricks"),
		product(14, "Puzzle", 2, "Toys"),
		product(15, "History of Rome", 1, "Books", "history"),
		product(16, "Kite", 2, "Toys"),
	)
	c.categories = []models.Category{{ID: 1, Name: "Books"}, {ID: 2, Name: "Toys"}}

	return c
}

func TestProfileService_BuildProfileVector_UnitNorm(t *testing.T) {
	svc := newTestServices(bookshop(), activityOf([]int64{5}, []int64{7, 9}), embeddings.NewMockClient(32), &mockSearcher{})

	vec, err := svc.profiles.BuildProfileVector(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, vec, 32)
	assert.InDelta(t, 1.0, pkgembeddings.Norm(vec), 1e-5)
}

func TestProfileService_BuildProfileVector_Weights(t *testing.T) {
	emb := keywordEmbedder(map[string][]float32{
		"Books": {1, 0},
		"Toys":  {0, 1},
	}, []float32{0, 0})
	svc := newTestServices(bookshop(), activityOf([]int64{5}, []int64{9}), emb, &mockSearcher{})

	vec, err := svc.profiles.BuildProfileVector(context.Background(), 1, 10)
	require.NoError(t, err)

	// Purchase weight 2 on Books, view weight 1 on Toys: mean (2/3, 1/3), normalized.
	assert.InDelta(t, 2/2.2360679775, vec[0], 1e-5)
	assert.InDelta(t, 1/2.2360679775, vec[1], 1e-5)
}

func TestProfileService_BuildProfileVector_PurchaseWinsOverView(t *testing.T) {
	emb := keywordEmbedder(map[string][]float32{"Books": {1, 0}, "Toys": {0, 1}}, []float32{0, 0})
	// 9 is both purchased and viewed: weight 2, same as 5.
	svc := newTestServices(bookshop(), activityOf([]int64{5, 9}, []int64{9}), emb, &mockSearcher{})

	vec, err := svc.profiles.BuildProfileVector(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.InDelta(t, vec[0], vec[1], 1e-6)
}

func TestProfileService_BuildProfileVector_Absent(t *testing.T) {
	t.Run("no activity", func(t *testing.T) {
		svc := newTestServices(bookshop(), &mockActivityRepo{}, embeddings.NewMockClient(8), &mockSearcher{})

		vec, err := svc.profiles.BuildProfileVector(context.Background(), 1, 10)
		require.NoError(t, err)
		assert.Nil(t, vec)
	})

	t.Run("only unknown products", func(t *testing.T) {
		svc := newTestServices(bookshop(), activityOf([]int64{999}, nil), embeddings.NewMockClient(8), &mockSearcher{})

		vec, err := svc.profiles.BuildProfileVector(context.Background(), 1, 10)
		require.NoError(t, err)
		assert.Nil(t, vec)
	})

	t.Run("opposite vectors cancel out", func(t *testing.T) {
		emb := keywordEmbedder(map[string][]float32{"Dune": {1, 0}, "Foundation": {-1, 0}}, []float32{0, 1})
		// Two purchases at equal weight with opposite vectors average to zero.
		svc := newTestServices(bookshop(), activityOf([]int64{5, 7}, nil), emb, &mockSearcher{})

		vec, err := svc.profiles.BuildProfileVector(context.Background(), 1, 10)
		require.NoError(t, err)
		assert.Nil(t, vec)
	})
}

func TestProfileService_BuildProfileVector_EmbeddingFailure(t *testing.T) {
	emb := &mockEmbeddingClient{createFunc: func(_ context.Context, _ string) ([]float32, error) {
		return nil, errors.New("model offline")
	}}
	svc := newTestServices(bookshop(), activityOf([]int64{5}, nil), emb, &mockSearcher{})

	_, err := svc.profiles.BuildProfileVector(context.Background(), 1, 10)
	require.Error(t, err)

	var upstream *recerrors.UpstreamUnavailableError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, recerrors.DependencyEmbeddingProvider, upstream.Dependency)
}

func TestProfileService_ExplainProfile(t *testing.T) {
	svc := newTestServices(bookshop(), activityOf([]int64{5}, []int64{7, 9}), embeddings.NewMockClient(16), &mockSearcher{})

	exp, err := svc.profiles.ExplainProfile(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, int64(1), exp.UserID)
	assert.Equal(t, []int64{5}, exp.Purchases)
	assert.Equal(t, []int64{7, 9}, exp.Views)
	assert.Equal(t, []int64{5, 7, 9}, exp.Excluded)
	assert.Equal(t, []int64{5, 7, 9}, exp.RepresentativeProducts)
	assert.Equal(t, []models.CategoryWeight{
		{CategoryID: 1, Name: "Books", Weight: 3},
		{CategoryID: 2, Name: "Toys", Weight: 1},
	}, exp.CategoryPreferences)
	assert.Equal(t, []string{"paperback", "sci-fi"}, exp.PreferredTags)
	assert.True(t, exp.HasProfileVector)
}
