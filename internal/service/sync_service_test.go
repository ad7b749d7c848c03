package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbricks/recommender/internal/embeddings"
	"github.com/formbricks/recommender/internal/models"
	"github.com/formbricks/recommender/internal/recerrors"
	"github.com/formbricks/recommender/internal/vectorindex"
)

func newSyncService(catalog ProductCatalog, idx VectorIndexWriter, emb EmbeddingClient, batch int) *SyncService {
	return NewSyncService(SyncServiceParams{
		Products:   catalog,
		Index:      idx,
		Embeddings: emb,
		Dimensions: 16,
		BatchSize:  batch,
	})
}

func allIDs(catalog *fakeCatalog) []int64 {
	out := []int64{}
	for id := range catalog.products {
		out = append(out, id)
	}

	return out
}

func TestSyncService_RebuildIndex(t *testing.T) {
	catalog := bookshop()
	catalog.products[50] = &models.Product{ID: 50, Tags: []string{}}
	idx := vectorindex.NewMemory()

	result, err := newSyncService(catalog, idx, embeddings.NewMockClient(16), 4).RebuildIndex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, result.Indexed)
	assert.Equal(t, 1, result.Skipped)

	count, err := idx.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, count)

	points, err := idx.Retrieve(context.Background(), []int64{5})
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "Books", points[0].Payload.CategoryName)
	assert.Equal(t, models.Tags{"sci-fi", "paperback"}, points[0].Payload.Tags)
}

func TestSyncService_RebuildIndex_Idempotent(t *testing.T) {
	catalog := bookshop()
	idx := vectorindex.NewMemory()
	svc := newSyncService(catalog, idx, embeddings.NewMockClient(16), 3)

	_, err := svc.RebuildIndex(context.Background())
	require.NoError(t, err)

	first, err := idx.Retrieve(context.Background(), allIDs(catalog))
	require.NoError(t, err)

	_, err = svc.RebuildIndex(context.Background())
	require.NoError(t, err)

	second, err := idx.Retrieve(context.Background(), allIDs(catalog))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSyncService_RebuildIndex_EmbeddingFailureKeepsIndex(t *testing.T) {
	catalog := bookshop()
	idx := vectorindex.NewMemory()

	_, err := newSyncService(catalog, idx, embeddings.NewMockClient(16), 0).RebuildIndex(context.Background())
	require.NoError(t, err)

	failing := &mockEmbeddingClient{createFunc: func(_ context.Context, _ string) ([]float32, error) {
		return nil, errors.New("quota exceeded")
	}}

	_, err = newSyncService(catalog, idx, failing, 0).RebuildIndex(context.Background())

	var upstream *recerrors.UpstreamUnavailableError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, recerrors.DependencyEmbeddingProvider, upstream.Dependency)

	count, err := idx.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, count)
}

func TestSyncService_RebuildIndex_CatalogFailure(t *testing.T) {
	catalog := bookshop()
	catalog.err = errors.New("relation products does not exist")

	_, err := newSyncService(catalog, vectorindex.NewMemory(), embeddings.NewMockClient(16), 0).RebuildIndex(context.Background())
	assert.ErrorIs(t, err, recerrors.ErrUpstreamUnavailable)
}

func TestSyncService_RebuildIndex_RejectsConcurrentRun(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	blocking := &mockEmbeddingClient{createFunc: func(ctx context.Context, input string) ([]float32, error) {
		select {
		case started <- struct{}{}:
		default:
		}

		<-release

		return embeddings.NewMockClient(16).CreateEmbedding(ctx, input)
	}}

	svc := newSyncService(bookshop(), vectorindex.NewMemory(), blocking, 0)

	done := make(chan error, 1)

	go func() {
		_, err := svc.RebuildIndex(context.Background())
		done <- err
	}()

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("first rebuild did not start")
	}

	_, err := svc.RebuildIndex(context.Background())
	require.ErrorIs(t, err, ErrSyncInProgress)
	assert.ErrorIs(t, err, recerrors.ErrConflict)

	close(release)
	require.NoError(t, <-done)
}

func TestSyncService_RebuildIndex_HonorsCancellation(t *testing.T) {
	svc := NewSyncService(SyncServiceParams{
		Products:           bookshop(),
		Index:              vectorindex.NewMemory(),
		Embeddings:         embeddings.NewMockClient(16),
		Dimensions:         16,
		EmbeddingRateLimit: 0.001,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := svc.RebuildIndex(ctx)
	require.Error(t, err)
}
