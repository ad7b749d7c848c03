package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/formbricks/recommender/internal/models"
	"github.com/formbricks/recommender/internal/observability"
	"github.com/formbricks/recommender/internal/recerrors"
)

const defaultSyncBatchSize = 256

// ErrSyncInProgress is returned when a rebuild is requested while another one is running.
var ErrSyncInProgress = recerrors.NewConflictError("index sync already in progress")

// ProductCatalog lists every product for indexing.
type ProductCatalog interface {
	ListAllWithCategory(ctx context.Context) ([]models.Product, error)
}

// VectorIndexWriter rebuilds the vector index.
type VectorIndexWriter interface {
	Recreate(ctx context.Context, dims int) error
	Upsert(ctx context.Context, points []models.IndexPoint) error
}

// SyncResult summarizes one index rebuild.
type SyncResult struct {
	Indexed  int           `json:"indexed"`
	Skipped  int           `json:"skipped"`
	Duration time.Duration `json:"-"`
}

// SyncService rebuilds the vector index from the product catalog.
type SyncService struct {
	products   ProductCatalog
	index      VectorIndexWriter
	embeddings EmbeddingClient
	dimensions int
	batchSize  int
	limiter    *rate.Limiter
	metrics    observability.SyncMetrics
	logger     *slog.Logger
	running    sync.Mutex
}

// SyncServiceParams configures SyncService.
// EmbeddingRateLimit is the number of embedding calls per second; zero disables throttling.
type SyncServiceParams struct {
	Products           ProductCatalog
	Index              VectorIndexWriter
	Embeddings         EmbeddingClient
	Dimensions         int
	BatchSize          int
	EmbeddingRateLimit float64
	Metrics            observability.SyncMetrics
	Logger             *slog.Logger
}

// NewSyncService creates a SyncService.
func NewSyncService(p SyncServiceParams) *SyncService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	batchSize := p.BatchSize
	if batchSize <= 0 {
		batchSize = defaultSyncBatchSize
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if p.EmbeddingRateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(p.EmbeddingRateLimit), max(1, int(p.EmbeddingRateLimit)))
	}

	return &SyncService{
		products:   p.Products,
		index:      p.Index,
		embeddings: p.Embeddings,
		dimensions: p.Dimensions,
		batchSize:  batchSize,
		limiter:    limiter,
		metrics:    p.Metrics,
		logger:     logger,
	}
}

// RebuildIndex embeds every product, then drops and recreates the index and upserts all points.
// A failure while embedding leaves the previous index untouched; a failure after the recreate
// leaves it partially filled.
func (s *SyncService) RebuildIndex(ctx context.Context) (*SyncResult, error) {
	if !s.running.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer s.running.Unlock()

	start := time.Now()

	result, err := s.rebuild(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "index rebuild failed", "error", err, "duration", time.Since(start))

		if s.metrics != nil {
			s.metrics.RecordSync(ctx, observability.OutcomeError, 0, 0, time.Since(start))
		}

		return nil, err
	}

	result.Duration = time.Since(start)

	s.logger.InfoContext(ctx, "index rebuilt",
		"indexed", result.Indexed, "skipped", result.Skipped, "duration", result.Duration)

	if s.metrics != nil {
		s.metrics.RecordSync(ctx, observability.OutcomeSuccess, result.Indexed, result.Skipped, result.Duration)
	}

	return result, nil
}

func (s *SyncService) rebuild(ctx context.Context) (*SyncResult, error) {
	products, err := s.products.ListAllWithCategory(ctx)
	if err != nil {
		return nil, recerrors.NewUpstreamUnavailableError(recerrors.DependencyRelationalStore, err)
	}

	result := &SyncResult{}
	points := make([]models.IndexPoint, 0, len(products))

	for i := range products {
		product := &products[i]
		if !models.Embeddable(product) {
			s.logger.WarnContext(ctx, "skipping product without text", "product_id", product.ID)

			result.Skipped++

			continue
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait for embedding rate limit: %w", err)
		}

		vector, err := s.embeddings.CreateEmbedding(ctx, models.CanonicalText(product))
		if err != nil {
			return nil, recerrors.NewUpstreamUnavailableError(
				recerrors.DependencyEmbeddingProvider, fmt.Errorf("embed product %d: %w", product.ID, err))
		}

		points = append(points, models.IndexPoint{
			ID:      product.ID,
			Vector:  vector,
			Payload: models.NewProductPayload(product),
		})

		if (i+1)%s.batchSize == 0 {
			s.logger.InfoContext(ctx, "embedding products", "done", i+1, "total", len(products))
		}
	}

	if err := s.index.Recreate(ctx, s.dimensions); err != nil {
		return nil, recerrors.NewUpstreamUnavailableError(recerrors.DependencyVectorIndex, err)
	}

	for start := 0; start < len(points); start += s.batchSize {
		end := min(start+s.batchSize, len(points))

		if err := s.index.Upsert(ctx, points[start:end]); err != nil {
			return nil, recerrors.NewUpstreamUnavailableError(
				recerrors.DependencyVectorIndex, fmt.Errorf("upsert batch at %d: %w", start, err))
		}

		result.Indexed += end - start
	}

	return result, nil
}
