// Package vectorindex provides an in-memory vector index for development and tests.
// It has the same surface as the pgvector repository.
package vectorindex

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/formbricks/recommender/internal/models"
	"github.com/formbricks/recommender/pkg/embeddings"
)

// ErrDimensionMismatch is returned when a vector does not match the collection dimension.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// ErrNotCreated is returned by Upsert before Recreate has been called.
var ErrNotCreated = errors.New("collection not created")

// Memory is a brute-force cosine index guarded by a RWMutex. Safe for concurrent use.
type Memory struct {
	mu     sync.RWMutex
	dims   int
	points map[int64]models.IndexPoint
}

// NewMemory returns an empty index. Call Recreate before Upsert.
func NewMemory() *Memory {
	return &Memory{points: make(map[int64]models.IndexPoint)}
}

// Recreate drops all points and sets the dimension.
func (m *Memory) Recreate(_ context.Context, dims int) error {
	if dims <= 0 {
		return fmt.Errorf("%w: %d", ErrDimensionMismatch, dims)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.dims = dims
	m.points = make(map[int64]models.IndexPoint)

	return nil
}

// Upsert stores copies of points, replacing existing ids.
func (m *Memory) Upsert(_ context.Context, points []models.IndexPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dims == 0 {
		return ErrNotCreated
	}

	for _, p := range points {
		if len(p.Vector) != m.dims {
			return fmt.Errorf("%w: point %d has %d, want %d", ErrDimensionMismatch, p.ID, len(p.Vector), m.dims)
		}
	}

	for _, p := range points {
		vec := make([]float32, len(p.Vector))
		copy(vec, p.Vector)
		p.Vector = vec
		m.points[p.ID] = p
	}

	return nil
}

// Search scores every point by cosine similarity. Equal scores are ordered by id.
func (m *Memory) Search(
	_ context.Context, vector []float32, limit int, filter *models.PayloadFilter,
) ([]models.ScoredPoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || len(m.points) == 0 {
		return []models.ScoredPoint{}, nil
	}

	if len(vector) != m.dims {
		return nil, fmt.Errorf("%w: query has %d, want %d", ErrDimensionMismatch, len(vector), m.dims)
	}

	hits := make([]models.ScoredPoint, 0, len(m.points))

	for id, p := range m.points {
		if filter != nil {
			if v, ok := p.Payload.Field(filter.Field); !ok || v != filter.Value {
				continue
			}
		}

		score, err := embeddings.CosineSimilarity(vector, p.Vector)
		if err != nil {
			return nil, err
		}

		hits = append(hits, models.ScoredPoint{ID: id, Score: score, Payload: p.Payload})
	}

	slices.SortFunc(hits, func(a, b models.ScoredPoint) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}

		return cmp.Compare(a.ID, b.ID)
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}

	return hits, nil
}

// Retrieve returns the stored points for ids, in id order. Unknown ids are skipped.
func (m *Memory) Retrieve(_ context.Context, ids []int64) ([]models.IndexPoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.IndexPoint, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.points[id]; ok {
			out = append(out, p)
		}
	}

	slices.SortFunc(out, func(a, b models.IndexPoint) int { return cmp.Compare(a.ID, b.ID) })

	return out, nil
}

// Count returns the number of stored points.
func (m *Memory) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.points), nil
}
