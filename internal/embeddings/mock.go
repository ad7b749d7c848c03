package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"strings"

	"github.com/formbricks/recommender/pkg/embeddings"
)

// ErrEmptyInput is returned for blank input text.
var ErrEmptyInput = errors.New("embeddings: input text is empty")

// MockClient generates deterministic embeddings from a text hash.
// Texts that share words get similar vectors, which keeps local ranking meaningful without a model.
type MockClient struct {
	dimensions int
}

// NewMockClient creates a mock client producing vectors of the given dimension.
func NewMockClient(dimensions int) *MockClient {
	return &MockClient{dimensions: dimensions}
}

// CreateEmbedding returns a unit vector built as the normalized sum of per-word hash vectors.
func (c *MockClient) CreateEmbedding(_ context.Context, input string) ([]float32, error) {
	words := strings.Fields(strings.ToLower(input))
	if len(words) == 0 {
		return nil, ErrEmptyInput
	}

	out := make([]float32, c.dimensions)
	for _, w := range words {
		addWordVector(out, w)
	}

	if !embeddings.NormalizeL2(out) {
		addWordVector(out, input)
		embeddings.NormalizeL2(out)
	}

	return out, nil
}

// addWordVector adds a pseudo-random vector in [-1, 1] seeded by the word's sha256.
func addWordVector(dst []float32, word string) {
	seed := sha256.Sum256([]byte(word))
	state := binary.LittleEndian.Uint64(seed[:8]) | 1

	for i := range dst {
		// xorshift64
		state ^= state << 13
		state ^= state >> 7
		state ^= state << 17
		dst[i] += float32(state%20001)/10000 - 1
	}
}

var _ Client = (*MockClient)(nil)
