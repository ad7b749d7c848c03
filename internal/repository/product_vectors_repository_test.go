package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProductVectorsRepository_CollectionName(t *testing.T) {
	for _, name := range []string{"products", "product_vectors_v2", "_tmp"} {
		repo, err := NewProductVectorsRepository(nil, name)
		require.NoError(t, err, name)
		assert.Equal(t, `"`+name+`"`, repo.ident())
	}

	for _, name := range []string{"", "Products", "2products", "products; DROP TABLE users", "a-b"} {
		_, err := NewProductVectorsRepository(nil, name)
		assert.ErrorIs(t, err, ErrInvalidCollection, name)
	}
}

func TestEFSearch(t *testing.T) {
	assert.Equal(t, 40, efSearch(1))
	assert.Equal(t, 40, efSearch(40))
	assert.Equal(t, 100, efSearch(100))
	assert.Equal(t, 500, efSearch(500))
	assert.Equal(t, 1000, efSearch(5000))
}
