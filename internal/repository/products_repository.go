package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/formbricks/recommender/internal/models"
	"github.com/formbricks/recommender/internal/recerrors"
)

// ProductsRepository reads products and categories.
type ProductsRepository struct {
	db *pgxpool.Pool
}

// NewProductsRepository creates a new products repository.
func NewProductsRepository(db *pgxpool.Pool) *ProductsRepository {
	return &ProductsRepository{db: db}
}

const productColumns = `
	p.id,
	COALESCE(p.name, ''),
	COALESCE(p.description, ''),
	p.category_id,
	COALESCE(c.name, ''),
	p.tags::text,
	COALESCE(p.price, 0)::float8,
	COALESCE(p.image_url, '')`

const productFrom = `
	FROM products p
	LEFT JOIN categories c ON c.id = p.category_id`

func scanProduct(row pgx.Row) (*models.Product, error) {
	var (
		p    models.Product
		tags *string
	)

	if err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.CategoryID, &p.CategoryName, &tags, &p.Price, &p.ImageURL,
	); err != nil {
		return nil, err
	}

	if tags != nil {
		p.Tags = models.ParseTags([]byte(*tags))
	} else {
		p.Tags = []string{}
	}

	return &p, nil
}

// GetByID returns one product joined with its category name.
func (r *ProductsRepository) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	row := r.db.QueryRow(ctx, `SELECT `+productColumns+productFrom+` WHERE p.id = $1`, id)

	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, recerrors.NewNotFoundError("product", "product "+strconv.FormatInt(id, 10)+" not found")
		}

		return nil, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

// GetByIDs returns the products found for ids, keyed by id. Unknown ids are absent from the map.
func (r *ProductsRepository) GetByIDs(ctx context.Context, ids []int64) (map[int64]*models.Product, error) {
	out := make(map[int64]*models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.db.Query(ctx, `SELECT `+productColumns+productFrom+` WHERE p.id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("get products by ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}

		out[product.ID] = product
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating products: %w", err)
	}

	return out, nil
}

// ListAllWithCategory returns every product with its category name, ordered by id.
func (r *ProductsRepository) ListAllWithCategory(ctx context.Context) ([]models.Product, error) {
	rows, err := r.db.Query(ctx, `SELECT `+productColumns+productFrom+` ORDER BY p.id`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []models.Product

	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}

		products = append(products, *product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating products: %w", err)
	}

	return products, nil
}

// ListIDsInCategory returns up to limit product ids of a category, excluding the given ids, ordered by id.
func (r *ProductsRepository) ListIDsInCategory(
	ctx context.Context, categoryID int64, exclude []int64, limit int,
) ([]int64, error) {
	if limit <= 0 {
		return []int64{}, nil
	}

	if exclude == nil {
		// NOT (id = ANY(NULL)) is NULL and would filter every row.
		exclude = []int64{}
	}

	rows, err := r.db.Query(ctx, `
		SELECT id FROM products
		WHERE category_id = $1 AND NOT (id = ANY($2))
		ORDER BY id
		LIMIT $3`, categoryID, exclude, limit)
	if err != nil {
		return nil, fmt.Errorf("list products in category: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("collect product ids: %w", err)
	}

	return ids, nil
}

// ListCategories returns every category ordered by id.
func (r *ProductsRepository) ListCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := r.db.Query(ctx, `SELECT id, COALESCE(name, '') FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	categories, err := pgx.CollectRows(rows, pgx.RowToStructByPos[models.Category])
	if err != nil {
		return nil, fmt.Errorf("collect categories: %w", err)
	}

	return categories, nil
}
