package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/formbricks/recommender/internal/models"
)

// ActivityRepository reads the per-user view and purchase logs.
type ActivityRepository struct {
	db *pgxpool.Pool
}

// NewActivityRepository creates a new activity repository.
func NewActivityRepository(db *pgxpool.Pool) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// ListPurchases returns the user's purchase records, most recent first.
func (r *ActivityRepository) ListPurchases(ctx context.Context, userID int64) ([]models.ActivityRecord, error) {
	return r.list(ctx, `
		SELECT user_id, product_id, purchased_at
		FROM purchased_products
		WHERE user_id = $1
		ORDER BY purchased_at DESC, product_id`, userID, models.ActivityPurchase)
}

// ListViews returns the user's view records, most recent first.
func (r *ActivityRepository) ListViews(ctx context.Context, userID int64) ([]models.ActivityRecord, error) {
	return r.list(ctx, `
		SELECT user_id, product_id, visited_at
		FROM visited_products
		WHERE user_id = $1
		ORDER BY visited_at DESC, product_id`, userID, models.ActivityView)
}

func (r *ActivityRepository) list(
	ctx context.Context, query string, userID int64, kind models.ActivityKind,
) ([]models.ActivityRecord, error) {
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list %s activity: %w", kind, err)
	}
	defer rows.Close()

	records := []models.ActivityRecord{}

	for rows.Next() {
		rec := models.ActivityRecord{Kind: kind}
		if err := rows.Scan(&rec.UserID, &rec.ProductID, &rec.At); err != nil {
			return nil, fmt.Errorf("scan %s activity: %w", kind, err)
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s activity: %w", kind, err)
	}

	return records, nil
}

// MostViewedCategory returns the category the user viewed most often, or nil when the user
// has no views of categorized products. Ties go to the lower category id.
func (r *ActivityRepository) MostViewedCategory(ctx context.Context, userID int64) (*int64, error) {
	var categoryID int64

	err := r.db.QueryRow(ctx, `
		SELECT p.category_id
		FROM visited_products v
		JOIN products p ON p.id = v.product_id
		WHERE v.user_id = $1 AND p.category_id IS NOT NULL
		GROUP BY p.category_id
		ORDER BY COUNT(*) DESC, p.category_id
		LIMIT 1`, userID).Scan(&categoryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			//nolint:nilnil // no categorized views is a valid state, caller checks for nil
			return nil, nil
		}

		return nil, fmt.Errorf("most viewed category: %w", err)
	}

	return &categoryID, nil
}
