package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/formbricks/recommender/internal/models"
)

// ErrInvalidCollection is returned for collection names that are not plain lower-case identifiers.
var ErrInvalidCollection = errors.New("invalid vector collection name")

// ErrDimensionMismatch is returned when a point's vector does not match the collection dimension.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

var collectionNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// pgvector's default and upper bound for hnsw.ef_search.
const (
	minEFSearch = 40
	maxEFSearch = 1000
)

// undefinedTable is the SQLSTATE for a missing relation (collection never built).
const undefinedTable = "42P01"

// ProductVectorsRepository is the pgvector-backed vector index: one table per collection holding
// (id, embedding, payload) with an HNSW cosine index.
type ProductVectorsRepository struct {
	db    *pgxpool.Pool
	table string
}

// NewProductVectorsRepository creates the repository for the given collection (table) name.
func NewProductVectorsRepository(db *pgxpool.Pool, collection string) (*ProductVectorsRepository, error) {
	if !collectionNameRegex.MatchString(collection) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCollection, collection)
	}

	return &ProductVectorsRepository{db: db, table: collection}, nil
}

func (r *ProductVectorsRepository) ident() string {
	return pgx.Identifier{r.table}.Sanitize()
}

// Recreate drops and recreates the collection with the given vector dimension.
func (r *ProductVectorsRepository) Recreate(ctx context.Context, dims int) error {
	if dims <= 0 {
		return fmt.Errorf("%w: %d", ErrDimensionMismatch, dims)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin recreate: %w", err)
	}

	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.WarnContext(ctx, "rollback recreate collection", "error", err)
		}
	}()

	stmts := []string{
		`DROP TABLE IF EXISTS ` + r.ident(),
		fmt.Sprintf(`CREATE TABLE %s (
			id BIGINT PRIMARY KEY,
			embedding vector(%d) NOT NULL,
			payload JSONB NOT NULL
		)`, r.ident(), dims),
		fmt.Sprintf(`CREATE INDEX %s ON %s USING hnsw (embedding vector_cosine_ops)`,
			pgx.Identifier{r.table + "_embedding_idx"}.Sanitize(), r.ident()),
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("recreate collection %s: %w", r.table, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit recreate: %w", err)
	}

	return nil
}

// Upsert writes points, replacing existing ones with the same id.
func (r *ProductVectorsRepository) Upsert(ctx context.Context, points []models.IndexPoint) error {
	if len(points) == 0 {
		return nil
	}

	query := `INSERT INTO ` + r.ident() + ` (id, embedding, payload) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET embedding = EXCLUDED.embedding, payload = EXCLUDED.payload`

	batch := &pgx.Batch{}

	for _, p := range points {
		payload, err := json.Marshal(p.Payload)
		if err != nil {
			return fmt.Errorf("marshal payload for point %d: %w", p.ID, err)
		}

		batch.Queue(query, p.ID, pgvector.NewVector(p.Vector), payload)
	}

	br := r.db.SendBatch(ctx, batch)

	for range points {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()

			return fmt.Errorf("upsert points: %w", err)
		}
	}

	if err := br.Close(); err != nil {
		return fmt.Errorf("close upsert batch: %w", err)
	}

	return nil
}

// Search returns the nearest neighbours of vector by cosine similarity (score = 1 - distance),
// optionally restricted to points whose payload field equals filter.Value.
// A collection that was never built yields no results.
//
// Unfiltered searches use the HNSW index with ef_search raised to the limit, since the scan never
// returns more than ef_search rows. Filtered searches rank the matching rows exactly.
func (r *ProductVectorsRepository) Search(
	ctx context.Context, vector []float32, limit int, filter *models.PayloadFilter,
) ([]models.ScoredPoint, error) {
	if limit <= 0 {
		return []models.ScoredPoint{}, nil
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin vector search: %w", err)
	}

	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.WarnContext(ctx, "rollback vector search", "error", err)
		}
	}()

	results, err := r.search(ctx, tx, pgvector.NewVector(vector), limit, filter)
	if err != nil {
		if isUndefinedTable(err) {
			slog.WarnContext(ctx, "vector collection does not exist; run a sync", "collection", r.table)

			return []models.ScoredPoint{}, nil
		}

		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit vector search: %w", err)
	}

	return results, nil
}

func (r *ProductVectorsRepository) search(
	ctx context.Context, tx pgx.Tx, queryVec pgvector.Vector, limit int, filter *models.PayloadFilter,
) ([]models.ScoredPoint, error) {
	var (
		rows pgx.Rows
		err  error
	)

	if filter == nil {
		if _, err := tx.Exec(ctx, `SELECT set_config('hnsw.ef_search', $1, true)`,
			strconv.Itoa(efSearch(limit))); err != nil {
			return nil, fmt.Errorf("set hnsw.ef_search: %w", err)
		}

		rows, err = tx.Query(ctx, `
			SELECT id, 1 - (embedding <=> $1) AS score, payload
			FROM `+r.ident()+`
			ORDER BY embedding <=> $1
			LIMIT $2`, queryVec, limit)
	} else {
		// The materialized CTE keeps the filter ahead of the ranking, so the HNSW scan is not used.
		rows, err = tx.Query(ctx, `
			WITH matching AS MATERIALIZED (
				SELECT id, embedding, payload
				FROM `+r.ident()+`
				WHERE payload ->> $3::text = $4::text
			)
			SELECT id, 1 - (embedding <=> $1) AS score, payload
			FROM matching
			ORDER BY embedding <=> $1
			LIMIT $2`, queryVec, limit, filter.Field, filter.Value)
	}

	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	results := []models.ScoredPoint{}

	for rows.Next() {
		var (
			point   models.ScoredPoint
			payload []byte
		)

		if err := rows.Scan(&point.ID, &point.Score, &payload); err != nil {
			return nil, fmt.Errorf("scan search hit: %w", err)
		}

		point.Payload = decodePayload(ctx, point.ID, payload)
		results = append(results, point)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search hits: %w", err)
	}

	return results, nil
}

// efSearch is the HNSW candidate list size for a query returning limit rows, within pgvector's bounds.
func efSearch(limit int) int {
	return min(max(limit, minEFSearch), maxEFSearch)
}

// Retrieve returns the stored points for ids, in id order. Unknown ids are skipped.
func (r *ProductVectorsRepository) Retrieve(ctx context.Context, ids []int64) ([]models.IndexPoint, error) {
	if len(ids) == 0 {
		return []models.IndexPoint{}, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, embedding, payload FROM `+r.ident()+`
		WHERE id = ANY($1)
		ORDER BY id`, ids)
	if err != nil {
		if isUndefinedTable(err) {
			return []models.IndexPoint{}, nil
		}

		return nil, fmt.Errorf("retrieve points: %w", err)
	}
	defer rows.Close()

	points := []models.IndexPoint{}

	for rows.Next() {
		var (
			id      int64
			vec     pgvector.Vector
			payload []byte
		)

		if err := rows.Scan(&id, &vec, &payload); err != nil {
			return nil, fmt.Errorf("scan point: %w", err)
		}

		points = append(points, models.IndexPoint{
			ID:      id,
			Vector:  vec.Slice(),
			Payload: decodePayload(ctx, id, payload),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating points: %w", err)
	}

	return points, nil
}

// Count returns the number of points in the collection (zero when it does not exist).
func (r *ProductVectorsRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM `+r.ident()).Scan(&n); err != nil {
		if isUndefinedTable(err) {
			return 0, nil
		}

		return 0, fmt.Errorf("count points: %w", err)
	}

	return n, nil
}

// decodePayload recovers from malformed payloads by keeping only the id.
func decodePayload(ctx context.Context, id int64, raw []byte) models.ProductPayload {
	var payload models.ProductPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		slog.DebugContext(ctx, "malformed vector payload", "id", id, "error", err)

		return models.ProductPayload{ID: id, Tags: models.Tags{}}
	}

	payload.ID = id
	if payload.Tags == nil {
		payload.Tags = models.Tags{}
	}

	return payload
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == undefinedTable
}
