// sync-products rebuilds the product vector index from the catalog and exits.
// With -enqueue it only inserts a sync job for the API's River workers to pick up.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"

	"github.com/formbricks/recommender/internal/config"
	"github.com/formbricks/recommender/internal/embeddings"
	"github.com/formbricks/recommender/internal/jobs"
	"github.com/formbricks/recommender/internal/observability"
	"github.com/formbricks/recommender/internal/repository"
	"github.com/formbricks/recommender/internal/service"
	"github.com/formbricks/recommender/pkg/database"
)

const (
	exitSuccess = 0
	exitFailure = 1
)

var errMemoryIndex = errors.New("sync-products needs VECTOR_INDEX_BACKEND=pgvector; the in-memory index lives inside the API process")

func main() {
	os.Exit(run())
}

func run() int {
	enqueue := flag.Bool("enqueue", false, "insert a sync job into the product_sync queue instead of rebuilding inline")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)

		return exitFailure
	}

	slog.SetDefault(observability.NewLogger(os.Stderr, cfg.LogLevel))

	if cfg.VectorIndexBackend != config.VectorIndexPgvector {
		slog.Error(errMemoryIndex.Error())

		return exitFailure
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgresPool(ctx, cfg.DatabaseURL,
		database.WithVectorTypes(),
		database.WithLimits(cfg.DatabaseMaxConns, cfg.DatabaseMinConns, cfg.DatabaseMaxConnLifetime),
	)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)

		return exitFailure
	}
	defer db.Close()

	if *enqueue {
		// Insert-only client: no queues or workers.
		riverClient, err := river.NewClient(riverpgxv5.New(db), &river.Config{})
		if err != nil {
			slog.Error("Failed to create River client", "error", err)

			return exitFailure
		}

		jobID, err := jobs.NewRiverJobInserter(riverClient).InsertSyncJob(ctx, jobs.ProductSyncArgs{
			Trigger:     jobs.TriggerCLI,
			RequestedAt: time.Now().UTC(),
		})
		if err != nil {
			slog.Error("Failed to enqueue sync job", "error", err)

			return exitFailure
		}

		fmt.Printf("Enqueued sync job %d.\n", jobID)

		return exitSuccess
	}

	stack, err := embeddings.NewStackFromConfig(ctx, cfg, nil, slog.Default())
	if err != nil {
		slog.Error("Failed to create embedding client", "error", err)

		return exitFailure
	}

	defer func() {
		if err := stack.Close(); err != nil {
			slog.Warn("close embedding cache", "error", err)
		}
	}()

	index, err := repository.NewProductVectorsRepository(db, cfg.VectorCollection)
	if err != nil {
		slog.Error("Failed to open vector index", "error", err)

		return exitFailure
	}

	syncService := service.NewSyncService(service.SyncServiceParams{
		Products:           repository.NewProductsRepository(db),
		Index:              index,
		Embeddings:         stack.Client,
		Dimensions:         cfg.EmbeddingDimensions,
		BatchSize:          cfg.SyncBatchSize,
		EmbeddingRateLimit: cfg.SyncEmbeddingRateLimit,
	})

	result, err := syncService.RebuildIndex(ctx)
	if err != nil {
		slog.Error("Sync failed", "error", err)

		return exitFailure
	}

	slog.Info("Sync complete", "indexed", result.Indexed, "skipped", result.Skipped, "duration", result.Duration)

	fmt.Printf("Indexed %d product(s), skipped %d.\n", result.Indexed, result.Skipped)

	return exitSuccess
}
