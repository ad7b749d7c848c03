// Package workers provides River job workers.
package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/riverqueue/river"

	"github.com/formbricks/recommender/internal/jobs"
	"github.com/formbricks/recommender/internal/service"
)

const (
	productSyncTimeout = 30 * time.Minute

	// A rebuild triggered elsewhere (CLI, synchronous API call) holds the lock; try again later.
	productSyncSnooze = time.Minute
)

// indexRebuilder is the minimal interface needed by the worker.
type indexRebuilder interface {
	RebuildIndex(ctx context.Context) (*service.SyncResult, error)
}

// ProductSyncWorker rebuilds the vector index from the product catalog.
type ProductSyncWorker struct {
	river.WorkerDefaults[jobs.ProductSyncArgs]

	sync   indexRebuilder
	logger *slog.Logger
}

// NewProductSyncWorker creates the worker. logger may be nil.
func NewProductSyncWorker(sync indexRebuilder, logger *slog.Logger) *ProductSyncWorker {
	if logger == nil {
		logger = slog.Default()
	}

	return &ProductSyncWorker{sync: sync, logger: logger}
}

// Timeout limits how long a single rebuild can run.
func (w *ProductSyncWorker) Timeout(*river.Job[jobs.ProductSyncArgs]) time.Duration {
	return productSyncTimeout
}

// Work runs one full rebuild.
func (w *ProductSyncWorker) Work(ctx context.Context, job *river.Job[jobs.ProductSyncArgs]) error {
	w.logger.InfoContext(ctx, "sync: job started",
		"job_id", job.ID,
		"trigger", job.Args.Trigger,
		"attempt", job.Attempt,
	)

	result, err := w.sync.RebuildIndex(ctx)
	if err != nil {
		if errors.Is(err, service.ErrSyncInProgress) {
			w.logger.InfoContext(ctx, "sync: rebuild already running, snoozing", "job_id", job.ID)

			return river.JobSnooze(productSyncSnooze)
		}

		return fmt.Errorf("rebuild index: %w", err)
	}

	w.logger.InfoContext(ctx, "sync: job finished",
		"job_id", job.ID,
		"indexed", result.Indexed,
		"skipped", result.Skipped,
		"duration", result.Duration,
	)

	return nil
}
