package jobs

import (
	"context"
)

// JobInserter enqueues sync jobs without exposing River to callers.
type JobInserter interface {
	// InsertSyncJob enqueues a rebuild and returns the job id. When a rebuild is already pending
	// the id of that job is returned instead of a new one.
	InsertSyncJob(ctx context.Context, args ProductSyncArgs) (int64, error)
}
