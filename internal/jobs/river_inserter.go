package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

// ErrNoJobReturned is returned when River reports success without a job row.
var ErrNoJobReturned = errors.New("river insert returned no job")

// Inserter is the subset of *river.Client used to enqueue jobs.
type Inserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// RiverJobInserter implements JobInserter using the River client.
type RiverJobInserter struct {
	client Inserter
}

// NewRiverJobInserter creates a new River-based job inserter.
func NewRiverJobInserter(client Inserter) *RiverJobInserter {
	return &RiverJobInserter{client: client}
}

// SyncInsertOpts returns the insert options for a rebuild: dedicated queue and at most one
// unfinished rebuild at a time, whatever its trigger.
func SyncInsertOpts() *river.InsertOpts {
	return &river.InsertOpts{
		Queue:       SyncQueueName,
		MaxAttempts: SyncMaxAttempts,
		UniqueOpts: river.UniqueOpts{
			// Note: JobStatePending is required by River when using ByState
			ByState: []rivertype.JobState{
				rivertype.JobStatePending,
				rivertype.JobStateAvailable,
				rivertype.JobStateRunning,
				rivertype.JobStateRetryable,
				rivertype.JobStateScheduled,
			},
		},
	}
}

// InsertSyncJob enqueues an index rebuild with uniqueness constraints.
func (r *RiverJobInserter) InsertSyncJob(ctx context.Context, args ProductSyncArgs) (int64, error) {
	res, err := r.client.Insert(ctx, args, SyncInsertOpts())
	if err != nil {
		return 0, fmt.Errorf("insert sync job: %w", err)
	}

	if res == nil || res.Job == nil {
		return 0, ErrNoJobReturned
	}

	if res.UniqueSkippedAsDuplicate {
		slog.InfoContext(ctx, "sync job already pending", "job_id", res.Job.ID, "trigger", args.Trigger)
	}

	return res.Job.ID, nil
}
