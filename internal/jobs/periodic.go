package jobs

import (
	"time"

	"github.com/riverqueue/river"
)

// PeriodicSyncJob schedules a rebuild every interval. It returns nil when interval is not positive.
func PeriodicSyncJob(interval time.Duration) *river.PeriodicJob {
	if interval <= 0 {
		return nil
	}

	return river.NewPeriodicJob(
		river.PeriodicInterval(interval),
		func() (river.JobArgs, *river.InsertOpts) {
			return ProductSyncArgs{Trigger: TriggerPeriodic, RequestedAt: time.Now().UTC()}, SyncInsertOpts()
		},
		nil,
	)
}
