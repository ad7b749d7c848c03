// Package jobs provides River job definitions for the product index sync.
package jobs

import (
	"time"

	"github.com/riverqueue/river"
)

const (
	productSyncKind = "product_index_sync"

	// SyncQueueName is the River queue for index rebuilds. It runs a single worker.
	SyncQueueName = "product_sync"

	// SyncMaxAttempts bounds retries of a failed rebuild.
	SyncMaxAttempts = 3
)

// Sync triggers recorded on the job.
const (
	TriggerAPI      = "api"
	TriggerPeriodic = "periodic"
	TriggerCLI      = "cli"
)

// ProductSyncArgs is the job payload for a full vector index rebuild.
type ProductSyncArgs struct {
	// Trigger records who asked for the rebuild: "api", "periodic" or "cli".
	Trigger     string    `json:"trigger"`
	RequestedAt time.Time `json:"requested_at"`
}

// Kind returns the River job kind.
func (ProductSyncArgs) Kind() string { return productSyncKind }

var _ river.JobArgs = ProductSyncArgs{}
