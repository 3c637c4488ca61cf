// Package jobstore implements the proof job queue: a Postgres-backed
// table with LISTEN/NOTIFY-driven change propagation and at-most-one
// in-flight job per (contract_address, block_number). The interface is
// deliberately small and backend-agnostic, so tests can swap in the
// in-memory implementation and never touch a real database.
package jobstore

import (
	"context"
	"time"

	"github.com/ttc-protocol/ttc-monitor/common"
)

type Status string

const (
	Pending    Status = "pending"
	InProgress Status = "in_progress"
	Completed  Status = "completed"
	Failed     Status = "failed"
)

// Job is one persisted proof job.
type Job struct {
	ID              int64
	ContractAddress common.Address
	ChainID         uint64
	BlockNumber     uint64
	Status          Status
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ProofBlob       []byte
	JournalBlob     []byte
	ErrorText       string
}

// Key identifies a job by the uniqueness invariant's compound key.
type Key struct {
	ContractAddress common.Address
	BlockNumber     uint64
}

// StatusEvent is one row's status transition, as delivered by Subscribe.
type StatusEvent struct {
	JobID     int64
	NewStatus Status
}

// JobStore is the queue contract shared by the Postgres and in-memory
// implementations.
type JobStore interface {
	// CreateJob inserts a Pending row. It returns ttcerr.TagDuplicateJob
	// if a non-terminal job already exists for (address, block).
	CreateJob(ctx context.Context, address common.Address, chainID uint64, block uint64) (int64, error)

	// ClaimNext atomically selects the oldest Pending job, marks it
	// InProgress, and returns it. It returns (nil, nil) when the queue is
	// empty.
	ClaimNext(ctx context.Context) (*Job, error)

	// Complete marks id Completed and stores the proof/journal blobs. It
	// returns ttcerr.TagNotInProgress if id is not currently InProgress.
	Complete(ctx context.Context, id int64, proof, journal []byte) error

	// Fail marks id Failed and stores errText. It returns
	// ttcerr.TagNotInProgress if id is not currently InProgress.
	Fail(ctx context.Context, id int64, errText string) error

	Get(ctx context.Context, id int64) (*Job, error)
	FindByKey(ctx context.Context, key Key) (*Job, error)

	// Subscribe opens a persistent change feed yielding every status
	// transition until ctx is cancelled. Restartable: callers may call it
	// again after the returned channel closes.
	Subscribe(ctx context.Context) (<-chan StatusEvent, error)

	// ReclaimStale resets any InProgress row older than olderThan back to
	// Pending, for recovery after a worker crash.
	ReclaimStale(ctx context.Context, olderThan time.Duration) (int, error)

	// PendingCount reports the current queue depth, for the
	// ttc_monitor_jobstore_queue_depth gauge.
	PendingCount(ctx context.Context) (int, error)

	Close()
}
