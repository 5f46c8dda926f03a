// Package cluster abstracts the compute cluster's admission queue.
//
// The orchestrator needs exactly two operations from the scheduler:
// submit a job script, and observe how many of the user's jobs are
// currently in a partition. Everything else about the scheduler is out
// of scope, which keeps the throttle controller testable against fakes.
package cluster

import (
	"context"
	"errors"
	"fmt"
)

// OccupancySnapshot is one observation of the user's load on a partition.
//
// Snapshots are ephemeral: the queue is a shared counter other tenants
// mutate concurrently, so a snapshot is re-fetched on every poll and
// never cached.
type OccupancySnapshot struct {
	Partition string
	User      string

	// Running is the number of the user's jobs currently in the partition.
	Running int
}

// ErrOccupancyUnavailable indicates the occupancy count could not be
// determined. Callers treat occupancy as unknown and back off; this error
// is never fatal.
var ErrOccupancyUnavailable = errors.New("occupancy unavailable")

// IsOccupancyUnavailable reports whether err means occupancy is unknown.
func IsOccupancyUnavailable(err error) bool {
	return errors.Is(err, ErrOccupancyUnavailable)
}

// QueueError wraps scheduler errors with the failing operation.
type QueueError struct {
	Op        string
	Partition string
	Err       error
}

func (e *QueueError) Error() string {
	if e.Partition != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Partition, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *QueueError) Unwrap() error {
	return e.Err
}

// Queue is the contract the throttle controller requires of a scheduler.
type Queue interface {
	// Submit enqueues the script at scriptPath, running from workDir.
	Submit(ctx context.Context, scriptPath, workDir string) error

	// Occupancy returns a fresh snapshot for the partition/user, or an
	// error wrapping ErrOccupancyUnavailable when the count cannot be
	// determined.
	Occupancy(ctx context.Context, partition, user string) (OccupancySnapshot, error)
}
