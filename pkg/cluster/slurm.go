package cluster

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// SlurmConfig configures the Slurm CLI adapter.
type SlurmConfig struct {
	// SubmitBinary and QueueBinary default to "sbatch" and "squeue".
	// Overridable so tests can point at stub scripts.
	SubmitBinary string
	QueueBinary  string
}

// SlurmQueue implements Queue by shelling out to the Slurm CLI tools.
//
// No latency assumption is made: both commands block until the scheduler
// responds, and the caller's context is the only timeout.
type SlurmQueue struct {
	submitBin string
	queueBin  string
}

// NewSlurmQueue creates a Slurm-backed Queue.
func NewSlurmQueue(cfg SlurmConfig) *SlurmQueue {
	submit := cfg.SubmitBinary
	if submit == "" {
		submit = "sbatch"
	}
	queue := cfg.QueueBinary
	if queue == "" {
		queue = "squeue"
	}
	return &SlurmQueue{submitBin: submit, queueBin: queue}
}

// Submit runs sbatch on the script from the job's submit directory, so
// relative paths inside the script resolve next to the scheduler logs.
func (q *SlurmQueue) Submit(ctx context.Context, scriptPath, workDir string) error {
	cmd := exec.CommandContext(ctx, q.submitBin, scriptPath)
	cmd.Dir = workDir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return &QueueError{Op: "submit", Err: fmt.Errorf("%s: %w: %s", q.submitBin, err, strings.TrimSpace(stderr.String()))}
	}
	return nil
}

// Occupancy counts the user's jobs in a partition via squeue.
//
// squeue prints one header line followed by one line per job; the count
// is the non-empty line count minus the header. A failed or unparseable
// invocation wraps ErrOccupancyUnavailable so the caller backs off
// instead of treating it as zero occupancy.
func (q *SlurmQueue) Occupancy(ctx context.Context, partition, user string) (OccupancySnapshot, error) {
	cmd := exec.CommandContext(ctx, q.queueBin, "--partition="+partition, "--user="+user)
	out, err := cmd.Output()
	if err != nil {
		return OccupancySnapshot{}, &QueueError{
			Op:        "occupancy",
			Partition: partition,
			Err:       fmt.Errorf("%w: %s: %v", ErrOccupancyUnavailable, q.queueBin, err),
		}
	}

	lines := 0
	for _, line := range strings.Split(string(out), "\n") {
		if strings.TrimSpace(line) != "" {
			lines++
		}
	}
	running := lines - 1 // header
	if running < 0 {
		running = 0
	}

	return OccupancySnapshot{Partition: partition, User: user, Running: running}, nil
}
