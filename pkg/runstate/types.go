package runstate

import "time"

// DispatchState is the recorded state of one job in a run.
//
// NOTE: These values are persisted in run.json and are part of the stable
// on-disk contract.
type DispatchState string

const (
	DispatchPending    DispatchState = "pending"
	DispatchDispatched DispatchState = "dispatched"
	DispatchAborted    DispatchState = "aborted"
)

// JobEntry records one job's dispatch outcome.
type JobEntry struct {
	ID           string        `json:"id"`
	JobIndex     int           `json:"job_index"`
	State        DispatchState `json:"state"`
	SubmitDir    string        `json:"submit_dir,omitempty"`
	Polls        int           `json:"polls,omitempty"`
	DispatchedAt *time.Time    `json:"dispatched_at,omitempty"`
	Reason       string        `json:"reason,omitempty"`
}

// RunRecord is the persistent record written to run.json.
//
// It exists so an operator can see, after a killed or aborted run, which
// jobs had already been handed to the cluster. The schema is designed for
// backward-compatible extension (additive fields).
type RunRecord struct {
	RunID        string     `json:"run_id"`
	ManifestPath string     `json:"manifest_path,omitempty"`
	Partition    string     `json:"partition"`
	SubmitID     int        `json:"submit_id"`
	CreatedAt    time.Time  `json:"created_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	Jobs         []JobEntry `json:"jobs"`
}
