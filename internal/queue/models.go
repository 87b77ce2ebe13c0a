package queue

import "time"

// Status represents the lifecycle of a conversion job.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
	// StatusSkipped marks a job whose asset was no longer pending when a
	// worker picked it up.
	StatusSkipped Status = "skipped"
)

var finishedStatuses = map[Status]struct{}{
	StatusDone:    {},
	StatusFailed:  {},
	StatusSkipped: {},
}

// IsFinished reports whether status is terminal.
func IsFinished(status Status) bool {
	_, ok := finishedStatuses[status]
	return ok
}

// HeartbeatLostReason is recorded on jobs reclaimed after their worker stopped
// reporting.
const HeartbeatLostReason = "worker heartbeat lost"

// Job is a unit of conversion work for one asset.
type Job struct {
	ID            int64
	AssetID       int64
	Status        Status
	RequestID     string
	Force         bool
	WorkerID      string
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	StartedAt     *time.Time
	FinishedAt    *time.Time
	LastHeartbeat *time.Time
}

// HealthSummary aggregates job counts per status.
type HealthSummary struct {
	Total   int
	Queued  int
	Running int
	Done    int
	Failed  int
	Skipped int
}
