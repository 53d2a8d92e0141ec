package store

import (
	"github.com/gwlsn/hawkeye/internal/jobs"
)

// Store defines the persistence interface for analysis job metadata.
// Trajectories and summaries are never stored.
// Implementations must be safe for concurrent use.
type Store interface {
	// SaveJob persists a job. If the job already exists (by ID), it is updated.
	SaveJob(job *jobs.Job) error

	// GetJob retrieves a job by ID. Returns nil if not found.
	GetJob(id string) (*jobs.Job, error)

	// DeleteJob removes a job by ID. Also removes it from the order.
	// Returns nil if the job doesn't exist.
	DeleteJob(id string) error

	// GetAllJobs returns all jobs and their order.
	GetAllJobs() ([]*jobs.Job, []string, error)

	// GetJobsByStatus returns all jobs with the given status.
	GetJobsByStatus(status jobs.Status) ([]*jobs.Job, error)

	// AppendToOrder adds a job ID to the end of the queue order.
	AppendToOrder(id string) error

	// SetOrder persists the full job order, replacing any existing order.
	SetOrder(order []string) error

	// ResetRunningJobs marks every running job cancelled. Their samples
	// lived only in memory, so they cannot be resumed after a restart.
	// Returns the number of jobs changed.
	ResetRunningJobs() (int, error)

	// Stats returns job counts and analysis counters.
	Stats() (Stats, error)

	// ResetSession zeroes the session analysis counter.
	ResetSession() error

	// RecordAnalysis increments the session and lifetime analysis counters.
	RecordAnalysis() error

	// Close closes the store and releases resources.
	Close() error
}

// Stats holds job statistics.
type Stats struct {
	Pending          int   `json:"pending"`
	Running          int   `json:"running"`
	Complete         int   `json:"complete"`
	Failed           int   `json:"failed"`
	Cancelled        int   `json:"cancelled"`
	Total            int   `json:"total"`
	SessionAnalyses  int64 `json:"session_analyses"`
	LifetimeAnalyses int64 `json:"lifetime_analyses"`
}

var _ Store = (*SQLiteStore)(nil)
var _ jobs.StoreWithStats = (*SQLiteStore)(nil)
