package jobs

import (
	"time"
)

// Status represents the current state of a job
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusComplete  Status = "complete"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Source identifies the clip an analysis job was requested for.
type Source struct {
	SessionID string
	VideoID   string
	VideoName string
	VideoSize int64
}

// Job represents one synthetic trajectory analysis
type Job struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	VideoID     string    `json:"video_id"`
	VideoName   string    `json:"video_name"`
	VideoSize   int64     `json:"video_size"`
	Status      Status    `json:"status"`
	Progress    float64   `json:"progress"` // 0-100
	Step        int       `json:"step"`     // Frames synthesized so far
	Steps       int       `json:"steps"`    // Frames requested
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
	Elapsed     int64     `json:"elapsed_ms,omitempty"` // Run time, set once terminal
}

// IsTerminal returns true if the job is in a terminal state
func (j *Job) IsTerminal() bool {
	return j.Status == StatusComplete || j.Status == StatusFailed || j.Status == StatusCancelled
}

// Copy returns a snapshot of the job safe to hand to another goroutine.
func (j *Job) Copy() *Job {
	if j == nil {
		return nil
	}
	c := *j
	return &c
}

// JobEvent represents an event for SSE streaming
type JobEvent struct {
	Type string `json:"type"` // "added", "started", "progress", "complete", "failed", "cancelled", "requeued", "removed"
	Job  *Job   `json:"job,omitempty"`
}
