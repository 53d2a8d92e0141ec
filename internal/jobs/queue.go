package jobs

import (
	"fmt"
	"sync"
	"time"

	"github.com/gwlsn/hawkeye/internal/logger"
	"github.com/gwlsn/hawkeye/internal/trajectory"
)

// Store defines the persistence interface for job metadata.
// This interface is implemented by internal/store.SQLiteStore.
// Trajectories are never handed to the store.
type Store interface {
	SaveJob(job *Job) error
	GetJob(id string) (*Job, error)
	DeleteJob(id string) error
	GetAllJobs() ([]*Job, []string, error)
	AppendToOrder(id string) error
	SetOrder(order []string) error
	ResetRunningJobs() (int, error)
	RecordAnalysis() error
	Close() error
}

// StoreWithStats extends Store with session/lifetime counters.
type StoreWithStats interface {
	Store
	SessionLifetimeStats() (sessionAnalyses, lifetimeAnalyses int64, err error)
	ResetSession() error
}

// Queue manages the job queue with persistence
type Queue struct {
	mu    sync.RWMutex
	jobs  map[string]*Job
	order []string // Job IDs in order of creation
	store Store    // Persistence store (nil = in-memory only)

	// Finished analyses, memory only, oldest evicted first
	results     map[string]*trajectory.Analysis
	resultOrder []string

	// Subscribers for job events
	subsMu      sync.RWMutex
	subscribers map[chan JobEvent]struct{}
}

// NewQueue creates a new in-memory job queue (for testing).
// Use NewQueueWithStore for production use with persistence.
func NewQueue() *Queue {
	return &Queue{
		jobs:        make(map[string]*Job),
		order:       make([]string, 0),
		results:     make(map[string]*trajectory.Analysis),
		subscribers: make(map[chan JobEvent]struct{}),
	}
}

// NewQueueWithStore creates a job queue backed by a persistent store.
// The store should already be initialized and have running jobs reset.
func NewQueueWithStore(store Store) (*Queue, error) {
	q := NewQueue()
	q.store = store

	if store != nil {
		jobs, order, err := store.GetAllJobs()
		if err != nil {
			return nil, fmt.Errorf("load jobs from store: %w", err)
		}

		for _, job := range jobs {
			// A pending job from a previous run has no session to report to
			if job.Status == StatusPending {
				job.Status = StatusCancelled
				job.Error = "interrupted by restart"
				if err := store.SaveJob(job); err != nil {
					logger.Warn("Failed to persist job", "job_id", job.ID, "error", err)
				}
			}
			q.jobs[job.ID] = job
		}
		q.order = order
	}

	return q, nil
}

// persist saves a job to the store (if configured).
// Called with lock held.
func (q *Queue) persist(job *Job) {
	if q.store == nil {
		return
	}
	if err := q.store.SaveJob(job); err != nil {
		logger.Warn("Failed to persist job", "job_id", job.ID, "error", err)
	}
}

// persistOrder adds a job ID to the store's order (if configured).
// Called with lock held.
func (q *Queue) persistOrder(id string) {
	if q.store == nil {
		return
	}
	if err := q.store.AppendToOrder(id); err != nil {
		logger.Warn("Failed to persist job order", "job_id", id, "error", err)
	}
}

// persistDelete removes a job from the store (if configured).
// Called with lock held.
func (q *Queue) persistDelete(id string) {
	if q.store == nil {
		return
	}
	if err := q.store.DeleteJob(id); err != nil {
		logger.Warn("Failed to delete job from store", "job_id", id, "error", err)
	}
}

// Add queues an analysis of src producing steps frames
func (q *Queue) Add(src Source, steps int) *Job {
	return q.AddWithID(NewID(), src, steps)
}

// AddWithID is Add with an ID from NewID, for callers that must record the
// job before a worker can pick it up.
func (q *Queue) AddWithID(id string, src Source, steps int) *Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	job := &Job{
		ID:        id,
		SessionID: src.SessionID,
		VideoID:   src.VideoID,
		VideoName: src.VideoName,
		VideoSize: src.VideoSize,
		Status:    StatusPending,
		Steps:     ClampSteps(steps),
		CreatedAt: time.Now(),
	}

	q.jobs[job.ID] = job
	q.order = append(q.order, job.ID)

	q.persist(job)
	q.persistOrder(job.ID)

	q.broadcast(JobEvent{Type: "added", Job: job.Copy()})

	return job.Copy()
}

// Get returns a snapshot of a job by ID, or nil
func (q *Queue) Get(id string) *Job {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.jobs[id].Copy()
}

// GetAll returns snapshots of all jobs in order
func (q *Queue) GetAll() []*Job {
	q.mu.RLock()
	defer q.mu.RUnlock()

	jobs := make([]*Job, 0, len(q.order))
	for _, id := range q.order {
		if job, ok := q.jobs[id]; ok {
			jobs = append(jobs, job.Copy())
		}
	}
	return jobs
}

// GetNext returns the next pending job (for workers to pick up)
func (q *Queue) GetNext() *Job {
	q.mu.RLock()
	defer q.mu.RUnlock()

	for _, id := range q.order {
		if job, ok := q.jobs[id]; ok && job.Status == StatusPending {
			return job.Copy()
		}
	}
	return nil
}

// StartJob marks a job as running
func (q *Queue) StartJob(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok {
		return jobNotFoundError(id)
	}

	if job.Status != StatusPending {
		return jobNotPendingError(id, job.Status)
	}

	job.Status = StatusRunning
	job.StartedAt = time.Now()

	q.persist(job)
	q.broadcast(JobEvent{Type: "started", Job: job.Copy()})

	return nil
}

// UpdateProgress records that done of total frames have been synthesized
func (q *Queue) UpdateProgress(id string, done, total int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok || job.Status != StatusRunning || total <= 0 {
		return
	}

	job.Step = done
	job.Steps = total
	job.Progress = float64(done) / float64(total) * 100

	// Don't persist on every progress update, just broadcast
	q.broadcast(JobEvent{Type: "progress", Job: job.Copy()})
}

// CompleteJob marks a running job as complete and keeps its analysis in memory
func (q *Queue) CompleteJob(id string, analysis *trajectory.Analysis) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok {
		return jobNotFoundError(id)
	}
	if job.Status != StatusRunning {
		return jobNotRunningError(id, job.Status)
	}
	if analysis == nil {
		return fmt.Errorf("complete job %s: nil analysis", id)
	}

	job.Status = StatusComplete
	job.Progress = 100
	job.Step = len(analysis.Trajectory)
	job.CompletedAt = time.Now()
	job.Elapsed = job.CompletedAt.Sub(job.StartedAt).Milliseconds()

	q.storeResult(id, analysis.Copy())
	q.persist(job)

	if q.store != nil {
		if err := q.store.RecordAnalysis(); err != nil {
			logger.Warn("Failed to update analysis stats", "error", err)
		}
	}

	q.broadcast(JobEvent{Type: "complete", Job: job.Copy()})

	return nil
}

// storeResult keeps analysis under id, evicting the oldest beyond maxResults.
// Called with lock held.
func (q *Queue) storeResult(id string, analysis *trajectory.Analysis) {
	if _, exists := q.results[id]; !exists {
		q.resultOrder = append(q.resultOrder, id)
	}
	q.results[id] = analysis

	for len(q.resultOrder) > maxResults {
		oldest := q.resultOrder[0]
		q.resultOrder = q.resultOrder[1:]
		delete(q.results, oldest)
	}
}

// dropResult forgets a stored analysis. Called with lock held.
func (q *Queue) dropResult(id string) {
	if _, ok := q.results[id]; !ok {
		return
	}
	delete(q.results, id)
	for i, rid := range q.resultOrder {
		if rid == id {
			q.resultOrder = append(q.resultOrder[:i], q.resultOrder[i+1:]...)
			break
		}
	}
}

// Result returns a copy of a completed job's analysis
func (q *Queue) Result(id string) (*trajectory.Analysis, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	a, ok := q.results[id]
	if !ok {
		return nil, false
	}
	return a.Copy(), true
}

// FailJob marks a job as failed
func (q *Queue) FailJob(id string, errMsg string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok {
		return jobNotFoundError(id)
	}
	if job.IsTerminal() {
		return jobFinishedError(id, job.Status)
	}

	job.Status = StatusFailed
	job.Error = errMsg
	job.CompletedAt = time.Now()
	if !job.StartedAt.IsZero() {
		job.Elapsed = job.CompletedAt.Sub(job.StartedAt).Milliseconds()
	}

	q.persist(job)
	q.broadcast(JobEvent{Type: "failed", Job: job.Copy()})

	return nil
}

// CancelJob cancels a pending or running job
func (q *Queue) CancelJob(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok {
		return jobNotFoundError(id)
	}

	if job.IsTerminal() {
		return jobFinishedError(id, job.Status)
	}

	job.Status = StatusCancelled
	job.CompletedAt = time.Now()
	if !job.StartedAt.IsZero() {
		job.Elapsed = job.CompletedAt.Sub(job.StartedAt).Milliseconds()
	}

	q.persist(job)
	q.broadcast(JobEvent{Type: "cancelled", Job: job.Copy()})

	return nil
}

// Requeue resets a running job back to pending and moves it to the front of the queue.
// Used when reducing worker count or pausing to return jobs to the queue.
func (q *Queue) Requeue(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok {
		return jobNotFoundError(id)
	}

	if job.Status != StatusRunning {
		return jobNotRunningError(id, job.Status)
	}

	job.Status = StatusPending
	job.Progress = 0
	job.Step = 0
	job.StartedAt = time.Time{}

	// Move to front of order
	newOrder := []string{id}
	for _, oid := range q.order {
		if oid != id {
			newOrder = append(newOrder, oid)
		}
	}
	q.order = newOrder

	q.persist(job)
	if q.store != nil {
		if err := q.store.SetOrder(q.order); err != nil {
			logger.Warn("Failed to persist job order", "error", err)
		}
	}

	q.broadcast(JobEvent{Type: "requeued", Job: job.Copy()})

	return nil
}

// Clear removes jobs from the queue. If filterStatus is empty, clears all
// non-running jobs. If specified, clears only jobs matching that status.
// Running jobs are never cleared.
func (q *Queue) Clear(filterStatus Status) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	count := 0
	newOrder := make([]string, 0, len(q.order))
	for _, id := range q.order {
		job, ok := q.jobs[id]
		if !ok {
			continue
		}
		if job.Status == StatusRunning {
			newOrder = append(newOrder, id)
			continue
		}
		if filterStatus != "" && job.Status != filterStatus {
			newOrder = append(newOrder, id)
			continue
		}
		q.persistDelete(id)
		q.dropResult(id)
		delete(q.jobs, id)
		count++
	}
	q.order = newOrder

	return count
}

// Remove removes a single job and its analysis from the queue
func (q *Queue) Remove(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.persistDelete(id)
	q.dropResult(id)
	delete(q.jobs, id)

	newOrder := make([]string, 0, len(q.order))
	for _, jid := range q.order {
		if jid != id {
			newOrder = append(newOrder, jid)
		}
	}
	q.order = newOrder

	q.broadcast(JobEvent{Type: "removed", Job: &Job{ID: id}})
}

// Subscribe returns a channel that receives job events
func (q *Queue) Subscribe() chan JobEvent {
	ch := make(chan JobEvent, 100)

	q.subsMu.Lock()
	q.subscribers[ch] = struct{}{}
	q.subsMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription
func (q *Queue) Unsubscribe(ch chan JobEvent) {
	q.subsMu.Lock()
	delete(q.subscribers, ch)
	q.subsMu.Unlock()

	close(ch)
}

// broadcast sends an event to all subscribers
func (q *Queue) broadcast(event JobEvent) {
	q.subsMu.RLock()
	defer q.subsMu.RUnlock()

	for ch := range q.subscribers {
		select {
		case ch <- event:
		default:
			// Channel full, skip this subscriber
		}
	}
}

// Stats returns queue statistics
type Stats struct {
	Pending          int   `json:"pending"`
	Running          int   `json:"running"`
	Complete         int   `json:"complete"`
	Failed           int   `json:"failed"`
	Cancelled        int   `json:"cancelled"`
	Total            int   `json:"total"`
	AvgElapsedMS     int64 `json:"avg_elapsed_ms"`    // Mean run time of completed jobs
	SessionAnalyses  int64 `json:"session_analyses"`  // Completed since the last session reset
	LifetimeAnalyses int64 `json:"lifetime_analyses"` // All-time completed
}

func (q *Queue) Stats() Stats {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var stats Stats
	var elapsed int64
	for _, job := range q.jobs {
		stats.Total++
		switch job.Status {
		case StatusPending:
			stats.Pending++
		case StatusRunning:
			stats.Running++
		case StatusComplete:
			stats.Complete++
			elapsed += job.Elapsed
		case StatusFailed:
			stats.Failed++
		case StatusCancelled:
			stats.Cancelled++
		}
	}
	if stats.Complete > 0 {
		stats.AvgElapsedMS = elapsed / int64(stats.Complete)
	}

	// In-memory counts stand in when the store has no counters
	stats.SessionAnalyses = int64(stats.Complete)
	stats.LifetimeAnalyses = int64(stats.Complete)
	if sws, ok := q.store.(StoreWithStats); ok {
		session, lifetime, err := sws.SessionLifetimeStats()
		if err == nil {
			stats.SessionAnalyses = session
			stats.LifetimeAnalyses = lifetime
		}
	}

	return stats
}

// ResetSessionStats zeroes the session counter in the store, if it keeps one.
func (q *Queue) ResetSessionStats() error {
	sws, ok := q.store.(StoreWithStats)
	if !ok {
		return nil
	}
	return sws.ResetSession()
}

// idCounter ensures unique IDs even when called in quick succession
var idCounter int64
var idMu sync.Mutex

// NewID creates a unique job ID. IDs sort by creation time.
func NewID() string {
	idMu.Lock()
	defer idMu.Unlock()
	idCounter++
	return fmt.Sprintf("%d-%d", time.Now().UnixNano(), idCounter)
}
