package jobs

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/gwlsn/hawkeye/internal/config"
	"github.com/gwlsn/hawkeye/internal/logger"
	"github.com/gwlsn/hawkeye/internal/trajectory"
)

// Callbacks deliver the outcome of each job exactly once. OnComplete gets
// its own copy of the analysis. OnAbort fires for cancelled and failed jobs
// but not for jobs requeued by Pause or Resize, nor on shutdown.
type Callbacks struct {
	OnComplete func(job *Job, analysis *trajectory.Analysis)
	OnAbort    func(job *Job)
}

// Worker processes analysis jobs from the queue
type Worker struct {
	id    int
	pool  *WorkerPool
	queue *Queue

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Currently running job (for cancellation)
	currentJobMu sync.Mutex
	currentJob   *Job
	jobCancel    context.CancelFunc
	jobDone      chan struct{} // Closed when current job finishes
}

// WorkerPool manages multiple workers
type WorkerPool struct {
	mu           sync.Mutex
	workers      []*Worker
	queue        *Queue
	cfg          *config.Config
	callbacks    Callbacks
	nextWorkerID int

	// pollInterval is how long an idle worker waits before checking the queue again
	pollInterval time.Duration

	// stepDelay is read by workers at job start and set by the config handler
	stepDelay atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc

	// Pause state - when true, workers won't pick up new jobs
	paused   bool
	pausedMu sync.RWMutex
}

// runningJob tracks a job being processed by a worker.
// Used by Resize and Pause to collect and manage running jobs.
type runningJob struct {
	worker *Worker
	jobID  string
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(queue *Queue, cfg *config.Config, callbacks Callbacks) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())

	n := ClampWorkerCount(cfg.Workers)
	pool := &WorkerPool{
		workers:      make([]*Worker, 0, n),
		queue:        queue,
		cfg:          cfg,
		callbacks:    callbacks,
		pollInterval: 100 * time.Millisecond,
		ctx:          ctx,
		cancel:       cancel,
	}

	pool.stepDelay.Store(int64(cfg.StepDelay()))

	for i := 0; i < n; i++ {
		pool.workers = append(pool.workers, pool.createWorker())
	}

	return pool
}

// SetStepDelay changes the per-frame delay for jobs started from now on.
func (p *WorkerPool) SetStepDelay(d time.Duration) {
	p.stepDelay.Store(int64(d))
}

// StepDelay returns the per-frame delay new jobs run with.
func (p *WorkerPool) StepDelay() time.Duration {
	return time.Duration(p.stepDelay.Load())
}

// createWorker creates a new worker with the next available ID
func (p *WorkerPool) createWorker() *Worker {
	worker := &Worker{
		id:    p.nextWorkerID,
		pool:  p,
		queue: p.queue,
	}
	p.nextWorkerID++
	return worker
}

// Start starts all workers
func (p *WorkerPool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, w := range p.workers {
		w.Start(p.ctx)
	}
}

// Stop cancels every running generator and waits for the workers to exit
func (p *WorkerPool) Stop() {
	p.cancel()

	p.mu.Lock()
	workers := make([]*Worker, len(p.workers))
	copy(workers, p.workers)
	p.mu.Unlock()

	for _, w := range workers {
		w.Stop()
	}
}

// CancelJob cancels a specific job if it's currently running and waits until
// its generator has returned and OnAbort has fired. Returns false if no
// worker is running the job.
func (p *WorkerPool) CancelJob(jobID string) bool {
	p.mu.Lock()
	workers := make([]*Worker, len(p.workers))
	copy(workers, p.workers)
	p.mu.Unlock()

	for _, w := range workers {
		if done := w.CancelCurrentJob(jobID); done != nil {
			<-done
			return true
		}
	}
	return false
}

// Resize changes the number of workers in the pool
// If n > current, new workers are started immediately
// If n < current, excess workers are stopped immediately
// Jobs are requeued in reverse order (most recently added jobs first)
func (p *WorkerPool) Resize(n int) {
	n = ClampWorkerCount(n)

	p.mu.Lock()
	defer p.mu.Unlock()

	current := len(p.workers)

	if n > current {
		for i := current; i < n; i++ {
			worker := p.createWorker()
			worker.Start(p.ctx)
			p.workers = append(p.workers, worker)
		}
	} else if n < current {
		workersToStop := current - n

		runningJobs := p.collectRunningLocked()

		// Job IDs are timestamp-based, so lexicographically larger = more recent
		sort.Slice(runningJobs, func(i, j int) bool {
			return runningJobs[i].jobID > runningJobs[j].jobID
		})

		stopped := 0
		for _, rj := range runningJobs {
			if stopped >= workersToStop {
				break
			}

			// The stopped worker leaves its job running, so requeue afterwards
			rj.worker.CancelAndStop()
			if err := p.queue.Requeue(rj.jobID); err != nil {
				logger.Warn("Failed to requeue job during resize", "job_id", rj.jobID, "error", err)
			}

			for j, w := range p.workers {
				if w == rj.worker {
					p.workers = append(p.workers[:j], p.workers[j+1:]...)
					break
				}
			}
			stopped++
		}

		// Remove idle workers from the end
		for len(p.workers) > n {
			w := p.workers[len(p.workers)-1]
			p.workers = p.workers[:len(p.workers)-1]
			w.CancelAndStop()
		}
	}

	p.cfg.Workers = n
	logger.Info("Worker pool resized", "workers", n)
}

// collectRunningLocked lists workers with a job in flight. Called with p.mu held.
func (p *WorkerPool) collectRunningLocked() []runningJob {
	var running []runningJob
	for _, w := range p.workers {
		w.currentJobMu.Lock()
		if w.currentJob != nil {
			running = append(running, runningJob{worker: w, jobID: w.currentJob.ID})
		}
		w.currentJobMu.Unlock()
	}
	return running
}

// WorkerCount returns the current number of workers
func (p *WorkerPool) WorkerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// IsPaused returns whether job processing is paused
func (p *WorkerPool) IsPaused() bool {
	p.pausedMu.RLock()
	defer p.pausedMu.RUnlock()
	return p.paused
}

// Pause stops all running jobs and prevents new jobs from starting.
// Returns the number of jobs that were requeued.
func (p *WorkerPool) Pause() int {
	p.pausedMu.Lock()
	p.paused = true
	p.pausedMu.Unlock()

	p.mu.Lock()
	runningJobs := p.collectRunningLocked()
	p.mu.Unlock()

	// Oldest first, then requeue newest first so the oldest ends up at the front
	sort.Slice(runningJobs, func(i, j int) bool {
		return runningJobs[i].jobID < runningJobs[j].jobID
	})

	count := 0
	for i := len(runningJobs) - 1; i >= 0; i-- {
		rj := runningJobs[i]
		if err := p.queue.Requeue(rj.jobID); err != nil {
			logger.Warn("Failed to requeue job during pause", "job_id", rj.jobID, "error", err)
			continue
		}
		count++

		if done := rj.worker.CancelCurrentJob(rj.jobID); done != nil {
			<-done
		}
	}

	return count
}

// Unpause allows workers to pick up jobs again
func (p *WorkerPool) Unpause() {
	p.pausedMu.Lock()
	p.paused = false
	p.pausedMu.Unlock()
}

// Start starts the worker's processing loop
func (w *Worker) Start(parentCtx context.Context) {
	w.ctx, w.cancel = context.WithCancel(parentCtx)
	w.wg.Add(1)

	go w.run()
}

// Stop stops the worker
func (w *Worker) Stop() {
	w.cancel()
	w.wg.Wait()
}

// run is the main worker loop
func (w *Worker) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
			if w.pool.IsPaused() {
				if !w.sleep() {
					return
				}
				continue
			}

			job := w.queue.GetNext()
			if job == nil {
				if !w.sleep() {
					return
				}
				continue
			}

			w.processJob(job)
		}
	}
}

// sleep waits one poll interval. Returns false if the worker was stopped.
func (w *Worker) sleep() bool {
	select {
	case <-w.ctx.Done():
		return false
	case <-time.After(w.pool.pollInterval):
		return true
	}
}

// processJob runs the generator for a single job
func (w *Worker) processJob(job *Job) {
	jobCtx, jobCancel := context.WithCancel(w.ctx)
	defer jobCancel()

	w.currentJobMu.Lock()
	w.currentJob = job
	w.jobCancel = jobCancel
	w.jobDone = make(chan struct{})
	w.currentJobMu.Unlock()

	// Registered first so it runs last, after the callbacks
	defer func() {
		w.currentJobMu.Lock()
		w.currentJob = nil
		w.jobCancel = nil
		if w.jobDone != nil {
			close(w.jobDone)
			w.jobDone = nil
		}
		w.currentJobMu.Unlock()
	}()

	// Mark job as started (first worker to call this wins)
	if err := w.queue.StartJob(job.ID); err != nil {
		return
	}

	logger.Info("Job started", "job_id", job.ID, "session_id", job.SessionID,
		"video", job.VideoName, "size", humanize.Bytes(uint64(job.VideoSize)), "steps", job.Steps)

	gen := trajectory.NewGenerator(job.Steps, w.pool.StepDelay())
	analysis, err := trajectory.Analyze(jobCtx, gen, func(done, total int) {
		w.queue.UpdateProgress(job.ID, done, total)
	})

	if err != nil && jobCtx.Err() != nil {
		if w.ctx.Err() != nil {
			// Shutdown or resize. The job was requeued or is reset on next start.
			logger.Info("Job interrupted by shutdown", "job_id", job.ID)
			return
		}
		cur := w.queue.Get(job.ID)
		if cur == nil || cur.Status != StatusRunning {
			// Requeued by Pause, or already cancelled while pending
			if cur != nil && cur.Status == StatusCancelled {
				w.abort(cur)
			}
			return
		}
		logger.Info("Job cancelled", "job_id", job.ID, "step", cur.Step, "steps", cur.Steps)
		if cerr := w.queue.CancelJob(job.ID); cerr != nil && !errors.Is(cerr, ErrJobFinished) {
			logger.Warn("Failed to cancel job", "job_id", job.ID, "error", cerr)
		}
		w.abort(w.queue.Get(job.ID))
		return
	}

	if err != nil {
		logger.Error("Job failed", "job_id", job.ID, "error", err.Error())
		_ = w.queue.FailJob(job.ID, err.Error())
		w.abort(w.queue.Get(job.ID))
		return
	}

	if err := w.queue.CompleteJob(job.ID, analysis); err != nil {
		// Cancelled after the last step but before completion was recorded
		logger.Warn("Job finished after cancellation", "job_id", job.ID, "error", err)
		w.abort(w.queue.Get(job.ID))
		return
	}

	done := w.queue.Get(job.ID)
	logger.Info("Job complete", "job_id", job.ID,
		"elapsed", time.Duration(done.Elapsed)*time.Millisecond,
		"max_speed", analysis.Stats.MaxSpeed, "max_spin", analysis.Stats.MaxSpin)

	if cb := w.pool.callbacks.OnComplete; cb != nil {
		cb(done, analysis)
	}
}

func (w *Worker) abort(job *Job) {
	if job == nil {
		return
	}
	if cb := w.pool.callbacks.OnAbort; cb != nil {
		cb(job)
	}
}

// CancelCurrentJob cancels the job if it matches the given ID.
// Returns a channel that will be closed when the job finishes, or nil if job not found.
func (w *Worker) CancelCurrentJob(jobID string) <-chan struct{} {
	w.currentJobMu.Lock()
	defer w.currentJobMu.Unlock()

	if w.currentJob != nil && w.currentJob.ID == jobID && w.jobCancel != nil {
		w.jobCancel()
		return w.jobDone
	}
	return nil
}

// CancelAndStop cancels any current job and stops the worker immediately.
// The job context derives from the worker context, so the job sees a
// shutdown rather than a user cancel and is left for the caller to requeue.
func (w *Worker) CancelAndStop() {
	if w.cancel == nil {
		return
	}
	w.Stop()
}
