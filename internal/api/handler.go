package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gwlsn/hawkeye/internal/config"
	"github.com/gwlsn/hawkeye/internal/jobs"
	"github.com/gwlsn/hawkeye/internal/logger"
	"github.com/gwlsn/hawkeye/internal/pipeline"
	"github.com/gwlsn/hawkeye/internal/trajectory"
	"github.com/gwlsn/hawkeye/internal/upload"
)

// Handler provides HTTP API handlers
type Handler struct {
	queue      *jobs.Queue
	workerPool *jobs.WorkerPool
	sessions   *pipeline.Registry
	uploads    *upload.Store
	cfg        *config.Config
	cfgPath    string
	cfgMu      sync.RWMutex // Protects cfg against concurrent updates

	// ctx scopes replay connections; cancelled on shutdown
	ctx context.Context
}

// NewHandler creates a new API handler. Replays are stopped when ctx is cancelled.
func NewHandler(ctx context.Context, queue *jobs.Queue, workerPool *jobs.WorkerPool, sessions *pipeline.Registry, uploads *upload.Store, cfg *config.Config, cfgPath string) *Handler {
	return &Handler{
		queue:      queue,
		workerPool: workerPool,
		sessions:   sessions,
		uploads:    uploads,
		cfg:        cfg,
		cfgPath:    cfgPath,
		ctx:        ctx,
	}
}

// JobCallbacks routes worker outcomes to the owning session
func JobCallbacks(sessions *pipeline.Registry) jobs.Callbacks {
	return jobs.Callbacks{
		OnComplete: func(job *jobs.Job, analysis *trajectory.Analysis) {
			s, err := sessions.Get(job.SessionID)
			if err != nil {
				logger.Debug("Analysis finished for a closed session", "job_id", job.ID, "session_id", job.SessionID)
				return
			}
			if !s.CompleteAnalysis(job.ID, analysis) {
				logger.Debug("Discarding stale analysis", "job_id", job.ID, "session_id", job.SessionID)
			}
		},
		OnAbort: func(job *jobs.Job) {
			if s, err := sessions.Get(job.SessionID); err == nil {
				s.AbortAnalysis(job.ID)
			}
		},
	}
}

// response helpers

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeErr maps package sentinels to status codes
func writeErr(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, upload.ErrNotVideo):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, upload.ErrTooLarge), errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, pipeline.ErrSessionNotFound),
		errors.Is(err, upload.ErrNotFound),
		errors.Is(err, jobs.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrNoVideo),
		errors.Is(err, pipeline.ErrNotAnalyzed),
		errors.Is(err, jobs.ErrJobNotRunning),
		errors.Is(err, jobs.ErrJobNotPending),
		errors.Is(err, jobs.ErrJobFinished):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// cancelJob stops a job whether it is running or still pending. A running
// job has finished and fired its callback by the time this returns.
func (h *Handler) cancelJob(id string) error {
	if h.workerPool.CancelJob(id) {
		return nil
	}
	if err := h.queue.CancelJob(id); err != nil {
		return err
	}
	// Picked up between the two calls
	h.workerPool.CancelJob(id)
	return nil
}

// ListJobs handles GET /api/jobs
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	allJobs := h.queue.GetAll()
	stats := h.queue.Stats()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  allJobs,
		"stats": stats,
	})
}

// GetJob handles GET /api/jobs/{id}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "job ID required")
		return
	}

	job := h.queue.Get(id)
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	writeJSON(w, http.StatusOK, job)
}

// CancelJob handles DELETE /api/jobs/{id}
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "job ID required")
		return
	}

	job := h.queue.Get(id)
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	if err := h.cancelJob(id); err != nil {
		// Might already be cancelled/completed
		writeErr(w, err)
		return
	}

	// A pending job never reached a worker, so no callback fired
	if s, err := h.sessions.Get(job.SessionID); err == nil {
		s.AbortAnalysis(id)
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// ClearQueue handles POST /api/jobs/clear?status=complete
func (h *Handler) ClearQueue(w http.ResponseWriter, r *http.Request) {
	status := jobs.Status(r.URL.Query().Get("status"))
	if status != "" && status != jobs.StatusComplete && status != jobs.StatusFailed && status != jobs.StatusCancelled {
		writeError(w, http.StatusBadRequest, "status must be complete, failed or cancelled")
		return
	}

	// Pending jobs belong to sessions still waiting on them, so only
	// finished jobs are cleared
	count := 0
	if status != "" {
		count = h.queue.Clear(status)
	} else {
		for _, st := range []jobs.Status{jobs.StatusComplete, jobs.StatusFailed, jobs.StatusCancelled} {
			count += h.queue.Clear(st)
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cleared": count,
		"message": fmt.Sprintf("Cleared %d jobs", count),
	})
}

// PauseQueue handles POST /api/queue/pause
func (h *Handler) PauseQueue(w http.ResponseWriter, r *http.Request) {
	requeued := h.workerPool.Pause()
	logger.Info("Queue paused", "requeued", requeued)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"paused":   true,
		"requeued": requeued,
	})
}

// ResumeQueue handles POST /api/queue/resume
func (h *Handler) ResumeQueue(w http.ResponseWriter, r *http.Request) {
	h.workerPool.Unpause()
	logger.Info("Queue resumed")
	writeJSON(w, http.StatusOK, map[string]interface{}{"paused": false})
}

// GetConfig handles GET /api/config
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	h.cfgMu.RLock()
	defer h.cfgMu.RUnlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"workers":              h.cfg.Workers,
		"analysis_steps":       h.cfg.AnalysisSteps,
		"step_delay_ms":        h.cfg.StepDelayMS,
		"playback_increment":   h.cfg.PlaybackIncrement,
		"playback_interval_ms": h.cfg.PlaybackIntervalMS,
		"bounce_height":        h.cfg.BounceHeight,
		"max_upload_mb":        h.cfg.MaxUploadMB,
		"log_level":            h.cfg.LogLevel,
		"paused":               h.workerPool.IsPaused(),
	})
}

// UpdateConfigRequest is the request body for updating config
type UpdateConfigRequest struct {
	Workers           *int     `json:"workers,omitempty"`
	AnalysisSteps     *int     `json:"analysis_steps,omitempty"`
	StepDelayMS       *int     `json:"step_delay_ms,omitempty"`
	PlaybackIncrement *float64 `json:"playback_increment,omitempty"`
	BounceHeight      *float64 `json:"bounce_height,omitempty"`
	LogLevel          *string  `json:"log_level,omitempty"`
}

// UpdateConfig handles PUT /api/config
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req UpdateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Validate everything before touching the config
	if req.AnalysisSteps != nil && !jobs.IsValidSteps(*req.AnalysisSteps) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("analysis_steps must be between %d and %d", jobs.MinSteps, jobs.MaxSteps))
		return
	}
	if req.StepDelayMS != nil && *req.StepDelayMS < 0 {
		writeError(w, http.StatusBadRequest, "step_delay_ms must not be negative")
		return
	}
	if req.PlaybackIncrement != nil && (*req.PlaybackIncrement <= 0 || *req.PlaybackIncrement > 1) {
		writeError(w, http.StatusBadRequest, "playback_increment must be in (0, 1]")
		return
	}
	if req.BounceHeight != nil && *req.BounceHeight <= 0 {
		writeError(w, http.StatusBadRequest, "bounce_height must be positive")
		return
	}
	if req.LogLevel != nil && !logger.ValidLevel(*req.LogLevel) {
		writeError(w, http.StatusBadRequest, "log_level must be debug, info, warn or error")
		return
	}

	h.cfgMu.Lock()
	defer h.cfgMu.Unlock()

	if req.Workers != nil && *req.Workers > 0 {
		// Dynamically resize the worker pool
		h.workerPool.Resize(*req.Workers)
	}
	if req.AnalysisSteps != nil {
		h.cfg.AnalysisSteps = *req.AnalysisSteps
	}
	if req.StepDelayMS != nil {
		h.cfg.StepDelayMS = *req.StepDelayMS
		h.workerPool.SetStepDelay(h.cfg.StepDelay())
	}
	if req.PlaybackIncrement != nil {
		h.cfg.PlaybackIncrement = *req.PlaybackIncrement
	}
	if req.BounceHeight != nil {
		h.cfg.BounceHeight = *req.BounceHeight
	}
	if req.LogLevel != nil {
		h.cfg.LogLevel = *req.LogLevel
		logger.SetLevel(*req.LogLevel)
	}

	// Persist config to disk
	if h.cfgPath != "" {
		if err := h.cfg.Save(h.cfgPath); err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to save config: %v", err))
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// SessionTTL returns the idle lifetime of a session under the config lock.
func (h *Handler) SessionTTL() time.Duration {
	h.cfgMu.RLock()
	defer h.cfgMu.RUnlock()
	return h.cfg.SessionTTL()
}

// Stats handles GET /api/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats := h.queue.Stats()
	writeJSON(w, http.StatusOK, stats)
}

// ResetSession handles POST /api/stats/reset-session
func (h *Handler) ResetSession(w http.ResponseWriter, r *http.Request) {
	if err := h.queue.ResetSessionStats(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.queue.Stats())
}
