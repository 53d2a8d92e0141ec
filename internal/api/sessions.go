package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gwlsn/hawkeye/internal/jobs"
	"github.com/gwlsn/hawkeye/internal/logger"
	"github.com/gwlsn/hawkeye/internal/pipeline"
	"github.com/gwlsn/hawkeye/internal/scene"
	"github.com/gwlsn/hawkeye/internal/upload"
)

// multipartOverhead is allowed on top of the upload cap for form framing
const multipartOverhead = 1 << 20

// session looks up the session named in the path, writing 404 if it is missing
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*pipeline.Session, bool) {
	s, err := h.sessions.Get(r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return nil, false
	}
	return s, true
}

// cancelSuperseded stops a job whose result a session no longer wants
func (h *Handler) cancelSuperseded(jobID string) {
	if jobID == "" {
		return
	}
	if err := h.cancelJob(jobID); err != nil && !errors.Is(err, jobs.ErrJobFinished) {
		logger.Warn("Failed to cancel superseded job", "job_id", jobID, "error", err)
	}
}

// CreateSession handles POST /api/sessions
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Create()
	writeJSON(w, http.StatusCreated, s.Snapshot())
}

// GetSession handles GET /api/sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

// DeleteSession handles DELETE /api/sessions/{id}
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	jobID, err := h.sessions.Delete(r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	h.cancelSuperseded(jobID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Upload handles POST /api/sessions/{id}/upload with the clip in the "video" field
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	h.cfgMu.RLock()
	limit := h.cfg.MaxUploadBytes()
	h.cfgMu.RUnlock()

	if r.ContentLength > limit+multipartOverhead {
		writeErr(w, upload.ErrTooLarge)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	file, header, err := r.FormFile("video")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeErr(w, upload.ErrTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, "multipart field \"video\" required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !upload.IsVideoType(contentType) {
		logger.Debug("Rejected upload", "session_id", s.ID(), "name", header.Filename, "content_type", contentType)
		writeErr(w, upload.ErrNotVideo)
		return
	}

	video, err := h.uploads.Accept(r.Context(), header.Filename, contentType, file)
	if err != nil {
		writeErr(w, err)
		return
	}

	h.cancelSuperseded(s.Upload(video))
	writeJSON(w, http.StatusCreated, s.Snapshot())
}

// ClearUpload handles DELETE /api/sessions/{id}/upload
func (h *Handler) ClearUpload(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.cancelSuperseded(s.ClearUpload())
	writeJSON(w, http.StatusOK, s.Snapshot())
}

// Video handles GET /api/sessions/{id}/video. Range requests are supported.
func (h *Handler) Video(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	v, err := s.Video()
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	video, f, err := h.uploads.Open(v.ID)
	if err != nil {
		writeErr(w, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", video.ContentType)
	http.ServeContent(w, r, video.Name, video.CreatedAt, f)
}

// MediaRequest is the request body for media transport
type MediaRequest struct {
	Action   string  `json:"action"`
	Position float64 `json:"position,omitempty"`
}

// Media handles POST /api/sessions/{id}/media
func (h *Handler) Media(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req MediaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var (
		media pipeline.Media
		err   error
	)
	switch req.Action {
	case "play":
		media, err = s.Play()
	case "pause":
		media, err = s.Pause()
	case "toggle":
		media, err = s.Toggle()
	case "reset":
		media, err = s.Reset()
	case "seek":
		media, err = s.Seek(req.Position)
	default:
		writeError(w, http.StatusBadRequest, "action must be play, pause, toggle, reset or seek")
		return
	}
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, media)
}

// Analyze handles POST /api/sessions/{id}/analyze
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	video, err := s.Video()
	if err != nil {
		writeErr(w, err)
		return
	}

	h.cfgMu.RLock()
	steps := h.cfg.AnalysisSteps
	h.cfgMu.RUnlock()

	// The session moves first so a fast worker always finds its job current
	id := jobs.NewID()
	superseded, err := s.BeginAnalysis(id)
	if err != nil {
		// Video cleared since the check above
		writeErr(w, err)
		return
	}
	h.cancelSuperseded(superseded)

	job := h.queue.AddWithID(id, jobs.Source{
		SessionID: s.ID(),
		VideoID:   video.ID,
		VideoName: video.Name,
		VideoSize: video.Size,
	}, steps)

	if s.Snapshot().JobID != id {
		// Superseded before it was queued
		h.cancelSuperseded(id)
	}

	logger.Info("Analysis queued", "job_id", job.ID, "session_id", s.ID(), "steps", job.Steps)
	writeJSON(w, http.StatusAccepted, job)
}

// CancelAnalysis handles DELETE /api/sessions/{id}/analyze
func (h *Handler) CancelAnalysis(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	st, analyzing := s.State().(pipeline.Analyzing)
	if !analyzing {
		writeError(w, http.StatusConflict, "no analysis in progress")
		return
	}

	if err := h.cancelJob(st.JobID); err != nil && !errors.Is(err, jobs.ErrJobFinished) {
		writeErr(w, err)
		return
	}
	s.AbortAnalysis(st.JobID)

	writeJSON(w, http.StatusOK, s.Snapshot())
}

// Analysis handles GET /api/sessions/{id}/analysis
func (h *Handler) Analysis(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	a, err := s.Analysis()
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Scene handles GET /api/sessions/{id}/scene?progress=0.5
func (h *Handler) Scene(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	progress := 0.0
	if p := r.URL.Query().Get("progress"); p != "" {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "progress must be a number")
			return
		}
		progress = v
	}

	a, err := s.Analysis()
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, scene.Render(a.Trajectory, progress, h.renderOptions()))
}

func (h *Handler) renderOptions() scene.Options {
	h.cfgMu.RLock()
	defer h.cfgMu.RUnlock()
	return scene.Options{BounceHeight: h.cfg.BounceHeight}
}
