package pipeline

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/gwlsn/hawkeye/internal/logger"
	"github.com/gwlsn/hawkeye/internal/trajectory"
	"github.com/gwlsn/hawkeye/internal/upload"
)

var (
	ErrNoVideo         = errors.New("no video uploaded")
	ErrNotAnalyzed     = errors.New("analysis not available")
	ErrSessionNotFound = errors.New("session not found")
)

// Revoker releases uploaded videos
type Revoker interface {
	Revoke(id string)
}

// Media is the transport state of the uploaded clip
type Media struct {
	Playing  bool    `json:"playing"`
	Position float64 `json:"position"`
}

// Snapshot is a copy of a session's state, safe to hand to other goroutines
type Snapshot struct {
	ID          string        `json:"id"`
	Stage       Stage         `json:"stage"`
	Video       *upload.Video `json:"video,omitempty"`
	JobID       string        `json:"job_id,omitempty"`
	HasAnalysis bool          `json:"has_analysis"`
	Media       Media         `json:"media"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Session is one user's walk through the pipeline. It is safe for concurrent use.
type Session struct {
	id      string
	uploads Revoker

	mu        sync.Mutex
	state     State
	media     Media
	createdAt time.Time
	updatedAt time.Time
}

// NewSession creates an empty session. A nil revoker skips revocation.
func NewSession(id string, uploads Revoker) *Session {
	now := time.Now()
	return &Session{
		id:        id,
		uploads:   uploads,
		state:     Empty{},
		createdAt: now,
		updatedAt: now,
	}
}

// ID returns the session ID
func (s *Session) ID() string {
	return s.id
}

// State returns the current stage payload
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Upload replaces any previous video, which is revoked. Any analysis is
// discarded. Returns the ID of a job left running for the old video, if any.
func (s *Session) Upload(video *upload.Video) (superseded string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	superseded = s.runningJobLocked()
	s.revokeLocked(video)
	s.state = Uploaded{Video: video}
	s.media = Media{}
	s.touchLocked()

	logger.Debug("Session video set", "session_id", s.id, "video_id", video.ID)
	return superseded
}

// ClearUpload revokes the video and returns to Empty. Returns the ID of a
// job left running for the video, if any.
func (s *Session) ClearUpload() (superseded string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	superseded = s.runningJobLocked()
	s.revokeLocked(nil)
	s.state = Empty{}
	s.media = Media{}
	s.touchLocked()
	return superseded
}

// Video returns the uploaded video, or ErrNoVideo
func (s *Session) Video() (*upload.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.state.video()
	if v == nil {
		return nil, ErrNoVideo
	}
	return v, nil
}

// BeginAnalysis moves to Analyzing under jobID. Any previous analysis is
// discarded. Returns the ID of a job it replaces, if any.
func (s *Session) BeginAnalysis(jobID string) (superseded string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.state.video()
	if v == nil {
		return "", ErrNoVideo
	}
	superseded = s.runningJobLocked()
	s.state = Analyzing{Video: v, JobID: jobID}
	s.touchLocked()
	return superseded, nil
}

// CompleteAnalysis stores the analysis if jobID is the current job.
// Reports whether it was accepted.
func (s *Session) CompleteAnalysis(jobID string, analysis *trajectory.Analysis) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.state.(Analyzing)
	if !ok || cur.JobID != jobID || analysis == nil {
		return false
	}
	s.state = Analyzed{Video: cur.Video, JobID: jobID, Analysis: analysis.Copy()}
	s.touchLocked()
	return true
}

// AbortAnalysis drops back to Uploaded if jobID is the current job.
// Reports whether the session changed.
func (s *Session) AbortAnalysis(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.state.(Analyzing)
	if !ok || cur.JobID != jobID {
		return false
	}
	s.state = Uploaded{Video: cur.Video}
	s.touchLocked()
	return true
}

// Analysis returns a copy of the finished analysis, or ErrNotAnalyzed
func (s *Session) Analysis() (*trajectory.Analysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.state.(Analyzed)
	if !ok {
		return nil, ErrNotAnalyzed
	}
	return cur.Analysis.Copy(), nil
}

// Play starts the uploaded media
func (s *Session) Play() (Media, error) {
	return s.transport(func(m *Media) { m.Playing = true })
}

// Pause stops the uploaded media in place
func (s *Session) Pause() (Media, error) {
	return s.transport(func(m *Media) { m.Playing = false })
}

// Toggle flips between playing and paused
func (s *Session) Toggle() (Media, error) {
	return s.transport(func(m *Media) { m.Playing = !m.Playing })
}

// Reset rewinds to the start and pauses
func (s *Session) Reset() (Media, error) {
	return s.transport(func(m *Media) { *m = Media{} })
}

// Seek moves the media position, in seconds. Negative values clamp to 0.
func (s *Session) Seek(position float64) (Media, error) {
	if position < 0 || math.IsNaN(position) {
		position = 0
	}
	return s.transport(func(m *Media) { m.Position = position })
}

func (s *Session) transport(fn func(*Media)) (Media, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.video() == nil {
		return Media{}, ErrNoVideo
	}
	fn(&s.media)
	s.touchLocked()
	return s.media, nil
}

// Snapshot returns a copy of the session state
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:        s.id,
		Stage:     s.state.Stage(),
		Media:     s.media,
		CreatedAt: s.createdAt,
		UpdatedAt: s.updatedAt,
	}
	if v := s.state.video(); v != nil {
		c := *v
		snap.Video = &c
	}
	switch st := s.state.(type) {
	case Analyzing:
		snap.JobID = st.JobID
	case Analyzed:
		snap.JobID = st.JobID
		snap.HasAnalysis = true
	}
	return snap
}

// idleSince returns when the session last changed
func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// close revokes the video and empties the session. Returns the ID of a job
// left running, if any.
func (s *Session) close() string {
	return s.ClearUpload()
}

func (s *Session) runningJobLocked() string {
	if cur, ok := s.state.(Analyzing); ok {
		return cur.JobID
	}
	return ""
}

// revokeLocked revokes the current video unless it is next
func (s *Session) revokeLocked(next *upload.Video) {
	prev := s.state.video()
	if prev == nil || s.uploads == nil {
		return
	}
	if next != nil && next.ID == prev.ID {
		return
	}
	s.uploads.Revoke(prev.ID)
}

func (s *Session) touchLocked() {
	s.updatedAt = time.Now()
}
