package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gwlsn/hawkeye/internal/logger"
)

// Registry holds sessions by ID
type Registry struct {
	uploads Revoker

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry whose sessions revoke through uploads
func NewRegistry(uploads Revoker) *Registry {
	return &Registry{
		uploads:  uploads,
		sessions: make(map[string]*Session),
	}
}

// Create adds a new empty session
func (r *Registry) Create() *Session {
	s := NewSession(uuid.NewString(), r.uploads)

	r.mu.Lock()
	r.sessions[s.ID()] = s
	r.mu.Unlock()

	logger.Debug("Session created", "session_id", s.ID())
	return s
}

// Get returns a session by ID
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Delete removes a session and revokes its video. Returns the ID of a job
// left running for it, if any.
func (r *Registry) Delete(id string) (string, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return "", ErrSessionNotFound
	}
	return s.close(), nil
}

// Sweep deletes sessions idle for longer than maxAge. Sessions with an
// analysis in flight are kept. Returns the number removed.
func (r *Registry) Sweep(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	r.mu.Lock()
	var stale []*Session
	for id, s := range r.sessions {
		if s.State().Stage() == StageAnalyzing {
			continue
		}
		if s.idleSince().Before(cutoff) {
			stale = append(stale, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range stale {
		s.close()
	}
	if len(stale) > 0 {
		logger.Info("Swept idle sessions", "count", len(stale))
	}
	return len(stale)
}

// Len returns the number of sessions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close empties every session, revoking all videos
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
}
