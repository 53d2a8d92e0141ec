// Package upload holds uploaded clips on local disk behind revocable references.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/gwlsn/hawkeye/internal/ffmpeg"
	"github.com/gwlsn/hawkeye/internal/logger"
)

var (
	ErrNotVideo = errors.New("please upload a valid video file")
	ErrTooLarge = errors.New("upload exceeds size limit")
	ErrNotFound = errors.New("video not found")
)

// probeTimeout bounds the optional ffprobe call made after an upload
const probeTimeout = 10 * time.Second

// Video is a reference to an uploaded clip
type Video struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	ContentType string              `json:"content_type"`
	Size        int64               `json:"size"`
	Path        string              `json:"-"`
	CreatedAt   time.Time           `json:"created_at"`
	Probe       *ffmpeg.ProbeResult `json:"probe,omitempty"`
}

// IsVideoType reports whether a declared content type is a video/* media type
func IsVideoType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mediaType, "video/")
}

// Store keeps uploaded clips in a directory, keyed by ID
type Store struct {
	dir      string
	maxBytes int64
	prober   *ffmpeg.Prober

	mu     sync.Mutex
	videos map[string]*Video
}

// NewStore creates a store writing to dir. A nil prober skips metadata.
func NewStore(dir string, maxBytes int64, prober *ffmpeg.Prober) *Store {
	return &Store{
		dir:      dir,
		maxBytes: maxBytes,
		prober:   prober,
		videos:   make(map[string]*Video),
	}
}

// Accept validates the declared type and writes r to disk. Nothing is
// written when the type is rejected.
func (s *Store) Accept(ctx context.Context, name, contentType string, r io.Reader) (*Video, error) {
	if !IsVideoType(contentType) {
		return nil, fmt.Errorf("%w: %q", ErrNotVideo, contentType)
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	id := uuid.NewString()
	path := filepath.Join(s.dir, id+strings.ToLower(filepath.Ext(name)))

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload file: %w", err)
	}

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to write upload: %w", err)
	}
	if s.maxBytes > 0 && n > s.maxBytes {
		os.Remove(path)
		return nil, fmt.Errorf("%w: limit is %s", ErrTooLarge, humanize.IBytes(uint64(s.maxBytes)))
	}

	video := &Video{
		ID:          id,
		Name:        filepath.Base(name),
		ContentType: contentType,
		Size:        n,
		Path:        path,
		CreatedAt:   time.Now(),
	}
	video.Probe = s.probe(ctx, path)

	s.mu.Lock()
	s.videos[id] = video
	s.mu.Unlock()

	logger.Info("Video uploaded", "video_id", id, "name", video.Name, "size", humanize.Bytes(uint64(n)))
	return video.copy(), nil
}

// probe returns clip metadata, or nil if ffprobe is unavailable or fails
func (s *Store) probe(ctx context.Context, path string) *ffmpeg.ProbeResult {
	if s.prober == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	result, err := s.prober.Probe(ctx, path)
	if err != nil {
		logger.Debug("Probe failed, continuing without metadata", "path", path, "error", err)
		return nil
	}
	return result
}

// Get returns a copy of the video reference
func (s *Store) Get(id string) (*Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	if !ok {
		return nil, ErrNotFound
	}
	return v.copy(), nil
}

// Open returns the video and an open handle on its bytes. The caller closes the file.
func (s *Store) Open(id string) (*Video, *os.File, error) {
	v, err := s.Get(id)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(v.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	return v, f, nil
}

// Revoke releases the reference and deletes its bytes. Unknown IDs are ignored.
func (s *Store) Revoke(id string) {
	s.mu.Lock()
	v, ok := s.videos[id]
	delete(s.videos, id)
	s.mu.Unlock()

	if !ok {
		return
	}
	if err := os.Remove(v.Path); err != nil && !os.IsNotExist(err) {
		logger.Warn("Failed to remove upload", "video_id", id, "error", err)
		return
	}
	logger.Debug("Video revoked", "video_id", id)
}

// Count returns the number of live references
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.videos)
}

// RevokeAll deletes every upload, used on shutdown
func (s *Store) RevokeAll() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.videos))
	for id := range s.videos {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.Revoke(id)
	}
}

func (v *Video) copy() *Video {
	c := *v
	if v.Probe != nil {
		p := *v.Probe
		c.Probe = &p
	}
	return &c
}
