package upload

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestIsVideoType(t *testing.T) {
	tests := []struct {
		contentType string
		expected    bool
	}{
		{"video/mp4", true},
		{"video/quicktime", true},
		{"video/webm; codecs=vp9", true},
		{"VIDEO/MP4", true},
		{"text/plain", false},
		{"image/png", false},
		{"application/octet-stream", false},
		{"", false},
		{"video", false},
		{"not a type;;", false},
	}

	for _, tt := range tests {
		if got := IsVideoType(tt.contentType); got != tt.expected {
			t.Errorf("IsVideoType(%q) = %v, expected %v", tt.contentType, got, tt.expected)
		}
	}
}

func TestAcceptVideo(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, 1<<20, nil)

	v, err := s.Accept(context.Background(), "delivery.MP4", "video/mp4", strings.NewReader("fake video bytes"))
	if err != nil {
		t.Fatalf("Accept failed: %v", err)
	}

	if v.ID == "" {
		t.Error("expected an ID")
	}
	if v.Name != "delivery.MP4" || v.ContentType != "video/mp4" {
		t.Errorf("unexpected video %+v", v)
	}
	if v.Size != int64(len("fake video bytes")) {
		t.Errorf("expected size %d, got %d", len("fake video bytes"), v.Size)
	}
	if filepath.Dir(v.Path) != dir || filepath.Ext(v.Path) != ".mp4" {
		t.Errorf("unexpected path %s", v.Path)
	}
	if s.Count() != 1 {
		t.Errorf("expected 1 reference, got %d", s.Count())
	}

	got, f, err := s.Open(v.ID)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	data, _ := io.ReadAll(f)
	if string(data) != "fake video bytes" || got.ID != v.ID {
		t.Errorf("unexpected content %q", data)
	}
}

func TestAcceptRejectsNonVideo(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, 1<<20, nil)

	_, err := s.Accept(context.Background(), "notes.txt", "text/plain", strings.NewReader("hello"))
	if !errors.Is(err, ErrNotVideo) {
		t.Fatalf("expected ErrNotVideo, got %v", err)
	}

	if s.Count() != 0 {
		t.Error("rejected upload must not create a reference")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("rejected upload must not write files, found %d", len(entries))
	}
}

func TestAcceptTooLarge(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, 8, nil)

	_, err := s.Accept(context.Background(), "big.mp4", "video/mp4", strings.NewReader("0123456789"))
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Error("oversized upload should be removed")
	}

	// Exactly at the limit is fine
	if _, err := s.Accept(context.Background(), "ok.mp4", "video/mp4", strings.NewReader("01234567")); err != nil {
		t.Errorf("upload at limit failed: %v", err)
	}
}

func TestAcceptProbeFailureIsIgnored(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, 1<<20, ffmpegProber(t))

	v, err := s.Accept(context.Background(), "clip.mp4", "video/mp4", strings.NewReader("not really a video"))
	if err != nil {
		t.Fatalf("probe failure must not reject the upload: %v", err)
	}
	if v.Probe != nil {
		t.Error("expected no probe metadata for garbage input")
	}
}

func TestRevoke(t *testing.T) {
	s := NewStore(t.TempDir(), 1<<20, nil)

	v, err := s.Accept(context.Background(), "clip.mp4", "video/mp4", strings.NewReader("bytes"))
	if err != nil {
		t.Fatalf("Accept failed: %v", err)
	}

	s.Revoke(v.ID)

	if _, err := os.Stat(v.Path); !os.IsNotExist(err) {
		t.Error("revoked file should be deleted")
	}
	if _, err := s.Get(v.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, _, err := s.Open(v.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound from Open, got %v", err)
	}

	// Idempotent
	s.Revoke(v.ID)
	s.Revoke("never-existed")
}

func TestRevokeAll(t *testing.T) {
	s := NewStore(t.TempDir(), 1<<20, nil)
	for i := 0; i < 3; i++ {
		if _, err := s.Accept(context.Background(), "clip.mp4", "video/mp4", strings.NewReader("x")); err != nil {
			t.Fatalf("Accept failed: %v", err)
		}
	}

	s.RevokeAll()

	if s.Count() != 0 {
		t.Errorf("expected no references, got %d", s.Count())
	}
}

func TestGetReturnsCopy(t *testing.T) {
	s := NewStore(t.TempDir(), 1<<20, nil)
	v, _ := s.Accept(context.Background(), "clip.mp4", "video/mp4", strings.NewReader("x"))

	got, _ := s.Get(v.ID)
	got.Name = "changed"

	again, _ := s.Get(v.ID)
	if again.Name != "clip.mp4" {
		t.Error("Get should return a copy")
	}
}
