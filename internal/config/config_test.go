package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AnalysisSteps != 60 {
		t.Errorf("expected 60 steps, got %d", cfg.AnalysisSteps)
	}
	if cfg.StepDelay() != 50*time.Millisecond {
		t.Errorf("expected 50ms step delay, got %v", cfg.StepDelay())
	}
	if cfg.PlaybackIncrement != 0.01 {
		t.Errorf("expected 0.01 increment, got %v", cfg.PlaybackIncrement)
	}
}

func TestLoadAppliesDefaultsForEmptyValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hawkeye.yaml")
	content := "upload_path: /srv/clips\nworkers: 0\nanalysis_steps: 30\nplayback_increment: 4\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.UploadPath != "/srv/clips" {
		t.Errorf("UploadPath = %s", cfg.UploadPath)
	}
	if cfg.Workers != 1 {
		t.Errorf("Workers = %d, expected 1", cfg.Workers)
	}
	if cfg.AnalysisSteps != 30 {
		t.Errorf("AnalysisSteps = %d, expected 30", cfg.AnalysisSteps)
	}
	if cfg.PlaybackIncrement != 0.01 {
		t.Errorf("out-of-range increment should fall back to 0.01, got %v", cfg.PlaybackIncrement)
	}
	if cfg.FFprobePath != "ffprobe" {
		t.Errorf("FFprobePath = %s", cfg.FFprobePath)
	}
	if cfg.MaxUploadBytes() != 512<<20 {
		t.Errorf("MaxUploadBytes = %d", cfg.MaxUploadBytes())
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("workers: [unterminated"), 0644)

	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "hawkeye.yaml")

	cfg := DefaultConfig()
	cfg.Workers = 3
	cfg.BounceHeight = 0.5
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Workers != 3 || loaded.BounceHeight != 0.5 {
		t.Errorf("round trip lost values: %+v", loaded)
	}
}
