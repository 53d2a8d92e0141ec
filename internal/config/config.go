package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// UploadPath is where uploaded clips are held until they are cleared or replaced
	UploadPath string `yaml:"upload_path"`

	// MaxUploadMB caps the size of a single upload (default 512)
	MaxUploadMB int64 `yaml:"max_upload_mb"`

	// Workers is the number of concurrent analysis jobs (default 1)
	Workers int `yaml:"workers"`

	// AnalysisSteps is the number of synthetic frames per analysis (default 60)
	AnalysisSteps int `yaml:"analysis_steps"`

	// StepDelayMS is the pause before each synthetic frame (default 50)
	StepDelayMS int `yaml:"step_delay_ms"`

	// PlaybackIncrement is how far one replay tick advances progress (default 0.01)
	PlaybackIncrement float64 `yaml:"playback_increment"`

	// PlaybackIntervalMS is the replay tick period (default 16)
	PlaybackIntervalMS int `yaml:"playback_interval_ms"`

	// BounceHeight is the height in metres below which the bounce ring is drawn (default 0.3)
	BounceHeight float64 `yaml:"bounce_height"`

	// FFprobePath is the path to ffprobe, used for optional clip metadata (default: "ffprobe")
	FFprobePath string `yaml:"ffprobe_path"`

	// LogLevel is one of debug, info, warn, error (default info)
	LogLevel string `yaml:"log_level"`

	// SessionTTLMinutes is how long an idle session survives before its upload is revoked (default 120)
	SessionTTLMinutes int `yaml:"session_ttl_minutes"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		UploadPath:         filepath.Join(os.TempDir(), "hawkeye-uploads"),
		MaxUploadMB:        512,
		Workers:            1,
		AnalysisSteps:      60,
		StepDelayMS:        50,
		PlaybackIncrement:  0.01,
		PlaybackIntervalMS: 16,
		BounceHeight:       0.3,
		FFprobePath:        "ffprobe",
		LogLevel:           "info",
		SessionTTLMinutes:  120,
	}
}

// Load reads config from a YAML file, applying defaults for missing values
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// No config file - use defaults
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.UploadPath == "" {
		c.UploadPath = def.UploadPath
	}
	if c.MaxUploadMB <= 0 {
		c.MaxUploadMB = def.MaxUploadMB
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.AnalysisSteps < 1 {
		c.AnalysisSteps = def.AnalysisSteps
	}
	if c.StepDelayMS < 0 {
		c.StepDelayMS = 0
	}
	if c.PlaybackIncrement <= 0 || c.PlaybackIncrement > 1 {
		c.PlaybackIncrement = def.PlaybackIncrement
	}
	if c.PlaybackIntervalMS <= 0 {
		c.PlaybackIntervalMS = def.PlaybackIntervalMS
	}
	if c.BounceHeight <= 0 {
		c.BounceHeight = def.BounceHeight
	}
	if c.FFprobePath == "" {
		c.FFprobePath = def.FFprobePath
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.SessionTTLMinutes <= 0 {
		c.SessionTTLMinutes = def.SessionTTLMinutes
	}
}

// Save writes the config to a YAML file
func (c *Config) Save(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// MaxUploadBytes returns the upload cap in bytes
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

// StepDelay returns the generator's per-step delay
func (c *Config) StepDelay() time.Duration {
	return time.Duration(c.StepDelayMS) * time.Millisecond
}

// PlaybackInterval returns the replay tick period
func (c *Config) PlaybackInterval() time.Duration {
	return time.Duration(c.PlaybackIntervalMS) * time.Millisecond
}

// SessionTTL returns the idle session lifetime
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}
