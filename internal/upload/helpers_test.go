package upload

import (
	"os/exec"
	"testing"

	"github.com/gwlsn/hawkeye/internal/ffmpeg"
)

// ffmpegProber returns a prober backed by ffprobe, skipping if it is not installed
func ffmpegProber(t *testing.T) *ffmpeg.Prober {
	t.Helper()
	path, err := exec.LookPath("ffprobe")
	if err != nil {
		t.Skip("ffprobe not installed")
	}
	return ffmpeg.NewProber(path)
}
