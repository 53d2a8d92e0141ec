// Package main provides a terminal replay of a synthetic Hawk-Eye analysis.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/gwlsn/hawkeye/internal/config"
	"github.com/gwlsn/hawkeye/internal/ffmpeg"
	"github.com/gwlsn/hawkeye/internal/jobs"
	"github.com/gwlsn/hawkeye/internal/logger"
	"github.com/gwlsn/hawkeye/internal/trajectory"
	"github.com/gwlsn/hawkeye/internal/tui"
	"github.com/gwlsn/hawkeye/internal/upload"
)

var (
	replayConfig    string
	replaySteps     int
	replayDelayMS   int
	replayIncrement float64
	replayLogLevel  string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "hawkeye-replay <video>",
		Short:         "Analyze a clip and replay the delivery in the terminal",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runReplayCmd,
	}

	def := config.DefaultConfig()
	rootCmd.Flags().StringVar(&replayConfig, "config", "", "path to a hawkeye.yaml config file")
	rootCmd.Flags().IntVar(&replaySteps, "steps", def.AnalysisSteps, "synthetic frames to generate")
	rootCmd.Flags().IntVar(&replayDelayMS, "delay", def.StepDelayMS, "milliseconds per frame")
	rootCmd.Flags().Float64Var(&replayIncrement, "increment", def.PlaybackIncrement, "replay progress per tick (0-1]")
	rootCmd.Flags().StringVar(&replayLogLevel, "log-level", "error", "log level")

	return rootCmd
}

func runReplayCmd(cmd *cobra.Command, args []string) error {
	if !logger.ValidLevel(replayLogLevel) {
		return fmt.Errorf("unknown log level %q", replayLogLevel)
	}
	logger.InitWriter(replayLogLevel, os.Stderr)

	cfg := config.DefaultConfig()
	if replayConfig != "" {
		loaded, err := config.Load(replayConfig)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	applyIntFlag(cmd, "steps", &cfg.AnalysisSteps, replaySteps)
	applyIntFlag(cmd, "delay", &cfg.StepDelayMS, replayDelayMS)
	if cmd.Flags().Changed("increment") {
		cfg.PlaybackIncrement = replayIncrement
	}

	if !jobs.IsValidSteps(cfg.AnalysisSteps) {
		return fmt.Errorf("steps must be between %d and %d", jobs.MinSteps, jobs.MaxSteps)
	}
	if cfg.StepDelayMS < 0 {
		return fmt.Errorf("delay must not be negative")
	}
	if cfg.PlaybackIncrement <= 0 || cfg.PlaybackIncrement > 1 {
		return fmt.Errorf("increment must be in (0, 1]")
	}

	path := args[0]
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to open video: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if !upload.IsVideoType(ffmpeg.VideoMIMEType(path)) {
		return upload.ErrNotVideo
	}

	name := filepath.Base(path)
	fmt.Printf("%s (%s)\n", name, humanize.Bytes(uint64(info.Size())))

	gen := trajectory.NewGenerator(cfg.AnalysisSteps, cfg.StepDelay())
	model := tui.NewModel(context.Background(), name, gen, tui.Options{
		Increment:    cfg.PlaybackIncrement,
		Interval:     cfg.PlaybackInterval(),
		BounceHeight: cfg.BounceHeight,
	})

	start := time.Now()
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("failed to run tui: %w", err)
	}

	analysis, err := model.Result()
	if errors.Is(err, context.Canceled) {
		fmt.Println("Analysis cancelled")
		return nil
	}
	if err != nil {
		return err
	}

	s := analysis.Stats
	fmt.Printf("Max speed %.1f km/h, avg %.1f km/h, max spin %.0f rpm, %s (%s)\n",
		s.MaxSpeed, s.AvgSpeed, s.MaxSpin, s.SwingType, time.Since(start).Round(time.Second))
	return nil
}

func applyIntFlag(cmd *cobra.Command, name string, target *int, value int) {
	if cmd.Flags().Changed(name) || replayConfig == "" {
		*target = value
	}
}
