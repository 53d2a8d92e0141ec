package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	hawkeye "github.com/gwlsn/hawkeye"
	"github.com/gwlsn/hawkeye/internal/api"
	"github.com/gwlsn/hawkeye/internal/config"
	"github.com/gwlsn/hawkeye/internal/ffmpeg"
	"github.com/gwlsn/hawkeye/internal/jobs"
	"github.com/gwlsn/hawkeye/internal/logger"
	"github.com/gwlsn/hawkeye/internal/pipeline"
	"github.com/gwlsn/hawkeye/internal/store"
	"github.com/gwlsn/hawkeye/internal/upload"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to config file (default: ./config/hawkeye.yaml)")
	port := flag.Int("port", 8080, "Port to listen on")
	uploadPath := flag.String("uploads", "", "Override upload directory from config")
	flag.Parse()

	// Determine config path
	cfgPath := *configPath
	if cfgPath == "" {
		// Check environment variable
		if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
			cfgPath = envPath
		} else {
			cfgPath = "config/hawkeye.yaml"
		}
	}

	// Load config
	cfg, err := config.Load(cfgPath)
	if err != nil {
		// Initialize logger with default level for this warning
		logger.Init("info")
		logger.Warn("Could not load config", "path", cfgPath, "error", err)
		cfg = config.DefaultConfig()
	}

	// Initialize logger with configured level
	logger.Init(cfg.LogLevel)

	// Override with environment variables, then flags
	if envUploads := os.Getenv("UPLOAD_PATH"); envUploads != "" {
		cfg.UploadPath = envUploads
	}
	if *uploadPath != "" {
		cfg.UploadPath = *uploadPath
	}

	if err := os.MkdirAll(cfg.UploadPath, 0755); err != nil {
		logger.Error("Could not create upload directory", "path", cfg.UploadPath, "error", err)
		os.Exit(1)
	}

	// Determine config directory for data storage
	configDir := filepath.Dir(cfgPath)
	if configDir == "." {
		configDir = "config"
	}

	// Ensure config directory exists
	if err := os.MkdirAll(configDir, 0755); err != nil {
		logger.Warn("Could not create config directory", "error", err)
	}

	// Job metadata only; analyses live in memory
	jobStore, err := store.InitStore(configDir)
	if err != nil {
		logger.Error("Failed to initialize job store", "error", err)
		os.Exit(1)
	}
	defer jobStore.Close()

	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║                          HAWKEYE                          ║")
	fmt.Println("║            Ball tracking replays for the nets             ║")
	versionLine := fmt.Sprintf("v%s", hawkeye.Version)
	padding := 59 - len(versionLine)
	fmt.Printf("║%*s%s%*s║\n", padding/2, "", versionLine, (padding+1)/2, "")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Uploads:      %s\n", cfg.UploadPath)
	fmt.Printf("  Upload limit: %s\n", humanize.IBytes(uint64(cfg.MaxUploadBytes())))
	fmt.Printf("  Config:       %s\n", cfgPath)
	fmt.Printf("  Database:     %s\n", jobStore.Path())
	fmt.Printf("  Workers:      %d\n", cfg.Workers)
	fmt.Printf("  Frames:       %d (%s each)\n", cfg.AnalysisSteps, cfg.StepDelay())
	fmt.Printf("  FFprobe:      %s\n", cfg.FFprobePath)
	fmt.Println()

	// Initialize components
	prober := ffmpeg.NewProber(cfg.FFprobePath)
	uploads := upload.NewStore(cfg.UploadPath, cfg.MaxUploadBytes(), prober)
	sessions := pipeline.NewRegistry(uploads)

	queue, err := jobs.NewQueueWithStore(jobStore)
	if err != nil {
		logger.Error("Failed to initialize job queue", "error", err)
		jobStore.Close()
		os.Exit(1) //nolint:gocritic // store closed explicitly above
	}

	workerPool := jobs.NewWorkerPool(queue, cfg, api.JobCallbacks(sessions))

	// Create API handler
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handler := api.NewHandler(ctx, queue, workerPool, sessions, uploads, cfg, cfgPath)
	router := api.NewRouter(handler, hawkeye.WebFS)

	// Start worker pool
	workerPool.Start()

	// Sweep idle sessions so abandoned uploads do not pile up
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sessions.Sweep(handler.SessionTTL())
			}
		}
	}()

	fmt.Printf("  Starting server on port %d\n", *port)
	fmt.Println()
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	// Print logging separator and consolidated startup log
	fmt.Println("─────────────────────────────────────────────────────────────")
	fmt.Printf("  Logging started (level: %s)\n", cfg.LogLevel)
	fmt.Println("─────────────────────────────────────────────────────────────")
	logger.Info("Hawkeye started", "version", hawkeye.Version, "workers", cfg.Workers, "port", *port)

	// Set up graceful shutdown
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", *port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\n  Shutting down...")
		logger.Info("Shutdown signal received")
		cancel()
		workerPool.Stop()
		server.Close()
	}()

	// Start server
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logger.Error("Server error", "error", err)
		workerPool.Stop()
		os.Exit(1)
	}

	// Uploads never outlive the process
	sessions.Close()
	uploads.RevokeAll()

	logger.Info("Server stopped")
	fmt.Println("  Goodbye!")
}
