package store

import (
	"fmt"
	"path/filepath"

	"github.com/gwlsn/hawkeye/internal/logger"
)

// DBFileName is the database file created in the config directory.
const DBFileName = "hawkeye.db"

// GetDBPath returns the database path for a config directory.
func GetDBPath(configDir string) string {
	return filepath.Join(configDir, DBFileName)
}

// InitStore opens the store in configDir and cancels jobs a previous
// process left running.
func InitStore(configDir string) (*SQLiteStore, error) {
	dbPath := GetDBPath(configDir)

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	count, err := store.ResetRunningJobs()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("reset running jobs: %w", err)
	}
	if count > 0 {
		logger.Info("Cancelled jobs interrupted by restart", "count", count)
	}

	return store, nil
}
