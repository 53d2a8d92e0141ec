package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/gwlsn/hawkeye/internal/jobs"
	_ "modernc.org/sqlite"
)

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	video_id TEXT NOT NULL,
	video_name TEXT,
	video_size INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	progress REAL NOT NULL DEFAULT 0,
	step INTEGER NOT NULL DEFAULT 0,
	steps INTEGER NOT NULL DEFAULT 0,
	error TEXT,
	elapsed_ms INTEGER,
	created_at TEXT NOT NULL,
	started_at TEXT,
	completed_at TEXT
);

CREATE TABLE IF NOT EXISTS job_order (
	position INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id TEXT NOT NULL UNIQUE REFERENCES jobs(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL,
	applied_at TEXT DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS stats_metadata (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TEXT DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_session ON jobs(session_id);
CREATE INDEX IF NOT EXISTS idx_jobs_status_created ON jobs(status, created_at);
`

const jobColumns = `id, session_id, video_id, video_name, video_size, status, progress, step, steps,
	error, elapsed_ms, created_at, started_at, completed_at`

const selectJobs = `
	SELECT j.id, j.session_id, j.video_id, j.video_name, j.video_size, j.status, j.progress, j.step, j.steps,
		j.error, j.elapsed_ms, j.created_at, j.started_at, j.completed_at
	FROM jobs j
	LEFT JOIN job_order o ON j.id = o.job_id
`

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	mu   sync.RWMutex // Protects concurrent access
	path string
}

// NewSQLiteStore creates a new SQLite-backed store.
// The database file is created if it doesn't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// WAL mode for concurrent readers alongside the writer
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	var version int
	err = db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		if _, err = db.Exec("INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			db.Close()
			return nil, fmt.Errorf("insert schema version: %w", err)
		}
	} else if err != nil {
		db.Close()
		return nil, fmt.Errorf("check schema version: %w", err)
	} else if version > schemaVersion {
		db.Close()
		return nil, fmt.Errorf("database schema v%d is newer than supported v%d", version, schemaVersion)
	}

	if _, err := db.Exec(`
		INSERT OR IGNORE INTO stats_metadata (key, value) VALUES
			('session_analyses', '0'),
			('lifetime_analyses', '0')
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("init stats metadata: %w", err)
	}

	return &SQLiteStore{db: db, path: dbPath}, nil
}

// SaveJob persists a job using INSERT OR REPLACE.
func (s *SQLiteStore) SaveJob(job *jobs.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT OR REPLACE INTO jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		jobArgs(job)...,
	)
	return err
}

func jobArgs(job *jobs.Job) []interface{} {
	return []interface{}{
		job.ID, job.SessionID, job.VideoID, nullString(job.VideoName), job.VideoSize,
		string(job.Status), job.Progress, job.Step, job.Steps,
		nullString(job.Error), nullInt64(job.Elapsed),
		formatTime(job.CreatedAt), formatTimePtr(job.StartedAt), formatTimePtr(job.CompletedAt),
	}
}

// GetJob retrieves a job by ID. Returns nil if not found.
func (s *SQLiteStore) GetJob(id string) (*jobs.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return job, err
}

// DeleteJob removes a job by ID.
func (s *SQLiteStore) DeleteJob(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Cascade removes the job_order row
	_, err := s.db.Exec("DELETE FROM jobs WHERE id = ?", id)
	return err
}

// GetAllJobs returns all jobs in queue order.
func (s *SQLiteStore) GetAllJobs() ([]*jobs.Job, []string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(selectJobs + `ORDER BY o.position ASC, j.created_at ASC`)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var jobList []*jobs.Job
	var order []string

	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, nil, err
		}
		jobList = append(jobList, job)
		order = append(order, job.ID)
	}

	return jobList, order, rows.Err()
}

// GetJobsByStatus returns all jobs with the given status.
func (s *SQLiteStore) GetJobsByStatus(status jobs.Status) ([]*jobs.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(selectJobs+`WHERE j.status = ? ORDER BY o.position ASC, j.created_at ASC`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobList []*jobs.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobList = append(jobList, job)
	}

	return jobList, rows.Err()
}

// AppendToOrder adds a job ID to the end of the queue.
func (s *SQLiteStore) AppendToOrder(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("INSERT OR IGNORE INTO job_order (job_id) VALUES (?)", id)
	return err
}

// SetOrder persists the full job order, replacing any existing order.
func (s *SQLiteStore) SetOrder(order []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM job_order"); err != nil {
		return err
	}

	// Autoincrement gives sequential positions
	for _, jobID := range order {
		if _, err := tx.Exec("INSERT INTO job_order (job_id) VALUES (?)", jobID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ResetRunningJobs marks all running jobs cancelled.
func (s *SQLiteStore) ResetRunningJobs() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec(`
		UPDATE jobs
		SET status = 'cancelled', error = 'interrupted by restart', completed_at = ?
		WHERE status = 'running'
	`, formatTime(time.Now()))
	if err != nil {
		return 0, err
	}

	count, err := result.RowsAffected()
	return int(count), err
}

// Stats returns job counts plus the session and lifetime analysis counters.
func (s *SQLiteStore) Stats() (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats Stats

	session, lifetime, err := s.countersLocked()
	if err != nil {
		return stats, err
	}

	row := s.db.QueryRow(`
		SELECT
			COUNT(*) as total,
			COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0) as pending,
			COALESCE(SUM(CASE WHEN status = 'running' THEN 1 ELSE 0 END), 0) as running,
			COALESCE(SUM(CASE WHEN status = 'complete' THEN 1 ELSE 0 END), 0) as complete,
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0) as failed,
			COALESCE(SUM(CASE WHEN status = 'cancelled' THEN 1 ELSE 0 END), 0) as cancelled
		FROM jobs
	`)

	err = row.Scan(&stats.Total, &stats.Pending, &stats.Running, &stats.Complete,
		&stats.Failed, &stats.Cancelled)
	if err != nil {
		return stats, err
	}

	stats.SessionAnalyses = session
	stats.LifetimeAnalyses = lifetime

	return stats, nil
}

// ResetSession resets the session analysis counter to 0.
func (s *SQLiteStore) ResetSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		UPDATE stats_metadata SET value = '0', updated_at = datetime('now')
		WHERE key = 'session_analyses'
	`)
	return err
}

// RecordAnalysis increments both session and lifetime analysis counters.
func (s *SQLiteStore) RecordAnalysis() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		UPDATE stats_metadata
		SET value = CAST((CAST(value AS INTEGER) + 1) AS TEXT),
		    updated_at = datetime('now')
		WHERE key IN ('session_analyses', 'lifetime_analyses')
	`)
	return err
}

// SessionLifetimeStats returns the session and lifetime analysis counts.
// This implements the jobs.StoreWithStats interface.
func (s *SQLiteStore) SessionLifetimeStats() (sessionAnalyses, lifetimeAnalyses int64, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.countersLocked()
}

func (s *SQLiteStore) countersLocked() (session, lifetime int64, err error) {
	var sessionStr, lifetimeStr string
	err = s.db.QueryRow(`SELECT value FROM stats_metadata WHERE key = 'session_analyses'`).Scan(&sessionStr)
	if err != nil && err != sql.ErrNoRows {
		return 0, 0, fmt.Errorf("get session analyses: %w", err)
	}
	err = s.db.QueryRow(`SELECT value FROM stats_metadata WHERE key = 'lifetime_analyses'`).Scan(&lifetimeStr)
	if err != nil && err != sql.ErrNoRows {
		return 0, 0, fmt.Errorf("get lifetime analyses: %w", err)
	}

	session, _ = strconv.ParseInt(sessionStr, 10, 64)
	lifetime, _ = strconv.ParseInt(lifetimeStr, 10, 64)

	return session, lifetime, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Helper functions for scanning rows

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*jobs.Job, error) {
	var job jobs.Job
	var videoName, errStr sql.NullString
	var elapsed sql.NullInt64
	var status string
	var createdAt, startedAt, completedAt sql.NullString

	err := row.Scan(
		&job.ID, &job.SessionID, &job.VideoID, &videoName, &job.VideoSize,
		&status, &job.Progress, &job.Step, &job.Steps,
		&errStr, &elapsed, &createdAt, &startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	job.VideoName = videoName.String
	job.Status = jobs.Status(status)
	job.Error = errStr.String
	job.Elapsed = elapsed.Int64
	job.CreatedAt = parseTime(createdAt.String)
	job.StartedAt = parseTime(startedAt.String)
	job.CompletedAt = parseTime(completedAt.String)

	return &job, nil
}

// Helper functions for SQL values

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullInt64(i int64) interface{} {
	if i == 0 {
		return nil
	}
	return i
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
