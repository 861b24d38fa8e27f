// Package resultstore indexes run outcomes in SQLite so past runs can
// be listed and queried without walking the output directory.
package resultstore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/music-brain88/Azure-Credit-Burner/internal/domain"
)

// Store provides SQLite-backed run and result indexing
type Store struct {
	db *sql.DB
}

// New opens (and if needed creates) the database at dbPath
func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// modernc.org/sqlite returns SQLITE_BUSY on concurrent writes from
	// separate pooled connections; a single connection serializes them.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateRun records the start of a run
func (s *Store) CreateRun(runID string, startedAt time.Time, generated int) error {
	_, err := s.db.Exec(`
		INSERT INTO runs (id, started_at, generated)
		VALUES (?, ?, ?)
	`, runID, startedAt, generated)
	return err
}

// FinishRun stores the final counters for a run
func (s *Store) FinishRun(summary *domain.RunSummary) error {
	res, err := s.db.Exec(`
		UPDATE runs
		SET finished_at = ?, generated = ?, succeeded = ?, failed = ?, skipped = ?, attempts = ?
		WHERE id = ?
	`, summary.FinishedAt, summary.Generated, summary.Succeeded, summary.Failed,
		summary.Skipped, summary.Attempts, summary.RunID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %s not found", summary.RunID)
	}
	return nil
}

// InsertResult indexes one persisted result under its run
func (s *Store) InsertResult(runID string, result *domain.Result) error {
	_, err := s.db.Exec(`
		INSERT INTO results (run_id, repo, category, turn, endpoint, file_path, tokens, latency_ms, attempts, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID,
		result.TaskID.Repo,
		result.TaskID.Category,
		result.TaskID.Turn,
		result.Endpoint,
		result.StoredAt,
		result.TokensUsed,
		result.Latency.Milliseconds(),
		result.Attempts,
		result.Timestamp,
	)
	return err
}

// RunRecord is one row of the runs table
type RunRecord struct {
	ID         string
	StartedAt  time.Time
	FinishedAt sql.NullTime
	Generated  int
	Succeeded  int
	Failed     int
	Skipped    int
	Attempts   int
}

// ListRuns returns runs newest first, up to limit (0 means all)
func (s *Store) ListRuns(limit int) ([]*RunRecord, error) {
	query := `
		SELECT id, started_at, finished_at, generated, succeeded, failed, skipped, attempts
		FROM runs ORDER BY started_at DESC
	`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Generated,
			&r.Succeeded, &r.Failed, &r.Skipped, &r.Attempts); err != nil {
			return nil, err
		}
		runs = append(runs, &r)
	}

	return runs, rows.Err()
}

// ResultRecord is one row of the results table
type ResultRecord struct {
	RunID     string
	Repo      string
	Category  string
	Turn      int
	Endpoint  string
	FilePath  string
	Tokens    int
	LatencyMS int64
	Attempts  int
	CreatedAt time.Time
}

// ListOptions filters result listings
type ListOptions struct {
	RunID    string
	Repo     string
	Category string
}

// ListResults returns indexed results matching the options, in chain
// order (repo, category, turn)
func (s *Store) ListResults(opts ListOptions) ([]*ResultRecord, error) {
	query := `
		SELECT run_id, repo, category, turn, endpoint, file_path, tokens, latency_ms, attempts, created_at
		FROM results WHERE 1=1
	`
	var args []interface{}

	if opts.RunID != "" {
		query += " AND run_id = ?"
		args = append(args, opts.RunID)
	}
	if opts.Repo != "" {
		query += " AND repo = ?"
		args = append(args, opts.Repo)
	}
	if opts.Category != "" {
		query += " AND category = ?"
		args = append(args, opts.Category)
	}

	query += " ORDER BY repo, category, turn"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*ResultRecord
	for rows.Next() {
		var r ResultRecord
		if err := rows.Scan(&r.RunID, &r.Repo, &r.Category, &r.Turn, &r.Endpoint,
			&r.FilePath, &r.Tokens, &r.LatencyMS, &r.Attempts, &r.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, &r)
	}

	return results, rows.Err()
}

// TokensByEndpoint sums consumed tokens per endpoint for a run
func (s *Store) TokensByEndpoint(runID string) (map[string]int, error) {
	rows, err := s.db.Query(`
		SELECT endpoint, SUM(tokens) FROM results WHERE run_id = ? GROUP BY endpoint
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make(map[string]int)
	for rows.Next() {
		var endpoint string
		var tokens int
		if err := rows.Scan(&endpoint, &tokens); err != nil {
			return nil, err
		}
		totals[endpoint] = tokens
	}
	return totals, rows.Err()
}

// IndexSink adapts a store into a result sink for one run. Used as a
// secondary sink behind the file sink; StoredAt must already be set.
type IndexSink struct {
	Store *Store
	RunID string
}

// Write indexes the result
func (i *IndexSink) Write(result *domain.Result) error {
	return i.Store.InsertResult(i.RunID, result)
}
