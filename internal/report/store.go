// Package report persists completed results. The engines hand over an
// immutable ScenarioResult or LoadTestResult; this package owns all file and
// database knowledge.
package report

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Samuel-Jeong/RestApiSimulator/internal/result"
)

const schema = `
CREATE TABLE IF NOT EXISTS scenario_runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	scenario_name TEXT NOT NULL,
	status TEXT NOT NULL,
	started_at DATETIME NOT NULL,
	completed_at DATETIME NOT NULL,
	duration_seconds REAL NOT NULL,
	total_requests INTEGER NOT NULL,
	successful_requests INTEGER NOT NULL,
	failed_requests INTEGER NOT NULL,
	error_requests INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS scenario_steps (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id INTEGER NOT NULL REFERENCES scenario_runs(id),
	step_name TEXT NOT NULL,
	method TEXT NOT NULL,
	url TEXT,
	status TEXT NOT NULL,
	status_code INTEGER,
	response_time_ms REAL,
	error_message TEXT,
	assertions_passed INTEGER NOT NULL,
	assertions_failed INTEGER NOT NULL,
	attempts INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS load_test_runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	test_name TEXT NOT NULL,
	started_at DATETIME NOT NULL,
	completed_at DATETIME NOT NULL,
	duration_seconds REAL NOT NULL,
	target_tps INTEGER NOT NULL,
	actual_avg_tps REAL NOT NULL,
	total_requests INTEGER NOT NULL,
	successful_requests INTEGER NOT NULL,
	failed_requests INTEGER NOT NULL,
	error_requests INTEGER NOT NULL,
	avg_response_time_ms REAL NOT NULL,
	min_response_time_ms REAL NOT NULL,
	max_response_time_ms REAL NOT NULL,
	p50_response_time_ms REAL NOT NULL,
	p95_response_time_ms REAL NOT NULL,
	p99_response_time_ms REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS load_test_timeline (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id INTEGER NOT NULL REFERENCES load_test_runs(id),
	second INTEGER NOT NULL,
	requests INTEGER NOT NULL,
	successes INTEGER NOT NULL,
	failures INTEGER NOT NULL,
	errors INTEGER NOT NULL,
	avg_response_time_ms REAL NOT NULL
);
`

// Store persists results in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the report database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveScenarioResult writes a completed scenario run and its steps.
func (s *Store) SaveScenarioResult(res *result.ScenarioResult) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	inserted, err := tx.Exec(`
		INSERT INTO scenario_runs
		(scenario_name, status, started_at, completed_at, duration_seconds,
		 total_requests, successful_requests, failed_requests, error_requests)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, res.ScenarioName, string(res.Status), res.StartTime, res.EndTime, res.DurationSeconds,
		res.TotalRequests, res.SuccessfulRequests, res.FailedRequests, res.ErrorRequests)
	if err != nil {
		return 0, fmt.Errorf("failed to insert scenario run: %w", err)
	}
	runID, err := inserted.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO scenario_steps
		(run_id, step_name, method, url, status, status_code, response_time_ms,
		 error_message, assertions_passed, assertions_failed, attempts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare step insert: %w", err)
	}
	defer stmt.Close()

	for i := range res.Steps {
		step := &res.Steps[i]
		if _, err := stmt.Exec(runID, step.StepName, step.Method, step.URL,
			string(step.Status), step.StatusCode, step.ResponseTimeMs,
			step.ErrorMessage, step.AssertionsPassed, step.AssertionsFailed,
			step.Attempts); err != nil {
			return 0, fmt.Errorf("failed to insert step %q: %w", step.StepName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit scenario run: %w", err)
	}
	return runID, nil
}

// SaveLoadTestResult writes a completed load test run and its timeline.
func (s *Store) SaveLoadTestResult(res *result.LoadTestResult) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	inserted, err := tx.Exec(`
		INSERT INTO load_test_runs
		(test_name, started_at, completed_at, duration_seconds, target_tps,
		 actual_avg_tps, total_requests, successful_requests, failed_requests,
		 error_requests, avg_response_time_ms, min_response_time_ms,
		 max_response_time_ms, p50_response_time_ms, p95_response_time_ms,
		 p99_response_time_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, res.TestName, res.StartTime, res.EndTime, res.DurationSeconds, res.TargetTPS,
		res.ActualAvgTPS, res.TotalRequests, res.SuccessfulRequests, res.FailedRequests,
		res.ErrorRequests, res.AvgResponseTimeMs, res.MinResponseTimeMs,
		res.MaxResponseTimeMs, res.P50ResponseTimeMs, res.P95ResponseTimeMs,
		res.P99ResponseTimeMs)
	if err != nil {
		return 0, fmt.Errorf("failed to insert load test run: %w", err)
	}
	runID, err := inserted.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO load_test_timeline
		(run_id, second, requests, successes, failures, errors, avg_response_time_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare timeline insert: %w", err)
	}
	defer stmt.Close()

	for _, bucket := range res.Timeline {
		if _, err := stmt.Exec(runID, bucket.Second, bucket.Requests,
			bucket.Successes, bucket.Failures, bucket.Errors,
			bucket.AvgResponseTimeMs); err != nil {
			return 0, fmt.Errorf("failed to insert timeline bucket %d: %w", bucket.Second, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit load test run: %w", err)
	}
	return runID, nil
}

// ScenarioRunSummary is one row of the scenario run history.
type ScenarioRunSummary struct {
	ID              int64
	ScenarioName    string
	Status          string
	StartedAt       time.Time
	DurationSeconds float64
	TotalRequests   int
	FailedRequests  int
	ErrorRequests   int
}

// LoadTestRunSummary is one row of the load test run history.
type LoadTestRunSummary struct {
	ID              int64
	TestName        string
	StartedAt       time.Time
	DurationSeconds float64
	TargetTPS       int
	ActualAvgTPS    float64
	TotalRequests   int
	FailedRequests  int
	ErrorRequests   int
}

// RecentScenarioRuns returns the newest scenario runs, newest first.
func (s *Store) RecentScenarioRuns(limit int) ([]ScenarioRunSummary, error) {
	rows, err := s.db.Query(`
		SELECT id, scenario_name, status, started_at, duration_seconds,
		       total_requests, failed_requests, error_requests
		FROM scenario_runs ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query scenario runs: %w", err)
	}
	defer rows.Close()

	var runs []ScenarioRunSummary
	for rows.Next() {
		var run ScenarioRunSummary
		if err := rows.Scan(&run.ID, &run.ScenarioName, &run.Status, &run.StartedAt,
			&run.DurationSeconds, &run.TotalRequests, &run.FailedRequests,
			&run.ErrorRequests); err != nil {
			return nil, fmt.Errorf("failed to scan scenario run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RecentLoadTestRuns returns the newest load test runs, newest first.
func (s *Store) RecentLoadTestRuns(limit int) ([]LoadTestRunSummary, error) {
	rows, err := s.db.Query(`
		SELECT id, test_name, started_at, duration_seconds, target_tps,
		       actual_avg_tps, total_requests, failed_requests, error_requests
		FROM load_test_runs ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query load test runs: %w", err)
	}
	defer rows.Close()

	var runs []LoadTestRunSummary
	for rows.Next() {
		var run LoadTestRunSummary
		if err := rows.Scan(&run.ID, &run.TestName, &run.StartedAt,
			&run.DurationSeconds, &run.TargetTPS, &run.ActualAvgTPS,
			&run.TotalRequests, &run.FailedRequests, &run.ErrorRequests); err != nil {
			return nil, fmt.Errorf("failed to scan load test run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// WriteJSON writes a result document under dir, named by kind and timestamp,
// and returns the file path.
func WriteJSON(dir, kind string, doc any) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report dir: %w", err)
	}

	name := fmt.Sprintf("%s_%s.json", kind, time.Now().Format("20060102_150405"))
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}
