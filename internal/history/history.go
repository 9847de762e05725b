package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"bvc/internal/encoding"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	bitrate_kbps INTEGER NOT NULL,
	output_dir TEXT NOT NULL,
	started_at TEXT NOT NULL,
	finished_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS jobs (
	run_id TEXT NOT NULL REFERENCES runs(run_id),
	position INTEGER NOT NULL,
	source TEXT NOT NULL,
	output TEXT NOT NULL,
	status TEXT NOT NULL,
	error TEXT NOT NULL,
	PRIMARY KEY (run_id, position)
);
`

// Run is one recorded batch run.
type Run struct {
	RunID       string
	BitrateKbps int
	OutputDir   string
	Started     time.Time
	Finished    time.Time
	Jobs        []Job
}

// Job is one recorded job outcome.
type Job struct {
	Source string
	Output string
	Status encoding.Status
	Error  string
}

// Store keeps the runs of the live session in an in-memory SQLite database.
// Nothing survives the process; the store exists so `history` can replay what
// happened earlier in the sitting.
type Store struct {
	db *sql.DB
}

// Open creates the session store.
func Open() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	// A single connection keeps every statement on the same in-memory database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the store.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun implements encoding.Recorder.
func (s *Store) RecordRun(ctx context.Context, report encoding.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, bitrate_kbps, output_dir, started_at, finished_at) VALUES (?, ?, ?, ?, ?)`,
		report.RunID, report.BitrateKbps, report.OutputDir,
		report.Started.UTC().Format(time.RFC3339Nano),
		report.Finished.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, result := range report.Results {
		errText := ""
		if result.Err != nil {
			errText = result.Err.Error()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO jobs (run_id, position, source, output, status, error) VALUES (?, ?, ?, ?, ?, ?)`,
			report.RunID, i, result.Source, result.Output, string(result.Status), errText,
		); err != nil {
			return fmt.Errorf("insert job %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// Runs returns every recorded run in chronological order with its jobs in
// snapshot order.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, bitrate_kbps, output_dir, started_at, finished_at FROM runs ORDER BY started_at`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var started, finished string
		if err := rows.Scan(&run.RunID, &run.BitrateKbps, &run.OutputDir, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Started, _ = time.Parse(time.RFC3339Nano, started)
		run.Finished, _ = time.Parse(time.RFC3339Nano, finished)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	for i := range runs {
		jobs, err := s.runJobs(ctx, runs[i].RunID)
		if err != nil {
			return nil, err
		}
		runs[i].Jobs = jobs
	}
	return runs, nil
}

func (s *Store) runJobs(ctx context.Context, runID string) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source, output, status, error FROM jobs WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var job Job
		var status string
		if err := rows.Scan(&job.Source, &job.Output, &status, &job.Error); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		job.Status = encoding.Status(status)
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

var _ encoding.Recorder = (*Store)(nil)
