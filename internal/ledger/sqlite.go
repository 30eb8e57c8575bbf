package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite ledger path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}
	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			input TEXT NOT NULL,
			output TEXT NOT NULL,
			parallel INTEGER NOT NULL,
			min_score REAL NOT NULL,
			max_p_value REAL NOT NULL,
			status TEXT NOT NULL,
			parsed INTEGER NOT NULL DEFAULT 0,
			passed INTEGER NOT NULL DEFAULT 0,
			reconciled INTEGER NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT '',
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			run_id TEXT NOT NULL,
			idx INTEGER NOT NULL,
			handle TEXT NOT NULL,
			status TEXT NOT NULL,
			exit_code INTEGER NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			started_at INTEGER NOT NULL DEFAULT 0,
			finished_at INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (run_id, idx)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create ledger tables: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run Run) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO runs (id, input, output, parallel, min_score, max_p_value, status,
			parsed, passed, reconciled, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			parsed = excluded.parsed,
			passed = excluded.passed,
			reconciled = excluded.reconciled,
			error = excluded.error,
			finished_at = excluded.finished_at
	`, run.ID, run.Input, run.Output, run.Parallel, run.MinScore, run.MaxPValue, run.Status,
		run.Parsed, run.Passed, run.Reconciled, run.Error, toUnix(run.StartedAt), toUnix(run.FinishedAt))
	return err
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (Run, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return Run{}, false, err
	}

	var (
		run               Run
		started, finished int64
	)
	err = db.QueryRowContext(ctx, `
		SELECT id, input, output, parallel, min_score, max_p_value, status,
			parsed, passed, reconciled, error, started_at, finished_at
		FROM runs WHERE id = ?`, id).Scan(
		&run.ID, &run.Input, &run.Output, &run.Parallel, &run.MinScore, &run.MaxPValue, &run.Status,
		&run.Parsed, &run.Passed, &run.Reconciled, &run.Error, &started, &finished,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, false, nil
		}
		return Run{}, false, err
	}
	run.StartedAt = fromUnix(started)
	run.FinishedAt = fromUnix(finished)
	return run, true, nil
}

func (s *SQLiteStore) SaveChunks(ctx context.Context, runID string, chunks []Chunk) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, c := range chunks {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO chunks (run_id, idx, handle, status, exit_code, error, started_at, finished_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(run_id, idx) DO UPDATE SET
				handle = excluded.handle,
				status = excluded.status,
				exit_code = excluded.exit_code,
				error = excluded.error,
				started_at = excluded.started_at,
				finished_at = excluded.finished_at
		`, runID, c.Index, c.Handle, c.Status, c.ExitCode, c.Error, toUnix(c.StartedAt), toUnix(c.FinishedAt))
		if err != nil {
			return fmt.Errorf("save chunk %d: %w", c.Index, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListChunks(ctx context.Context, runID string) ([]Chunk, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT idx, handle, status, exit_code, error, started_at, finished_at
		FROM chunks WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		c := Chunk{RunID: runID}
		var started, finished int64
		if err := rows.Scan(&c.Index, &c.Handle, &c.Status, &c.ExitCode, &c.Error, &started, &finished); err != nil {
			return nil, err
		}
		c.StartedAt = fromUnix(started)
		c.FinishedAt = fromUnix(finished)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, errors.New("sqlite ledger is not initialized")
	}
	return s.db, nil
}

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnix(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}
