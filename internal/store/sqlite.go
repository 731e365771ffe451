package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists runs in a local SQLite file
type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

// NewSQLiteStore creates a store for path; Init opens it
func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

// Init opens the database and creates the schema
func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	// Writers serialize on the file lock anyway.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}
	if err := createSQLiteTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	log.Info().Str("path", s.path).Msg("SQLite store opened")
	return nil
}

// SaveRun implements Store
func (s *SQLiteStore) SaveRun(ctx context.Context, run Run, strategies []StrategyRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO search_runs (id, mode, simulator, objective, status, done, total, best_rating, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			done = excluded.done,
			total = excluded.total,
			best_rating = excluded.best_rating,
			finished_at = excluded.finished_at
	`, run.ID, run.Mode, run.Simulator, run.Objective, run.Status, run.Done, run.Total,
		nullableFloat(run.BestRating), formatTime(run.StartedAt), formatTime(run.FinishedAt))
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM search_strategies WHERE run_id = ?`, run.ID); err != nil {
		return fmt.Errorf("failed to clear strategies: %w", err)
	}

	for _, rec := range strategies {
		configJSON, err := json.Marshal(rec.Config)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		metricsJSON, err := encodeMetrics(rec.Metrics)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO search_strategies (id, run_id, rank, signature, rating, config, metrics)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, rec.ID, run.ID, rec.Rank, rec.Signature, nullableFloat(rec.Rating), configJSON, metricsJSON)
		if err != nil {
			return fmt.Errorf("failed to save strategy %d: %w", rec.Rank, err)
		}
	}

	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRun(row rowScanner) (Run, error) {
	var r Run
	var best sql.NullFloat64
	var started, finished string
	if err := row.Scan(&r.ID, &r.Mode, &r.Simulator, &r.Objective, &r.Status, &r.Done, &r.Total,
		&best, &started, &finished); err != nil {
		return Run{}, err
	}

	r.BestRating = floatOrNaN(best)
	var err error
	if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return Run{}, fmt.Errorf("parse started_at: %w", err)
	}
	if r.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
		return Run{}, fmt.Errorf("parse finished_at: %w", err)
	}
	return r, nil
}

// GetRun implements Store
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (Run, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return Run{}, false, err
	}

	run, err := scanSQLiteRun(db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM search_runs WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, false, nil
		}
		return Run{}, false, fmt.Errorf("failed to get run: %w", err)
	}
	return run, true, nil
}

// ListRuns implements Store
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := db.QueryContext(ctx, `SELECT `+runColumns+` FROM search_runs ORDER BY finished_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanSQLiteRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ListStrategies implements Store
func (s *SQLiteStore) ListStrategies(ctx context.Context, runID string) ([]StrategyRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, run_id, rank, signature, rating, config, metrics
		FROM search_strategies
		WHERE run_id = ?
		ORDER BY rank
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list strategies: %w", err)
	}
	defer rows.Close()

	var records []StrategyRecord
	for rows.Next() {
		var rec StrategyRecord
		var rating sql.NullFloat64
		var configJSON, metricsJSON []byte
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.Rank, &rec.Signature, &rating, &configJSON, &metricsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan strategy: %w", err)
		}
		rec.Rating = floatOrNaN(rating)
		if err := decodeRecord(&rec, configJSON, metricsJSON); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close closes the database
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
		return nil, ErrNotInitialized
	}
	return s.db, nil
}

func createSQLiteTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS search_runs (
			id TEXT PRIMARY KEY,
			mode TEXT NOT NULL,
			simulator TEXT NOT NULL,
			objective TEXT NOT NULL,
			status TEXT NOT NULL,
			done INTEGER NOT NULL,
			total INTEGER NOT NULL,
			best_rating REAL,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS search_strategies (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL REFERENCES search_runs(id) ON DELETE CASCADE,
			rank INTEGER NOT NULL,
			signature TEXT NOT NULL,
			rating REAL,
			config BLOB NOT NULL,
			metrics BLOB NOT NULL,
			UNIQUE (run_id, rank)
		);
		CREATE INDEX IF NOT EXISTS idx_search_runs_finished_at ON search_runs (finished_at DESC);
	`)
	return err
}

// formatTime keeps a fixed-width UTC layout so text order is time order
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}

func nullableFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func floatOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
