package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// PoolInterface is the subset of pgxpool.Pool the store uses
type PoolInterface interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// PostgresStore persists runs in PostgreSQL
type PostgresStore struct {
	pool PoolInterface
}

// NewPostgresStore wraps an existing pool
func NewPostgresStore(pool PoolInterface) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// OpenPostgres creates a connection pool and verifies it
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database DSN: %w", err)
	}

	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Int32("max_conns", poolCfg.MaxConns).
		Msg("Database connection pool created successfully")

	return NewPostgresStore(pool), nil
}

// Init creates the schema when missing
func (s *PostgresStore) Init(ctx context.Context) error {
	if s.pool == nil {
		return ErrNotInitialized
	}

	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS search_runs (
			id TEXT PRIMARY KEY,
			mode TEXT NOT NULL,
			simulator TEXT NOT NULL,
			objective TEXT NOT NULL,
			status TEXT NOT NULL,
			done BIGINT NOT NULL,
			total BIGINT NOT NULL,
			best_rating DOUBLE PRECISION,
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS search_strategies (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL REFERENCES search_runs(id) ON DELETE CASCADE,
			rank INTEGER NOT NULL,
			signature TEXT NOT NULL,
			rating DOUBLE PRECISION,
			config JSONB NOT NULL,
			metrics JSONB NOT NULL,
			UNIQUE (run_id, rank)
		);
		CREATE INDEX IF NOT EXISTS idx_search_runs_finished_at ON search_runs (finished_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveRun implements Store
func (s *PostgresStore) SaveRun(ctx context.Context, run Run, strategies []StrategyRecord) error {
	if s.pool == nil {
		return ErrNotInitialized
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := saveRunTx(ctx, tx, run, strategies); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			log.Warn().Err(rbErr).Str("run_id", run.ID).Msg("Failed to roll back run")
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}

	log.Debug().
		Str("run_id", run.ID).
		Int("strategies", len(strategies)).
		Msg("Saved search run")

	return nil
}

func saveRunTx(ctx context.Context, tx pgx.Tx, run Run, strategies []StrategyRecord) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO search_runs (id, mode, simulator, objective, status, done, total, best_rating, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			done = EXCLUDED.done,
			total = EXCLUDED.total,
			best_rating = EXCLUDED.best_rating,
			finished_at = EXCLUDED.finished_at
	`, run.ID, run.Mode, run.Simulator, run.Objective, run.Status, run.Done, run.Total,
		run.BestRating, run.StartedAt, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM search_strategies WHERE run_id = $1`, run.ID); err != nil {
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

		_, err = tx.Exec(ctx, `
			INSERT INTO search_strategies (id, run_id, rank, signature, rating, config, metrics)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, rec.ID, run.ID, rec.Rank, rec.Signature, rec.Rating, configJSON, metricsJSON)
		if err != nil {
			return fmt.Errorf("failed to save strategy %d: %w", rec.Rank, err)
		}
	}
	return nil
}

const runColumns = `id, mode, simulator, objective, status, done, total, best_rating, started_at, finished_at`

func scanRun(row pgx.Row) (Run, error) {
	var r Run
	err := row.Scan(&r.ID, &r.Mode, &r.Simulator, &r.Objective, &r.Status, &r.Done, &r.Total,
		&r.BestRating, &r.StartedAt, &r.FinishedAt)
	return r, err
}

// GetRun implements Store
func (s *PostgresStore) GetRun(ctx context.Context, id string) (Run, bool, error) {
	if s.pool == nil {
		return Run{}, false, ErrNotInitialized
	}

	run, err := scanRun(s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM search_runs WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Run{}, false, nil
		}
		return Run{}, false, fmt.Errorf("failed to get run: %w", err)
	}
	return run, true, nil
}

// ListRuns implements Store
func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if s.pool == nil {
		return nil, ErrNotInitialized
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, `SELECT `+runColumns+` FROM search_runs ORDER BY finished_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ListStrategies implements Store
func (s *PostgresStore) ListStrategies(ctx context.Context, runID string) ([]StrategyRecord, error) {
	if s.pool == nil {
		return nil, ErrNotInitialized
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, run_id, rank, signature, rating, config, metrics
		FROM search_strategies
		WHERE run_id = $1
		ORDER BY rank
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list strategies: %w", err)
	}
	defer rows.Close()

	var records []StrategyRecord
	for rows.Next() {
		var rec StrategyRecord
		var configJSON, metricsJSON []byte
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.Rank, &rec.Signature, &rec.Rating, &configJSON, &metricsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan strategy: %w", err)
		}
		if err := decodeRecord(&rec, configJSON, metricsJSON); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close releases the pool
// PoolStats reports acquired and idle connections; zero unless the store
// owns a real pgxpool.Pool.
func (s *PostgresStore) PoolStats() (acquired, idle int32) {
	pool, ok := s.pool.(*pgxpool.Pool)
	if !ok {
		return 0, 0
	}
	stat := pool.Stat()
	return stat.AcquiredConns(), stat.IdleConns()
}

func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
		log.Info().Msg("Database connection pool closed")
	}
	return nil
}
