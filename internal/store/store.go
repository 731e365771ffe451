// Package store persists finished search runs and the strategies their
// selectors kept.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/ajitpratap0/paramsearch/internal/config"
	"github.com/ajitpratap0/paramsearch/pkg/paramspace"
	"github.com/ajitpratap0/paramsearch/pkg/search"
	"github.com/ajitpratap0/paramsearch/pkg/selector"
)

// Backend names
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

var (
	ErrUnknownBackend = errors.New("unknown store backend")
	ErrNotInitialized = errors.New("store is not initialized")
)

// Run summarizes one finished search
type Run struct {
	ID         string    `json:"id"`
	Mode       string    `json:"mode"`
	Simulator  string    `json:"simulator"`
	Objective  string    `json:"objective"`
	Status     string    `json:"status"`
	Done       int64     `json:"done"`
	Total      int64     `json:"total"`
	BestRating float64   `json:"best_rating"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// StrategyRecord is one persisted strategy of a run; Rank 1 is the best
type StrategyRecord struct {
	ID        string                   `json:"id"`
	RunID     string                   `json:"run_id"`
	Rank      int                      `json:"rank"`
	Signature string                   `json:"signature"`
	Rating    float64                  `json:"rating"`
	Config    paramspace.Configuration `json:"config"`
	Metrics   selector.Metrics         `json:"metrics"`
}

// Store persists runs and their strategies
type Store interface {
	Init(ctx context.Context) error
	// SaveRun stores the run and replaces its strategies atomically
	SaveRun(ctx context.Context, run Run, strategies []StrategyRecord) error
	GetRun(ctx context.Context, id string) (Run, bool, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	ListStrategies(ctx context.Context, runID string) ([]StrategyRecord, error)
	Close() error
}

// New creates and initializes the configured backend
func New(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var s Store
	switch cfg.Backend {
	case BackendMemory:
		s = NewMemoryStore()
	case BackendPostgres:
		pg, err := OpenPostgres(ctx, cfg.Postgres.GetDSN())
		if err != nil {
			return nil, err
		}
		s = pg
	case BackendSQLite:
		s = NewSQLiteStore(cfg.SQLite.Path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}

	if err := s.Init(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to initialize %s store: %w", cfg.Backend, err)
	}
	return s, nil
}

// NewRun summarizes a finished search
func NewRun(s search.Search, simulatorName, objectiveName string, startedAt time.Time) Run {
	p := s.Progress()
	run := Run{
		ID:         s.ID(),
		Mode:       string(s.Mode()),
		Simulator:  simulatorName,
		Objective:  objectiveName,
		Status:     s.Status().String(),
		Done:       p.Done,
		Total:      p.Total,
		BestRating: math.NaN(),
		StartedAt:  startedAt.UTC(),
		FinishedAt: time.Now().UTC(),
	}
	if best := selector.Best(s.Selector()); best != nil {
		run.BestRating = best.Rating()
	}
	return run
}

// Records converts a best-first snapshot into strategy records
func Records(runID string, strategies []*selector.Strategy) []StrategyRecord {
	records := make([]StrategyRecord, len(strategies))
	for i, st := range strategies {
		records[i] = StrategyRecord{
			ID:        uuid.New().String(),
			RunID:     runID,
			Rank:      i + 1,
			Signature: st.Config().Signature(),
			Rating:    st.Rating(),
			Config:    st.Config(),
			Metrics:   st.Metrics(),
		}
	}
	return records
}

// encodeMetrics drops non-finite values, which JSON cannot carry
func encodeMetrics(m selector.Metrics) ([]byte, error) {
	finite := make(selector.Metrics, len(m))
	for k, v := range m {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite[k] = v
		}
	}
	data, err := json.Marshal(finite)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metrics: %w", err)
	}
	return data, nil
}

func decodeRecord(rec *StrategyRecord, configJSON, metricsJSON []byte) error {
	if err := json.Unmarshal(configJSON, &rec.Config); err != nil {
		return fmt.Errorf("decode config of strategy %s: %w", rec.ID, err)
	}
	rec.Metrics = selector.Metrics{}
	if err := json.Unmarshal(metricsJSON, &rec.Metrics); err != nil {
		return fmt.Errorf("decode metrics of strategy %s: %w", rec.ID, err)
	}
	return nil
}
