package store

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/paramsearch/internal/config"
	"github.com/ajitpratap0/paramsearch/pkg/paramspace"
	"github.com/ajitpratap0/paramsearch/pkg/search"
	"github.com/ajitpratap0/paramsearch/pkg/selector"
)

func finishedGridSearch(t *testing.T) *search.GridSearch {
	t.Helper()
	space, err := paramspace.NewBuilder().
		AddInteger("x", 0, 9, 1).
		AddStringEnum("side", []string{"long", "short"}).
		Build()
	require.NoError(t, err)

	sel, err := selector.NewTopKByCost(3)
	require.NoError(t, err)

	sim := search.SimulatorFunc(func(_ context.Context, cfg paramspace.Configuration) (selector.Metrics, error) {
		x, _ := cfg.Int("x")
		return selector.Metrics{"score": float64(x)}, nil
	})
	cost := func(m selector.Metrics) float64 { return m["score"] }

	s, err := search.RunGridSearch(context.Background(), space.Grid(), sel, sim, cost, search.GridConfig{Threads: 2})
	require.NoError(t, err)
	s.Wait()
	return s
}

func sampleRecords(runID string) []StrategyRecord {
	cfgA := paramspace.NewConfiguration(map[string]int64{"fast": 5}, map[string]float64{"stop": 2.5}, map[string]string{"side": "long"}, nil)
	cfgB := paramspace.NewConfiguration(map[string]int64{"fast": 8}, nil, map[string]string{"side": "short"}, nil)
	return Records(runID, []*selector.Strategy{
		selector.NewStrategy(cfgA, selector.Metrics{"sharpe_ratio": 1.8, "win_rate": 60}, 1.8),
		selector.NewStrategy(cfgB, selector.Metrics{"sharpe_ratio": 1.1, "profit_factor": math.Inf(1)}, 1.1),
	})
}

func sampleRun(id string) Run {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return Run{
		ID:         id,
		Mode:       "genetic",
		Simulator:  "sma_crossover",
		Objective:  "sharpe_ratio",
		Status:     "converged",
		Done:       24,
		Total:      100,
		BestRating: 1.8,
		StartedAt:  start,
		FinishedAt: start.Add(90 * time.Second),
	}
}

func TestNewRunAndRecords(t *testing.T) {
	s := finishedGridSearch(t)
	started := time.Now().Add(-time.Second)

	run := NewRun(s, "benchmark", "score", started)
	assert.Equal(t, s.ID(), run.ID)
	assert.Equal(t, "grid", run.Mode)
	assert.Equal(t, "completed", run.Status)
	assert.Equal(t, int64(20), run.Done)
	assert.Equal(t, int64(20), run.Total)
	assert.Equal(t, 9.0, run.BestRating)
	assert.False(t, run.FinishedAt.Before(run.StartedAt))

	records := Records(run.ID, s.Selector().Snapshot())
	require.Len(t, records, 3)
	for i, rec := range records {
		assert.Equal(t, i+1, rec.Rank)
		assert.Equal(t, run.ID, rec.RunID)
		assert.NotEmpty(t, rec.ID)
		assert.Equal(t, rec.Config.Signature(), rec.Signature)
	}
	assert.Equal(t, 9.0, records[0].Rating)
}

func TestEncodeMetrics_DropsNonFinite(t *testing.T) {
	data, err := encodeMetrics(selector.Metrics{"a": 1, "b": math.NaN(), "c": math.Inf(-1)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(data))
}

// storeContract exercises behaviour every backend shares
func storeContract(t *testing.T, s Store) {
	ctx := context.Background()

	_, found, err := s.GetRun(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	older := sampleRun("run-1")
	require.NoError(t, s.SaveRun(ctx, older, sampleRecords("run-1")))

	newer := sampleRun("run-2")
	newer.FinishedAt = newer.FinishedAt.Add(time.Hour)
	newer.BestRating = math.NaN()
	require.NoError(t, s.SaveRun(ctx, newer, nil))

	got, found, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, older.Status, got.Status)
	assert.Equal(t, older.Done, got.Done)
	assert.Equal(t, older.BestRating, got.BestRating)
	assert.True(t, older.StartedAt.Equal(got.StartedAt))

	got, _, err = s.GetRun(ctx, "run-2")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(got.BestRating))

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID, "most recent first")

	runs, err = s.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	strategies, err := s.ListStrategies(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, strategies, 2)
	assert.Equal(t, 1, strategies[0].Rank)
	assert.Equal(t, 1.8, strategies[0].Rating)
	assert.True(t, sampleRecords("run-1")[0].Config.Equal(strategies[0].Config))
	assert.Equal(t, 60.0, strategies[0].Metrics["win_rate"])
	assert.NotContains(t, strategies[1].Metrics, "profit_factor")

	// Saving again replaces the strategy list.
	older.Status = "completed"
	require.NoError(t, s.SaveRun(ctx, older, sampleRecords("run-1")[:1]))
	strategies, err = s.ListStrategies(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, strategies, 1)
	got, _, err = s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "completed", got.Status)
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	s := NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, s.Init(context.Background()))
	defer s.Close()

	storeContract(t, s)
}

func TestSQLiteStore_RequiresInit(t *testing.T) {
	s := NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	_, err := s.ListRuns(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotInitialized)

	assert.Error(t, NewSQLiteStore("").Init(context.Background()))
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	ctx := context.Background()

	first := NewSQLiteStore(path)
	require.NoError(t, first.Init(ctx))
	require.NoError(t, first.SaveRun(ctx, sampleRun("kept"), sampleRecords("kept")))
	require.NoError(t, first.Close())

	second := NewSQLiteStore(path)
	require.NoError(t, second.Init(ctx))
	defer second.Close()

	_, found, err := second.GetRun(ctx, "kept")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	s, err := New(ctx, config.StoreConfig{Backend: BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = New(ctx, config.StoreConfig{Backend: BackendSQLite, SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "x.db")}})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = New(ctx, config.StoreConfig{Backend: "cassandra"})
	assert.ErrorIs(t, err, ErrUnknownBackend)

	_, err = New(ctx, config.StoreConfig{Backend: BackendSQLite})
	assert.Error(t, err)
}

// ============================================================================
// POSTGRES
// ============================================================================

func TestPostgresStore_Init(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS search_runs").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, NewPostgresStore(mock).Init(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRun(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	run := sampleRun("run-1")
	records := sampleRecords(run.ID)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO search_runs").
		WithArgs(run.ID, run.Mode, run.Simulator, run.Objective, run.Status, run.Done, run.Total,
			run.BestRating, run.StartedAt, run.FinishedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("DELETE FROM search_strategies").
		WithArgs(run.ID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	for _, rec := range records {
		mock.ExpectExec("INSERT INTO search_strategies").
			WithArgs(rec.ID, run.ID, rec.Rank, rec.Signature, rec.Rating, pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	require.NoError(t, NewPostgresStore(mock).SaveRun(context.Background(), run, records))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRunRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO search_runs").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = NewPostgresStore(mock).SaveRun(context.Background(), sampleRun("run-1"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save run")
	require.NoError(t, mock.ExpectationsWereMet())
}

var runCols = []string{"id", "mode", "simulator", "objective", "status", "done", "total", "best_rating", "started_at", "finished_at"}

func TestPostgresStore_GetRun(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	run := sampleRun("run-1")
	mock.ExpectQuery("SELECT (.+) FROM search_runs WHERE id").
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows(runCols).AddRow(
			run.ID, run.Mode, run.Simulator, run.Objective, run.Status, run.Done, run.Total,
			run.BestRating, run.StartedAt, run.FinishedAt))
	mock.ExpectQuery("SELECT (.+) FROM search_runs WHERE id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	s := NewPostgresStore(mock)
	got, found, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, run, got)

	_, found, err = s.GetRun(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	a, b := sampleRun("a"), sampleRun("b")
	mock.ExpectQuery("SELECT (.+) FROM search_runs ORDER BY finished_at DESC").
		WithArgs(100).
		WillReturnRows(pgxmock.NewRows(runCols).
			AddRow(b.ID, b.Mode, b.Simulator, b.Objective, b.Status, b.Done, b.Total, b.BestRating, b.StartedAt, b.FinishedAt).
			AddRow(a.ID, a.Mode, a.Simulator, a.Objective, a.Status, a.Done, a.Total, a.BestRating, a.StartedAt, a.FinishedAt))

	runs, err := NewPostgresStore(mock).ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "b", runs[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListStrategies(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rec := sampleRecords("run-1")[0]
	configJSON, err := json.Marshal(rec.Config)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT (.+) FROM search_strategies").
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "run_id", "rank", "signature", "rating", "config", "metrics"}).
			AddRow(rec.ID, rec.RunID, rec.Rank, rec.Signature, rec.Rating, configJSON, []byte(`{"sharpe_ratio":1.8}`)))

	got, err := NewPostgresStore(mock).ListStrategies(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, rec.Config.Equal(got[0].Config))
	assert.Equal(t, 1.8, got[0].Metrics["sharpe_ratio"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_QueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT (.+) FROM search_strategies").
		WillReturnError(errors.New("connection reset"))

	_, err = NewPostgresStore(mock).ListStrategies(context.Background(), "run-1")
	assert.ErrorContains(t, err, "failed to list strategies")
}
