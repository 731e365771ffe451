package report

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/paramsearch/internal/store"
	"github.com/ajitpratap0/paramsearch/pkg/paramspace"
	"github.com/ajitpratap0/paramsearch/pkg/selector"
)

func testReport(t *testing.T) Report {
	t.Helper()
	run := store.Run{
		ID:         "run-1",
		Mode:       "genetic",
		Simulator:  "sma_crossover",
		Objective:  "sharpe_ratio",
		Status:     "converged",
		Done:       40,
		Total:      100,
		StartedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		FinishedAt: time.Date(2026, 1, 2, 3, 9, 5, 0, time.UTC),
	}

	best := selector.NewStrategy(
		paramspace.NewConfiguration(
			map[string]int64{"fast_period": 8, "slow_period": 34},
			map[string]float64{"stop_loss_pct": 2.5},
			map[string]string{"ma_type": "ema"},
			[]paramspace.Ref{{Name: "risk", Value: "tight"}},
		),
		selector.Metrics{"sharpe_ratio": 1.8, "total_trades": 12, "profit_factor": math.Inf(1)},
		1.8,
	)
	second := selector.NewStrategy(
		paramspace.NewConfiguration(map[string]int64{"fast_period": 5, "slow_period": 20}, nil, nil, nil),
		selector.Metrics{"sharpe_ratio": 0.9},
		math.NaN(),
	)
	third := selector.NewStrategy(
		paramspace.NewConfiguration(map[string]int64{"fast_period": 3, "slow_period": 50}, nil, nil, nil),
		nil,
		0.1,
	)

	return New(run, []*selector.Strategy{best, second, third}, 2)
}

func TestNew(t *testing.T) {
	r := testReport(t)

	assert.Equal(t, "run-1", r.SearchID)
	assert.Equal(t, "converged", r.Status)
	require.Len(t, r.Strategies, 2, "top limits the entries")

	best := r.Strategies[0]
	assert.Equal(t, 1, best.Rank)
	require.NotNil(t, best.Rating)
	assert.Equal(t, 1.8, *best.Rating)
	assert.Equal(t, int64(8), best.Parameters["fast_period"])
	assert.Equal(t, 2.5, best.Parameters["stop_loss_pct"])
	assert.Equal(t, "ema", best.Parameters["ma_type"])
	assert.Equal(t, []paramspace.Ref{{Name: "risk", Value: "tight"}}, best.SubConfigs)
	assert.NotContains(t, best.Metrics, "profit_factor")

	assert.Equal(t, 2, r.Strategies[1].Rank)
	assert.Nil(t, r.Strategies[1].Rating)
}

func TestNew_NoLimit(t *testing.T) {
	r := New(store.Run{ID: "x"}, []*selector.Strategy{
		selector.NewStrategy(paramspace.NewConfiguration(map[string]int64{"a": 1}, nil, nil, nil), nil, 1),
		selector.NewStrategy(paramspace.NewConfiguration(map[string]int64{"a": 2}, nil, nil, nil), nil, 2),
	}, 0)
	assert.Len(t, r.Strategies, 2)
}

func TestEncode(t *testing.T) {
	r := testReport(t)

	t.Run("yaml", func(t *testing.T) {
		data, err := Encode(r, FormatYAML)
		require.NoError(t, err)
		out := string(data)
		assert.True(t, strings.HasPrefix(out, "# paramsearch report for search run-1\n"))
		assert.Contains(t, out, "search_id: run-1")
		assert.Contains(t, out, "    fast_period: 8")
	})

	t.Run("json", func(t *testing.T) {
		data, err := Encode(r, FormatJSON)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"search_id": "run-1"`)
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := Encode(r, Format("toml"))
		assert.ErrorContains(t, err, "unsupported report format")
	})
}

func TestFormatForPath(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"best.yaml", FormatYAML},
		{"best.yml", FormatYAML},
		{"best.JSON", FormatJSON},
		{"best", FormatYAML},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatForPath(tt.path))
		})
	}
}

func TestWriteFileAndLoad(t *testing.T) {
	r := testReport(t)
	dir := t.TempDir()

	for _, name := range []string{"out/nested/best.yaml", "best.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, WriteFile(r, path))

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

			loaded, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, r.SearchID, loaded.SearchID)
			assert.True(t, r.FinishedAt.Equal(loaded.FinishedAt))
			require.Len(t, loaded.Strategies, 2)
			assert.EqualValues(t, 34, loaded.Strategies[0].Parameters["slow_period"])
			assert.Equal(t, "ema", loaded.Strategies[0].Parameters["ma_type"])
			assert.Equal(t, r.Strategies[0].SubConfigs, loaded.Strategies[0].SubConfigs)
			assert.Equal(t, 1.8, *loaded.Strategies[0].Rating)
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read report file")

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))
	_, err = Load(path)
	assert.ErrorContains(t, err, "failed to decode report")
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, testReport(t), []string{"sharpe_ratio", "total_trades"}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"RANK", "RATING", "SHARPE_RATIO", "TOTAL_TRADES", "PARAMETERS"}, strings.Fields(lines[0]))
	assert.Equal(t,
		[]string{"1", "1.8", "1.8", "12", "fast_period=8", "ma_type=ema", "slow_period=34", "stop_loss_pct=2.5", "risk=tight"},
		strings.Fields(lines[1]))
	assert.Equal(t,
		[]string{"2", "-", "0.9", "-", "fast_period=5", "slow_period=20"},
		strings.Fields(lines[2]))
}

func TestFromRecords(t *testing.T) {
	cfg := func(x int64) paramspace.Configuration {
		return paramspace.NewConfiguration(map[string]int64{"x": x}, nil, nil, nil)
	}
	records := []store.StrategyRecord{
		{Rank: 2, Rating: 5, Config: cfg(5), Metrics: selector.Metrics{"score": 5}},
		{Rank: 1, Rating: 9, Config: cfg(9), Metrics: selector.Metrics{"score": 9}},
		{Rank: 3, Rating: math.NaN(), Config: cfg(1)},
	}

	r := FromRecords(store.Run{ID: "stored", Status: "completed"}, records, 2)
	assert.Equal(t, "stored", r.SearchID)
	require.Len(t, r.Strategies, 2)
	assert.Equal(t, 1, r.Strategies[0].Rank)
	assert.Equal(t, int64(9), r.Strategies[0].Parameters["x"])
	assert.Equal(t, 2, r.Strategies[1].Rank)
	assert.Equal(t, 2, records[0].Rank, "input is not reordered")

	all := FromRecords(store.Run{}, records, 0)
	require.Len(t, all.Strategies, 3)
	assert.Nil(t, all.Strategies[2].Rating)
}
