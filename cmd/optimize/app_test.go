package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/paramsearch/internal/config"
	"github.com/ajitpratap0/paramsearch/internal/report"
	"github.com/ajitpratap0/paramsearch/internal/store"
	"github.com/ajitpratap0/paramsearch/pkg/paramspace"
	"github.com/ajitpratap0/paramsearch/pkg/search"
	"github.com/ajitpratap0/paramsearch/pkg/selector"
)

const benchmarkSpace = `
parameters:
  - {name: x, type: int, from: -2, to: 2, step: 1}
  - {name: y, type: int, from: -2, to: 2, step: 1}
`

func testConfig(t *testing.T, mode string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	spacePath := filepath.Join(dir, "space.yaml")
	require.NoError(t, os.WriteFile(spacePath, []byte(benchmarkSpace), 0600))

	return &config.Config{
		App: config.AppConfig{Name: "paramsearch", LogLevel: "error"},
		Search: config.SearchConfig{
			Mode:              mode,
			SpaceFile:         spacePath,
			Objective:         "score",
			Threads:           2,
			Seed:              7,
			PopulationSize:    10,
			MaxGenerations:    5,
			BestFraction:      0.2,
			CrossoverFraction: 0.5,
			ReportFile:        filepath.Join(dir, "reports", "best.yaml"),
			TopN:              3,
		},
		Selector:  config.SelectorConfig{Kind: "cost", Capacity: 5},
		Simulator: config.SimulatorConfig{Name: "benchmark"},
		Store:     config.StoreConfig{Backend: store.BackendMemory},
	}
}

func TestApp_GridRun(t *testing.T) {
	cfg := testConfig(t, "grid")
	ctx := context.Background()

	a, err := newApp(ctx, cfg)
	require.NoError(t, err)
	defer a.shutdown(ctx)

	var out bytes.Buffer
	require.NoError(t, a.run(ctx, &out))

	tracked := a.tracker.List()
	require.Len(t, tracked, 1)
	s := tracked[0].Search
	assert.Equal(t, search.StatusCompleted, s.Status())
	assert.Equal(t, int64(25), s.Progress().Done)

	t.Run("stored", func(t *testing.T) {
		run, found, err := a.resultStore.GetRun(ctx, s.ID())
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "benchmark", run.Simulator)
		assert.InDelta(t, 0.0, run.BestRating, 1e-9)

		records, err := a.resultStore.ListStrategies(ctx, s.ID())
		require.NoError(t, err)
		assert.Len(t, records, 5)
	})

	t.Run("report", func(t *testing.T) {
		rep, err := report.Load(cfg.Search.ReportFile)
		require.NoError(t, err)
		require.Len(t, rep.Strategies, 3)
		assert.EqualValues(t, 0, rep.Strategies[0].Parameters["x"])
		assert.EqualValues(t, 0, rep.Strategies[0].Parameters["y"])

		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		assert.Len(t, lines, 4, "header plus top 3")
		assert.Contains(t, lines[1], "x=0 y=0")
	})
}

func TestApp_GeneticRun(t *testing.T) {
	cfg := testConfig(t, "genetic")
	cfg.Store.Backend = "none"
	cfg.Search.ReportFile = ""
	ctx := context.Background()

	a, err := newApp(ctx, cfg)
	require.NoError(t, err)
	defer a.shutdown(ctx)
	assert.Nil(t, a.resultStore)

	var out bytes.Buffer
	require.NoError(t, a.run(ctx, &out))

	s := a.tracker.List()[0].Search
	assert.Equal(t, search.ModeGenetic, s.Mode())
	assert.True(t, s.Status().Terminal())
	assert.NotZero(t, s.Selector().Count())
	assert.Contains(t, out.String(), "RANK")
}

func TestApp_StopBeforeRun(t *testing.T) {
	cfg := testConfig(t, "grid")
	ctx := context.Background()

	a, err := newApp(ctx, cfg)
	require.NoError(t, err)
	defer a.shutdown(ctx)

	a.stop()
	require.NoError(t, a.run(ctx, &bytes.Buffer{}))

	s := a.tracker.List()[0].Search
	assert.Equal(t, search.StatusStopped, s.Status())
	assert.Less(t, s.Progress().Done, int64(25))
}

func TestNewApp_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		errMsg string
	}{
		{"missing space file", func(c *config.Config) { c.Search.SpaceFile = "/nonexistent/space.yaml" }, "failed to read space file"},
		{"unknown objective", func(c *config.Config) { c.Search.Objective = "luck" }, "objective"},
		{"unknown simulator", func(c *config.Config) { c.Simulator.Name = "oracle" }, "simulator"},
		{"bad selector", func(c *config.Config) { c.Selector.Kind = "random" }, "unknown selector kind"},
		{"unknown store", func(c *config.Config) { c.Store.Backend = "mongo" }, "unknown store backend"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t, "grid")
			tt.mutate(cfg)
			_, err := newApp(context.Background(), cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestApp_UnknownMode(t *testing.T) {
	cfg := testConfig(t, "annealing")
	a, err := newApp(context.Background(), cfg)
	require.NoError(t, err)
	defer a.shutdown(context.Background())

	err = a.run(context.Background(), &bytes.Buffer{})
	assert.ErrorContains(t, err, "unknown search mode")
}

func TestNewSelector(t *testing.T) {
	space, err := paramspace.NewBuilder().AddInteger("x", 0, 9, 1).Build()
	require.NoError(t, err)

	tests := []struct {
		name    string
		cfg     config.SelectorConfig
		want    interface{}
		wantErr bool
	}{
		{"cost", config.SelectorConfig{Kind: "cost", Capacity: 3}, &selector.TopKByCost{}, false},
		{"comparator", config.SelectorConfig{Kind: "comparator", Capacity: 3, Comparator: "sharpe_then_drawdown"}, &selector.TopKByComparator{}, false},
		{"unknown comparator", config.SelectorConfig{Kind: "comparator", Capacity: 3, Comparator: "nope"}, nil, true},
		{"cluster parameters", config.SelectorConfig{Kind: "cluster", MaxClusters: 2, MaxElementsPerCluster: 2, Epsilon: 1}, &selector.ClusterSelector{}, false},
		{"cluster metrics", config.SelectorConfig{Kind: "cluster", MaxClusters: 2, MaxElementsPerCluster: 2, Epsilon: 1, Distance: "metrics", DistanceMetrics: []string{"sharpe_ratio"}}, &selector.ClusterSelector{}, false},
		{"unknown distance", config.SelectorConfig{Kind: "cluster", MaxClusters: 2, MaxElementsPerCluster: 2, Epsilon: 1, Distance: "manhattan"}, nil, true},
		{"zero capacity", config.SelectorConfig{Kind: "cost"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := newSelector(tt.cfg, space)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, sel)
		})
	}
}

func TestDedupNamespace(t *testing.T) {
	a := &app{cfg: &config.Config{
		Search:    config.SearchConfig{SpaceFile: "configs/sma-space.yaml", Objective: "sharpe_ratio"},
		Simulator: config.SimulatorConfig{Name: "sma_crossover"},
	}}
	assert.Equal(t, "sma_crossover:sharpe_ratio:sma-space", a.dedupNamespace())
}
