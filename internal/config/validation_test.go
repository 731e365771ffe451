package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// getValidConfig returns a valid configuration for testing
func getValidConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "paramsearch",
			Version:     Version,
			Environment: "development",
			LogLevel:    "info",
			LogFormat:   "json",
		},
		Search: SearchConfig{
			Mode:              "genetic",
			SpaceFile:         "configs/space.yaml",
			Objective:         "sharpe_ratio",
			Threads:           4,
			PopulationSize:    50,
			MaxGenerations:    100,
			BestFraction:      0.2,
			CrossoverFraction: 0.6,
			TopN:              10,
		},
		Selector: SelectorConfig{
			Kind:                  "cost",
			Capacity:              10,
			MaxClusters:           5,
			MaxElementsPerCluster: 4,
			Epsilon:               0.1,
			Distance:              "parameters",
		},
		Simulator: SimulatorConfig{
			Name:           "sma_crossover",
			Bars:           1000,
			InitialCapital: 10000,
			FeeRate:        0.001,
			Breaker: BreakerConfig{
				Enabled:             true,
				ConsecutiveFailures: 5,
				OpenTimeout:         30,
			},
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
		},
		Store: StoreConfig{
			Backend: "none",
			Postgres: DatabaseConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "postgres",
				Database: "paramsearch",
				SSLMode:  "disable",
				PoolSize: 10,
			},
			SQLite: SQLiteConfig{Path: "paramsearch.db"},
		},
		NATS: NATSConfig{
			URL:           "nats://localhost:4222",
			SubjectPrefix: "paramsearch",
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Monitoring: MonitoringConfig{
			PrometheusPort: 9100,
			EnableMetrics:  true,
		},
	}
}

func TestValidateValidConfig(t *testing.T) {
	cfg := getValidConfig()
	err := cfg.Validate()
	assert.NoError(t, err, "Valid configuration should not produce errors")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		expectError string
	}{
		{
			name:        "missing app name",
			modify:      func(c *Config) { c.App.Name = "" },
			expectError: "app.name",
		},
		{
			name:        "invalid environment",
			modify:      func(c *Config) { c.App.Environment = "invalid_env" },
			expectError: "Invalid environment",
		},
		{
			name:        "invalid log format",
			modify:      func(c *Config) { c.App.LogFormat = "xml" },
			expectError: "app.log_format",
		},
		{
			name:        "invalid search mode",
			modify:      func(c *Config) { c.Search.Mode = "annealing" },
			expectError: "search.mode",
		},
		{
			name:        "zero threads",
			modify:      func(c *Config) { c.Search.Threads = 0 },
			expectError: "search.threads",
		},
		{
			name:        "best fraction retains nothing",
			modify:      func(c *Config) { c.Search.BestFraction = 0.01 },
			expectError: "retains no strategies",
		},
		{
			name:        "crossover fraction out of range",
			modify:      func(c *Config) { c.Search.CrossoverFraction = 1.5 },
			expectError: "search.crossover_fraction",
		},
		{
			name:        "unknown selector",
			modify:      func(c *Config) { c.Selector.Kind = "random" },
			expectError: "selector.kind",
		},
		{
			name:        "zero capacity",
			modify:      func(c *Config) { c.Selector.Capacity = 0 },
			expectError: "selector.capacity",
		},
		{
			name: "cluster without epsilon",
			modify: func(c *Config) {
				c.Selector.Kind = "cluster"
				c.Selector.Epsilon = 0
			},
			expectError: "selector.epsilon",
		},
		{
			name: "cluster with unknown distance",
			modify: func(c *Config) {
				c.Selector.Kind = "cluster"
				c.Selector.Distance = "hamming"
			},
			expectError: "selector.distance",
		},
		{
			name:        "negative rate limit",
			modify:      func(c *Config) { c.Simulator.RateLimit = -1 },
			expectError: "simulator.rate_limit",
		},
		{
			name:        "breaker never trips",
			modify:      func(c *Config) { c.Simulator.Breaker.ConsecutiveFailures = 0 },
			expectError: "simulator.breaker.consecutive_failures",
		},
		{
			name: "redis enabled with bad port",
			modify: func(c *Config) {
				c.Redis.Enabled = true
				c.Redis.Port = 70000
			},
			expectError: "redis.port",
		},
		{
			name:        "unknown store backend",
			modify:      func(c *Config) { c.Store.Backend = "mongo" },
			expectError: "store.backend",
		},
		{
			name: "postgres password required outside development",
			modify: func(c *Config) {
				c.App.Environment = "production"
				c.Store.Backend = "postgres"
			},
			expectError: "store.postgres.password",
		},
		{
			name: "sqlite without path",
			modify: func(c *Config) {
				c.Store.Backend = "sqlite"
				c.Store.SQLite.Path = ""
			},
			expectError: "store.sqlite.path",
		},
		{
			name: "nats with bad url",
			modify: func(c *Config) {
				c.NATS.Enabled = true
				c.NATS.URL = "http://localhost:4222"
			},
			expectError: "Invalid NATS URL",
		},
		{
			name: "metrics port clashes with api",
			modify: func(c *Config) {
				c.API.Enabled = true
				c.Monitoring.PrometheusPort = c.API.Port
			},
			expectError: "conflicts with api.port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := getValidConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestValidate_GridIgnoresGeneticSettings(t *testing.T) {
	cfg := getValidConfig()
	cfg.Search.Mode = "grid"
	cfg.Search.PopulationSize = 0
	cfg.Search.BestFraction = 0

	assert.NoError(t, cfg.Validate())
}

func TestValidationErrorsAggregate(t *testing.T) {
	cfg := getValidConfig()
	cfg.App.Name = ""
	cfg.Search.Threads = 0
	cfg.Selector.Capacity = 0

	err := cfg.Validate()
	require.Error(t, err)

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs, 3)
	assert.True(t, strings.HasPrefix(err.Error(), "Configuration validation failed with 3 error(s)"))
}

func TestValidationErrors_Empty(t *testing.T) {
	assert.Equal(t, "", ValidationErrors{}.Error())
}
