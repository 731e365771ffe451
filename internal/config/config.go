package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. PARAMSEARCH_SEARCH_THREADS
const EnvPrefix = "PARAMSEARCH"

// Config holds all application configuration
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Search     SearchConfig     `mapstructure:"search"`
	Selector   SelectorConfig   `mapstructure:"selector"`
	Simulator  SimulatorConfig  `mapstructure:"simulator"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Store      StoreConfig      `mapstructure:"store"`
	NATS       NATSConfig       `mapstructure:"nats"`
	API        APIConfig        `mapstructure:"api"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"` // development, staging, production
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"` // json or console
}

// SearchConfig selects and tunes the search algorithm
type SearchConfig struct {
	Mode              string  `mapstructure:"mode"`       // grid or genetic
	SpaceFile         string  `mapstructure:"space_file"` // YAML parameter space definition
	Objective         string  `mapstructure:"objective"`  // cost function name
	Threads           int     `mapstructure:"threads"`
	Seed              int64   `mapstructure:"seed"` // 0 = time based
	PopulationSize    int     `mapstructure:"population_size"`
	MaxGenerations    int     `mapstructure:"max_generations"`
	BestFraction      float64 `mapstructure:"best_fraction"`
	CrossoverFraction float64 `mapstructure:"crossover_fraction"`
	ReportFile        string  `mapstructure:"report_file"` // optional YAML export of the best strategies
	TopN              int     `mapstructure:"top_n"`       // strategies printed and exported
}

// SelectorConfig chooses how the best strategies are retained
type SelectorConfig struct {
	Kind                  string   `mapstructure:"kind"` // cost, comparator or cluster
	Capacity              int      `mapstructure:"capacity"`
	Comparator            string   `mapstructure:"comparator"`
	MaxClusters           int      `mapstructure:"max_clusters"`
	MaxElementsPerCluster int      `mapstructure:"max_elements_per_cluster"`
	Epsilon               float64  `mapstructure:"epsilon"`
	Distance              string   `mapstructure:"distance"` // metrics or parameters
	DistanceMetrics       []string `mapstructure:"distance_metrics"`
}

// SimulatorConfig picks the simulator and its protective decorators
type SimulatorConfig struct {
	Name           string        `mapstructure:"name"`
	DataFile       string        `mapstructure:"data_file"` // CSV of closing prices; synthetic when empty
	Bars           int           `mapstructure:"bars"`      // synthetic series length
	Seed           int64         `mapstructure:"seed"`
	InitialCapital float64       `mapstructure:"initial_capital"`
	FeeRate        float64       `mapstructure:"fee_rate"`
	RateLimit      float64       `mapstructure:"rate_limit"` // simulations per second, 0 disables
	Burst          int           `mapstructure:"burst"`
	Breaker        BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig configures the simulator circuit breaker
type BreakerConfig struct {
	Enabled             bool   `mapstructure:"enabled"`
	ConsecutiveFailures uint32 `mapstructure:"consecutive_failures"`
	OpenTimeout         int    `mapstructure:"open_timeout"` // seconds
	HalfOpenRequests    uint32 `mapstructure:"half_open_requests"`
}

// RedisConfig contains the shared seen-set settings
type RedisConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
	TTL       int    `mapstructure:"ttl"` // seconds
}

// StoreConfig chooses where search results are persisted
type StoreConfig struct {
	Backend  string         `mapstructure:"backend"` // none, memory, postgres or sqlite
	Postgres DatabaseConfig `mapstructure:"postgres"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
}

// DatabaseConfig contains PostgreSQL settings
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	PoolSize int    `mapstructure:"pool_size"`
}

// SQLiteConfig contains the SQLite database location
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// NATSConfig contains progress event publishing settings
type NATSConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

// APIConfig contains the status API settings
type APIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// MonitoringConfig contains monitoring settings
type MonitoringConfig struct {
	PrometheusPort int  `mapstructure:"prometheus_port"`
	EnableMetrics  bool `mapstructure:"enable_metrics"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; using defaults and environment variables
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "paramsearch")
	v.SetDefault("app.version", Version)
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "console")

	v.SetDefault("search.mode", "genetic")
	v.SetDefault("search.space_file", "configs/space.yaml")
	v.SetDefault("search.objective", "sharpe_ratio")
	v.SetDefault("search.threads", 4)
	v.SetDefault("search.seed", 0)
	v.SetDefault("search.population_size", 50)
	v.SetDefault("search.max_generations", 100)
	v.SetDefault("search.best_fraction", 0.2)
	v.SetDefault("search.crossover_fraction", 0.6)
	v.SetDefault("search.top_n", 10)

	v.SetDefault("selector.kind", "cost")
	v.SetDefault("selector.capacity", 10)
	v.SetDefault("selector.comparator", "sharpe_then_drawdown")
	v.SetDefault("selector.max_clusters", 5)
	v.SetDefault("selector.max_elements_per_cluster", 4)
	v.SetDefault("selector.epsilon", 0.1)
	v.SetDefault("selector.distance", "parameters")

	v.SetDefault("simulator.name", "sma_crossover")
	v.SetDefault("simulator.bars", 1000)
	v.SetDefault("simulator.seed", 1)
	v.SetDefault("simulator.initial_capital", 10000.0)
	v.SetDefault("simulator.fee_rate", 0.001)
	v.SetDefault("simulator.rate_limit", 0)
	v.SetDefault("simulator.burst", 1)
	v.SetDefault("simulator.breaker.enabled", true)
	v.SetDefault("simulator.breaker.consecutive_failures", 5)
	v.SetDefault("simulator.breaker.open_timeout", 30)
	v.SetDefault("simulator.breaker.half_open_requests", 1)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", RedisPort)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "paramsearch:seen")
	v.SetDefault("redis.ttl", 86400)

	v.SetDefault("store.backend", "none")
	v.SetDefault("store.postgres.host", "localhost")
	v.SetDefault("store.postgres.port", PostgresPort)
	v.SetDefault("store.postgres.user", "postgres")
	v.SetDefault("store.postgres.database", "paramsearch")
	v.SetDefault("store.postgres.ssl_mode", "disable")
	v.SetDefault("store.postgres.pool_size", 10)
	v.SetDefault("store.sqlite.path", "paramsearch.db")

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", fmt.Sprintf("nats://localhost:%d", NATSPort))
	v.SetDefault("nats.subject_prefix", "paramsearch")

	v.SetDefault("api.enabled", false)
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", APIServerPort)

	v.SetDefault("monitoring.prometheus_port", MetricsPort)
	v.SetDefault("monitoring.enable_metrics", true)
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode, c.PoolSize,
	)
}

// GetRedisAddr returns the Redis address
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetTTL returns the seen-set key lifetime; zero means no expiry
func (c *RedisConfig) GetTTL() time.Duration {
	return time.Duration(c.TTL) * time.Second
}

// GetAPIAddr returns the API server address
func (c *APIConfig) GetAPIAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetOpenTimeout returns how long the breaker stays open
func (c *BreakerConfig) GetOpenTimeout() time.Duration {
	return time.Duration(c.OpenTimeout) * time.Second
}
