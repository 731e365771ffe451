package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Configuration validation failed with %d error(s):\n\n", len(ve)))
	for i, err := range ve {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	sb.WriteString("\nPlease fix the above errors and try again.\n")
	return sb.String()
}

var (
	validEnvironments = []string{"development", "staging", "production"}
	validLogFormats   = []string{"json", "console"}
	validModes        = []string{"grid", "genetic"}
	validSelectors    = []string{"cost", "comparator", "cluster"}
	validDistances    = []string{"metrics", "parameters"}
	validBackends     = []string{"none", "memory", "postgres", "sqlite"}
)

// Validate performs comprehensive configuration validation
func (c *Config) Validate() error {
	var errors ValidationErrors

	errors = append(errors, c.validateApp()...)
	errors = append(errors, c.validateSearch()...)
	errors = append(errors, c.validateSelector()...)
	errors = append(errors, c.validateSimulator()...)
	errors = append(errors, c.validateRedis()...)
	errors = append(errors, c.validateStore()...)
	errors = append(errors, c.validateNATS()...)
	errors = append(errors, c.validateAPI()...)
	errors = append(errors, c.validateMonitoring()...)

	if len(errors) > 0 {
		return errors
	}

	return nil
}

func (c *Config) validateApp() ValidationErrors {
	var errors ValidationErrors

	if c.App.Name == "" {
		errors = append(errors, ValidationError{
			Field:   "app.name",
			Message: "Application name is required",
		})
	}

	if !slices.Contains(validEnvironments, c.App.Environment) {
		errors = append(errors, ValidationError{
			Field:   "app.environment",
			Message: fmt.Sprintf("Invalid environment '%s'. Must be one of: %v", c.App.Environment, validEnvironments),
		})
	}

	if c.App.LogLevel == "" {
		errors = append(errors, ValidationError{
			Field:   "app.log_level",
			Message: "Log level is required (debug, info, warn, error)",
		})
	}

	if c.App.LogFormat != "" && !slices.Contains(validLogFormats, c.App.LogFormat) {
		errors = append(errors, ValidationError{
			Field:   "app.log_format",
			Message: fmt.Sprintf("Invalid log format '%s'. Must be one of: %v", c.App.LogFormat, validLogFormats),
		})
	}

	return errors
}

func (c *Config) validateSearch() ValidationErrors {
	var errors ValidationErrors
	s := c.Search

	if !slices.Contains(validModes, s.Mode) {
		errors = append(errors, ValidationError{
			Field:   "search.mode",
			Message: fmt.Sprintf("Invalid search mode '%s'. Must be one of: %v", s.Mode, validModes),
		})
	}

	if s.SpaceFile == "" {
		errors = append(errors, ValidationError{
			Field:   "search.space_file",
			Message: "Parameter space file is required",
		})
	}

	if s.Objective == "" {
		errors = append(errors, ValidationError{
			Field:   "search.objective",
			Message: "Objective function is required",
		})
	}

	if s.Threads < 1 {
		errors = append(errors, ValidationError{
			Field:   "search.threads",
			Message: "Thread count must be at least 1",
		})
	}

	if s.TopN < 0 {
		errors = append(errors, ValidationError{
			Field:   "search.top_n",
			Message: "Top N must not be negative",
		})
	}

	if s.Mode != "genetic" {
		return errors
	}

	if s.PopulationSize < 2 {
		errors = append(errors, ValidationError{
			Field:   "search.population_size",
			Message: "Population size must be at least 2",
		})
	}

	if s.MaxGenerations < 1 {
		errors = append(errors, ValidationError{
			Field:   "search.max_generations",
			Message: "Max generations must be at least 1",
		})
	}

	if s.BestFraction <= 0 || s.BestFraction > 1 {
		errors = append(errors, ValidationError{
			Field:   "search.best_fraction",
			Message: fmt.Sprintf("Best fraction %.2f must be in (0, 1]", s.BestFraction),
		})
	} else if int(s.BestFraction*float64(s.PopulationSize)) == 0 {
		errors = append(errors, ValidationError{
			Field:   "search.best_fraction",
			Message: fmt.Sprintf("Best fraction %.2f retains no strategies from a population of %d", s.BestFraction, s.PopulationSize),
		})
	}

	if s.CrossoverFraction < 0 || s.CrossoverFraction > 1 {
		errors = append(errors, ValidationError{
			Field:   "search.crossover_fraction",
			Message: fmt.Sprintf("Crossover fraction %.2f must be in [0, 1]", s.CrossoverFraction),
		})
	}

	return errors
}

func (c *Config) validateSelector() ValidationErrors {
	var errors ValidationErrors
	s := c.Selector

	if !slices.Contains(validSelectors, s.Kind) {
		errors = append(errors, ValidationError{
			Field:   "selector.kind",
			Message: fmt.Sprintf("Invalid selector '%s'. Must be one of: %v", s.Kind, validSelectors),
		})
		return errors
	}

	switch s.Kind {
	case "cost", "comparator":
		if s.Capacity < 1 {
			errors = append(errors, ValidationError{
				Field:   "selector.capacity",
				Message: "Selector capacity must be at least 1",
			})
		}
		if s.Kind == "comparator" && s.Comparator == "" {
			errors = append(errors, ValidationError{
				Field:   "selector.comparator",
				Message: "Comparator name is required for the comparator selector",
			})
		}
	case "cluster":
		if s.MaxClusters < 1 {
			errors = append(errors, ValidationError{
				Field:   "selector.max_clusters",
				Message: "Max clusters must be at least 1",
			})
		}
		if s.MaxElementsPerCluster < 1 {
			errors = append(errors, ValidationError{
				Field:   "selector.max_elements_per_cluster",
				Message: "Max elements per cluster must be at least 1",
			})
		}
		if s.Epsilon <= 0 {
			errors = append(errors, ValidationError{
				Field:   "selector.epsilon",
				Message: "Cluster epsilon must be positive",
			})
		}
		if !slices.Contains(validDistances, s.Distance) {
			errors = append(errors, ValidationError{
				Field:   "selector.distance",
				Message: fmt.Sprintf("Invalid distance '%s'. Must be one of: %v", s.Distance, validDistances),
			})
		}
	}

	return errors
}

func (c *Config) validateSimulator() ValidationErrors {
	var errors ValidationErrors
	s := c.Simulator

	if s.Name == "" {
		errors = append(errors, ValidationError{
			Field:   "simulator.name",
			Message: "Simulator name is required",
		})
	}

	if s.RateLimit < 0 {
		errors = append(errors, ValidationError{
			Field:   "simulator.rate_limit",
			Message: "Rate limit must not be negative",
		})
	} else if s.RateLimit > 0 && s.Burst < 1 {
		errors = append(errors, ValidationError{
			Field:   "simulator.burst",
			Message: "Burst must be at least 1 when rate limiting is enabled",
		})
	}

	if s.FeeRate < 0 || s.FeeRate >= 1 {
		errors = append(errors, ValidationError{
			Field:   "simulator.fee_rate",
			Message: fmt.Sprintf("Fee rate %.4f must be in [0, 1)", s.FeeRate),
		})
	}

	if s.Breaker.Enabled && s.Breaker.ConsecutiveFailures == 0 {
		errors = append(errors, ValidationError{
			Field:   "simulator.breaker.consecutive_failures",
			Message: "Breaker needs at least one failure before tripping",
		})
	}

	return errors
}

func (c *Config) validateRedis() ValidationErrors {
	var errors ValidationErrors

	if !c.Redis.Enabled {
		return errors
	}

	if c.Redis.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "redis.host",
			Message: "Redis host is required",
		})
	}

	errors = append(errors, validatePort("redis.port", c.Redis.Port)...)

	if c.Redis.TTL < 0 {
		errors = append(errors, ValidationError{
			Field:   "redis.ttl",
			Message: "Redis TTL must not be negative",
		})
	}

	return errors
}

func (c *Config) validateStore() ValidationErrors {
	var errors ValidationErrors

	if !slices.Contains(validBackends, c.Store.Backend) {
		errors = append(errors, ValidationError{
			Field:   "store.backend",
			Message: fmt.Sprintf("Invalid store backend '%s'. Must be one of: %v", c.Store.Backend, validBackends),
		})
		return errors
	}

	switch c.Store.Backend {
	case "postgres":
		db := c.Store.Postgres
		if db.Host == "" {
			errors = append(errors, ValidationError{
				Field:   "store.postgres.host",
				Message: "Database host is required",
			})
		}
		errors = append(errors, validatePort("store.postgres.port", db.Port)...)
		if db.Database == "" {
			errors = append(errors, ValidationError{
				Field:   "store.postgres.database",
				Message: "Database name is required",
			})
		}
		if db.Password == "" && c.App.Environment != "development" {
			errors = append(errors, ValidationError{
				Field:   "store.postgres.password",
				Message: "Database password is required in non-development environments",
			})
		}
		if db.PoolSize < 1 {
			errors = append(errors, ValidationError{
				Field:   "store.postgres.pool_size",
				Message: "Database pool size must be at least 1",
			})
		}
	case "sqlite":
		if c.Store.SQLite.Path == "" {
			errors = append(errors, ValidationError{
				Field:   "store.sqlite.path",
				Message: "SQLite path is required",
			})
		}
	}

	return errors
}

func (c *Config) validateNATS() ValidationErrors {
	var errors ValidationErrors

	if !c.NATS.Enabled {
		return errors
	}

	if c.NATS.URL == "" {
		errors = append(errors, ValidationError{
			Field:   "nats.url",
			Message: "NATS URL is required",
		})
	} else if !strings.HasPrefix(c.NATS.URL, "nats://") && !strings.HasPrefix(c.NATS.URL, "tls://") {
		errors = append(errors, ValidationError{
			Field:   "nats.url",
			Message: fmt.Sprintf("Invalid NATS URL '%s'. Must start with nats:// or tls://", c.NATS.URL),
		})
	}

	if c.NATS.SubjectPrefix == "" {
		errors = append(errors, ValidationError{
			Field:   "nats.subject_prefix",
			Message: "NATS subject prefix is required",
		})
	}

	return errors
}

func (c *Config) validateAPI() ValidationErrors {
	if !c.API.Enabled {
		return nil
	}
	return validatePort("api.port", c.API.Port)
}

func (c *Config) validateMonitoring() ValidationErrors {
	var errors ValidationErrors

	if !c.Monitoring.EnableMetrics {
		return errors
	}

	errors = append(errors, validatePort("monitoring.prometheus_port", c.Monitoring.PrometheusPort)...)
	if c.API.Enabled && c.Monitoring.PrometheusPort == c.API.Port {
		errors = append(errors, ValidationError{
			Field:   "monitoring.prometheus_port",
			Message: fmt.Sprintf("Port %d conflicts with api.port", c.API.Port),
		})
	}

	return errors
}

func validatePort(field string, port int) ValidationErrors {
	if port == 0 {
		return ValidationErrors{{Field: field, Message: "Port is required"}}
	}
	if port < 1 || port > 65535 {
		return ValidationErrors{{Field: field, Message: fmt.Sprintf("Invalid port %d. Must be between 1-65535", port)}}
	}
	return nil
}
