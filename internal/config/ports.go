package config

// ============================================================================
// DEFAULT PORTS
// ============================================================================
//
// Port Allocation:
//   8080-8099: status API
//   9100-9199: Prometheus metrics endpoints
//
// ============================================================================

const (
	// APIServerPort serves the status API and its websocket stream.
	APIServerPort = 8080

	// MetricsPort serves /metrics for Prometheus scraping.
	MetricsPort = 9100
)

// Infrastructure Service Ports
const (
	PostgresPort = 5432
	RedisPort    = 6379
	NATSPort     = 4222
)
