package simulator

import (
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/paramsearch/internal/config"
	"github.com/ajitpratap0/paramsearch/pkg/search"
)

// FromConfig builds the configured simulator and wraps it in the configured
// decorators. The rate limiter sits inside the breaker so throttled calls
// are not counted against the backend.
func FromConfig(reg *Registry, cfg config.SimulatorConfig) (search.Simulator, error) {
	sim, err := reg.New(cfg.Name, Options{
		DataFile:       cfg.DataFile,
		Bars:           cfg.Bars,
		Seed:           cfg.Seed,
		InitialCapital: cfg.InitialCapital,
		FeeRate:        cfg.FeeRate,
	})
	if err != nil {
		return nil, err
	}

	if cfg.RateLimit > 0 {
		sim = WithRateLimit(sim, cfg.RateLimit, cfg.Burst)
	}
	if cfg.Breaker.Enabled {
		sim = WithBreaker(sim, BreakerSettings{
			Name:                cfg.Name,
			ConsecutiveFailures: cfg.Breaker.ConsecutiveFailures,
			OpenTimeout:         cfg.Breaker.GetOpenTimeout(),
			HalfOpenRequests:    cfg.Breaker.HalfOpenRequests,
		})
	}

	log.Info().
		Str("simulator", cfg.Name).
		Float64("rate_limit", cfg.RateLimit).
		Bool("breaker", cfg.Breaker.Enabled).
		Msg("Simulator configured")

	return sim, nil
}
