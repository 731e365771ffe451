package simulator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/ajitpratap0/paramsearch/pkg/paramspace"
	"github.com/ajitpratap0/paramsearch/pkg/search"
	"github.com/ajitpratap0/paramsearch/pkg/selector"
)

// Breaker defaults
const (
	DefaultConsecutiveFailures = 5
	DefaultOpenTimeout         = 30 * time.Second
	DefaultHalfOpenRequests    = 1
)

var (
	breakerState    *prometheus.GaugeVec
	breakerRejected *prometheus.CounterVec
	breakerOnce     sync.Once
)

func initBreakerMetrics() {
	breakerOnce.Do(func() {
		breakerState = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "paramsearch_simulator_breaker_state",
				Help: "Simulator circuit breaker state (0=closed, 1=open, 2=half_open)",
			},
			[]string{"simulator"},
		)
		breakerRejected = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paramsearch_simulator_breaker_rejected_total",
				Help: "Simulations rejected while the circuit breaker was open",
			},
			[]string{"simulator"},
		)
	})
}

// BreakerSettings configures a circuit breaker around a simulator
type BreakerSettings struct {
	Name                string
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
	HalfOpenRequests    uint32
}

// Breaker fails simulations fast once the wrapped simulator keeps failing.
// Invalid parameters and cancellations do not count as failures.
type Breaker struct {
	name string
	next search.Simulator
	cb   *gobreaker.CircuitBreaker
}

// WithBreaker wraps next in a circuit breaker
func WithBreaker(next search.Simulator, settings BreakerSettings) *Breaker {
	initBreakerMetrics()

	if settings.ConsecutiveFailures == 0 {
		settings.ConsecutiveFailures = DefaultConsecutiveFailures
	}
	if settings.OpenTimeout <= 0 {
		settings.OpenTimeout = DefaultOpenTimeout
	}
	if settings.HalfOpenRequests == 0 {
		settings.HalfOpenRequests = DefaultHalfOpenRequests
	}

	b := &Breaker{name: settings.Name, next: next}
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: settings.HalfOpenRequests,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrInvalidParameters) ||
				errors.Is(err, context.Canceled) ||
				errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("simulator", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Simulator circuit breaker changed state")
			b.updateMetrics(to)
		},
	})
	b.updateMetrics(b.cb.State())

	return b
}

// Simulate implements search.Simulator
func (b *Breaker) Simulate(ctx context.Context, cfg paramspace.Configuration) (selector.Metrics, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Simulate(ctx, cfg)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			breakerRejected.WithLabelValues(b.name).Inc()
			return nil, fmt.Errorf("simulator %s unavailable: %w", b.name, err)
		}
		return nil, err
	}

	metrics, _ := result.(selector.Metrics)
	return metrics, nil
}

// State returns the current breaker state
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

func (b *Breaker) updateMetrics(state gobreaker.State) {
	var value float64
	switch state {
	case gobreaker.StateClosed:
		value = 0
	case gobreaker.StateOpen:
		value = 1
	case gobreaker.StateHalfOpen:
		value = 2
	}
	breakerState.WithLabelValues(b.name).Set(value)
}
