package simulator

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/ajitpratap0/paramsearch/pkg/paramspace"
	"github.com/ajitpratap0/paramsearch/pkg/search"
	"github.com/ajitpratap0/paramsearch/pkg/selector"
)

// RateLimited caps how often the wrapped simulator is called. Callers block
// for a token; a cancelled context surfaces as a simulation error.
type RateLimited struct {
	next    search.Simulator
	limiter *rate.Limiter
}

// WithRateLimit allows perSecond simulations per second with the given burst
func WithRateLimit(next search.Simulator, perSecond float64, burst int) *RateLimited {
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Simulate implements search.Simulator
func (r *RateLimited) Simulate(ctx context.Context, cfg paramspace.Configuration) (selector.Metrics, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	return r.next.Simulate(ctx, cfg)
}
