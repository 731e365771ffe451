// Package selector keeps the best simulated strategies of a search under a
// bounded memory budget.
package selector

import (
	"math"

	"github.com/ajitpratap0/paramsearch/pkg/paramspace"
)

// Metrics is the named numeric output of one simulation, e.g.
// {"sharpe_ratio": 1.4, "max_drawdown_pct": 12}.
type Metrics map[string]float64

// Clone returns an independent copy
func (m Metrics) Clone() Metrics {
	out := make(Metrics, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// CostFunc rates metrics; higher is better
type CostFunc func(Metrics) float64

// Comparator orders metrics best-first: negative when a ranks ahead of b,
// zero when they are equivalent.
type Comparator func(a, b Metrics) int

// Strategy pairs a configuration with the metrics its simulation produced and
// the rating a cost function assigned to them. Strategies are immutable and
// compared by identity.
type Strategy struct {
	config  paramspace.Configuration
	metrics Metrics
	rating  float64
}

// NewStrategy creates a strategy. A NaN rating ranks below every other rating.
func NewStrategy(config paramspace.Configuration, metrics Metrics, rating float64) *Strategy {
	if math.IsNaN(rating) {
		rating = math.Inf(-1)
	}
	return &Strategy{
		config:  config,
		metrics: metrics.Clone(),
		rating:  rating,
	}
}

// Rate builds a strategy whose rating is cost(metrics)
func Rate(config paramspace.Configuration, metrics Metrics, cost CostFunc) *Strategy {
	return NewStrategy(config, metrics, cost(metrics))
}

func (s *Strategy) Config() paramspace.Configuration { return s.config }
func (s *Strategy) Rating() float64                  { return s.rating }

// Metrics returns a copy of the simulation metrics
func (s *Strategy) Metrics() Metrics {
	return s.metrics.Clone()
}

// Metric returns one named metric
func (s *Strategy) Metric(name string) (float64, bool) {
	v, ok := s.metrics[name]
	return v, ok
}

// Selector is a bounded, concurrency-safe collection of strategies.
type Selector interface {
	// Add inserts s and returns every strategy evicted as a result, which may
	// include s itself when it was rejected.
	Add(s *Strategy) []*Strategy
	Remove(s *Strategy) bool
	// Snapshot returns the resident strategies best-first
	Snapshot() []*Strategy
	Count() int
	Capacity() int
}

// Best returns the top strategy of sel, or nil when it is empty
func Best(sel Selector) *Strategy {
	snap := sel.Snapshot()
	if len(snap) == 0 {
		return nil
	}
	return snap[0]
}
