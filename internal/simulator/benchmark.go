package simulator

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/ajitpratap0/paramsearch/internal/objective"
	"github.com/ajitpratap0/paramsearch/pkg/paramspace"
	"github.com/ajitpratap0/paramsearch/pkg/selector"
)

// Benchmark rates a configuration with the negated Rastrigin function over
// its numeric parameters. The global optimum is 0 with every parameter at 0,
// surrounded by a regular grid of local optima, which makes it a useful
// smoke test for both search modes without market data.
type Benchmark struct{}

// NewBenchmark creates the analytic benchmark simulator
func NewBenchmark() *Benchmark {
	return &Benchmark{}
}

// Simulate implements search.Simulator
func (b *Benchmark) Simulate(ctx context.Context, cfg paramspace.Configuration) (selector.Metrics, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ints, reals := cfg.Ints(), cfg.Reals()
	values := make([]float64, 0, len(ints)+len(reals))
	for _, name := range slices.Sorted(maps.Keys(ints)) {
		values = append(values, float64(ints[name]))
	}
	for _, name := range slices.Sorted(maps.Keys(reals)) {
		values = append(values, reals[name])
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: benchmark needs at least one numeric parameter", ErrInvalidParameters)
	}

	return selector.Metrics{objective.MetricScore: -rastrigin(values)}, nil
}

func rastrigin(xs []float64) float64 {
	sum := 10.0 * float64(len(xs))
	for _, x := range xs {
		sum += x*x - 10.0*math.Cos(2*math.Pi*x)
	}
	return sum
}
