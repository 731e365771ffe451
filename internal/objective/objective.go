// Package objective names the cost functions and comparators a search can
// rank strategies by.
package objective

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ajitpratap0/paramsearch/pkg/selector"
)

// Metric names produced by the built-in simulators
const (
	MetricTotalReturnPct = "total_return_pct"
	MetricCAGR           = "cagr"
	MetricMaxDrawdownPct = "max_drawdown_pct"
	MetricVolatility     = "volatility"
	MetricSharpeRatio    = "sharpe_ratio"
	MetricSortinoRatio   = "sortino_ratio"
	MetricCalmarRatio    = "calmar_ratio"
	MetricTotalTrades    = "total_trades"
	MetricWinRate        = "win_rate"
	MetricProfitFactor   = "profit_factor"
	MetricExpectancy     = "expectancy"
	MetricScore          = "score"
)

// MetricPrefix selects a single metric verbatim, e.g. "metric:expectancy"
const MetricPrefix = "metric:"

var (
	ErrObjectiveNotFound  = errors.New("objective not found")
	ErrComparatorNotFound = errors.New("comparator not found")
)

// ============================================================================
// COST FUNCTIONS
// ============================================================================

var costs = map[string]selector.CostFunc{
	"sharpe_ratio":  Metric(MetricSharpeRatio),
	"sortino_ratio": Metric(MetricSortinoRatio),
	"calmar_ratio":  Metric(MetricCalmarRatio),
	"total_return":  Metric(MetricTotalReturnPct),
	"profit_factor": Metric(MetricProfitFactor),
	"score":         Metric(MetricScore),
	"min_drawdown": func(m selector.Metrics) float64 {
		return -m[MetricMaxDrawdownPct]
	},
	// 40% Sharpe, 30% win rate, 30% Calmar
	"balanced": func(m selector.Metrics) float64 {
		sharpe := math.Max(0, m[MetricSharpeRatio])
		winRate := m[MetricWinRate] / 100.0
		calmar := math.Max(0, m[MetricCalmarRatio])
		return 0.4*sharpe + 0.3*winRate + 0.3*calmar
	},
}

// Metric rates strategies by one metric; a missing metric rates NaN, which
// ranks below everything.
func Metric(name string) selector.CostFunc {
	return func(m selector.Metrics) float64 {
		v, ok := m[name]
		if !ok {
			return math.NaN()
		}
		return v
	}
}

// Cost looks up a cost function by name
func Cost(name string) (selector.CostFunc, error) {
	if metric, ok := strings.CutPrefix(name, MetricPrefix); ok && metric != "" {
		return Metric(metric), nil
	}
	fn, ok := costs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrObjectiveNotFound, name, strings.Join(CostNames(), ", "))
	}
	return fn, nil
}

// CostNames lists the registered cost functions
func CostNames() []string {
	return sortedNames(costs)
}

// ============================================================================
// COMPARATORS
// ============================================================================

// Key is one level of a lexicographic comparator
type Key struct {
	Metric string
	// HigherIsBetter ranks larger values first
	HigherIsBetter bool
}

// Lexicographic compares by the first key, falling back to the next on ties
func Lexicographic(keys ...Key) selector.Comparator {
	return func(a, b selector.Metrics) int {
		for _, k := range keys {
			c := cmp.Compare(a[k.Metric], b[k.Metric])
			if k.HigherIsBetter {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	}
}

var comparators = map[string]selector.Comparator{
	"sharpe_then_drawdown": Lexicographic(
		Key{Metric: MetricSharpeRatio, HigherIsBetter: true},
		Key{Metric: MetricMaxDrawdownPct},
	),
	"return_then_drawdown": Lexicographic(
		Key{Metric: MetricTotalReturnPct, HigherIsBetter: true},
		Key{Metric: MetricMaxDrawdownPct},
	),
	"calmar_then_trades": Lexicographic(
		Key{Metric: MetricCalmarRatio, HigherIsBetter: true},
		Key{Metric: MetricTotalTrades, HigherIsBetter: true},
	),
	"score": Lexicographic(Key{Metric: MetricScore, HigherIsBetter: true}),
}

// Comparator looks up a comparator by name
func Comparator(name string) (selector.Comparator, error) {
	c, ok := comparators[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrComparatorNotFound, name, strings.Join(ComparatorNames(), ", "))
	}
	return c, nil
}

// ComparatorNames lists the registered comparators
func ComparatorNames() []string {
	return sortedNames(comparators)
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
