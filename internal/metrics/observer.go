package metrics

import (
	"math"
	"time"

	"github.com/ajitpratap0/paramsearch/pkg/search"
	"github.com/ajitpratap0/paramsearch/pkg/selector"
)

// Observer records search events into the Prometheus collectors
type Observer struct{}

var _ search.Observer = Observer{}

// NewObserver returns an observer feeding the package collectors
func NewObserver() Observer {
	return Observer{}
}

func (Observer) SearchStarted(_ string, mode search.Mode, _ int64) {
	SearchesActive.WithLabelValues(string(mode)).Inc()
	SearchProgress.WithLabelValues(string(mode)).Set(0)
}

func (Observer) StrategySimulated(_ string, mode search.Mode, _ *selector.Strategy, elapsed time.Duration, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	SimulationsTotal.WithLabelValues(string(mode), result).Inc()
	SimulationDuration.WithLabelValues(string(mode)).Observe(float64(elapsed.Microseconds()) / 1000.0)
}

func (Observer) DuplicateSkipped(_ string, mode search.Mode) {
	DuplicatesSkipped.WithLabelValues(string(mode)).Inc()
}

func (Observer) ProgressUpdated(_ string, mode search.Mode, p search.Progress, best *selector.Strategy) {
	SearchProgress.WithLabelValues(string(mode)).Set(p.Fraction())
	if best != nil && !math.IsNaN(best.Rating()) {
		BestRating.WithLabelValues(string(mode)).Set(best.Rating())
	}
}

func (Observer) SearchFinished(_ string, mode search.Mode, status search.Status, resident int) {
	SearchesActive.WithLabelValues(string(mode)).Dec()
	SearchesFinished.WithLabelValues(string(mode), status.String()).Inc()
	ResidentStrategies.WithLabelValues(string(mode)).Set(float64(resident))
}
