// Package search runs grid and genetic searches over a parameter space,
// simulating candidate configurations concurrently and feeding the results
// into a bounded selector.
package search

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/paramsearch/pkg/paramspace"
	"github.com/ajitpratap0/paramsearch/pkg/selector"
)

// DefaultThreads is the worker count used when none is configured
const DefaultThreads = 4

// Simulator evaluates one configuration. Errors are per-task: they are logged
// and skipped, never aborting the search.
type Simulator interface {
	Simulate(ctx context.Context, cfg paramspace.Configuration) (selector.Metrics, error)
}

// SimulatorFunc adapts a function to the Simulator interface
type SimulatorFunc func(ctx context.Context, cfg paramspace.Configuration) (selector.Metrics, error)

func (f SimulatorFunc) Simulate(ctx context.Context, cfg paramspace.Configuration) (selector.Metrics, error) {
	return f(ctx, cfg)
}

// Mode identifies the search algorithm
type Mode string

const (
	ModeGrid    Mode = "grid"
	ModeGenetic Mode = "genetic"
)

// Status is the lifecycle state of a search
type Status int32

const (
	StatusRunning Status = iota
	StatusCompleted
	StatusStopped
	StatusConverged
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusStopped:
		return "stopped"
	case StatusConverged:
		return "converged"
	default:
		return fmt.Sprintf("status(%d)", int32(s))
	}
}

// Terminal reports whether the search has finished
func (s Status) Terminal() bool {
	return s != StatusRunning
}

// Progress counts processed combinations (grid) or generations (genetic)
type Progress struct {
	Done  int64 `json:"done"`
	Total int64 `json:"total"`
}

// Fraction is Done/Total in [0, 1]; zero when Total is unknown
func (p Progress) Fraction() float64 {
	if p.Total <= 0 {
		return 0
	}
	return float64(p.Done) / float64(p.Total)
}

// ProgressFunc receives progress updates. It may be called concurrently from
// worker goroutines.
type ProgressFunc func(searchID string, p Progress)

// Search is the handle shared by both orchestrators
type Search interface {
	ID() string
	Mode() Mode
	// Stop requests a cooperative stop; in-flight simulations still complete.
	Stop()
	// Wait blocks until the search terminates and returns its selector.
	Wait() selector.Selector
	// Done is closed once the search terminates.
	Done() <-chan struct{}
	OnProgress(fn ProgressFunc)
	Status() Status
	Progress() Progress
	Selector() selector.Selector
}

// ============================================================================
// OBSERVER
// ============================================================================

// Observer receives lifecycle events from a running search. Implementations
// must be safe for concurrent use.
type Observer interface {
	SearchStarted(id string, mode Mode, total int64)
	StrategySimulated(id string, mode Mode, s *selector.Strategy, elapsed time.Duration, err error)
	DuplicateSkipped(id string, mode Mode)
	ProgressUpdated(id string, mode Mode, p Progress, best *selector.Strategy)
	SearchFinished(id string, mode Mode, status Status, resident int)
}

// NopObserver ignores every event. Embed it to implement a subset of Observer.
type NopObserver struct{}

func (NopObserver) SearchStarted(string, Mode, int64)                                          {}
func (NopObserver) StrategySimulated(string, Mode, *selector.Strategy, time.Duration, error) {}
func (NopObserver) DuplicateSkipped(string, Mode)                                              {}
func (NopObserver) ProgressUpdated(string, Mode, Progress, *selector.Strategy)                 {}
func (NopObserver) SearchFinished(string, Mode, Status, int)                                   {}

// Observers fans every event out to each observer in order
type Observers []Observer

func (o Observers) SearchStarted(id string, mode Mode, total int64) {
	for _, ob := range o {
		ob.SearchStarted(id, mode, total)
	}
}

func (o Observers) StrategySimulated(id string, mode Mode, s *selector.Strategy, elapsed time.Duration, err error) {
	for _, ob := range o {
		ob.StrategySimulated(id, mode, s, elapsed, err)
	}
}

func (o Observers) DuplicateSkipped(id string, mode Mode) {
	for _, ob := range o {
		ob.DuplicateSkipped(id, mode)
	}
}

func (o Observers) ProgressUpdated(id string, mode Mode, p Progress, best *selector.Strategy) {
	for _, ob := range o {
		ob.ProgressUpdated(id, mode, p, best)
	}
}

func (o Observers) SearchFinished(id string, mode Mode, status Status, resident int) {
	for _, ob := range o {
		ob.SearchFinished(id, mode, status, resident)
	}
}

// ============================================================================
// SHARED HANDLE
// ============================================================================

// handle carries the state both orchestrators expose through Search
type handle struct {
	id       string
	mode     Mode
	sel      selector.Selector
	sim      Simulator
	cost     selector.CostFunc
	observer Observer
	logger   zerolog.Logger

	stopped atomic.Bool
	status  atomic.Int32
	done    atomic.Int64
	total   atomic.Int64

	mu        sync.Mutex
	listeners []ProgressFunc

	finished chan struct{}
}

func newHandle(mode Mode, sel selector.Selector, sim Simulator, cost selector.CostFunc, observer Observer) *handle {
	if observer == nil {
		observer = NopObserver{}
	}
	id := uuid.New().String()
	return &handle{
		id:       id,
		mode:     mode,
		sel:      sel,
		sim:      sim,
		cost:     cost,
		observer: observer,
		logger:   log.With().Str("search_id", id).Str("mode", string(mode)).Logger(),
		finished: make(chan struct{}),
	}
}

func (h *handle) ID() string                  { return h.id }
func (h *handle) Mode() Mode                  { return h.mode }
func (h *handle) Stop()                       { h.stopped.Store(true) }
func (h *handle) Done() <-chan struct{}       { return h.finished }
func (h *handle) Status() Status              { return Status(h.status.Load()) }
func (h *handle) Selector() selector.Selector { return h.sel }

func (h *handle) Wait() selector.Selector {
	<-h.finished
	return h.sel
}

func (h *handle) Progress() Progress {
	return Progress{Done: h.done.Load(), Total: h.total.Load()}
}

func (h *handle) OnProgress(fn ProgressFunc) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	h.listeners = append(h.listeners, fn)
	h.mu.Unlock()
}

// stopRequested reports an explicit Stop or a cancelled context
func (h *handle) stopRequested(ctx context.Context) bool {
	return h.stopped.Load() || ctx.Err() != nil
}

func (h *handle) publishProgress(p Progress) {
	h.mu.Lock()
	listeners := append([]ProgressFunc(nil), h.listeners...)
	h.mu.Unlock()

	for _, fn := range listeners {
		fn(h.id, p)
	}
	h.observer.ProgressUpdated(h.id, h.mode, p, selector.Best(h.sel))
}

// evaluate simulates cfg and adds the rated strategy to the selector. It
// returns nil when the simulation fails or panics.
func (h *handle) evaluate(ctx context.Context, cfg paramspace.Configuration) (s *selector.Strategy) {
	start := time.Now()
	metrics, err := h.simulate(ctx, cfg)
	elapsed := time.Since(start)

	if err != nil {
		h.logger.Warn().
			Err(err).
			Str("config", cfg.Signature()).
			Msg("Simulation failed")
		h.observer.StrategySimulated(h.id, h.mode, nil, elapsed, err)
		return nil
	}

	s = selector.Rate(cfg, metrics, h.cost)
	if evicted := h.sel.Add(s); len(evicted) > 0 {
		h.logger.Debug().
			Int("evicted", len(evicted)).
			Float64("rating", s.Rating()).
			Msg("Selector evicted strategies")
	}
	h.observer.StrategySimulated(h.id, h.mode, s, elapsed, nil)
	return s
}

func (h *handle) simulate(ctx context.Context, cfg paramspace.Configuration) (metrics selector.Metrics, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("simulator panic: %v", r)
		}
	}()
	return h.sim.Simulate(ctx, cfg)
}

func (h *handle) finish(status Status) {
	h.status.Store(int32(status))
	h.observer.SearchFinished(h.id, h.mode, status, h.sel.Count())

	ev := h.logger.Info().
		Str("status", status.String()).
		Int64("done", h.done.Load()).
		Int64("total", h.total.Load()).
		Int("resident", h.sel.Count())
	if best := selector.Best(h.sel); best != nil {
		ev = ev.Float64("best_rating", best.Rating())
	}
	ev.Msg("Search finished")

	close(h.finished)
}

func threadsOrDefault(n int) int {
	if n <= 0 {
		return DefaultThreads
	}
	return n
}
