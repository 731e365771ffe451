package search

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/ajitpratap0/paramsearch/pkg/paramspace"
	"github.com/ajitpratap0/paramsearch/pkg/selector"
)

const (
	// convergenceMinGenerations must be exceeded before a run may converge
	convergenceMinGenerations = 10
	fuzzyTolerance            = 1e-6
)

// GeneticConfig tunes a genetic search
type GeneticConfig struct {
	PopulationSize    int
	MaxGenerations    int
	BestFraction      float64
	CrossoverFraction float64 // of the non-retained members; the rest mutate
	Threads           int
	Observer          Observer
}

// Sizes splits one generation for a selector of the given capacity
func (c GeneticConfig) Sizes(capacity int) (best, crossover, mutation int) {
	best = min(int(c.BestFraction*float64(c.PopulationSize)), capacity)
	crossover = int(float64(c.PopulationSize-best) * c.CrossoverFraction)
	mutation = c.PopulationSize - best - crossover
	return best, crossover, mutation
}

// Validate checks the settings against a selector capacity
func (c GeneticConfig) Validate(capacity int) error {
	var errs paramspace.ValidationErrors

	if c.PopulationSize <= 0 {
		errs = append(errs, paramspace.ValidationError{Field: "population_size", Message: "must be positive"})
	}
	if c.MaxGenerations <= 0 {
		errs = append(errs, paramspace.ValidationError{Field: "max_generations", Message: "must be positive"})
	}
	if c.BestFraction <= 0 || c.BestFraction > 1 {
		errs = append(errs, paramspace.ValidationError{Field: "best_fraction", Message: "must be in (0, 1]"})
	}
	if c.CrossoverFraction < 0 || c.CrossoverFraction > 1 {
		errs = append(errs, paramspace.ValidationError{Field: "crossover_fraction", Message: "must be in [0, 1]"})
	}
	if c.Threads < 0 {
		errs = append(errs, paramspace.ValidationError{Field: "threads", Message: "must not be negative"})
	}
	if len(errs) == 0 {
		if best, _, _ := c.Sizes(capacity); best <= 0 {
			errs = append(errs, paramspace.ValidationError{
				Field:   "best_fraction",
				Message: fmt.Sprintf("retains no strategies (population %d, capacity %d)", c.PopulationSize, capacity),
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// GeneticSearch evolves a population generation by generation. No work of
// generation N+1 is dispatched before every task of generation N finished.
type GeneticSearch struct {
	*handle

	gen *paramspace.Generator
	cfg GeneticConfig

	sizeOfBest    int
	crossoverSize int
	mutationSize  int

	pool *pool.Pool
}

// RunGeneticSearch validates cfg and starts the search in the background
func RunGeneticSearch(ctx context.Context, gen *paramspace.Generator, sel selector.Selector, sim Simulator, cost selector.CostFunc, cfg GeneticConfig) (*GeneticSearch, error) {
	if gen == nil || sel == nil || sim == nil || cost == nil {
		return nil, fmt.Errorf("genetic search requires a generator, selector, simulator and cost function")
	}
	if err := cfg.Validate(sel.Capacity()); err != nil {
		return nil, fmt.Errorf("invalid genetic search config: %w", err)
	}
	threads := threadsOrDefault(cfg.Threads)

	s := &GeneticSearch{
		handle: newHandle(ModeGenetic, sel, sim, cost, cfg.Observer),
		gen:    gen,
		cfg:    cfg,
		pool:   pool.New().WithMaxGoroutines(threads),
	}
	s.sizeOfBest, s.crossoverSize, s.mutationSize = cfg.Sizes(sel.Capacity())
	s.total.Store(int64(cfg.MaxGenerations))

	s.logger.Info().
		Int("population", cfg.PopulationSize).
		Int("generations", cfg.MaxGenerations).
		Int("best", s.sizeOfBest).
		Int("crossover", s.crossoverSize).
		Int("mutation", s.mutationSize).
		Int("threads", threads).
		Int64("seed", gen.Seed()).
		Msg("Starting genetic search")
	s.observer.SearchStarted(s.id, s.mode, int64(cfg.MaxGenerations))

	go func() {
		status := s.run(ctx)
		s.pool.Wait()
		s.finish(status)
	}()

	return s, nil
}

func (s *GeneticSearch) run(ctx context.Context) Status {
	var (
		population  []*selector.Strategy
		prevCostSum = math.NaN()
		maxCostSum  = math.Inf(-1)
	)

	tasks := make([]paramspace.Configuration, s.cfg.PopulationSize)
	for i := range tasks {
		tasks[i] = s.gen.GenerateRandom()
	}

	for generation := 1; ; generation++ {
		if s.stopRequested(ctx) {
			return StatusStopped
		}

		var retained []*selector.Strategy
		if generation > 1 {
			retained = s.retained()
			tasks = s.breed(population, len(retained))
		}

		population = append(retained, s.simulateGeneration(ctx, tasks)...)
		sortPopulation(population)

		costSum := finiteCostSum(population)

		s.done.Store(int64(generation))
		s.logGeneration(generation, population, costSum)
		s.publishProgress(Progress{Done: int64(generation), Total: int64(s.cfg.MaxGenerations)})

		if generation > convergenceMinGenerations && fuzzyEqual(costSum, prevCostSum) && fuzzyEqual(costSum, maxCostSum) {
			s.logger.Info().Int("generation", generation).Float64("cost_sum", costSum).Msg("Population converged")
			return StatusConverged
		}
		prevCostSum = costSum
		if !math.IsNaN(costSum) {
			maxCostSum = math.Max(maxCostSum, costSum)
		}

		if generation >= s.cfg.MaxGenerations {
			return StatusCompleted
		}
	}
}

// retained returns the selector's top sizeOfBest strategies
func (s *GeneticSearch) retained() []*selector.Strategy {
	snap := s.sel.Snapshot()
	if len(snap) > s.sizeOfBest {
		snap = snap[:s.sizeOfBest]
	}
	return snap
}

// breed builds the configurations to simulate next: crossovers of two random
// parents, mutations of one, and random fill up to the population size.
func (s *GeneticSearch) breed(population []*selector.Strategy, retained int) []paramspace.Configuration {
	want := s.cfg.PopulationSize - retained
	tasks := make([]paramspace.Configuration, 0, want)
	rng := s.gen.Rand()

	if len(population) > 0 {
		for i := 0; i < s.crossoverSize && len(tasks) < want; i++ {
			left := population[rng.Intn(len(population))].Config()
			right := population[rng.Intn(len(population))].Config()
			tasks = append(tasks, s.gen.Merge(left, right))
		}
		for i := 0; i < s.mutationSize && len(tasks) < want; i++ {
			parent := population[rng.Intn(len(population))].Config()
			if child, ok := s.gen.Mutate(parent); ok {
				tasks = append(tasks, child)
			}
		}
	}

	for len(tasks) < want {
		tasks = append(tasks, s.gen.GenerateRandom())
	}
	return tasks
}

// simulateGeneration dispatches every task to the pool and blocks until each
// has finished, successfully or not.
func (s *GeneticSearch) simulateGeneration(ctx context.Context, tasks []paramspace.Configuration) []*selector.Strategy {
	var (
		barrier sync.WaitGroup
		mu      sync.Mutex
		results = make([]*selector.Strategy, 0, len(tasks))
	)

	barrier.Add(len(tasks))
	for _, cfg := range tasks {
		s.pool.Go(func() {
			defer barrier.Done()
			if st := s.evaluate(ctx, cfg); st != nil {
				mu.Lock()
				results = append(results, st)
				mu.Unlock()
			}
		})
	}
	barrier.Wait()

	return results
}

func (s *GeneticSearch) logGeneration(generation int, population []*selector.Strategy, costSum float64) {
	ev := s.logger.Info().
		Int("generation", generation).
		Int("total", s.cfg.MaxGenerations).
		Int("population", len(population)).
		Float64("cost_sum", costSum)
	if len(population) > 0 {
		ev = ev.
			Float64("best_score", population[0].Rating()).
			Float64("worst_score", population[len(population)-1].Rating())
	}
	ev.Msg("Generation complete")
}

// sortPopulation orders by rating, best first, breaking ties by signature so a
// deterministic simulator and seed reproduce the same run.
func sortPopulation(population []*selector.Strategy) {
	sort.SliceStable(population, func(i, j int) bool {
		a, b := population[i], population[j]
		if a.Rating() != b.Rating() {
			return a.Rating() > b.Rating()
		}
		return a.Config().Signature() < b.Config().Signature()
	})
}

// fuzzyEqual compares with a tolerance relative to the larger magnitude
// finiteCostSum sums the finite ratings of population, or returns NaN when
// there are none. Strategies whose cost was NaN carry a -Inf rating.
func finiteCostSum(population []*selector.Strategy) float64 {
	sum, n := 0.0, 0
	for _, p := range population {
		if r := p.Rating(); !math.IsInf(r, 0) && !math.IsNaN(r) {
			sum += r
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum
}

func fuzzyEqual(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) || math.IsInf(a, 0) || math.IsInf(b, 0) {
		return false
	}
	if a == b {
		return true
	}
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) <= fuzzyTolerance*scale
}
