package search

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/paramsearch/pkg/paramspace"
	"github.com/ajitpratap0/paramsearch/pkg/selector"
)

var (
	_ Search = (*GridSearch)(nil)
	_ Search = (*GeneticSearch)(nil)
)

// GridConfig tunes a grid search
type GridConfig struct {
	Threads  int
	Seen     SeenSet // defaults to a fresh MemorySeenSet
	Observer Observer
}

// GridSearch walks every combination of an enumerator with a fixed pool of
// workers sharing one cursor.
type GridSearch struct {
	*handle

	enumMu sync.Mutex
	enum   paramspace.Enumerator
	seen   SeenSet

	logEvery int64
}

// RunGridSearch starts a grid search and returns immediately. The enumerator
// is owned by the search until it terminates.
func RunGridSearch(ctx context.Context, enum paramspace.Enumerator, sel selector.Selector, sim Simulator, cost selector.CostFunc, cfg GridConfig) (*GridSearch, error) {
	if enum == nil || sel == nil || sim == nil || cost == nil {
		return nil, fmt.Errorf("grid search requires an enumerator, selector, simulator and cost function")
	}
	seen := cfg.Seen
	if seen == nil {
		seen = NewMemorySeenSet()
	}
	threads := threadsOrDefault(cfg.Threads)

	s := &GridSearch{
		handle: newHandle(ModeGrid, sel, sim, cost, cfg.Observer),
		enum:   enum,
		seen:   seen,
	}
	total := enum.Size()
	s.total.Store(total)
	s.logEvery = max(total/10, 1)

	s.logger.Info().
		Int64("combinations", total).
		Int("threads", threads).
		Int("capacity", sel.Capacity()).
		Msg("Starting grid search")
	s.observer.SearchStarted(s.id, s.mode, total)

	var g errgroup.Group
	for w := 0; w < threads; w++ {
		g.Go(func() error {
			s.work(ctx)
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		if s.stopRequested(ctx) && s.done.Load() < total {
			s.finish(StatusStopped)
			return
		}
		s.finish(StatusCompleted)
	}()

	return s, nil
}

func (s *GridSearch) work(ctx context.Context) {
	for !s.stopRequested(ctx) {
		cfg, ok := s.next()
		if !ok {
			return
		}

		fresh, err := s.seen.Add(ctx, cfg.Signature())
		if err != nil {
			s.logger.Warn().Err(err).Msg("Seen-set unavailable, simulating anyway")
			fresh = true
		}
		if fresh {
			s.evaluate(ctx, cfg)
		} else {
			s.observer.DuplicateSkipped(s.id, s.mode)
		}

		s.advance()
	}
}

// next reads the current combination and moves the shared cursor in one
// critical section.
func (s *GridSearch) next() (paramspace.Configuration, bool) {
	s.enumMu.Lock()
	defer s.enumMu.Unlock()

	if !s.enum.HasNext() {
		return paramspace.Configuration{}, false
	}
	cfg := s.enum.Current()
	s.enum.Advance()
	return cfg, true
}

func (s *GridSearch) advance() {
	done := s.done.Add(1)
	p := Progress{Done: done, Total: s.total.Load()}

	if done%s.logEvery == 0 || done == p.Total {
		s.logger.Info().
			Int64("completed", done).
			Int64("total", p.Total).
			Msgf("Grid search progress: %.1f%%", p.Fraction()*100)
	}
	s.publishProgress(p)
}
