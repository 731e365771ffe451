package metrics

import (
	"context"
	"sync/atomic"

	"github.com/ajitpratap0/paramsearch/pkg/search"
)

// InstrumentedSeenSet counts seen-set outcomes and tracks the duplicate
// hit rate of the wrapped set.
type InstrumentedSeenSet struct {
	next   search.SeenSet
	hits   atomic.Int64
	misses atomic.Int64
}

var _ search.SeenSet = (*InstrumentedSeenSet)(nil)

// NewInstrumentedSeenSet wraps next
func NewInstrumentedSeenSet(next search.SeenSet) *InstrumentedSeenSet {
	return &InstrumentedSeenSet{next: next}
}

// Add forwards to the wrapped set and records the outcome
func (s *InstrumentedSeenSet) Add(ctx context.Context, signature string) (bool, error) {
	added, err := s.next.Add(ctx, signature)
	switch {
	case err != nil:
		SeenSetOperations.WithLabelValues(SeenError).Inc()
		return added, err
	case added:
		SeenSetOperations.WithLabelValues(SeenNew).Inc()
		s.misses.Add(1)
	default:
		SeenSetOperations.WithLabelValues(SeenDuplicate).Inc()
		s.hits.Add(1)
	}
	s.updateHitRate()
	return added, nil
}

// HitRate returns the share of successful lookups that were duplicates
func (s *InstrumentedSeenSet) HitRate() float64 {
	hits, misses := s.hits.Load(), s.misses.Load()
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}

// ResetStats resets hit/miss statistics
func (s *InstrumentedSeenSet) ResetStats() {
	s.hits.Store(0)
	s.misses.Store(0)
	SeenSetHitRate.Set(0)
}

func (s *InstrumentedSeenSet) updateHitRate() {
	SeenSetHitRate.Set(s.HitRate())
}
