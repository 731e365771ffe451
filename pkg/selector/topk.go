package selector

import (
	"fmt"
	"sync"

	"github.com/google/btree"
)

const btreeDegree = 8

// ============================================================================
// TOP-K BY COST
// ============================================================================

type bucket struct {
	rating  float64
	members []*Strategy
}

// TopKByCost keeps the capacity highest-rated strategies. Equal ratings share
// a bucket; when over capacity the most recently added member of the
// lowest-rated bucket is evicted.
type TopKByCost struct {
	mu       sync.Mutex
	buckets  *btree.BTreeG[*bucket]
	count    int
	capacity int
}

// NewTopKByCost creates a selector holding at most capacity strategies
func NewTopKByCost(capacity int) (*TopKByCost, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("selector capacity must be positive, got %d", capacity)
	}
	return &TopKByCost{
		buckets: btree.NewG(btreeDegree, func(a, b *bucket) bool {
			return a.rating < b.rating
		}),
		capacity: capacity,
	}, nil
}

func (t *TopKByCost) Add(s *Strategy) []*Strategy {
	t.mu.Lock()
	defer t.mu.Unlock()

	b, ok := t.buckets.Get(&bucket{rating: s.rating})
	if !ok {
		b = &bucket{rating: s.rating}
		t.buckets.ReplaceOrInsert(b)
	}
	b.members = append(b.members, s)
	t.count++

	if t.count <= t.capacity {
		return nil
	}

	worst, _ := t.buckets.Min()
	last := len(worst.members) - 1
	evicted := worst.members[last]
	worst.members[last] = nil
	worst.members = worst.members[:last]
	if len(worst.members) == 0 {
		t.buckets.Delete(worst)
	}
	t.count--

	return []*Strategy{evicted}
}

func (t *TopKByCost) Remove(s *Strategy) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	b, ok := t.buckets.Get(&bucket{rating: s.rating})
	if !ok {
		return false
	}
	for i, m := range b.members {
		if m != s {
			continue
		}
		b.members = append(b.members[:i], b.members[i+1:]...)
		if len(b.members) == 0 {
			t.buckets.Delete(b)
		}
		t.count--
		return true
	}
	return false
}

func (t *TopKByCost) Snapshot() []*Strategy {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*Strategy, 0, t.count)
	t.buckets.Descend(func(b *bucket) bool {
		out = append(out, b.members...)
		return true
	})
	return out
}

func (t *TopKByCost) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

func (t *TopKByCost) Capacity() int {
	return t.capacity
}

// ============================================================================
// TOP-K BY COMPARATOR
// ============================================================================

// TopKByComparator keeps strategies ordered by a metrics comparator.
// Strategies equivalent to a resident one are rejected; when over capacity
// the comparator-maximal (worst) strategy is evicted.
type TopKByComparator struct {
	mu       sync.Mutex
	set      *btree.BTreeG[*Strategy]
	capacity int
}

// NewTopKByComparator creates a comparator-ordered selector
func NewTopKByComparator(capacity int, cmp Comparator) (*TopKByComparator, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("selector capacity must be positive, got %d", capacity)
	}
	if cmp == nil {
		return nil, fmt.Errorf("comparator is required")
	}
	return &TopKByComparator{
		set: btree.NewG(btreeDegree, func(a, b *Strategy) bool {
			return cmp(a.metrics, b.metrics) < 0
		}),
		capacity: capacity,
	}, nil
}

func (t *TopKByComparator) Add(s *Strategy) []*Strategy {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.set.Has(s) {
		return []*Strategy{s}
	}
	t.set.ReplaceOrInsert(s)

	if t.set.Len() <= t.capacity {
		return nil
	}
	worst, _ := t.set.DeleteMax()
	return []*Strategy{worst}
}

func (t *TopKByComparator) Remove(s *Strategy) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	resident, ok := t.set.Get(s)
	if !ok || resident != s {
		return false
	}
	t.set.Delete(s)
	return true
}

func (t *TopKByComparator) Snapshot() []*Strategy {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*Strategy, 0, t.set.Len())
	t.set.Ascend(func(s *Strategy) bool {
		out = append(out, s)
		return true
	})
	return out
}

func (t *TopKByComparator) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.set.Len()
}

func (t *TopKByComparator) Capacity() int {
	return t.capacity
}
