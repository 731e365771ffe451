package search

import (
	"context"
	"sync"
)

// SeenSet records configuration signatures already dispatched by a grid
// search so each combination is simulated once.
type SeenSet interface {
	// Add records signature and reports whether it was new.
	Add(ctx context.Context, signature string) (bool, error)
}

// MemorySeenSet is a process-local SeenSet
type MemorySeenSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemorySeenSet() *MemorySeenSet {
	return &MemorySeenSet{seen: make(map[string]struct{})}
}

func (m *MemorySeenSet) Add(_ context.Context, signature string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.seen[signature]; ok {
		return false, nil
	}
	m.seen[signature] = struct{}{}
	return true, nil
}

func (m *MemorySeenSet) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}
