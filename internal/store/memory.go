package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps runs in process memory
type MemoryStore struct {
	mu         sync.RWMutex
	runs       map[string]Run
	strategies map[string][]StrategyRecord
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:       make(map[string]Run),
		strategies: make(map[string][]StrategyRecord),
	}
}

func (m *MemoryStore) Init(context.Context) error { return nil }
func (m *MemoryStore) Close() error               { return nil }

func (m *MemoryStore) SaveRun(_ context.Context, run Run, strategies []StrategyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.runs[run.ID] = run
	m.strategies[run.ID] = append([]StrategyRecord(nil), strategies...)
	return nil
}

func (m *MemoryStore) GetRun(_ context.Context, id string) (Run, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, ok := m.runs[id]
	return run, ok, nil
}

// ListRuns returns the most recently finished runs first
func (m *MemoryStore) ListRuns(_ context.Context, limit int) ([]Run, error) {
	m.mu.RLock()
	runs := make([]Run, 0, len(m.runs))
	for _, r := range m.runs {
		runs = append(runs, r)
	}
	m.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].FinishedAt.After(runs[j].FinishedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (m *MemoryStore) ListStrategies(_ context.Context, runID string) ([]StrategyRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]StrategyRecord(nil), m.strategies[runID]...), nil
}
