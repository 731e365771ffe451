package api

import (
	"sync"
	"time"

	"github.com/ajitpratap0/paramsearch/pkg/search"
)

// TrackedSearch is a search registered with the API plus the names it was
// started with
type TrackedSearch struct {
	Search    search.Search
	Simulator string
	Objective string
	StartedAt time.Time
}

// Tracker holds the searches this process started, in start order
type Tracker struct {
	mu       sync.RWMutex
	searches map[string]TrackedSearch
	order    []string
}

func NewTracker() *Tracker {
	return &Tracker{searches: make(map[string]TrackedSearch)}
}

// Track registers s; tracking the same search twice keeps the first entry
func (t *Tracker) Track(s search.Search, simulatorName, objectiveName string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.searches[s.ID()]; ok {
		return
	}
	t.searches[s.ID()] = TrackedSearch{
		Search:    s,
		Simulator: simulatorName,
		Objective: objectiveName,
		StartedAt: time.Now().UTC(),
	}
	t.order = append(t.order, s.ID())
}

func (t *Tracker) Get(id string) (TrackedSearch, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ts, ok := t.searches[id]
	return ts, ok
}

func (t *Tracker) List() []TrackedSearch {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]TrackedSearch, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.searches[id])
	}
	return out
}

// Running counts searches that have not reached a terminal status
func (t *Tracker) Running() int {
	n := 0
	for _, ts := range t.List() {
		if !ts.Search.Status().Terminal() {
			n++
		}
	}
	return n
}
