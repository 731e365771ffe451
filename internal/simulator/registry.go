// Package simulator provides the built-in strategy simulators, a name-based
// registry for them, and decorators that protect a search from a failing or
// overloaded simulator backend.
package simulator

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ajitpratap0/paramsearch/pkg/search"
)

// Built-in simulator names
const (
	NameBenchmark    = "benchmark"
	NameSMACrossover = "sma_crossover"
)

var (
	ErrSimulatorNotFound = errors.New("simulator not found")
	ErrAlreadyRegistered = errors.New("simulator already registered")
	// ErrInvalidParameters marks a configuration the simulator cannot run.
	// It is a property of the configuration, not of the backend.
	ErrInvalidParameters = errors.New("invalid strategy parameters")
)

// Options carries the settings shared by every simulator factory
type Options struct {
	DataFile       string
	Bars           int
	Seed           int64
	InitialCapital float64
	FeeRate        float64
}

// Factory builds a simulator from options
type Factory func(opts Options) (search.Simulator, error)

// Registry maps simulator names to factories
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry holding the built-in simulators
func DefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register(NameBenchmark, func(Options) (search.Simulator, error) {
		return NewBenchmark(), nil
	})
	_ = r.Register(NameSMACrossover, func(opts Options) (search.Simulator, error) {
		return NewSMACrossover(opts)
	})
	return r
}

// Register adds a factory under name
func (r *Registry) Register(name string, f Factory) error {
	if name == "" || f == nil {
		return fmt.Errorf("simulator registration needs a name and a factory")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("%w: %q", ErrAlreadyRegistered, name)
	}
	r.factories[name] = f
	return nil
}

// New builds the simulator registered under name
func (r *Registry) New(name string, opts Options) (search.Simulator, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrSimulatorNotFound, name, strings.Join(r.Names(), ", "))
	}

	sim, err := f(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create simulator %q: %w", name, err)
	}
	return sim, nil
}

// Names lists the registered simulators in order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
