// Package paramspace models tunable strategy parameters: typed value domains,
// the space they span, and the configurations sampled from it.
package paramspace

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// Kind identifies the value type of a parameter domain
type Kind string

const (
	KindInteger   Kind = "int"
	KindReal      Kind = "real"
	KindString    Kind = "string"
	KindSubConfig Kind = "subconfig"
)

// Domain is the set of legal values for one named parameter.
//
// Crossover must return a value between left and right in domain order. It is
// neither deterministic nor symmetric.
type Domain[T any] interface {
	Name() string
	Size() int
	ValueAt(index int) T
	// IndexOf returns the index of v. For continuous domains this is the
	// nearest index; ok is false when v is not a member of the domain.
	IndexOf(v T) (index int, ok bool)
	RandomValue(rng *rand.Rand) T
	Crossover(rng *rand.Rand, left, right T) T
}

// ============================================================================
// INTEGER RANGE
// ============================================================================

// IntRange is the half-open integer range [From, To) sampled every Step.
type IntRange struct {
	name string
	from int64
	to   int64
	step int64
	size int
}

// NewIntRange creates an integer domain
func NewIntRange(name string, from, to, step int64) (*IntRange, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	if from >= to {
		return nil, fmt.Errorf("parameter %q: from (%d) must be less than to (%d)", name, from, to)
	}
	if step <= 0 {
		return nil, fmt.Errorf("parameter %q: step must be positive, got %d", name, step)
	}

	// to-from can exceed MaxInt64; the unsigned difference is exact.
	span := uint64(to - from)
	size := span / uint64(step)
	if span%uint64(step) != 0 {
		size++
	}
	if size > math.MaxInt32 {
		return nil, fmt.Errorf("parameter %q: %d values exceeds the supported domain size", name, size)
	}

	return &IntRange{name: name, from: from, to: to, step: step, size: int(size)}, nil
}

func (d *IntRange) Name() string { return d.name }
func (d *IntRange) Size() int    { return d.size }
func (d *IntRange) From() int64  { return d.from }
func (d *IntRange) To() int64    { return d.to }
func (d *IntRange) Step() int64  { return d.step }

// ValueAt returns From + index*Step, clamping index into the domain
func (d *IntRange) ValueAt(index int) int64 {
	return d.from + int64(clampIndex(index, d.size))*d.step
}

// IndexOf reports the index of v; only exact grid points are members
func (d *IntRange) IndexOf(v int64) (int, bool) {
	if v < d.from || v >= d.to {
		return 0, false
	}
	offset := uint64(v - d.from)
	index := int(offset / uint64(d.step))
	return index, offset%uint64(d.step) == 0
}

func (d *IntRange) RandomValue(rng *rand.Rand) int64 {
	return d.ValueAt(rng.Intn(d.size))
}

func (d *IntRange) Crossover(rng *rand.Rand, left, right int64) int64 {
	return crossover[int64](d, rng, left, right)
}

// ============================================================================
// REAL RANGE
// ============================================================================

// RealRange is the floating point range [From, To) sampled every Step.
type RealRange struct {
	name string
	from float64
	to   float64
	step float64
	size int
}

// NewRealRange creates a real-valued domain
func NewRealRange(name string, from, to, step float64) (*RealRange, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	if math.IsNaN(from) || math.IsNaN(to) || math.IsNaN(step) {
		return nil, fmt.Errorf("parameter %q: bounds and step must be numbers", name)
	}
	if from >= to {
		return nil, fmt.Errorf("parameter %q: from (%g) must be less than to (%g)", name, from, to)
	}
	if step <= 0 {
		return nil, fmt.Errorf("parameter %q: step must be positive, got %g", name, step)
	}

	// Guard against (to-from)/step landing a hair above an integer.
	raw := (to - from) / step
	size := math.Ceil(raw - 1e-9)
	if size < 1 {
		size = 1
	}
	if size > math.MaxInt32 {
		return nil, fmt.Errorf("parameter %q: %g values exceeds the supported domain size", name, size)
	}

	return &RealRange{name: name, from: from, to: to, step: step, size: int(size)}, nil
}

func (d *RealRange) Name() string  { return d.name }
func (d *RealRange) Size() int     { return d.size }
func (d *RealRange) From() float64 { return d.from }
func (d *RealRange) To() float64   { return d.to }
func (d *RealRange) Step() float64 { return d.step }

func (d *RealRange) ValueAt(index int) float64 {
	return d.from + float64(clampIndex(index, d.size))*d.step
}

// IndexOf returns the nearest grid index. Values outside [From, To] are not members.
func (d *RealRange) IndexOf(v float64) (int, bool) {
	if math.IsNaN(v) || v < d.from || v > d.to {
		return 0, false
	}
	idx := int(math.Round((v - d.from) / d.step))
	return clampIndex(idx, d.size), true
}

func (d *RealRange) RandomValue(rng *rand.Rand) float64 {
	return d.ValueAt(rng.Intn(d.size))
}

func (d *RealRange) Crossover(rng *rand.Rand, left, right float64) float64 {
	return crossover[float64](d, rng, left, right)
}

// ============================================================================
// ENUMERATIONS
// ============================================================================

// Enum is an ordered list of distinct strings. It backs both literal string
// parameters and references to other named configurations.
type Enum struct {
	name   string
	kind   Kind
	values []string
	index  map[string]int
}

// NewStringEnum creates a domain over literal string values
func NewStringEnum(name string, values []string) (*Enum, error) {
	return newEnum(name, KindString, values)
}

// NewSubConfigRef creates a domain whose values name other configurations
func NewSubConfigRef(name string, values []string) (*Enum, error) {
	return newEnum(name, KindSubConfig, values)
}

func newEnum(name string, kind Kind, values []string) (*Enum, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("parameter %q: at least one value is required", name)
	}

	index := make(map[string]int, len(values))
	for i, v := range values {
		if _, dup := index[v]; dup {
			return nil, fmt.Errorf("parameter %q: duplicate value %q", name, v)
		}
		index[v] = i
	}

	return &Enum{
		name:   name,
		kind:   kind,
		values: append([]string(nil), values...),
		index:  index,
	}, nil
}

func (d *Enum) Name() string { return d.name }
func (d *Enum) Kind() Kind   { return d.kind }
func (d *Enum) Size() int    { return len(d.values) }

// Values returns a copy of the enumerated values in declaration order
func (d *Enum) Values() []string {
	return append([]string(nil), d.values...)
}

func (d *Enum) ValueAt(index int) string {
	return d.values[clampIndex(index, len(d.values))]
}

func (d *Enum) IndexOf(v string) (int, bool) {
	i, ok := d.index[v]
	return i, ok
}

func (d *Enum) RandomValue(rng *rand.Rand) string {
	return d.values[rng.Intn(len(d.values))]
}

func (d *Enum) Crossover(rng *rand.Rand, left, right string) string {
	return crossover[string](d, rng, left, right)
}

func checkName(name string) error {
	if name == "" {
		return fmt.Errorf("parameter name is required")
	}
	return nil
}

func clampIndex(index, size int) int {
	if index < 0 {
		return 0
	}
	if index >= size {
		return size - 1
	}
	return index
}

// sortedKeys is shared by Configuration signatures and JSON output.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
