package paramspace

import (
	"fmt"
	"math"
	"strings"
)

// Space is an ordered collection of named domains grouped by kind. Group
// order (integers, reals, strings, sub-configs) is also enumeration order.
// A Space is read-only once built.
type Space struct {
	ints       []*IntRange
	reals      []*RealRange
	strs       []*Enum
	subConfigs []*Enum
}

func (s *Space) Ints() []*IntRange      { return append([]*IntRange(nil), s.ints...) }
func (s *Space) Reals() []*RealRange    { return append([]*RealRange(nil), s.reals...) }
func (s *Space) StringEnums() []*Enum   { return append([]*Enum(nil), s.strs...) }
func (s *Space) SubConfigRefs() []*Enum { return append([]*Enum(nil), s.subConfigs...) }

// ParameterCount is the number of domains across all kinds
func (s *Space) ParameterCount() int {
	return len(s.ints) + len(s.reals) + len(s.strs) + len(s.subConfigs)
}

// Cardinality is the product of all domain sizes, saturating at math.MaxInt64.
// A space without domains has exactly one (empty) combination.
func (s *Space) Cardinality() int64 {
	total := int64(1)
	for _, size := range s.sizes() {
		total = mulSaturating(total, int64(size))
	}
	return total
}

// Names lists every parameter name in enumeration order
func (s *Space) Names() []string {
	names := make([]string, 0, s.ParameterCount())
	for _, d := range s.ints {
		names = append(names, d.name)
	}
	for _, d := range s.reals {
		names = append(names, d.name)
	}
	for _, d := range s.strs {
		names = append(names, d.name)
	}
	for _, d := range s.subConfigs {
		names = append(names, d.name)
	}
	return names
}

// Grid returns a new enumerator positioned at the first combination
func (s *Space) Grid() *GridEnumerator {
	return NewGridEnumerator(s)
}

func (s *Space) sizes() []int {
	sizes := make([]int, 0, s.ParameterCount())
	for _, d := range s.ints {
		sizes = append(sizes, d.size)
	}
	for _, d := range s.reals {
		sizes = append(sizes, d.size)
	}
	for _, d := range s.strs {
		sizes = append(sizes, len(d.values))
	}
	for _, d := range s.subConfigs {
		sizes = append(sizes, len(d.values))
	}
	return sizes
}

// configAt materializes the configuration for one index per domain, in the
// same flattened order as sizes().
func (s *Space) configAt(idx []int) Configuration {
	ints := make(map[string]int64, len(s.ints))
	reals := make(map[string]float64, len(s.reals))
	strs := make(map[string]string, len(s.strs))
	refs := make([]Ref, 0, len(s.subConfigs))

	pos := 0
	for _, d := range s.ints {
		ints[d.name] = d.ValueAt(idx[pos])
		pos++
	}
	for _, d := range s.reals {
		reals[d.name] = d.ValueAt(idx[pos])
		pos++
	}
	for _, d := range s.strs {
		strs[d.name] = d.ValueAt(idx[pos])
		pos++
	}
	for _, d := range s.subConfigs {
		refs = append(refs, Ref{Name: d.name, Value: d.ValueAt(idx[pos])})
		pos++
	}

	return NewConfiguration(ints, reals, strs, refs)
}

func mulSaturating(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > math.MaxInt64/b {
		return math.MaxInt64
	}
	return a * b
}

// ============================================================================
// BUILDER
// ============================================================================

// ValidationError describes one rejected parameter definition
type ValidationError struct {
	Field   string
	Message string
}

// ValidationErrors collects every problem found while building a space
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("parameter space is invalid (%d error(s)):", len(ve)))
	for _, err := range ve {
		sb.WriteString(fmt.Sprintf(" %s: %s;", err.Field, err.Message))
	}
	return strings.TrimSuffix(sb.String(), ";")
}

// Builder accumulates domains and reports every invalid one from Build.
type Builder struct {
	space Space
	seen  map[string]struct{}
	errs  ValidationErrors
}

// NewBuilder starts an empty parameter space
func NewBuilder() *Builder {
	return &Builder{seen: make(map[string]struct{})}
}

// AddInteger adds the integer range [from, to) sampled every step
func (b *Builder) AddInteger(name string, from, to, step int64) *Builder {
	d, err := NewIntRange(name, from, to, step)
	if b.accept(name, err) {
		b.space.ints = append(b.space.ints, d)
	}
	return b
}

// AddReal adds the real range [from, to) sampled every step
func (b *Builder) AddReal(name string, from, to, step float64) *Builder {
	d, err := NewRealRange(name, from, to, step)
	if b.accept(name, err) {
		b.space.reals = append(b.space.reals, d)
	}
	return b
}

// AddStringEnum adds a literal string parameter
func (b *Builder) AddStringEnum(name string, values []string) *Builder {
	d, err := NewStringEnum(name, values)
	if b.accept(name, err) {
		b.space.strs = append(b.space.strs, d)
	}
	return b
}

// AddSubConfigRef adds a parameter whose values reference other configurations.
// Declaration order is the order of the resulting reference list.
func (b *Builder) AddSubConfigRef(name string, values []string) *Builder {
	d, err := NewSubConfigRef(name, values)
	if b.accept(name, err) {
		b.space.subConfigs = append(b.space.subConfigs, d)
	}
	return b
}

func (b *Builder) accept(name string, err error) bool {
	if err != nil {
		b.errs = append(b.errs, ValidationError{Field: name, Message: err.Error()})
		return false
	}
	if _, dup := b.seen[name]; dup {
		b.errs = append(b.errs, ValidationError{Field: name, Message: "duplicate parameter name"})
		return false
	}
	b.seen[name] = struct{}{}
	return true
}

// Build returns the space, or ValidationErrors listing every rejected domain
func (b *Builder) Build() (*Space, error) {
	if len(b.errs) > 0 {
		return nil, b.errs
	}
	s := b.space
	return &s, nil
}

// ============================================================================
// MULTI-EXECUTION SPACES
// ============================================================================

// ExecutionKey is the parameter name used for param inside a named execution
func ExecutionKey(execution, param string) string {
	return execution + "." + param
}

// Prefixed returns a copy of s with every parameter renamed to
// ExecutionKey(execution, name).
func Prefixed(execution string, s *Space) *Space {
	out := &Space{}
	for _, d := range s.ints {
		c := *d
		c.name = ExecutionKey(execution, d.name)
		out.ints = append(out.ints, &c)
	}
	for _, d := range s.reals {
		c := *d
		c.name = ExecutionKey(execution, d.name)
		out.reals = append(out.reals, &c)
	}
	for _, d := range s.strs {
		c := *d
		c.name = ExecutionKey(execution, d.name)
		out.strs = append(out.strs, &c)
	}
	for _, d := range s.subConfigs {
		c := *d
		c.name = ExecutionKey(execution, d.name)
		out.subConfigs = append(out.subConfigs, &c)
	}
	return out
}

// Merge concatenates the domains of several spaces group by group. Names must
// be unique across the inputs.
func Merge(spaces ...*Space) (*Space, error) {
	out := &Space{}
	seen := make(map[string]struct{})
	var errs ValidationErrors

	check := func(name string) bool {
		if _, dup := seen[name]; dup {
			errs = append(errs, ValidationError{Field: name, Message: "duplicate parameter name"})
			return false
		}
		seen[name] = struct{}{}
		return true
	}

	for _, s := range spaces {
		for _, d := range s.ints {
			if check(d.name) {
				out.ints = append(out.ints, d)
			}
		}
		for _, d := range s.reals {
			if check(d.name) {
				out.reals = append(out.reals, d)
			}
		}
		for _, d := range s.strs {
			if check(d.name) {
				out.strs = append(out.strs, d)
			}
		}
		for _, d := range s.subConfigs {
			if check(d.name) {
				out.subConfigs = append(out.subConfigs, d)
			}
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return out, nil
}
