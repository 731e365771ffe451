package paramspace

import (
	"math/rand"
	"time"
)

// Generator produces random, mutated and crossed-over configurations of a
// Space. It owns its random source and is not safe for concurrent use.
type Generator struct {
	space *Space
	rng   *rand.Rand
	seed  int64
}

// NewGenerator creates a generator over space. A zero seed picks a
// time-based one; use Seed to read it back for reproduction.
func NewGenerator(space *Space, seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{
		space: space,
		rng:   rand.New(rand.NewSource(seed)), // #nosec G404 -- search randomness, reproducibility matters more than unpredictability
		seed:  seed,
	}
}

func (g *Generator) Space() *Space { return g.space }
func (g *Generator) Seed() int64   { return g.seed }

// Rand exposes the generator's random source so callers drawing population
// members stay on the same reproducible stream.
func (g *Generator) Rand() *rand.Rand { return g.rng }

// GenerateRandom draws every domain independently
func (g *Generator) GenerateRandom() Configuration {
	s := g.space
	ints := make(map[string]int64, len(s.ints))
	reals := make(map[string]float64, len(s.reals))
	strs := make(map[string]string, len(s.strs))
	refs := make([]Ref, 0, len(s.subConfigs))

	for _, d := range s.ints {
		ints[d.name] = d.RandomValue(g.rng)
	}
	for _, d := range s.reals {
		reals[d.name] = d.RandomValue(g.rng)
	}
	for _, d := range s.strs {
		strs[d.name] = d.RandomValue(g.rng)
	}
	for _, d := range s.subConfigs {
		refs = append(refs, Ref{Name: d.name, Value: d.RandomValue(g.rng)})
	}

	return NewConfiguration(ints, reals, strs, refs)
}

// Mutate redraws exactly one parameter, chosen uniformly over all domains of
// all kinds; every other value is copied. The redraw may coincide with the old
// value. With an empty space c is returned unchanged and ok is false.
func (g *Generator) Mutate(c Configuration) (mutated Configuration, ok bool) {
	s := g.space
	n := s.ParameterCount()
	if n == 0 {
		return c, false
	}

	pick := g.rng.Intn(n)
	if pick < len(s.ints) {
		d := s.ints[pick]
		return c.withInt(d.name, d.RandomValue(g.rng)), true
	}
	pick -= len(s.ints)

	if pick < len(s.reals) {
		d := s.reals[pick]
		return c.withReal(d.name, d.RandomValue(g.rng)), true
	}
	pick -= len(s.reals)

	if pick < len(s.strs) {
		d := s.strs[pick]
		return c.withString(d.name, d.RandomValue(g.rng)), true
	}
	pick -= len(s.strs)

	d := s.subConfigs[pick]
	v := d.RandomValue(g.rng)
	for pos, r := range c.subConfigs {
		if r.Name == d.name {
			return c.withSubConfig(pos, v), true
		}
	}
	// The configuration did not carry this reference yet; add it at the end.
	refs := append(c.SubConfigs(), Ref{Name: d.name, Value: v})
	return NewConfiguration(c.ints, c.reals, c.strs, refs), true
}

// Merge crosses left and right domain by domain. Sub-configuration references
// are paired by position and the shorter list bounds the result; trailing
// unmatched references are dropped.
func (g *Generator) Merge(left, right Configuration) Configuration {
	s := g.space
	ints := make(map[string]int64, len(s.ints))
	reals := make(map[string]float64, len(s.reals))
	strs := make(map[string]string, len(s.strs))

	for _, d := range s.ints {
		ints[d.name] = mergeValue[int64](d, g.rng, left.ints, right.ints)
	}
	for _, d := range s.reals {
		reals[d.name] = mergeValue[float64](d, g.rng, left.reals, right.reals)
	}
	for _, d := range s.strs {
		strs[d.name] = mergeValue[string](d, g.rng, left.strs, right.strs)
	}

	n := min(len(left.subConfigs), len(right.subConfigs))
	refs := make([]Ref, 0, n)
	for pos := 0; pos < n; pos++ {
		l, r := left.subConfigs[pos], right.subConfigs[pos]
		d := g.subConfigDomain(l.Name, pos)
		if d == nil {
			refs = append(refs, l)
			continue
		}
		refs = append(refs, Ref{Name: l.Name, Value: d.Crossover(g.rng, l.Value, r.Value)})
	}

	return NewConfiguration(ints, reals, strs, refs)
}

// subConfigDomain finds the domain for a reference by name, falling back to
// its declaration position.
func (g *Generator) subConfigDomain(name string, pos int) *Enum {
	for _, d := range g.space.subConfigs {
		if d.name == name {
			return d
		}
	}
	if pos < len(g.space.subConfigs) {
		return g.space.subConfigs[pos]
	}
	return nil
}

// mergeValue crosses the named value of both parents. A value missing from
// either parent yields the domain midpoint, as crossover does for non-members.
func mergeValue[T any](d Domain[T], rng *rand.Rand, left, right map[string]T) T {
	l, okLeft := left[d.Name()]
	r, okRight := right[d.Name()]
	if !okLeft || !okRight {
		return d.ValueAt(d.Size() / 2)
	}
	return d.Crossover(rng, l, r)
}
