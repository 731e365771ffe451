package paramspace

// Enumerator walks a finite set of configurations in a fixed order.
// Implementations are not safe for concurrent use; callers that share one
// across goroutines must serialize access.
type Enumerator interface {
	HasNext() bool
	// Current returns the configuration at the cursor. Once exhausted it keeps
	// returning the last combination.
	Current() Configuration
	// Advance moves to the next combination, or to the exhausted state after
	// the last one. It is a no-op once exhausted.
	Advance()
	Reset()
	// Size is the total number of combinations
	Size() int64
}

// GridEnumerator visits every combination of a Space exactly once by
// mixed-radix increment. The first domain of the first non-empty kind group
// is the fastest-moving digit; carries flow integers -> reals -> strings ->
// sub-configs.
type GridEnumerator struct {
	space     *Space
	sizes     []int
	idx       []int
	exhausted bool
}

// NewGridEnumerator creates an enumerator with its own cursor over space
func NewGridEnumerator(space *Space) *GridEnumerator {
	sizes := space.sizes()
	return &GridEnumerator{
		space: space,
		sizes: sizes,
		idx:   make([]int, len(sizes)),
	}
}

func (g *GridEnumerator) HasNext() bool {
	return !g.exhausted
}

func (g *GridEnumerator) Current() Configuration {
	return g.space.configAt(g.idx)
}

func (g *GridEnumerator) Advance() {
	if g.exhausted {
		return
	}
	for d := range g.idx {
		if g.idx[d]+1 < g.sizes[d] {
			g.idx[d]++
			for lower := 0; lower < d; lower++ {
				g.idx[lower] = 0
			}
			return
		}
	}
	// Every digit would wrap: keep the last combination as terminal state.
	g.exhausted = true
}

func (g *GridEnumerator) Reset() {
	for d := range g.idx {
		g.idx[d] = 0
	}
	g.exhausted = false
}

func (g *GridEnumerator) Size() int64 {
	return g.space.Cardinality()
}

// Space returns the enumerated space
func (g *GridEnumerator) Space() *Space {
	return g.space
}

// ============================================================================
// COMPOSITE
// ============================================================================

// Execution names one inner enumerator of a Composite
type Execution struct {
	Name       string
	Enumerator Enumerator
}

// Composite enumerates the cartesian product of several named executions.
// Each inner enumerator is one digit; the first execution moves fastest.
// Parameter names of the produced configuration are ExecutionKey(exec, name).
type Composite struct {
	execs     []Execution
	exhausted bool
}

// NewComposite creates a composite over the given executions. With no
// executions there are zero combinations.
func NewComposite(execs ...Execution) *Composite {
	c := &Composite{execs: append([]Execution(nil), execs...)}
	c.Reset()
	return c
}

func (c *Composite) HasNext() bool {
	return !c.exhausted
}

func (c *Composite) Current() Configuration {
	ints := make(map[string]int64)
	reals := make(map[string]float64)
	strs := make(map[string]string)
	var refs []Ref

	for _, e := range c.execs {
		inner := e.Enumerator.Current()
		for k, v := range inner.ints {
			ints[ExecutionKey(e.Name, k)] = v
		}
		for k, v := range inner.reals {
			reals[ExecutionKey(e.Name, k)] = v
		}
		for k, v := range inner.strs {
			strs[ExecutionKey(e.Name, k)] = v
		}
		for _, r := range inner.subConfigs {
			refs = append(refs, Ref{Name: ExecutionKey(e.Name, r.Name), Value: r.Value})
		}
	}

	return NewConfiguration(ints, reals, strs, refs)
}

func (c *Composite) Advance() {
	if c.exhausted {
		return
	}
	for i, e := range c.execs {
		e.Enumerator.Advance()
		if e.Enumerator.HasNext() {
			for lower := 0; lower < i; lower++ {
				c.execs[lower].Enumerator.Reset()
			}
			return
		}
	}
	// Every inner enumerator sits on its last combination.
	c.exhausted = true
}

func (c *Composite) Reset() {
	for _, e := range c.execs {
		e.Enumerator.Reset()
	}
	c.exhausted = len(c.execs) == 0
}

func (c *Composite) Size() int64 {
	if len(c.execs) == 0 {
		return 0
	}
	total := int64(1)
	for _, e := range c.execs {
		total = mulSaturating(total, e.Enumerator.Size())
	}
	return total
}
