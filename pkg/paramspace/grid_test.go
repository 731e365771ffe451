package paramspace

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, e Enumerator) []Configuration {
	t.Helper()
	var out []Configuration
	for e.HasNext() {
		out = append(out, e.Current())
		e.Advance()
		require.LessOrEqual(t, len(out), 10000, "enumerator did not terminate")
	}
	return out
}

func TestGridEnumerator_CarryOrder(t *testing.T) {
	space, err := NewBuilder().
		AddInteger("a", 0, 3, 1).
		AddInteger("b", 10, 30, 10).
		Build()
	require.NoError(t, err)

	grid := space.Grid()
	assert.Equal(t, int64(6), grid.Size())

	configs := collect(t, grid)
	require.Len(t, configs, 6)

	var got [][2]int64
	seen := make(map[string]bool)
	for _, c := range configs {
		a, _ := c.Int("a")
		b, _ := c.Int("b")
		got = append(got, [2]int64{a, b})
		seen[c.Signature()] = true
	}
	assert.Equal(t, [][2]int64{
		{0, 10}, {1, 10}, {2, 10},
		{0, 20}, {1, 20}, {2, 20},
	}, got, "first domain cycles fastest")
	assert.Len(t, seen, 6, "every combination is distinct")
}

func TestGridEnumerator_CarriesAcrossKindGroups(t *testing.T) {
	space, err := NewBuilder().
		AddStringEnum("mode", []string{"x", "y"}).
		AddInteger("n", 0, 2, 1).
		AddReal("r", 0, 1, 0.5).
		AddSubConfigRef("feed", []string{"btc", "eth"}).
		Build()
	require.NoError(t, err)

	configs := collect(t, space.Grid())
	require.Len(t, configs, 16)

	// Integers move first, then reals, then strings, then sub-configs.
	first, second, third := configs[0], configs[1], configs[2]
	n0, _ := first.Int("n")
	n1, _ := second.Int("n")
	assert.Equal(t, int64(0), n0)
	assert.Equal(t, int64(1), n1)
	r2, _ := third.Real("r")
	assert.Equal(t, 0.5, r2)

	mode, _ := configs[4].Str("mode")
	assert.Equal(t, "y", mode)
	feed, _ := configs[8].SubConfig("feed")
	assert.Equal(t, "eth", feed)
}

func TestGridEnumerator_ExhaustedAndReset(t *testing.T) {
	space, err := NewBuilder().AddInteger("a", 0, 2, 1).Build()
	require.NoError(t, err)

	grid := space.Grid()
	grid.Advance()
	grid.Advance()
	assert.False(t, grid.HasNext())

	last := grid.Current()
	a, _ := last.Int("a")
	assert.Equal(t, int64(1), a, "terminal state keeps the last combination")

	grid.Advance()
	assert.False(t, grid.HasNext(), "advance after exhaustion is a no-op")

	grid.Reset()
	require.True(t, grid.HasNext())
	a, _ = grid.Current().Int("a")
	assert.Equal(t, int64(0), a)
}

func TestGridEnumerator_EmptySpace(t *testing.T) {
	space, err := NewBuilder().Build()
	require.NoError(t, err)

	grid := space.Grid()
	assert.Equal(t, int64(1), grid.Size())
	configs := collect(t, grid)
	require.Len(t, configs, 1)
	assert.Equal(t, 0, configs[0].Len())
}

func TestGridEnumerator_IndependentCursors(t *testing.T) {
	space, err := NewBuilder().AddInteger("a", 0, 3, 1).Build()
	require.NoError(t, err)

	g1 := space.Grid()
	g2 := space.Grid()
	g1.Advance()

	a1, _ := g1.Current().Int("a")
	a2, _ := g2.Current().Int("a")
	assert.Equal(t, int64(1), a1)
	assert.Equal(t, int64(0), a2)
}

func TestSpace_CardinalitySaturates(t *testing.T) {
	b := NewBuilder()
	for i := 0; i < 8; i++ {
		b.AddInteger(string(rune('a'+i)), 0, 1_000_000, 1)
	}
	space, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, int64(math.MaxInt64), space.Cardinality())
	assert.Equal(t, 8, space.ParameterCount())
}

func TestComposite(t *testing.T) {
	fast, err := NewBuilder().AddInteger("p", 0, 2, 1).Build()
	require.NoError(t, err)
	slow, err := NewBuilder().AddStringEnum("m", []string{"a", "b", "c"}).Build()
	require.NoError(t, err)

	c := NewComposite(
		Execution{Name: "entry", Enumerator: fast.Grid()},
		Execution{Name: "exit", Enumerator: slow.Grid()},
	)
	assert.Equal(t, int64(6), c.Size())

	configs := collect(t, c)
	require.Len(t, configs, 6)

	var got []string
	for _, cfg := range configs {
		p, ok := cfg.Int("entry.p")
		require.True(t, ok)
		m, ok := cfg.Str("exit.m")
		require.True(t, ok)
		got = append(got, string(rune('0'+p))+m)
	}
	assert.Equal(t, []string{"0a", "1a", "0b", "1b", "0c", "1c"}, got)

	last := c.Current()
	m, _ := last.Str("exit.m")
	assert.Equal(t, "c", m)

	c.Reset()
	assert.True(t, c.HasNext())
	assert.Len(t, collect(t, c), 6)
}

func TestComposite_NoExecutions(t *testing.T) {
	c := NewComposite()
	assert.Equal(t, int64(0), c.Size())
	assert.False(t, c.HasNext())
}

func TestComposite_MatchesMergedSpaceKeys(t *testing.T) {
	inner, err := NewBuilder().AddInteger("p", 0, 2, 1).AddSubConfigRef("feed", []string{"x"}).Build()
	require.NoError(t, err)

	merged, err := Merge(Prefixed("main", inner))
	require.NoError(t, err)
	assert.Equal(t, []string{"main.p", "main.feed"}, merged.Names())

	c := NewComposite(Execution{Name: "main", Enumerator: inner.Grid()})
	assert.Equal(t, merged.Grid().Current().Signature(), c.Current().Signature())
}
