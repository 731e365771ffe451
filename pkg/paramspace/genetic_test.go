package paramspace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSpace(t *testing.T) *Space {
	t.Helper()
	space, err := NewBuilder().
		AddInteger("fast_period", 2, 50, 1).
		AddInteger("slow_period", 20, 200, 5).
		AddReal("threshold", 0, 0.05, 0.001).
		AddStringEnum("sizing", []string{"fixed", "percent", "kelly"}).
		AddSubConfigRef("feed", []string{"btc_1h", "eth_1h", "sol_1h"}).
		AddSubConfigRef("hedge", []string{"none", "btc_perp"}).
		Build()
	require.NoError(t, err)
	return space
}

func diffCount(a, b Configuration) int {
	n := 0
	for k, v := range a.ints {
		if b.ints[k] != v {
			n++
		}
	}
	for k, v := range a.reals {
		if b.reals[k] != v {
			n++
		}
	}
	for k, v := range a.strs {
		if b.strs[k] != v {
			n++
		}
	}
	for i, r := range a.subConfigs {
		if b.subConfigs[i] != r {
			n++
		}
	}
	return n
}

func TestGenerator_GenerateRandom(t *testing.T) {
	space := testSpace(t)
	gen := NewGenerator(space, 7)

	for i := 0; i < 100; i++ {
		c := gen.GenerateRandom()
		require.Equal(t, space.ParameterCount(), c.Len())

		refs := c.SubConfigs()
		require.Len(t, refs, 2)
		assert.Equal(t, "feed", refs[0].Name, "declaration order")
		assert.Equal(t, "hedge", refs[1].Name)

		fast, _ := c.Int("fast_period")
		_, ok := space.ints[0].IndexOf(fast)
		assert.True(t, ok)
	}
}

func TestGenerator_SeedIsReproducible(t *testing.T) {
	space := testSpace(t)
	a := NewGenerator(space, 99)
	b := NewGenerator(space, 99)

	for i := 0; i < 20; i++ {
		assert.Equal(t, a.GenerateRandom().Signature(), b.GenerateRandom().Signature())
	}
	assert.Equal(t, int64(99), a.Seed())
	assert.NotZero(t, NewGenerator(space, 0).Seed())
}

func TestGenerator_MutateChangesAtMostOneField(t *testing.T) {
	space := testSpace(t)
	gen := NewGenerator(space, 3)

	changed := 0
	for i := 0; i < 500; i++ {
		original := gen.GenerateRandom()
		mutated, ok := gen.Mutate(original)
		require.True(t, ok)

		d := diffCount(original, mutated)
		require.LessOrEqual(t, d, 1)
		changed += d

		assert.Equal(t, original.Len(), mutated.Len())
	}
	assert.Greater(t, changed, 300, "most mutations draw a different value")
}

func TestGenerator_MutateLeavesOriginalIntact(t *testing.T) {
	space := testSpace(t)
	gen := NewGenerator(space, 5)

	original := gen.GenerateRandom()
	before := original.Signature()
	for i := 0; i < 50; i++ {
		_, _ = gen.Mutate(original)
	}
	assert.Equal(t, before, original.Signature())
}

func TestGenerator_MutateEmptySpace(t *testing.T) {
	space, err := NewBuilder().Build()
	require.NoError(t, err)
	gen := NewGenerator(space, 1)

	c := gen.GenerateRandom()
	out, ok := gen.Mutate(c)
	assert.False(t, ok)
	assert.True(t, c.Equal(out))
}

func TestGenerator_MergeStaysBetweenParents(t *testing.T) {
	space := testSpace(t)
	gen := NewGenerator(space, 11)

	for i := 0; i < 200; i++ {
		left := gen.GenerateRandom()
		right := gen.GenerateRandom()
		child := gen.Merge(left, right)
		require.Equal(t, left.Len(), child.Len())

		l, _ := left.Int("slow_period")
		r, _ := right.Int("slow_period")
		c, _ := child.Int("slow_period")
		assert.GreaterOrEqual(t, c, min(l, r))
		assert.LessOrEqual(t, c, max(l, r))

		lt, _ := left.Real("threshold")
		rt, _ := right.Real("threshold")
		ct, _ := child.Real("threshold")
		assert.GreaterOrEqual(t, ct, min(lt, rt)-1e-12)
		assert.LessOrEqual(t, ct, max(lt, rt)+1e-12)
	}
}

func TestGenerator_MergeIdenticalParents(t *testing.T) {
	space := testSpace(t)
	gen := NewGenerator(space, 13)

	c := gen.GenerateRandom()
	for i := 0; i < 20; i++ {
		assert.True(t, c.Equal(gen.Merge(c, c)))
	}
}

func TestGenerator_MergeTruncatesSubConfigs(t *testing.T) {
	space := testSpace(t)
	gen := NewGenerator(space, 17)

	full := gen.GenerateRandom()
	short := NewConfiguration(full.Ints(), full.Reals(), full.Strings(), full.SubConfigs()[:1])

	child := gen.Merge(full, short)
	refs := child.SubConfigs()
	require.Len(t, refs, 1, "shorter reference list bounds the merge")
	assert.Equal(t, "feed", refs[0].Name)
}
