package paramspace

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfiguration_Signature(t *testing.T) {
	c := NewConfiguration(
		map[string]int64{"slow": 30, "fast": 5},
		map[string]float64{"threshold": 0.25},
		map[string]string{"mode": "long"},
		[]Ref{{Name: "feed", Value: "btc"}},
	)

	assert.Equal(t, "fast=5;feed=btc;mode=long;slow=30;threshold=0.25", c.Signature())

	same := NewConfiguration(
		map[string]int64{"fast": 5, "slow": 30},
		map[string]float64{"threshold": 0.25},
		map[string]string{"mode": "long"},
		[]Ref{{Name: "feed", Value: "btc"}},
	)
	assert.True(t, c.Equal(same))
}

func TestConfiguration_IsImmutable(t *testing.T) {
	ints := map[string]int64{"fast": 5}
	refs := []Ref{{Name: "feed", Value: "btc"}}
	c := NewConfiguration(ints, nil, nil, refs)

	ints["fast"] = 99
	refs[0].Value = "eth"
	v, _ := c.Int("fast")
	assert.Equal(t, int64(5), v, "inputs are copied")
	feed, _ := c.SubConfig("feed")
	assert.Equal(t, "btc", feed)

	out := c.Ints()
	out["fast"] = 7
	v, _ = c.Int("fast")
	assert.Equal(t, int64(5), v, "accessors hand out copies")
}

func TestConfiguration_Clone(t *testing.T) {
	c := NewConfiguration(map[string]int64{"fast": 5}, map[string]float64{"r": 1.5}, nil, nil)
	clone := c.Clone()
	assert.True(t, c.Equal(clone))

	mutated := clone.withInt("fast", 6)
	v, _ := clone.Int("fast")
	assert.Equal(t, int64(5), v)
	assert.False(t, mutated.Equal(clone))
}

func TestConfiguration_JSON(t *testing.T) {
	c := NewConfiguration(
		map[string]int64{"fast": 5},
		map[string]float64{"threshold": 0.25},
		map[string]string{"mode": "long"},
		[]Ref{{Name: "feed", Value: "btc"}, {Name: "hedge", Value: "none"}},
	)

	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"sub_configs":[{"name":"feed","value":"btc"},{"name":"hedge","value":"none"}]`)

	var decoded Configuration
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, c.Signature(), decoded.Signature())
	assert.Equal(t, c.SubConfigs(), decoded.SubConfigs())
}

func TestBuilder_CollectsAllErrors(t *testing.T) {
	_, err := NewBuilder().
		AddInteger("a", 5, 1, 1).
		AddReal("b", 0, 1, -1).
		AddStringEnum("c", nil).
		AddInteger("d", 0, 3, 1).
		AddStringEnum("d", []string{"x"}).
		Build()
	require.Error(t, err)

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs, 4)
	assert.Equal(t, "d", verrs[3].Field)
	assert.Contains(t, verrs[3].Message, "duplicate")
}

func TestMerge_RejectsDuplicateNames(t *testing.T) {
	a, err := NewBuilder().AddInteger("p", 0, 2, 1).Build()
	require.NoError(t, err)

	_, err = Merge(a, a)
	assert.Error(t, err)

	merged, err := Merge(Prefixed("x", a), Prefixed("y", a))
	require.NoError(t, err)
	assert.Equal(t, []string{"x.p", "y.p"}, merged.Names())
	assert.Equal(t, int64(4), merged.Cardinality())
}
