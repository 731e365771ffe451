package spacefile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/paramsearch/pkg/paramspace"
)

const singleYAML = `
parameters:
  - name: fast_period
    type: int
    from: 5
    to: 20
    step: 5
  - name: threshold
    type: real
    from: 0
    to: 1
    step: 0.25
  - name: mode
    type: string
    values: [long, short]
  - name: feed
    type: subconfig
    values: [btc_1h, eth_1h]
`

const multiYAML = `
executions:
  - name: entry
    parameters:
      - {name: period, type: int, from: 10, to: 30, step: 10}
  - name: exit
    parameters:
      - {name: period, type: int, from: 5, to: 15, step: 5}
      - {name: mode, type: string, values: [trailing, fixed, time]}
`

func TestParseYAML_Single(t *testing.T) {
	def, err := ParseYAML([]byte(singleYAML))
	require.NoError(t, err)
	assert.False(t, def.Multi())

	space, err := def.Space()
	require.NoError(t, err)
	assert.Equal(t, 4, space.ParameterCount())
	assert.Equal(t, int64(3*4*2*2), space.Cardinality())

	enum, err := def.Enumerator()
	require.NoError(t, err)
	assert.Equal(t, space.Cardinality(), enum.Size())

	cfg := enum.Current()
	v, ok := cfg.Int("fast_period")
	assert.True(t, ok)
	assert.Equal(t, int64(5), v)
	assert.Equal(t, []paramspace.Ref{{Name: "feed", Value: "btc_1h"}}, cfg.SubConfigs())
}

func TestParseYAML_MultiExecution(t *testing.T) {
	def, err := ParseYAML([]byte(multiYAML))
	require.NoError(t, err)
	assert.True(t, def.Multi())

	space, err := def.Space()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"entry.period", "exit.period", "exit.mode"}, space.Names())

	enum, err := def.Enumerator()
	require.NoError(t, err)
	assert.Equal(t, int64(2*2*3), enum.Size())

	// The composite and the merged space agree on keys.
	gen := paramspace.NewGenerator(space, 1)
	random := gen.GenerateRandom()
	first := enum.Current()
	assert.Equal(t, len(random.Ints()), len(first.Ints()))
	for k := range first.Ints() {
		_, ok := random.Int(k)
		assert.True(t, ok, k)
	}
	for k := range first.Strings() {
		_, ok := random.Str(k)
		assert.True(t, ok, k)
	}
}

func TestParseYAML_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"empty", ``, "space defines no parameters"},
		{"unknown field", "parameters:\n  - {name: a, type: int, from: 1, to: 5, stepp: 1}\n", "stepp"},
		{"unknown type", "parameters:\n  - {name: a, type: bool}\n", "unknown parameter type"},
		{"fractional int", "parameters:\n  - {name: a, type: int, from: 1, to: 5, step: 0.5}\n", "whole numbers"},
		{"bad bounds", "parameters:\n  - {name: a, type: int, from: 5, to: 1, step: 1}\n", "a:"},
		{"empty enum", "parameters:\n  - {name: a, type: string, values: []}\n", "a:"},
		{"both forms", "parameters:\n  - {name: a, type: string, values: [x]}\nexecutions:\n  - name: e\n    parameters: [{name: b, type: string, values: [y]}]\n", "cannot be combined"},
		{"duplicate execution", "executions:\n  - name: e\n    parameters: [{name: a, type: string, values: [x]}]\n  - name: e\n    parameters: [{name: b, type: string, values: [y]}]\n", "duplicate execution"},
		{"unnamed execution", "executions:\n  - parameters: [{name: a, type: string, values: [x]}]\n", "executions[0].name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, err := ParseYAML([]byte(tt.yaml))
			if err == nil {
				_, err = def.Space()
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseJSON(t *testing.T) {
	def, err := ParseJSON([]byte(`{"parameters":[{"name":"n","type":"int","from":0,"to":10,"step":2}]}`))
	require.NoError(t, err)

	space, err := def.Space()
	require.NoError(t, err)
	assert.Equal(t, int64(5), space.Cardinality())

	_, err = ParseJSON([]byte(`{"parameters":[{"name":"n","kind":"int"}]}`))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "space.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(singleYAML), 0o600))
	jsonPath := filepath.Join(dir, "space.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"parameters":[{"name":"m","type":"string","values":["a","b"]}]}`), 0o600))

	def, err := Load(yamlPath)
	require.NoError(t, err)
	assert.Len(t, def.Parameters, 4)

	def, err = Load(jsonPath)
	require.NoError(t, err)
	assert.Len(t, def.Parameters, 1)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
