package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReportCarriesSchemaVersion(t *testing.T) {
	r := testReport(t)
	assert.Equal(t, SchemaVersion, r.SchemaVersion)

	data, err := Encode(r, FormatYAML)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Schema Version: "+SchemaVersion+"\n")
	assert.Contains(t, string(data), "schema_version: \""+SchemaVersion+"\"")
}

func TestMigrate(t *testing.T) {
	t.Run("current version is untouched", func(t *testing.T) {
		r := Report{SchemaVersion: SchemaVersion, Strategies: []Entry{{Rank: 0}}}
		require.NoError(t, Migrate(&r))
		assert.Equal(t, 0, r.Strategies[0].Rank)
	})

	t.Run("1.0 entries are ranked by position", func(t *testing.T) {
		r := Report{SchemaVersion: "1.0", Strategies: []Entry{{}, {}, {Rank: 7}}}
		require.NoError(t, Migrate(&r))
		assert.Equal(t, SchemaVersion, r.SchemaVersion)
		assert.Equal(t, []int{1, 2, 7}, []int{r.Strategies[0].Rank, r.Strategies[1].Rank, r.Strategies[2].Rank})
	})

	t.Run("missing version is treated as 1.0", func(t *testing.T) {
		r := Report{Strategies: []Entry{{}}}
		require.NoError(t, Migrate(&r))
		assert.Equal(t, SchemaVersion, r.SchemaVersion)
		assert.Equal(t, 1, r.Strategies[0].Rank)
	})

	t.Run("nil report", func(t *testing.T) {
		assert.Error(t, Migrate(nil))
	})
}

func TestCheckCompatibility(t *testing.T) {
	tests := []struct {
		version string
		wantErr string
	}{
		{"1.0", ""},
		{"1.1", ""},
		{"1.1.4", ""},
		{"1.2", "newer than supported"},
		{"2.0.0", "newer than supported"},
		{"0.9", "no migration path"},
		{"not-a-version", "invalid schema version"},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			err := CheckCompatibility(tt.version)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoad_MigratesAndRejectsVersions(t *testing.T) {
	dir := t.TempDir()

	legacy := filepath.Join(dir, "legacy.yaml")
	require.NoError(t, os.WriteFile(legacy, []byte(`search_id: old-run
strategies:
  - parameters:
      fast_period: 5
  - parameters:
      fast_period: 10
`), 0600))

	r, err := Load(legacy)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, r.SchemaVersion)
	require.Len(t, r.Strategies, 2)
	assert.Equal(t, 2, r.Strategies[1].Rank)

	future := filepath.Join(dir, "future.json")
	require.NoError(t, os.WriteFile(future, []byte(`{"schema_version":"2.0","search_id":"new-run"}`), 0600))
	_, err = Load(future)
	assert.ErrorContains(t, err, "newer than supported")
}
