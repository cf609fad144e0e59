package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	t.Parallel()

	cfg := EmptyAnalysisConfig()
	assert.Equal(t, []string{"HC1", "SOR1"}, cfg.GetAllowedSamples())
	assert.Equal(t, 35000.0, cfg.GetMaxTotalCounts())
	assert.Equal(t, 10.0, cfg.GetMaxPctMito())
	assert.Equal(t, "mt-", cfg.GetMitoPrefix())
	assert.Equal(t, 1e4, cfg.GetTargetSum())
	assert.Equal(t, 2000, cfg.GetVariableGenes())
	assert.Equal(t, 10.0, cfg.GetScaleMax())
	assert.Equal(t, 20, cfg.GetComponents())
	assert.Equal(t, 15, cfg.GetNeighbors())
	assert.Equal(t, 0.5, cfg.GetResolution())
	assert.Equal(t, int64(17), cfg.GetSeed())
	assert.Equal(t, "HC1", cfg.GetSampleA())
	assert.Equal(t, "SOR1", cfg.GetSampleB())
	assert.Equal(t, "Hcn1", cfg.GetThetaMarker())
	assert.Equal(t, "Pvalb", cfg.GetGammaMarker())
	assert.Equal(t, 4, cfg.GetThetaCluster())
	assert.Equal(t, 7, cfg.GetGammaCluster())
	assert.Len(t, cfg.GetMarkerPanel(), 11)
}

func TestLoadAnalysisConfig(t *testing.T) {
	t.Parallel()

	t.Run("partial config keeps defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "partial.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"max_pct_mito": 5, "seed": 42}`), 0644))

		cfg, err := LoadAnalysisConfig(path)
		require.NoError(t, err)
		assert.Equal(t, 5.0, cfg.GetMaxPctMito())
		assert.Equal(t, int64(42), cfg.GetSeed())
		// Untouched fields keep their defaults.
		assert.Equal(t, 35000.0, cfg.GetMaxTotalCounts())
		assert.Equal(t, 0.5, cfg.GetResolution())
	})

	t.Run("rejects non-json extension", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("{}"), 0644))
		_, err := LoadAnalysisConfig(path)
		assert.ErrorContains(t, err, ".json")
	})

	t.Run("rejects invalid JSON", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(path, []byte("{nope"), 0644))
		_, err := LoadAnalysisConfig(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadAnalysisConfig(filepath.Join(t.TempDir(), "absent.json"))
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		mod  func(*AnalysisConfig)
	}{
		{"negative max counts", func(c *AnalysisConfig) { c.MaxTotalCounts = ptrFloat64(-1) }},
		{"mito over 100", func(c *AnalysisConfig) { c.MaxPctMito = ptrFloat64(150) }},
		{"single component", func(c *AnalysisConfig) { c.Components = ptrInt(1) }},
		{"zero neighbors", func(c *AnalysisConfig) { c.Neighbors = ptrInt(0) }},
		{"zero resolution", func(c *AnalysisConfig) { c.Resolution = ptrFloat64(0) }},
		{"zero variable genes", func(c *AnalysisConfig) { c.VariableGenes = ptrInt(0) }},
		{"blank sample label", func(c *AnalysisConfig) { c.AllowedSamples = []string{"HC1", " "} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := EmptyAnalysisConfig()
			tc.mod(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("empty config valid", func(t *testing.T) {
		assert.NoError(t, EmptyAnalysisConfig().Validate())
	})
}

func TestMustLoadDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := MustLoadDefaultConfig()
	require.NotNil(t, cfg)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 35000.0, cfg.GetMaxTotalCounts())
}
