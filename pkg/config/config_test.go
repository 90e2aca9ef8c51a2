package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dosegamma/pkg/gamma"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
gamma:
  dosePercentThreshold: 2
  distanceMMThreshold: 2
  localGamma: true
  maxGamma: .inf
processing:
  numCores: 3
  search: kdtree
output:
  saveSlices: true
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Processing.NumCores)
	assert.True(t, cfg.Output.SaveSlices)
	// Untouched keys keep their defaults
	assert.Equal(t, 10, cfg.Gamma.InterpFraction)
	assert.True(t, cfg.Output.SaveHistogram)

	p := cfg.GammaParams()
	assert.Equal(t, 2.0, p.DosePercentThreshold)
	assert.Equal(t, 2.0, p.DistanceMMThreshold)
	assert.True(t, p.LocalGamma)
	assert.True(t, math.IsInf(p.MaxGamma, 1))
	require.NoError(t, p.Validate())

	s, err := cfg.SearchStrategy()
	require.NoError(t, err)
	assert.Equal(t, gamma.SearchKDTree, s)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("gamma: [unclosed"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, CreateDefaultConfigFile(path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, gamma.DefaultParams().DosePercentThreshold, cfg.GammaParams().DosePercentThreshold)
}

func TestGammaParamsRejectsZeroMaxGamma(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("gamma:\n  maxGamma: 0\n"), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	err = cfg.GammaParams().Validate()
	assert.ErrorIs(t, err, gamma.ErrInvalidParameter)
}
