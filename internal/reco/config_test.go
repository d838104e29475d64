package reco

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestConfigValidateRejectsBadGrids(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ThetaGridSize = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.NDistGrids = -1
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.DZGlobal = cfg.DZLocal / 2
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.MaxHeightCut = cfg.BaseHeightCut
	assert.Error(t, cfg.Validate())
}

func TestParamsApplyPartialOverlay(t *testing.T) {
	lidarHeight := 2.4
	minSamples := 20
	p := &Params{LidarHeight: &lidarHeight, MinSamples: &minSamples}

	cfg := p.Apply(DefaultConfig())
	assert.Equal(t, 2.4, cfg.LidarHeight)
	assert.Equal(t, 20, cfg.MinSamples)
	// Untouched fields keep defaults.
	assert.Equal(t, DefaultMaxSlope, cfg.MaxSlope)
	assert.Equal(t, DefaultEps, cfg.Eps)
}

func TestParamsApplyNil(t *testing.T) {
	var p *Params
	assert.Equal(t, DefaultConfig(), p.Apply(DefaultConfig()))
}

func TestLoadParamsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"lidar_height": 1.2,
		"dz_local": 0.2,
		"min_samples": 5
	}`), 0o644))

	p, err := LoadParams(path)
	require.NoError(t, err)

	cfg := p.Apply(DefaultConfig())
	assert.Equal(t, 1.2, cfg.LidarHeight)
	assert.Equal(t, 0.2, cfg.DZLocal)
	assert.Equal(t, 5, cfg.MinSamples)
	assert.Equal(t, DefaultMaxTheta, cfg.MaxTheta)
}

func TestLoadParamsRejectsNonJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
	_, err := LoadParams(path)
	assert.Error(t, err)
}

func TestLoadParamsMissingFile(t *testing.T) {
	_, err := LoadParams(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestLoadParamsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := LoadParams(path)
	assert.Error(t, err)
}
