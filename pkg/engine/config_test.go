package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
echo_canceller:
  enabled: false
noise_suppression:
  level: very_high
gain_controller1:
  mode: fixed_digital
  compression_gain_db: 12
`), 0640))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.False(t, cfg.EchoCanceller.Enabled)
	assert.Equal(t, NoiseSuppressionVeryHigh, cfg.NoiseSuppression.Level)
	assert.Equal(t, GainControllerFixedDigital, cfg.GainController1.Mode)
	assert.Equal(t, 12, cfg.GainController1.CompressionGainDB)
	// Everything not overridden keeps the default.
	assert.True(t, cfg.HighPassFilter.Enabled)
	assert.Equal(t, 3, cfg.GainController1.TargetLevelDBFS)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
}

func TestConfigEnums(t *testing.T) {
	t.Run("NoiseSuppressionLevel", func(t *testing.T) {
		var l NoiseSuppressionLevel
		require.NoError(t, yaml.Unmarshal([]byte(`moderate`), &l))
		assert.Equal(t, NoiseSuppressionModerate, l)
		assert.Equal(t, "moderate", l.String())

		require.Error(t, yaml.Unmarshal([]byte(`loud`), &l))
	})

	t.Run("GainController1Mode", func(t *testing.T) {
		var m GainController1Mode
		require.NoError(t, yaml.Unmarshal([]byte(`adaptive_digital`), &m))
		assert.Equal(t, GainControllerAdaptiveDigital, m)
		assert.Equal(t, "adaptive_digital", m.String())

		require.Error(t, yaml.Unmarshal([]byte(`manual`), &m))
	})
}
