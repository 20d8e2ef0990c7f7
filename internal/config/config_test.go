package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoadOverlaysJSONFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	data, err := json.Marshal(map[string]interface{}{
		"server": map[string]interface{}{"port": 9090},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, Default().Resources.MaxConcurrentTasks, cfg.Resources.MaxConcurrentTasks)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Port, cfg.Server.Port)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("MEDIAJOBD_SERVER_PORT", "7000")
	t.Setenv("MEDIAJOBD_TOOLS_CODEC", "ffmpeg-custom")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "ffmpeg-custom", cfg.Tools.Codec)
}

func TestValidateRejectsOutOfRangeFields(t *testing.T) {
	cfg := Default()
	cfg.Resources.MaxConcurrentTasks = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Resources.MaxCPUPercent = 10
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Runner.MaxConcurrentRuns = 0
	assert.Error(t, cfg.Validate())
}

func TestMinFreeDiskBytesValueParsesConfiguredSize(t *testing.T) {
	cfg := Default()
	cfg.Resources.MinFreeDiskBytes = "10GiB"
	assert.EqualValues(t, 10<<30, cfg.Resources.MinFreeDiskBytesValue())
}
