package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsWithNoFileOrFlags(t *testing.T) {
	*configFile = ""
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "./data", cfg.SSTableDirectory)
	assert.EqualValues(t, 1<<16, cfg.BloomFilterSize)
	assert.Equal(t, 3, cfg.CompactionThreshold)
}

func TestLoadOverlaysConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body, err := json.Marshal(map[string]any{
		"sstableDirectory":  "/var/lib/shoal",
		"maxKeysPerSSTable": 500,
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, body, 0o644))

	*configFile = path
	t.Cleanup(func() { *configFile = "" })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/shoal", cfg.SSTableDirectory)
	assert.Equal(t, 500, cfg.MaxKeysPerSSTable)
	// Fields the file didn't set keep their defaults.
	assert.Equal(t, 3, cfg.CompactionThreshold)
}

func TestLoadFlagOverridesConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body, err := json.Marshal(map[string]any{"sstableDirectory": "/from-file"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, body, 0o644))

	*configFile = path
	*flagSSTableDirectory = "/from-flag"
	t.Cleanup(func() {
		*configFile = ""
		*flagSSTableDirectory = ""
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/from-flag", cfg.SSTableDirectory)
}

func TestLoadCacheDisabledFlagOverridesDefault(t *testing.T) {
	assert.False(t, defaults().CacheDisabled, "caching is on by default")

	*flagCacheDisabled = true
	t.Cleanup(func() { *flagCacheDisabled = false })

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.CacheDisabled)
}
