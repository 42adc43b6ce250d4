package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vela/internal/vm"
)

func TestDefaultMatchesSpecDefaults(t *testing.T) {
	cfg := Default()
	assert.False(t, cfg.StrictExhaustiveness)
	assert.False(t, cfg.ParallelCollections)
	assert.Equal(t, vm.MaxRecursionDepth, cfg.MaxRecursionDepth)
	assert.Equal(t, 1, cfg.ChannelCapacityDefault)
}

func TestLoadMissingFileFallsBackToDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadPartialOverridesOnlySetFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vela.yaml")
	content := "strictExhaustiveness: true\nmaxRecursionDepth: 50\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.StrictExhaustiveness)
	assert.Equal(t, 50, cfg.MaxRecursionDepth)
	// Untouched fields keep their defaults.
	assert.False(t, cfg.ParallelCollections)
	assert.Equal(t, 1, cfg.ChannelCapacityDefault)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vela.yaml")
	require.NoError(t, os.WriteFile(path, []byte("strictExhaustiveness: [this is not a bool"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
