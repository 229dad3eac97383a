package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.hcl"))
	require.NoError(t, err)

	assert.Equal(t, "localhost:8080", cfg.ListenAddress())
	assert.Equal(t, "database.json", cfg.Game.DataFile)
	assert.Equal(t, 100, cfg.Game.ClaimBonus)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fluxbux.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`
server {
  address = "0.0.0.0"
  port    = 9000
}

game {
  data_file = "state.json"
  operators = ["op"]
}
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.ListenAddress())
	assert.Equal(t, "state.json", cfg.Game.DataFile)
	// Unset values fall back to defaults.
	assert.Equal(t, "backup", cfg.Game.BackupDir)
	assert.Equal(t, 5, cfg.Game.SnapshotSeconds)
	assert.Equal(t, 100, cfg.Game.ClaimBonus)
	assert.Equal(t, []string{"op"}, cfg.Game.Operators)
}

func TestLoadConfigRejectsBadHCL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fluxbux.hcl")
	require.NoError(t, os.WriteFile(path, []byte("server {"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Game.SnapshotSeconds = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Game.ClaimBonus = -1
	assert.Error(t, cfg.Validate())
}
