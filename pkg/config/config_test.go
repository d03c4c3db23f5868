package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	assert.NoError(t, Validate(Default()))
	assert.NoError(t, Validate(HighSecurity()))
	assert.NoError(t, Validate(HighUsability()))
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8473", cfg.Server.Addr)
	assert.Equal(t, PersistBadger, cfg.Persist.Backend)
	assert.Equal(t, 7*24*time.Hour, cfg.Store.Retention)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sentinel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
persist:
  backend: none
ladder:
  low: 0.30
  medium: 0.45
  high: 0.60
  critical: 0.75
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, PersistNone, cfg.Persist.Backend)
	assert.InDelta(t, 0.45, cfg.Ladder.Medium, 1e-9)
	assert.Equal(t, ":8473", Default().Server.Addr, "defaults themselves stay untouched")
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv("SENTINEL_SERVER_ADDR", ":7777")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7777", cfg.Server.Addr)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load("/does/not/exist.yaml")
	assert.Error(t, err)
}

func TestValidateRejectsBadWatermarks(t *testing.T) {
	cfg := Default()
	cfg.Monitor.LowWatermark = 0.9
	cfg.Monitor.HighWatermark = 0.5
	assert.Error(t, Validate(cfg))
}

func TestValidateRejectsUnorderedLadder(t *testing.T) {
	cfg := Default()
	cfg.Ladder.Medium = cfg.Ladder.Critical + 0.1
	assert.Error(t, Validate(cfg))
}

func TestValidateRejectsRedisWithoutAddr(t *testing.T) {
	cfg := Default()
	cfg.Persist.Backend = PersistRedis
	assert.Error(t, Validate(cfg))

	cfg.Persist.RedisAddr = "localhost:6379"
	assert.NoError(t, Validate(cfg))
}

func TestValidateRejectsArchiveWithoutDSN(t *testing.T) {
	cfg := Default()
	cfg.Archive.Enabled = true
	assert.Error(t, Validate(cfg))

	cfg.Archive.DSN = "postgres://sentinel@localhost/sentinel"
	assert.NoError(t, Validate(cfg))
}

func TestValidateRejectsRetentionBeyondGrace(t *testing.T) {
	cfg := Default()
	cfg.Store.Retention = cfg.Store.Grace + time.Hour
	assert.Error(t, Validate(cfg))
}
