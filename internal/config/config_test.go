package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fieldsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "fieldsync.db", cfg.Database)
	assert.Equal(t, 10*time.Second, cfg.Sync.RefreshInterval.D())
	assert.Equal(t, 3*time.Second, cfg.Sync.SuccessDisplay.D())
	assert.True(t, cfg.Sync.Collapse)
	assert.Equal(t, slog.LevelInfo, cfg.Log.SlogLevel())
}

func TestLoadFile_Full(t *testing.T) {
	path := writeConfig(t, `
database: /var/lib/fieldsync/queue.db
tenant: farm-42
remote:
  base_url: https://api.example.com/v1
  health_url: https://api.example.com/healthz
  token: s3cret
  timeout: 5s
sync:
  refresh_interval: 30s
  success_display: 1500ms
  probe_interval: 1m
  apply_timeout: 2.5s
  collapse: false
  signal_file: /run/fieldsync/network
log:
  level: debug
  file: /var/log/fieldsync.log
  max_size_mb: 50
  max_backups: 0
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/fieldsync/queue.db", cfg.Database)
	assert.Equal(t, "farm-42", cfg.Tenant)
	assert.Equal(t, "https://api.example.com/v1", cfg.Remote.BaseURL)
	assert.Equal(t, "https://api.example.com/healthz", cfg.Remote.HealthURL)
	assert.Equal(t, "s3cret", cfg.Remote.Token)
	assert.Equal(t, 5*time.Second, cfg.Remote.Timeout.D())
	assert.Equal(t, 30*time.Second, cfg.Sync.RefreshInterval.D())
	assert.Equal(t, 1500*time.Millisecond, cfg.Sync.SuccessDisplay.D())
	assert.Equal(t, time.Minute, cfg.Sync.ProbeInterval.D())
	assert.Equal(t, 2500*time.Millisecond, cfg.Sync.ApplyTimeout.D())
	assert.False(t, cfg.Sync.Collapse)
	assert.Equal(t, "/run/fieldsync/network", cfg.Sync.SignalFile)
	assert.Equal(t, slog.LevelDebug, cfg.Log.SlogLevel())
	assert.Equal(t, "/var/log/fieldsync.log", cfg.Log.File)
	assert.Equal(t, 50, cfg.Log.MaxSizeMB)
	assert.Equal(t, 0, cfg.Log.MaxBackups)
}

func TestLoadFile_PartialKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "tenant: farm-7\nsync:\n  probe_interval: 5s\n")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "farm-7", cfg.Tenant)
	assert.Equal(t, 5*time.Second, cfg.Sync.ProbeInterval.D())
	assert.Equal(t, "fieldsync.db", cfg.Database)
	assert.Equal(t, 10*time.Second, cfg.Sync.RefreshInterval.D())
	assert.True(t, cfg.Sync.Collapse)
}

func TestLoadFile_EmptyFile(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown top-level key", "tenat: farm-7\n"},
		{"unknown nested key", "sync:\n  refresh: 10s\n"},
		{"bad duration", "sync:\n  refresh_interval: ten seconds\n"},
		{"bare number duration", "remote:\n  timeout: 10\n"},
		{"negative duration", "sync:\n  apply_timeout: -1s\n"},
		{"unknown log level", "log:\n  level: verbose\n"},
		{"zero max size", "log:\n  max_size_mb: 0\n"},
		{"empty database", "database: \"\"\n"},
		{"wrong type", "sync:\n  collapse: sometimes\n"},
		{"not a mapping", "- a\n- b\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad_EnvVar(t *testing.T) {
	path := writeConfig(t, "tenant: from-env\n")
	t.Setenv(EnvVar, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Tenant)
}

func TestLoad_FlagPathWinsOverEnv(t *testing.T) {
	t.Setenv(EnvVar, writeConfig(t, "tenant: from-env\n"))
	flagPath := writeConfig(t, "tenant: from-flag\n")

	cfg, err := Load(flagPath)
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.Tenant)
}

func TestLoad_NoPathUsesDefaults(t *testing.T) {
	t.Setenv(EnvVar, "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelWarn, LogConfig{Level: "WARN"}.SlogLevel())
	assert.Equal(t, slog.LevelError, LogConfig{Level: "error"}.SlogLevel())
	assert.Equal(t, slog.LevelInfo, LogConfig{Level: ""}.SlogLevel())
}
