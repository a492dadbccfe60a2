package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	dataDir := t.TempDir()

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), dataDir)
	require.NoError(t, err)

	want := DefaultConfig()
	want.DataDir = dataDir
	assert.Equal(t, &want, cfg)
}

func TestLoad_FileOverlay(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: https://api.example.com/v1
  timeout: 5s
realtime:
  url: wss://rt.example.com/socket
  pong_wait: 20s
  backoff_max: 10s
  refresh_on_reconnect: true
session:
  dark_store_id: store-9
storage:
  driver: jsonfile
push:
  enabled: false
metrics:
  addr: 127.0.0.1:9464
`)

	cfg, err := Load(path, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com/v1", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, "wss://rt.example.com/socket", cfg.Realtime.URL)
	assert.Equal(t, 20*time.Second, cfg.Realtime.PongWait)
	assert.Equal(t, 54*time.Second, DefaultConfig().Realtime.PingInterval)
	assert.Equal(t, 10*time.Second, cfg.Realtime.BackoffMax)
	assert.Equal(t, time.Second, cfg.Realtime.BackoffInitial)
	assert.True(t, cfg.Realtime.RefreshOnReconnect)
	assert.Equal(t, "store-9", cfg.Session.DarkStoreID)
	assert.Equal(t, DriverJSONFile, cfg.Storage.Driver)
	assert.False(t, cfg.Push.Enabled)
	assert.Equal(t, "127.0.0.1:9464", cfg.Metrics.Addr)
}

func TestLoad_PingIntervalDerivedFromPongWait(t *testing.T) {
	path := writeConfig(t, `
realtime:
  ping_interval: 0s
  pong_wait: 10s
`)

	cfg, err := Load(path, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 9*time.Second, cfg.Realtime.PingInterval)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
session:
  token: from-file
push:
  token: push-from-file
`)
	t.Setenv(EnvToken, "from-env")
	t.Setenv(EnvPushToken, "push-from-env")
	t.Setenv(EnvRealtimeURL, "wss://env.example.com/ws")

	cfg, err := Load(path, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Session.Token)
	assert.Equal(t, "push-from-env", cfg.Push.Token)
	assert.Equal(t, "wss://env.example.com/ws", cfg.Realtime.URL)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{name: "bad yaml", content: "api: [", wantErr: "parse config file"},
		{name: "bad driver", content: "storage:\n  driver: redis\n", wantErr: "storage.driver"},
		{name: "ping not below pong", content: "realtime:\n  ping_interval: 60s\n  pong_wait: 30s\n", wantErr: "ping_interval"},
		{name: "backoff max below initial", content: "realtime:\n  backoff_initial: 10s\n  backoff_max: 1s\n", wantErr: "backoff_max"},
		{name: "negative timeout", content: "api:\n  timeout: -1s\n", wantErr: "api.timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content), t.TempDir())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_EmptyDataDir(t *testing.T) {
	_, err := Load("", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data directory")
}

func TestPaths(t *testing.T) {
	cfg := &Config{DataDir: "/var/lib/darkstore"}

	assert.Equal(t, "/var/lib/darkstore/state", cfg.StateDir())
	assert.Equal(t, "/var/lib/darkstore/logs/darkstore.log", cfg.LogFile())
}
