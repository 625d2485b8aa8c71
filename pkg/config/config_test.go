package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fleetlink.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  url: wss://fleet.example.com/uplink
  api_key: secret-key
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "fleetlink", cfg.Server.ClientName)
	assert.NotEmpty(t, cfg.Cache.Path)
	assert.Empty(t, cfg.Metrics.Addr)

	settings := cfg.Settings()
	assert.Equal(t, "wss://fleet.example.com/uplink", settings.ServerURL)
	assert.Equal(t, "secret-key", settings.APIKey)
	assert.Equal(t, "fleetlink", settings.ClientName)
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  url: ws://localhost:8080/uplink
  api_key: dev-key
  client_name: Test Rig
cache:
  path: /tmp/fleetlink-test/cache.json
log:
  level: debug
  json: true
metrics:
  addr: ":9290"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Test Rig", cfg.Server.ClientName)
	assert.Equal(t, "/tmp/fleetlink-test/cache.json", cfg.Cache.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, ":9290", cfg.Metrics.Addr)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			"missing url",
			"server:\n  api_key: k\n",
			"server.url is required",
		},
		{
			"missing api key",
			"server:\n  url: wss://fleet.example.com\n",
			"server.api_key is required",
		},
		{
			"wrong scheme",
			"server:\n  url: https://fleet.example.com\n  api_key: k\n",
			"must use ws:// or wss://",
		},
		{
			"not yaml",
			"{{{{",
			"parse config",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}
