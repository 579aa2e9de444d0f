package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "inventory.yaml", cfg.Inventory.Path)
	assert.Equal(t, 30*time.Second, cfg.WatchInterval())
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout())
	assert.True(t, cfg.Reload())
	assert.Equal(t, []string{"dns", "web"}, cfg.IP.Sources)
	assert.NoError(t, cfg.Validate())
	assert.ErrorIs(t, cfg.RequireToken(), ErrMissingToken)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "cddns.yaml", `
token: abc
list:
  include_zones: ["example\\.com"]
inventory:
  path: /etc/cddns/inventory.yaml
  force_update: true
  watch_interval_ms: 60000
  reload: false
ip:
  sources: [static]
  ipv4: 203.0.113.9
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "abc", cfg.Token)
	assert.Equal(t, []string{`example\.com`}, cfg.List.IncludeZones)
	assert.Equal(t, "/etc/cddns/inventory.yaml", cfg.Inventory.Path)
	assert.True(t, cfg.Inventory.ForceUpdate)
	assert.Equal(t, time.Minute, cfg.WatchInterval())
	assert.False(t, cfg.Reload())
	assert.Equal(t, "203.0.113.9", cfg.IP.IPv4)
	assert.NoError(t, cfg.Validate())
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "cddns.toml", `
token = "abc"

[inventory]
path = "records.yaml"
force_prune = true
watch_interval_ms = 5000
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "abc", cfg.Token)
	assert.Equal(t, "records.yaml", cfg.Inventory.Path)
	assert.True(t, cfg.Inventory.ForcePrune)
	assert.Equal(t, 5*time.Second, cfg.WatchInterval())
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeFile(t, "cddns.yaml", "tokn: abc\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"CDDNS_TOKEN":             "from-env",
		"CDDNS_FORCE_UPDATE":      "true",
		"CDDNS_FORCE_PRUNE":       "maybe",
		"CDDNS_WATCH_INTERVAL_MS": "1500",
		"CDDNS_LOG_ENV":           "prod",
		"CDDNS_IP_SOURCES":        "web,dns",
	}
	cfg := Default()
	cfg.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})

	assert.Equal(t, "from-env", cfg.Token)
	assert.True(t, cfg.Inventory.ForceUpdate)
	assert.False(t, cfg.Inventory.ForcePrune, "unparseable values are ignored")
	assert.Equal(t, 1500*time.Millisecond, cfg.WatchInterval())
	assert.Equal(t, "prod", cfg.Log.Env)
	assert.Equal(t, []string{"web", "dns"}, cfg.IP.Sources)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Inventory.WatchIntervalMS = -1
	cfg.IP.Sources = []string{"carrier-pigeon"}
	cfg.IP.IPv6 = "203.0.113.9"

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInterval)
	assert.Contains(t, err.Error(), "carrier-pigeon")
	assert.Contains(t, err.Error(), "ip.ipv6")
}

func TestSaveRoundTrip(t *testing.T) {
	for _, name := range []string{"cddns.yaml", "cddns.toml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			cfg := Default()
			cfg.Token = "secret"
			cfg.Inventory.ForceUpdate = true

			require.NoError(t, Save(path, cfg))
			loaded, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, loaded)
		})
	}
}

func TestRedacted(t *testing.T) {
	cfg := Default()
	cfg.Token = "secret"
	assert.Equal(t, "<redacted>", cfg.Redacted().Token)
	assert.Equal(t, "secret", cfg.Token)
}
