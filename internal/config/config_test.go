// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
supervisor:
  listen: "127.0.0.1:9191"
  history_file: "/var/log/hv-history.csv"
  poll:
    interval_ms: 500
  checks:
    max_voltage_difference: 1.5
    max_voltage_when_off: 10
  retry:
    connect_backoff_ms: 2000
    max_backoff_ms: 20000
  devices:
    - id: "hv-a"
      endpoint: "10.0.0.5:4100"
      timeout_ms: 5000
    - id: "hv-b"
      endpoint: "10.0.0.6:4100"
`

func write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(write(t, "config.yaml", sample))
	require.NoError(t, err)
	require.NoError(t, Validate(cfg))
	Normalize(cfg)

	s := cfg.Supervisor
	assert.Equal(t, "127.0.0.1:9191", s.Listen)
	assert.Equal(t, 500, s.Poll.IntervalMs)
	assert.Equal(t, 1.5, s.Checks.MaxVoltageDifference)
	require.Len(t, s.Devices, 2)
	assert.Equal(t, 5000, s.Devices[0].TimeoutMs)
	assert.Equal(t, DefaultTimeoutMs, s.Devices[1].TimeoutMs)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_Garbage(t *testing.T) {
	_, err := Load(write(t, "config.yaml", "supervisor: ["))
	require.Error(t, err)
}

func TestLoadProfile(t *testing.T) {
	cfg, err := Load(write(t, "config.yaml", sample))
	require.NoError(t, err)

	p, err := LoadProfile(write(t, "profile.yaml", `
profile:
  hv-a:
    voltage: 1500
    current_limit: 10
    enable: true
  hv-b:
    voltage: 900
`), cfg)
	require.NoError(t, err)
	require.Len(t, p.Devices, 2)

	a := p.Devices["hv-a"]
	require.NotNil(t, a.Voltage)
	assert.Equal(t, 1500.0, *a.Voltage)
	require.NotNil(t, a.Enable)
	assert.True(t, *a.Enable)

	b := p.Devices["hv-b"]
	assert.Nil(t, b.CurrentLimit)
	assert.Nil(t, b.Enable)
}

func TestLoadProfile_UnknownDevice(t *testing.T) {
	cfg, err := Load(write(t, "config.yaml", sample))
	require.NoError(t, err)

	_, err = LoadProfile(write(t, "profile.yaml", `
profile:
  hv-x:
    voltage: 1500
`), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hv-x")
}
