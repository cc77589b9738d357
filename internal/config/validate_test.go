// internal/config/validate_test.go
package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// helper to build a minimal valid config quickly
func valid() *Config {
	return &Config{
		Supervisor: SupervisorConfig{
			Checks: ChecksConfig{
				MaxVoltageDifference: 1,
				MaxVoltageWhenOff:    10,
			},
			Devices: []DeviceConfig{
				{ID: "hv-a", Endpoint: "10.0.0.5:4100"},
				{ID: "hv-b", Endpoint: "10.0.0.6:4100"},
			},
		},
	}
}

// ---- tests ----

func TestValidate_Valid(t *testing.T) {
	require.NoError(t, Validate(valid()))
}

func TestValidate_NoDevices(t *testing.T) {
	cfg := valid()
	cfg.Supervisor.Devices = nil
	require.Error(t, Validate(cfg))
}

func TestValidate_DuplicateID(t *testing.T) {
	cfg := valid()
	cfg.Supervisor.Devices[1].ID = "hv-a"
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hv-a")
}

func TestValidate_DuplicateEndpoint(t *testing.T) {
	cfg := valid()
	cfg.Supervisor.Devices[1].Endpoint = cfg.Supervisor.Devices[0].Endpoint
	require.Error(t, Validate(cfg))
}

func TestValidate_BadEndpoint(t *testing.T) {
	cfg := valid()
	cfg.Supervisor.Devices[0].Endpoint = "not-an-endpoint"
	require.Error(t, Validate(cfg))
}

func TestValidate_MissingThresholds(t *testing.T) {
	cfg := valid()
	cfg.Supervisor.Checks.MaxVoltageDifference = 0
	require.Error(t, Validate(cfg), "thresholds must be explicit")

	cfg = valid()
	cfg.Supervisor.Checks.MaxVoltageWhenOff = 0
	require.Error(t, Validate(cfg))
}

func TestValidate_BackoffOrdering(t *testing.T) {
	cfg := valid()
	cfg.Supervisor.Retry.ConnectBackoffMs = 5000
	cfg.Supervisor.Retry.MaxBackoffMs = 1000
	require.Error(t, Validate(cfg))
}

func TestNormalize_Defaults(t *testing.T) {
	cfg := valid()
	require.NoError(t, Validate(cfg))
	Normalize(cfg)

	assert.Equal(t, DefaultIntervalMs, cfg.Supervisor.Poll.IntervalMs)
	assert.Equal(t, DefaultTimeoutMs, cfg.Supervisor.Devices[0].TimeoutMs)
	assert.Equal(t, DefaultConnectBackoffMs, cfg.Supervisor.Retry.ConnectBackoffMs)
	assert.Equal(t, DefaultMaxBackoffMs, cfg.Supervisor.Retry.MaxBackoffMs)
	assert.Equal(t, DefaultListen, cfg.Supervisor.Listen)
	assert.Equal(t, DefaultHistoryFile, cfg.Supervisor.HistoryFile)
}

func TestNormalize_KeepsExplicitValues(t *testing.T) {
	cfg := valid()
	cfg.Supervisor.Poll.IntervalMs = 250
	cfg.Supervisor.Devices[0].TimeoutMs = 3000
	require.NoError(t, Validate(cfg))
	Normalize(cfg)

	assert.Equal(t, 250, cfg.Supervisor.Poll.IntervalMs)
	assert.Equal(t, 3000, cfg.Supervisor.Devices[0].TimeoutMs)
	assert.Equal(t, DefaultTimeoutMs, cfg.Supervisor.Devices[1].TimeoutMs)
}
