// internal/config/config.go
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Supervisor SupervisorConfig `yaml:"supervisor"`
}

type SupervisorConfig struct {
	// Listen is the address of the local control/status HTTP surface.
	Listen string `yaml:"listen"`
	// HistoryFile is the CSV file device readings are appended to.
	HistoryFile string `yaml:"history_file"`
	// Profile optionally points at a voltage profile applied at startup.
	Profile string `yaml:"profile"`

	Poll    PollConfig     `yaml:"poll"`
	Checks  ChecksConfig   `yaml:"checks"`
	Retry   RetryConfig    `yaml:"retry"`
	Devices []DeviceConfig `yaml:"devices"`
}

// ---- DEVICE ----

type DeviceConfig struct {
	ID        string `yaml:"id"`
	Endpoint  string `yaml:"endpoint"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// ---- POLL ----

type PollConfig struct {
	IntervalMs int `yaml:"interval_ms"`
}

// ---- CHECKS ----
// Safety thresholds carry real consequences, so they have no defaults:
// the operator states them explicitly or the config is rejected.

type ChecksConfig struct {
	// MaxVoltageDifference is the maximal allowed difference between
	// desired and measured voltage, in volts.
	MaxVoltageDifference float64 `yaml:"max_voltage_difference"`
	// MaxVoltageWhenOff is the maximal allowed measured voltage while the
	// output is off, in volts.
	MaxVoltageWhenOff float64 `yaml:"max_voltage_when_off"`
}

// ---- RETRY ----

type RetryConfig struct {
	ConnectBackoffMs int `yaml:"connect_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms"`
}

// Load reads and parses a config file. Validate and Normalize are separate
// steps, run by the daemon before anything is built.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "config: read")
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, errors.Wrap(err, "config: parse")
	}
	return &cfg, nil
}
