// internal/config/profile.go
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ProfileEntry is the startup target for one device. A nil field means the
// profile leaves that parameter alone.
type ProfileEntry struct {
	Voltage      *float64 `yaml:"voltage"`       // volts
	CurrentLimit *float64 `yaml:"current_limit"` // uA
	Enable       *bool    `yaml:"enable"`
}

// Profile maps device id to its startup entry. Devices not listed get no
// startup commands.
type Profile struct {
	Devices map[string]ProfileEntry `yaml:"profile"`
}

// LoadProfile reads a voltage profile file. Entries for device ids that are
// not in the supervised set are rejected: a profile targeting a missing
// source is almost certainly a typo over something energized.
func LoadProfile(path string, cfg *Config) (*Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "profile: read")
	}

	var p Profile
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, errors.Wrap(err, "profile: parse")
	}

	known := make(map[string]bool, len(cfg.Supervisor.Devices))
	for _, d := range cfg.Supervisor.Devices {
		known[d.ID] = true
	}
	for id := range p.Devices {
		if !known[id] {
			return nil, errors.Errorf("profile: unknown device id %q", id)
		}
	}

	return &p, nil
}
