// internal/config/validate.go
package config

import (
	"fmt"
	"net"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	s := cfg.Supervisor

	// ------------------------------------------------------------
	// DEVICE LIST
	// ------------------------------------------------------------

	if len(s.Devices) == 0 {
		return fmt.Errorf("at least one device is required")
	}

	seenID := make(map[string]bool)
	seenEndpoint := make(map[string]string)

	for _, d := range s.Devices {
		if d.ID == "" {
			return fmt.Errorf("device with endpoint %q: id required", d.Endpoint)
		}
		if seenID[d.ID] {
			return fmt.Errorf("device id %q used more than once", d.ID)
		}
		seenID[d.ID] = true

		if d.Endpoint == "" {
			return fmt.Errorf("device %q: endpoint required", d.ID)
		}
		if _, _, err := net.SplitHostPort(d.Endpoint); err != nil {
			return fmt.Errorf("device %q: endpoint %q is not host:port: %v", d.ID, d.Endpoint, err)
		}
		if prev, dup := seenEndpoint[d.Endpoint]; dup {
			return fmt.Errorf("endpoint %q used by devices %q and %q", d.Endpoint, prev, d.ID)
		}
		seenEndpoint[d.Endpoint] = d.ID

		if d.TimeoutMs < 0 {
			return fmt.Errorf("device %q: timeout_ms must be >= 0", d.ID)
		}
	}

	// ------------------------------------------------------------
	// CHECK THRESHOLDS (mandatory, a mis-set source is a hazard)
	// ------------------------------------------------------------

	if s.Checks.MaxVoltageDifference <= 0 {
		return fmt.Errorf("checks.max_voltage_difference must be > 0")
	}
	if s.Checks.MaxVoltageWhenOff <= 0 {
		return fmt.Errorf("checks.max_voltage_when_off must be > 0")
	}

	// ------------------------------------------------------------
	// TIMING
	// ------------------------------------------------------------

	if s.Poll.IntervalMs < 0 {
		return fmt.Errorf("poll.interval_ms must be >= 0")
	}
	if s.Retry.ConnectBackoffMs < 0 || s.Retry.MaxBackoffMs < 0 {
		return fmt.Errorf("retry backoffs must be >= 0")
	}
	if s.Retry.MaxBackoffMs != 0 && s.Retry.MaxBackoffMs < s.Retry.ConnectBackoffMs {
		return fmt.Errorf("retry.max_backoff_ms must be >= retry.connect_backoff_ms")
	}

	return nil
}
