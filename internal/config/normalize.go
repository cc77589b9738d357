// internal/config/normalize.go
package config

// Defaults applied by Normalize. Check thresholds deliberately have none.
const (
	DefaultIntervalMs       = 1000
	DefaultTimeoutMs        = 10000
	DefaultConnectBackoffMs = 1000
	DefaultMaxBackoffMs     = 10000
	DefaultListen           = "127.0.0.1:9090"
	DefaultHistoryFile      = "history.csv"
)

// Normalize applies post-validation defaults.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}
	s := &cfg.Supervisor

	if s.Listen == "" {
		s.Listen = DefaultListen
	}
	if s.HistoryFile == "" {
		s.HistoryFile = DefaultHistoryFile
	}
	if s.Poll.IntervalMs == 0 {
		s.Poll.IntervalMs = DefaultIntervalMs
	}
	if s.Retry.ConnectBackoffMs == 0 {
		s.Retry.ConnectBackoffMs = DefaultConnectBackoffMs
	}
	if s.Retry.MaxBackoffMs == 0 {
		s.Retry.MaxBackoffMs = DefaultMaxBackoffMs
	}

	for i := range s.Devices {
		if s.Devices[i].TimeoutMs == 0 {
			s.Devices[i].TimeoutMs = DefaultTimeoutMs
		}
	}
}
