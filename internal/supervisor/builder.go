// internal/supervisor/builder.go
package supervisor

import (
	"time"

	"github.com/tamzrod/hv-supervisor/internal/channel"
	"github.com/tamzrod/hv-supervisor/internal/check"
	cfg "github.com/tamzrod/hv-supervisor/internal/config"
	"github.com/tamzrod/hv-supervisor/internal/history"
)

// Build constructs a worker from validated config, one TCP-backed channel
// per listed device. Channels start Disconnected; the first tick dials them.
func Build(c cfg.Config, recorder history.Recorder) (*Worker, error) {
	conns := make([]Conn, 0, len(c.Supervisor.Devices))
	for _, d := range c.Supervisor.Devices {
		conns = append(conns, channel.New(
			d.ID,
			d.Endpoint,
			time.Duration(d.TimeoutMs)*time.Millisecond,
			channel.TCPBackend{},
		))
	}

	return New(
		Config{
			Interval: time.Duration(c.Supervisor.Poll.IntervalMs) * time.Millisecond,
			Checks: check.Config{
				MaxVoltageDifference: c.Supervisor.Checks.MaxVoltageDifference,
				MaxVoltageWhenOff:    c.Supervisor.Checks.MaxVoltageWhenOff,
			},
			ConnectBackoff: time.Duration(c.Supervisor.Retry.ConnectBackoffMs) * time.Millisecond,
			MaxBackoff:     time.Duration(c.Supervisor.Retry.MaxBackoffMs) * time.Millisecond,
		},
		conns,
		recorder,
	)
}
