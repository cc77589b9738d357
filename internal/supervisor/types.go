// internal/supervisor/types.go
package supervisor

import (
	"time"

	"github.com/tamzrod/hv-supervisor/internal/channel"
	"github.com/tamzrod/hv-supervisor/internal/check"
	"github.com/tamzrod/hv-supervisor/internal/register"
)

// Conn is the exact contract the worker needs from a device channel.
type Conn interface {
	ID() string
	Status() channel.Status
	Connect() error
	Close() error
	ReadRegister(kind register.Kind) (uint16, error)
	WriteRegister(kind register.Kind, value uint16) (uint16, error)
}

// CommandKind selects the parameter an operator command targets.
type CommandKind uint8

const (
	CmdSetVoltage CommandKind = iota
	CmdSetCurrentLimit
	CmdSetPower
)

func (k CommandKind) String() string {
	switch k {
	case CmdSetVoltage:
		return "set_voltage"
	case CmdSetCurrentLimit:
		return "set_current_limit"
	case CmdSetPower:
		return "set_power"
	default:
		return "command(?)"
	}
}

// Command is one operator request. Per device and kind, a newer command
// supersedes an older not-yet-applied one; commands never queue up.
type Command struct {
	DeviceID string
	Kind     CommandKind
	Voltage  float64 // volts, CmdSetVoltage
	Limit    float64 // uA, CmdSetCurrentLimit
	On       bool    // CmdSetPower
	At       time.Time
}

// Snapshot is the latest observed state of one device, published whole after
// every per-device poll. Readers always get a copy, never shared innards.
type Snapshot struct {
	DeviceID  string         `json:"device_id"`
	Status    channel.Status `json:"-"`
	StatusStr string         `json:"status"`
	HasResult bool           `json:"has_result"`
	Result    check.Result   `json:"result"`
	LastError string         `json:"last_error,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// ---- UNIT CONVERSION ----
// Voltage registers hold decivolts, current registers hold tenths of uA.
// The worker deals in volts and uA everywhere else.

// maxRegisterValue is the largest voltage (V) or current (uA) a 16-bit
// tenths register can hold. Submit rejects anything outside [0, max], so a
// mis-typed target is an error, never a silently different value.
const maxRegisterValue = 65535.0 / 10

func toTenths(v float64) uint16 {
	return uint16(v*10 + 0.5)
}

func fromTenths(u uint16) float64 {
	return float64(u) / 10
}
