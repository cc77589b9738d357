// internal/register/register.go
package register

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrUnknownRegister is returned by Lookup for a kind with no mapped address.
var ErrUnknownRegister = errors.New("register: unknown register kind")

// Kind identifies one addressable device parameter.
type Kind uint8

const (
	StatusFlags Kind = iota
	SetVoltage
	MeasuredVoltage
	CurrentLimit
	MeasuredCurrent
	Power
)

func (k Kind) String() string {
	switch k {
	case StatusFlags:
		return "status_flags"
	case SetVoltage:
		return "set_voltage"
	case MeasuredVoltage:
		return "measured_voltage"
	case CurrentLimit:
		return "current_limit"
	case MeasuredCurrent:
		return "measured_current"
	case Power:
		return "power"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Register describes one addressable device parameter.
// The set is fixed at build time and addresses are unique.
type Register struct {
	Kind     Kind
	Addr     uint16
	Width    uint8 // payload width in bytes
	Writable bool
}

// ---- ADDRESS MAP ----
// Layout is protocol-locked. These values define the device register map
// and MUST NOT be configurable.
//
// All registers are 16-bit. Voltage registers hold decivolts, current
// registers hold tenths of uA, Power holds 0 or 1.

var table = [...]Register{
	{Kind: StatusFlags, Addr: 0x01, Width: 2, Writable: false},
	{Kind: SetVoltage, Addr: 0x02, Width: 2, Writable: true},
	{Kind: MeasuredVoltage, Addr: 0x03, Width: 2, Writable: false},
	{Kind: CurrentLimit, Addr: 0x04, Width: 2, Writable: true},
	{Kind: MeasuredCurrent, Addr: 0x05, Width: 2, Writable: false},
	{Kind: Power, Addr: 0x06, Width: 2, Writable: true},
}

// ---- STATUS FLAG BITS ----

const (
	FlagError            uint16 = 0x01
	FlagAccumulatedError uint16 = 0x02
	FlagCurrentOverload  uint16 = 0x04
	FlagBaseVoltageError uint16 = 0x08
	FlagHardwareFailure  uint16 = 0x10
)

// Lookup resolves a kind to its register. The table is read-only after
// initialization and safe for unsynchronized concurrent reads.
func Lookup(kind Kind) (Register, error) {
	for _, r := range table {
		if r.Kind == kind {
			return r, nil
		}
	}
	return Register{}, errors.Wrapf(ErrUnknownRegister, "kind=%s", kind)
}

// All returns every mapped register in address order.
func All() []Register {
	out := make([]Register, len(table))
	copy(out, table[:])
	return out
}
