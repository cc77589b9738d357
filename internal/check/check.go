// internal/check/check.go
package check

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tamzrod/hv-supervisor/internal/register"
)

// faultFlags are the status bits that indicate the device itself is in
// trouble, independent of what the voltage and current readings say.
const faultFlags = register.FlagCurrentOverload |
	register.FlagBaseVoltageError |
	register.FlagHardwareFailure

// Verdict classifies one polled device state.
// A non-Ok verdict is a first-class result, not an error: it is surfaced to
// the operator and the recorder, never auto-corrected.
type Verdict uint8

const (
	Ok Verdict = iota
	UnexpectedVoltageWhenOff
	OverDeviation
	OverCurrent
	HardwareFault
)

func (v Verdict) String() string {
	switch v {
	case Ok:
		return "ok"
	case UnexpectedVoltageWhenOff:
		return "unexpected_voltage_when_off"
	case OverDeviation:
		return "over_deviation"
	case OverCurrent:
		return "over_current"
	case HardwareFault:
		return "hardware_fault"
	default:
		return "verdict(?)"
	}
}

// MarshalJSON spells verdicts as their string form on the wire.
func (v Verdict) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

func (v *Verdict) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for _, candidate := range []Verdict{Ok, UnexpectedVoltageWhenOff, OverDeviation, OverCurrent, HardwareFault} {
		if candidate.String() == s {
			*v = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown verdict %q", s)
}

// Config holds the check thresholds. Constructed once at startup.
type Config struct {
	// MaxVoltageDifference is the maximal allowed difference between
	// desired and measured voltage, in volts.
	MaxVoltageDifference float64
	// MaxVoltageWhenOff is the maximal allowed measured voltage when the
	// output is disabled, in volts.
	MaxVoltageWhenOff float64
}

// Reading is one device observation handed to Evaluate.
type Reading struct {
	Enabled         bool    `json:"enabled"`
	SetVoltage      float64 `json:"set_voltage"`
	MeasuredVoltage float64 `json:"measured_voltage"`
	MeasuredCurrent float64 `json:"measured_current"`
	CurrentLimit    float64 `json:"current_limit"`
	StatusFlags     uint16  `json:"status_flags"`
}

// Result is the checker output for one device poll.
type Result struct {
	DeviceID string    `json:"device_id"`
	At       time.Time `json:"at"`
	Verdict  Verdict   `json:"verdict"`
	Reading  Reading   `json:"reading"`
}

// Evaluate classifies one reading. Pure; each poll is evaluated
// independently, any smoothing lives in the thresholds.
//
// The off-state check takes priority over the deviation check: an off
// device with residual voltage is a hazard regardless of the nominal
// target. Then the current check, then the device's own fault flags.
func Evaluate(cfg Config, deviceID string, r Reading, at time.Time) Result {
	res := Result{
		DeviceID: deviceID,
		At:       at,
		Reading:  r,
		Verdict:  Ok,
	}

	switch {
	case !r.Enabled && abs(r.MeasuredVoltage) > cfg.MaxVoltageWhenOff:
		res.Verdict = UnexpectedVoltageWhenOff
	case r.Enabled && abs(r.MeasuredVoltage-r.SetVoltage) > cfg.MaxVoltageDifference:
		res.Verdict = OverDeviation
	case r.MeasuredCurrent > r.CurrentLimit:
		res.Verdict = OverCurrent
	case r.StatusFlags&faultFlags != 0:
		res.Verdict = HardwareFault
	}

	return res
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
