// internal/supervisor/worker.go
package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tamzrod/hv-supervisor/internal/channel"
	"github.com/tamzrod/hv-supervisor/internal/check"
	"github.com/tamzrod/hv-supervisor/internal/frame"
	"github.com/tamzrod/hv-supervisor/internal/history"
	"github.com/tamzrod/hv-supervisor/internal/register"
)

var (
	// ErrUnknownDevice is returned for commands addressing a device not in
	// the supervised set.
	ErrUnknownDevice = errors.New("supervisor: unknown device")
	// ErrValueOutOfRange is returned for a commanded voltage or current
	// limit the device registers cannot represent.
	ErrValueOutOfRange = errors.New("supervisor: value out of register range")
)

// Config is the runtime config the worker needs.
type Config struct {
	Interval       time.Duration
	Checks         check.Config
	ConnectBackoff time.Duration // added per consecutive connect failure
	MaxBackoff     time.Duration // backoff cap
}

// deviceState is worker-owned per-device state. Only the worker goroutine
// touches it.
type deviceState struct {
	conn        Conn
	pending     map[CommandKind]Command
	failures    int
	nextConnect time.Time
}

// Worker drives one polling/command cycle across all device channels per
// tick, indefinitely, until its context is cancelled. One device's failure
// never blocks or aborts the cycle for others.
type Worker struct {
	cfg      Config
	devices  []*deviceState
	byID     map[string]*deviceState
	recorder history.Recorder

	cmds chan Command

	mu    sync.RWMutex
	snaps map[string]Snapshot

	log *logrus.Entry
}

// New creates a worker over immutable config.
func New(cfg Config, conns []Conn, recorder history.Recorder) (*Worker, error) {
	if cfg.Interval <= 0 {
		return nil, errors.New("supervisor: interval must be > 0")
	}
	if len(conns) == 0 {
		return nil, errors.New("supervisor: at least one device required")
	}
	if cfg.ConnectBackoff <= 0 {
		cfg.ConnectBackoff = time.Second
	}
	if cfg.MaxBackoff < cfg.ConnectBackoff {
		cfg.MaxBackoff = 10 * cfg.ConnectBackoff
	}

	w := &Worker{
		cfg:      cfg,
		byID:     make(map[string]*deviceState, len(conns)),
		recorder: recorder,
		cmds:     make(chan Command, 256),
		snaps:    make(map[string]Snapshot, len(conns)),
		log:      logrus.WithField("component", "supervisor"),
	}

	for _, c := range conns {
		if _, dup := w.byID[c.ID()]; dup {
			return nil, errors.Errorf("supervisor: duplicate device id %q", c.ID())
		}
		d := &deviceState{conn: c, pending: make(map[CommandKind]Command)}
		w.devices = append(w.devices, d)
		w.byID[c.ID()] = d
		w.publish(d, "")
	}

	return w, nil
}

// ---- OPERATOR COMMANDS ----

// Submit enqueues one operator command. The mailbox is drained at the start
// of every tick; per device and kind the newest command wins. Values the
// device registers cannot hold are rejected here, before anything is
// queued.
func (w *Worker) Submit(cmd Command) error {
	if _, ok := w.byID[cmd.DeviceID]; !ok {
		return errors.Wrapf(ErrUnknownDevice, "id=%q", cmd.DeviceID)
	}
	switch cmd.Kind {
	case CmdSetVoltage:
		if cmd.Voltage < 0 || cmd.Voltage > maxRegisterValue {
			return errors.Wrapf(ErrValueOutOfRange, "voltage %.1f V, representable 0..%.1f V", cmd.Voltage, maxRegisterValue)
		}
	case CmdSetCurrentLimit:
		if cmd.Limit < 0 || cmd.Limit > maxRegisterValue {
			return errors.Wrapf(ErrValueOutOfRange, "current limit %.1f uA, representable 0..%.1f uA", cmd.Limit, maxRegisterValue)
		}
	}
	if cmd.At.IsZero() {
		cmd.At = time.Now()
	}

	select {
	case w.cmds <- cmd:
		return nil
	default:
		return errors.Errorf("supervisor: command mailbox full, dropped %s for %s", cmd.Kind, cmd.DeviceID)
	}
}

// SetVoltage requests a new target voltage, in volts.
func (w *Worker) SetVoltage(deviceID string, volts float64) error {
	return w.Submit(Command{DeviceID: deviceID, Kind: CmdSetVoltage, Voltage: volts})
}

// SetCurrentLimit requests a new current limit, in uA.
func (w *Worker) SetCurrentLimit(deviceID string, limit float64) error {
	return w.Submit(Command{DeviceID: deviceID, Kind: CmdSetCurrentLimit, Limit: limit})
}

// SetPower requests the output on or off.
func (w *Worker) SetPower(deviceID string, on bool) error {
	return w.Submit(Command{DeviceID: deviceID, Kind: CmdSetPower, On: on})
}

// ---- SNAPSHOTS ----

// Snapshot returns the latest published state for one device.
func (w *Worker) Snapshot(deviceID string) (Snapshot, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	s, ok := w.snaps[deviceID]
	return s, ok
}

// Snapshots returns the latest state of every device, in list order.
func (w *Worker) Snapshots() []Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]Snapshot, 0, len(w.devices))
	for _, d := range w.devices {
		out = append(out, w.snaps[d.conn.ID()])
	}
	return out
}

// publish replaces the device snapshot whole. Must not be called with w.mu
// held.
func (w *Worker) publish(d *deviceState, lastError string) {
	id := d.conn.ID()

	w.mu.Lock()
	prev := w.snaps[id]
	next := Snapshot{
		DeviceID:  id,
		Status:    d.conn.Status(),
		StatusStr: d.conn.Status().String(),
		HasResult: prev.HasResult,
		Result:    prev.Result,
		LastError: lastError,
		UpdatedAt: time.Now(),
	}
	w.snaps[id] = next
	w.mu.Unlock()
}

func (w *Worker) publishResult(d *deviceState, res check.Result) {
	id := d.conn.ID()

	w.mu.Lock()
	w.snaps[id] = Snapshot{
		DeviceID:  id,
		Status:    d.conn.Status(),
		StatusStr: d.conn.Status().String(),
		HasResult: true,
		Result:    res,
		UpdatedAt: time.Now(),
	}
	w.mu.Unlock()
}

// ---- TICK ----

// tick runs one polling/command cycle over all devices. Cancellation is
// honored between devices only; an in-flight exchange always completes or
// times out first.
func (w *Worker) tick(ctx context.Context) {
	w.drainCommands()

	for _, d := range w.devices {
		select {
		case <-ctx.Done():
			return
		default:
		}
		w.pollDevice(d)
	}
}

// drainCommands moves every queued command into the per-device pending
// tables. Later commands for the same device and kind overwrite earlier
// ones.
func (w *Worker) drainCommands() {
	for {
		select {
		case cmd := <-w.cmds:
			d, ok := w.byID[cmd.DeviceID]
			if !ok {
				continue
			}
			if prev, exists := d.pending[cmd.Kind]; exists {
				w.log.WithFields(logrus.Fields{
					"device":  cmd.DeviceID,
					"command": cmd.Kind.String(),
				}).Debugf("superseding pending command from %s", prev.At.Format(time.RFC3339))
			}
			d.pending[cmd.Kind] = cmd
		default:
			return
		}
	}
}

// applyOrder fixes the write sequence within a tick: targets first, the
// power switch last, so a source is never enabled before its setpoint and
// limit are in place.
var applyOrder = []CommandKind{CmdSetVoltage, CmdSetCurrentLimit, CmdSetPower}

func (w *Worker) pollDevice(d *deviceState) {
	id := d.conn.ID()

	if d.conn.Status() != channel.Ready {
		if !w.reconnect(d) {
			return
		}
	}

	// Pending writes go out before the reads of the same tick.
	for _, kind := range applyOrder {
		cmd, ok := d.pending[kind]
		if !ok {
			continue
		}
		if err := w.applyCommand(d, cmd); err != nil {
			if frame.IsProtocolError(err) {
				// Dropped response; the write stays pending for the next
				// tick.
				w.log.WithField("device", id).Warnf("command %s dropped: %v", kind, err)
				continue
			}
			w.connFailure(d, err)
			return
		}
		delete(d.pending, kind)
	}

	reading, err := w.readDevice(d)
	if err != nil {
		if frame.IsProtocolError(err) {
			// No usable poll this tick; connection is still fine.
			w.log.WithField("device", id).Warnf("poll dropped: %v", err)
			w.publish(d, err.Error())
			return
		}
		w.connFailure(d, err)
		return
	}

	res := check.Evaluate(w.cfg.Checks, id, reading, time.Now())
	if res.Verdict != check.Ok {
		w.log.WithFields(logrus.Fields{
			"device":   id,
			"verdict":  res.Verdict.String(),
			"set":      reading.SetVoltage,
			"measured": reading.MeasuredVoltage,
		}).Warn("safety check failed")
	}

	if err := w.recorder.Append(res); err != nil {
		// Surfaced, never retried; polling goes on.
		w.log.WithField("device", id).Errorf("history append failed: %v", err)
	}

	w.publishResult(d, res)
}

// reconnect attempts to restore a dead link, honoring the backoff schedule.
// Returns true when the channel is Ready.
func (w *Worker) reconnect(d *deviceState) bool {
	now := time.Now()
	if now.Before(d.nextConnect) {
		return false
	}

	if err := d.conn.Connect(); err != nil {
		d.failures++
		backoff := time.Duration(d.failures) * w.cfg.ConnectBackoff
		if backoff > w.cfg.MaxBackoff {
			backoff = w.cfg.MaxBackoff
		}
		d.nextConnect = now.Add(backoff)
		w.log.WithFields(logrus.Fields{
			"device":   d.conn.ID(),
			"failures": d.failures,
			"backoff":  backoff.String(),
		}).Errorf("connect failed: %v", err)
		w.publish(d, err.Error())
		return false
	}

	d.failures = 0
	d.nextConnect = time.Time{}
	return true
}

// connFailure marks the device faulted in the published state and schedules
// the reconnect.
func (w *Worker) connFailure(d *deviceState, err error) {
	d.failures++
	backoff := time.Duration(d.failures) * w.cfg.ConnectBackoff
	if backoff > w.cfg.MaxBackoff {
		backoff = w.cfg.MaxBackoff
	}
	d.nextConnect = time.Now().Add(backoff)

	w.log.WithField("device", d.conn.ID()).Errorf("exchange failed: %v", err)
	w.publish(d, err.Error())
}

func (w *Worker) applyCommand(d *deviceState, cmd Command) error {
	switch cmd.Kind {
	case CmdSetVoltage:
		_, err := w.writeReg(d, register.SetVoltage, toTenths(cmd.Voltage))
		return err
	case CmdSetCurrentLimit:
		_, err := w.writeReg(d, register.CurrentLimit, toTenths(cmd.Limit))
		return err
	case CmdSetPower:
		var v uint16
		if cmd.On {
			v = 1
		}
		_, err := w.writeReg(d, register.Power, v)
		return err
	default:
		return errors.Errorf("supervisor: unsupported command kind %d", cmd.Kind)
	}
}

// readDevice polls the full observable state, in fixed register order.
func (w *Worker) readDevice(d *deviceState) (check.Reading, error) {
	var r check.Reading

	set, err := w.readReg(d, register.SetVoltage)
	if err != nil {
		return r, err
	}
	power, err := w.readReg(d, register.Power)
	if err != nil {
		return r, err
	}
	mes, err := w.readReg(d, register.MeasuredVoltage)
	if err != nil {
		return r, err
	}
	cur, err := w.readReg(d, register.MeasuredCurrent)
	if err != nil {
		return r, err
	}
	lim, err := w.readReg(d, register.CurrentLimit)
	if err != nil {
		return r, err
	}
	flags, err := w.readReg(d, register.StatusFlags)
	if err != nil {
		return r, err
	}

	r.StatusFlags = flags
	r.Enabled = power != 0
	r.SetVoltage = fromTenths(set)
	r.MeasuredVoltage = fromTenths(mes)
	r.MeasuredCurrent = fromTenths(cur)
	r.CurrentLimit = fromTenths(lim)
	return r, nil
}

// readReg retries a dropped response once before giving up on the register
// for this tick.
func (w *Worker) readReg(d *deviceState, kind register.Kind) (uint16, error) {
	v, err := d.conn.ReadRegister(kind)
	if err != nil && frame.IsProtocolError(err) {
		v, err = d.conn.ReadRegister(kind)
	}
	return v, err
}

func (w *Worker) writeReg(d *deviceState, kind register.Kind, value uint16) (uint16, error) {
	v, err := d.conn.WriteRegister(kind, value)
	if err != nil && frame.IsProtocolError(err) {
		v, err = d.conn.WriteRegister(kind, value)
	}
	return v, err
}

// closeAll releases every channel on shutdown.
func (w *Worker) closeAll() {
	for _, d := range w.devices {
		if err := d.conn.Close(); err != nil {
			w.log.WithField("device", d.conn.ID()).Errorf("close failed: %v", err)
		}
		w.publish(d, "")
	}
}
