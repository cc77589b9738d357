// internal/channel/channel.go
package channel

import (
	"io"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tamzrod/hv-supervisor/internal/frame"
	"github.com/tamzrod/hv-supervisor/internal/register"
)

// Status is the connection state of one device channel.
// Transitions are owned exclusively by the channel.
type Status uint8

const (
	Disconnected Status = iota
	Connecting
	Ready
	Faulted
)

func (s Status) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Ready:
		return "ready"
	case Faulted:
		return "faulted"
	default:
		return "status(?)"
	}
}

var (
	// ErrConnectFailed reports a failed dial. The caller retries on its own
	// backoff schedule; the channel never retries by itself.
	ErrConnectFailed = errors.New("channel: connect failed")
	// ErrTimeout reports an exchange that did not complete within the
	// configured timeout. The channel is Faulted afterwards.
	ErrTimeout = errors.New("channel: exchange timed out")
	// ErrNotConnected reports an exchange attempted without a live link.
	ErrNotConnected = errors.New("channel: not connected")
	// ErrNotWritable reports a write to a read-only register.
	ErrNotWritable = errors.New("channel: register is not writable")
)

// Backend abstracts how the channel reaches a device, so a real network
// source and an in-process emulated one are interchangeable.
type Backend interface {
	Dial(endpoint string, timeout time.Duration) (net.Conn, error)
}

// TCPBackend dials a physical device over TCP.
type TCPBackend struct{}

func (TCPBackend) Dial(endpoint string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("tcp", endpoint, timeout)
}

// LoopbackBackend connects to an in-process device. Serve is started on the
// device half of a pipe for every dial.
type LoopbackBackend struct {
	Serve func(conn net.Conn)
}

func (b LoopbackBackend) Dial(string, time.Duration) (net.Conn, error) {
	client, device := net.Pipe()
	go b.Serve(device)
	return client, nil
}

// Channel owns one connection to one device and sequences request/response
// exchanges over it. The protocol is half-duplex: at most one outstanding
// exchange at a time, responses matched to requests by strict ordering.
//
// A channel is driven by a single goroutine; it is not safe for concurrent
// use.
type Channel struct {
	id       string
	endpoint string
	timeout  time.Duration
	backend  Backend

	conn   net.Conn
	status Status
	log    *logrus.Entry
}

// New creates a disconnected channel.
func New(id, endpoint string, timeout time.Duration, backend Backend) *Channel {
	return &Channel{
		id:       id,
		endpoint: endpoint,
		timeout:  timeout,
		backend:  backend,
		status:   Disconnected,
		log:      logrus.WithFields(logrus.Fields{"device": id, "endpoint": endpoint}),
	}
}

func (c *Channel) ID() string     { return c.id }
func (c *Channel) Status() Status { return c.status }

// Connect opens the link. On failure the channel is Disconnected, never
// silently Ready.
func (c *Channel) Connect() error {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}

	c.status = Connecting
	conn, err := c.backend.Dial(c.endpoint, c.timeout)
	if err != nil {
		c.status = Disconnected
		return errors.Wrapf(ErrConnectFailed, "device=%s endpoint=%s: %v", c.id, c.endpoint, err)
	}

	c.conn = conn
	c.status = Ready
	c.log.Debug("connected")
	return nil
}

// Close releases the socket on every exit path.
func (c *Channel) Close() error {
	c.status = Disconnected
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return errors.Wrapf(err, "device=%s: close", c.id)
}

// Exchange sends one command frame and blocks until the matching response
// arrives or the timeout elapses. On timeout or transport failure the
// channel transitions to Faulted; a decode error leaves the connection
// status unchanged (transient, the caller may retry). The expected number
// of response bytes has been consumed either way, so if the peer sent a
// frame of a different length the stream is left unsynchronized and the
// retry ends in a timeout and a reconnect.
func (c *Channel) Exchange(reg register.Register, op frame.Op, payload []byte) (frame.Frame, error) {
	if c.conn == nil || c.status != Ready {
		return frame.Frame{}, errors.Wrapf(ErrNotConnected, "device=%s status=%s", c.id, c.status)
	}

	req, err := frame.Encode(reg, op, payload)
	if err != nil {
		return frame.Frame{}, err
	}

	deadline := time.Now().Add(c.timeout)

	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return frame.Frame{}, c.fault(err, "set write deadline")
	}
	if _, err := c.conn.Write(req); err != nil {
		return frame.Frame{}, c.fault(err, "write")
	}

	// The response echoes op and addr and always carries the register
	// payload, so its size is known up front.
	buf := make([]byte, frame.Size(reg.Width))
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return frame.Frame{}, c.fault(err, "set read deadline")
	}
	if _, err := io.ReadFull(c.conn, buf); err != nil {
		return frame.Frame{}, c.fault(err, "read")
	}

	resp, err := frame.Decode(buf)
	if err != nil {
		c.log.WithField("register", reg.Kind.String()).Debugf("dropped response: %v", err)
		return frame.Frame{}, err
	}
	if resp.Addr != reg.Addr || resp.Op != op {
		return frame.Frame{}, errors.Wrapf(frame.ErrMalformedFrame,
			"response mismatch: op=%s addr=0x%02x, want op=%s addr=0x%02x", resp.Op, resp.Addr, op, reg.Addr)
	}

	return resp, nil
}

// fault marks the channel Faulted and classifies the transport error.
func (c *Channel) fault(err error, stage string) error {
	c.status = Faulted
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return errors.Wrapf(ErrTimeout, "device=%s: %s", c.id, stage)
	}
	return errors.Wrapf(err, "channel: device=%s: %s", c.id, stage)
}

// ---- REGISTER-LEVEL HELPERS ----

// ReadRegister performs one read exchange and unpacks the register value.
func (c *Channel) ReadRegister(kind register.Kind) (uint16, error) {
	reg, err := register.Lookup(kind)
	if err != nil {
		return 0, err
	}
	resp, err := c.Exchange(reg, frame.OpRead, nil)
	if err != nil {
		return 0, err
	}
	return frame.Uint16(resp.Payload)
}

// WriteRegister performs one write exchange. The device echoes the value it
// actually latched, which is returned.
func (c *Channel) WriteRegister(kind register.Kind, value uint16) (uint16, error) {
	reg, err := register.Lookup(kind)
	if err != nil {
		return 0, err
	}
	if !reg.Writable {
		return 0, errors.Wrapf(ErrNotWritable, "register=%s", kind)
	}
	resp, err := c.Exchange(reg, frame.OpWrite, frame.PutUint16(value))
	if err != nil {
		return 0, err
	}
	return frame.Uint16(resp.Payload)
}

// IsConnectionError reports whether err is a connection-level failure that
// should mark the device Faulted, as opposed to a transient protocol error.
func IsConnectionError(err error) bool {
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConnectFailed) ||
		errors.Is(err, ErrNotConnected)
}
