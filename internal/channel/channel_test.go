// internal/channel/channel_test.go
package channel

import (
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/tamzrod/hv-supervisor/internal/emulator"
	"github.com/tamzrod/hv-supervisor/internal/frame"
	"github.com/tamzrod/hv-supervisor/internal/register"
)

type failingBackend struct{}

func (failingBackend) Dial(string, time.Duration) (net.Conn, error) {
	return nil, errors.New("connection refused")
}

func emulatedChannel(src *emulator.Source) *Channel {
	return New("dev-1", "loopback", time.Second, LoopbackBackend{Serve: src.ServeConn})
}

func TestConnect_FailureLeavesDisconnected(t *testing.T) {
	c := New("dev-1", "10.0.0.1:4100", time.Second, failingBackend{})

	err := c.Connect()
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if !errors.Is(err, ErrConnectFailed) {
		t.Fatalf("expected ErrConnectFailed, got %v", err)
	}
	if c.Status() != Disconnected {
		t.Fatalf("status=%s want=disconnected", c.Status())
	}
}

func TestExchange_NotConnected(t *testing.T) {
	c := emulatedChannel(emulator.NewSource())

	_, err := c.ReadRegister(register.MeasuredVoltage)
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestExchange_WriteThenReadBack(t *testing.T) {
	src := emulator.NewSource()
	c := emulatedChannel(src)

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect err=%v", err)
	}
	defer c.Close()
	if c.Status() != Ready {
		t.Fatalf("status=%s want=ready", c.Status())
	}

	echoed, err := c.WriteRegister(register.SetVoltage, 1500)
	if err != nil {
		t.Fatalf("WriteRegister err=%v", err)
	}
	if echoed != 1500 {
		t.Fatalf("echoed=%d want=1500", echoed)
	}

	got, err := c.ReadRegister(register.SetVoltage)
	if err != nil {
		t.Fatalf("ReadRegister err=%v", err)
	}
	if got != 1500 {
		t.Fatalf("read back %d, want 1500", got)
	}

	// Output off: measured voltage must read zero regardless of setpoint.
	mes, err := c.ReadRegister(register.MeasuredVoltage)
	if err != nil {
		t.Fatalf("ReadRegister err=%v", err)
	}
	if mes != 0 {
		t.Fatalf("measured=%d want=0 while off", mes)
	}

	if _, err := c.WriteRegister(register.Power, 1); err != nil {
		t.Fatalf("WriteRegister err=%v", err)
	}
	mes, err = c.ReadRegister(register.MeasuredVoltage)
	if err != nil {
		t.Fatalf("ReadRegister err=%v", err)
	}
	if mes != 1500 {
		t.Fatalf("measured=%d want=1500 while on", mes)
	}
}

func TestExchange_Timeout(t *testing.T) {
	// A device that accepts the request and never answers.
	silent := LoopbackBackend{Serve: func(conn net.Conn) {
		buf := make([]byte, 64)
		for {
			if _, err := conn.Read(buf); err != nil {
				return
			}
		}
	}}

	c := New("dev-1", "loopback", 50*time.Millisecond, silent)
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect err=%v", err)
	}
	defer c.Close()

	_, err := c.ReadRegister(register.MeasuredVoltage)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if c.Status() != Faulted {
		t.Fatalf("status=%s want=faulted after timeout", c.Status())
	}
}

func TestExchange_DecodeErrorIsTransient(t *testing.T) {
	// A device that answers with a correctly-sized frame whose checksum is
	// ruined.
	garbage := LoopbackBackend{Serve: func(conn net.Conn) {
		defer conn.Close()
		for {
			req := make([]byte, frame.Size(0))
			if _, err := io.ReadFull(conn, req); err != nil {
				return
			}
			resp := make([]byte, frame.Size(2))
			resp[0] = req[0]
			resp[1], resp[2] = req[1], req[2]
			resp[3] = 2
			if _, err := conn.Write(resp); err != nil {
				return
			}
		}
	}}

	c := New("dev-1", "loopback", time.Second, garbage)
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect err=%v", err)
	}
	defer c.Close()

	_, err := c.ReadRegister(register.MeasuredVoltage)
	if !frame.IsProtocolError(err) {
		t.Fatalf("expected protocol error, got %v", err)
	}
	if c.Status() != Ready {
		t.Fatalf("status=%s want=ready, decode errors must not fault the channel", c.Status())
	}
}

func TestExchange_ResponseMismatchRejected(t *testing.T) {
	// A device that answers a different register than it was asked for.
	liar := LoopbackBackend{Serve: func(conn net.Conn) {
		defer conn.Close()
		other, _ := register.Lookup(register.StatusFlags)
		for {
			req := make([]byte, frame.Size(0))
			if _, err := io.ReadFull(conn, req); err != nil {
				return
			}
			resp, _ := frame.Encode(other, frame.OpRead, frame.PutUint16(0))
			if _, err := conn.Write(resp); err != nil {
				return
			}
		}
	}}

	c := New("dev-1", "loopback", time.Second, liar)
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect err=%v", err)
	}
	defer c.Close()

	_, err := c.ReadRegister(register.MeasuredVoltage)
	if !errors.Is(err, frame.ErrMalformedFrame) {
		t.Fatalf("expected ErrMalformedFrame, got %v", err)
	}
}

func TestWriteRegister_ReadonlyRejected(t *testing.T) {
	c := emulatedChannel(emulator.NewSource())
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect err=%v", err)
	}
	defer c.Close()

	_, err := c.WriteRegister(register.MeasuredVoltage, 1)
	if !errors.Is(err, ErrNotWritable) {
		t.Fatalf("expected ErrNotWritable, got %v", err)
	}
}

func TestTCPBackend_AgainstEmulatorServer(t *testing.T) {
	srv, err := emulator.Listen("127.0.0.1:0", emulator.NewSource())
	if err != nil {
		t.Fatalf("Listen err=%v", err)
	}
	defer srv.Close()

	c := New("dev-1", srv.Addr(), time.Second, TCPBackend{})
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect err=%v", err)
	}
	defer c.Close()

	if _, err := c.WriteRegister(register.SetVoltage, 800); err != nil {
		t.Fatalf("WriteRegister err=%v", err)
	}
	got, err := c.ReadRegister(register.SetVoltage)
	if err != nil {
		t.Fatalf("ReadRegister err=%v", err)
	}
	if got != 800 {
		t.Fatalf("read back %d, want 800", got)
	}
}
