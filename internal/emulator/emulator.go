// internal/emulator/emulator.go
//
// Emulated high-voltage source speaking the native frame protocol. Good
// enough for bench testing the supervisor without hardware: while the
// output is on, measured voltage tracks the setpoint; while off, it reads
// zero.
package emulator

import (
	"io"
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/tamzrod/hv-supervisor/internal/frame"
	"github.com/tamzrod/hv-supervisor/internal/register"
)

// Source is one emulated device. Safe for concurrent connections.
type Source struct {
	mu   sync.Mutex
	regs map[uint16]uint16

	byAddr map[uint16]register.Register
}

// NewSource creates a source with the output off and everything at zero.
func NewSource() *Source {
	s := &Source{
		regs:   make(map[uint16]uint16),
		byAddr: make(map[uint16]register.Register),
	}
	for _, r := range register.All() {
		s.byAddr[r.Addr] = r
		s.regs[r.Addr] = 0
	}
	return s
}

// ServeConn answers exchanges on one connection until it closes or a frame
// fails to decode. Framing is by expected length, so a decode failure means
// the stream is out of sync and the connection is dropped.
func (s *Source) ServeConn(conn net.Conn) {
	defer conn.Close()

	header := make([]byte, 4)
	for {
		if _, err := io.ReadFull(conn, header); err != nil {
			return
		}
		rest := make([]byte, int(header[3])+2)
		if _, err := io.ReadFull(conn, rest); err != nil {
			return
		}

		f, err := frame.Decode(append(append([]byte{}, header...), rest...))
		if err != nil {
			logrus.WithField("component", "emulator").Debugf("dropping connection: %v", err)
			return
		}

		resp, err := s.apply(f)
		if err != nil {
			return
		}
		if _, err := conn.Write(resp); err != nil {
			return
		}
	}
}

func (s *Source) apply(f frame.Frame) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, ok := s.byAddr[f.Addr]
	if !ok {
		// Unknown address reads back as zero, like unpopulated device memory.
		reg = register.Register{Addr: f.Addr, Width: 2}
	}

	var value uint16
	switch f.Op {
	case frame.OpWrite:
		v, err := frame.Uint16(f.Payload)
		if err != nil {
			return nil, err
		}
		s.regs[f.Addr] = v
		value = v
	case frame.OpRead:
		value = s.readLocked(reg)
	}

	return frame.Encode(reg, f.Op, frame.PutUint16(value))
}

// readLocked applies the measurement model. A value staged via Set wins
// over the model, so tests can fake residual voltage or runaway current.
func (s *Source) readLocked(reg register.Register) uint16 {
	switch reg.Kind {
	case register.MeasuredVoltage:
		if v := s.regs[reg.Addr]; v != 0 {
			return v
		}
		if s.regs[s.addrOf(register.Power)] != 0 {
			return s.regs[s.addrOf(register.SetVoltage)]
		}
		return 0
	case register.MeasuredCurrent:
		if v := s.regs[reg.Addr]; v != 0 {
			return v
		}
		// A live output draws a token current, an off one draws none.
		if s.regs[s.addrOf(register.Power)] != 0 {
			return 1
		}
		return 0
	default:
		return s.regs[reg.Addr]
	}
}

func (s *Source) addrOf(kind register.Kind) uint16 {
	r, _ := register.Lookup(kind)
	return r.Addr
}

// Set forces a register value, bypassing the measurement model. Used by
// tests to stage fault scenarios (residual voltage, raised flags).
func (s *Source) Set(kind register.Kind, value uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regs[s.addrOf(kind)] = value
}

// Server serves one source on a TCP listener.
type Server struct {
	src *Source
	ln  net.Listener
	wg  sync.WaitGroup
}

// Listen binds addr and starts accepting in the background.
func Listen(addr string, src *Source) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	srv := &Server{src: src, ln: ln}
	srv.wg.Add(1)
	go srv.acceptLoop()

	logrus.WithField("addr", ln.Addr().String()).Info("emulated source listening")
	return srv, nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.src.ServeConn(conn)
	}
}

// Addr returns the bound address.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Close stops accepting. Open connections drain on their own.
func (s *Server) Close() error {
	err := s.ln.Close()
	s.wg.Wait()
	return err
}
