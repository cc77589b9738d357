// internal/frame/frame.go
package frame

import (
	"encoding/binary"

	"github.com/npat-efault/crc16"
	"github.com/pkg/errors"

	"github.com/tamzrod/hv-supervisor/internal/register"
)

// Op is the wire operation code.
type Op uint8

const (
	OpRead  Op = 0x01
	OpWrite Op = 0x02
)

func (o Op) String() string {
	switch o {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	default:
		return "op(?)"
	}
}

// ---- ERRORS ----
// TruncatedFrame and MalformedFrame are recoverable: the caller treats them
// as a dropped response and may retry the exchange.

var (
	ErrPayloadTooWide = errors.New("frame: payload exceeds register width")
	ErrMalformedFrame = errors.New("frame: malformed frame")
	ErrTruncatedFrame = errors.New("frame: truncated frame")
)

// ---- WIRE LAYOUT ----
//
//	op(1) addr(2 BE) plen(1) payload(plen) crc16(2 LE)
//
// CRC16/Modbus over all bytes before the trailer. There is no start-of-frame
// marker: exchanges are strictly sequential per connection, so framing is by
// expected length.

const headerSize = 4
const trailerSize = 2

// Frame is one decoded request or response. Ephemeral, one per exchange.
type Frame struct {
	Op      Op
	Addr    uint16
	Payload []byte
}

// Size returns the encoded size of a frame carrying width payload bytes.
func Size(width uint8) int {
	return headerSize + int(width) + trailerSize
}

// Encode produces the wire form of one frame addressed at reg. The payload
// must not exceed the register's declared width; read requests carry an
// empty payload. No partial frame is ever produced.
func Encode(reg register.Register, op Op, payload []byte) ([]byte, error) {
	if len(payload) > int(reg.Width) {
		return nil, errors.Wrapf(ErrPayloadTooWide,
			"register=%s width=%d payload=%d", reg.Kind, reg.Width, len(payload))
	}

	buf := make([]byte, headerSize+len(payload)+trailerSize)
	buf[0] = byte(op)
	binary.BigEndian.PutUint16(buf[1:3], reg.Addr)
	buf[3] = byte(len(payload))
	copy(buf[headerSize:], payload)

	sum := crc16.Checksum(crc16.Modbus, buf[:headerSize+len(payload)])
	binary.LittleEndian.PutUint16(buf[headerSize+len(payload):], sum)
	return buf, nil
}

// Decode validates framing and checksum and returns the contained frame.
// Pure and side-effect free. Fewer bytes than the header or the declared
// payload demand is a TruncatedFrame; surplus bytes, an unknown op code or a
// checksum mismatch is a MalformedFrame.
func Decode(data []byte) (Frame, error) {
	if len(data) < headerSize+trailerSize {
		return Frame{}, errors.Wrapf(ErrTruncatedFrame, "got %d bytes", len(data))
	}

	plen := int(data[3])
	want := headerSize + plen + trailerSize
	if len(data) < want {
		return Frame{}, errors.Wrapf(ErrTruncatedFrame, "declared %d payload bytes, frame has %d", plen, len(data))
	}
	if len(data) > want {
		return Frame{}, errors.Wrapf(ErrMalformedFrame, "declared %d payload bytes, frame has %d", plen, len(data))
	}

	op := Op(data[0])
	if op != OpRead && op != OpWrite {
		return Frame{}, errors.Wrapf(ErrMalformedFrame, "unknown op 0x%02x", data[0])
	}

	sum := crc16.Checksum(crc16.Modbus, data[:headerSize+plen])
	got := binary.LittleEndian.Uint16(data[headerSize+plen:])
	if sum != got {
		return Frame{}, errors.Wrapf(ErrMalformedFrame, "checksum mismatch: want=%04x got=%04x", sum, got)
	}

	f := Frame{
		Op:   op,
		Addr: binary.BigEndian.Uint16(data[1:3]),
	}
	if plen > 0 {
		f.Payload = make([]byte, plen)
		copy(f.Payload, data[headerSize:headerSize+plen])
	}
	return f, nil
}

// IsProtocolError reports whether err is a recoverable codec error: the
// caller treats the response as dropped and may retry the exchange.
func IsProtocolError(err error) bool {
	return errors.Is(err, ErrMalformedFrame) ||
		errors.Is(err, ErrTruncatedFrame) ||
		errors.Is(err, ErrPayloadTooWide)
}

// PutUint16 packs a register value big-endian, matching register widths.
func PutUint16(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

// Uint16 unpacks a big-endian register value.
func Uint16(payload []byte) (uint16, error) {
	if len(payload) != 2 {
		return 0, errors.Wrapf(ErrMalformedFrame, "register payload is %d bytes, want 2", len(payload))
	}
	return binary.BigEndian.Uint16(payload), nil
}
