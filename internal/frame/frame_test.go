// internal/frame/frame_test.go
package frame

import (
	"errors"
	"testing"

	"github.com/tamzrod/hv-supervisor/internal/register"
)

func reg(t *testing.T, k register.Kind) register.Register {
	t.Helper()
	r, err := register.Lookup(k)
	if err != nil {
		t.Fatalf("Lookup(%s) err=%v", k, err)
	}
	return r
}

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		kind    register.Kind
		op      Op
		payload []byte
	}{
		{"read request", register.MeasuredVoltage, OpRead, nil},
		{"write request", register.SetVoltage, OpWrite, PutUint16(1500)},
		{"read response", register.StatusFlags, OpRead, PutUint16(0x0014)},
		{"zero payload write", register.Power, OpWrite, PutUint16(0)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := reg(t, tc.kind)

			raw, err := Encode(r, tc.op, tc.payload)
			if err != nil {
				t.Fatalf("Encode err=%v", err)
			}
			if len(raw) != Size(uint8(len(tc.payload))) {
				t.Fatalf("encoded %d bytes, want %d", len(raw), Size(uint8(len(tc.payload))))
			}

			f, err := Decode(raw)
			if err != nil {
				t.Fatalf("Decode err=%v", err)
			}
			if f.Op != tc.op {
				t.Fatalf("op=%s want=%s", f.Op, tc.op)
			}
			if f.Addr != r.Addr {
				t.Fatalf("addr=0x%02x want=0x%02x", f.Addr, r.Addr)
			}
			if len(f.Payload) != len(tc.payload) {
				t.Fatalf("payload %d bytes, want %d", len(f.Payload), len(tc.payload))
			}
			for i := range tc.payload {
				if f.Payload[i] != tc.payload[i] {
					t.Fatalf("payload[%d]=0x%02x want=0x%02x", i, f.Payload[i], tc.payload[i])
				}
			}
		})
	}
}

func TestEncode_PayloadTooWide(t *testing.T) {
	r := reg(t, register.SetVoltage)

	raw, err := Encode(r, OpWrite, []byte{1, 2, 3})
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if !errors.Is(err, ErrPayloadTooWide) {
		t.Fatalf("expected ErrPayloadTooWide, got %v", err)
	}
	if raw != nil {
		t.Fatalf("expected no partial frame, got %d bytes", len(raw))
	}
}

func TestDecode_Truncated(t *testing.T) {
	r := reg(t, register.MeasuredVoltage)
	raw, err := Encode(r, OpRead, PutUint16(42))
	if err != nil {
		t.Fatalf("Encode err=%v", err)
	}

	for cut := 1; cut < len(raw); cut++ {
		_, err := Decode(raw[:cut])
		if err == nil {
			t.Fatalf("Decode of %d/%d bytes succeeded", cut, len(raw))
		}
		if !errors.Is(err, ErrTruncatedFrame) && !errors.Is(err, ErrMalformedFrame) {
			t.Fatalf("unexpected error class at cut=%d: %v", cut, err)
		}
	}

	_, err = Decode(raw[:3])
	if !errors.Is(err, ErrTruncatedFrame) {
		t.Fatalf("short header must be truncated, got %v", err)
	}
}

func TestDecode_CorruptChecksum(t *testing.T) {
	r := reg(t, register.SetVoltage)
	raw, err := Encode(r, OpWrite, PutUint16(1000))
	if err != nil {
		t.Fatalf("Encode err=%v", err)
	}

	raw[len(raw)-1] ^= 0xFF
	_, err = Decode(raw)
	if !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("expected ErrMalformedFrame, got %v", err)
	}
}

func TestDecode_CorruptPayloadBit(t *testing.T) {
	r := reg(t, register.SetVoltage)
	raw, err := Encode(r, OpWrite, PutUint16(1000))
	if err != nil {
		t.Fatalf("Encode err=%v", err)
	}

	raw[4] ^= 0x01
	_, err = Decode(raw)
	if !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("expected ErrMalformedFrame, got %v", err)
	}
}

func TestDecode_UnknownOp(t *testing.T) {
	r := reg(t, register.Power)
	raw, err := Encode(r, OpRead, nil)
	if err != nil {
		t.Fatalf("Encode err=%v", err)
	}

	raw[0] = 0x7F
	_, err = Decode(raw)
	if !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("expected ErrMalformedFrame, got %v", err)
	}
}

func TestDecode_SurplusBytes(t *testing.T) {
	r := reg(t, register.Power)
	raw, err := Encode(r, OpRead, nil)
	if err != nil {
		t.Fatalf("Encode err=%v", err)
	}

	_, err = Decode(append(raw, 0x00))
	if !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("expected ErrMalformedFrame, got %v", err)
	}
}
