package binary

import (
	"bytes"
	"errors"
	"testing"
)

func TestCursorReads(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 'a', 'b', 'c'}
	sr := NewSafeReader(bytes.NewReader(data), int64(len(data)), "test.bin")
	c := sr.Cursor(0, sr.Size())

	u16, err := c.U16("first")
	if err != nil {
		t.Fatalf("U16: %v", err)
	}
	if u16 != 0x0102 {
		t.Errorf("U16 = %#x, want 0x0102", u16)
	}

	u32, err := c.U32("second")
	if err != nil {
		t.Fatalf("U32: %v", err)
	}
	if u32 != 0x03040506 {
		t.Errorf("U32 = %#x, want 0x03040506", u32)
	}

	c.Skip(2)
	s, err := c.String(3, "trailer")
	if err != nil {
		t.Fatalf("String: %v", err)
	}
	if s != "abc" {
		t.Errorf("String = %q, want %q", s, "abc")
	}
	if c.Remaining() != 0 {
		t.Errorf("Remaining = %d, want 0", c.Remaining())
	}
}

func TestCursorLittleEndian(t *testing.T) {
	data := []byte{0x44, 0xAC, 0x00, 0x00}
	sr := NewSafeReader(bytes.NewReader(data), int64(len(data)), "test.bin")
	c := sr.Cursor(0, sr.Size())

	v, err := c.U32LE("sample rate")
	if err != nil {
		t.Fatalf("U32LE: %v", err)
	}
	if v != 44100 {
		t.Errorf("U32LE = %d, want 44100", v)
	}
}

func TestCursorOutOfBounds(t *testing.T) {
	data := []byte{0x01, 0x02}
	sr := NewSafeReader(bytes.NewReader(data), int64(len(data)), "test.bin")
	c := sr.Cursor(0, sr.Size())

	_, err := c.U32("too much")
	if err == nil {
		t.Fatal("expected out of bounds error")
	}
	var oob *OutOfBoundsError
	if !errors.As(err, &oob) {
		t.Fatalf("error type = %T, want *OutOfBoundsError", err)
	}
	if oob.What != "too much" {
		t.Errorf("What = %q, want %q", oob.What, "too much")
	}
}

func TestCursorSubWindow(t *testing.T) {
	data := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	sr := NewSafeReader(bytes.NewReader(data), int64(len(data)), "test.bin")
	c := sr.Cursor(0, sr.Size())
	c.Skip(1)

	sub := c.Sub(2)
	if sub.Remaining() != 2 {
		t.Fatalf("sub Remaining = %d, want 2", sub.Remaining())
	}
	b, err := sub.Bytes(2, "window")
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if b[0] != 0xBB || b[1] != 0xCC {
		t.Errorf("sub bytes = %x, want bbcc", b)
	}
	// the parent cursor advanced past the window
	if c.Remaining() != 1 {
		t.Errorf("parent Remaining = %d, want 1", c.Remaining())
	}
}

func TestVarUint(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want uint64
	}{
		{"one byte", []byte{0x81}, 1},
		{"one byte max", []byte{0xFE}, 0x7E},
		{"two bytes", []byte{0x41, 0x23}, 0x123},
		{"four bytes", []byte{0x10, 0x20, 0x30, 0x40}, 0x203040},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sr := NewSafeReader(bytes.NewReader(tt.data), int64(len(tt.data)), "test.mkv")
			c := sr.Cursor(0, sr.Size())
			got, err := c.VarUint("size")
			if err != nil {
				t.Fatalf("VarUint: %v", err)
			}
			if got != tt.want {
				t.Errorf("VarUint = %#x, want %#x", got, tt.want)
			}
		})
	}
}

func TestVarUintUnknownSize(t *testing.T) {
	// All value bits set means "size unknown".
	data := []byte{0x01, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	sr := NewSafeReader(bytes.NewReader(data), int64(len(data)), "test.mkv")
	c := sr.Cursor(0, sr.Size())
	got, err := c.VarUint("size")
	if err != nil {
		t.Fatalf("VarUint: %v", err)
	}
	if got != VarUintUnknown {
		t.Errorf("VarUint = %#x, want VarUintUnknown", got)
	}
}

func TestVarIDKeepsMarkerBits(t *testing.T) {
	// EBML IDs keep their length marker, unlike sizes.
	data := []byte{0x1A, 0x45, 0xDF, 0xA3}
	sr := NewSafeReader(bytes.NewReader(data), int64(len(data)), "test.mkv")
	c := sr.Cursor(0, sr.Size())
	got, err := c.VarID("element id")
	if err != nil {
		t.Fatalf("VarID: %v", err)
	}
	if got != 0x1A45DFA3 {
		t.Errorf("VarID = %#x, want 0x1A45DFA3", got)
	}
}
