package stream

import (
	"errors"
	"testing"
)

func TestReader(t *testing.T) {
	data := []byte{
		0x34, 0x12,
		0x78, 0x56, 0x34, 0x12,
		'a', 'b', 0,
		0xff, 0xff, 0xff,
		1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16,
	}
	r := NewReader(data)

	if v, err := r.ReadU16(); err != nil || v != 0x1234 {
		t.Fatalf("ReadU16 = %#x, %v", v, err)
	}
	if v, err := r.ReadU32(); err != nil || v != 0x12345678 {
		t.Fatalf("ReadU32 = %#x, %v", v, err)
	}
	if s, err := r.ReadCString(); err != nil || s != "ab" {
		t.Fatalf("ReadCString = %q, %v", s, err)
	}
	r.Align(4)
	if r.Offset() != 12 {
		t.Fatalf("Offset after Align = %d, want 12", r.Offset())
	}
	g, err := r.ReadGUID()
	if err != nil || g[0] != 1 || g[15] != 16 {
		t.Fatalf("ReadGUID = %x, %v", g, err)
	}
	if r.Remaining() != 0 {
		t.Errorf("Remaining = %d, want 0", r.Remaining())
	}
	if _, err := r.ReadU16(); !errors.Is(err, ErrUnexpectedEOF) {
		t.Errorf("ReadU16 at end: %v", err)
	}
	r.Align(64)
	if r.Offset() != len(data) {
		t.Errorf("Align past end = %d, want %d", r.Offset(), len(data))
	}
}

func TestReaderBytesRef(t *testing.T) {
	data := []byte{1, 2, 3, 4}
	r := NewReader(data)
	if err := r.Skip(1); err != nil {
		t.Fatal(err)
	}
	b, err := r.ReadBytesRef(2)
	if err != nil {
		t.Fatal(err)
	}
	b[0] = 9
	if data[1] != 9 {
		t.Error("ReadBytesRef copied its result")
	}
	if _, err := r.ReadBytesRef(2); !errors.Is(err, ErrUnexpectedEOF) {
		t.Errorf("ReadBytesRef past end: %v", err)
	}
	if err := r.Skip(-1); !errors.Is(err, ErrUnexpectedEOF) {
		t.Errorf("Skip(-1): %v", err)
	}
	if _, err := NewReader([]byte("abc")).ReadCString(); !errors.Is(err, ErrUnexpectedEOF) {
		t.Errorf("unterminated ReadCString: %v", err)
	}
}

func TestPutU32(t *testing.T) {
	data := make([]byte, 8)
	if err := PutU32(data, 4, 0xdeadbeef); err != nil {
		t.Fatal(err)
	}
	if v, err := U32At(data, 4); err != nil || v != 0xdeadbeef {
		t.Errorf("U32At = %#x, %v", v, err)
	}
	if err := PutU32(data, 5, 1); !errors.Is(err, ErrUnexpectedEOF) {
		t.Errorf("PutU32 past end: %v", err)
	}
	if _, err := U32At(data, -1); !errors.Is(err, ErrUnexpectedEOF) {
		t.Errorf("U32At(-1): %v", err)
	}
}
