// Package stream provides little-endian binary reading and in-place
// patching helpers for CodeView and MSF data.
package stream

import (
	"encoding/binary"
	"errors"
)

// Errors returned by Reader
var (
	ErrUnexpectedEOF = errors.New("stream: unexpected end of data")
)

// Reader reads little-endian values from a byte slice without copying.
type Reader struct {
	data   []byte
	offset int
}

// NewReader creates a Reader from a byte slice.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Offset returns the current read position.
func (r *Reader) Offset() int {
	return r.offset
}

// Remaining returns the number of bytes remaining.
func (r *Reader) Remaining() int {
	if r.offset >= len(r.data) {
		return 0
	}
	return len(r.data) - r.offset
}

// Skip advances the read position by n bytes.
func (r *Reader) Skip(n int) error {
	if n < 0 || r.offset+n > len(r.data) {
		return ErrUnexpectedEOF
	}
	r.offset += n
	return nil
}

// Align aligns the read position to the given boundary, clamped to the end of data.
func (r *Reader) Align(alignment int) {
	if alignment <= 1 {
		return
	}
	if mod := r.offset % alignment; mod != 0 {
		r.offset += alignment - mod
	}
	if r.offset > len(r.data) {
		r.offset = len(r.data)
	}
}

// ReadU16 reads an unsigned 16-bit integer.
func (r *Reader) ReadU16() (uint16, error) {
	if r.offset+2 > len(r.data) {
		return 0, ErrUnexpectedEOF
	}
	v := binary.LittleEndian.Uint16(r.data[r.offset:])
	r.offset += 2
	return v, nil
}

// ReadU32 reads an unsigned 32-bit integer.
func (r *Reader) ReadU32() (uint32, error) {
	if r.offset+4 > len(r.data) {
		return 0, ErrUnexpectedEOF
	}
	v := binary.LittleEndian.Uint32(r.data[r.offset:])
	r.offset += 4
	return v, nil
}

// ReadBytesRef returns a reference to n bytes without copying.
// The returned slice aliases the underlying data.
func (r *Reader) ReadBytesRef(n int) ([]byte, error) {
	if n < 0 || r.offset+n > len(r.data) {
		return nil, ErrUnexpectedEOF
	}
	v := r.data[r.offset : r.offset+n]
	r.offset += n
	return v, nil
}

// ReadCString reads a null-terminated string.
func (r *Reader) ReadCString() (string, error) {
	start := r.offset
	for i := start; i < len(r.data); i++ {
		if r.data[i] == 0 {
			r.offset = i + 1
			return string(r.data[start:i]), nil
		}
	}
	return "", ErrUnexpectedEOF
}

// ReadGUID reads a 16-byte GUID.
func (r *Reader) ReadGUID() ([16]byte, error) {
	var guid [16]byte
	if r.offset+16 > len(r.data) {
		return guid, ErrUnexpectedEOF
	}
	copy(guid[:], r.data[r.offset:])
	r.offset += 16
	return guid, nil
}

// PutU32 overwrites the 32-bit value at off in place.
func PutU32(data []byte, off int, v uint32) error {
	if off < 0 || off+4 > len(data) {
		return ErrUnexpectedEOF
	}
	binary.LittleEndian.PutUint32(data[off:], v)
	return nil
}

// U32At reads the 32-bit value at off.
func U32At(data []byte, off int) (uint32, error) {
	if off < 0 || off+4 > len(data) {
		return 0, ErrUnexpectedEOF
	}
	return binary.LittleEndian.Uint32(data[off:]), nil
}
