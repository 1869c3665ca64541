// Package tpi parses TPI (Type Program Information) and IPI (ID Program
// Information) streams of a type-server PDB into raw leaf arrays.
package tpi

import (
	"errors"
	"fmt"

	"github.com/skdltmxn/cvmerge/internal/cv"
	"github.com/skdltmxn/cvmerge/internal/stream"
)

// TPI stream version constants
const (
	TPIVersionV70 uint32 = 19990903
	TPIVersionV80 uint32 = 20040203 // Current version
)

// HeaderSize is the size of the fixed TPI/IPI header.
const HeaderSize = 56

// Errors
var (
	ErrInvalidHeader      = errors.New("tpi: invalid TPI header")
	ErrUnsupportedVersion = errors.New("tpi: unsupported TPI version")
	ErrRecordCount        = errors.New("tpi: record count does not match index range")
)

// Header represents the TPI or IPI stream header.
type Header struct {
	Version         uint32
	HeaderSize      uint32
	TypeIndexBegin  cv.TypeIndex
	TypeIndexEnd    cv.TypeIndex
	TypeRecordBytes uint32

	HashStreamIndex    uint16
	HashAuxStreamIndex uint16
	HashKeySize        uint32
	NumHashBuckets     uint32
	// Offset/length pairs into the hash stream: hash values, index offsets, hash adjusters.
	HashBuffers [3][2]uint32
}

// Stream is a parsed TPI or IPI stream.
type Stream struct {
	Header Header

	// Records holds one raw leaf per index in [TypeIndexBegin, TypeIndexEnd).
	// The records alias the stream data passed to ParseStream.
	Records []cv.Record
}

// ParseStream parses a TPI or IPI stream from raw data.
func ParseStream(data []byte) (*Stream, error) {
	if len(data) < HeaderSize {
		return nil, ErrInvalidHeader
	}

	s := &Stream{}
	if err := s.Header.parse(stream.NewReader(data)); err != nil {
		return nil, err
	}

	start := int(s.Header.HeaderSize)
	end := start + int(s.Header.TypeRecordBytes)
	if start < HeaderSize || end > len(data) {
		return nil, fmt.Errorf("tpi: truncated stream: expected %d bytes, got %d", end, len(data))
	}

	recs, err := cv.SplitRecords(data[start:end])
	if err != nil {
		return nil, fmt.Errorf("tpi: %w", err)
	}
	if s.Header.TypeIndexEnd < s.Header.TypeIndexBegin ||
		uint32(len(recs)) != s.Header.TypeCount() {
		return nil, fmt.Errorf("%w: %d records for [%#x, %#x)", ErrRecordCount,
			len(recs), s.Header.TypeIndexBegin, s.Header.TypeIndexEnd)
	}
	s.Records = recs
	return s, nil
}

func (h *Header) parse(r *stream.Reader) error {
	u32s := []*uint32{&h.Version, &h.HeaderSize}
	for _, p := range u32s {
		v, err := r.ReadU32()
		if err != nil {
			return ErrInvalidHeader
		}
		*p = v
	}
	if h.Version != TPIVersionV80 && h.Version != TPIVersionV70 {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}

	var begin, end uint32
	for _, p := range []*uint32{&begin, &end, &h.TypeRecordBytes} {
		v, err := r.ReadU32()
		if err != nil {
			return ErrInvalidHeader
		}
		*p = v
	}
	h.TypeIndexBegin = cv.TypeIndex(begin)
	h.TypeIndexEnd = cv.TypeIndex(end)

	var err error
	if h.HashStreamIndex, err = r.ReadU16(); err != nil {
		return ErrInvalidHeader
	}
	if h.HashAuxStreamIndex, err = r.ReadU16(); err != nil {
		return ErrInvalidHeader
	}
	for _, p := range []*uint32{&h.HashKeySize, &h.NumHashBuckets} {
		if *p, err = r.ReadU32(); err != nil {
			return ErrInvalidHeader
		}
	}
	for i := range h.HashBuffers {
		for j := range h.HashBuffers[i] {
			if h.HashBuffers[i][j], err = r.ReadU32(); err != nil {
				return ErrInvalidHeader
			}
		}
	}
	return nil
}

// TypeCount returns the number of records the header declares.
func (h *Header) TypeCount() uint32 {
	return uint32(h.TypeIndexEnd - h.TypeIndexBegin)
}

// Contains reports whether ti names a record of this stream.
func (s *Stream) Contains(ti cv.TypeIndex) bool {
	return ti >= s.Header.TypeIndexBegin && ti < s.Header.TypeIndexEnd
}
