package cv

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/skdltmxn/cvmerge/internal/stream"
)

// Errors
var (
	ErrTruncatedRecord = errors.New("cv: truncated record")
	ErrInvalidRecord   = errors.New("cv: invalid record")
)

// RecordHeaderSize is the size of the length and kind prefix of every record.
const RecordHeaderSize = 4

// Record is one raw CodeView type or symbol record, including its 16-bit
// length and kind prefix. The length counts every byte after itself.
type Record []byte

// Len returns the encoded record length (excluding the length field).
func (r Record) Len() uint16 {
	return binary.LittleEndian.Uint16(r)
}

// Kind returns the raw 16-bit record kind.
func (r Record) Kind() uint16 {
	return binary.LittleEndian.Uint16(r[2:])
}

// LeafKind returns the record kind as a leaf kind.
func (r Record) LeafKind() LeafKind {
	return LeafKind(r.Kind())
}

// SymKind returns the record kind as a symbol kind.
func (r Record) SymKind() SymKind {
	return SymKind(r.Kind())
}

// Payload returns the bytes after the kind field.
func (r Record) Payload() []byte {
	return r[RecordHeaderSize:]
}

// SplitRecords splits a buffer of back-to-back records. Records alias data.
func SplitRecords(data []byte) ([]Record, error) {
	var recs []Record
	r := stream.NewReader(data)
	for r.Remaining() > 0 {
		start := r.Offset()
		length, err := r.ReadU16()
		if err != nil {
			return recs, fmt.Errorf("%w at offset %#x", ErrTruncatedRecord, start)
		}
		if length < 2 {
			return recs, fmt.Errorf("%w: length %d at offset %#x", ErrInvalidRecord, length, start)
		}
		if err := r.Skip(int(length)); err != nil {
			return recs, fmt.Errorf("%w at offset %#x", ErrTruncatedRecord, start)
		}
		recs = append(recs, Record(data[start:r.Offset()]))
	}
	return recs, nil
}

// Precomp is the decoded LF_PRECOMP record.
type Precomp struct {
	Start     TypeIndex
	Count     uint32
	Signature uint32
	Name      string
}

// ParsePrecomp decodes an LF_PRECOMP record.
func ParsePrecomp(rec Record) (*Precomp, error) {
	if rec.LeafKind() != LF_PRECOMP {
		return nil, fmt.Errorf("%w: %v is not LF_PRECOMP", ErrInvalidRecord, rec.LeafKind())
	}
	r := stream.NewReader(rec.Payload())
	start, err := r.ReadU32()
	if err != nil {
		return nil, ErrTruncatedRecord
	}
	count, err := r.ReadU32()
	if err != nil {
		return nil, ErrTruncatedRecord
	}
	sig, err := r.ReadU32()
	if err != nil {
		return nil, ErrTruncatedRecord
	}
	name, err := r.ReadCString()
	if err != nil {
		return nil, ErrTruncatedRecord
	}
	return &Precomp{Start: TypeIndex(start), Count: count, Signature: sig, Name: name}, nil
}

// ParseEndPrecomp returns the signature of an LF_ENDPRECOMP record.
func ParseEndPrecomp(rec Record) (uint32, error) {
	if rec.LeafKind() != LF_ENDPRECOMP {
		return 0, fmt.Errorf("%w: %v is not LF_ENDPRECOMP", ErrInvalidRecord, rec.LeafKind())
	}
	sig, err := stream.U32At(rec, RecordHeaderSize)
	if err != nil {
		return 0, ErrTruncatedRecord
	}
	return sig, nil
}

// TypeServer2 is the decoded LF_TYPESERVER2 record.
type TypeServer2 struct {
	GUID [16]byte
	Age  uint32
	Name string
}

// ParseTypeServer2 decodes an LF_TYPESERVER2 record.
func ParseTypeServer2(rec Record) (*TypeServer2, error) {
	if rec.LeafKind() != LF_TYPESERVER2 {
		return nil, fmt.Errorf("%w: %v is not LF_TYPESERVER2", ErrInvalidRecord, rec.LeafKind())
	}
	r := stream.NewReader(rec.Payload())
	guid, err := r.ReadGUID()
	if err != nil {
		return nil, ErrTruncatedRecord
	}
	age, err := r.ReadU32()
	if err != nil {
		return nil, ErrTruncatedRecord
	}
	name, err := r.ReadCString()
	if err != nil {
		return nil, ErrTruncatedRecord
	}
	return &TypeServer2{GUID: guid, Age: age, Name: name}, nil
}

// ObjName is the decoded S_OBJNAME symbol.
type ObjName struct {
	Signature uint32
	Name      string
}

// ParseObjName decodes an S_OBJNAME symbol record.
func ParseObjName(rec Record) (*ObjName, error) {
	if rec.SymKind() != S_OBJNAME {
		return nil, fmt.Errorf("%w: %#04x is not S_OBJNAME", ErrInvalidRecord, rec.Kind())
	}
	r := stream.NewReader(rec.Payload())
	sig, err := r.ReadU32()
	if err != nil {
		return nil, ErrTruncatedRecord
	}
	name, err := r.ReadCString()
	if err != nil {
		return nil, ErrTruncatedRecord
	}
	return &ObjName{Signature: sig, Name: name}, nil
}
