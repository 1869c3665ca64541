// Package pdbtest builds synthetic CodeView records, type-server PDBs and
// COFF objects for tests.
package pdbtest

import (
	"encoding/binary"
	"fmt"

	"github.com/skdltmxn/cvmerge/internal/cv"
)

// Rec encodes a record of kind whose payload is the concatenation of
// fields. Integers are little endian and strings are NUL terminated.
func Rec(kind uint16, fields ...any) cv.Record {
	buf := make([]byte, cv.RecordHeaderSize)
	binary.LittleEndian.PutUint16(buf[2:], kind)
	buf = appendFields(buf, fields...)
	binary.LittleEndian.PutUint16(buf, uint16(len(buf)-2))
	return cv.Record(buf)
}

func appendFields(buf []byte, fields ...any) []byte {
	for _, f := range fields {
		switch v := f.(type) {
		case uint8:
			buf = append(buf, v)
		case uint16:
			buf = binary.LittleEndian.AppendUint16(buf, v)
		case uint32:
			buf = binary.LittleEndian.AppendUint32(buf, v)
		case cv.TypeIndex:
			buf = binary.LittleEndian.AppendUint32(buf, uint32(v))
		case []cv.TypeIndex:
			for _, ti := range v {
				buf = binary.LittleEndian.AppendUint32(buf, uint32(ti))
			}
		case string:
			buf = append(append(buf, v...), 0)
		case []byte:
			buf = append(buf, v...)
		case [16]byte:
			buf = append(buf, v[:]...)
		default:
			panic(fmt.Sprintf("pdbtest: unsupported field type %T", f))
		}
	}
	return buf
}

// Modifier returns an LF_MODIFIER of ti.
func Modifier(ti cv.TypeIndex, mods uint16) cv.Record {
	return Rec(uint16(cv.LF_MODIFIER), ti, mods)
}

// Pointer returns a 64-bit LF_POINTER to ti.
func Pointer(ti cv.TypeIndex) cv.Record {
	return Rec(uint16(cv.LF_POINTER), ti, uint32(0x1000c))
}

// ArgList returns an LF_ARGLIST of args.
func ArgList(args ...cv.TypeIndex) cv.Record {
	return Rec(uint16(cv.LF_ARGLIST), uint32(len(args)), args)
}

// Procedure returns an LF_PROCEDURE returning ret with the argument list args.
func Procedure(ret, args cv.TypeIndex, count uint16) cv.Record {
	return Rec(uint16(cv.LF_PROCEDURE), ret, uint8(0), uint8(0), count, args)
}

// Member returns one LF_MEMBER field list entry.
func Member(ti cv.TypeIndex, offset uint16, name string) []byte {
	return appendFields(nil, uint16(cv.LF_MEMBER), uint16(3), ti, offset, name)
}

// FieldList returns an LF_FIELDLIST of members.
func FieldList(members ...[]byte) cv.Record {
	fields := make([]any, len(members))
	for i, m := range members {
		fields[i] = m
	}
	return Rec(uint16(cv.LF_FIELDLIST), fields...)
}

// Structure returns an LF_STRUCTURE named name over the field list fields.
// A forward declaration has fields == 0.
func Structure(name string, fields cv.TypeIndex, count, size uint16) cv.Record {
	prop := uint16(0)
	if fields == 0 {
		prop = 0x80 // fwdref
	}
	return Rec(uint16(cv.LF_STRUCTURE), count, prop, fields, cv.TypeIndex(0), cv.TypeIndex(0), size, name)
}

// FuncID returns an LF_FUNC_ID for a function of type typ.
func FuncID(scope, typ cv.TypeIndex, name string) cv.Record {
	return Rec(uint16(cv.LF_FUNC_ID), scope, typ, name)
}

// StringID returns an LF_STRING_ID.
func StringID(substrs cv.TypeIndex, s string) cv.Record {
	return Rec(uint16(cv.LF_STRING_ID), substrs, s)
}

// Precomp returns an LF_PRECOMP borrowing count indices from start.
func Precomp(start cv.TypeIndex, count, sig uint32, name string) cv.Record {
	return Rec(uint16(cv.LF_PRECOMP), start, count, sig, name)
}

// EndPrecomp returns an LF_ENDPRECOMP.
func EndPrecomp(sig uint32) cv.Record {
	return Rec(uint16(cv.LF_ENDPRECOMP), sig)
}

// TypeServer2 returns an LF_TYPESERVER2 naming the PDB at name.
func TypeServer2(guid [16]byte, age uint32, name string) cv.Record {
	return Rec(uint16(cv.LF_TYPESERVER2), guid, age, name)
}

// ObjName returns an S_OBJNAME symbol.
func ObjName(sig uint32, name string) cv.Record {
	return Rec(uint16(cv.S_OBJNAME), sig, name)
}

// UDT returns an S_UDT symbol.
func UDT(ti cv.TypeIndex, name string) cv.Record {
	return Rec(uint16(cv.S_UDT), ti, name)
}

// GProc32ID returns an S_GPROC32_ID for the function id.
func GProc32ID(id cv.TypeIndex, name string) cv.Record {
	return Rec(uint16(cv.S_GPROC32_ID),
		uint32(0), uint32(0), uint32(0), // parent, end, next
		uint32(16), uint32(0), uint32(16), // length, debug start, debug end
		id, uint32(0), uint16(1), uint8(0), name)
}

// InlineeLines returns a DEBUG_S_INLINEELINES subsection body listing ids.
func InlineeLines(ids ...cv.TypeIndex) []byte {
	buf := binary.LittleEndian.AppendUint32(nil, cv.InlineeSourceLine)
	for i, id := range ids {
		buf = appendFields(buf, id, uint32(0), uint32(10+i))
	}
	return buf
}

// Index returns the type index of the leaf at pos in a stream starting at
// MinComplexIndex.
func Index(pos int) cv.TypeIndex {
	return cv.MinComplexIndex + cv.TypeIndex(pos)
}

// Clone deep-copies records, so tests can reuse a template across merges.
func Clone(recs []cv.Record) []cv.Record {
	out := make([]cv.Record, len(recs))
	for i, r := range recs {
		out[i] = append(cv.Record(nil), r...)
	}
	return out
}
