package cv

import (
	"encoding/binary"
	"fmt"
)

// TIRef locates one type-index field inside a raw record.
// Offset is relative to the first byte of the record (its length prefix).
type TIRef struct {
	Offset uint32
	Space  Space
}

type tirefs struct {
	rec  []byte
	refs []TIRef
	err  error
}

func (t *tirefs) add(off int, space Space) {
	if t.err != nil {
		return
	}
	if off+4 > len(t.rec) {
		t.err = fmt.Errorf("%w: type index at %#x past end %#x", ErrTruncatedRecord, off, len(t.rec))
		return
	}
	t.refs = append(t.refs, TIRef{Offset: uint32(off), Space: space})
}

// list adds count consecutive indices starting at off.
func (t *tirefs) list(off int, count uint32, space Space) {
	if uint64(off)+uint64(count)*4 > uint64(len(t.rec)) {
		t.err = fmt.Errorf("%w: %d indices at %#x", ErrTruncatedRecord, count, off)
		return
	}
	for i := uint32(0); i < count; i++ {
		t.add(off+int(i)*4, space)
	}
}

func (t *tirefs) u16(off int) uint16 {
	if off+2 > len(t.rec) {
		t.err = ErrTruncatedRecord
		return 0
	}
	return binary.LittleEndian.Uint16(t.rec[off:])
}

func (t *tirefs) u32(off int) uint32 {
	if off+4 > len(t.rec) {
		t.err = ErrTruncatedRecord
		return 0
	}
	return binary.LittleEndian.Uint32(t.rec[off:])
}

func (t *tirefs) result() ([]TIRef, error) {
	return t.refs, t.err
}

// LeafTIRefs returns every type-index field embedded in the leaf record.
// On error the fields located before the damage are returned with it.
func LeafTIRefs(rec Record) ([]TIRef, error) {
	if len(rec) < RecordHeaderSize {
		return nil, ErrTruncatedRecord
	}
	const h = RecordHeaderSize
	t := &tirefs{rec: rec}

	switch rec.LeafKind() {
	case LF_MODIFIER, LF_BITFIELD, LF_ALIAS, LF_DEFARG:
		t.add(h, SpaceTPI)
	case LF_POINTER:
		t.add(h, SpaceTPI)
		mode := (t.u32(h+4) >> 5) & 0x7
		if mode == 2 || mode == 3 { // pointer to data member / member function
			t.add(h+8, SpaceTPI)
		}
	case LF_PROCEDURE:
		t.add(h, SpaceTPI)
		t.add(h+8, SpaceTPI)
	case LF_MFUNCTION:
		t.add(h, SpaceTPI)
		t.add(h+4, SpaceTPI)
		t.add(h+8, SpaceTPI)
		t.add(h+16, SpaceTPI)
	case LF_ARGLIST:
		t.list(h+4, t.u32(h), SpaceTPI)
	case LF_SUBSTR_LIST:
		t.list(h+4, t.u32(h), SpaceIPI)
	case LF_ARRAY, LF_STRIDED_ARRAY, LF_VFTABLE:
		t.add(h, SpaceTPI)
		t.add(h+4, SpaceTPI)
	case LF_CLASS, LF_STRUCTURE, LF_INTERFACE,
		LF_CLASS2, LF_STRUCTURE2, LF_INTERFACE2:
		t.add(h+4, SpaceTPI)
		t.add(h+8, SpaceTPI)
		t.add(h+12, SpaceTPI)
	case LF_UNION, LF_UNION2:
		t.add(h+4, SpaceTPI)
	case LF_ENUM:
		t.add(h+4, SpaceTPI)
		t.add(h+8, SpaceTPI)
	case LF_FUNC_ID:
		t.add(h, SpaceIPI)
		t.add(h+4, SpaceTPI)
	case LF_MFUNC_ID:
		t.add(h, SpaceTPI)
		t.add(h+4, SpaceTPI)
	case LF_BUILDINFO:
		t.list(h+2, uint32(t.u16(h)), SpaceIPI)
	case LF_STRING_ID:
		t.add(h, SpaceIPI)
	case LF_UDT_SRC_LINE:
		t.add(h, SpaceTPI)
		t.add(h+4, SpaceIPI)
	case LF_UDT_MOD_SRC_LINE:
		t.add(h, SpaceTPI)
	case LF_METHODLIST:
		for off := h; off < len(rec) && t.err == nil; {
			attr := t.u16(off)
			t.add(off+4, SpaceTPI)
			off += 8
			if isIntroVirtual(attr) {
				off += 4
			}
		}
	case LF_FIELDLIST:
		t.fieldList(h)
	}
	return t.result()
}

func isIntroVirtual(attr uint16) bool {
	mprop := (attr >> 2) & 0x7
	return mprop == 4 || mprop == 6
}

func (t *tirefs) numeric(off int) int {
	if t.err != nil {
		return off
	}
	n, err := NumericSize(t.rec, off)
	if err != nil {
		t.err = err
		return off
	}
	return off + n
}

func (t *tirefs) cstring(off int) int {
	for i := off; i < len(t.rec); i++ {
		if t.rec[i] == 0 {
			return i + 1
		}
	}
	t.err = ErrTruncatedRecord
	return len(t.rec)
}

func (t *tirefs) fieldList(off int) {
	for off < len(t.rec) && t.err == nil {
		if b := t.rec[off]; b >= byte(LF_PAD0) {
			if skip := int(b & 0x0f); skip > 0 {
				off += skip
			} else {
				off++
			}
			continue
		}
		kind := LeafKind(t.u16(off))
		switch kind {
		case LF_BCLASS:
			t.add(off+4, SpaceTPI)
			off = t.numeric(off + 8)
		case LF_VBCLASS, LF_IVBCLASS:
			t.add(off+4, SpaceTPI)
			t.add(off+8, SpaceTPI)
			off = t.numeric(t.numeric(off + 12))
		case LF_INDEX, LF_VFUNCTAB, LF_FRIENDCLS:
			t.add(off+4, SpaceTPI)
			off += 8
		case LF_MEMBER:
			t.add(off+4, SpaceTPI)
			off = t.cstring(t.numeric(off + 8))
		case LF_STMEMBER, LF_METHOD, LF_NESTTYPE, LF_FRIENDFCN,
			LF_NESTTYPEEX, LF_MEMBERMODIFY:
			t.add(off+4, SpaceTPI)
			off = t.cstring(off + 8)
		case LF_ONEMETHOD:
			attr := t.u16(off + 2)
			t.add(off+4, SpaceTPI)
			off += 8
			if isIntroVirtual(attr) {
				off += 4
			}
			off = t.cstring(off)
		case LF_ENUMERATE:
			off = t.cstring(t.numeric(off + 4))
		default:
			t.err = fmt.Errorf("%w: unknown field list member %v at %#x", ErrInvalidRecord, kind, off)
		}
	}
}

// SymbolTIRefs returns every type-index field embedded in the symbol record.
func SymbolTIRefs(rec Record) ([]TIRef, error) {
	if len(rec) < RecordHeaderSize {
		return nil, ErrTruncatedRecord
	}
	const h = RecordHeaderSize
	t := &tirefs{rec: rec}

	switch rec.SymKind() {
	case S_GPROC32, S_LPROC32, S_LPROC32_DPC, S_GPROCMIPS, S_LPROCMIPS,
		S_GPROCIA64, S_LPROCIA64:
		t.add(h+24, SpaceTPI)
	case S_GPROC32_ID, S_LPROC32_ID, S_LPROC32_DPC_ID, S_GPROCMIPS_ID,
		S_LPROCMIPS_ID, S_GPROCIA64_ID, S_LPROCIA64_ID:
		t.add(h+24, SpaceIPI)
	case S_GDATA32, S_LDATA32, S_GTHREAD32, S_LTHREAD32, S_UDT, S_COBOLUDT,
		S_CONSTANT, S_LOCAL, S_REGISTER, S_MANYREG, S_MANYREG2, S_FILESTATIC:
		t.add(h, SpaceTPI)
	case S_BPREL32, S_REGREL32, S_LOCALSLOT, S_PARAMSLOT:
		t.add(h+4, SpaceTPI)
	case S_CALLSITEINFO, S_HEAPALLOCSITE:
		t.add(h+8, SpaceTPI)
	case S_BUILDINFO:
		t.add(h, SpaceIPI)
	case S_INLINESITE, S_INLINESITE2:
		t.add(h+8, SpaceIPI)
	case S_CALLEES, S_CALLERS, S_INLINEES:
		t.list(h+4, t.u32(h), SpaceIPI)
	}
	return t.result()
}

// Inlinee line subsection signatures.
const (
	InlineeSourceLine   uint32 = 0
	InlineeSourceLineEx uint32 = 1
)

// InlineeTIRefs returns the inlinee id fields of a DEBUG_S_INLINEELINES
// subsection body. Offsets are relative to the start of sub.
func InlineeTIRefs(sub []byte) ([]TIRef, error) {
	t := &tirefs{rec: sub}
	sig := t.u32(0)
	if t.err != nil {
		return nil, t.err
	}
	if sig != InlineeSourceLine && sig != InlineeSourceLineEx {
		return nil, fmt.Errorf("%w: inlinee lines signature %#x", ErrInvalidRecord, sig)
	}
	for off := 4; off < len(sub) && t.err == nil; {
		if off+12 > len(sub) {
			t.err = ErrTruncatedRecord
			break
		}
		t.add(off, SpaceIPI)
		off += 12 // inlinee, file id, source line
		if sig == InlineeSourceLineEx {
			extra := t.u32(off)
			off += 4 + int(extra)*4
			if off > len(sub) {
				t.err = ErrTruncatedRecord
			}
		}
	}
	return t.result()
}
