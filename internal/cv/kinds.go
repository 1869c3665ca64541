// Package cv models the CodeView type and symbol records consumed by the
// type merger: record kinds, raw record framing, numeric leaves and the
// per-record lists of embedded type-index fields.
package cv

import "fmt"

// TypeIndex is a reference to a leaf in the TPI or IPI index space.
type TypeIndex uint32

// MinComplexIndex is the first index that names a leaf record.
// Indices below it are simple/primitive types and never resolve to a record.
const MinComplexIndex TypeIndex = 0x1000

// NoType is T_NOTYPE, written in place of references that cannot be resolved.
const NoType TypeIndex = 0

// IsSimple returns true if this is a built-in primitive type.
func (ti TypeIndex) IsSimple() bool {
	return ti < MinComplexIndex
}

// Space identifies one of the two independent type-index spaces.
type Space uint8

const (
	SpaceTPI Space = iota // types
	SpaceIPI              // item ids
)

func (s Space) String() string {
	if s == SpaceIPI {
		return "IPI"
	}
	return "TPI"
}

// LeafKind identifies the type of a type record (LF_*).
type LeafKind uint16

const (
	LF_VTSHAPE LeafKind = 0x000a
	LF_LABEL   LeafKind = 0x000e

	LF_MODIFIER  LeafKind = 0x1001
	LF_POINTER   LeafKind = 0x1002
	LF_PROCEDURE LeafKind = 0x1008
	LF_MFUNCTION LeafKind = 0x1009

	LF_ARGLIST    LeafKind = 0x1201
	LF_FIELDLIST  LeafKind = 0x1203
	LF_BITFIELD   LeafKind = 0x1205
	LF_METHODLIST LeafKind = 0x1206

	// Field list members
	LF_BCLASS    LeafKind = 0x1400
	LF_VBCLASS   LeafKind = 0x1401
	LF_IVBCLASS  LeafKind = 0x1402
	LF_INDEX     LeafKind = 0x1404
	LF_VFUNCTAB  LeafKind = 0x1409
	LF_FRIENDCLS LeafKind = 0x140a

	LF_ENUMERATE    LeafKind = 0x1502
	LF_ARRAY        LeafKind = 0x1503
	LF_CLASS        LeafKind = 0x1504
	LF_STRUCTURE    LeafKind = 0x1505
	LF_UNION        LeafKind = 0x1506
	LF_ENUM         LeafKind = 0x1507
	LF_PRECOMP      LeafKind = 0x1509
	LF_ALIAS        LeafKind = 0x150a
	LF_DEFARG       LeafKind = 0x150b
	LF_FRIENDFCN    LeafKind = 0x150c
	LF_MEMBER       LeafKind = 0x150d
	LF_STMEMBER     LeafKind = 0x150e
	LF_METHOD       LeafKind = 0x150f
	LF_NESTTYPE     LeafKind = 0x1510
	LF_ONEMETHOD    LeafKind = 0x1511
	LF_NESTTYPEEX   LeafKind = 0x1512
	LF_MEMBERMODIFY LeafKind = 0x1513
	LF_TYPESERVER2  LeafKind = 0x1515

	LF_STRIDED_ARRAY LeafKind = 0x1516
	LF_INTERFACE     LeafKind = 0x1519
	LF_VFTABLE       LeafKind = 0x151d

	// ID records (IPI)
	LF_FUNC_ID          LeafKind = 0x1601
	LF_MFUNC_ID         LeafKind = 0x1602
	LF_BUILDINFO        LeafKind = 0x1603
	LF_SUBSTR_LIST      LeafKind = 0x1604
	LF_STRING_ID        LeafKind = 0x1605
	LF_UDT_SRC_LINE     LeafKind = 0x1606
	LF_UDT_MOD_SRC_LINE LeafKind = 0x1607

	LF_CLASS2     LeafKind = 0x1608
	LF_STRUCTURE2 LeafKind = 0x1609
	LF_UNION2     LeafKind = 0x160a
	LF_INTERFACE2 LeafKind = 0x160b

	LF_ENDPRECOMP LeafKind = 0x0014

	LF_PAD0  LeafKind = 0x00f0
	LF_PAD15 LeafKind = 0x00ff
)

// IsPadding returns true if this is a padding byte kind inside a field list.
func (k LeafKind) IsPadding() bool {
	return k >= LF_PAD0 && k <= LF_PAD15
}

// Space returns the index space records of this kind are merged into.
func (k LeafKind) Space() Space {
	switch k {
	case LF_FUNC_ID, LF_MFUNC_ID, LF_BUILDINFO, LF_SUBSTR_LIST,
		LF_STRING_ID, LF_UDT_SRC_LINE, LF_UDT_MOD_SRC_LINE:
		return SpaceIPI
	}
	return SpaceTPI
}

func (k LeafKind) String() string {
	switch k {
	case LF_MODIFIER:
		return "LF_MODIFIER"
	case LF_POINTER:
		return "LF_POINTER"
	case LF_PROCEDURE:
		return "LF_PROCEDURE"
	case LF_MFUNCTION:
		return "LF_MFUNCTION"
	case LF_ARGLIST:
		return "LF_ARGLIST"
	case LF_FIELDLIST:
		return "LF_FIELDLIST"
	case LF_BITFIELD:
		return "LF_BITFIELD"
	case LF_METHODLIST:
		return "LF_METHODLIST"
	case LF_ARRAY:
		return "LF_ARRAY"
	case LF_CLASS:
		return "LF_CLASS"
	case LF_STRUCTURE:
		return "LF_STRUCTURE"
	case LF_UNION:
		return "LF_UNION"
	case LF_ENUM:
		return "LF_ENUM"
	case LF_PRECOMP:
		return "LF_PRECOMP"
	case LF_ENDPRECOMP:
		return "LF_ENDPRECOMP"
	case LF_TYPESERVER2:
		return "LF_TYPESERVER2"
	case LF_VFTABLE:
		return "LF_VFTABLE"
	case LF_VTSHAPE:
		return "LF_VTSHAPE"
	case LF_FUNC_ID:
		return "LF_FUNC_ID"
	case LF_MFUNC_ID:
		return "LF_MFUNC_ID"
	case LF_BUILDINFO:
		return "LF_BUILDINFO"
	case LF_SUBSTR_LIST:
		return "LF_SUBSTR_LIST"
	case LF_STRING_ID:
		return "LF_STRING_ID"
	case LF_UDT_SRC_LINE:
		return "LF_UDT_SRC_LINE"
	case LF_UDT_MOD_SRC_LINE:
		return "LF_UDT_MOD_SRC_LINE"
	}
	return fmt.Sprintf("LF_%#04x", uint16(k))
}

// SymKind identifies the type of a symbol record (S_*).
type SymKind uint16

const (
	S_END            SymKind = 0x0006
	S_OBJNAME        SymKind = 0x1101
	S_REGISTER       SymKind = 0x1106
	S_CONSTANT       SymKind = 0x1107
	S_UDT            SymKind = 0x1108
	S_COBOLUDT       SymKind = 0x1109
	S_MANYREG        SymKind = 0x110a
	S_BPREL32        SymKind = 0x110b
	S_LDATA32        SymKind = 0x110c
	S_GDATA32        SymKind = 0x110d
	S_LPROC32        SymKind = 0x110f
	S_GPROC32        SymKind = 0x1110
	S_REGREL32       SymKind = 0x1111
	S_LTHREAD32      SymKind = 0x1112
	S_GTHREAD32      SymKind = 0x1113
	S_LPROCMIPS      SymKind = 0x1114
	S_GPROCMIPS      SymKind = 0x1115
	S_MANYREG2       SymKind = 0x1117
	S_LPROCIA64      SymKind = 0x1118
	S_GPROCIA64      SymKind = 0x1119
	S_LOCALSLOT      SymKind = 0x111a
	S_PARAMSLOT      SymKind = 0x111b
	S_CALLSITEINFO   SymKind = 0x1139
	S_LOCAL          SymKind = 0x113e
	S_LPROC32_ID     SymKind = 0x1146
	S_GPROC32_ID     SymKind = 0x1147
	S_LPROCMIPS_ID   SymKind = 0x1148
	S_GPROCMIPS_ID   SymKind = 0x1149
	S_LPROCIA64_ID   SymKind = 0x114a
	S_GPROCIA64_ID   SymKind = 0x114b
	S_BUILDINFO      SymKind = 0x114c
	S_INLINESITE     SymKind = 0x114d
	S_INLINESITE_END SymKind = 0x114e
	S_PROC_ID_END    SymKind = 0x114f
	S_FILESTATIC     SymKind = 0x1153
	S_LPROC32_DPC    SymKind = 0x1155
	S_LPROC32_DPC_ID SymKind = 0x1156
	S_CALLEES        SymKind = 0x115a
	S_CALLERS        SymKind = 0x115b
	S_INLINESITE2    SymKind = 0x115d
	S_HEAPALLOCSITE  SymKind = 0x115e
	S_INLINEES       SymKind = 0x1168
)

// Debug subsection kinds found in .debug$S.
const (
	DebugSSymbols      uint32 = 0xf1
	DebugSInlineeLines uint32 = 0xf6
	DebugSIgnore       uint32 = 0x80000000
)

// SectionSignatureC13 prefixes .debug$S, .debug$T and .debug$P sections.
const SectionSignatureC13 uint32 = 4
