package cv

import (
	"encoding/binary"
	"fmt"
)

// Numeric leaf kinds that prefix variable-sized integer and real values.
const (
	lfNumeric    = 0x8000
	lfChar       = 0x8000
	lfShort      = 0x8001
	lfUShort     = 0x8002
	lfLong       = 0x8003
	lfULong      = 0x8004
	lfReal32     = 0x8005
	lfReal64     = 0x8006
	lfReal80     = 0x8007
	lfReal128    = 0x8008
	lfQuadword   = 0x8009
	lfUQuadword  = 0x800a
	lfReal48     = 0x800b
	lfComplex32  = 0x800c
	lfComplex64  = 0x800d
	lfComplex80  = 0x800e
	lfComplex128 = 0x800f
	lfVarString  = 0x8010
	lfOctword    = 0x8017
	lfUOctword   = 0x8018
	lfDecimal    = 0x8019
	lfDate       = 0x801a
	lfUTF8String = 0x801b
	lfReal16     = 0x801c
)

// numericPayload maps fixed-width numeric leaf kinds to their value size.
var numericPayload = map[uint16]int{
	lfChar:       1,
	lfShort:      2,
	lfUShort:     2,
	lfLong:       4,
	lfULong:      4,
	lfReal32:     4,
	lfReal64:     8,
	lfReal80:     10,
	lfReal128:    16,
	lfQuadword:   8,
	lfUQuadword:  8,
	lfReal48:     6,
	lfComplex32:  8,
	lfComplex64:  16,
	lfComplex80:  20,
	lfComplex128: 32,
	lfOctword:    16,
	lfUOctword:   16,
	lfDecimal:    16,
	lfDate:       8,
	lfReal16:     2,
}

// NumericSize returns the encoded size of the numeric leaf at data[off:].
func NumericSize(data []byte, off int) (int, error) {
	if off+2 > len(data) {
		return 0, ErrTruncatedRecord
	}
	leaf := binary.LittleEndian.Uint16(data[off:])
	if leaf < lfNumeric {
		return 2, nil
	}

	var size int
	switch leaf {
	case lfVarString:
		if off+4 > len(data) {
			return 0, ErrTruncatedRecord
		}
		size = 4 + int(binary.LittleEndian.Uint16(data[off+2:]))
	case lfUTF8String:
		end := off + 2
		for end < len(data) && data[end] != 0 {
			end++
		}
		if end >= len(data) {
			return 0, ErrTruncatedRecord
		}
		size = end + 1 - off
	default:
		n, ok := numericPayload[leaf]
		if !ok {
			return 0, fmt.Errorf("%w: unknown numeric leaf %#04x", ErrInvalidRecord, leaf)
		}
		size = 2 + n
	}
	if off+size > len(data) {
		return 0, ErrTruncatedRecord
	}
	return size, nil
}
