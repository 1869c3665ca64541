package pdbtest

import (
	"encoding/binary"
	"os"

	"github.com/skdltmxn/cvmerge/internal/cv"
)

// Object describes the CodeView sections of a COFF object.
type Object struct {
	Types        []cv.Record
	Precomp      []cv.Record
	Symbols      []cv.Record
	InlineeLines [][]byte
}

const (
	coffHeaderSize    = 20
	sectionHeaderSize = 40
	machineAMD64      = 0x8664
	sectionFlags      = 0x42100040 // initialized data, discardable, read, align 1
)

func section(recs []cv.Record) []byte {
	buf := binary.LittleEndian.AppendUint32(nil, cv.SectionSignatureC13)
	for _, r := range recs {
		buf = append(buf, r...)
	}
	return buf
}

func subsection(buf []byte, kind uint32, body []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, kind)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(body)))
	buf = append(buf, body...)
	for len(buf)%4 != 0 {
		buf = append(buf, 0)
	}
	return buf
}

// Bytes encodes the object as a COFF file with one section per
// non-empty CodeView part.
func (o *Object) Bytes() []byte {
	type sec struct {
		name string
		data []byte
	}
	var secs []sec
	if len(o.Types) > 0 {
		secs = append(secs, sec{".debug$T", section(o.Types)})
	}
	if len(o.Precomp) > 0 {
		secs = append(secs, sec{".debug$P", section(o.Precomp)})
	}
	if len(o.Symbols) > 0 || len(o.InlineeLines) > 0 {
		buf := binary.LittleEndian.AppendUint32(nil, cv.SectionSignatureC13)
		if len(o.Symbols) > 0 {
			var body []byte
			for _, r := range o.Symbols {
				body = append(body, r...)
			}
			buf = subsection(buf, cv.DebugSSymbols, body)
		}
		// An ignored subsection must be skipped by readers.
		buf = subsection(buf, cv.DebugSIgnore|0xf4, []byte{1, 2, 3})
		for _, sub := range o.InlineeLines {
			buf = subsection(buf, cv.DebugSInlineeLines, sub)
		}
		secs = append(secs, sec{".debug$S", buf})
	}

	le := binary.LittleEndian
	out := make([]byte, coffHeaderSize+sectionHeaderSize*len(secs))
	le.PutUint16(out[0:], machineAMD64)
	le.PutUint16(out[2:], uint16(len(secs)))
	for i, s := range secs {
		h := out[coffHeaderSize+i*sectionHeaderSize:]
		copy(h[:8], s.name)
		le.PutUint32(h[16:], uint32(len(s.data)))
		le.PutUint32(h[20:], uint32(len(out)))
		le.PutUint32(h[36:], sectionFlags)
		out = append(out, s.data...)
	}
	// debug/pe reads a DOS header worth of bytes before anything else.
	for len(out) < 128 {
		out = append(out, 0)
	}
	return out
}

// Write writes the object to path.
func (o *Object) Write(path string) error {
	return os.WriteFile(path, o.Bytes(), 0o644)
}
