package pdbtest

import (
	"encoding/binary"
	"os"

	"github.com/skdltmxn/cvmerge/internal/cv"
	"github.com/skdltmxn/cvmerge/internal/tpi"
	"github.com/skdltmxn/cvmerge/msf"
)

const blockSize = 512

// PDB describes a type-server PDB. A nil IDs omits the IPI stream.
type PDB struct {
	GUID  [16]byte
	Age   uint32
	Types []cv.Record
	IDs   []cv.Record
}

// TypeStream encodes a TPI/IPI stream holding recs from MinComplexIndex.
func TypeStream(recs []cv.Record) []byte {
	var body []byte
	for _, r := range recs {
		body = append(body, r...)
	}
	le := binary.LittleEndian
	hdr := make([]byte, tpi.HeaderSize)
	le.PutUint32(hdr[0:], tpi.TPIVersionV80)
	le.PutUint32(hdr[4:], tpi.HeaderSize)
	le.PutUint32(hdr[8:], uint32(cv.MinComplexIndex))
	le.PutUint32(hdr[12:], uint32(cv.MinComplexIndex)+uint32(len(recs)))
	le.PutUint32(hdr[16:], uint32(len(body)))
	le.PutUint16(hdr[20:], 0xffff)
	le.PutUint16(hdr[22:], 0xffff)
	le.PutUint32(hdr[24:], 4)
	return append(hdr, body...)
}

// Bytes encodes the PDB as an MSF file.
func (p *PDB) Bytes() []byte {
	info := make([]byte, 28)
	binary.LittleEndian.PutUint32(info[0:], 20000404)
	binary.LittleEndian.PutUint32(info[8:], p.Age)
	copy(info[12:], p.GUID[:])

	streams := [][]byte{{}, info, TypeStream(p.Types), {}, nil}
	if p.IDs != nil {
		streams[msf.StreamIPI] = TypeStream(p.IDs)
	}
	return MSF(streams)
}

// Write writes the PDB to path.
func (p *PDB) Write(path string) error {
	return os.WriteFile(path, p.Bytes(), 0o644)
}

// MSF lays out streams in an MSF 7.0 container. A nil stream is encoded
// as a nil stream.
func MSF(streams [][]byte) []byte {
	le := binary.LittleEndian
	next := uint32(3) // superblock and both free page maps
	var blocks [][]byte
	alloc := func(data []byte) []uint32 {
		var idx []uint32
		for off := 0; off < len(data); off += blockSize {
			b := make([]byte, blockSize)
			copy(b, data[off:])
			blocks = append(blocks, b)
			idx = append(idx, next)
			next++
		}
		return idx
	}

	dir := le.AppendUint32(nil, uint32(len(streams)))
	var lists [][]uint32
	for _, s := range streams {
		if s == nil {
			dir = le.AppendUint32(dir, msf.NilStreamSize)
			lists = append(lists, nil)
			continue
		}
		dir = le.AppendUint32(dir, uint32(len(s)))
		lists = append(lists, alloc(s))
	}
	for _, l := range lists {
		for _, b := range l {
			dir = le.AppendUint32(dir, b)
		}
	}

	var dirMap []byte
	for _, b := range alloc(dir) {
		dirMap = le.AppendUint32(dirMap, b)
	}
	mapAddr := next
	alloc(dirMap)

	out := make([]byte, int(next)*blockSize)
	copy(out, msf.Magic)
	le.PutUint32(out[32:], blockSize)
	le.PutUint32(out[36:], 1)
	le.PutUint32(out[40:], next)
	le.PutUint32(out[44:], uint32(len(dir)))
	le.PutUint32(out[52:], mapAddr)
	for i, b := range blocks {
		copy(out[(3+i)*blockSize:], b)
	}
	return out
}
