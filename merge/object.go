package merge

import (
	"github.com/skdltmxn/cvmerge/internal/cv"
)

// Object is the debug information of one input object file.
// Symbols and InlineeLines alias the object's section data and are
// patched in place.
type Object struct {
	Path string

	// Types are the .debug$T leaves, including a leading LF_TYPESERVER2
	// or LF_PRECOMP record when present.
	Types []cv.Record

	// Precomp are the .debug$P leaves of a precompiled-header object,
	// ending with LF_ENDPRECOMP.
	Precomp []cv.Record

	// Symbols are the records of every DEBUG_S_SYMBOLS subsection.
	Symbols []cv.Record

	// InlineeLines are the bodies of every DEBUG_S_INLINEELINES subsection.
	InlineeLines [][]byte

	// Discarded is set when the object's debug information could not be
	// merged. Its Symbols and InlineeLines are cleared.
	Discarded bool
}

// TypeServer is a PDB holding the types of objects compiled with /Zi.
type TypeServer struct {
	Path string
	GUID [16]byte
	Age  uint32

	Types    []cv.Record
	IDs      []cv.Record
	TypeBase cv.TypeIndex
	IDBase   cv.TypeIndex
}

// leafArray is a leaf array with the per-leaf state of the hashing phase.
type leafArray struct {
	recs   []cv.Record
	refs   [][]cv.TIRef
	hashes []Hash

	// malformed marks leaves whose index fields could not all be located.
	// They are kept out of the dedup table.
	malformed []bool
}

func newLeafArray(recs []cv.Record) leafArray {
	return leafArray{
		recs:      recs,
		refs:      make([][]cv.TIRef, len(recs)),
		hashes:    make([]Hash, len(recs)),
		malformed: make([]bool, len(recs)),
	}
}

func (a *leafArray) len() int {
	return len(a.recs)
}

// object is the merge state of one input object.
type object struct {
	*Object
	idx int

	// leaves holds the object's own leaves: .debug$T without a leading
	// LF_PRECOMP, or .debug$P without the trailing LF_ENDPRECOMP.
	leaves leafArray

	// tiLo/tiHi bound the index block borrowed from pchSource.
	// They are equal to MinComplexIndex when there is none.
	tiLo, tiHi cv.TypeIndex
	pchSource  int

	pchName      string
	pchSignature uint32
	isPCHSource  bool

	// pchLen is the number of leaves a source's .debug$P block exports.
	pchLen int

	typeServer int
}

func newObject(o *Object, idx int) *object {
	return &object{
		Object:     o,
		idx:        idx,
		tiLo:       cv.MinComplexIndex,
		tiHi:       cv.MinComplexIndex,
		pchSource:  -1,
		typeServer: -1,
	}
}

func (o *object) discard() {
	o.Discarded = true
	o.Symbols = nil
	o.InlineeLines = nil
	o.leaves = leafArray{}
}

// server is the merge state of one type server.
type server struct {
	*TypeServer
	idx    int
	arrays [2]leafArray // by cv.Space
}

func (s *server) base(space cv.Space) cv.TypeIndex {
	if space == cv.SpaceIPI {
		return s.IDBase
	}
	return s.TypeBase
}
