// Package merge deduplicates the CodeView type records contributed by
// object files and type-server PDBs into one minimal pair of TPI/IPI
// streams and rewrites every type-index reference to the new numbering.
//
// A merge runs as a fixed sequence of fork-join phases: type-server
// discovery, hashing, dedup-table insertion, present-bucket extraction,
// sorting, index assignment and patching. Only the dedup table and the
// per-location hash arrays are shared between workers of a phase.
package merge

import (
	"fmt"

	"github.com/skdltmxn/cvmerge/internal/cv"
)

const (
	// ExternalFlag marks a LeafRef location that names a type server.
	ExternalFlag uint32 = 1 << 31

	// IPIFlag marks a LeafRef index that belongs to the item-id space.
	IPIFlag uint32 = 1 << 31
)

// LeafRef identifies the Nth leaf contributed by one location (an object
// file or a type server). It is only meaningful for the duration of one merge.
type LeafRef struct {
	Loc   uint32
	Index uint32
}

func internalRef(obj int, pos int, space cv.Space) LeafRef {
	return LeafRef{Loc: uint32(obj), Index: spaceIndex(pos, space)}
}

func externalRef(ts int, pos int, space cv.Space) LeafRef {
	return LeafRef{Loc: uint32(ts) | ExternalFlag, Index: spaceIndex(pos, space)}
}

func spaceIndex(pos int, space cv.Space) uint32 {
	if space == cv.SpaceIPI {
		return uint32(pos) | IPIFlag
	}
	return uint32(pos)
}

// External reports whether the leaf lives in a type server.
func (r LeafRef) External() bool {
	return r.Loc&ExternalFlag != 0
}

// LocIndex returns the object or type-server index with the flag removed.
func (r LeafRef) LocIndex() int {
	return int(r.Loc &^ ExternalFlag)
}

// Space returns the index space of the leaf.
func (r LeafRef) Space() cv.Space {
	if r.Index&IPIFlag != 0 {
		return cv.SpaceIPI
	}
	return cv.SpaceTPI
}

// Pos returns the position of the leaf in its location's leaf array.
func (r LeafRef) Pos() int {
	return int(r.Index &^ IPIFlag)
}

// Less orders references by (Loc, Index). Internal locations sort before
// external ones. The earlier reference is the canonical one for a type.
func (r LeafRef) Less(o LeafRef) bool {
	if r.Loc != o.Loc {
		return r.Loc < o.Loc
	}
	return r.Index < o.Index
}

func (r LeafRef) String() string {
	kind := "obj"
	if r.External() {
		kind = "ts"
	}
	return fmt.Sprintf("%s%d:%s[%d]", kind, r.LocIndex(), r.Space(), r.Pos())
}
