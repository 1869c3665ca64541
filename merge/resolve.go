package merge

import (
	"fmt"

	"github.com/skdltmxn/cvmerge/internal/cv"
)

// Resolve maps a raw type index found in a record of location loc to the
// leaf it names. space is the index space declared by the field; it
// selects the array of a type server and is otherwise informational,
// since an object's leaves share one index sequence.
//
// Simple indices never resolve.
func (c *Context) Resolve(loc uint32, ti cv.TypeIndex, space cv.Space) (LeafRef, error) {
	if ti.IsSimple() {
		return LeafRef{}, fmt.Errorf("%w: %#x is a simple type", ErrBadTypeIndex, uint32(ti))
	}
	if loc&ExternalFlag != 0 {
		return c.resolveExternal(int(loc&^ExternalFlag), ti, space)
	}
	o := c.objs[loc]
	if o.typeServer >= 0 {
		return c.resolveExternal(o.typeServer, ti, space)
	}

	target := o
	var pos int
	switch {
	case ti < o.tiLo:
		pos = int(ti - cv.MinComplexIndex)
	case ti < o.tiHi:
		target = c.objs[o.pchSource]
		pos = int(ti - o.tiLo)
	default:
		pos = int(o.tiLo-cv.MinComplexIndex) + int(ti-o.tiHi)
	}
	if pos >= target.leaves.len() {
		return LeafRef{}, fmt.Errorf("%w: %#x (%s) past %d leaves", ErrBadTypeIndex, uint32(ti), space, target.leaves.len())
	}
	return internalRef(target.idx, pos, target.leaves.recs[pos].LeafKind().Space()), nil
}

func (c *Context) resolveExternal(ts int, ti cv.TypeIndex, space cv.Space) (LeafRef, error) {
	s := c.servers[ts]
	base := s.base(space)
	arr := &s.arrays[space]
	if ti < base || int(ti-base) >= arr.len() {
		return LeafRef{}, fmt.Errorf("%w: %#x outside %s of %s", ErrBadTypeIndex, uint32(ti), space, s.Path)
	}
	return externalRef(ts, int(ti-base), space), nil
}

// array returns the leaf array that holds leaves of loc in space.
func (c *Context) array(loc uint32, space cv.Space) *leafArray {
	if loc&ExternalFlag != 0 {
		return &c.servers[loc&^ExternalFlag].arrays[space]
	}
	return &c.objs[loc].leaves
}

// Leaf returns the record ref names.
func (c *Context) Leaf(ref LeafRef) cv.Record {
	return c.array(ref.Loc, ref.Space()).recs[ref.Pos()]
}

func (c *Context) hashOf(ref LeafRef) Hash {
	return c.array(ref.Loc, ref.Space()).hashes[ref.Pos()]
}

func (c *Context) refsOf(ref LeafRef) []cv.TIRef {
	return c.array(ref.Loc, ref.Space()).refs[ref.Pos()]
}

// locName returns the path of the object or type server loc.
func (c *Context) locName(loc uint32) string {
	if loc&ExternalFlag != 0 {
		return c.servers[loc&^ExternalFlag].Path
	}
	return c.objs[loc].Path
}
