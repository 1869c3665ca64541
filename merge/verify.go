package merge

import (
	"bytes"
	"encoding/binary"

	"github.com/skdltmxn/cvmerge/internal/cv"
)

// sameLeaf compares two leaves byte for byte outside their type-index
// fields and by dependency hash inside them. It backs the dedup table
// when deep verification is enabled.
func (c *Context) sameLeaf(a, b LeafRef) bool {
	ra, rb := c.Leaf(a), c.Leaf(b)
	fa, fb := c.refsOf(a), c.refsOf(b)
	if len(ra) != len(rb) || len(fa) != len(fb) {
		return false
	}
	prev := 0
	for i := range fa {
		if fa[i] != fb[i] {
			return false
		}
		off := int(fa[i].Offset)
		if !bytes.Equal(ra[prev:off], rb[prev:off]) {
			return false
		}
		prev = off + 4

		tia := cv.TypeIndex(binary.LittleEndian.Uint32(ra[off:]))
		tib := cv.TypeIndex(binary.LittleEndian.Uint32(rb[off:]))
		ha, _ := c.depHash(a.Loc, arraySpace(a), a.Pos(), tia, fa[i].Space)
		hb, _ := c.depHash(b.Loc, arraySpace(b), b.Pos(), tib, fb[i].Space)
		if ha != hb || (ha.IsZero() && tia != tib) {
			return false
		}
	}
	return bytes.Equal(ra[prev:], rb[prev:])
}
