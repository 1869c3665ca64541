package merge

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/skdltmxn/cvmerge/internal/cv"
)

// HashSize is the size of a leaf content hash.
const HashSize = 16

// Hash is the content hash of a leaf. It covers the leaf bytes and,
// recursively, the hashes of the leaves it references, so equal hashes
// mean structurally equal types regardless of where they were found.
// The zero Hash means the leaf has not been hashed.
type Hash [HashSize]byte

// IsZero reports whether h is the not-yet-hashed sentinel.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Field tags separating raw indices from dependency hashes in the digest.
const (
	tagRaw byte = 0
	tagDep byte = 1
)

// scanLeaves locates the type-index fields of every leaf in arr. A leaf
// whose fields cannot all be located is still hashed over the fields that
// were found, but never reaches the output; references to it become
// NoType.
func (c *Context) scanLeaves(loc uint32, arr *leafArray, d *diags) {
	for i, rec := range arr.recs {
		refs, err := cv.LeafTIRefs(rec)
		arr.refs[i] = refs
		if err != nil {
			arr.malformed[i] = true
			d.add(c.locName(loc), i, -1, fmt.Errorf("%w: %v: %w", ErrMalformedRecord, rec.LeafKind(), err))
		}
	}
}

// arraySpace returns the space that selects ref's leaf array.
// An object has a single array for both spaces.
func arraySpace(ref LeafRef) cv.Space {
	if ref.External() {
		return ref.Space()
	}
	return cv.SpaceTPI
}

type frame struct {
	space cv.Space
	pos   int
	next  int // next TI field to examine
}

// hashLocation hashes every leaf of one location. Leaves of other
// locations it depends on must already be hashed.
func (c *Context) hashLocation(loc uint32, d *diags) {
	spaces := []cv.Space{cv.SpaceTPI}
	if loc&ExternalFlag != 0 {
		// IPI leaves reference TPI leaves, never the reverse.
		spaces = append(spaces, cv.SpaceIPI)
	}
	var stack []frame
	for _, space := range spaces {
		arr := c.array(loc, space)
		for pos := range arr.recs {
			if arr.hashes[pos].IsZero() {
				stack = c.hashLeaf(loc, space, pos, stack[:0], d)
			}
		}
	}
}

// hashLeaf hashes the leaf at pos after every earlier leaf of the same
// array it references, using an explicit stack.
func (c *Context) hashLeaf(loc uint32, space cv.Space, pos int, stack []frame, d *diags) []frame {
	stack = append(stack, frame{space: space, pos: pos})
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		arr := c.array(loc, top.space)
		if dep, ok := c.nextPending(loc, top, arr); ok {
			stack = append(stack, dep)
			continue
		}
		arr.hashes[top.pos] = c.digest(loc, top.space, top.pos, d)
		stack = stack[:len(stack)-1]
	}
	return stack
}

// nextPending advances f over its type-index fields and returns the first
// earlier leaf of the same array that is not hashed yet.
func (c *Context) nextPending(loc uint32, f *frame, arr *leafArray) (frame, bool) {
	rec := arr.recs[f.pos]
	refs := arr.refs[f.pos]
	for f.next < len(refs) {
		r := refs[f.next]
		f.next++
		ti := cv.TypeIndex(binary.LittleEndian.Uint32(rec[r.Offset:]))
		if ti.IsSimple() {
			continue
		}
		ref, err := c.Resolve(loc, ti, r.Space)
		if err != nil || ref.Loc != loc || arraySpace(ref) != f.space || ref.Pos() >= f.pos {
			continue
		}
		if arr.hashes[ref.Pos()].IsZero() {
			return frame{space: f.space, pos: ref.Pos()}, true
		}
	}
	return frame{}, false
}

// digest computes the hash of one leaf whose dependencies are done.
// Fields that do not resolve to a hashed leaf contribute their raw value.
func (c *Context) digest(loc uint32, space cv.Space, pos int, d *diags) Hash {
	arr := c.array(loc, space)
	rec := arr.recs[pos]

	h, err := blake2b.New(HashSize, nil)
	if err != nil {
		panic(err)
	}
	var field [1 + HashSize]byte
	prev := 0
	for _, r := range arr.refs[pos] {
		off := int(r.Offset)
		h.Write(rec[prev:off])
		prev = off + 4

		ti := cv.TypeIndex(binary.LittleEndian.Uint32(rec[off:]))
		dep, err := c.depHash(loc, space, pos, ti, r.Space)
		if err != nil {
			d.add(c.locName(loc), pos, off, err)
		}
		if dep.IsZero() {
			field[0] = tagRaw
			binary.LittleEndian.PutUint32(field[1:], uint32(ti))
			h.Write(field[:5])
		} else {
			field[0] = tagDep
			copy(field[1:], dep[:])
			h.Write(field[:])
		}
	}
	h.Write(rec[prev:])

	var sum Hash
	h.Sum(sum[:0])
	if sum.IsZero() {
		sum[0] = 1
	}
	return sum
}

// depHash returns the hash of the leaf ti names from the leaf at pos, or
// the zero Hash when ti is simple or cannot contribute a hash.
func (c *Context) depHash(loc uint32, space cv.Space, pos int, ti cv.TypeIndex, fieldSpace cv.Space) (Hash, error) {
	if ti.IsSimple() {
		return Hash{}, nil
	}
	ref, err := c.Resolve(loc, ti, fieldSpace)
	if err != nil {
		return Hash{}, err
	}
	if ref.Loc == loc && arraySpace(ref) == space && ref.Pos() >= pos {
		return Hash{}, fmt.Errorf("%w: %#x", ErrForwardReference, uint32(ti))
	}
	dep := c.hashOf(ref)
	if dep.IsZero() {
		return Hash{}, fmt.Errorf("%w: %v", ErrUnresolvedDep, ref)
	}
	return dep, nil
}
