package merge

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/skdltmxn/cvmerge/internal/cv"
	"github.com/skdltmxn/cvmerge/internal/par"
	"github.com/skdltmxn/cvmerge/internal/stream"
)

// Search returns the bucket that holds the canonical leaf for ref, or nil
// when ref was never inserted. The tables must be frozen.
func (c *Context) Search(ref LeafRef) *Bucket {
	arr := c.array(ref.Loc, arraySpace(ref))
	h := arr.hashes[ref.Pos()]
	if h.IsZero() || arr.malformed[ref.Pos()] {
		return nil
	}
	return c.tables[ref.Space()].Search(h, ref)
}

// patchField rewrites the type index at data[r.Offset:], found in a record
// of location loc, to its final index. Unresolvable indices become NoType.
func (c *Context) patchField(loc uint32, data []byte, r cv.TIRef) error {
	off := int(r.Offset)
	raw, err := stream.U32At(data, off)
	if err != nil {
		return fmt.Errorf("%w: type index at %#x", ErrMalformedRecord, off)
	}
	ti := cv.TypeIndex(raw)
	if ti.IsSimple() {
		return nil
	}
	ref, err := c.Resolve(loc, ti, r.Space)
	if err == nil {
		if b := c.Search(ref); b != nil {
			return stream.PutU32(data, off, uint32(b.Index))
		}
		err = fmt.Errorf("%w: %#x (%v)", ErrUnmergedLeaf, raw, ref)
	}
	_ = stream.PutU32(data, off, uint32(cv.NoType))
	return err
}

func (c *Context) patchSymbols(o *object, d *diags) {
	loc := uint32(o.idx)
	for i, rec := range o.Symbols {
		refs, err := cv.SymbolTIRefs(rec)
		if err != nil {
			d.add(o.Path, i, -1, fmt.Errorf("%w: symbol %#04x: %w", ErrMalformedRecord, rec.Kind(), err))
		}
		for _, r := range refs {
			if err := c.patchField(loc, rec, r); err != nil {
				d.add(o.Path, i, int(r.Offset), err)
			}
		}
	}
}

func (c *Context) patchInlinees(o *object, d *diags) {
	loc := uint32(o.idx)
	for i, sub := range o.InlineeLines {
		refs, err := cv.InlineeTIRefs(sub)
		if err != nil {
			d.add(o.Path, -1, -1, fmt.Errorf("%w: inlinee lines %d: %w", ErrMalformedRecord, i, err))
		}
		for _, r := range refs {
			if err := c.patchField(loc, sub, r); err != nil {
				d.add(o.Path, -1, int(r.Offset), err)
			}
		}
	}
}

// patchLeaves rewrites the output copies of the buckets' leaves.
func (c *Context) patchLeaves(buckets []*Bucket, out []cv.Record, r par.Range, d *diags) {
	for i := r.Lo; i < r.Hi; i++ {
		ref := buckets[i].Ref
		for _, f := range c.refsOf(ref) {
			if err := c.patchField(ref.Loc, out[i], f); err != nil {
				d.add(c.locName(ref.Loc), ref.Pos(), int(f.Offset), err)
			}
		}
	}
}

// patch runs the symbol, inlinee and leaf patchers concurrently and
// returns their diagnostics.
func (c *Context) patch(buckets [2][]*Bucket, out [2][]cv.Record) []error {
	syms, inlinees := newSink(c.workers), newSink(c.workers)
	leaves := [2]sink{newSink(c.workers), newSink(c.workers)}

	var g errgroup.Group
	g.Go(func() error {
		return par.Each(c.workers, len(c.objs), func(w, i int) error {
			if o := c.objs[i]; !o.Discarded {
				c.patchSymbols(o, &syms[w])
			}
			return nil
		})
	})
	g.Go(func() error {
		return par.Each(c.workers, len(c.objs), func(w, i int) error {
			if o := c.objs[i]; !o.Discarded {
				c.patchInlinees(o, &inlinees[w])
			}
			return nil
		})
	})
	for space := range buckets {
		space := space
		g.Go(func() error {
			return par.For(c.workers, len(buckets[space]), func(r par.Range) error {
				c.patchLeaves(buckets[space], out[space], r, &leaves[space][r.Worker])
				return nil
			})
		})
	}
	_ = g.Wait()

	var errs []error
	for _, s := range []sink{syms, inlinees, leaves[0], leaves[1]} {
		errs = append(errs, s.errors()...)
	}
	return errs
}
