package merge

import (
	"github.com/skdltmxn/cvmerge/internal/cv"
	"github.com/skdltmxn/cvmerge/internal/par"
)

// assignIndices numbers sorted buckets contiguously from MinComplexIndex.
func assignIndices(buckets []*Bucket, workers int) {
	_ = par.For(workers, len(buckets), func(r par.Range) error {
		for i := r.Lo; i < r.Hi; i++ {
			buckets[i].Index = cv.MinComplexIndex + cv.TypeIndex(i)
		}
		return nil
	})
}

// unbucket copies the leaf of every bucket into one output arena, in
// bucket order. The copies are what the leaf patcher rewrites.
func (c *Context) unbucket(buckets []*Bucket) []cv.Record {
	ranges := par.Ranges(c.workers, len(buckets))
	sizes := make([]int, len(ranges))
	_ = par.For(c.workers, len(buckets), func(r par.Range) error {
		n := 0
		for _, b := range buckets[r.Lo:r.Hi] {
			n += len(c.Leaf(b.Ref))
		}
		sizes[r.Worker] = n
		return nil
	})

	total := 0
	for w, n := range sizes {
		sizes[w] = total
		total += n
	}

	arena := make([]byte, total)
	out := make([]cv.Record, len(buckets))
	_ = par.For(c.workers, len(buckets), func(r par.Range) error {
		at := sizes[r.Worker]
		for i := r.Lo; i < r.Hi; i++ {
			leaf := c.Leaf(buckets[i].Ref)
			n := copy(arena[at:], leaf)
			out[i] = cv.Record(arena[at : at+n : at+n])
			at += n
		}
		return nil
	})
	return out
}
