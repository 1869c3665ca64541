package merge

import (
	"math/bits"
	"slices"

	"github.com/skdltmxn/cvmerge/internal/par"
)

// DefaultRadixThreshold is the bucket count from which buckets are
// ordered with the parallel radix sort.
const DefaultRadixThreshold = 32768

// radix sort digit widths
const (
	posDigitBits = 11
	digitPasses  = 3
)

// extract returns the occupied buckets of t in slot order. Each worker
// counts its slot range, then copies its buckets to its prefix offset.
func extract(t *Table, workers int) []*Bucket {
	ranges := par.Ranges(workers, t.Cap())
	counts := make([]int, len(ranges))
	_ = par.For(workers, t.Cap(), func(r par.Range) error {
		n := 0
		for i := r.Lo; i < r.Hi; i++ {
			if t.Slot(i) != nil {
				n++
			}
		}
		counts[r.Worker] = n
		return nil
	})

	total := 0
	for w, n := range counts {
		counts[w] = total
		total += n
	}

	out := make([]*Bucket, total)
	_ = par.For(workers, t.Cap(), func(r par.Range) error {
		at := counts[r.Worker]
		for i := r.Lo; i < r.Hi; i++ {
			if b := t.Slot(i); b != nil {
				out[at] = b
				at++
			}
		}
		return nil
	})
	return out
}

// sorter orders buckets by their LeafRef.
type sorter struct {
	workers   int
	threshold int
	objects   int // number of objects; type servers follow them in the location key
	locBits   int
}

func newSorter(workers, threshold, objects, servers int) *sorter {
	return &sorter{
		workers:   workers,
		threshold: threshold,
		objects:   objects,
		locBits:   bits.Len(uint(objects + servers)),
	}
}

// locKey maps a location to a dense key ordered like LeafRef.Loc.
func (s *sorter) locKey(b *Bucket) uint32 {
	if b.Ref.External() {
		return uint32(s.objects + b.Ref.LocIndex())
	}
	return b.Ref.Loc
}

func posKey(b *Bucket) uint32 {
	return uint32(b.Ref.Pos())
}

// sort orders buckets by (Loc, Index). It may reorder buckets in place
// and returns the sorted slice.
func (s *sorter) sort(buckets []*Bucket) []*Bucket {
	if len(buckets) < s.threshold {
		slices.SortFunc(buckets, func(a, b *Bucket) int {
			switch {
			case a.Ref.Less(b.Ref):
				return -1
			case b.Ref.Less(a.Ref):
				return 1
			}
			return 0
		})
		return buckets
	}

	src, dst := buckets, make([]*Bucket, len(buckets))
	for p := 0; p < digitPasses; p++ {
		s.radixPass(src, dst, posKey, uint(p*posDigitBits), posDigitBits)
		src, dst = dst, src
	}
	width := max((s.locBits+digitPasses-1)/digitPasses, 1)
	for p := 0; p < digitPasses; p++ {
		s.radixPass(src, dst, s.locKey, uint(p*width), uint(width))
		src, dst = dst, src
	}
	return src
}

// radixPass is one stable counting-sort pass over a width-bit digit of
// key. Workers histogram contiguous ranges, then scatter to offsets that
// place lower ranges first within each digit.
func (s *sorter) radixPass(src, dst []*Bucket, key func(*Bucket) uint32, shift, width uint) {
	radix := 1 << width
	mask := uint32(radix - 1)
	ranges := par.Ranges(s.workers, len(src))
	counts := make([][]int, len(ranges))
	_ = par.For(s.workers, len(src), func(r par.Range) error {
		c := make([]int, radix)
		for _, b := range src[r.Lo:r.Hi] {
			c[key(b)>>shift&mask]++
		}
		counts[r.Worker] = c
		return nil
	})

	off := 0
	for d := 0; d < radix; d++ {
		for _, c := range counts {
			n := c[d]
			c[d] = off
			off += n
		}
	}

	_ = par.For(s.workers, len(src), func(r par.Range) error {
		c := counts[r.Worker]
		for _, b := range src[r.Lo:r.Hi] {
			d := key(b) >> shift & mask
			dst[c[d]] = b
			c[d]++
		}
		return nil
	})
}
