package merge

import (
	"encoding/binary"

	"go.uber.org/atomic"

	"github.com/skdltmxn/cvmerge/internal/cv"
)

// Bucket is a dedup table entry: the canonical leaf for one hash.
// A Bucket is immutable once published except for Index, which is written
// by the index assigner after the table is frozen.
type Bucket struct {
	Hash  Hash
	Ref   LeafRef
	Index cv.TypeIndex
}

// Table is a fixed-capacity open-addressing hash table keyed by leaf
// hash. Each slot holds an atomically swapped *Bucket, so InsertOrUpdate
// may be called from any number of goroutines without locks.
type Table struct {
	slots []atomic.Pointer[Bucket]
	used  atomic.Int64

	// equal, when set, must hold before two leaves with the same hash are
	// treated as one type.
	equal func(a, b LeafRef) bool
}

// TableCapacity returns the slot count used for n leaves.
func TableCapacity(n int) int {
	return (n*13+9)/10 + 64
}

// NewTable returns a table with capacity slots.
func NewTable(capacity int, equal func(a, b LeafRef) bool) *Table {
	return &Table{
		slots: make([]atomic.Pointer[Bucket], capacity),
		equal: equal,
	}
}

// Cap returns the number of slots.
func (t *Table) Cap() int {
	return len(t.slots)
}

// Len returns the number of occupied slots.
func (t *Table) Len() int {
	return int(t.used.Load())
}

func (t *Table) start(h Hash) int {
	return int(binary.LittleEndian.Uint64(h[:8]) % uint64(len(t.slots)))
}

func (t *Table) matches(b *Bucket, h Hash, ref LeafRef) bool {
	if b.Hash != h {
		return false
	}
	return t.equal == nil || b.Ref == ref || t.equal(b.Ref, ref)
}

// InsertOrUpdate records ref as a leaf with hash h. When the hash is
// already present the bucket keeps whichever of the two references is
// smaller, so the final content of the table is independent of insertion
// order. It returns the bucket now holding h.
func (t *Table) InsertOrUpdate(h Hash, ref LeafRef) (*Bucket, error) {
	n := len(t.slots)
	start := t.start(h)
	for i := 0; i < n; i++ {
		slot := &t.slots[(start+i)%n]
		for {
			cur := slot.Load()
			if cur == nil {
				b := &Bucket{Hash: h, Ref: ref}
				if slot.CompareAndSwap(nil, b) {
					t.used.Inc()
					return b, nil
				}
				continue
			}
			if !t.matches(cur, h, ref) {
				break
			}
			if !ref.Less(cur.Ref) {
				return cur, nil
			}
			b := &Bucket{Hash: h, Ref: ref, Index: cur.Index}
			if slot.CompareAndSwap(cur, b) {
				return b, nil
			}
		}
	}
	return nil, ErrTableFull
}

// Search returns the bucket for a leaf with hash h, or nil. It must only
// be called once no InsertOrUpdate is in flight.
func (t *Table) Search(h Hash, ref LeafRef) *Bucket {
	n := len(t.slots)
	start := t.start(h)
	for i := 0; i < n; i++ {
		cur := t.slots[(start+i)%n].Load()
		if cur == nil {
			return nil
		}
		if t.matches(cur, h, ref) {
			return cur
		}
	}
	return nil
}

// Slot returns the bucket in slot i, or nil.
func (t *Table) Slot(i int) *Bucket {
	return t.slots[i].Load()
}
