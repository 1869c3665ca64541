package merge

import (
	"testing"

	"github.com/skdltmxn/cvmerge/internal/cv"
	"github.com/skdltmxn/cvmerge/internal/pdbtest"
)

func TestHashIndependentOfPosition(t *testing.T) {
	a := &Object{Path: "a.obj", Types: fooTypes()}
	b := &Object{Path: "b.obj", Types: append([]cv.Record{pdbtest.Modifier(tInt4, 1)}, pdbtest.Clone([]cv.Record{
		pdbtest.FieldList(pdbtest.Member(tInt4, 0, "x")),
		pdbtest.Structure("Foo", 0x1001, 1, 4),
		pdbtest.Pointer(0x1002),
	})...)}
	// Same shape, different member type.
	d := &Object{Path: "d.obj", Types: []cv.Record{
		pdbtest.FieldList(pdbtest.Member(0x75, 0, "x")),
		pdbtest.Structure("Foo", 0x1000, 1, 4),
		pdbtest.Pointer(0x1001),
	}}
	c, warnings := prepare(t, []*Object{a, b, d}, Options{Workers: 3})
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}

	for pos := 0; pos < 3; pos++ {
		ha := c.hashOf(internalRef(0, pos, cv.SpaceTPI))
		hb := c.hashOf(internalRef(1, pos+1, cv.SpaceTPI))
		hd := c.hashOf(internalRef(2, pos, cv.SpaceTPI))
		if ha.IsZero() {
			t.Fatalf("leaf %d not hashed", pos)
		}
		if ha != hb {
			t.Errorf("leaf %d: %v != %v", pos, ha, hb)
		}
		// The difference propagates through every dependent leaf.
		if ha == hd {
			t.Errorf("leaf %d: different types share hash %v", pos, ha)
		}
	}

	if !c.sameLeaf(internalRef(0, 1, cv.SpaceTPI), internalRef(1, 2, cv.SpaceTPI)) {
		t.Error("sameLeaf(Foo, Foo) = false")
	}
	if c.sameLeaf(internalRef(0, 1, cv.SpaceTPI), internalRef(2, 1, cv.SpaceTPI)) {
		t.Error("sameLeaf(Foo{int}, Foo{uint}) = true")
	}
	if c.sameLeaf(internalRef(0, 1, cv.SpaceTPI), internalRef(0, 2, cv.SpaceTPI)) {
		t.Error("sameLeaf(Foo, Foo*) = true")
	}
}

func TestHashDeepChain(t *testing.T) {
	// A long pointer chain is hashed without recursion.
	recs := []cv.Record{pdbtest.Pointer(tInt4)}
	for i := 1; i < 100000; i++ {
		recs = append(recs, pdbtest.Pointer(pdbtest.Index(i-1)))
	}
	o := &Object{Path: "chain.obj", Types: recs}
	c := newContext([]*Object{o}, 1)
	if _, err := c.wireLeaves(); err != nil {
		t.Fatal(err)
	}
	var d diags
	c.scanLeaves(0, &c.objs[0].leaves, &d)
	// Hash the tail first so the whole chain sits on the work stack.
	c.hashLeaf(0, cv.SpaceTPI, len(recs)-1, nil, &d)
	if len(d) != 0 {
		t.Fatalf("unexpected diagnostics: %v", d)
	}
	for i, h := range c.objs[0].leaves.hashes {
		if h.IsZero() {
			t.Fatalf("leaf %d not hashed", i)
		}
	}
}
