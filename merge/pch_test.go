package merge

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/skdltmxn/cvmerge/internal/cv"
	"github.com/skdltmxn/cvmerge/internal/pdbtest"
)

const pchSig = 0x5eed

func pchSource() *Object {
	return &Object{
		Path: `C:\src\stdafx.obj`,
		Precomp: []cv.Record{
			pdbtest.FieldList(pdbtest.Member(tInt4, 0, "a")),
			pdbtest.Structure("A", 0x1000, 1, 4),
			pdbtest.Pointer(0x1001),
			pdbtest.Modifier(0x1001, 1),
			pdbtest.Pointer(0x1003),
			pdbtest.EndPrecomp(pchSig),
		},
		Symbols: []cv.Record{pdbtest.ObjName(pchSig, `C:\src\stdafx.obj`)},
	}
}

func pchUser(path string, sig uint32, name string) *Object {
	return &Object{
		Path: path,
		Types: []cv.Record{
			pdbtest.Precomp(0x1000, 5, sig, name),
			pdbtest.ArgList(0x1002),
			pdbtest.Procedure(tInt4, 0x1005, 1),
		},
		Symbols: []cv.Record{
			pdbtest.UDT(0x1001, "A"),
			pdbtest.UDT(0x1006, "fn"),
		},
	}
}

// prepare runs the phases up to and including hashing.
func prepare(t *testing.T, objs []*Object, opts Options) (*Context, []error) {
	t.Helper()
	c := newContext(objs, opts.Workers)
	warnings := c.discoverTypeServers(opts.LibPaths)
	errs, err := c.wireLeaves()
	if err != nil {
		t.Fatalf("wireLeaves: %v", err)
	}
	warnings = append(warnings, errs...)
	warnings = append(warnings, c.scan()...)
	warnings = append(warnings, c.hash()...)
	return c, warnings
}

func TestResolvePCH(t *testing.T) {
	objs := []*Object{pchSource(), pchUser("user.obj", pchSig, `C:\src\stdafx.obj`)}
	c, warnings := prepare(t, objs, Options{Workers: 2})
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}

	for _, tc := range []struct {
		ti   cv.TypeIndex
		want LeafRef
	}{
		{0x1000, internalRef(0, 0, cv.SpaceTPI)},
		{0x1004, internalRef(0, 4, cv.SpaceTPI)},
		{0x1005, internalRef(1, 0, cv.SpaceTPI)},
		{0x1006, internalRef(1, 1, cv.SpaceTPI)},
	} {
		got, err := c.Resolve(1, tc.ti, cv.SpaceTPI)
		if err != nil {
			t.Errorf("Resolve(%#x): %v", tc.ti, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Resolve(%#x) = %v, want %v", tc.ti, got, tc.want)
		}
	}

	// Round trip to the bytes of the object that contributed the leaf.
	if leaf, want := c.Leaf(internalRef(1, 0, cv.SpaceTPI)), objs[1].Types[1]; !bytes.Equal(leaf, want) {
		t.Errorf("Leaf(user[0]) = %x, want %x", leaf, want)
	}
	if leaf, want := c.Leaf(internalRef(0, 3, cv.SpaceTPI)), objs[0].Precomp[3]; !bytes.Equal(leaf, want) {
		t.Errorf("Leaf(pch[3]) = %x, want %x", leaf, want)
	}

	if _, err := c.Resolve(1, 0x1007, cv.SpaceTPI); !errors.Is(err, ErrBadTypeIndex) {
		t.Errorf("Resolve(0x1007) error = %v, want %v", err, ErrBadTypeIndex)
	}
}

func TestResolvePCHOffsetBlock(t *testing.T) {
	user := &Object{
		Path: "user.obj",
		Types: []cv.Record{
			pdbtest.Precomp(0x1002, 3, pchSig, `C:\src\stdafx.obj`),
			pdbtest.ArgList(tInt4),
			pdbtest.Pointer(0x1000),
			pdbtest.Pointer(0x1003),
		},
	}
	c, warnings := prepare(t, []*Object{pchSource(), user}, Options{})
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}

	for _, tc := range []struct {
		ti   cv.TypeIndex
		want LeafRef
	}{
		{0x1000, internalRef(1, 0, cv.SpaceTPI)},
		{0x1001, internalRef(1, 1, cv.SpaceTPI)},
		{0x1002, internalRef(0, 0, cv.SpaceTPI)},
		{0x1003, internalRef(0, 1, cv.SpaceTPI)},
		{0x1004, internalRef(0, 2, cv.SpaceTPI)},
		{0x1005, internalRef(1, 2, cv.SpaceTPI)},
	} {
		got, err := c.Resolve(1, tc.ti, cv.SpaceTPI)
		if err != nil {
			t.Errorf("Resolve(%#x): %v", tc.ti, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Resolve(%#x) = %v, want %v", tc.ti, got, tc.want)
		}
	}
	if _, err := c.Resolve(1, 0x1006, cv.SpaceTPI); !errors.Is(err, ErrBadTypeIndex) {
		t.Errorf("Resolve(0x1006) error = %v, want %v", err, ErrBadTypeIndex)
	}
}

func TestMergePCH(t *testing.T) {
	src := pchSource()
	user := pchUser("user.obj", pchSig, `C:\src\stdafx.obj`)
	// Referenced by base name only.
	other := pchUser("other.obj", pchSig, "STDAFX.OBJ")
	res := mustMerge(t, []*Object{src, user, other}, Options{Workers: 3})
	if res.Warnings != nil {
		t.Fatalf("unexpected warnings: %v", res.Warnings)
	}

	want := []cv.Record{
		pdbtest.FieldList(pdbtest.Member(tInt4, 0, "a")),
		pdbtest.Structure("A", 0x1000, 1, 4),
		pdbtest.Pointer(0x1001),
		pdbtest.Modifier(0x1001, 1),
		pdbtest.Pointer(0x1003),
		pdbtest.ArgList(0x1002),
		pdbtest.Procedure(tInt4, 0x1005, 1),
	}
	if d := cmp.Diff(want, res.Types); d != "" {
		t.Errorf("Types mismatch (-want +got):\n%s", d)
	}
	for _, o := range []*Object{user, other} {
		if got := fieldAt(o.Symbols[0], 4); got != 0x1001 {
			t.Errorf("%s: S_UDT A = %#x, want 0x1001", o.Path, got)
		}
		if got := fieldAt(o.Symbols[1], 4); got != 0x1006 {
			t.Errorf("%s: S_UDT fn = %#x, want 0x1006", o.Path, got)
		}
	}
}

func TestMergePCHSignatureMismatch(t *testing.T) {
	src := pchSource()
	good := pchUser("good.obj", pchSig, `C:\src\stdafx.obj`)
	bad := pchUser("bad.obj", pchSig+1, `C:\src\stdafx.obj`)
	res := mustMerge(t, []*Object{src, good, bad}, Options{Workers: 2})

	if !errors.Is(res.Warnings, ErrSignatureMismatch) {
		t.Fatalf("Warnings = %v, want %v", res.Warnings, ErrSignatureMismatch)
	}
	if !bad.Discarded || bad.Symbols != nil || bad.InlineeLines != nil {
		t.Errorf("bad.obj not discarded: %+v", bad)
	}
	if good.Discarded {
		t.Error("good.obj discarded")
	}
	if res.Stats.Discarded != 1 {
		t.Errorf("Stats.Discarded = %d, want 1", res.Stats.Discarded)
	}
	if len(res.Types) != 7 {
		t.Errorf("got %d types, want 7", len(res.Types))
	}
}

func TestMergeMissingPCHSource(t *testing.T) {
	user := pchUser("user.obj", pchSig, `C:\src\missing.obj`)
	_, err := Merge([]*Object{pchSource(), user}, Options{})
	if !errors.Is(err, ErrMissingPCHSource) {
		t.Fatalf("Merge error = %v, want %v", err, ErrMissingPCHSource)
	}
}

func TestMergePCHBlockOutOfRange(t *testing.T) {
	user := pchUser("user.obj", pchSig, `C:\src\stdafx.obj`)
	user.Types[0] = pdbtest.Precomp(0x1000, 9, pchSig, `C:\src\stdafx.obj`)
	res := mustMerge(t, []*Object{pchSource(), user}, Options{})
	if !errors.Is(res.Warnings, ErrBadTypeIndex) || !user.Discarded {
		t.Errorf("Warnings = %v, discarded = %v", res.Warnings, user.Discarded)
	}
}

func TestMergePCHBlockPastPrecomp(t *testing.T) {
	// The source's own .debug$T leaf follows the exported block and is
	// not part of it.
	src := pchSource()
	src.Types = []cv.Record{pdbtest.Pointer(0x1004)}
	user := pchUser("user.obj", pchSig, `C:\src\stdafx.obj`)
	user.Types[0] = pdbtest.Precomp(0x1000, 6, pchSig, `C:\src\stdafx.obj`)
	res := mustMerge(t, []*Object{src, user}, Options{})
	if !errors.Is(res.Warnings, ErrBadTypeIndex) || !user.Discarded {
		t.Errorf("Warnings = %v, discarded = %v", res.Warnings, user.Discarded)
	}
	if src.Discarded {
		t.Error("precompiled header object discarded")
	}
}
