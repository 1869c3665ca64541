package merge

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/multierr"

	"github.com/skdltmxn/cvmerge/internal/cv"
	"github.com/skdltmxn/cvmerge/internal/pdbtest"
)

var (
	guidA = [16]byte{0xa, 1, 2, 3}
	guidB = [16]byte{0xb, 1, 2, 3}
)

const recordedPDB = `C:\build\vc140.pdb`

func writePDB(t *testing.T, dir string, guid [16]byte, types, ids []cv.Record) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "vc140.pdb")
	p := &pdbtest.PDB{GUID: guid, Age: 1, Types: types, IDs: ids}
	if err := p.Write(path); err != nil {
		t.Fatal(err)
	}
	return path
}

func tsObject(path string, guid [16]byte, name string, syms ...cv.Record) *Object {
	return &Object{
		Path:    path,
		Types:   []cv.Record{pdbtest.TypeServer2(guid, 1, name)},
		Symbols: syms,
	}
}

func TestMergeTypeServersSameNameDifferentGUID(t *testing.T) {
	root := t.TempDir()
	dirA, dirB := filepath.Join(root, "a"), filepath.Join(root, "b")
	extra := []cv.Record{
		pdbtest.ArgList(),
		pdbtest.Procedure(tInt4, 0x1003, 0),
	}
	pathA := writePDB(t, dirA, guidA, fooTypes(), []cv.Record{pdbtest.StringID(0, "a.cpp")})
	pathB := writePDB(t, dirB, guidB, append(fooTypes(), extra...), nil)

	objA := tsObject("a.obj", guidA, recordedPDB, pdbtest.UDT(0x1001, "Foo"))
	objB := tsObject("b.obj", guidB, recordedPDB, pdbtest.UDT(0x1002, "PFoo"), pdbtest.UDT(0x1004, "fn"))
	embedded := &Object{Path: "c.obj", Types: fooTypes(), Symbols: []cv.Record{pdbtest.UDT(0x1002, "PFoo")}}

	res := mustMerge(t, []*Object{objA, objB, embedded}, Options{Workers: 4, LibPaths: []string{dirA, dirB}})
	if res.Warnings != nil {
		t.Fatalf("unexpected warnings: %v", res.Warnings)
	}

	var got []string
	for _, ts := range res.TypeServers {
		got = append(got, ts.Path)
	}
	if d := cmp.Diff([]string{pathA, pathB}, got); d != "" {
		t.Errorf("type servers mismatch (-want +got):\n%s", d)
	}

	// The embedded copy of Foo wins over both type servers.
	want := []cv.Record{
		pdbtest.FieldList(pdbtest.Member(tInt4, 0, "x")),
		pdbtest.Structure("Foo", 0x1000, 1, 4),
		pdbtest.Pointer(0x1001),
		pdbtest.ArgList(),
		pdbtest.Procedure(tInt4, 0x1003, 0),
	}
	if d := cmp.Diff(want, res.Types); d != "" {
		t.Errorf("Types mismatch (-want +got):\n%s", d)
	}
	if d := cmp.Diff([]cv.Record{pdbtest.StringID(0, "a.cpp")}, res.IDs); d != "" {
		t.Errorf("IDs mismatch (-want +got):\n%s", d)
	}

	for _, tc := range []struct {
		rec  cv.Record
		want cv.TypeIndex
	}{
		{objA.Symbols[0], 0x1001},
		{objB.Symbols[0], 0x1002},
		{objB.Symbols[1], 0x1004},
		{embedded.Symbols[0], 0x1002},
	} {
		if got := fieldAt(tc.rec, 4); got != tc.want {
			t.Errorf("S_UDT type = %#x, want %#x", got, tc.want)
		}
	}
}

func TestMergeTypeServerNotFound(t *testing.T) {
	obj := tsObject("a.obj", guidA, `C:\nowhere\vc140.pdb`, pdbtest.UDT(0x1000, "x"))
	obj.InlineeLines = [][]byte{pdbtest.InlineeLines(0x1000)}
	plain := &Object{Path: "b.obj", Types: fooTypes()}

	res := mustMerge(t, []*Object{obj, plain}, Options{LibPaths: []string{t.TempDir()}})
	if !errors.Is(res.Warnings, ErrTypeServerNotFound) {
		t.Fatalf("Warnings = %v, want %v", res.Warnings, ErrTypeServerNotFound)
	}
	if !obj.Discarded || obj.Symbols != nil || obj.InlineeLines != nil {
		t.Errorf("dependent object kept its debug info: %+v", obj)
	}
	if len(res.Types) != 3 {
		t.Errorf("got %d types, want 3", len(res.Types))
	}
}

func TestMergeTypeServerReportedOnce(t *testing.T) {
	var objs []*Object
	for _, p := range []string{"a.obj", "b.obj", "c.obj"} {
		objs = append(objs, tsObject(p, guidA, "missing.pdb"))
	}
	res := mustMerge(t, objs, Options{})
	var n int
	for _, w := range multierr.Errors(res.Warnings) {
		if errors.Is(w, ErrTypeServerNotFound) {
			n++
		}
	}
	if n != 1 {
		t.Errorf("got %d not-found warnings, want 1", n)
	}
	if res.Stats.Discarded != 3 {
		t.Errorf("Stats.Discarded = %d, want 3", res.Stats.Discarded)
	}
}

func TestMergeTypeServerSignatureMismatch(t *testing.T) {
	dir := t.TempDir()
	writePDB(t, dir, guidB, fooTypes(), nil)
	obj := tsObject("a.obj", guidA, recordedPDB)
	res := mustMerge(t, []*Object{obj}, Options{LibPaths: []string{dir}})
	if !errors.Is(res.Warnings, ErrSignatureMismatch) || !obj.Discarded {
		t.Errorf("Warnings = %v, discarded = %v", res.Warnings, obj.Discarded)
	}
}

func TestMergeTypeServerAmbiguous(t *testing.T) {
	root := t.TempDir()
	dir1, dir2 := filepath.Join(root, "1"), filepath.Join(root, "2")
	writePDB(t, dir1, guidA, fooTypes(), nil)
	writePDB(t, dir2, guidA, fooTypes(), nil)
	obj := tsObject("a.obj", guidA, recordedPDB)
	res := mustMerge(t, []*Object{obj}, Options{LibPaths: []string{dir1, dir2}})
	if !errors.Is(res.Warnings, ErrTypeServerAmbig) || !obj.Discarded {
		t.Errorf("Warnings = %v, discarded = %v", res.Warnings, obj.Discarded)
	}
}

func TestMergeTypeServerCorrupt(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "vc140.pdb"), []byte("not a pdb"), 0o644); err != nil {
		t.Fatal(err)
	}
	obj := tsObject("a.obj", guidA, recordedPDB)
	res := mustMerge(t, []*Object{obj}, Options{LibPaths: []string{dir}})
	if !errors.Is(res.Warnings, ErrTypeServerCorrupt) || !obj.Discarded {
		t.Errorf("Warnings = %v, discarded = %v", res.Warnings, obj.Discarded)
	}
}

func TestResolveExternal(t *testing.T) {
	dir := t.TempDir()
	writePDB(t, dir, guidA, fooTypes(), []cv.Record{pdbtest.StringID(0, "a.cpp")})
	objs := []*Object{tsObject("a.obj", guidA, recordedPDB)}
	c, warnings := prepare(t, objs, Options{LibPaths: []string{dir}})
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}

	got, err := c.Resolve(0, 0x1000, cv.SpaceIPI)
	if err != nil {
		t.Fatal(err)
	}
	if want := externalRef(0, 0, cv.SpaceIPI); got != want {
		t.Errorf("Resolve(IPI 0x1000) = %v, want %v", got, want)
	}
	got, err = c.Resolve(ExternalFlag, 0x1002, cv.SpaceTPI)
	if err != nil {
		t.Fatal(err)
	}
	if want := externalRef(0, 2, cv.SpaceTPI); got != want {
		t.Errorf("Resolve(TPI 0x1002) = %v, want %v", got, want)
	}
	if _, err := c.Resolve(0, 0x1001, cv.SpaceIPI); !errors.Is(err, ErrBadTypeIndex) {
		t.Errorf("Resolve(IPI 0x1001) error = %v, want %v", err, ErrBadTypeIndex)
	}
}

func TestMergeDeterministicTypeServersAndPCH(t *testing.T) {
	root := t.TempDir()
	dirA, dirB := filepath.Join(root, "a"), filepath.Join(root, "b")
	pathA := writePDB(t, dirA, guidA, fooTypes(), []cv.Record{pdbtest.StringID(0, "a.cpp")})
	pathB := writePDB(t, dirB, guidB, append(fooTypes(), pdbtest.ArgList(), pdbtest.Procedure(tInt4, 0x1003, 0)), nil)

	// mk lists the type-server objects in the given order ahead of the
	// objects that carry their own leaves.
	mk := func(bFirst bool) []*Object {
		a := tsObject("a.obj", guidA, recordedPDB, pdbtest.UDT(0x1001, "Foo"))
		b := tsObject("b.obj", guidB, recordedPDB, pdbtest.UDT(0x1002, "PFoo"), pdbtest.UDT(0x1004, "fn"))
		objs := []*Object{a, b}
		if bFirst {
			objs = []*Object{b, a}
		}
		return append(objs,
			pchSource(),
			pchUser("user.obj", pchSig, `C:\src\stdafx.obj`),
			&Object{Path: "c.obj", Types: fooTypes(), Symbols: []cv.Record{pdbtest.UDT(0x1002, "PFoo")}},
		)
	}

	type output struct {
		Servers    []string
		Types, IDs []cv.Record
		Symbols    map[string][]cv.Record
	}
	run := func(bFirst bool, opts Options) output {
		opts.LibPaths = []string{dirA, dirB}
		res := mustMerge(t, mk(bFirst), opts)
		if res.Warnings != nil {
			t.Fatalf("unexpected warnings: %v", res.Warnings)
		}
		out := output{Types: res.Types, IDs: res.IDs, Symbols: make(map[string][]cv.Record)}
		for _, ts := range res.TypeServers {
			out.Servers = append(out.Servers, ts.Path)
		}
		for _, o := range res.Objects {
			out.Symbols[o.Path] = o.Symbols
		}
		return out
	}

	ref := run(false, Options{Workers: 1})
	if d := cmp.Diff([]string{pathA, pathB}, ref.Servers); d != "" {
		t.Fatalf("type servers mismatch (-want +got):\n%s", d)
	}
	for _, bFirst := range []bool{false, true} {
		for _, opts := range []Options{
			{Workers: 1},
			{Workers: 4},
			{Workers: 8, RadixThreshold: 1},
			{Workers: 3, DeepVerify: true},
		} {
			for i := 0; i < 3; i++ {
				if d := cmp.Diff(ref, run(bFirst, opts)); d != "" {
					t.Fatalf("bFirst=%v %+v run %d differs (-first +got):\n%s", bFirst, opts, i, d)
				}
			}
		}
	}
}
