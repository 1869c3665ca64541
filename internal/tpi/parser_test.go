package tpi_test

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/skdltmxn/cvmerge/internal/cv"
	"github.com/skdltmxn/cvmerge/internal/pdbtest"
	"github.com/skdltmxn/cvmerge/internal/tpi"
)

func TestParseStream(t *testing.T) {
	recs := []cv.Record{
		pdbtest.FieldList(pdbtest.Member(0x74, 0, "x")),
		pdbtest.Structure("Foo", 0x1000, 1, 4),
		pdbtest.Pointer(0x1001),
	}
	s, err := tpi.ParseStream(pdbtest.TypeStream(recs))
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff(recs, s.Records); d != "" {
		t.Errorf("Records mismatch (-want +got):\n%s", d)
	}
	if s.Header.TypeIndexBegin != 0x1000 || s.Header.TypeIndexEnd != 0x1003 || s.Header.TypeCount() != 3 {
		t.Errorf("Header = %+v", s.Header)
	}
	for ti, want := range map[cv.TypeIndex]bool{0xfff: false, 0x1000: true, 0x1002: true, 0x1003: false} {
		if got := s.Contains(ti); got != want {
			t.Errorf("Contains(%#x) = %v, want %v", ti, got, want)
		}
	}
}

func TestParseStreamEmpty(t *testing.T) {
	s, err := tpi.ParseStream(pdbtest.TypeStream(nil))
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Records) != 0 {
		t.Errorf("got %d records, want 0", len(s.Records))
	}
}

func TestParseStreamErrors(t *testing.T) {
	good := pdbtest.TypeStream([]cv.Record{pdbtest.Pointer(0x74)})
	patch := func(off int, v uint32) []byte {
		b := append([]byte(nil), good...)
		binary.LittleEndian.PutUint32(b[off:], v)
		return b
	}
	for _, tc := range []struct {
		name string
		data []byte
		want error
	}{
		{"short header", good[:20], tpi.ErrInvalidHeader},
		{"version", patch(0, 42), tpi.ErrUnsupportedVersion},
		{"count", patch(12, 0x1005), tpi.ErrRecordCount},
		{"inverted range", patch(12, 0xfff), tpi.ErrRecordCount},
		{"split record", patch(16, 3), cv.ErrTruncatedRecord},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tpi.ParseStream(tc.data); !errors.Is(err, tc.want) {
				t.Errorf("ParseStream error = %v, want %v", err, tc.want)
			}
		})
	}
	if _, err := tpi.ParseStream(patch(16, 1000)); err == nil {
		t.Error("ParseStream accepted a record size past the stream end")
	}
}
