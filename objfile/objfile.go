// Package objfile extracts the CodeView sections of COFF object files.
package objfile

import (
	"debug/pe"
	"errors"
	"fmt"

	"github.com/skdltmxn/cvmerge/internal/cv"
	"github.com/skdltmxn/cvmerge/internal/logflags"
	"github.com/skdltmxn/cvmerge/internal/par"
	"github.com/skdltmxn/cvmerge/internal/stream"
	"github.com/skdltmxn/cvmerge/merge"
)

// CodeView section names.
const (
	SectionTypes    = ".debug$T"
	SectionPrecomp  = ".debug$P"
	SectionSymbols  = ".debug$S"
	subsectionAlign = 4
)

var (
	// ErrBadSignature indicates a debug section without the C13 signature.
	ErrBadSignature = errors.New("objfile: unsupported CodeView signature")

	// ErrTruncatedSubsection indicates a .debug$S subsection past the section end.
	ErrTruncatedSubsection = errors.New("objfile: truncated subsection")
)

// Open reads the CodeView debug information of the object at path.
func Open(path string) (*merge.Object, error) {
	f, err := pe.Open(path)
	if err != nil {
		return nil, fmt.Errorf("objfile: %s: %w", path, err)
	}
	defer f.Close()
	return NewObject(path, f)
}

// NewObject extracts the CodeView debug information of f. Records alias
// freshly read section data, so they may be patched freely.
func NewObject(path string, f *pe.File) (*merge.Object, error) {
	o := &merge.Object{Path: path}
	for _, sec := range f.Sections {
		var err error
		switch sec.Name {
		case SectionTypes:
			err = readLeaves(sec, &o.Types)
		case SectionPrecomp:
			err = readLeaves(sec, &o.Precomp)
		case SectionSymbols:
			err = readSymbols(sec, o)
		default:
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("objfile: %s: %s: %w", path, sec.Name, err)
		}
	}
	if logflags.ObjFile() {
		logflags.ObjLogger().Debugf("%s: %d types, %d precompiled types, %d symbols, %d inlinee subsections",
			path, len(o.Types), len(o.Precomp), len(o.Symbols), len(o.InlineeLines))
	}
	return o, nil
}

// OpenAll reads the objects at paths concurrently. The result follows
// the order of paths.
func OpenAll(paths []string, workers int) ([]*merge.Object, error) {
	objs := make([]*merge.Object, len(paths))
	err := par.Each(workers, len(paths), func(_, i int) error {
		o, err := Open(paths[i])
		if err != nil {
			return err
		}
		objs[i] = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return objs, nil
}

// sectionBody returns the section data after the CodeView signature.
func sectionBody(sec *pe.Section) ([]byte, error) {
	data, err := sec.Data()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	sig, err := stream.U32At(data, 0)
	if err != nil {
		return nil, err
	}
	if sig != cv.SectionSignatureC13 {
		return nil, fmt.Errorf("%w: %d", ErrBadSignature, sig)
	}
	return data[4:], nil
}

func readLeaves(sec *pe.Section, dst *[]cv.Record) error {
	body, err := sectionBody(sec)
	if err != nil {
		return err
	}
	recs, err := cv.SplitRecords(body)
	if err != nil {
		return err
	}
	*dst = append(*dst, recs...)
	return nil
}

// readSymbols splits a .debug$S section into symbol records and inlinee
// line subsections. Other subsections carry no type indices.
func readSymbols(sec *pe.Section, o *merge.Object) error {
	body, err := sectionBody(sec)
	if err != nil {
		return err
	}
	r := stream.NewReader(body)
	for r.Remaining() > 0 {
		kind, err := r.ReadU32()
		if err != nil {
			return ErrTruncatedSubsection
		}
		size, err := r.ReadU32()
		if err != nil {
			return ErrTruncatedSubsection
		}
		data, err := r.ReadBytesRef(int(size))
		if err != nil {
			return fmt.Errorf("%w: kind %#x size %d", ErrTruncatedSubsection, kind, size)
		}
		r.Align(subsectionAlign)
		if kind&cv.DebugSIgnore != 0 {
			continue
		}
		switch kind {
		case cv.DebugSSymbols:
			recs, err := cv.SplitRecords(data)
			if err != nil {
				return err
			}
			o.Symbols = append(o.Symbols, recs...)
		case cv.DebugSInlineeLines:
			o.InlineeLines = append(o.InlineeLines, data)
		}
	}
	return nil
}
