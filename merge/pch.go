package merge

import (
	"fmt"
	"math"
	"strings"

	"github.com/skdltmxn/cvmerge/internal/cv"
	"github.com/skdltmxn/cvmerge/internal/logflags"
)

// objName returns the S_OBJNAME symbol of o, or nil.
func objName(o *object) *cv.ObjName {
	for _, rec := range o.Symbols {
		if rec.SymKind() == cv.S_OBJNAME {
			name, err := cv.ParseObjName(rec)
			if err != nil {
				return nil
			}
			return name
		}
	}
	return nil
}

func pchKey(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, `\`, "/"))
}

func pchBase(name string) string {
	key := pchKey(name)
	return key[strings.LastIndexByte(key, '/')+1:]
}

// wireLeaves builds the own leaf array of every usable object and binds
// objects that use a precompiled header to the object that produced it.
// A referenced precompiled-header object that is not among the inputs is
// fatal. Other inconsistencies discard the referencing object.
func (c *Context) wireLeaves() ([]error, error) {
	log := logflags.MergeLogger()
	var warnings []error
	warn := func(o *object, err error) {
		warnings = append(warnings, &InputError{Source: o.Path, Record: -1, Offset: -1, Err: err})
		o.discard()
	}

	// Sources first, so their state is known when their users are wired.
	sources := make(map[string][]*object)
	for _, o := range c.objs {
		if o.Discarded || len(o.Precomp) == 0 || o.typeServer >= 0 {
			continue
		}
		name := objName(o)
		if name == nil {
			warn(o, fmt.Errorf("%w: precompiled header object without S_OBJNAME", ErrMalformedRecord))
			continue
		}
		o.isPCHSource = true
		o.pchName = name.Name
		key, base := pchKey(name.Name), pchBase(name.Name)
		sources[key] = append(sources[key], o)
		if base != key {
			sources[base] = append(sources[base], o)
		}

		end := len(o.Precomp) - 1
		sig, err := cv.ParseEndPrecomp(o.Precomp[end])
		if err != nil {
			warn(o, fmt.Errorf("%w: .debug$P does not end with LF_ENDPRECOMP", ErrMalformedRecord))
			continue
		}
		if name.Signature != sig {
			warn(o, fmt.Errorf("%w: LF_ENDPRECOMP %#x, S_OBJNAME %#x", ErrSignatureMismatch, sig, name.Signature))
			continue
		}
		leaves := append([]cv.Record(nil), o.Precomp[:end]...)
		if len(o.Types) > 0 && o.Types[0].LeafKind() == cv.LF_PRECOMP {
			pre, err := cv.ParsePrecomp(o.Types[0])
			if err != nil || pchKey(pre.Name) != pchKey(name.Name) {
				warn(o, ErrNestedPCH)
				continue
			}
			leaves = append(leaves, o.Types[1:]...)
		} else {
			leaves = append(leaves, o.Types...)
		}
		o.leaves = newLeafArray(leaves)
		o.pchSignature = sig
		o.pchLen = end
	}

	for _, o := range c.objs {
		if o.Discarded || o.isPCHSource || o.typeServer >= 0 {
			continue
		}
		if len(o.Types) == 0 || o.Types[0].LeafKind() != cv.LF_PRECOMP {
			o.leaves = newLeafArray(o.Types)
			continue
		}

		pre, err := cv.ParsePrecomp(o.Types[0])
		if err != nil {
			warn(o, fmt.Errorf("%w: %w", ErrMalformedRecord, err))
			continue
		}
		src := findPCHSource(sources, pre.Name)
		if src == nil {
			return warnings, fmt.Errorf("%w: %s needs %s", ErrMissingPCHSource, o.Path, pre.Name)
		}
		switch {
		case src.Discarded:
			warn(o, fmt.Errorf("%w: precompiled header object %s is unusable", ErrMalformedRecord, src.Path))
			continue
		case pre.Signature != src.pchSignature:
			warn(o, fmt.Errorf("%w: LF_PRECOMP %#x, %s has %#x", ErrSignatureMismatch, pre.Signature, src.Path, src.pchSignature))
			continue
		case pre.Start < cv.MinComplexIndex || uint64(pre.Count) > uint64(src.pchLen) ||
			uint64(pre.Start)+uint64(pre.Count) > math.MaxUint32:
			warn(o, fmt.Errorf("%w: LF_PRECOMP block %#x+%d outside %s", ErrBadTypeIndex, uint32(pre.Start), pre.Count, src.Path))
			continue
		}

		o.leaves = newLeafArray(o.Types[1:])
		o.pchSource = src.idx
		o.tiLo = pre.Start
		o.tiHi = pre.Start + cv.TypeIndex(pre.Count)
		if logflags.Merge() {
			log.Debugf("%s uses precompiled types %#x-%#x of %s", o.Path, uint32(o.tiLo), uint32(o.tiHi), src.Path)
		}
	}
	return warnings, nil
}

// findPCHSource matches the LF_PRECOMP name by full path, then by base
// name when that is unique.
func findPCHSource(sources map[string][]*object, name string) *object {
	if objs := sources[pchKey(name)]; len(objs) > 0 {
		return objs[0]
	}
	if objs := sources[pchBase(name)]; len(objs) == 1 {
		return objs[0]
	}
	return nil
}
