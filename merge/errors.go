package merge

import (
	"errors"
	"fmt"
)

// Recoverable input errors. They are reported per phase through
// Result.Warnings and never abort the merge.
var (
	ErrBadTypeIndex       = errors.New("merge: type index out of range")
	ErrMalformedRecord    = errors.New("merge: malformed record")
	ErrForwardReference   = errors.New("merge: forward type reference")
	ErrUnresolvedDep      = errors.New("merge: dependency has no hash")
	ErrUnmergedLeaf       = errors.New("merge: leaf missing from dedup table")
	ErrTypeServerNotFound = errors.New("merge: type server not found")
	ErrTypeServerAmbig    = errors.New("merge: multiple type server candidates")
	ErrTypeServerCorrupt  = errors.New("merge: unreadable type server")
	ErrSignatureMismatch  = errors.New("merge: signature mismatch")
	ErrNestedPCH          = errors.New("merge: nested precompiled header")
)

// Fatal errors. They terminate the merge once in-flight work has finished.
var (
	ErrMissingPCHSource = errors.New("merge: precompiled header object not found")
	ErrTableFull        = errors.New("merge: dedup table exhausted")
)

// InputError locates a recoverable error inside one input.
type InputError struct {
	Source string // object or type-server path
	Record int    // record position in the source, -1 when not applicable
	Offset int    // byte offset inside the record, -1 when not applicable
	Err    error
}

func (e *InputError) Error() string {
	switch {
	case e.Record < 0:
		return fmt.Sprintf("%s: %v", e.Source, e.Err)
	case e.Offset < 0:
		return fmt.Sprintf("%s: record %d: %v", e.Source, e.Record, e.Err)
	}
	return fmt.Sprintf("%s: record %d offset %#x: %v", e.Source, e.Record, e.Offset, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// diags holds one worker's recoverable errors for the current phase.
type diags []error

func (d *diags) add(source string, record, offset int, err error) {
	*d = append(*d, &InputError{Source: source, Record: record, Offset: offset, Err: err})
}

// sink gives every worker of a phase its own diags.
type sink []diags

func newSink(workers int) sink {
	return make(sink, workers)
}

func (s sink) errors() []error {
	var all []error
	for _, d := range s {
		all = append(all, d...)
	}
	return all
}
