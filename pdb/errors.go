// Package pdb opens type-server PDB files: their identity (GUID, age) and
// their TPI and IPI leaf arrays.
package pdb

import (
	"errors"
	"fmt"
)

var (
	// ErrNotPDB indicates the file is not an MSF 7.0 container.
	ErrNotPDB = errors.New("pdb: not a valid PDB file")

	// ErrUnsupportedVersion indicates an info stream version no compiler
	// emits for type servers.
	ErrUnsupportedVersion = errors.New("pdb: unsupported PDB version")

	// ErrMissingStream indicates a required stream is absent or nil.
	ErrMissingStream = errors.New("pdb: missing stream")

	// ErrShortStream indicates a stream smaller than its fixed header.
	ErrShortStream = errors.New("pdb: stream too short")

	ErrFileClosed = errors.New("pdb: file is closed")
)

// ParseError locates a decoding failure inside one stream of the PDB.
type ParseError struct {
	Stream string
	Offset int64
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("pdb: %s stream at 0x%x: %v", e.Stream, e.Offset, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
