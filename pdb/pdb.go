package pdb

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/skdltmxn/cvmerge/internal/tpi"
	"github.com/skdltmxn/cvmerge/msf"
)

// PDB info stream versions accepted for type servers.
const (
	VersionVC70  uint32 = 20000404
	VersionVC80  uint32 = 20030901
	VersionVC110 uint32 = 20091201
	VersionVC140 uint32 = 20140508
)

const infoHeaderSize = 28

// File represents an opened PDB file.
// It is safe for concurrent read access after opening.
type File struct {
	msf    *msf.File
	closed bool
	mu     sync.RWMutex

	info     *Info
	infoOnce sync.Once
	infoErr  error

	tpiStream     *tpi.Stream
	tpiStreamOnce sync.Once
	tpiStreamErr  error

	ipiStream     *tpi.Stream
	ipiStreamOnce sync.Once
	ipiStreamErr  error
}

// Info is the identity recorded in the PDB info stream.
type Info struct {
	Version   uint32
	Signature uint32
	Age       uint32
	GUID      [16]byte
}

// Open opens a PDB file from the given path.
func Open(path string) (*File, error) {
	m, err := msf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotPDB, err)
	}
	return &File{msf: m}, nil
}

// OpenReader opens a PDB from an io.ReaderAt.
func OpenReader(r io.ReaderAt, size int64) (*File, error) {
	m, err := msf.NewFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotPDB, err)
	}
	return &File{msf: m}, nil
}

// Close releases resources associated with the PDB file.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true
	return f.msf.Close()
}

func (f *File) readStream(idx uint32, name string) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return nil, ErrFileClosed
	}
	if !f.msf.StreamExists(idx) {
		return nil, fmt.Errorf("%w: %s", ErrMissingStream, name)
	}
	return f.msf.ReadStream(idx)
}

// Info returns the PDB identity.
func (f *File) Info() (*Info, error) {
	f.infoOnce.Do(func() {
		f.info, f.infoErr = f.loadInfo()
	})
	return f.info, f.infoErr
}

func (f *File) loadInfo() (*Info, error) {
	data, err := f.readStream(msf.StreamPDBInfo, "PDB info")
	if err != nil {
		return nil, err
	}
	if len(data) < infoHeaderSize {
		return nil, &ParseError{Stream: "PDB info", Offset: int64(len(data)), Err: ErrShortStream}
	}

	le := binary.LittleEndian
	info := &Info{
		Version:   le.Uint32(data[0:]),
		Signature: le.Uint32(data[4:]),
		Age:       le.Uint32(data[8:]),
	}
	copy(info.GUID[:], data[12:28])

	switch info.Version {
	case VersionVC70, VersionVC80, VersionVC110, VersionVC140:
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, info.Version)
	}
	return info, nil
}

// Types returns the parsed TPI stream.
func (f *File) Types() (*tpi.Stream, error) {
	f.tpiStreamOnce.Do(func() {
		f.tpiStream, f.tpiStreamErr = f.loadTypeStream(msf.StreamTPI, "TPI")
	})
	return f.tpiStream, f.tpiStreamErr
}

// IDs returns the parsed IPI stream.
func (f *File) IDs() (*tpi.Stream, error) {
	f.ipiStreamOnce.Do(func() {
		f.ipiStream, f.ipiStreamErr = f.loadTypeStream(msf.StreamIPI, "IPI")
	})
	return f.ipiStream, f.ipiStreamErr
}

func (f *File) loadTypeStream(idx uint32, name string) (*tpi.Stream, error) {
	data, err := f.readStream(idx, name)
	if err != nil {
		return nil, err
	}
	s, err := tpi.ParseStream(data)
	if err != nil {
		return nil, &ParseError{Stream: name, Err: err}
	}
	return s, nil
}

// BlockSize returns the block size used by this PDB file.
func (f *File) BlockSize() uint32 {
	return f.msf.SuperBlock().BlockSize
}

// NumStreams returns the number of streams in the PDB.
func (f *File) NumStreams() int {
	return f.msf.NumStreams()
}
