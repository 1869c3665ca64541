package msf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// NilStreamSize marks a deleted or nil stream in the directory.
const NilStreamSize = 0xFFFFFFFF

// Well-known stream indices
const (
	StreamPDBInfo = 1 // PDB Info stream (version, signature, age, GUID)
	StreamTPI     = 2 // Type Program Information
	StreamDBI     = 3 // Debug Information
	StreamIPI     = 4 // ID Program Information
)

// Directory errors
var (
	ErrTruncatedDirectory = errors.New("msf: truncated stream directory")
	ErrInvalidStreamIndex = errors.New("msf: invalid stream index")
	ErrInvalidBlockIndex  = errors.New("msf: invalid block index")
	ErrNilStream          = errors.New("msf: stream is nil")
)

// File is an opened MSF container. The directory is read eagerly, so a File
// is safe for concurrent stream reads once Open returns.
type File struct {
	data   io.ReaderAt
	closer io.Closer
	sb     *SuperBlock

	streamSizes  []uint32
	streamBlocks [][]uint32
}

// Open opens an MSF file from the given path.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("msf: failed to open file: %w", err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("msf: failed to stat file: %w", err)
	}
	m, err := NewFile(f, stat.Size())
	if err != nil {
		f.Close()
		return nil, err
	}
	m.closer = f
	return m, nil
}

// NewFile reads an MSF container from r. The caller owns r.
func NewFile(r io.ReaderAt, size int64) (*File, error) {
	if size < SuperBlockSize {
		return nil, ErrTruncatedFile
	}
	hdr := make([]byte, SuperBlockSize)
	if _, err := r.ReadAt(hdr, 0); err != nil {
		return nil, fmt.Errorf("msf: failed to read superblock: %w", err)
	}
	sb, err := ParseSuperBlock(hdr)
	if err != nil {
		return nil, err
	}
	if size < sb.FileSize() {
		return nil, fmt.Errorf("msf: file too small: got %d bytes, expected %d", size, sb.FileSize())
	}

	f := &File{data: r, sb: sb}
	if err := f.readDirectory(); err != nil {
		return nil, err
	}
	return f, nil
}

// Close releases resources associated with the MSF file.
func (f *File) Close() error {
	if f.closer != nil {
		return f.closer.Close()
	}
	return nil
}

// SuperBlock returns the MSF superblock.
func (f *File) SuperBlock() *SuperBlock {
	return f.sb
}

// NumStreams returns the number of streams in the directory.
func (f *File) NumStreams() int {
	return len(f.streamSizes)
}

// StreamExists returns true if the stream exists and is not a nil stream.
func (f *File) StreamExists(idx uint32) bool {
	return int(idx) < len(f.streamSizes) &&
		f.streamSizes[idx] != NilStreamSize && f.streamSizes[idx] > 0
}

func (f *File) readBlocks(blocks []uint32, size uint32) ([]byte, error) {
	bs := f.sb.BlockSize
	buf := make([]byte, size)
	for i, b := range blocks {
		if b >= f.sb.NumBlocks {
			return nil, fmt.Errorf("%w: %d >= %d", ErrInvalidBlockIndex, b, f.sb.NumBlocks)
		}
		lo := uint32(i) * bs
		if lo >= size {
			break
		}
		hi := min(lo+bs, size)
		if _, err := f.data.ReadAt(buf[lo:hi], int64(b)*int64(bs)); err != nil {
			return nil, fmt.Errorf("msf: failed to read block %d: %w", b, err)
		}
	}
	return buf, nil
}

func (f *File) readDirectory() error {
	n := f.sb.NumDirectoryBlocks()
	mapBlocks := make([]uint32, blocksFor(n*4, f.sb.BlockSize))
	for i := range mapBlocks {
		mapBlocks[i] = f.sb.BlockMapAddr + uint32(i)
	}
	mapBytes, err := f.readBlocks(mapBlocks, n*4)
	if err != nil {
		return err
	}
	dirBlocks := make([]uint32, n)
	for i := range dirBlocks {
		dirBlocks[i] = binary.LittleEndian.Uint32(mapBytes[i*4:])
	}
	dir, err := f.readBlocks(dirBlocks, f.sb.NumDirectoryBytes)
	if err != nil {
		return err
	}

	if len(dir) < 4 {
		return ErrTruncatedDirectory
	}
	numStreams := binary.LittleEndian.Uint32(dir)
	off := 4
	if uint64(len(dir)) < uint64(off)+uint64(numStreams)*4 {
		return ErrTruncatedDirectory
	}
	f.streamSizes = make([]uint32, numStreams)
	for i := range f.streamSizes {
		f.streamSizes[i] = binary.LittleEndian.Uint32(dir[off:])
		off += 4
	}
	f.streamBlocks = make([][]uint32, numStreams)
	for i, size := range f.streamSizes {
		if size == NilStreamSize || size == 0 {
			continue
		}
		count := int(blocksFor(size, f.sb.BlockSize))
		if off+count*4 > len(dir) {
			return ErrTruncatedDirectory
		}
		blocks := make([]uint32, count)
		for j := range blocks {
			blocks[j] = binary.LittleEndian.Uint32(dir[off:])
			off += 4
		}
		f.streamBlocks[i] = blocks
	}
	return nil
}

// ReadStream reads an entire stream into memory.
func (f *File) ReadStream(idx uint32) ([]byte, error) {
	if int(idx) >= len(f.streamSizes) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStreamIndex, idx)
	}
	size := f.streamSizes[idx]
	if size == NilStreamSize {
		return nil, fmt.Errorf("%w: %d", ErrNilStream, idx)
	}
	return f.readBlocks(f.streamBlocks[idx], size)
}
