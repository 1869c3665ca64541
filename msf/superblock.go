// Package msf reads the MSF (Multi-Stream File) container that holds the
// streams of a type-server PDB.
package msf

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Magic signature for PDB 7.0 format (BigMsf)
const Magic = "Microsoft C/C++ MSF 7.00\r\n\x1a\x44\x53\x00\x00\x00"

// SuperBlockSize is the total size of the SuperBlock structure
const SuperBlockSize = 56

// Block size limits
const (
	BlockSizeMin uint32 = 512
	BlockSizeMax uint32 = 65536
)

// Errors returned during SuperBlock parsing
var (
	ErrInvalidMagic     = errors.New("msf: invalid magic signature, not a valid PDB file")
	ErrInvalidBlockSize = errors.New("msf: invalid block size")
	ErrInvalidFPMBlock  = errors.New("msf: invalid free block map block index")
	ErrTruncatedFile    = errors.New("msf: file is truncated")
)

// SuperBlock is located at file offset 0 and describes the block layout
// and the location of the stream directory.
type SuperBlock struct {
	BlockSize         uint32
	FreeBlockMapBlock uint32 // always 1 or 2
	NumBlocks         uint32
	NumDirectoryBytes uint32
	// BlockMapAddr is the block holding the indices of the directory blocks.
	BlockMapAddr uint32
}

// ParseSuperBlock decodes and validates the first SuperBlockSize bytes of a file.
func ParseSuperBlock(data []byte) (*SuperBlock, error) {
	if len(data) < SuperBlockSize {
		return nil, ErrTruncatedFile
	}
	if string(data[:len(Magic)]) != Magic {
		return nil, ErrInvalidMagic
	}

	le := binary.LittleEndian
	sb := &SuperBlock{
		BlockSize:         le.Uint32(data[32:]),
		FreeBlockMapBlock: le.Uint32(data[36:]),
		NumBlocks:         le.Uint32(data[40:]),
		NumDirectoryBytes: le.Uint32(data[44:]),
		// data[48:52] is reserved
		BlockMapAddr: le.Uint32(data[52:]),
	}
	if err := sb.Validate(); err != nil {
		return nil, err
	}
	return sb, nil
}

// Validate checks the SuperBlock for internal consistency.
func (sb *SuperBlock) Validate() error {
	if sb.BlockSize < BlockSizeMin || sb.BlockSize > BlockSizeMax ||
		sb.BlockSize&(sb.BlockSize-1) != 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBlockSize, sb.BlockSize)
	}
	if sb.FreeBlockMapBlock != 1 && sb.FreeBlockMapBlock != 2 {
		return ErrInvalidFPMBlock
	}
	if sb.BlockMapAddr >= sb.NumBlocks {
		return fmt.Errorf("%w: block map at %d of %d", ErrInvalidBlockIndex, sb.BlockMapAddr, sb.NumBlocks)
	}
	return nil
}

// NumDirectoryBlocks returns the number of blocks needed to store the stream directory.
func (sb *SuperBlock) NumDirectoryBlocks() uint32 {
	return blocksFor(sb.NumDirectoryBytes, sb.BlockSize)
}

// FileSize returns the expected file size based on NumBlocks and BlockSize.
func (sb *SuperBlock) FileSize() int64 {
	return int64(sb.NumBlocks) * int64(sb.BlockSize)
}

func blocksFor(size, blockSize uint32) uint32 {
	return (size + blockSize - 1) / blockSize
}
