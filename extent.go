package extentwriter

import (
	"fmt"
	"math"
)

// SparseHole marks an extent whose blocks are skipped rather than written.
const SparseHole = uint64(math.MaxUint64)

// Extent is a contiguous run of blocks on the target.
type Extent struct {
	StartBlock uint64 // First block, or SparseHole
	NumBlocks  uint64
}

// IsHole reports whether the extent is a sparse hole
func (e Extent) IsHole() bool {
	return e.StartBlock == SparseHole
}

func (e Extent) String() string {
	if e.IsHole() {
		return fmt.Sprintf("hole:%d", e.NumBlocks)
	}
	return fmt.Sprintf("%d:%d", e.StartBlock, e.NumBlocks)
}

// Extents is an ordered extent list; its order defines the logical byte stream.
type Extents []Extent

// Blocks returns the total number of blocks, holes included
func (es Extents) Blocks() uint64 {
	var n uint64
	for _, e := range es {
		n += e.NumBlocks
	}
	return n
}

// Capacity returns the number of bytes the extents can hold
func (es Extents) Capacity(blockSize uint32) uint64 {
	return es.Blocks() * uint64(blockSize)
}
