package extentwriter

import (
	"sync"

	"github.com/bits-and-blooms/bitset"
)

// TrackingTarget wraps a Target and marks every block that was written.
// It is safe for concurrent use by writers placing disjoint extents.
type TrackingTarget struct {
	target    Target
	blockSize uint64

	mu     sync.RWMutex
	blocks *bitset.BitSet
	writes int
}

// NewTrackingTarget tracks writes to t in blockSize units
func NewTrackingTarget(t Target, blockSize uint32) *TrackingTarget {
	return &TrackingTarget{
		target:    t,
		blockSize: uint64(max(blockSize, 1)),
		blocks:    bitset.New(0),
	}
}

// WriteAt implements io.WriterAt
func (t *TrackingTarget) WriteAt(p []byte, off int64) (int, error) {
	n, err := t.target.WriteAt(p, off)
	t.mark(off, int64(n))
	return n, err
}

// Sync forwards to the wrapped target when it is a Syncer
func (t *TrackingTarget) Sync() error {
	if s, ok := t.target.(Syncer); ok {
		return s.Sync()
	}
	return nil
}

// PunchHole forwards to the wrapped target, or writes zeros when it cannot
// punch. Punched blocks count as written.
func (t *TrackingTarget) PunchHole(offset, length int64) error {
	if hp, ok := t.target.(HolePuncher); ok {
		if err := hp.PunchHole(offset, length); err != nil {
			return err
		}
		t.mark(offset, length)
		return nil
	}

	for length > 0 {
		n := min(length, int64(len(zeroBlock)))
		if _, err := t.WriteAt(zeroBlock[:n:n], offset); err != nil {
			return err
		}
		offset += n
		length -= n
	}
	return nil
}

func (t *TrackingTarget) mark(off, n int64) {
	if n <= 0 {
		return
	}
	first := uint64(off) / t.blockSize
	last := (uint64(off) + uint64(n) - 1) / t.blockSize

	t.mu.Lock()
	defer t.mu.Unlock()
	for b := first; b <= last; b++ {
		t.blocks.Set(uint(b))
	}
	t.writes++
}

// Marked reports whether block was written
func (t *TrackingTarget) Marked(block uint64) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.blocks.Test(uint(block))
}

// Count returns the number of distinct blocks written
func (t *TrackingTarget) Count() uint {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.blocks.Count()
}

// Writes returns the number of WriteAt calls that wrote data
func (t *TrackingTarget) Writes() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.writes
}

// Covers reports whether every block of every non-hole extent was written
func (t *TrackingTarget) Covers(extents []Extent) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, e := range extents {
		if e.IsHole() {
			continue
		}
		for b := e.StartBlock; b < e.StartBlock+e.NumBlocks; b++ {
			if !t.blocks.Test(uint(b)) {
				return false
			}
		}
	}
	return true
}
