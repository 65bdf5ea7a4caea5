package extentwriter

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"math/bits"
)

// Position is the cursor of a DirectWriter
type Position struct {
	Extent       int    // Index of the extent receiving the next byte
	ExtentOffset uint64 // Bytes already placed in that extent
	Logical      uint64 // Bytes accepted since Init
}

// DirectWriter writes the stream directly into the extents, one WriteAt per
// contiguous run. Hole extents consume stream bytes without being written.
type DirectWriter struct {
	config
	sess *session

	target    Target
	blockSize uint64
	extents   []Extent

	// The next byte goes to extents[extentIndex] at extentBytesWritten
	extentIndex        int
	extentBytesWritten uint64
}

// NewDirectWriter creates a DirectWriter
func NewDirectWriter(opts ...Option) *DirectWriter {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt.apply(&cfg)
	}
	w := &DirectWriter{config: cfg}
	w.sess = newSession(w, "direct")
	return w
}

// Init implements Writer
func (w *DirectWriter) Init(target Target, extents []Extent, blockSize uint32) error {
	if w.sess.state != stateIdle {
		return ErrAlreadyInitialized
	}
	if target == nil {
		return ErrNilTarget
	}
	if blockSize == 0 {
		return ErrInvalidBlockSize
	}

	w.target = target
	w.blockSize = uint64(blockSize)
	w.extents = append([]Extent(nil), extents...)
	return w.sess.begin()
}

// Write implements Writer
func (w *DirectWriter) Write(p []byte) error {
	if err := w.sess.check(); err != nil {
		return err
	}

	for len(p) > 0 {
		remaining := w.remainingInExtent()
		if remaining == 0 {
			if w.extentIndex+1 >= len(w.extents) {
				return fmt.Errorf("%w: %d bytes left after extent %d",
					ErrExtentsExhausted, len(p), w.extentIndex)
			}
			w.extentIndex++
			w.extentBytesWritten = 0
			continue
		}

		chunk := uint64(len(p))
		if chunk > remaining {
			chunk = remaining
		}

		// Holes consume stream bytes but are never written
		if extent := w.extents[w.extentIndex]; !extent.IsHole() {
			offset, err := w.offset(extent, chunk)
			if err != nil {
				return err
			}
			if err := w.place(p[:chunk], offset); err != nil {
				return err
			}
		}

		w.extentBytesWritten += chunk
		w.sess.written += chunk
		p = p[chunk:]
	}
	return nil
}

// End implements Writer. Nothing is buffered, so there is nothing to flush;
// with Fsync the target is synced when it supports it.
func (w *DirectWriter) End() error {
	if err := w.sess.finish(); err != nil {
		return err
	}
	if !w.Fsync {
		return nil
	}
	if s, ok := w.target.(Syncer); ok {
		if err := s.Sync(); err != nil {
			return fmt.Errorf("failed to sync target: %w", err)
		}
	}
	return nil
}

// Pos returns the current cursor
func (w *DirectWriter) Pos() Position {
	return Position{
		Extent:       w.extentIndex,
		ExtentOffset: w.extentBytesWritten,
		Logical:      w.sess.written,
	}
}

func (w *DirectWriter) writerSession() *session {
	return w.sess
}

func (w *DirectWriter) remainingInExtent() uint64 {
	if w.extentIndex >= len(w.extents) {
		return 0
	}
	return w.extents[w.extentIndex].NumBlocks*w.blockSize - w.extentBytesWritten
}

// offset returns where the next chunk of extent goes. The whole chunk must
// be addressable as an int64 offset.
func (w *DirectWriter) offset(extent Extent, chunk uint64) (int64, error) {
	hi, base := bits.Mul64(extent.StartBlock, w.blockSize)
	off, carry := bits.Add64(base, w.extentBytesWritten, 0)
	end, carry2 := bits.Add64(off, chunk, 0)
	if hi != 0 || carry != 0 || carry2 != 0 || end > math.MaxInt64 {
		return 0, fmt.Errorf("%w: extent %d (%s) at block size %d",
			ErrOffsetOverflow, w.extentIndex, extent, w.blockSize)
	}
	return int64(off), nil
}

func (w *DirectWriter) place(p []byte, offset int64) error {
	if punched, err := w.punchZeros(p, offset); punched || err != nil {
		return err
	}

	n, err := w.target.WriteAt(p, offset)
	if err != nil {
		return fmt.Errorf("failed to write %d bytes at offset %d: %w", len(p), offset, err)
	}
	if n != len(p) {
		return fmt.Errorf("failed to write %d bytes at offset %d: wrote %d: %w",
			len(p), offset, n, io.ErrShortWrite)
	}
	return nil
}

// isZero reports whether p holds only zero bytes
func isZero(p []byte) bool {
	for len(p) > 0 {
		n := min(len(p), len(zeroBlock))
		if !bytes.Equal(p[:n], zeroBlock[:n]) {
			return false
		}
		p = p[n:]
	}
	return true
}

// punchZeros deallocates an all-zero, block-aligned chunk instead of writing
// it. Reports false when the chunk must be written normally.
func (w *DirectWriter) punchZeros(p []byte, offset int64) (bool, error) {
	if !w.SparseZeros || uint64(len(p))%w.blockSize != 0 || uint64(offset)%w.blockSize != 0 {
		return false, nil
	}
	hp, ok := w.target.(HolePuncher)
	if !ok || !isZero(p) {
		return false, nil
	}
	if err := hp.PunchHole(offset, int64(len(p))); err != nil {
		return true, fmt.Errorf("failed to punch %d zero bytes at offset %d: %w", len(p), offset, err)
	}
	return true, nil
}
