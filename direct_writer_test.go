package extentwriter

import (
	"bytes"
	"errors"
	"io"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
)

const testBlockSize = 4096

func TestDirectWriter_Placement(t *testing.T) {
	target := &MockTarget{}
	extents := []Extent{{StartBlock: 5, NumBlocks: 2}, {StartBlock: 10, NumBlocks: 1}}
	data := pattern(3 * testBlockSize)

	w := NewDirectWriter()
	require.NoError(t, w.Init(target, extents, testBlockSize))
	require.NoError(t, w.Write(data))
	require.NoError(t, w.End())

	// First two blocks land at block 5, the third at block 10
	require.Equal(t, data[:2*testBlockSize], target.Bytes(5*testBlockSize, 2*testBlockSize))
	require.Equal(t, data[2*testBlockSize:], target.Bytes(10*testBlockSize, testBlockSize))

	// One WriteAt per contiguous run
	require.Equal(t, []writeCall{
		{Off: 5 * testBlockSize, Len: 2 * testBlockSize},
		{Off: 10 * testBlockSize, Len: testBlockSize},
	}, target.Writes())

	// Nothing outside the extents was touched
	require.Equal(t, make([]byte, 5*testBlockSize), target.Bytes(0, 5*testBlockSize))
	require.Equal(t, make([]byte, 3*testBlockSize), target.Bytes(7*testBlockSize, 3*testBlockSize))
}

func TestDirectWriter_BoundarySplitIndependence(t *testing.T) {
	extents := []Extent{{StartBlock: 3, NumBlocks: 1}, {StartBlock: 1, NumBlocks: 2}, {StartBlock: 8, NumBlocks: 1}}
	data := pattern(4 * testBlockSize)

	// 1. One write covering everything
	whole := &MockTarget{}
	w := NewDirectWriter()
	require.NoError(t, w.Init(whole, extents, testBlockSize))
	require.NoError(t, w.Write(data))
	require.NoError(t, w.End())

	// 2. Many odd-sized writes that straddle every extent boundary
	for _, step := range []int{1, 7, 1000, 4095, 4097, 9999} {
		split := &MockTarget{}
		w := NewDirectWriter()
		require.NoError(t, w.Init(split, extents, testBlockSize))
		for off := 0; off < len(data); off += step {
			require.NoError(t, w.Write(data[off:min(off+step, len(data))]))
		}
		require.NoError(t, w.End())

		require.Equal(t, whole.Bytes(0, 9*testBlockSize), split.Bytes(0, 9*testBlockSize),
			"step %d placed bytes differently", step)
	}
}

func TestDirectWriter_Capacity(t *testing.T) {
	extents := []Extent{{StartBlock: 0, NumBlocks: 1}, {StartBlock: 4, NumBlocks: 1}}
	capacity := int(Extents(extents).Capacity(testBlockSize))

	t.Run("exact", func(t *testing.T) {
		w := NewDirectWriter()
		require.NoError(t, w.Init(&MockTarget{}, extents, testBlockSize))
		require.NoError(t, w.Write(pattern(capacity)))
		require.NoError(t, w.End())
	})

	t.Run("one byte over", func(t *testing.T) {
		target := &MockTarget{}
		w := NewDirectWriter()
		require.NoError(t, w.Init(target, extents, testBlockSize))
		err := w.Write(pattern(capacity + 1))
		require.ErrorIs(t, err, ErrExtentsExhausted)

		// Everything that fit was placed before the failure
		require.Equal(t, pattern(capacity)[testBlockSize:], target.Bytes(4*testBlockSize, testBlockSize))
	})

	t.Run("over after filling", func(t *testing.T) {
		w := NewDirectWriter()
		require.NoError(t, w.Init(&MockTarget{}, extents, testBlockSize))
		require.NoError(t, w.Write(pattern(capacity)))
		require.ErrorIs(t, w.Write([]byte{1}), ErrExtentsExhausted)
	})

	t.Run("no extents", func(t *testing.T) {
		w := NewDirectWriter()
		require.NoError(t, w.Init(&MockTarget{}, nil, testBlockSize))
		require.NoError(t, w.Write(nil))
		require.ErrorIs(t, w.Write([]byte{1}), ErrExtentsExhausted)
	})
}

func TestDirectWriter_HoleSkipped(t *testing.T) {
	target := &MockTarget{}
	extents := []Extent{
		{StartBlock: 2, NumBlocks: 1},
		{StartBlock: SparseHole, NumBlocks: 2},
		{StartBlock: 6, NumBlocks: 1},
	}
	data := pattern(4 * testBlockSize)

	w := NewDirectWriter()
	require.NoError(t, w.Init(target, extents, testBlockSize))
	require.NoError(t, w.Write(data))
	require.NoError(t, w.End())

	// The hole consumed two blocks of the stream without a WriteAt
	require.Equal(t, []writeCall{
		{Off: 2 * testBlockSize, Len: testBlockSize},
		{Off: 6 * testBlockSize, Len: testBlockSize},
	}, target.Writes())
	require.Equal(t, data[:testBlockSize], target.Bytes(2*testBlockSize, testBlockSize))
	require.Equal(t, data[3*testBlockSize:], target.Bytes(6*testBlockSize, testBlockSize))
}

func TestDirectWriter_ZeroLengthExtentsAndWrites(t *testing.T) {
	target := &MockTarget{}
	extents := []Extent{{StartBlock: 1, NumBlocks: 0}, {StartBlock: 3, NumBlocks: 1}, {StartBlock: 9, NumBlocks: 0}}

	w := NewDirectWriter()
	require.NoError(t, w.Init(target, extents, testBlockSize))
	require.NoError(t, w.Write(nil))
	require.NoError(t, w.Write([]byte{}))
	require.Empty(t, target.Writes())

	require.NoError(t, w.Write(pattern(testBlockSize)))
	require.NoError(t, w.End())
	require.Equal(t, []writeCall{{Off: 3 * testBlockSize, Len: testBlockSize}}, target.Writes())
}

func TestDirectWriter_InitCopiesExtents(t *testing.T) {
	target := &MockTarget{}
	extents := []Extent{{StartBlock: 1, NumBlocks: 1}}

	w := NewDirectWriter()
	require.NoError(t, w.Init(target, extents, testBlockSize))
	extents[0].StartBlock = 7

	require.NoError(t, w.Write([]byte("abc")))
	require.NoError(t, w.End())
	require.Equal(t, []writeCall{{Off: testBlockSize, Len: 3}}, target.Writes())
}

func TestDirectWriter_Sequencing(t *testing.T) {
	extents := []Extent{{StartBlock: 0, NumBlocks: 1}}

	w := NewDirectWriter()
	require.ErrorIs(t, w.Write([]byte{1}), ErrNotInitialized)
	require.ErrorIs(t, w.End(), ErrNotInitialized)

	require.ErrorIs(t, w.Init(nil, extents, testBlockSize), ErrNilTarget)
	require.ErrorIs(t, w.Init(&MockTarget{}, extents, 0), ErrInvalidBlockSize)

	require.NoError(t, w.Init(&MockTarget{}, extents, testBlockSize))
	require.ErrorIs(t, w.Init(&MockTarget{}, extents, testBlockSize), ErrAlreadyInitialized)

	require.NoError(t, w.End())
	require.ErrorIs(t, w.Write([]byte{1}), ErrAlreadyEnded)
	require.ErrorIs(t, w.End(), ErrAlreadyEnded)
	require.ErrorIs(t, w.Init(&MockTarget{}, extents, testBlockSize), ErrAlreadyInitialized)
}

func TestDirectWriter_TargetErrors(t *testing.T) {
	extents := []Extent{{StartBlock: 0, NumBlocks: 1}, {StartBlock: 2, NumBlocks: 1}}

	t.Run("write error", func(t *testing.T) {
		target := &FailingTarget{okWrites: 1, err: syscall.EIO}
		w := NewDirectWriter()
		require.NoError(t, w.Init(target, extents, testBlockSize))

		err := w.Write(pattern(2 * testBlockSize))
		require.ErrorIs(t, err, syscall.EIO)
		require.Contains(t, err.Error(), "failed to write 4096 bytes at offset 8192")
		require.False(t, IsTransientIOError(err))
	})

	t.Run("transient error", func(t *testing.T) {
		target := &FailingTarget{err: syscall.EAGAIN}
		w := NewDirectWriter()
		require.NoError(t, w.Init(target, extents, testBlockSize))
		require.True(t, IsTransientIOError(w.Write([]byte{1})))
	})

	t.Run("short write", func(t *testing.T) {
		w := NewDirectWriter()
		require.NoError(t, w.Init(&ShortTarget{}, extents, testBlockSize))
		require.ErrorIs(t, w.Write([]byte("hello")), io.ErrShortWrite)
	})
}

func TestDirectWriter_Pos(t *testing.T) {
	extents := []Extent{{StartBlock: 0, NumBlocks: 1}, {StartBlock: SparseHole, NumBlocks: 1}, {StartBlock: 5, NumBlocks: 1}}

	w := NewDirectWriter()
	require.NoError(t, w.Init(&MockTarget{}, extents, testBlockSize))
	require.Equal(t, Position{}, w.Pos())

	require.NoError(t, w.Write(pattern(testBlockSize+10)))
	require.Equal(t, Position{Extent: 1, ExtentOffset: 10, Logical: testBlockSize + 10}, w.Pos())

	// A full extent is only left behind when the next byte arrives
	require.NoError(t, w.Write(pattern(testBlockSize-10)))
	require.Equal(t, Position{Extent: 1, ExtentOffset: testBlockSize, Logical: 2 * testBlockSize}, w.Pos())

	require.NoError(t, w.Write([]byte{1}))
	require.Equal(t, Position{Extent: 2, ExtentOffset: 1, Logical: 2*testBlockSize + 1}, w.Pos())
	require.NoError(t, w.End())
}

func TestDirectWriter_Fsync(t *testing.T) {
	extents := []Extent{{StartBlock: 0, NumBlocks: 1}}

	target := &MockTarget{}
	w := NewDirectWriter(WithFsync(true))
	require.NoError(t, w.Init(target, extents, testBlockSize))
	require.NoError(t, w.Write([]byte("data")))
	require.Equal(t, 0, target.syncs)
	require.NoError(t, w.End())
	require.Equal(t, 1, target.syncs)

	// Without the option End leaves the target alone
	target = &MockTarget{}
	w = NewDirectWriter()
	require.NoError(t, w.Init(target, extents, testBlockSize))
	require.NoError(t, w.End())
	require.Equal(t, 0, target.syncs)
}

func TestDirectWriter_SparseZeros(t *testing.T) {
	extents := []Extent{{StartBlock: 1, NumBlocks: 3}}

	data := make([]byte, 3*testBlockSize)
	copy(data, bytes.Repeat([]byte{0xAA}, testBlockSize))

	t.Run("punches aligned zero chunks", func(t *testing.T) {
		target := &MockPunchTarget{}
		w := NewDirectWriter(WithSparseZeros(true))
		require.NoError(t, w.Init(target, extents, testBlockSize))
		require.NoError(t, w.Write(data[:testBlockSize]))
		require.NoError(t, w.Write(data[testBlockSize:]))
		require.NoError(t, w.End())

		require.Equal(t, []writeCall{{Off: testBlockSize, Len: testBlockSize}}, target.Writes())
		require.Equal(t, []writeCall{{Off: 2 * testBlockSize, Len: 2 * testBlockSize}}, target.punches)
	})

	t.Run("unaligned zeros are written", func(t *testing.T) {
		target := &MockPunchTarget{}
		w := NewDirectWriter(WithSparseZeros(true))
		require.NoError(t, w.Init(target, extents, testBlockSize))
		require.NoError(t, w.Write(make([]byte, 100)))
		require.NoError(t, w.End())

		require.Empty(t, target.punches)
		require.Equal(t, []writeCall{{Off: testBlockSize, Len: 100}}, target.Writes())
	})

	t.Run("targets without PunchHole get writes", func(t *testing.T) {
		target := &MockTarget{}
		w := NewDirectWriter(WithSparseZeros(true))
		require.NoError(t, w.Init(target, extents, testBlockSize))
		require.NoError(t, w.Write(data))
		require.NoError(t, w.End())
		require.Equal(t, []writeCall{{Off: testBlockSize, Len: 3 * testBlockSize}}, target.Writes())
	})
}

func TestDirectWriter_PunchError(t *testing.T) {
	boom := errors.New("boom")
	target := &failingPunchTarget{err: boom}

	w := NewDirectWriter(WithSparseZeros(true))
	require.NoError(t, w.Init(target, []Extent{{StartBlock: 0, NumBlocks: 1}}, testBlockSize))
	require.ErrorIs(t, w.Write(make([]byte, testBlockSize)), boom)
}

type failingPunchTarget struct {
	MockTarget
	err error
}

func (f *failingPunchTarget) PunchHole(offset, length int64) error {
	return f.err
}

func TestDirectWriter_OffsetOverflow(t *testing.T) {
	for _, extent := range []Extent{
		{StartBlock: 1<<52 + 5, NumBlocks: 1}, // StartBlock*bs wraps uint64
		{StartBlock: 1 << 51, NumBlocks: 1},   // fits uint64, not int64
		{StartBlock: 1<<51 - 1, NumBlocks: 2}, // the second block crosses the limit
	} {
		t.Run(extent.String(), func(t *testing.T) {
			target := &MockTarget{}
			w := NewDirectWriter()
			require.NoError(t, w.Init(target, []Extent{extent}, testBlockSize))

			err := w.Write(pattern(2 * testBlockSize)[:extent.NumBlocks*testBlockSize])
			require.ErrorIs(t, err, ErrOffsetOverflow)
			require.Empty(t, target.Writes(), "nothing may land at a wrapped offset")
		})
	}
}
