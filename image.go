package extentwriter

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
)

// ErrOutOfRange is returned for accesses past the end of an Image
var ErrOutOfRange = errors.New("access outside image")

// Image is a fixed-size in-memory Target backed by anonymous mmap memory,
// outside the Go heap. A whole partition image can be assembled in it and
// then copied to its destination with WriteTo.
//
// Writers placing disjoint extents may share an Image concurrently.
type Image struct {
	mu      sync.RWMutex // Write-locked only by Close
	raw     []byte       // Whole mapping, page-rounded
	size    int64
	cleanup runtime.Cleanup
}

var (
	_ Target      = (*Image)(nil)
	_ HolePuncher = (*Image)(nil)
	_ io.ReaderAt = (*Image)(nil)
)

// NewImage maps a zeroed image of size bytes
func NewImage(size int64) (*Image, error) {
	if size < 0 {
		return nil, fmt.Errorf("%w: negative size %d", ErrOutOfRange, size)
	}
	raw, err := mapImage(int(roundToPage(max(size, 1))))
	if err != nil {
		return nil, fmt.Errorf("failed to map %d byte image: %w", size, err)
	}

	img := &Image{raw: raw, size: size}
	img.cleanup = runtime.AddCleanup(img, func(d []byte) { _ = unmapImage(d) }, raw)
	return img, nil
}

// Size returns the image size in bytes
func (m *Image) Size() int64 {
	return m.size
}

// WriteAt implements io.WriterAt. Writes must fit inside the image.
func (m *Image) WriteAt(p []byte, off int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkRange(off, int64(len(p))); err != nil {
		return 0, err
	}
	return copy(m.raw[off:], p), nil
}

// ReadAt implements io.ReaderAt
func (m *Image) ReadAt(p []byte, off int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.raw == nil {
		return 0, os.ErrClosed
	}
	if off < 0 {
		return 0, fmt.Errorf("%w: offset %d", ErrOutOfRange, off)
	}
	if off >= m.size {
		return 0, io.EOF
	}
	n := copy(p, m.raw[off:m.size])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// PunchHole zeroes [offset, offset+length). Whole pages inside the range
// are handed back to the kernel.
func (m *Image) PunchHole(offset, length int64) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkRange(offset, length); err != nil {
		return err
	}

	page := int64(os.Getpagesize())
	start := (offset + page - 1) / page * page
	end := (offset + length) / page * page
	if start >= end {
		clear(m.raw[offset : offset+length])
		return nil
	}

	clear(m.raw[offset:start])
	clear(m.raw[end : offset+length])
	if err := discardPages(m.raw[start:end]); err != nil {
		clear(m.raw[start:end])
	}
	return nil
}

// WriteTo copies the image to w
func (m *Image) WriteTo(w io.Writer) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.raw == nil {
		return 0, os.ErrClosed
	}
	n, err := w.Write(m.raw[:m.size])
	return int64(n), err
}

// Close unmaps the image. Further access fails with os.ErrClosed.
func (m *Image) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.raw == nil {
		return nil
	}
	// Unmapping here; the GC cleanup must not unmap again
	m.cleanup.Stop()
	err := unmapImage(m.raw)
	m.raw = nil
	return err
}

func (m *Image) checkRange(off, n int64) error {
	if m.raw == nil {
		return os.ErrClosed
	}
	if off < 0 || n < 0 || off > m.size || n > m.size-off {
		return fmt.Errorf("%w: %d+%d in %d byte image", ErrOutOfRange, off, n, m.size)
	}
	return nil
}

func roundToPage(size int64) int64 {
	page := int64(os.Getpagesize())
	return (size + page - 1) / page * page
}
