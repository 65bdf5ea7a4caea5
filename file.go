package extentwriter

import (
	"errors"
	"fmt"
	"os"

	"github.com/ncw/directio"
)

// datasync is fdatasync; replaced in tests to observe sync calls
var datasync = fdatasync

// File is a Target backed by a regular file or block device.
// It implements Target, Syncer and HolePuncher.
type File struct {
	config
	file  *os.File
	owned bool // opened by OpenFile; closed by Close
}

var (
	_ Target      = (*File)(nil)
	_ Syncer      = (*File)(nil)
	_ HolePuncher = (*File)(nil)
)

// OpenFile opens (creating if needed) path as a target. Existing contents
// are kept: extents address blocks of what is already there.
func OpenFile(path string, opts ...Option) (*File, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt.apply(&cfg)
	}

	var (
		f   *os.File
		err error
	)
	if cfg.IO.DirectIO {
		f, err = directio.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	} else {
		f, err = os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open target: %w", err)
	}

	t := &File{config: cfg, file: f, owned: true}
	if cfg.IO.Preallocate > 0 {
		if err := t.Preallocate(cfg.IO.Preallocate); err != nil {
			// Non-fatal - the file grows as extents are written
			log().Warn("failed to pre-allocate target space",
				"path", path,
				"size", cfg.IO.Preallocate,
				"error", err)
		}
	}
	return t, nil
}

// NewFile wraps an already open file. The caller keeps ownership: Close
// does not close f.
func NewFile(f *os.File, opts ...Option) *File {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt.apply(&cfg)
	}
	return &File{config: cfg, file: f}
}

// WriteAt implements io.WriterAt. With direct I/O, buffers that are not
// suitably aligned in memory are copied into an aligned one first.
func (t *File) WriteAt(p []byte, off int64) (int, error) {
	if t.IO.DirectIO && !isAligned(p) {
		buf := directio.AlignedBlock(len(p))
		copy(buf, p)
		p = buf
	}

	n, err := t.file.WriteAt(p, off)
	if err != nil {
		return n, err
	}

	// O_DIRECT bypasses the page cache only; the device cache and
	// allocation metadata still need fdatasync
	if t.Fsync {
		if err := datasync(t.file); err != nil {
			return n, fmt.Errorf("failed to fdatasync after write: %w", err)
		}
	}
	return n, nil
}

// PunchHole makes [offset, offset+length) read back as zeros. Whole
// filesystem blocks inside the range are deallocated; partial blocks at
// either end, or the whole range where punching is unsupported, are
// overwritten with zeros.
func (t *File) PunchHole(offset, length int64) error {
	alignedOffset, alignedLength, canPunch := alignForHolePunch(offset, length)
	if !canPunch {
		return t.writeZeros(offset, length)
	}

	if err := punchHole(t.file, alignedOffset, alignedLength); err != nil {
		if errors.Is(err, errPunchUnsupported) {
			return t.writeZeros(offset, length)
		}
		return fmt.Errorf("failed to punch hole at %d+%d: %w", alignedOffset, alignedLength, err)
	}

	if err := t.writeZeros(offset, alignedOffset-offset); err != nil {
		return err
	}
	tail := alignedOffset + alignedLength
	return t.writeZeros(tail, offset+length-tail)
}

// Sync flushes written data to stable storage
func (t *File) Sync() error {
	return datasync(t.file)
}

// Preallocate reserves size bytes for the file
func (t *File) Preallocate(size int64) error {
	return fallocate(t.file, size)
}

// Close syncs (with Fsync) and closes the file if OpenFile opened it
func (t *File) Close() error {
	var syncErr error
	if t.Fsync {
		syncErr = t.Sync()
	}
	if !t.owned {
		return syncErr
	}
	return errors.Join(syncErr, t.file.Close())
}

func (t *File) writeZeros(offset, length int64) error {
	for length > 0 {
		n := min(length, int64(len(zeroBlock)))
		if _, err := t.WriteAt(zeroBlock[:n:n], offset); err != nil {
			return fmt.Errorf("failed to write zeros at offset %d: %w", offset, err)
		}
		offset += n
		length -= n
	}
	return nil
}
