//go:build linux

package extentwriter

import (
	"errors"
	"os"
	"unsafe"

	"github.com/ncw/directio"
	"golang.org/x/sys/unix"
)

// fdatasync syncs file data to disk without syncing metadata
// Uses fdatasync(2) on Linux for better performance than fsync
func fdatasync(f *os.File) error {
	return unix.Fdatasync(int(f.Fd()))
}

// isAligned checks if block is aligned in memory for DirectIO
func isAligned(block []byte) bool {
	if len(block) == 0 {
		return true
	}
	alignment := int(uintptr(unsafe.Pointer(&block[0])) & uintptr(directio.AlignSize-1))
	return alignment == 0
}

// fallocate pre-allocates disk space for a file
// Reduces fragmentation of large image targets
func fallocate(f *os.File, size int64) error {
	return unix.Fallocate(int(f.Fd()), 0, 0, size)
}

// punchHole deallocates a block-aligned range, keeping the file size.
// The range reads back as zeros afterwards.
func punchHole(f *os.File, offset, length int64) error {
	err := unix.Fallocate(int(f.Fd()), unix.FALLOC_FL_PUNCH_HOLE|unix.FALLOC_FL_KEEP_SIZE, offset, length)
	if errors.Is(err, unix.EOPNOTSUPP) || errors.Is(err, unix.ENOSYS) {
		return errPunchUnsupported
	}
	return err
}

// discardPages releases page-aligned memory of a private anonymous mapping;
// the pages read back as zeros afterwards
func discardPages(b []byte) error {
	return unix.Madvise(b, unix.MADV_DONTNEED)
}
