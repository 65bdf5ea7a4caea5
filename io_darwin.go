//go:build darwin

package extentwriter

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// fdatasync uses F_FULLFSYNC: darwin has no fdatasync, and plain fsync
// leaves data in the drive cache
func fdatasync(f *os.File) error {
	_, err := unix.FcntlInt(f.Fd(), unix.F_FULLFSYNC, 0)
	return err
}

// isAligned is always true: F_NOCACHE has no memory alignment rules
func isAligned(block []byte) bool {
	return true
}

// fallocate reserves size bytes past EOF, contiguous if possible
func fallocate(f *os.File, size int64) error {
	store := unix.Fstore_t{
		Flags:   unix.F_ALLOCATECONTIG,
		Posmode: unix.F_PEOFPOSMODE,
		Length:  size,
	}
	if err := unix.FcntlFstore(f.Fd(), unix.F_PREALLOCATE, &store); err == nil {
		return nil
	}
	store.Flags = unix.F_ALLOCATEALL
	return unix.FcntlFstore(f.Fd(), unix.F_PREALLOCATE, &store)
}

// punchHoleArgs is struct fpunchhole from <sys/fcntl.h>
type punchHoleArgs struct {
	flags    uint32 // must be 0
	reserved uint32
	offset   int64
	length   int64
}

// punchHole deallocates a block-aligned range with F_PUNCHHOLE (APFS only)
func punchHole(f *os.File, offset, length int64) error {
	args := punchHoleArgs{offset: offset, length: length}
	_, _, errno := unix.Syscall(unix.SYS_FCNTL, f.Fd(), unix.F_PUNCHHOLE, uintptr(unsafe.Pointer(&args)))
	switch errno {
	case 0:
		return nil
	case unix.ENOTSUP, unix.EINVAL:
		return errPunchUnsupported
	default:
		return errno
	}
}

// discardPages zeroes b. MADV_DONTNEED does not guarantee zero-filled pages
// on darwin, so memory is not released.
func discardPages(b []byte) error {
	clear(b)
	return nil
}
