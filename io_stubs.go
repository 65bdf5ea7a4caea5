//go:build !linux && !darwin

package extentwriter

import (
	"os"
	"unsafe"

	"github.com/ncw/directio"
)

// fdatasync falls back to a full sync on unsupported platforms
func fdatasync(f *os.File) error {
	return f.Sync()
}

// isAligned checks if block is aligned in memory for DirectIO
func isAligned(block []byte) bool {
	if len(block) == 0 {
		return true
	}
	alignment := int(uintptr(unsafe.Pointer(&block[0])) & uintptr(directio.AlignSize-1))
	return alignment == 0
}

// fallocate is a no-op on unsupported platforms
func fallocate(f *os.File, size int64) error {
	return nil // No pre-allocation support
}

// punchHole is unsupported; File falls back to writing zeros
func punchHole(f *os.File, offset, length int64) error {
	return errPunchUnsupported
}

// mapImage allocates image memory on the Go heap
func mapImage(size int) ([]byte, error) {
	return make([]byte, size), nil
}

func unmapImage(b []byte) error {
	return nil
}

func discardPages(b []byte) error {
	clear(b)
	return nil
}
