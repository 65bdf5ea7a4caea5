package extentwriter

import (
	"errors"
	"net"
	"syscall"

	"github.com/ncw/directio"
)

const mask = directio.BlockSize - 1

// zeroBlock is a shared read-only source of zeros
var zeroBlock = make([]byte, 64<<10)

// errPunchUnsupported is returned by punchHole when the platform or
// filesystem cannot deallocate ranges
var errPunchUnsupported = errors.New("hole punching not supported")

// zeros returns n zero bytes, sharing zeroBlock when it is large enough.
// Callers must not modify the result. Its capacity is n, so appending
// copies instead of writing into zeroBlock.
func zeros(n int) []byte {
	if n <= len(zeroBlock) {
		return zeroBlock[:n:n]
	}
	return make([]byte, n)
}

// alignForHolePunch aligns offset and length to filesystem block boundaries
// Returns (alignedOffset, alignedLength, canPunch)
// canPunch is false if there are no complete blocks to punch
func alignForHolePunch(offset, length int64) (int64, int64, bool) {
	// Round offset UP to next block boundary (don't punch into preceding data)
	alignedOffset := (offset + mask) &^ mask
	length -= alignedOffset - offset

	if length < directio.BlockSize {
		return 0, 0, false
	}

	// Round length DOWN to block multiple (don't punch into following data)
	length &^= mask

	return alignedOffset, length, true
}

// IsTransientIOError returns true if the error is likely temporary and
// the operation might succeed if retried. Extent writers never retry;
// this lets callers decide whether re-applying the whole operation is worthwhile.
func IsTransientIOError(err error) bool {
	if err == nil {
		return false
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EINTR, // Interrupted system call
			syscall.EAGAIN, // Try again
			syscall.EBUSY,  // Device or resource busy
			syscall.EMFILE, // Too many open files (process limit)
			syscall.ENFILE, // Too many open files (system limit)
			syscall.ENOMEM: // Out of memory
			return true
		}
	}

	// Network-attached targets
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return false
}
