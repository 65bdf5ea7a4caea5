//go:build linux || darwin

package extentwriter

import "golang.org/x/sys/unix"

// mapImage mmaps size bytes of private anonymous memory
func mapImage(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE)
}

func unmapImage(b []byte) error {
	return unix.Munmap(b)
}
