package extentwriter

import (
	"fmt"

	"github.com/diskfs/go-diskfs/backend"
)

// StorageTarget returns the writable handle of a go-diskfs storage backend
// (a disk image or block device) as a Target. The backend stays owned by
// the caller.
func StorageTarget(s backend.Storage) (Target, error) {
	w, err := s.Writable()
	if err != nil {
		return nil, fmt.Errorf("failed to get writable storage: %w", err)
	}
	return w, nil
}
