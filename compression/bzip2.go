package compression

import (
	"compress/bzip2"
	"io"
)

// bzip2 is decode-only: no encoder exists in the standard library or in
// the libraries this module depends on.
func newBzip2Reader(r io.Reader) io.ReadCloser {
	return io.NopCloser(bzip2.NewReader(r))
}
