package compression

import (
	"io"

	"github.com/ulikunitz/xz"
)

func newXZReader(r io.Reader) (io.ReadCloser, error) {
	xr, err := xz.NewReader(r)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(xr), nil
}

// xz has a single preset here; levels are ignored
func newXZWriter(w io.Writer) (io.WriteCloser, error) {
	return xz.NewWriter(w)
}
