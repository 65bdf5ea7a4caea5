package compression

import (
	"io"

	"github.com/klauspost/compress/zstd"
)

func zLevel(l Level) zstd.EncoderLevel {
	switch l {
	case CompressionSpeed:
		return zstd.SpeedFastest
	case CompressionBest:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

// Decoding runs on the calling goroutine; payloads are applied synchronously.
func newZstdReader(r io.Reader) (io.ReadCloser, error) {
	d, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	return d.IOReadCloser(), nil
}

func newZstdWriter(w io.Writer, level Level) (io.WriteCloser, error) {
	return zstd.NewWriter(w,
		zstd.WithEncoderLevel(zLevel(level)),
		zstd.WithEncoderConcurrency(1))
}
