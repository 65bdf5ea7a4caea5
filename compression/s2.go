package compression

import (
	"io"

	"github.com/klauspost/compress/s2"
)

func newS2Reader(r io.Reader) io.ReadCloser {
	return io.NopCloser(s2.NewReader(r))
}

func newS2Writer(w io.Writer, level Level) io.WriteCloser {
	opts := []s2.WriterOption{s2.WriterConcurrency(1)}
	switch level {
	case CompressionBest:
		opts = append(opts, s2.WriterBestCompression())
	case CompressionDefault:
		opts = append(opts, s2.WriterBetterCompression())
	}
	return s2.NewWriter(w, opts...)
}
