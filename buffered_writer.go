package extentwriter

import (
	"fmt"

	"github.com/ncw/directio"
)

// BufferedWriter stages the stream in an aligned buffer and forwards it to
// the underlying writer in whole buffers, so every write below it starts on
// a block boundary and comes from aligned memory (what O_DIRECT targets
// need). End forwards the remainder before ending the underlying writer;
// put a ZeroPadWriter on top when the tail must be block-aligned too.
type BufferedWriter struct {
	config
	sess       *session
	underlying Writer

	buf []byte
	n   int // Bytes staged in buf
}

// NewBufferedWriter wraps w
func NewBufferedWriter(w Writer, opts ...Option) *BufferedWriter {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt.apply(&cfg)
	}
	bw := &BufferedWriter{config: cfg, underlying: w}
	bw.sess = newSession(bw, "buffered")
	return bw
}

// Init implements Writer. The buffer is sized to a multiple of both the
// block size and directio.BlockSize.
func (w *BufferedWriter) Init(target Target, extents []Extent, blockSize uint32) error {
	if w.sess.state != stateIdle {
		return ErrAlreadyInitialized
	}
	if blockSize == 0 {
		return ErrInvalidBlockSize
	}
	if err := w.underlying.Init(target, extents, blockSize); err != nil {
		return err
	}

	size := alignUp(max(w.BufferSize, int(blockSize)), blockSize)
	if size%directio.BlockSize != 0 && directio.BlockSize%int(blockSize) == 0 {
		size = alignUp(size, directio.BlockSize)
	}
	w.buf = directio.AlignedBlock(size)
	w.n = 0
	return w.sess.begin()
}

// Write implements Writer
func (w *BufferedWriter) Write(p []byte) error {
	if err := w.sess.check(); err != nil {
		return err
	}

	for len(p) > 0 {
		// Full buffers can go straight through when p is aligned
		if w.n == 0 && len(p) >= len(w.buf) && isAligned(p) {
			chunk := len(p) - len(p)%len(w.buf)
			if err := w.underlying.Write(p[:chunk]); err != nil {
				return err
			}
			w.sess.written += uint64(chunk)
			p = p[chunk:]
			continue
		}

		c := copy(w.buf[w.n:], p)
		w.n += c
		w.sess.written += uint64(c)
		p = p[c:]

		if w.n == len(w.buf) {
			if err := w.flush(); err != nil {
				return err
			}
		}
	}
	return nil
}

// End implements Writer
func (w *BufferedWriter) End() error {
	if err := w.sess.finish(); err != nil {
		return err
	}
	if err := w.flush(); err != nil {
		return fmt.Errorf("failed to flush %d buffered bytes: %w", w.n, err)
	}
	return w.underlying.End()
}

// Unwrap returns the underlying writer
func (w *BufferedWriter) Unwrap() Writer {
	return w.underlying
}

func (w *BufferedWriter) writerSession() *session {
	return w.sess
}

func (w *BufferedWriter) flush() error {
	if w.n == 0 {
		return nil
	}
	if err := w.underlying.Write(w.buf[:w.n]); err != nil {
		return err
	}
	w.n = 0
	return nil
}
