package extentwriter

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/miretskiy/extentwriter/compression"
)

// DecompressingWriter accepts a compressed stream and writes its
// decompressed contents to the underlying writer. Compressed input is
// collected until End, which decodes it in-line and forwards the output in
// chunks of the configured buffer size.
type DecompressingWriter struct {
	config
	sess       *session
	underlying Writer

	compressed bytes.Buffer
	chunkSize  int
}

// NewDecompressingWriter wraps w; the codec comes from WithCodec.
//
// The whole compressed payload is held in memory until End, so peak memory
// grows with the compressed size plus one output chunk (WithBufferSize).
// Split multi-GB payloads into several operations.
func NewDecompressingWriter(w Writer, opts ...Option) *DecompressingWriter {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt.apply(&cfg)
	}
	dw := &DecompressingWriter{config: cfg, underlying: w}
	dw.sess = newSession(dw, "decompressing")
	return dw
}

// Init implements Writer
func (w *DecompressingWriter) Init(target Target, extents []Extent, blockSize uint32) error {
	if w.sess.state != stateIdle {
		return ErrAlreadyInitialized
	}
	if blockSize == 0 {
		return ErrInvalidBlockSize
	}
	if err := w.underlying.Init(target, extents, blockSize); err != nil {
		return err
	}
	w.chunkSize = alignUp(max(w.BufferSize, int(blockSize)), blockSize)
	return w.sess.begin()
}

// Write implements Writer. p is copied; nothing reaches the underlying
// writer before End.
func (w *DecompressingWriter) Write(p []byte) error {
	if err := w.sess.check(); err != nil {
		return err
	}
	w.compressed.Write(p)
	w.sess.written += uint64(len(p))
	return nil
}

// End implements Writer. Decoding or forwarding failures fail End; the
// underlying writer is then left without End.
func (w *DecompressingWriter) End() error {
	if err := w.sess.finish(); err != nil {
		return err
	}
	// The payload is dropped once End decides, whatever the outcome
	defer func() { w.compressed = bytes.Buffer{} }()

	r, err := compression.NewReader(w.Codec, &w.compressed)
	if err != nil {
		return fmt.Errorf("failed to create %s decoder: %w", w.Codec, err)
	}

	n, err := w.forward(r)
	if err = errors.Join(err, r.Close()); err != nil {
		return fmt.Errorf("failed to decompress %s payload after %d bytes: %w", w.Codec, n, err)
	}

	return w.underlying.End()
}

// forward copies decoded output to the underlying writer in full chunks;
// only the last chunk may be short
func (w *DecompressingWriter) forward(r io.Reader) (int64, error) {
	buf := make([]byte, w.chunkSize)
	var total int64
	for {
		var (
			n   int
			err error
		)
		for n < len(buf) && err == nil {
			var m int
			m, err = r.Read(buf[n:])
			n += m
		}
		if n > 0 {
			if werr := w.underlying.Write(buf[:n]); werr != nil {
				return total, werr
			}
			total += int64(n)
		}
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

// Unwrap returns the underlying writer
func (w *DecompressingWriter) Unwrap() Writer {
	return w.underlying
}

func (w *DecompressingWriter) writerSession() *session {
	return w.sess
}
