package extentwriter

import "fmt"

// ZeroPadWriter delegates to an underlying Writer. When End is called it
// ensures the total number of bytes written is a multiple of the block
// size, writing zeros to pad as needed.
type ZeroPadWriter struct {
	sess       *session
	underlying Writer // Borrowed; ended only through End

	blockSize            uint64
	bytesWrittenModBlock uint64
}

// NewZeroPadWriter wraps w
func NewZeroPadWriter(w Writer) *ZeroPadWriter {
	zw := &ZeroPadWriter{underlying: w}
	zw.sess = newSession(zw, "zero-pad")
	return zw
}

// Init implements Writer
func (w *ZeroPadWriter) Init(target Target, extents []Extent, blockSize uint32) error {
	if w.sess.state != stateIdle {
		return ErrAlreadyInitialized
	}
	if blockSize == 0 {
		return ErrInvalidBlockSize
	}
	if err := w.underlying.Init(target, extents, blockSize); err != nil {
		return err
	}
	w.blockSize = uint64(blockSize)
	return w.sess.begin()
}

// Write implements Writer. The running count only moves when the
// underlying write succeeded.
func (w *ZeroPadWriter) Write(p []byte) error {
	if err := w.sess.check(); err != nil {
		return err
	}
	if err := w.underlying.Write(p); err != nil {
		return err
	}
	w.bytesWrittenModBlock = (w.bytesWrittenModBlock + uint64(len(p))) % w.blockSize
	w.sess.written += uint64(len(p))
	return nil
}

// End implements Writer
func (w *ZeroPadWriter) End() error {
	if err := w.sess.finish(); err != nil {
		return err
	}
	if w.bytesWrittenModBlock != 0 {
		padding := w.blockSize - w.bytesWrittenModBlock
		if err := w.underlying.Write(zeros(int(padding))); err != nil {
			return fmt.Errorf("failed to write %d bytes of zero padding: %w", padding, err)
		}
		w.bytesWrittenModBlock = 0
	}
	return w.underlying.End()
}

// Unwrap returns the underlying writer
func (w *ZeroPadWriter) Unwrap() Writer {
	return w.underlying
}

func (w *ZeroPadWriter) writerSession() *session {
	return w.sess
}
