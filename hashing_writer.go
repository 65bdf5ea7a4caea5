package extentwriter

import (
	"bytes"
	"fmt"
	"hash"
)

// HashingWriter hashes every byte the underlying writer accepted. With an
// expected sum configured, End verifies the digest after ending the
// underlying writer.
type HashingWriter struct {
	config
	sess       *session
	underlying Writer
	hash       hash.Hash
}

// NewHashingWriter wraps w
func NewHashingWriter(w Writer, opts ...Option) *HashingWriter {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt.apply(&cfg)
	}
	hw := &HashingWriter{config: cfg, underlying: w, hash: cfg.Hasher()}
	hw.sess = newSession(hw, "hashing")
	return hw
}

// Init implements Writer
func (w *HashingWriter) Init(target Target, extents []Extent, blockSize uint32) error {
	if w.sess.state != stateIdle {
		return ErrAlreadyInitialized
	}
	if err := w.underlying.Init(target, extents, blockSize); err != nil {
		return err
	}
	return w.sess.begin()
}

// Write implements Writer
func (w *HashingWriter) Write(p []byte) error {
	if err := w.sess.check(); err != nil {
		return err
	}
	if err := w.underlying.Write(p); err != nil {
		return err
	}
	w.hash.Write(p)
	w.sess.written += uint64(len(p))
	return nil
}

// End implements Writer
func (w *HashingWriter) End() error {
	if err := w.sess.finish(); err != nil {
		return err
	}
	if err := w.underlying.End(); err != nil {
		return err
	}
	if w.ExpectedSum == nil {
		return nil
	}
	if computed := w.Sum(); !bytes.Equal(computed, w.ExpectedSum) {
		return fmt.Errorf("%w: expected %x, got %x", ErrChecksumMismatch, w.ExpectedSum, computed)
	}
	return nil
}

// Sum returns the digest of the bytes written so far
func (w *HashingWriter) Sum() []byte {
	return w.hash.Sum(nil)
}

// Unwrap returns the underlying writer
func (w *HashingWriter) Unwrap() Writer {
	return w.underlying
}

func (w *HashingWriter) writerSession() *session {
	return w.sess
}
