package extentwriter

import (
	"errors"
	"fmt"
	"io"
	"runtime"
)

// Target is the positioned-write primitive extent writers place bytes with.
// It behaves like pwrite: no implicit file position is used or changed.
// Writers borrow the target and never close it.
type Target interface {
	io.WriterAt
}

// Syncer is implemented by targets that can flush written data to stable storage
type Syncer interface {
	Sync() error
}

// HolePuncher is implemented by targets that can deallocate a byte range
type HolePuncher interface {
	PunchHole(offset, length int64) error
}

// Writer writes a flat byte stream into the extents given to Init.
//
// A session is exactly one Init, any number of Write calls and exactly one
// End. Implementations consume all of p on Write or fail; after a failed
// Write the stream position is undefined. Write must not modify or retain p.
// End does any tail processing and never closes the target.
type Writer interface {
	Init(target Target, extents []Extent, blockSize uint32) error
	Write(p []byte) error
	End() error
}

// Common errors
var (
	ErrNotInitialized     = errors.New("extent writer not initialized")
	ErrAlreadyInitialized = errors.New("extent writer already initialized")
	ErrAlreadyEnded       = errors.New("extent writer already ended")
	ErrExtentsExhausted   = errors.New("write exceeds extent capacity")
	ErrInvalidBlockSize   = errors.New("block size must be positive")
	ErrNilTarget          = errors.New("nil target")
	ErrChecksumMismatch   = errors.New("checksum mismatch")
	ErrOffsetOverflow     = errors.New("extent offset overflows int64")
)

type sessionState uint8

const (
	stateIdle sessionState = iota
	stateActive
	stateEnded
)

// session enforces Init -> Write* -> End for one writer. It is allocated
// separately from the writer so a GC cleanup can inspect it after the
// writer becomes unreachable.
type session struct {
	name     string
	state    sessionState
	written  uint64 // bytes accepted by Write
	reported bool   // missing End already logged
}

// newSession creates the session for w and registers the missing-End
// diagnostic for when w is garbage collected.
func newSession[T any](w *T, name string) *session {
	s := &session{name: name}
	runtime.AddCleanup(w, func(s *session) { s.reportUnended("discarded") }, s)
	return s
}

func (s *session) begin() error {
	if s.state != stateIdle {
		return ErrAlreadyInitialized
	}
	s.state = stateActive
	return nil
}

func (s *session) check() error {
	switch s.state {
	case stateIdle:
		return ErrNotInitialized
	case stateEnded:
		return ErrAlreadyEnded
	}
	return nil
}

func (s *session) finish() error {
	if err := s.check(); err != nil {
		return err
	}
	s.state = stateEnded
	return nil
}

// reportUnended logs the missing-End diagnostic once per session
func (s *session) reportUnended(reason string, attrs ...any) {
	if s.state != stateActive || s.reported {
		return
	}
	s.reported = true
	args := append([]any{"writer", s.name, "reason", reason, "written", s.written}, attrs...)
	log().Error("extent writer discarded without End", args...)
}

// sessionHolder is implemented by every writer in this package
type sessionHolder interface {
	writerSession() *session
}

// unwrapper is implemented by decorators
type unwrapper interface {
	Unwrap() Writer
}

// Run initializes w, passes it to fn and ends it once fn succeeds.
//
// On every other exit path (fn returns an error or panics) Run logs that the
// writer chain was abandoned without End, so skipped tail processing such
// as alignment padding is never silent. Init failures are returned as is.
func Run(w Writer, target Target, extents []Extent, blockSize uint32, fn func(Writer) error) (err error) {
	if err := w.Init(target, extents, blockSize); err != nil {
		return fmt.Errorf("failed to init extent writer: %w", err)
	}

	ended := false
	defer func() {
		if !ended {
			abandon(w, err)
		}
	}()

	if err = fn(w); err != nil {
		return err
	}
	ended = true
	return w.End()
}

// abandon reports every writer in the chain that was left without End
func abandon(w Writer, cause error) {
	attrs := []any{"abandoned", fmt.Sprintf("%T", w)}
	if cause != nil {
		attrs = append(attrs, "error", cause, "transient", IsTransientIOError(cause))
	}
	for w != nil {
		if h, ok := w.(sessionHolder); ok {
			h.writerSession().reportUnended("abandoned", attrs...)
		}
		u, ok := w.(unwrapper)
		if !ok {
			return
		}
		w = u.Unwrap()
	}
}

// ioWriter adapts a Writer to io.Writer
type ioWriter struct {
	w Writer
}

// NewIOWriter returns an io.Writer that forwards to w, so a payload can be
// streamed in with io.Copy. The session itself is still driven by the caller.
func NewIOWriter(w Writer) io.Writer {
	return ioWriter{w: w}
}

func (a ioWriter) Write(p []byte) (int, error) {
	if err := a.w.Write(p); err != nil {
		return 0, err
	}
	return len(p), nil
}
