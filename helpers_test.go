package extentwriter

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"
)

// writeCall is one WriteAt/PunchHole observed by a mock target
type writeCall struct {
	Off int64
	Len int
}

// MockTarget is an in-memory Target that records every WriteAt.
type MockTarget struct {
	mu     sync.Mutex
	data   []byte
	writes []writeCall
	syncs  int
}

func (m *MockTarget) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if end := int(off) + len(p); end > len(m.data) {
		m.data = append(m.data, make([]byte, end-len(m.data))...)
	}
	copy(m.data[off:], p)
	m.writes = append(m.writes, writeCall{Off: off, Len: len(p)})
	return len(p), nil
}

func (m *MockTarget) Sync() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncs++
	return nil
}

// Bytes returns a copy of [off, off+n), zero-filled past the written end
func (m *MockTarget) Bytes(off, n int) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, n)
	if off < len(m.data) {
		copy(out, m.data[off:])
	}
	return out
}

func (m *MockTarget) Writes() []writeCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]writeCall(nil), m.writes...)
}

// MockPunchTarget is a MockTarget that also implements HolePuncher
type MockPunchTarget struct {
	MockTarget
	punches []writeCall
}

func (m *MockPunchTarget) PunchHole(offset, length int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.punches = append(m.punches, writeCall{Off: offset, Len: int(length)})
	return nil
}

// FailingTarget fails every WriteAt after the first okWrites
type FailingTarget struct {
	MockTarget
	okWrites int
	err      error
}

func (f *FailingTarget) WriteAt(p []byte, off int64) (int, error) {
	if len(f.Writes()) >= f.okWrites {
		return 0, f.err
	}
	return f.MockTarget.WriteAt(p, off)
}

// ShortTarget reports one byte less than asked without an error
type ShortTarget struct {
	MockTarget
}

func (s *ShortTarget) WriteAt(p []byte, off int64) (int, error) {
	n, err := s.MockTarget.WriteAt(p, off)
	return n - 1, err
}

// MockWriter is a Writer that records the calls it receives
type MockWriter struct {
	events    []string
	blockSize uint32
	extents   []Extent
	data      bytes.Buffer
	writes    [][]byte

	initErr  error
	writeErr error // returned by every Write once set
	endErr   error
	ended    int
}

func (m *MockWriter) Init(target Target, extents []Extent, blockSize uint32) error {
	m.events = append(m.events, "init")
	if m.initErr != nil {
		return m.initErr
	}
	m.blockSize = blockSize
	m.extents = extents
	return nil
}

func (m *MockWriter) Write(p []byte) error {
	m.events = append(m.events, "write")
	if m.writeErr != nil {
		return m.writeErr
	}
	m.writes = append(m.writes, append([]byte(nil), p...))
	m.data.Write(p)
	return nil
}

func (m *MockWriter) End() error {
	m.events = append(m.events, "end")
	m.ended++
	return m.endErr
}

// syncBuffer is a bytes.Buffer safe for the GC cleanup goroutine to log into
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// captureLog routes the package logger into a buffer for the test
func captureLog(t *testing.T) *syncBuffer {
	t.Helper()
	buf := &syncBuffer{}
	prev := log()
	SetLogger(slog.New(slog.NewTextHandler(buf, nil)))
	t.Cleanup(func() { SetLogger(prev) })
	return buf
}

// pattern returns n bytes that differ at every position within 251 bytes
func pattern(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i%251 + 1)
	}
	return p
}
