package extentwriter

import (
	"hash"

	"github.com/cespare/xxhash/v2"

	"github.com/miretskiy/extentwriter/compression"
)

// defaultBufferSize is the staging size of buffering writers (before block rounding)
const defaultBufferSize = 1 << 20

// config holds internal configuration shared by writers and file targets
type config struct {
	// DirectWriter
	SparseZeros bool // Punch all-zero blocks instead of writing them
	Fsync       bool // Sync the target on End; fdatasync File writes

	// File targets
	IO struct {
		DirectIO    bool  // Open with O_DIRECT (F_NOCACHE on darwin)
		Preallocate int64 // fallocate this many bytes on open (0 = off)
	}

	// BufferedWriter, DecompressingWriter
	BufferSize int

	// HashingWriter
	Hasher      func() hash.Hash
	ExpectedSum []byte // nil = no verification

	// DecompressingWriter
	Codec compression.Codec
}

// Option configures writers and file targets
type Option interface {
	apply(*config)
}

// funcOpt wraps a function as an Option
type funcOpt func(*config)

func (f funcOpt) apply(c *config) {
	f(c)
}

// WithSparseZeros makes DirectWriter deallocate block-aligned runs of zeros
// on targets implementing HolePuncher instead of writing them (default: false)
func WithSparseZeros(enabled bool) Option {
	return funcOpt(func(c *config) {
		c.SparseZeros = enabled
	})
}

// WithFsync enables syncing: DirectWriter syncs the target on End, File
// targets fdatasync after every write, with or without direct I/O
// (default: false)
func WithFsync(enabled bool) Option {
	return funcOpt(func(c *config) {
		c.Fsync = enabled
	})
}

// WithDirectIO opens File targets with O_DIRECT (default: false)
func WithDirectIO(enabled bool) Option {
	return funcOpt(func(c *config) {
		c.IO.DirectIO = enabled
	})
}

// WithPreallocate reserves size bytes when a File target is opened (default: 0 = off)
func WithPreallocate(size int64) Option {
	return funcOpt(func(c *config) {
		c.IO.Preallocate = size
	})
}

// WithBufferSize sets the staging buffer size of BufferedWriter and the
// output chunk size of DecompressingWriter (default: 1 MiB).
// Rounded up to a multiple of the block size at Init.
func WithBufferSize(size int) Option {
	return funcOpt(func(c *config) {
		c.BufferSize = size
	})
}

// WithHash sets the hash used by HashingWriter (default: xxhash64)
func WithHash(h func() hash.Hash) Option {
	return funcOpt(func(c *config) {
		c.Hasher = h
	})
}

// WithExpectedSum makes HashingWriter fail End with ErrChecksumMismatch when
// the digest of the written stream differs from sum
func WithExpectedSum(sum []byte) Option {
	return funcOpt(func(c *config) {
		c.ExpectedSum = sum
	})
}

// WithCodec sets the codec DecompressingWriter decodes with (default: none)
func WithCodec(codec compression.Codec) Option {
	return funcOpt(func(c *config) {
		c.Codec = codec
	})
}

// defaultConfig returns sensible defaults
func defaultConfig() config {
	return config{
		SparseZeros: false,
		Fsync:       false,
		BufferSize:  defaultBufferSize,
		Hasher:      func() hash.Hash { return xxhash.New() },
		Codec:       compression.CodecNone,
	}
}

// alignUp rounds n up to a multiple of blockSize
func alignUp(n int, blockSize uint32) int {
	bs := int(blockSize)
	return (n + bs - 1) / bs * bs
}
