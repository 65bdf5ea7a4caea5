// Package compression provides streaming decoders (and, for tests and
// payload generators, encoders) for the codecs compressed payload
// operations use.
package compression

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

type Codec uint8
type Level uint8

const (
	CodecNone Codec = iota
	CodecZstd
	CodecLZ4
	CodecS2
	CodecXZ
	CodecBzip2
)

const (
	CompressionDefault Level = iota
	CompressionSpeed
	CompressionBest
)

// ErrUnsupportedCodec is returned for unknown codecs and for codecs that
// can only be decoded.
var ErrUnsupportedCodec = errors.New("unsupported codec")

var codecNames = [...]string{
	CodecNone:  "none",
	CodecZstd:  "zstd",
	CodecLZ4:   "lz4",
	CodecS2:    "s2",
	CodecXZ:    "xz",
	CodecBzip2: "bzip2",
}

func (c Codec) String() string {
	if int(c) < len(codecNames) {
		return codecNames[c]
	}
	return fmt.Sprintf("codec(%d)", uint8(c))
}

// ParseCodec returns the codec with the given name
func ParseCodec(name string) (Codec, error) {
	for c, n := range codecNames {
		if strings.EqualFold(n, name) {
			return Codec(c), nil
		}
	}
	return CodecNone, fmt.Errorf("%w: %q", ErrUnsupportedCodec, name)
}

// NewReader returns a reader decoding r with codec.
// Closing it releases decoder resources; it does not close r.
func NewReader(codec Codec, r io.Reader) (io.ReadCloser, error) {
	switch codec {
	case CodecNone:
		return io.NopCloser(r), nil
	case CodecZstd:
		return newZstdReader(r)
	case CodecLZ4:
		return newLZ4Reader(r), nil
	case CodecS2:
		return newS2Reader(r), nil
	case CodecXZ:
		return newXZReader(r)
	case CodecBzip2:
		return newBzip2Reader(r), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCodec, codec)
	}
}

// NewWriter returns a writer encoding into w with codec at level.
// Close flushes the stream; it does not close w.
func NewWriter(codec Codec, level Level, w io.Writer) (io.WriteCloser, error) {
	switch codec {
	case CodecNone:
		return nopWriteCloser{w}, nil
	case CodecZstd:
		return newZstdWriter(w, level)
	case CodecLZ4:
		return newLZ4Writer(w, level)
	case CodecS2:
		return newS2Writer(w, level), nil
	case CodecXZ:
		return newXZWriter(w)
	default:
		return nil, fmt.Errorf("%w: no %s encoder", ErrUnsupportedCodec, codec)
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
