package spiral

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// -----------------------------------------------------------------------------
// Gzip Compressor
// -----------------------------------------------------------------------------

// gzipCompressor implements Compressor using gzip compression.
type gzipCompressor struct{}

// NewGzipCompressor creates a gzip compressor.
//
// Bodies are compressed using standard gzip format with .gz extension.
func NewGzipCompressor() Compressor {
	return &gzipCompressor{}
}

func (g *gzipCompressor) Name() string {
	return "gzip"
}

func (g *gzipCompressor) Extension() string {
	return ".gz"
}

func (g *gzipCompressor) Compress(w io.Writer) (io.WriteCloser, error) {
	return gzip.NewWriter(w), nil
}

func (g *gzipCompressor) Decompress(r io.Reader) (io.ReadCloser, error) {
	return gzip.NewReader(r)
}

// -----------------------------------------------------------------------------
// Zstd Compressor
// -----------------------------------------------------------------------------

// zstdCompressor implements Compressor using zstd compression.
type zstdCompressor struct{}

// NewZstdCompressor creates a zstd compressor.
//
// Bodies are compressed using Zstandard format with .zst extension.
func NewZstdCompressor() Compressor {
	return &zstdCompressor{}
}

func (z *zstdCompressor) Name() string {
	return "zstd"
}

func (z *zstdCompressor) Extension() string {
	return ".zst"
}

func (z *zstdCompressor) Compress(w io.Writer) (io.WriteCloser, error) {
	return zstd.NewWriter(w)
}

func (z *zstdCompressor) Decompress(r io.Reader) (io.ReadCloser, error) {
	decoder, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return decoder.IOReadCloser(), nil
}

// -----------------------------------------------------------------------------
// NoOp Compressor
// -----------------------------------------------------------------------------

// noopCompressor implements Compressor with no compression.
type noopCompressor struct{}

// NewNoOpCompressor creates a noop compressor. Bodies pass through unchanged.
func NewNoOpCompressor() Compressor {
	return &noopCompressor{}
}

func (n *noopCompressor) Name() string {
	return "noop"
}

func (n *noopCompressor) Extension() string {
	return ""
}

func (n *noopCompressor) Compress(w io.Writer) (io.WriteCloser, error) {
	return &noopWriteCloser{w}, nil
}

func (n *noopCompressor) Decompress(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(r), nil
}

type noopWriteCloser struct {
	io.Writer
}

func (n *noopWriteCloser) Close() error {
	return nil
}

// -----------------------------------------------------------------------------
// Stream helpers
// -----------------------------------------------------------------------------

// CompressorByName returns the built-in compressor for name.
// An empty name selects noop.
func CompressorByName(name string) (Compressor, error) {
	switch name {
	case "", "noop":
		return NewNoOpCompressor(), nil
	case "gzip":
		return NewGzipCompressor(), nil
	case "zstd":
		return NewZstdCompressor(), nil
	default:
		return nil, fmt.Errorf("spiral: unknown compressor %q", name)
	}
}

// Compress encodes the whole of body with c into a new stream.
// The source body is rewound and left at its end.
func Compress(body Stream, c Compressor) (*StringStream, error) {
	data, err := readBody("compress", body)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w, err := c.Compress(&buf)
	if err != nil {
		return nil, fmt.Errorf("spiral: %s compress: %w", c.Name(), err)
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("spiral: %s compress: %w", c.Name(), err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("spiral: %s compress: %w", c.Name(), err)
	}
	return NewStream(buf.Bytes()), nil
}

// Decompress decodes the whole of body with c into a new stream.
func Decompress(body Stream, c Compressor) (*StringStream, error) {
	if body == nil || !body.IsReadable() {
		return nil, closedBodyError("decompress")
	}
	if err := body.Rewind(); err != nil {
		return nil, fmt.Errorf("spiral: decompress: %w", err)
	}

	r, err := c.Decompress(body)
	if err != nil {
		return nil, fmt.Errorf("spiral: %s decompress: %w", c.Name(), err)
	}
	defer closer(r)()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("spiral: %s decompress: %w", c.Name(), err)
	}
	return NewStream(data), nil
}
