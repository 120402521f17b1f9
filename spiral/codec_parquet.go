package spiral

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"
)

// ErrInvalidFormat indicates a body that is not a valid Parquet file.
var ErrInvalidFormat = errors.New("parquet: invalid format")

// ParquetCompression specifies internal Parquet page compression.
type ParquetCompression int

// Parquet compression options for internal file compression.
const (
	ParquetCompressionNone ParquetCompression = iota
	ParquetCompressionSnappy
	ParquetCompressionGzip
)

func (c ParquetCompression) writerOption() parquet.WriterOption {
	switch c {
	case ParquetCompressionSnappy:
		return parquet.Compression(&parquet.Snappy)
	case ParquetCompressionGzip:
		return parquet.Compression(&parquet.Gzip)
	default:
		return parquet.Compression(&parquet.Uncompressed)
	}
}

// EncodeParquet writes rows as a complete Parquet file body. The schema is
// derived from T's struct tags (see parquet-go).
//
// Parquet files carry a footer that references every row group, so the body
// is always built whole.
func EncodeParquet[T any](rows []T, compression ParquetCompression) (*StringStream, error) {
	var buf bytes.Buffer
	if err := parquet.Write(&buf, rows, compression.writerOption()); err != nil {
		return nil, fmt.Errorf("parquet: write: %w", err)
	}
	return NewStream(buf.Bytes()), nil
}

// DecodeParquet reads every row of a Parquet body. It reads through the
// stream's random-access view and does not move the cursor.
func DecodeParquet[T any](body *StringStream) ([]T, error) {
	size, ok := body.Size()
	if !ok {
		return nil, closedBodyError("decode parquet")
	}
	if size == 0 {
		return nil, ErrInvalidFormat
	}

	rows, err := parquet.Read[T](body, size)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrInvalidFormat
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}
	return rows, nil
}
