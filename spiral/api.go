// Package spiral provides read-only in-memory stream bodies, validated
// client options, and the stores that send and fetch those bodies.
//
// Spiral focuses on the request body contract: a body is an immutable byte
// buffer exposed through a seekable, closeable stream. Transport backends
// (filesystem, memory, S3) consume bodies only through the Stream interface.
package spiral

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// -----------------------------------------------------------------------------
// Stream interface
// -----------------------------------------------------------------------------

// Stream is a read-only, seekable byte source with a close lifecycle.
//
// Stream embeds io.Reader, io.Seeker, io.Closer and io.Writer so that it can
// be handed to any consumer of the standard interfaces. Write always fails.
type Stream interface {
	io.Reader
	io.Seeker
	io.Closer
	io.Writer

	// String returns the whole buffer regardless of position and moves the
	// cursor to the end. A closed stream returns "".
	String() string

	// Detach closes the stream and returns the underlying resource, which
	// for in-memory streams is always nil.
	Detach() io.Reader

	// Size returns the buffer length, or false once closed.
	Size() (int64, bool)

	// Tell returns the cursor position.
	Tell() (int64, error)

	// EOF reports whether the cursor is at the end of the buffer.
	EOF() bool

	IsSeekable() bool
	IsReadable() bool
	IsWritable() bool

	// Rewind seeks to the start of the buffer.
	Rewind() error

	// ReadN reads up to n bytes from the cursor.
	ReadN(n int) ([]byte, error)

	// Contents reads from the cursor through the end of the buffer.
	Contents() ([]byte, error)

	// Metadata returns a snapshot of the stream's descriptive state.
	Metadata() StreamMetadata

	// MetadataValue returns a single metadata entry, or nil if the key
	// is not part of the snapshot.
	MetadataValue(key string) any
}

// StreamMetadata is a fixed-key snapshot of stream state.
type StreamMetadata map[string]any

// Metadata keys reported by every stream.
const (
	MetaTimedOut    = "timed_out"
	MetaBlocked     = "blocked"
	MetaEOF         = "eof"
	MetaUnreadBytes = "unread_bytes"
	MetaStreamType  = "stream_type"
	MetaWrapperData = "wrapper_data"
	MetaSeekable    = "seekable"
	MetaURI         = "uri"
)

// -----------------------------------------------------------------------------
// Store interface
// -----------------------------------------------------------------------------

// Store abstracts the transport a client sends bodies through.
//
// Implementations may target filesystems, memory, S3, or other object stores.
// Bodies are always transmitted whole, starting from offset zero.
type Store interface {
	// Put transmits body to the given path.
	Put(ctx context.Context, path string, body Stream) error

	// Get fetches the object at path as a new stream.
	Get(ctx context.Context, path string) (*StringStream, error)

	// Exists checks whether a path exists.
	Exists(ctx context.Context, path string) (bool, error)

	// List returns paths under the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the path if it exists.
	Delete(ctx context.Context, path string) error
}

// StoreFactory creates a Store on demand.
type StoreFactory func() (Store, error)

// -----------------------------------------------------------------------------
// Compressor interface
// -----------------------------------------------------------------------------

// Compressor handles compression and decompression of bodies.
type Compressor interface {
	// Name returns the compressor identifier (for example, "gzip", "zstd", "noop").
	Name() string

	// Extension returns the key extension (for example, ".gz", ".zst", "").
	Extension() string

	// Compress wraps a writer with compression.
	Compress(w io.Writer) (io.WriteCloser, error)

	// Decompress wraps a reader with decompression.
	Decompress(r io.Reader) (io.ReadCloser, error)
}

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

// Stream error kinds.
var (
	// ErrStreamClosed indicates an operation on a closed stream.
	ErrStreamClosed = errors.New("stream closed")

	// ErrSeekBeforeStart indicates a seek target before offset zero.
	ErrSeekBeforeStart = errors.New("cannot seek before the beginning")

	// ErrInvalidArgument indicates an unknown seek origin or a negative length.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotWritable indicates a write to a read-only stream.
	ErrNotWritable = errors.New("stream is not writable")
)

// Store error sentinels.
var (
	// ErrNotFound indicates a requested object does not exist.
	ErrNotFound = errNotFound{}

	// ErrPathExists indicates an attempt to write to an existing path.
	ErrPathExists = errPathExists{}
)

type errNotFound struct{}

func (errNotFound) Error() string { return "not found" }

type errPathExists struct{}

func (errPathExists) Error() string { return "path exists" }

// closedBodyError reports a transmit attempt with a closed body.
func closedBodyError(op string) error {
	return fmt.Errorf("spiral: %s: %w", op, ErrStreamClosed)
}
