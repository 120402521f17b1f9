package spiral

import (
	"fmt"
	"io"
)

// streamTypeString identifies memory-backed streams in metadata.
const streamTypeString = "string"

// -----------------------------------------------------------------------------
// Stream state
// -----------------------------------------------------------------------------

// streamState is either *openState or closedState.
type streamState interface {
	isStreamState()
}

// openState owns the buffer and the cursor. 0 <= pos <= len(contents).
type openState struct {
	contents []byte
	pos      int64
}

func (*openState) isStreamState() {}

func (o *openState) size() int64 { return int64(len(o.contents)) }

// closedState carries nothing: the buffer is released on close.
type closedState struct{}

func (closedState) isStreamState() {}

// -----------------------------------------------------------------------------
// StringStream
// -----------------------------------------------------------------------------

// StringStream is a read-only, seekable Stream over a fixed byte buffer.
//
// The buffer is copied at construction and never aliased. While the stream
// supports every read and seek operation, String is the cheapest way to get
// the whole buffer when stream semantics do not matter.
//
// StringStream performs no internal synchronization.
type StringStream struct {
	state streamState
}

var (
	_ Stream            = (*StringStream)(nil)
	_ io.ReaderAt       = (*StringStream)(nil)
	_ io.ReadSeekCloser = (*StringStream)(nil)
	_ fmt.Stringer      = (*StringStream)(nil)
)

// NewStream creates a stream over a private copy of contents.
func NewStream(contents []byte) *StringStream {
	buf := make([]byte, len(contents))
	copy(buf, contents)
	return &StringStream{state: &openState{contents: buf}}
}

// NewStringStream creates a stream over the bytes of s.
func NewStringStream(s string) *StringStream {
	return &StringStream{state: &openState{contents: []byte(s)}}
}

// open returns the open state, or false once the stream is closed.
func (s *StringStream) open() (*openState, bool) {
	o, ok := s.state.(*openState)
	return o, ok
}

// String returns the whole buffer regardless of position and moves the
// cursor to the end, as if the stream had been read. A closed stream
// returns "".
func (s *StringStream) String() string {
	o, ok := s.open()
	if !ok {
		return ""
	}
	o.pos = o.size()
	return string(o.contents)
}

// Close releases the buffer. Closing a closed stream is a no-op.
func (s *StringStream) Close() error {
	s.state = closedState{}
	return nil
}

// Detach closes the stream. There is no underlying resource, so the
// result is always nil.
func (s *StringStream) Detach() io.Reader {
	_ = s.Close()
	return nil
}

// Size returns the buffer length if the stream is open.
func (s *StringStream) Size() (int64, bool) {
	o, ok := s.open()
	if !ok {
		return 0, false
	}
	return o.size(), true
}

// Len returns the number of unread bytes. A closed stream has none.
func (s *StringStream) Len() int {
	o, ok := s.open()
	if !ok {
		return 0
	}
	return int(o.size() - o.pos)
}

// Tell returns the cursor position.
func (s *StringStream) Tell() (int64, error) {
	o, ok := s.open()
	if !ok {
		return 0, fmt.Errorf("cannot tell position: %w", ErrStreamClosed)
	}
	return o.pos, nil
}

// EOF reports whether the cursor is at the end of the buffer.
// A closed stream counts as an empty buffer at offset zero, so EOF is true.
func (s *StringStream) EOF() bool {
	o, ok := s.open()
	if !ok {
		return true
	}
	return o.pos == o.size()
}

// IsSeekable reports whether the stream is open.
func (s *StringStream) IsSeekable() bool {
	_, ok := s.open()
	return ok
}

// IsReadable reports whether the stream is open.
func (s *StringStream) IsReadable() bool {
	_, ok := s.open()
	return ok
}

// IsWritable always returns false.
func (s *StringStream) IsWritable() bool {
	return false
}

// Seek moves the cursor relative to whence (io.SeekStart, io.SeekCurrent or
// io.SeekEnd) and returns the new position. Targets past the end are clamped
// to the end; targets before the start fail with ErrSeekBeforeStart.
func (s *StringStream) Seek(offset int64, whence int) (int64, error) {
	o, ok := s.open()
	if !ok {
		return 0, fmt.Errorf("cannot seek: %w", ErrStreamClosed)
	}

	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = o.pos
	case io.SeekEnd:
		base = o.size()
	default:
		return o.pos, fmt.Errorf("invalid whence %d: %w", whence, ErrInvalidArgument)
	}

	// base is within [0, size], so only a large positive offset can wrap.
	if offset > o.size()-base {
		o.pos = o.size()
		return o.pos, nil
	}
	target := base + offset
	if target < 0 {
		return o.pos, fmt.Errorf("seek to %d: %w", target, ErrSeekBeforeStart)
	}

	o.pos = min(target, o.size())
	return o.pos, nil
}

// Rewind seeks to the start of the buffer.
func (s *StringStream) Rewind() error {
	_, err := s.Seek(0, io.SeekStart)
	return err
}

// Write always fails: string streams are read-only.
func (s *StringStream) Write([]byte) (int, error) {
	return 0, ErrNotWritable
}

// ReadN returns up to n bytes from the cursor and advances past them.
// Reading at or past the end returns an empty slice, not an error.
func (s *StringStream) ReadN(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("cannot read negative length %d: %w", n, ErrInvalidArgument)
	}

	o, ok := s.open()
	if !ok {
		return nil, fmt.Errorf("cannot read: %w", ErrStreamClosed)
	}

	start := o.pos
	end, err := s.Seek(int64(n), io.SeekCurrent)
	if err != nil {
		return nil, err
	}

	out := make([]byte, end-start)
	copy(out, o.contents[start:end])
	return out, nil
}

// Contents returns everything from the cursor through the end.
func (s *StringStream) Contents() ([]byte, error) {
	o, ok := s.open()
	if !ok {
		return nil, fmt.Errorf("cannot get contents: %w", ErrStreamClosed)
	}
	return s.ReadN(int(o.size() - o.pos))
}

// Read implements io.Reader over the same cursor as ReadN.
func (s *StringStream) Read(p []byte) (int, error) {
	o, ok := s.open()
	if !ok {
		return 0, fmt.Errorf("cannot read: %w", ErrStreamClosed)
	}
	if len(p) == 0 {
		return 0, nil
	}
	if o.pos >= o.size() {
		return 0, io.EOF
	}
	n := copy(p, o.contents[o.pos:])
	o.pos += int64(n)
	return n, nil
}

// ReadAt implements io.ReaderAt. It does not move the cursor.
func (s *StringStream) ReadAt(p []byte, off int64) (int, error) {
	o, ok := s.open()
	if !ok {
		return 0, fmt.Errorf("cannot read: %w", ErrStreamClosed)
	}
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d: %w", off, ErrInvalidArgument)
	}
	if off >= o.size() {
		return 0, io.EOF
	}
	n := copy(p, o.contents[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Metadata returns the full metadata snapshot.
func (s *StringStream) Metadata() StreamMetadata {
	return StreamMetadata{
		MetaTimedOut:    false,
		MetaBlocked:     false, // nothing in a memory stream blocks
		MetaEOF:         s.EOF(),
		MetaUnreadBytes: 0, // nothing is buffered beyond the backing array
		MetaStreamType:  streamTypeString,
		MetaWrapperData: nil,
		MetaSeekable:    s.IsSeekable(),
		MetaURI:         "",
	}
}

// MetadataValue returns a single metadata entry. Unknown keys return nil.
func (s *StringStream) MetadataValue(key string) any {
	return s.Metadata()[key]
}

// -----------------------------------------------------------------------------
// Body helpers
// -----------------------------------------------------------------------------

// readBody rewinds body and returns all of its bytes. Transports call this so
// that a body is always transmitted whole, whatever its current position.
func readBody(op string, body Stream) ([]byte, error) {
	if body == nil || !body.IsReadable() {
		return nil, closedBodyError(op)
	}
	if err := body.Rewind(); err != nil {
		return nil, fmt.Errorf("spiral: %s: %w", op, err)
	}
	return body.Contents()
}
