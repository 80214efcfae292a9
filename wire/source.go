package wire

import (
	"fmt"
	"io"
)

// EOF is the sentinel NextByte returns once the input is exhausted.
const EOF = -1

// Source is the byte input a Decoder reads from. Both implementations behave
// identically at end of input so the codec never needs to know which one
// it is reading.
type Source interface {
	// NextByte returns the next byte, or EOF when no byte is available.
	NextByte() int
	// ReadFull fills p completely or fails with ErrTruncated.
	ReadFull(p []byte) error
	// Skip discards n bytes or fails with ErrTruncated.
	Skip(n int) error
	// Position is the number of bytes consumed so far.
	Position() int64
	// Err returns the I/O error that ended the input early, if any.
	Err() error
}

// StreamSource reads from an io.Reader without reading ahead, so a bounded
// decode never consumes bytes past its frame.
type StreamSource struct {
	r   io.Reader
	br  io.ByteReader
	pos int64
	err error
	one [1]byte
}

// NewStreamSource wraps r. If r also implements io.ByteReader it is used for
// single byte reads.
func NewStreamSource(r io.Reader) *StreamSource {
	s := &StreamSource{r: r}
	if br, ok := r.(io.ByteReader); ok {
		s.br = br
	}
	return s
}

// NextByte implements Source.
func (s *StreamSource) NextByte() int {
	if s.err != nil {
		return EOF
	}
	if s.br != nil {
		b, err := s.br.ReadByte()
		if err != nil {
			s.setErr(err)
			return EOF
		}
		s.pos++
		return int(b)
	}
	n, err := s.r.Read(s.one[:])
	if n == 1 {
		s.pos++
		return int(s.one[0])
	}
	if err != nil {
		s.setErr(err)
	}
	return EOF
}

// ReadFull implements Source. Partial reads are accumulated; only a read
// returning no bytes before the count is satisfied ends the input.
func (s *StreamSource) ReadFull(p []byte) error {
	if s.err != nil {
		return s.err
	}
	read := 0
	for read < len(p) {
		n, err := s.r.Read(p[read:])
		read += n
		s.pos += int64(n)
		if read == len(p) {
			return nil
		}
		if err != nil && err != io.EOF {
			s.err = err
			return err
		}
		if n == 0 || err == io.EOF {
			return fmt.Errorf("%w: expected %d bytes, got %d", ErrTruncated, len(p), read)
		}
	}
	return nil
}

// Skip implements Source.
func (s *StreamSource) Skip(n int) error {
	var discard [512]byte
	for n > 0 {
		chunk := n
		if chunk > len(discard) {
			chunk = len(discard)
		}
		if err := s.ReadFull(discard[:chunk]); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

// Position implements Source.
func (s *StreamSource) Position() int64 { return s.pos }

// Err implements Source.
func (s *StreamSource) Err() error { return s.err }

func (s *StreamSource) setErr(err error) {
	if err != io.EOF {
		s.err = err
	}
}

// BufferSource reads from a byte slice with a cursor.
type BufferSource struct {
	buf []byte
	pos int
}

// NewBufferSource returns a source reading buf starting at offset.
func NewBufferSource(buf []byte, offset int) *BufferSource {
	return &BufferSource{buf: buf, pos: offset}
}

// NextByte implements Source.
func (b *BufferSource) NextByte() int {
	if b.pos >= len(b.buf) {
		return EOF
	}
	c := b.buf[b.pos]
	b.pos++
	return int(c)
}

// ReadFull implements Source.
func (b *BufferSource) ReadFull(p []byte) error {
	if len(b.buf)-b.pos < len(p) {
		return fmt.Errorf("%w: expected %d bytes, have %d", ErrTruncated, len(p), len(b.buf)-b.pos)
	}
	b.pos += copy(p, b.buf[b.pos:])
	return nil
}

// Skip implements Source.
func (b *BufferSource) Skip(n int) error {
	if len(b.buf)-b.pos < n {
		return fmt.Errorf("%w: cannot skip %d bytes, have %d", ErrTruncated, n, len(b.buf)-b.pos)
	}
	b.pos += n
	return nil
}

// Position implements Source.
func (b *BufferSource) Position() int64 { return int64(b.pos) }

// Err implements Source.
func (b *BufferSource) Err() error { return nil }

// Offset returns the cursor, the index of the next unread byte.
func (b *BufferSource) Offset() int { return b.pos }

