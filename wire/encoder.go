package wire

import (
	"bufio"
	"io"
)

// Sink is the destination an Encoder writes to. *bytes.Buffer and
// *bufio.Writer satisfy it.
type Sink interface {
	io.Writer
	io.StringWriter
}

// Encoder handles low-level protobuf wire format encoding
type Encoder struct {
	w       Sink
	scratch [maxVarintLen]byte
}

// NewEncoder creates a new wire format encoder writing to w
func NewEncoder(w Sink) *Encoder {
	return &Encoder{w: w}
}

// EncodeKey writes the tag for a field.
func (e *Encoder) EncodeKey(fieldNumber FieldNumber, wireType WireType) error {
	return e.EncodeVarint(uint64(MakeTag(fieldNumber, wireType)))
}

// WriteRaw writes already encoded bytes.
func (e *Encoder) WriteRaw(b []byte) error {
	return e.write(b)
}

func (e *Encoder) write(b []byte) error {
	_, err := e.w.Write(b)
	return err
}

func (e *Encoder) writeString(s string) error {
	_, err := e.w.WriteString(s)
	return err
}

// sinkFor adapts an arbitrary writer. The returned flush must be called once
// encoding finished.
func sinkFor(w io.Writer) (Sink, func() error) {
	if s, ok := w.(Sink); ok {
		return s, func() error { return nil }
	}
	bw := bufio.NewWriter(w)
	return bw, bw.Flush
}
