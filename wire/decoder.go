package wire

import (
	"fmt"
)

// Decoder handles low-level protobuf wire format decoding over a Source.
type Decoder struct {
	src Source
}

// NewDecoder creates a new wire format decoder
func NewDecoder(src Source) *Decoder {
	return &Decoder{src: src}
}

// NewBufferDecoder creates a decoder reading data from the start.
func NewBufferDecoder(data []byte) *Decoder {
	return NewDecoder(NewBufferSource(data, 0))
}

// Position returns the number of bytes consumed so far.
func (d *Decoder) Position() int64 { return d.src.Position() }

// eofError reports why the input ended: the source's I/O error when there is
// one, ErrTruncated otherwise.
func (d *Decoder) eofError() error {
	if err := d.src.Err(); err != nil {
		return err
	}
	return ErrTruncated
}

// ReadKey finishes reading a field key whose first byte was already
// consumed by the dispatch loop.
func (d *Decoder) ReadKey(first byte) (Tag, error) {
	vd := NewVarintDecoder(d)
	v, err := vd.continueVarint(first)
	if err != nil {
		return 0, fmt.Errorf("failed to decode field key: %w", err)
	}
	return Tag(v), nil
}

// SkipValue discards one value of the given wire type.
func (d *Decoder) SkipValue(wireType WireType) error {
	switch wireType {
	case WireVarint:
		vd := NewVarintDecoder(d)
		return vd.SkipVarint()
	case WireFixed64:
		return d.src.Skip(8)
	case WireBytes:
		bd := NewBytesDecoder(d)
		return bd.SkipBytes()
	case WireFixed32:
		return d.src.Skip(4)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedWireType, wireType)
	}
}

// ReadValueBytes reads one value of the given wire type and returns its raw
// encoding, including the length prefix of length-delimited values.
func (d *Decoder) ReadValueBytes(wireType WireType) ([]byte, error) {
	switch wireType {
	case WireVarint:
		vd := NewVarintDecoder(d)
		raw, _, err := vd.readRawVarint(nil)
		return raw, err
	case WireFixed64:
		raw := make([]byte, 8)
		return raw, d.src.ReadFull(raw)
	case WireBytes:
		vd := NewVarintDecoder(d)
		raw, length, err := vd.readRawVarint(make([]byte, 0, 8))
		if err != nil {
			return nil, fmt.Errorf("failed to decode bytes length: %w", err)
		}
		bd := NewBytesDecoder(d)
		payload, err := bd.readPayload(length)
		if err != nil {
			return nil, err
		}
		return append(raw, payload...), nil
	case WireFixed32:
		raw := make([]byte, 4)
		return raw, d.src.ReadFull(raw)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedWireType, wireType)
	}
}
