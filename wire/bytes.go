package wire

import (
	"fmt"
	"math"
)

// payloadChunk bounds the up-front allocation for a length-delimited value
// so a corrupt length cannot force a huge allocation before reading fails.
const payloadChunk = 32 << 10

// BytesDecoder handles length-delimited bytes decoding operations
type BytesDecoder struct {
	decoder *Decoder
}

// BytesEncoder handles length-delimited bytes encoding operations
type BytesEncoder struct {
	encoder *Encoder
}

// NewBytesDecoder creates a new bytes decoder
func NewBytesDecoder(d *Decoder) *BytesDecoder {
	return &BytesDecoder{decoder: d}
}

// NewBytesEncoder creates a new bytes encoder
func NewBytesEncoder(e *Encoder) *BytesEncoder {
	return &BytesEncoder{encoder: e}
}

// DECODER METHODS

// DecodeLength decodes a length prefix.
func (bd *BytesDecoder) DecodeLength() (int, error) {
	vd := NewVarintDecoder(bd.decoder)
	length, err := vd.DecodeVarint()
	if err != nil {
		return 0, fmt.Errorf("failed to decode bytes length: %w", err)
	}
	if length > math.MaxInt32 {
		return 0, fmt.Errorf("%w: length %d exceeds limit", ErrFramingViolation, length)
	}
	return int(length), nil
}

// DecodeBytes decodes a length-delimited byte array
func (bd *BytesDecoder) DecodeBytes() ([]byte, error) {
	length, err := bd.DecodeLength()
	if err != nil {
		return nil, err
	}
	return bd.readPayload(uint64(length))
}

// DecodeString decodes a length-delimited string
func (bd *BytesDecoder) DecodeString() (string, error) {
	data, err := bd.DecodeBytes()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SkipBytes skips over a length-delimited byte array
func (bd *BytesDecoder) SkipBytes() error {
	length, err := bd.DecodeLength()
	if err != nil {
		return err
	}
	return bd.decoder.src.Skip(length)
}

// readPayload reads exactly length bytes.
func (bd *BytesDecoder) readPayload(length uint64) ([]byte, error) {
	if length > math.MaxInt32 {
		return nil, fmt.Errorf("%w: length %d exceeds limit", ErrFramingViolation, length)
	}
	n := int(length)
	if n <= payloadChunk {
		data := make([]byte, n)
		if err := bd.decoder.src.ReadFull(data); err != nil {
			return nil, fmt.Errorf("bytes truncated: %w", err)
		}
		return data, nil
	}

	data := make([]byte, 0, payloadChunk)
	for len(data) < n {
		chunk := n - len(data)
		if chunk > payloadChunk {
			chunk = payloadChunk
		}
		start := len(data)
		data = append(data, make([]byte, chunk)...)
		if err := bd.decoder.src.ReadFull(data[start:]); err != nil {
			return nil, fmt.Errorf("bytes truncated: %w", err)
		}
	}
	return data, nil
}

// ENCODER METHODS

// EncodeBytes encodes a byte array as length-delimited
func (be *BytesEncoder) EncodeBytes(data []byte) error {
	ve := NewVarintEncoder(be.encoder)
	if err := ve.EncodeVarint(uint64(len(data))); err != nil {
		return fmt.Errorf("failed to encode bytes length: %w", err)
	}
	return be.encoder.write(data)
}

// EncodeString encodes a string as length-delimited bytes
func (be *BytesEncoder) EncodeString(s string) error {
	ve := NewVarintEncoder(be.encoder)
	if err := ve.EncodeVarint(uint64(len(s))); err != nil {
		return fmt.Errorf("failed to encode string length: %w", err)
	}
	return be.encoder.writeString(s)
}

// Convenience methods for direct access

// EncodeBytes - convenience method for main encoder
func (e *Encoder) EncodeBytes(data []byte) error {
	be := NewBytesEncoder(e)
	return be.EncodeBytes(data)
}

// EncodeString - convenience method for main encoder
func (e *Encoder) EncodeString(s string) error {
	be := NewBytesEncoder(e)
	return be.EncodeString(s)
}
