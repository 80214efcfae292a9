package wire

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/anirudhraja/protosynth/schema"
)

// MessageCodec is the synthesized encoder and decoder of one message
// schema. It is immutable and safe for concurrent use.
type MessageCodec struct {
	msg     *schema.Message
	name    string
	fields  []*fieldCodec // declaration order
	fast    [128]*fieldCodec
	general map[FieldNumber]*fieldCodec

	preserveUnknown bool
	newInstance     func() Instance
	cfg             Config
	logger          log.Logger
}

// Schema returns the message schema the codec was synthesized from.
func (c *MessageCodec) Schema() *schema.Message { return c.msg }

// NewInstance creates an empty host instance for this message.
func (c *MessageCodec) NewInstance() (Instance, error) {
	if c.newInstance == nil {
		return nil, fmt.Errorf("message %s is external and has no instance factory", c.name)
	}
	return c.newInstance(), nil
}

// ===== DECODE =====

// Deserialize reads fields from src into inst until the input ends.
func (c *MessageCodec) Deserialize(src Source, inst Instance) error {
	return c.deserialize(NewDecoder(src), inst, 0, false)
}

// DeserializeLengthDelimited reads a varint length prefix, then exactly that
// many bytes of fields from src into inst.
func (c *MessageCodec) DeserializeLengthDelimited(src Source, inst Instance) error {
	return c.deserializeLengthDelimited(NewDecoder(src), inst)
}

// DeserializeLength reads exactly length bytes of fields from src into inst.
func (c *MessageCodec) DeserializeLength(src Source, length int, inst Instance) error {
	if length < 0 {
		return fmt.Errorf("%w: negative length %d", ErrFramingViolation, length)
	}
	d := NewDecoder(src)
	return c.deserialize(d, inst, d.Position()+int64(length), true)
}

// Unmarshal decodes data into a new instance.
func (c *MessageCodec) Unmarshal(data []byte) (Instance, error) {
	inst, err := c.NewInstance()
	if err != nil {
		return nil, err
	}
	if err := c.Deserialize(NewBufferSource(data, 0), inst); err != nil {
		return nil, err
	}
	return inst, nil
}

// UnmarshalLengthDelimited decodes one length-prefixed message from the
// start of data and reports how many bytes it consumed.
func (c *MessageCodec) UnmarshalLengthDelimited(data []byte) (Instance, int, error) {
	inst, err := c.NewInstance()
	if err != nil {
		return nil, 0, err
	}
	src := NewBufferSource(data, 0)
	if err := c.DeserializeLengthDelimited(src, inst); err != nil {
		return nil, 0, err
	}
	return inst, src.Offset(), nil
}

func (c *MessageCodec) deserializeLengthDelimited(d *Decoder, inst Instance) error {
	length, err := NewBytesDecoder(d).DecodeLength()
	if err != nil {
		return err
	}
	// the limit is taken after the length prefix has been consumed
	return c.deserialize(d, inst, d.Position()+int64(length), true)
}

// deserialize is the decode loop shared by all entry points. An unbounded
// decode ends at end of input; a bounded one ends exactly at limit.
func (c *MessageCodec) deserialize(d *Decoder, inst Instance, limit int64, bounded bool) error {
	c.applyDefaults(inst)
	src := d.src

	for {
		if bounded {
			if pos := src.Position(); pos >= limit {
				if pos == limit {
					break
				}
				return fmt.Errorf("message %s: %w: position %d, limit %d", c.name, ErrFramingViolation, pos, limit)
			}
		}

		keyByte := src.NextByte()

		// Fields 1-15: the whole key fits in the first byte.
		if keyByte >= 0 && keyByte < len(c.fast) {
			if fc := c.fast[keyByte]; fc != nil {
				if err := fc.decode(d, inst); err != nil {
					return wrapWithField(err, fc.name)
				}
				continue
			}
		}

		if keyByte == EOF {
			if !bounded && src.Err() == nil {
				break
			}
			return fmt.Errorf("failed to decode message %s: %w", c.name, d.eofError())
		}

		key, err := d.ReadKey(byte(keyByte))
		if err != nil {
			return fmt.Errorf("failed to decode message %s: %w", c.name, err)
		}
		number, wireType := ParseTag(key)
		if number == 0 {
			return fmt.Errorf("failed to decode message %s: %w", c.name, ErrCorruptKey)
		}

		if fc, ok := c.general[number]; ok {
			if fc.wireType == wireType {
				if err := fc.decode(d, inst); err != nil {
					return wrapWithField(err, fc.name)
				}
				continue
			}
			c.cfg.Metrics.mismatch(c.name)
			level.Debug(c.logger).Log("msg", "wire type mismatch, treating as unknown field",
				"message", c.name, "field", fc.name, "declared", fc.wireType, "received", wireType)
		}

		if err := c.handleUnknown(d, inst, key, wireType); err != nil {
			return fmt.Errorf("failed to decode message %s: %w", c.name, err)
		}
	}

	if c.msg.Triggers {
		if h, ok := inst.(AfterDeserializer); ok {
			if err := h.AfterDeserialize(); err != nil {
				return fmt.Errorf("message %s: after deserialize: %w", c.name, err)
			}
		}
	}
	c.cfg.Metrics.decoded(c.name)
	return nil
}

// handleUnknown preserves or skips the value of a field the schema does not
// recognize.
func (c *MessageCodec) handleUnknown(d *Decoder, inst Instance, key Tag, wireType WireType) error {
	if c.preserveUnknown {
		if holder, ok := inst.(UnknownFieldHolder); ok {
			raw, err := d.ReadValueBytes(wireType)
			if err != nil {
				return err
			}
			holder.AddUnknownField(UnknownField{Tag: key, Value: raw})
			c.cfg.Metrics.unknown(c.name, "preserved")
			return nil
		}
	}
	number, _ := ParseTag(key)
	level.Debug(c.logger).Log("msg", "skipping unknown field", "message", c.name, "number", number, "wire_type", wireType)
	if err := d.SkipValue(wireType); err != nil {
		return err
	}
	c.cfg.Metrics.unknown(c.name, "skipped")
	return nil
}

// applyDefaults runs once at the start of every decode so absent fields
// still have a well-defined value.
func (c *MessageCodec) applyDefaults(inst Instance) {
	for _, fc := range c.fields {
		field := fc.field
		if field.IsRepeated() {
			if field.ReadOnly {
				continue
			}
			if v, ok := inst.Get(fc.name); !ok || v == nil {
				inst.Set(fc.name, []interface{}{})
			}
			continue
		}
		switch {
		case fc.hasDefault:
			inst.Set(fc.name, zeroValue(fc.def))
		case fc.enum != nil && field.Label == schema.LabelOptional && fc.enum.Default() != nil:
			inst.Set(fc.name, fc.enum.Default().Number)
		case c.cfg.PopulateDefaultsOnDecode && fc.value != nil:
			if _, ok := inst.Get(fc.name); !ok {
				inst.Set(fc.name, zeroValue(fc.value.zero))
			}
		}
	}
}

// zeroValue copies mutable zero values so instances never share them.
func zeroValue(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return append([]byte{}, b...)
	}
	return v
}

// ===== ENCODE =====

// Serialize writes inst to w, borrowing a scratch pool for the call.
func (c *MessageCodec) Serialize(w io.Writer, inst Instance) error {
	pool := getPool()
	defer putPool(pool)
	return c.SerializeWithPool(w, inst, pool)
}

// SerializeWithPool writes inst to w using scratch buffers from pool.
func (c *MessageCodec) SerializeWithPool(w io.Writer, inst Instance, pool *BufferPool) error {
	sink, flush := sinkFor(w)
	if err := c.serialize(NewEncoder(sink), inst, pool); err != nil {
		return err
	}
	return flush()
}

// Marshal encodes inst into a new byte slice.
func (c *MessageCodec) Marshal(inst Instance) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.Serialize(&buf, inst); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SerializeLengthDelimited writes a varint byte length followed by inst.
func (c *MessageCodec) SerializeLengthDelimited(w io.Writer, inst Instance) error {
	data, err := c.Marshal(inst)
	if err != nil {
		return err
	}
	sink, flush := sinkFor(w)
	if err := NewEncoder(sink).EncodeBytes(data); err != nil {
		return err
	}
	return flush()
}

// serialize writes every declared field in order, then the preserved
// unknown fields in arrival order.
func (c *MessageCodec) serialize(e *Encoder, inst Instance, pool *BufferPool) error {
	if c.msg.Triggers {
		if h, ok := inst.(BeforeSerializer); ok {
			if err := h.BeforeSerialize(); err != nil {
				return fmt.Errorf("message %s: before serialize: %w", c.name, err)
			}
		}
	}

	err := pool.With(func(scratch *bytes.Buffer) error {
		for _, fc := range c.fields {
			if err := fc.encode(e, inst, scratch, pool, &c.cfg); err != nil {
				return wrapWithField(err, fc.name)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if c.preserveUnknown {
		if holder, ok := inst.(UnknownFieldHolder); ok {
			for _, f := range holder.UnknownFields() {
				if err := e.EncodeVarint(uint64(f.Tag)); err != nil {
					return err
				}
				if err := e.WriteRaw(f.Value); err != nil {
					return err
				}
			}
		}
	}
	c.cfg.Metrics.encoded(c.name)
	return nil
}
