package wire

import (
	"bytes"
	"fmt"
	"reflect"
	"strconv"

	"github.com/anirudhraja/protosynth/schema"
)

// fieldKind selects the decode/encode strategy of a field.
type fieldKind int

const (
	kindScalar   fieldKind = iota // primitive, string, bytes or enum, one value
	kindMessage                   // embedded message, one value
	kindRepeated                  // one value per wire occurrence
	kindPacked                    // all values in one length-delimited span
)

// valueCodec reads and writes a single value of a scalar or enum type.
type valueCodec struct {
	wireType WireType
	zero     interface{}
	decode   func(d *Decoder) (interface{}, error)
	encode   func(e *Encoder, v interface{}) error
}

// fieldCodec is the compiled strategy for one schema field.
type fieldCodec struct {
	field    *schema.Field
	name     string
	number   FieldNumber
	wireType WireType // declared wire type, matched against the key on decode
	kind     fieldKind

	value   *valueCodec   // scalars and enums; nil for messages
	message *MessageCodec // embedded messages, bound after synthesis
	enum    *schema.Enum

	hasDefault bool
	def        interface{}
}

var primitiveCodecs = map[schema.PrimitiveType]*valueCodec{
	schema.TypeInt32: {
		wireType: WireVarint,
		zero:     int32(0),
		decode:   func(d *Decoder) (interface{}, error) { return NewVarintDecoder(d).DecodeInt32() },
		encode: func(e *Encoder, v interface{}) error {
			n, err := coerceToInt32(v)
			if err != nil {
				return err
			}
			return NewVarintEncoder(e).EncodeInt32(n)
		},
	},
	schema.TypeInt64: {
		wireType: WireVarint,
		zero:     int64(0),
		decode:   func(d *Decoder) (interface{}, error) { return NewVarintDecoder(d).DecodeInt64() },
		encode: func(e *Encoder, v interface{}) error {
			n, err := coerceToInt64(v)
			if err != nil {
				return err
			}
			return NewVarintEncoder(e).EncodeInt64(n)
		},
	},
	schema.TypeUint32: {
		wireType: WireVarint,
		zero:     uint32(0),
		decode:   func(d *Decoder) (interface{}, error) { return NewVarintDecoder(d).DecodeUint32() },
		encode: func(e *Encoder, v interface{}) error {
			n, err := coerceToUint32(v)
			if err != nil {
				return err
			}
			return NewVarintEncoder(e).EncodeUint32(n)
		},
	},
	schema.TypeUint64: {
		wireType: WireVarint,
		zero:     uint64(0),
		decode:   func(d *Decoder) (interface{}, error) { return NewVarintDecoder(d).DecodeVarint() },
		encode: func(e *Encoder, v interface{}) error {
			n, err := coerceToUint64(v)
			if err != nil {
				return err
			}
			return NewVarintEncoder(e).EncodeUint64(n)
		},
	},
	schema.TypeSint32: {
		wireType: WireVarint,
		zero:     int32(0),
		decode:   func(d *Decoder) (interface{}, error) { return NewVarintDecoder(d).DecodeSint32() },
		encode: func(e *Encoder, v interface{}) error {
			n, err := coerceToInt32(v)
			if err != nil {
				return err
			}
			return NewVarintEncoder(e).EncodeSint32(n)
		},
	},
	schema.TypeSint64: {
		wireType: WireVarint,
		zero:     int64(0),
		decode:   func(d *Decoder) (interface{}, error) { return NewVarintDecoder(d).DecodeSint64() },
		encode: func(e *Encoder, v interface{}) error {
			n, err := coerceToInt64(v)
			if err != nil {
				return err
			}
			return NewVarintEncoder(e).EncodeSint64(n)
		},
	},
	schema.TypeBool: {
		wireType: WireVarint,
		zero:     false,
		decode:   func(d *Decoder) (interface{}, error) { return NewVarintDecoder(d).DecodeBool() },
		encode: func(e *Encoder, v interface{}) error {
			b, err := coerceToBool(v)
			if err != nil {
				return err
			}
			return NewVarintEncoder(e).EncodeBool(b)
		},
	},
	schema.TypeFixed32: {
		wireType: WireFixed32,
		zero:     uint32(0),
		decode:   func(d *Decoder) (interface{}, error) { return NewFixedDecoder(d).DecodeFixed32() },
		encode: func(e *Encoder, v interface{}) error {
			n, err := coerceToUint32(v)
			if err != nil {
				return err
			}
			return NewFixedEncoder(e).EncodeFixed32(n)
		},
	},
	schema.TypeSfixed32: {
		wireType: WireFixed32,
		zero:     int32(0),
		decode:   func(d *Decoder) (interface{}, error) { return NewFixedDecoder(d).DecodeSfixed32() },
		encode: func(e *Encoder, v interface{}) error {
			n, err := coerceToInt32(v)
			if err != nil {
				return err
			}
			return NewFixedEncoder(e).EncodeSfixed32(n)
		},
	},
	schema.TypeFloat: {
		wireType: WireFixed32,
		zero:     float32(0),
		decode:   func(d *Decoder) (interface{}, error) { return NewFixedDecoder(d).DecodeFloat32() },
		encode: func(e *Encoder, v interface{}) error {
			f, err := coerceToFloat32(v)
			if err != nil {
				return err
			}
			return NewFixedEncoder(e).EncodeFloat32(f)
		},
	},
	schema.TypeFixed64: {
		wireType: WireFixed64,
		zero:     uint64(0),
		decode:   func(d *Decoder) (interface{}, error) { return NewFixedDecoder(d).DecodeFixed64() },
		encode: func(e *Encoder, v interface{}) error {
			n, err := coerceToUint64(v)
			if err != nil {
				return err
			}
			return NewFixedEncoder(e).EncodeFixed64(n)
		},
	},
	schema.TypeSfixed64: {
		wireType: WireFixed64,
		zero:     int64(0),
		decode:   func(d *Decoder) (interface{}, error) { return NewFixedDecoder(d).DecodeSfixed64() },
		encode: func(e *Encoder, v interface{}) error {
			n, err := coerceToInt64(v)
			if err != nil {
				return err
			}
			return NewFixedEncoder(e).EncodeSfixed64(n)
		},
	},
	schema.TypeDouble: {
		wireType: WireFixed64,
		zero:     float64(0),
		decode:   func(d *Decoder) (interface{}, error) { return NewFixedDecoder(d).DecodeFloat64() },
		encode: func(e *Encoder, v interface{}) error {
			f, err := coerceToFloat64(v)
			if err != nil {
				return err
			}
			return NewFixedEncoder(e).EncodeFloat64(f)
		},
	},
	schema.TypeString: {
		wireType: WireBytes,
		zero:     "",
		decode:   func(d *Decoder) (interface{}, error) { return NewBytesDecoder(d).DecodeString() },
		encode: func(e *Encoder, v interface{}) error {
			s, err := coerceToString(v)
			if err != nil {
				return err
			}
			return e.EncodeString(s)
		},
	},
	schema.TypeBytes: {
		wireType: WireBytes,
		zero:     []byte{},
		decode:   func(d *Decoder) (interface{}, error) { return NewBytesDecoder(d).DecodeBytes() },
		encode: func(e *Encoder, v interface{}) error {
			b, err := coerceToBytes(v)
			if err != nil {
				return err
			}
			return NewBytesEncoder(e).EncodeBytes(b)
		},
	},
}

// enumCodec reads enums as their int32 number and writes numbers or names.
func enumCodec(enum *schema.Enum) *valueCodec {
	zero := int32(0)
	if ev := enum.Default(); ev != nil {
		zero = ev.Number
	}
	return &valueCodec{
		wireType: WireVarint,
		zero:     zero,
		decode:   func(d *Decoder) (interface{}, error) { return NewVarintDecoder(d).DecodeEnum() },
		encode: func(e *Encoder, v interface{}) error {
			n, err := coerceToEnum(v, enum)
			if err != nil {
				return err
			}
			return NewVarintEncoder(e).EncodeEnum(n)
		},
	}
}

// DECODE

// decode reads one wire occurrence of the field into inst. The key has
// already been consumed and its wire type matched.
func (fc *fieldCodec) decode(d *Decoder, inst Instance) error {
	switch fc.kind {
	case kindScalar:
		v, err := fc.value.decode(d)
		if err != nil {
			return err
		}
		inst.Set(fc.name, v)
		return nil

	case kindMessage:
		if existing, ok := inst.Get(fc.name); ok {
			if nested, ok := existing.(Instance); ok && nested != nil {
				return fc.message.deserializeLengthDelimited(d, nested)
			}
		}
		nested, err := fc.message.NewInstance()
		if err != nil {
			return err
		}
		if err := fc.message.deserializeLengthDelimited(d, nested); err != nil {
			return err
		}
		inst.Set(fc.name, nested)
		return nil

	case kindRepeated:
		seq, err := fc.sequence(inst)
		if err != nil {
			return err
		}
		v, err := fc.decodeElement(d)
		if err != nil {
			return err
		}
		inst.Set(fc.name, append(seq, v))
		return nil

	case kindPacked:
		return fc.decodePacked(d, inst)

	default:
		return fmt.Errorf("unsupported field kind %d", fc.kind)
	}
}

// decodeElement reads one element of a repeated field.
func (fc *fieldCodec) decodeElement(d *Decoder) (interface{}, error) {
	if fc.message == nil {
		return fc.value.decode(d)
	}
	nested, err := fc.message.NewInstance()
	if err != nil {
		return nil, err
	}
	if err := fc.message.deserializeLengthDelimited(d, nested); err != nil {
		return nil, err
	}
	return nested, nil
}

// decodePacked consumes values until the packed span is exhausted.
func (fc *fieldCodec) decodePacked(d *Decoder, inst Instance) error {
	length, err := NewBytesDecoder(d).DecodeLength()
	if err != nil {
		return err
	}
	seq, err := fc.sequence(inst)
	if err != nil {
		return err
	}
	limit := d.Position() + int64(length)
	for d.Position() < limit {
		v, err := fc.value.decode(d)
		if err != nil {
			return err
		}
		seq = append(seq, v)
	}
	if d.Position() > limit {
		return fmt.Errorf("%w: packed value overran its span by %d bytes", ErrFramingViolation, d.Position()-limit)
	}
	inst.Set(fc.name, seq)
	return nil
}

// sequence returns the current backing sequence of a repeated field.
func (fc *fieldCodec) sequence(inst Instance) ([]interface{}, error) {
	v, ok := inst.Get(fc.name)
	if !ok || v == nil {
		return make([]interface{}, 0, 1), nil
	}
	seq, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("repeated field holds %T, want []interface{}", v)
	}
	return seq, nil
}

// ENCODE

// encode writes the field's key and value(s) from inst. scratch is the
// enclosing message's buffer for measuring length-delimited payloads.
func (fc *fieldCodec) encode(e *Encoder, inst Instance, scratch *bytes.Buffer, pool *BufferPool, cfg *Config) error {
	v, ok := inst.Get(fc.name)
	if !ok || v == nil {
		if fc.field.Label == schema.LabelRequired && !cfg.AllowMissingRequired {
			return ErrMissingRequired
		}
		return nil
	}

	switch fc.kind {
	case kindScalar:
		if err := e.EncodeKey(fc.number, fc.wireType); err != nil {
			return err
		}
		return fc.value.encode(e, v)

	case kindMessage:
		if err := e.EncodeKey(fc.number, fc.wireType); err != nil {
			return err
		}
		return fc.encodeMessage(e, v, scratch, pool)

	case kindRepeated:
		var seq []interface{}
		var err error
		if fc.message != nil && fc.message.msg.MapEntry && reflect.TypeOf(v).Kind() == reflect.Map {
			seq, err = MapEntries(v)
		} else {
			seq, err = toSlice(v)
		}
		if err != nil {
			return err
		}
		for i, elem := range seq {
			if err := e.EncodeKey(fc.number, fc.wireType); err != nil {
				return err
			}
			if fc.message != nil {
				err = fc.encodeMessage(e, elem, scratch, pool)
			} else {
				err = fc.value.encode(e, elem)
			}
			if err != nil {
				return wrapWithField(err, strconv.Itoa(i))
			}
		}
		return nil

	case kindPacked:
		seq, err := toSlice(v)
		if err != nil {
			return err
		}
		if len(seq) == 0 {
			return nil
		}
		scratch.Reset()
		se := NewEncoder(scratch)
		for i, elem := range seq {
			if err := fc.value.encode(se, elem); err != nil {
				return wrapWithField(err, strconv.Itoa(i))
			}
		}
		if err := e.EncodeKey(fc.number, WireBytes); err != nil {
			return err
		}
		return e.EncodeBytes(scratch.Bytes())

	default:
		return fmt.Errorf("unsupported field kind %d", fc.kind)
	}
}

// encodeMessage writes a length-prefixed embedded message. The payload is
// materialized in scratch first so its length is known.
func (fc *fieldCodec) encodeMessage(e *Encoder, v interface{}, scratch *bytes.Buffer, pool *BufferPool) error {
	var nested Instance
	switch t := v.(type) {
	case []byte:
		// already encoded
		return e.EncodeBytes(t)
	case Instance:
		nested = t
	case map[string]interface{}:
		nested = NewRecord(t)
	default:
		return fmt.Errorf("message value must be Instance, map[string]interface{} or []byte, got %T", v)
	}

	scratch.Reset()
	if err := fc.message.serialize(NewEncoder(scratch), nested, pool); err != nil {
		return err
	}
	return e.EncodeBytes(scratch.Bytes())
}

// DEFAULTS

// parseDefault converts a declared default from proto text form.
func parseDefault(field *schema.Field, enum *schema.Enum) (interface{}, error) {
	text := field.DefaultValue
	switch field.Type.Kind {
	case schema.KindEnum:
		if enum != nil {
			if ev, ok := enum.ValueByName(text); ok {
				return ev.Number, nil
			}
		}
		n, err := strconv.ParseInt(text, 0, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid enum default %q", text)
		}
		return int32(n), nil
	case schema.KindPrimitive:
	default:
		return nil, fmt.Errorf("%s fields cannot declare a default", field.Type.Kind)
	}

	switch field.Type.PrimitiveType {
	case schema.TypeInt32, schema.TypeSint32, schema.TypeSfixed32:
		n, err := strconv.ParseInt(text, 0, 32)
		return int32(n), err
	case schema.TypeInt64, schema.TypeSint64, schema.TypeSfixed64:
		return strconv.ParseInt(text, 0, 64)
	case schema.TypeUint32, schema.TypeFixed32:
		n, err := strconv.ParseUint(text, 0, 32)
		return uint32(n), err
	case schema.TypeUint64, schema.TypeFixed64:
		return strconv.ParseUint(text, 0, 64)
	case schema.TypeBool:
		return strconv.ParseBool(text)
	case schema.TypeFloat:
		f, err := parseFloatText(text, 32)
		return float32(f), err
	case schema.TypeDouble:
		return parseFloatText(text, 64)
	case schema.TypeString:
		return unquote(text), nil
	case schema.TypeBytes:
		return []byte(unquote(text)), nil
	default:
		return nil, fmt.Errorf("unsupported primitive type: %s", field.Type.PrimitiveType)
	}
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		inner := s[1 : len(s)-1]
		if u, err := strconv.Unquote(`"` + inner + `"`); err == nil {
			return u
		}
		return inner
	}
	return s
}
