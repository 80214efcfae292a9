package wire

import (
	"fmt"

	"github.com/anirudhraja/protosynth/schema"
)

// ===== PROTOBUF WIRE FORMAT TYPES =====

// WireType represents protobuf wire format types
type WireType int32

const (
	WireVarint     WireType = 0 // int32, int64, uint32, uint64, sint32, sint64, bool, enum
	WireFixed64    WireType = 1 // fixed64, sfixed64, double
	WireBytes      WireType = 2 // string, bytes, embedded messages, packed repeated fields
	WireStartGroup WireType = 3 // deprecated, not supported
	WireEndGroup   WireType = 4 // deprecated, not supported
	WireFixed32    WireType = 5 // fixed32, sfixed32, float
)

func (w WireType) String() string {
	switch w {
	case WireVarint:
		return "varint"
	case WireFixed64:
		return "fixed64"
	case WireBytes:
		return "bytes"
	case WireStartGroup:
		return "start_group"
	case WireEndGroup:
		return "end_group"
	case WireFixed32:
		return "fixed32"
	default:
		return fmt.Sprintf("wiretype(%d)", int32(w))
	}
}

// FieldNumber represents a protobuf field number
type FieldNumber int32

// Tag represents a protobuf field tag (field number + wire type)
type Tag uint64

// MakeTag creates a tag from field number and wire type
func MakeTag(fieldNumber FieldNumber, wireType WireType) Tag {
	return Tag(uint64(fieldNumber)<<3 | uint64(wireType))
}

// ParseTag parses a tag into field number and wire type
func ParseTag(tag Tag) (FieldNumber, WireType) {
	return FieldNumber(tag >> 3), WireType(tag & 0x7)
}

// maxFastFieldNumber is the largest field number whose tag fits in one byte
// for every wire type.
const maxFastFieldNumber = 15

// WireTypeOf returns the wire type a field is declared with. Packed repeated
// fields travel as one length-delimited span.
func WireTypeOf(field *schema.Field) WireType {
	if field.IsPacked() {
		return WireBytes
	}
	return elementWireType(field.Type)
}

// elementWireType returns the wire type of a single value of the given type.
func elementWireType(fieldType schema.FieldType) WireType {
	switch fieldType.Kind {
	case schema.KindPrimitive:
		switch fieldType.PrimitiveType {
		case schema.TypeString, schema.TypeBytes:
			return WireBytes
		case schema.TypeFloat, schema.TypeFixed32, schema.TypeSfixed32:
			return WireFixed32
		case schema.TypeDouble, schema.TypeFixed64, schema.TypeSfixed64:
			return WireFixed64
		default:
			return WireVarint
		}
	case schema.KindMessage:
		return WireBytes
	case schema.KindEnum:
		return WireVarint
	default:
		return WireVarint
	}
}

// UnknownField is a field the schema in use did not recognize, retained
// verbatim. Value holds the raw value bytes exactly as read, including the
// length prefix for length-delimited values.
type UnknownField struct {
	Tag   Tag
	Value []byte
}

// FieldNumber returns the field number encoded in the tag.
func (u UnknownField) FieldNumber() FieldNumber {
	n, _ := ParseTag(u.Tag)
	return n
}

// WireType returns the wire type encoded in the tag.
func (u UnknownField) WireType() WireType {
	_, wt := ParseTag(u.Tag)
	return wt
}
