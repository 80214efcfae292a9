package schema

// ProtoRepo represents a collection of .proto files and their definitions.
type ProtoRepo struct {
	ProtoFiles map[string]*ProtoFile `json:"proto_files"`
}

// ProtoFile represents a single .proto file
type ProtoFile struct {
	Name     string     `json:"name"`     // file.proto
	Package  string     `json:"package"`  // package name
	Syntax   string     `json:"syntax"`   // proto2 or proto3
	Imports  []string   `json:"imports"`  // imported files
	Messages []*Message `json:"messages"` // message definitions
	Enums    []*Enum    `json:"enums"`    // enum definitions
}

// Message represents a protobuf message definition. Fields are kept in
// declaration order; encoding follows that order.
type Message struct {
	Name        string     `json:"name"`         // "User"
	Fields      []*Field   `json:"fields"`       // message fields
	NestedTypes []*Message `json:"nested_types"` // nested messages
	NestedEnums []*Enum    `json:"nested_enums"` // nested enums

	// PreserveUnknown keeps unrecognized fields as raw (tag, bytes) pairs
	// and writes them back after the declared fields on encode.
	PreserveUnknown bool `json:"preserve_unknown"`
	// Triggers enables the BeforeSerialize / AfterDeserialize hooks.
	Triggers bool `json:"triggers"`
	// External marks a host type defined outside the schema. The codec
	// cannot create instances for it without a registered factory.
	External bool `json:"external"`
	// MapEntry marks the synthetic key/value message of a map field.
	MapEntry bool `json:"map_entry"`
}

// Field represents a message field
type Field struct {
	Name         string     `json:"name"`          // "user_name"
	Number       int32      `json:"number"`        // 1
	Label        FieldLabel `json:"label"`         // optional, required, repeated
	Type         FieldType  `json:"type"`          // field type information
	DefaultValue string     `json:"default_value"` // explicit default, in proto text form
	Deprecated   bool       `json:"deprecated"`    // metadata only
	Packed       bool       `json:"packed"`        // repeated scalars only
	ReadOnly     bool       `json:"read_only"`     // repeated sequence is owned by the host
}

// IsRepeated reports whether the field carries a sequence of values.
func (f *Field) IsRepeated() bool { return f.Label == LabelRepeated }

// IsPacked reports whether a repeated field is written as one packed span.
func (f *Field) IsPacked() bool {
	return f.Label == LabelRepeated && f.Packed && f.Type.IsPackable()
}

// HasDefault reports whether an explicit default was declared.
func (f *Field) HasDefault() bool { return f.DefaultValue != "" }

// FieldLabel represents field labels
type FieldLabel string

const (
	LabelOptional FieldLabel = "optional"
	LabelRequired FieldLabel = "required"
	LabelRepeated FieldLabel = "repeated"
)

// FieldType represents field type information
type FieldType struct {
	Kind          TypeKind      `json:"kind"`                     // primitive, message, enum
	PrimitiveType PrimitiveType `json:"primitive_type,omitempty"` // for primitive types
	MessageType   string        `json:"message_type,omitempty"`   // for message types: "User", "pkg.User"
	EnumType      string        `json:"enum_type,omitempty"`      // for enum types
}

// IsPackable reports whether values of this type may share one packed span.
func (t FieldType) IsPackable() bool {
	switch t.Kind {
	case KindEnum:
		return true
	case KindPrimitive:
		return IsPackedType(t.PrimitiveType)
	default:
		return false
	}
}

// TypeKind represents the kind of field type
type TypeKind string

const (
	KindPrimitive TypeKind = "primitive"
	KindMessage   TypeKind = "message"
	KindEnum      TypeKind = "enum"
)

// PrimitiveType represents protobuf primitive types
type PrimitiveType string

const (
	TypeDouble   PrimitiveType = "double"
	TypeFloat    PrimitiveType = "float"
	TypeInt64    PrimitiveType = "int64"
	TypeUint64   PrimitiveType = "uint64"
	TypeInt32    PrimitiveType = "int32"
	TypeFixed64  PrimitiveType = "fixed64"
	TypeFixed32  PrimitiveType = "fixed32"
	TypeBool     PrimitiveType = "bool"
	TypeString   PrimitiveType = "string"
	TypeBytes    PrimitiveType = "bytes"
	TypeUint32   PrimitiveType = "uint32"
	TypeSfixed32 PrimitiveType = "sfixed32"
	TypeSfixed64 PrimitiveType = "sfixed64"
	TypeSint32   PrimitiveType = "sint32"
	TypeSint64   PrimitiveType = "sint64"
)

var packedEligible = map[PrimitiveType]struct{}{
	TypeDouble:   {},
	TypeFloat:    {},
	TypeInt64:    {},
	TypeUint64:   {},
	TypeInt32:    {},
	TypeFixed64:  {},
	TypeFixed32:  {},
	TypeBool:     {},
	TypeUint32:   {},
	TypeSfixed32: {},
	TypeSfixed64: {},
	TypeSint32:   {},
	TypeSint64:   {},
}

// IsPackedType checks and returns if the Primitive type is packed for repeated label
func IsPackedType(t PrimitiveType) bool {
	_, ok := packedEligible[t]
	return ok
}

// IsPrimitiveType reports whether name is a protobuf scalar type keyword.
func IsPrimitiveType(name string) bool {
	if name == string(TypeString) || name == string(TypeBytes) {
		return true
	}
	return IsPackedType(PrimitiveType(name))
}

// Enum represents an enum definition. Values keep declaration order; the
// first value is the implicit default.
type Enum struct {
	Name   string       `json:"name"`   // "Status"
	Values []*EnumValue `json:"values"` // enum values
}

// EnumValue represents an enum value
type EnumValue struct {
	Name   string `json:"name"`   // "ACTIVE"
	Number int32  `json:"number"` // 1
}

// Default returns the first-declared member, or nil for an empty enum.
func (e *Enum) Default() *EnumValue {
	if len(e.Values) == 0 {
		return nil
	}
	return e.Values[0]
}

// ValueByName looks up a member by name.
func (e *Enum) ValueByName(name string) (*EnumValue, bool) {
	for _, v := range e.Values {
		if v.Name == name {
			return v, true
		}
	}
	return nil, false
}
