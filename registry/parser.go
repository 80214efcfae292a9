package registry

import (
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"
	"github.com/yoheimuta/go-protoparser/v4/parser"

	"github.com/anirudhraja/protosynth/schema"
)

// Message and field options understood by the codec. They may be written
// bare or qualified, e.g. option (protosynth.preserve_unknown) = true;
const (
	optPreserveUnknown = "preserve_unknown"
	optTriggers        = "triggers"
	optExternal        = "external"
	optReadOnly        = "read_only"
	optPacked          = "packed"
	optDefault         = "default"
	optDeprecated      = "deprecated"
)

// parseProtoFile converts a parsed .proto body into the schema model. Type
// references are kept as written; they are resolved once every file of the
// load is known.
func parseProtoFile(name string, proto *parser.Proto) (*schema.ProtoFile, error) {
	pf := &schema.ProtoFile{
		Name:     filepath.Base(name),
		Syntax:   "proto2", // files without a syntax statement are proto2
		Imports:  []string{},
		Messages: []*schema.Message{},
		Enums:    []*schema.Enum{},
	}
	if proto.Syntax != nil && proto.Syntax.ProtobufVersion != "" {
		pf.Syntax = strings.Trim(proto.Syntax.ProtobufVersion, `"'`)
	}

	for _, body := range proto.ProtoBody {
		switch b := body.(type) {
		case *parser.Package:
			pf.Package = b.Name
		case *parser.Import:
			pf.Imports = append(pf.Imports, strings.Trim(b.Location, `"`))
		case *parser.Message:
			msg, err := convertMessage(b, pf.Syntax)
			if err != nil {
				return nil, errors.Wrapf(err, "%s", name)
			}
			pf.Messages = append(pf.Messages, msg)
		case *parser.Enum:
			enum, err := convertEnum(b)
			if err != nil {
				return nil, errors.Wrapf(err, "%s", name)
			}
			pf.Enums = append(pf.Enums, enum)
		}
	}
	return pf, nil
}

func convertMessage(m *parser.Message, syntax string) (*schema.Message, error) {
	msg := &schema.Message{
		Name:        m.MessageName,
		Fields:      []*schema.Field{},
		NestedTypes: []*schema.Message{},
		NestedEnums: []*schema.Enum{},
	}

	for _, body := range m.MessageBody {
		switch b := body.(type) {
		case *parser.Field:
			label := schema.LabelOptional
			switch {
			case b.IsRepeated:
				label = schema.LabelRepeated
			case b.IsRequired:
				label = schema.LabelRequired
			}
			field, err := convertField(b.FieldName, b.FieldNumber, b.Type, label, b.FieldOptions, syntax)
			if err != nil {
				return nil, errors.Wrapf(err, "message %s", m.MessageName)
			}
			msg.Fields = append(msg.Fields, field)

		case *parser.MapField:
			// map<K, V> is a repeated entry message with key = 1 and value = 2
			entry := &schema.Message{Name: mapEntryName(b.MapName), MapEntry: true}
			key, err := convertField("key", "1", b.KeyType, schema.LabelOptional, nil, syntax)
			if err != nil {
				return nil, errors.Wrapf(err, "message %s: map %s", m.MessageName, b.MapName)
			}
			value, err := convertField("value", "2", b.Type, schema.LabelOptional, nil, syntax)
			if err != nil {
				return nil, errors.Wrapf(err, "message %s: map %s", m.MessageName, b.MapName)
			}
			entry.Fields = []*schema.Field{key, value}
			msg.NestedTypes = append(msg.NestedTypes, entry)

			field, err := convertField(b.MapName, b.FieldNumber, entry.Name, schema.LabelRepeated, b.FieldOptions, syntax)
			if err != nil {
				return nil, errors.Wrapf(err, "message %s", m.MessageName)
			}
			msg.Fields = append(msg.Fields, field)

		case *parser.Oneof:
			// oneof members are plain optional fields on the wire
			for _, of := range b.OneofFields {
				field, err := convertField(of.FieldName, of.FieldNumber, of.Type, schema.LabelOptional, of.FieldOptions, syntax)
				if err != nil {
					return nil, errors.Wrapf(err, "message %s: oneof %s", m.MessageName, b.OneofName)
				}
				msg.Fields = append(msg.Fields, field)
			}

		case *parser.Message:
			nested, err := convertMessage(b, syntax)
			if err != nil {
				return nil, errors.Wrapf(err, "message %s", m.MessageName)
			}
			msg.NestedTypes = append(msg.NestedTypes, nested)

		case *parser.Enum:
			enum, err := convertEnum(b)
			if err != nil {
				return nil, errors.Wrapf(err, "message %s", m.MessageName)
			}
			msg.NestedEnums = append(msg.NestedEnums, enum)

		case *parser.Option:
			enabled, _ := strconv.ParseBool(b.Constant)
			switch optionName(b.OptionName) {
			case optPreserveUnknown:
				msg.PreserveUnknown = enabled
			case optTriggers:
				msg.Triggers = enabled
			case optExternal:
				msg.External = enabled
			}
		}
	}
	return msg, nil
}

func convertField(name, number, typeName string, label schema.FieldLabel, options []*parser.FieldOption, syntax string) (*schema.Field, error) {
	n, err := strconv.ParseInt(number, 0, 32)
	if err != nil {
		return nil, errors.Wrapf(err, "field %s: invalid number %q", name, number)
	}
	field := &schema.Field{
		Name:   name,
		Number: int32(n),
		Label:  label,
	}

	if schema.IsPrimitiveType(typeName) {
		field.Type = schema.FieldType{Kind: schema.KindPrimitive, PrimitiveType: schema.PrimitiveType(typeName)}
	} else {
		// message or enum, decided at resolution time
		field.Type = schema.FieldType{Kind: schema.KindMessage, MessageType: typeName}
	}

	packedSet := false
	for _, opt := range options {
		switch optionName(opt.OptionName) {
		case optPacked:
			field.Packed, err = strconv.ParseBool(opt.Constant)
			if err != nil {
				return nil, errors.Wrapf(err, "field %s: invalid packed option", name)
			}
			packedSet = true
		case optDefault:
			field.DefaultValue = opt.Constant
		case optDeprecated:
			field.Deprecated, _ = strconv.ParseBool(opt.Constant)
		case optReadOnly:
			field.ReadOnly, _ = strconv.ParseBool(opt.Constant)
		}
	}
	// repeated scalars are packed unless proto2 or switched off
	if !packedSet && label == schema.LabelRepeated && syntax != "proto2" {
		field.Packed = true
	}
	return field, nil
}

func convertEnum(e *parser.Enum) (*schema.Enum, error) {
	enum := &schema.Enum{Name: e.EnumName, Values: []*schema.EnumValue{}}
	for _, body := range e.EnumBody {
		ef, ok := body.(*parser.EnumField)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(ef.Number, 0, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "enum %s: invalid value %s = %q", e.EnumName, ef.Ident, ef.Number)
		}
		enum.Values = append(enum.Values, &schema.EnumValue{Name: ef.Ident, Number: int32(n)})
	}
	return enum, nil
}

// optionName strips the parentheses and package of a custom option name.
func optionName(name string) string {
	name = strings.TrimSuffix(strings.TrimPrefix(name, "("), ")")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// mapEntryName follows protoc: map field "tag_counts" gets entry "TagCountsEntry".
func mapEntryName(field string) string {
	var b strings.Builder
	upper := true
	for _, r := range field {
		if r == '_' {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	b.WriteString("Entry")
	return b.String()
}
