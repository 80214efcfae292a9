package registry

import (
	"os"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/anirudhraja/protosynth/schema"
)

var descriptorTypes = map[descriptorpb.FieldDescriptorProto_Type]schema.PrimitiveType{
	descriptorpb.FieldDescriptorProto_TYPE_DOUBLE:   schema.TypeDouble,
	descriptorpb.FieldDescriptorProto_TYPE_FLOAT:    schema.TypeFloat,
	descriptorpb.FieldDescriptorProto_TYPE_INT64:    schema.TypeInt64,
	descriptorpb.FieldDescriptorProto_TYPE_UINT64:   schema.TypeUint64,
	descriptorpb.FieldDescriptorProto_TYPE_INT32:    schema.TypeInt32,
	descriptorpb.FieldDescriptorProto_TYPE_FIXED64:  schema.TypeFixed64,
	descriptorpb.FieldDescriptorProto_TYPE_FIXED32:  schema.TypeFixed32,
	descriptorpb.FieldDescriptorProto_TYPE_BOOL:     schema.TypeBool,
	descriptorpb.FieldDescriptorProto_TYPE_STRING:   schema.TypeString,
	descriptorpb.FieldDescriptorProto_TYPE_BYTES:    schema.TypeBytes,
	descriptorpb.FieldDescriptorProto_TYPE_UINT32:   schema.TypeUint32,
	descriptorpb.FieldDescriptorProto_TYPE_SFIXED32: schema.TypeSfixed32,
	descriptorpb.FieldDescriptorProto_TYPE_SFIXED64: schema.TypeSfixed64,
	descriptorpb.FieldDescriptorProto_TYPE_SINT32:   schema.TypeSint32,
	descriptorpb.FieldDescriptorProto_TYPE_SINT64:   schema.TypeSint64,
}

// LoadDescriptorSetFile loads a serialized FileDescriptorSet, as written by
// protoc --descriptor_set_out.
func (r *Registry) LoadDescriptorSetFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "failed to read descriptor set")
	}
	set := &descriptorpb.FileDescriptorSet{}
	if err := proto.Unmarshal(data, set); err != nil {
		return errors.Wrapf(err, "failed to unmarshal descriptor set %s", path)
	}
	return r.LoadFileDescriptorSet(set)
}

// LoadFileDescriptorSet validates set and loads every file in it.
func (r *Registry) LoadFileDescriptorSet(set *descriptorpb.FileDescriptorSet) error {
	if _, err := protodesc.NewFiles(set); err != nil {
		return errors.Wrap(err, "invalid descriptor set")
	}
	return r.LoadFileDescriptor(set.GetFile()...)
}

// LoadFileDescriptor loads compiled file descriptors. Type names in
// descriptors are already fully qualified.
func (r *Registry) LoadFileDescriptor(files ...*descriptorpb.FileDescriptorProto) error {
	repo := &schema.ProtoRepo{ProtoFiles: make(map[string]*schema.ProtoFile, len(files))}
	for _, fd := range files {
		pf, err := convertFileDescriptor(fd)
		if err != nil {
			return errors.Wrapf(err, "file %s", fd.GetName())
		}
		repo.ProtoFiles[fd.GetName()] = pf
	}
	return r.LoadRepo(repo)
}

func convertFileDescriptor(fd *descriptorpb.FileDescriptorProto) (*schema.ProtoFile, error) {
	syntax := fd.GetSyntax()
	if syntax == "" {
		syntax = "proto2"
	}
	pf := &schema.ProtoFile{
		Name:     fd.GetName(),
		Package:  fd.GetPackage(),
		Syntax:   syntax,
		Imports:  fd.GetDependency(),
		Messages: make([]*schema.Message, 0, len(fd.GetMessageType())),
		Enums:    make([]*schema.Enum, 0, len(fd.GetEnumType())),
	}
	for _, md := range fd.GetMessageType() {
		msg, err := convertDescriptor(md, syntax)
		if err != nil {
			return nil, err
		}
		pf.Messages = append(pf.Messages, msg)
	}
	for _, ed := range fd.GetEnumType() {
		pf.Enums = append(pf.Enums, convertEnumDescriptor(ed))
	}
	return pf, nil
}

func convertDescriptor(md *descriptorpb.DescriptorProto, syntax string) (*schema.Message, error) {
	msg := &schema.Message{
		Name:        md.GetName(),
		Fields:      make([]*schema.Field, 0, len(md.GetField())),
		NestedTypes: make([]*schema.Message, 0, len(md.GetNestedType())),
		NestedEnums: make([]*schema.Enum, 0, len(md.GetEnumType())),
		MapEntry:    md.GetOptions().GetMapEntry(),
	}
	for _, fd := range md.GetField() {
		field, err := convertFieldDescriptor(fd, syntax)
		if err != nil {
			return nil, errors.Wrapf(err, "message %s", md.GetName())
		}
		msg.Fields = append(msg.Fields, field)
	}
	for _, nd := range md.GetNestedType() {
		nested, err := convertDescriptor(nd, syntax)
		if err != nil {
			return nil, errors.Wrapf(err, "message %s", md.GetName())
		}
		msg.NestedTypes = append(msg.NestedTypes, nested)
	}
	for _, ed := range md.GetEnumType() {
		msg.NestedEnums = append(msg.NestedEnums, convertEnumDescriptor(ed))
	}
	return msg, nil
}

func convertFieldDescriptor(fd *descriptorpb.FieldDescriptorProto, syntax string) (*schema.Field, error) {
	field := &schema.Field{
		Name:         fd.GetName(),
		Number:       fd.GetNumber(),
		DefaultValue: fd.GetDefaultValue(),
		Deprecated:   fd.GetOptions().GetDeprecated(),
	}

	switch fd.GetLabel() {
	case descriptorpb.FieldDescriptorProto_LABEL_REPEATED:
		field.Label = schema.LabelRepeated
	case descriptorpb.FieldDescriptorProto_LABEL_REQUIRED:
		field.Label = schema.LabelRequired
	default:
		field.Label = schema.LabelOptional
	}

	switch t := fd.GetType(); t {
	case descriptorpb.FieldDescriptorProto_TYPE_MESSAGE:
		field.Type = schema.FieldType{Kind: schema.KindMessage, MessageType: fd.GetTypeName()}
	case descriptorpb.FieldDescriptorProto_TYPE_ENUM:
		field.Type = schema.FieldType{Kind: schema.KindEnum, EnumType: fd.GetTypeName()}
	default:
		pt, ok := descriptorTypes[t]
		if !ok {
			return nil, errors.Errorf("field %s: unsupported type %s", fd.GetName(), t)
		}
		field.Type = schema.FieldType{Kind: schema.KindPrimitive, PrimitiveType: pt}
	}

	if field.Label == schema.LabelRepeated {
		if fd.GetOptions() != nil && fd.GetOptions().Packed != nil {
			field.Packed = fd.GetOptions().GetPacked()
		} else {
			field.Packed = syntax != "proto2"
		}
	}
	return field, nil
}

func convertEnumDescriptor(ed *descriptorpb.EnumDescriptorProto) *schema.Enum {
	enum := &schema.Enum{Name: ed.GetName(), Values: make([]*schema.EnumValue, 0, len(ed.GetValue()))}
	for _, v := range ed.GetValue() {
		enum.Values = append(enum.Values, &schema.EnumValue{Name: v.GetName(), Number: v.GetNumber()})
	}
	return enum
}
