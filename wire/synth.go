package wire

import (
	"fmt"

	"github.com/go-kit/log"

	"github.com/anirudhraja/protosynth/schema"
)

// Resolver supplies the schema definitions a message refers to by name.
type Resolver interface {
	GetMessage(name string) (*schema.Message, error)
	GetEnum(name string) (*schema.Enum, error)
}

// Synthesize compiles the encode routine and decode state machine for msg.
// Embedded message types are resolved through the nested definitions of msg
// and its ancestors first, then through resolver, which may be nil when
// every referenced type is nested.
func Synthesize(msg *schema.Message, resolver Resolver, cfg Config) (*MessageCodec, error) {
	s := &synthesizer{
		resolver: resolver,
		cfg:      cfg,
		logger:   cfg.logger(),
		codecs:   make(map[*schema.Message]*MessageCodec),
	}
	return s.synthesize(msg, nil)
}

type synthesizer struct {
	resolver Resolver
	cfg      Config
	logger   log.Logger
	codecs   map[*schema.Message]*MessageCodec
}

// scope is the chain of enclosing messages, innermost last.
type scope []*schema.Message

func (s *synthesizer) synthesize(msg *schema.Message, parents scope) (*MessageCodec, error) {
	if c, ok := s.codecs[msg]; ok {
		return c, nil
	}

	c := &MessageCodec{
		msg:             msg,
		name:            msg.Name,
		general:         make(map[FieldNumber]*fieldCodec, len(msg.Fields)),
		preserveUnknown: msg.PreserveUnknown || s.cfg.PreserveUnknownFields,
		cfg:             s.cfg,
		logger:          s.logger,
	}
	// registered before compiling fields so recursive types terminate
	s.codecs[msg] = c

	if factory, ok := s.cfg.Factories[msg.Name]; ok {
		c.newInstance = factory
	} else if !msg.External {
		c.newInstance = func() Instance { return NewRecord(nil) }
	}

	inner := append(append(scope(nil), parents...), msg)
	for _, field := range msg.Fields {
		fc, err := s.compileField(field, inner)
		if err != nil {
			return nil, fmt.Errorf("message %s: %w", msg.Name, wrapWithField(err, field.Name))
		}
		if field.Number <= 0 {
			return nil, fmt.Errorf("message %s: field %s has invalid number %d", msg.Name, field.Name, field.Number)
		}
		if _, dup := c.general[fc.number]; dup {
			return nil, fmt.Errorf("message %s: duplicate field number %d", msg.Name, field.Number)
		}
		c.fields = append(c.fields, fc)
		c.general[fc.number] = fc
		if fc.number <= maxFastFieldNumber {
			c.fast[MakeTag(fc.number, fc.wireType)] = fc
		}
	}
	return c, nil
}

func (s *synthesizer) compileField(field *schema.Field, inner scope) (*fieldCodec, error) {
	fc := &fieldCodec{
		field:    field,
		name:     field.Name,
		number:   FieldNumber(field.Number),
		wireType: WireTypeOf(field),
	}

	switch field.Type.Kind {
	case schema.KindPrimitive:
		vc, ok := primitiveCodecs[field.Type.PrimitiveType]
		if !ok {
			return nil, fmt.Errorf("unsupported primitive type: %s", field.Type.PrimitiveType)
		}
		fc.value = vc
	case schema.KindEnum:
		enum, err := s.lookupEnum(field.Type.EnumType, inner)
		if err != nil {
			return nil, err
		}
		fc.enum = enum
		fc.value = enumCodec(enum)
	case schema.KindMessage:
		nestedMsg, parents, err := s.lookupMessage(field.Type.MessageType, inner)
		if err != nil {
			return nil, err
		}
		nested, err := s.synthesize(nestedMsg, parents)
		if err != nil {
			return nil, err
		}
		fc.message = nested
	default:
		return nil, fmt.Errorf("unsupported field type: %s", field.Type.Kind)
	}

	switch {
	case field.IsPacked():
		fc.kind = kindPacked
	case field.IsRepeated():
		fc.kind = kindRepeated
	case fc.message != nil:
		fc.kind = kindMessage
	default:
		fc.kind = kindScalar
	}

	if field.HasDefault() && !field.IsRepeated() {
		def, err := parseDefault(field, fc.enum)
		if err != nil {
			return nil, fmt.Errorf("invalid default %q: %w", field.DefaultValue, err)
		}
		fc.hasDefault = true
		fc.def = def
	}
	return fc, nil
}

// lookupMessage resolves a message type name, returning the scope the found
// message is nested in.
func (s *synthesizer) lookupMessage(name string, inner scope) (*schema.Message, scope, error) {
	for i := len(inner) - 1; i >= 0; i-- {
		for _, nested := range inner[i].NestedTypes {
			if nested.Name == name {
				return nested, inner[:i+1], nil
			}
		}
		if inner[i].Name == name {
			return inner[i], inner[:i], nil
		}
	}
	if s.resolver == nil {
		return nil, nil, fmt.Errorf("message type %s not found", name)
	}
	msg, err := s.resolver.GetMessage(name)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get message schema for %s: %w", name, err)
	}
	return msg, nil, nil
}

func (s *synthesizer) lookupEnum(name string, inner scope) (*schema.Enum, error) {
	for i := len(inner) - 1; i >= 0; i-- {
		for _, nested := range inner[i].NestedEnums {
			if nested.Name == name {
				return nested, nil
			}
		}
	}
	if s.resolver == nil {
		return nil, fmt.Errorf("enum type %s not found", name)
	}
	enum, err := s.resolver.GetEnum(name)
	if err != nil {
		return nil, fmt.Errorf("failed to get enum schema for %s: %w", name, err)
	}
	return enum, nil
}
