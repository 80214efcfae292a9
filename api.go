package protosynth

import (
	"bytes"
	"fmt"
	"io"

	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/anirudhraja/protosynth/registry"
	"github.com/anirudhraja/protosynth/schema"
	"github.com/anirudhraja/protosynth/wire"
)

// ===== SCHEMA-AWARE API =====

// Protosynth encodes and decodes protobuf messages by name, without
// generated code, through codecs synthesized from loaded schemas.
type Protosynth struct {
	registry *registry.Registry
}

// New creates a new Protosynth instance. Imports of .proto files are
// resolved against protoDirectories.
func New(protoDirectories ...string) *Protosynth {
	return &Protosynth{
		registry: registry.NewRegistry(protoDirectories...),
	}
}

// SetConfig replaces the codec configuration.
func (p *Protosynth) SetConfig(cfg wire.Config) { p.registry.SetConfig(cfg) }

// LoadRepo loads a protobuf repository (collection of .proto files)
func (p *Protosynth) LoadRepo(repo *schema.ProtoRepo) error {
	return p.registry.LoadRepo(repo)
}

// LoadSchemaFromFile loads a .proto file and everything it imports.
func (p *Protosynth) LoadSchemaFromFile(protoFile string) error {
	return p.registry.LoadSchemaFromFile(protoFile)
}

// LoadSchema loads a .proto file, or every .proto file under a directory.
func (p *Protosynth) LoadSchema(path string) error {
	return p.registry.LoadSchema(path)
}

// LoadFileDescriptor loads compiled file descriptors.
func (p *Protosynth) LoadFileDescriptor(files ...*descriptorpb.FileDescriptorProto) error {
	return p.registry.LoadFileDescriptor(files...)
}

// Parse decodes protobuf bytes into a map using the named message schema.
func (p *Protosynth) Parse(data []byte, messageType string) (map[string]interface{}, error) {
	c, err := p.codec(messageType)
	if err != nil {
		return nil, err
	}
	inst, err := c.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return toMap(inst), nil
}

// ParseLengthDelimited decodes one length-prefixed message from the start
// of data and reports how many bytes it consumed.
func (p *Protosynth) ParseLengthDelimited(data []byte, messageType string) (map[string]interface{}, int, error) {
	c, err := p.codec(messageType)
	if err != nil {
		return nil, 0, err
	}
	inst, n, err := c.UnmarshalLengthDelimited(data)
	if err != nil {
		return nil, 0, err
	}
	return toMap(inst), n, nil
}

// ParseStream reads length-prefixed messages from r until it ends, calling
// fn for each. Returning an error from fn stops the stream.
func (p *Protosynth) ParseStream(r io.Reader, messageType string, fn func(map[string]interface{}) error) error {
	c, err := p.codec(messageType)
	if err != nil {
		return err
	}
	src := wire.NewStreamSource(r)
	for {
		// a clean end of stream can only happen between messages
		start := src.Position()
		inst, err := c.NewInstance()
		if err != nil {
			return err
		}
		if err := c.DeserializeLengthDelimited(src, inst); err != nil {
			if src.Position() == start && src.Err() == nil {
				return nil
			}
			return fmt.Errorf("message at offset %d: %w", start, err)
		}
		if err := fn(toMap(inst)); err != nil {
			return err
		}
	}
}

// Marshal encodes a map to protobuf bytes using schema information
func (p *Protosynth) Marshal(data map[string]interface{}, messageType string) ([]byte, error) {
	c, err := p.codec(messageType)
	if err != nil {
		return nil, err
	}
	return c.Marshal(wire.NewRecord(data))
}

// MarshalLengthDelimited encodes a map prefixed by its byte length.
func (p *Protosynth) MarshalLengthDelimited(data map[string]interface{}, messageType string) ([]byte, error) {
	c, err := p.codec(messageType)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := c.SerializeLengthDelimited(&buf, wire.NewRecord(data)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (p *Protosynth) codec(messageType string) (*wire.MessageCodec, error) {
	c, err := p.registry.Codec(messageType)
	if err != nil {
		return nil, fmt.Errorf("message type %s: %w", messageType, err)
	}
	return c, nil
}

// toMap flattens decoded instances; host types need a ToMap method, which
// types embedding *wire.Record get for free.
func toMap(inst wire.Instance) map[string]interface{} {
	if m, ok := inst.(interface{ ToMap() map[string]interface{} }); ok {
		return m.ToMap()
	}
	return map[string]interface{}{}
}

// ===== REGISTRY ACCESS =====

func (p *Protosynth) GetRegistry() *registry.Registry { return p.registry }
func (p *Protosynth) ListMessages() []string          { return p.registry.ListMessages() }
func (p *Protosynth) ListEnums() []string             { return p.registry.ListEnums() }
