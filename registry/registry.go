package registry

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/yoheimuta/go-protoparser/v4/parser"

	"github.com/anirudhraja/protosynth/schema"
	"github.com/anirudhraja/protosynth/wire"
)

// Registry allows us to store the schema of the protobuf messages. We look
// this up when we need to parse or marshal a message. It implements
// wire.Resolver and caches one synthesized codec per message name.
type Registry struct {
	// ProtoDirectories are the roots import paths are resolved against.
	ProtoDirectories []string

	mu       sync.RWMutex
	cfg      wire.Config
	repo     *schema.ProtoRepo
	messages map[string]*schema.Message // fully qualified name -> message
	enums    map[string]*schema.Enum    // fully qualified name -> enum
	codecs   map[string]*wire.MessageCodec

	// parse state of the load in progress, guarded by loadMu
	loadMu          sync.Mutex
	parsedProtoBody map[string]*parser.Proto
	protoEntities   map[string]*protoFileEntity
}

// NewRegistry returns an empty registry resolving imports against
// protoDirectories. Codecs use the package-level wire configuration.
func NewRegistry(protoDirectories ...string) *Registry {
	return &Registry{
		ProtoDirectories: protoDirectories,
		cfg:              wire.DefaultConfig(),
	}
}

// SetConfig replaces the codec configuration and drops cached codecs.
func (r *Registry) SetConfig(cfg wire.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = cfg
	r.codecs = nil
}

// Config returns the codec configuration.
func (r *Registry) Config() wire.Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg
}

// LoadSchema Given a path it will recursively scan all *proto files inside
// it and load them. A directory becomes an import root.
func (r *Registry) LoadSchema(protoPath string) error {
	// Check if the path exists
	info, err := os.Stat(protoPath)
	if err != nil {
		return errors.Wrap(err, "path does not exist")
	}

	// If it's a single file, process it directly
	if !info.IsDir() {
		if !strings.HasSuffix(protoPath, ".proto") {
			return errors.Errorf("file %s is not a .proto file", protoPath)
		}
		return r.LoadSchemaFromFile(protoPath)
	}

	r.ProtoDirectories = append([]string{protoPath}, r.ProtoDirectories...)
	// If it's a directory, walk through it recursively
	err = filepath.WalkDir(protoPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		// Skip directories and non-proto files
		if d.IsDir() || !strings.HasSuffix(path, ".proto") {
			return nil
		}

		rel, err := filepath.Rel(protoPath, path)
		if err != nil {
			return err
		}
		if err := r.LoadSchemaFromFile(filepath.ToSlash(rel)); err != nil {
			return errors.Wrapf(err, "failed to load proto file %s", path)
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "failed to walk directory")
	}
	return nil
}

// LoadSchemaFromFile parses protoFile and everything it imports, then loads
// the result.
func (r *Registry) LoadSchemaFromFile(protoFile string) error {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()

	r.parsedProtoBody = make(map[string]*parser.Proto)
	r.protoEntities = make(map[string]*protoFileEntity)
	files, err := r.getAllProtoInfo(protoFile)
	if err != nil {
		return err
	}

	repo := &schema.ProtoRepo{ProtoFiles: make(map[string]*schema.ProtoFile, len(files))}
	for _, file := range files {
		pf, err := parseProtoFile(file, r.parsedProtoBody[file])
		if err != nil {
			return err
		}
		repo.ProtoFiles[file] = pf
	}
	return r.LoadRepo(repo)
}

// LoadRepo registers every message and enum of repo under its fully
// qualified name and resolves the type references of their fields. Files
// already loaded under the same key are skipped.
func (r *Registry) LoadRepo(repo *schema.ProtoRepo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.repo == nil {
		r.repo = &schema.ProtoRepo{ProtoFiles: make(map[string]*schema.ProtoFile)}
		r.messages = make(map[string]*schema.Message)
		r.enums = make(map[string]*schema.Enum)
	}

	// Pass 1: Register all message and enum names
	added := make([]*schema.ProtoFile, 0, len(repo.ProtoFiles))
	for _, key := range sortedKeys(repo.ProtoFiles) {
		if _, loaded := r.repo.ProtoFiles[key]; loaded {
			continue
		}
		protoFile := repo.ProtoFiles[key]
		if err := r.registerNames(protoFile); err != nil {
			return errors.Wrapf(err, "file %s", key)
		}
		r.repo.ProtoFiles[key] = protoFile
		added = append(added, protoFile)
	}

	// Pass 2: Resolve field type references now that every name is known
	known := make(map[string]struct{}, len(r.messages)+len(r.enums))
	for name := range r.messages {
		known[name] = struct{}{}
	}
	for name := range r.enums {
		known[name] = struct{}{}
	}
	for _, protoFile := range added {
		for _, msg := range protoFile.Messages {
			if err := r.resolveMessage(getFullName(protoFile.Package, msg.Name), msg, known); err != nil {
				return errors.Wrapf(err, "file %s", protoFile.Name)
			}
		}
	}

	r.codecs = nil
	return nil
}

// registerNames registers all message and enum names
func (r *Registry) registerNames(protoFile *schema.ProtoFile) error {
	pkg := protoFile.Package
	for _, msg := range protoFile.Messages {
		if err := r.registerMessage(getFullName(pkg, msg.Name), msg); err != nil {
			return err
		}
	}
	for _, enum := range protoFile.Enums {
		if err := r.registerEnum(getFullName(pkg, enum.Name), enum); err != nil {
			return err
		}
	}
	return nil
}

// registerMessage registers msg and, recursively, its nested types.
func (r *Registry) registerMessage(fullName string, msg *schema.Message) error {
	if _, dup := r.messages[fullName]; dup {
		return errors.Errorf("duplicate message %s", fullName)
	}
	r.messages[fullName] = msg
	for _, nested := range msg.NestedTypes {
		if err := r.registerMessage(fullName+"."+nested.Name, nested); err != nil {
			return err
		}
	}
	for _, nested := range msg.NestedEnums {
		if err := r.registerEnum(fullName+"."+nested.Name, nested); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) registerEnum(fullName string, enum *schema.Enum) error {
	if _, dup := r.enums[fullName]; dup {
		return errors.Errorf("duplicate enum %s", fullName)
	}
	r.enums[fullName] = enum
	return nil
}

// resolveMessage rewrites the message and enum references of msg's fields
// to fully qualified names, deciding between message and enum on the way.
func (r *Registry) resolveMessage(fullName string, msg *schema.Message, known map[string]struct{}) error {
	for _, field := range msg.Fields {
		var ref string
		switch field.Type.Kind {
		case schema.KindMessage:
			ref = field.Type.MessageType
		case schema.KindEnum:
			ref = field.Type.EnumType
		default:
			continue
		}

		resolved, err := getReferencedType(ref, fullName, known)
		if err != nil {
			return errors.Wrapf(err, "%s.%s", fullName, field.Name)
		}
		if _, isEnum := r.enums[resolved]; isEnum {
			field.Type = schema.FieldType{Kind: schema.KindEnum, EnumType: resolved}
		} else {
			field.Type = schema.FieldType{Kind: schema.KindMessage, MessageType: resolved}
		}
	}
	for _, nested := range msg.NestedTypes {
		if err := r.resolveMessage(fullName+"."+nested.Name, nested, known); err != nil {
			return err
		}
	}
	return nil
}

// GetMessage retrieves a message definition by fully qualified name, or by
// a unique name suffix.
func (r *Registry) GetMessage(name string) (*schema.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fullName, err := lookup(r.messages, name)
	if err != nil {
		return nil, errors.Wrap(err, "message not found")
	}
	return r.messages[fullName], nil
}

// GetEnum retrieves an enum definition by fully qualified name, or by a
// unique name suffix.
func (r *Registry) GetEnum(name string) (*schema.Enum, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fullName, err := lookup(r.enums, name)
	if err != nil {
		return nil, errors.Wrap(err, "enum not found")
	}
	return r.enums[fullName], nil
}

func lookup[V any](defs map[string]V, name string) (string, error) {
	name = strings.TrimPrefix(name, ".")
	if _, exists := defs[name]; exists {
		return name, nil
	}

	// Try without package prefix
	var match string
	for _, fullName := range sortedKeys(defs) {
		if strings.HasSuffix(fullName, "."+name) {
			if match != "" {
				return "", errors.Errorf("%s is ambiguous: %s, %s", name, match, fullName)
			}
			match = fullName
		}
	}
	if match == "" {
		return "", errors.New(name)
	}
	return match, nil
}

// Codec returns the synthesized codec for a message, compiling it on first
// use.
func (r *Registry) Codec(name string) (*wire.MessageCodec, error) {
	r.mu.RLock()
	c, ok := r.codecs[name]
	cfg := r.cfg
	r.mu.RUnlock()
	if ok {
		return c, nil
	}

	msg, err := r.GetMessage(name)
	if err != nil {
		return nil, err
	}
	c, err = wire.Synthesize(msg, r, cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to synthesize codec for %s", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.codecs == nil {
		r.codecs = make(map[string]*wire.MessageCodec)
	}
	if existing, ok := r.codecs[name]; ok {
		return existing, nil
	}
	r.codecs[name] = c
	return c, nil
}

// Repo returns every file loaded so far.
func (r *Registry) Repo() *schema.ProtoRepo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.repo
}

// ListMessages returns all registered message names, sorted.
func (r *Registry) ListMessages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.messages)
}

// ListEnums returns all registered enum names, sorted.
func (r *Registry) ListEnums() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.enums)
}
