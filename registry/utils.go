package registry

import (
	"bytes"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/pkg/errors"
	protoparser "github.com/yoheimuta/go-protoparser/v4"
	protoparserparser "github.com/yoheimuta/go-protoparser/v4/parser"
)

// protoFileEntity records the resolved imports of one parsed file.
type protoFileEntity struct {
	imports []string
}

// getAllProtoInfo uses DFS to fetch all the files reachable from protoFile
// through imports, parses each once and returns them dependencies-last.
func (r *Registry) getAllProtoInfo(protoFile string) ([]string, error) {
	visited := make(map[string]struct{}) // to make sure we don't end up in a loop
	result := make([]string, 0)

	var dfs func(protoFile string) error
	dfs = func(protoFile string) error {
		if _, ok := visited[protoFile]; ok {
			return nil
		}
		visited[protoFile] = struct{}{}
		result = append(result, protoFile)
		protoFileEntity := &protoFileEntity{
			imports: make([]string, 0),
		}

		protoBytes, err := os.ReadFile(protoFile)
		if err != nil {
			return errors.Wrap(err, "failed to read file")
		}
		parsedBody, err := protoparser.Parse(bytes.NewBuffer(protoBytes), protoparser.WithFilename(protoFile))
		if err != nil {
			return errors.Wrapf(err, "failed to parse %s", protoFile)
		}
		r.parsedProtoBody[protoFile] = parsedBody
		for _, body := range parsedBody.ProtoBody {
			switch b := body.(type) {
			case *protoparserparser.Import: // resolve relation for each imports
				importPath := strings.Trim(b.Location, `"`)
				// well-known types are not bundled; references to them fail at resolution
				if strings.HasPrefix(importPath, "google/protobuf/") {
					continue
				}
				fullImportPath, err := r.findIfProtoExists(importPath)
				if err != nil {
					return err
				}
				protoFileEntity.imports = append(protoFileEntity.imports, fullImportPath)
				if err = dfs(fullImportPath); err != nil {
					return err
				}
			}
		}
		r.protoEntities[protoFile] = protoFileEntity
		return nil
	}
	// run dfs on the input proto path
	protoPath, err := r.findIfProtoExists(protoFile)
	if err != nil {
		return nil, err
	}
	if err := dfs(protoPath); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Registry) findIfProtoExists(protoPath string) (string, error) {
	var (
		fullPath      string
		fullProtoPath string
		err           error
	)
	protoPath = strings.Trim(protoPath, `"`)
	dirs := r.ProtoDirectories
	if len(dirs) == 0 || path.IsAbs(protoPath) {
		dirs = []string{""}
	}
	for _, dir := range dirs {
		fullPath = path.Join(dir, protoPath)
		// Check if the path exists
		_, err = os.Stat(fullPath)
		if err == nil {
			fullProtoPath = fullPath
			break
		}
	}
	if fullProtoPath == "" {
		return "", errors.Wrapf(err, "path does not exist: %s", fullPath)
	}
	if !strings.HasSuffix(fullProtoPath, ".proto") {
		return "", errors.Errorf("is not a .proto file: %s", fullPath)
	}
	return fullProtoPath, nil
}

/*
This helper function will return the entity for any referenced type ,
Be it top/file,nested or imported entities.If not found will return an error
Ref - https://github.com/protocolbuffers/protobuf/blob/b7a5772caf08d62a20fd1bca258f501fa4db022c/src/google/protobuf/descriptor.proto#L186-L191
*/
func getReferencedType(typeName, prefix string, allResolvedEntities map[string]struct{}) (string, error) {
	// check if fully qualifed prefixed by dot
	if strings.HasPrefix(typeName, ".") {
		return getFullyQualifiedType(typeName, allResolvedEntities)
	}
	// try resolving from inner entities up till the parent package
	if result, ok := splitNameAndCheck(typeName, prefix, allResolvedEntities); ok {
		return result, nil
	}
	//  check if the entity is referenced to other packages via packageName
	if _, ok := allResolvedEntities[typeName]; ok {
		return typeName, nil
	}
	return "", errors.Errorf("unable to resolve type name: %s", typeName)
}

// splitNameAndCheck splits the prefixName and tries to append the typeName and find the entity for resolution
// it also tries the find the entities defined using relative path
func splitNameAndCheck(typeName, prefix string, allResolvedEntities map[string]struct{}) (string, bool) {
	var (
		prefixSplit []string
		entityName  string
	)
	prefixSplit = strings.Split(prefix, ".")

	for len(prefixSplit) > 0 && prefixSplit[0] != "" {
		result := strings.Join(prefixSplit, ".")
		entityName = result + "." + typeName
		if _, ok := allResolvedEntities[entityName]; ok {
			return entityName, true
		}
		// Omit the last element in each iteration as we go level above to outer entity
		prefixSplit = prefixSplit[:len(prefixSplit)-1]
	}
	return "", false
}

func getFullyQualifiedType(typeName string, allResolvedEntities map[string]struct{}) (string, error) {
	typeName = strings.TrimPrefix(typeName, ".")
	if _, ok := allResolvedEntities[typeName]; ok {
		return typeName, nil
	}
	return "", errors.Errorf("unable to resolve fully qualified type name: .%s", typeName)
}

func getFullName(pkg, name string) string {
	if pkg == "" {
		return name
	}
	return pkg + "." + name
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
