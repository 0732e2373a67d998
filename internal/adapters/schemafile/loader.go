// Package schemafile reads column schemas from YAML files and ships the
// built-in schemas.
package schemafile

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/atvirokodosprendimai/tabcheck/internal/core/domain"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

// Decode reads one YAML schema document. Unknown keys are rejected. When the
// document has no name, fallbackName is used.
func Decode(r io.Reader, fallbackName string) (domain.Schema, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var schema domain.Schema
	if err := dec.Decode(&schema); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Schema{}, &domain.SchemaDefinitionError{Problems: []string{"schema document is empty"}}
		}
		return domain.Schema{}, &domain.SchemaDefinitionError{Problems: []string{err.Error()}}
	}
	if schema.Name == "" {
		schema.Name = fallbackName
	}
	if err := schema.Validate(); err != nil {
		return domain.Schema{}, err
	}
	return schema, nil
}

// LoadFile decodes the schema stored at path. The file name without its
// extension is the fallback schema name.
func LoadFile(file string) (domain.Schema, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return domain.Schema{}, fmt.Errorf("read schema file: %w", err)
	}
	schema, err := Decode(bytes.NewReader(data), baseName(file))
	if err != nil {
		return domain.Schema{}, fmt.Errorf("%s: %w", file, err)
	}
	return schema, nil
}

// Builtin returns the embedded schema called name.
func Builtin(name string) (domain.Schema, error) {
	data, err := builtinFS.ReadFile(path.Join("builtin", name+".yaml"))
	if errors.Is(err, fs.ErrNotExist) {
		return domain.Schema{}, fmt.Errorf("builtin schema %q: %w", name, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Schema{}, err
	}
	return Decode(bytes.NewReader(data), name)
}

// Builtins returns every embedded schema ordered by name.
func Builtins() ([]domain.Schema, error) {
	entries, err := builtinFS.ReadDir("builtin")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, baseName(e.Name()))
	}
	sort.Strings(names)

	out := make([]domain.Schema, 0, len(names))
	for _, name := range names {
		s, err := Builtin(name)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func baseName(file string) string {
	base := filepath.Base(file)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
