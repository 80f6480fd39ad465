package schemadef

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

// file is the document layout shared by YAML and CUE definition files.
type file struct {
	Schemas any `yaml:"schemas" json:"schemas"`
}

// LoadFile reads definitions from a .yaml, .yml, .json or .cue file.
func LoadFile(path string) ([]Def, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema definitions: %w", err)
	}

	switch filepath.Ext(path) {
	case ".cue":
		return ParseCUE(path, data)
	case ".yaml", ".yml", ".json":
		return ParseYAML(data)
	default:
		return nil, &Error{Field: "file", Message: fmt.Sprintf("unsupported definition file %q", filepath.Base(path))}
	}
}

// ParseYAML parses a document with a top-level "schemas" field. JSON input
// is accepted as a subset of YAML.
func ParseYAML(data []byte) ([]Def, error) {
	var doc file
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if doc.Schemas == nil {
		return nil, &Error{Field: "schemas", Message: "schemas is required"}
	}
	return Normalize(doc.Schemas)
}

// ParseCUE evaluates a CUE document and normalizes its "schemas" field.
// The value must be concrete.
func ParseCUE(filename string, src []byte) ([]Def, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	schemasVal := v.LookupPath(cue.ParsePath("schemas"))
	if !schemasVal.Exists() {
		return nil, &Error{Field: "schemas", Message: "schemas is required", Pos: v.Pos()}
	}
	if err := schemasVal.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var raw any
	if err := schemasVal.Decode(&raw); err != nil {
		return nil, formatCUEError(err)
	}
	return Normalize(raw)
}

// formatCUEError keeps the position of the first CUE error.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := cueerrors.Positions(first)
	if len(positions) > 0 {
		return &Error{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return &Error{Field: "cue", Message: first.Error()}
}
