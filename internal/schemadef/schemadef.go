// Package schemadef normalizes predefined schema definitions.
//
// Definitions come in three shapes, all reduced to an ordered []Def:
//
//   - a list of names: ["todo", "user"]
//   - a list of definitions: [{name: "todo", default: {...}}]
//   - a map of alias to a name, true (alias is the name) or a definition
//
// Names and aliases are NFC-normalized so that visually identical names
// address the same schema.
package schemadef

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"cuelang.org/go/cue/token"
	"golang.org/x/text/unicode/norm"
)

// ErrInvalid matches every definition error via errors.Is.
var ErrInvalid = errors.New("invalid schema definition")

// Def describes one predefined schema.
type Def struct {
	// Alias is the name the schema is reachable under. Defaults to Name.
	Alias string `yaml:"alias,omitempty" json:"alias,omitempty"`

	// Name is the schema name used for storage keys.
	Name string `yaml:"name" json:"name"`

	// Default props are used when an entity is created without props.
	Default map[string]any `yaml:"default,omitempty" json:"default,omitempty"`
}

// Error reports a malformed definition.
type Error struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is reports whether target is ErrInvalid.
func (e *Error) Is(target error) bool { return target == ErrInvalid }

// CanonicalName trims and NFC-normalizes a schema name or alias.
func CanonicalName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// Normalize converts any supported shape into definitions. A nil input
// yields no definitions.
func Normalize(v any) ([]Def, error) {
	var defs []Def
	var err error

	switch x := v.(type) {
	case nil:
		return nil, nil
	case []Def:
		defs = append(defs, x...)
	case []string:
		for _, name := range x {
			defs = append(defs, Def{Name: name})
		}
	case []any:
		defs, err = fromList(x)
	case map[string]Def:
		for _, alias := range sortedKeys(x) {
			def := x[alias]
			def.Alias = alias
			defs = append(defs, def)
		}
	case map[string]string:
		for _, alias := range sortedKeys(x) {
			defs = append(defs, Def{Alias: alias, Name: x[alias]})
		}
	case map[string]any:
		defs, err = fromMap(x)
	default:
		return nil, &Error{Field: "schemas", Message: fmt.Sprintf("unsupported definition shape %T", v)}
	}
	if err != nil {
		return nil, err
	}
	return validate(defs)
}

func fromList(items []any) ([]Def, error) {
	defs := make([]Def, 0, len(items))
	for i, item := range items {
		field := fmt.Sprintf("schemas[%d]", i)
		switch x := item.(type) {
		case string:
			defs = append(defs, Def{Name: x})
		case Def:
			defs = append(defs, x)
		case map[string]any:
			def, err := fromObject(field, x)
			if err != nil {
				return nil, err
			}
			defs = append(defs, def)
		default:
			return nil, &Error{Field: field, Message: fmt.Sprintf("expected a name or an object, got %T", item)}
		}
	}
	return defs, nil
}

func fromMap(m map[string]any) ([]Def, error) {
	defs := make([]Def, 0, len(m))
	for _, alias := range sortedKeys(m) {
		field := "schemas." + alias
		switch x := m[alias].(type) {
		case string:
			defs = append(defs, Def{Alias: alias, Name: x})
		case bool:
			if !x {
				return nil, &Error{Field: field, Message: "false is not a definition"}
			}
			defs = append(defs, Def{Alias: alias, Name: alias})
		case Def:
			x.Alias = alias
			if x.Name == "" {
				x.Name = alias
			}
			defs = append(defs, x)
		case map[string]any:
			def, err := fromObject(field, x)
			if err != nil {
				return nil, err
			}
			def.Alias = alias
			if def.Name == "" {
				def.Name = alias
			}
			defs = append(defs, def)
		default:
			return nil, &Error{Field: field, Message: fmt.Sprintf("expected a name, true or an object, got %T", x)}
		}
	}
	return defs, nil
}

func fromObject(field string, obj map[string]any) (Def, error) {
	var def Def
	for k, v := range obj {
		switch k {
		case "name":
			name, ok := v.(string)
			if !ok {
				return Def{}, &Error{Field: field + ".name", Message: "must be a string"}
			}
			def.Name = name
		case "alias":
			alias, ok := v.(string)
			if !ok {
				return Def{}, &Error{Field: field + ".alias", Message: "must be a string"}
			}
			def.Alias = alias
		case "default":
			props, ok := v.(map[string]any)
			if !ok {
				return Def{}, &Error{Field: field + ".default", Message: "must be an object"}
			}
			def.Default = props
		default:
			return Def{}, &Error{Field: field + "." + k, Message: "unknown field"}
		}
	}
	return def, nil
}

func validate(defs []Def) ([]Def, error) {
	aliases := make(map[string]bool, len(defs))
	for i := range defs {
		def := &defs[i]
		def.Name = CanonicalName(def.Name)
		if def.Name == "" {
			return nil, &Error{Field: fmt.Sprintf("schemas[%d].name", i), Message: "name is required"}
		}
		if def.Alias == "" {
			def.Alias = def.Name
		}
		def.Alias = CanonicalName(def.Alias)
		if aliases[def.Alias] {
			return nil, &Error{Field: "schemas." + def.Alias, Message: "duplicate alias"}
		}
		aliases[def.Alias] = true
	}
	return defs, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
