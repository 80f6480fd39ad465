package engine

import (
	"encoding/json"
	"maps"
	"reflect"
)

// Entity is one stored record. Its key and schema never change; its props
// change only through Schema.Update.
//
// Entities are owned by their schema's cache and must only be read from
// procedures or listeners, which run on the database loop.
type Entity struct {
	key    string
	schema string
	props  map[string]any
}

func newEntity(schema, key string, props map[string]any) *Entity {
	if props == nil {
		props = map[string]any{}
	}
	return &Entity{key: key, schema: schema, props: props}
}

// Key returns the entity key, unique within its schema.
func (e *Entity) Key() string { return e.key }

// Schema returns the owning schema name.
func (e *Entity) Schema() string { return e.schema }

// Get returns a field value, or nil if unset.
func (e *Entity) Get(field string) any { return e.props[field] }

// Lookup returns a field value and whether it is set.
func (e *Entity) Lookup(field string) (any, bool) {
	v, ok := e.props[field]
	return v, ok
}

// Props returns a shallow copy of the fields.
func (e *Entity) Props() map[string]any { return maps.Clone(e.props) }

// MarshalJSON encodes the entity as its key, so entities stored inside other
// entities' props persist as references.
func (e *Entity) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.key)
}

// merge applies props in place and reports whether any field changed. An
// unset field reads as nil, so setting it to nil is not a change.
func (e *Entity) merge(props map[string]any) bool {
	changed := false
	for field, v := range props {
		if !sameValue(e.props[field], v) {
			changed = true
			break
		}
	}
	if !changed {
		return false
	}
	maps.Copy(e.props, props)
	return true
}

func (e *Entity) encode() (string, error) {
	b, err := json.Marshal(e.props)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// sameValue reports identity: == for comparable values, the same backing
// reference for maps, slices, pointers, funcs and channels.
func sameValue(a, b any) (same bool) {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}

	switch ta.Kind() {
	case reflect.Slice:
		va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
		return va.Len() == vb.Len() && va.Pointer() == vb.Pointer()
	case reflect.Map, reflect.Pointer, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
	}
	if !ta.Comparable() {
		return false
	}

	// Comparable structs and arrays may still hold non-comparable values
	// behind interface fields.
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}
