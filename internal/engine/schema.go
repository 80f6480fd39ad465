package engine

import (
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/stash/internal/effect"
	"github.com/roach88/stash/internal/event"
	"github.com/roach88/stash/internal/schemadef"
	"github.com/roach88/stash/internal/writeback"
)

// Schema is a named collection of entities.
//
// A Schema tracks every key ever persisted for it (known keys), whether or
// not the entity is loaded. Loaded keys are always a subset of known keys.
// Schemas live as long as their database; Clear empties but keeps them.
//
// Every method returning a *Cmd is inert until the command is yielded from a
// procedure.
type Schema struct {
	db   *Database
	name string
	def  schemadef.Def

	keys  []string // known keys, insertion order
	known map[string]struct{}

	entities []*Entity // loaded, insertion order
	byKey    map[string]*Entity

	loading map[string]*effect.Future // in-flight reads by key
	events  event.Source[Event]
}

func newSchema(db *Database, name string, def schemadef.Def) *Schema {
	return &Schema{
		db:      db,
		name:    name,
		def:     def,
		known:   make(map[string]struct{}),
		byKey:   make(map[string]*Entity),
		loading: make(map[string]*effect.Future),
	}
}

// Name returns the schema name.
func (s *Schema) Name() string { return s.name }

// Subscribe registers fn for this schema's events and returns the
// unsubscribe function. fn runs on the database loop.
func (s *Schema) Subscribe(fn func(Event)) func() {
	return s.events.Add(fn)
}

// Create returns a command creating an entity with a generated key. Nil props
// fall back to the schema definition's default props. The result is the
// new *Entity.
func (s *Schema) Create(props map[string]any) *Cmd {
	return s.create("", props)
}

// CreateWithKey is Create with a caller-supplied key. An existing entity with
// the same key is replaced.
func (s *Schema) CreateWithKey(key string, props map[string]any) *Cmd {
	return s.create(key, props)
}

func (s *Schema) create(key string, props map[string]any) *Cmd {
	return effect.NewCommand(func(_ *Context, _ any) (any, error) {
		if props == nil {
			props = s.def.Default
		}
		if key == "" {
			key = s.db.keys.Generate()
		}

		e := newEntity(s.name, key, maps.Clone(props))
		s.add(e)
		s.db.writeKeys(s)
		s.db.emit(s, Event{Type: EventCreate, Schema: s.name, Entity: e})
		s.db.writeEntity(e)
		return e, nil
	}, nil)
}

// Update returns a command merging props into e. If every field already
// holds the identical value, nothing is emitted or written. The result is e.
func (s *Schema) Update(e *Entity, props map[string]any) *Cmd {
	return effect.NewCommand(func(_ *Context, _ any) (any, error) {
		if e.schema != s.name {
			return nil, newSchemaMismatchError(s.name, e)
		}
		if !e.merge(props) {
			return e, nil
		}
		s.db.emit(s, Event{Type: EventUpdate, Schema: s.name, Entity: e})
		s.db.writeEntity(e)
		return e, nil
	}, nil)
}

// Remove returns a command removing entities given as keys or *Entity
// handles. The result is the []string of keys actually removed.
func (s *Schema) Remove(items ...any) *Cmd {
	return effect.NewCommand(func(_ *Context, _ any) (any, error) {
		keys := make([]string, 0, len(items))
		for _, item := range items {
			switch x := item.(type) {
			case string:
				keys = append(keys, x)
			case *Entity:
				if x.schema != s.name {
					return nil, newSchemaMismatchError(s.name, x)
				}
				keys = append(keys, x.key)
			default:
				return nil, &Error{
					Code:    ErrCodeUnsupported,
					Message: fmt.Sprintf("unsupported item type %T", item),
					Schema:  s.name,
				}
			}
		}
		return s.remove(keys), nil
	}, nil)
}

func (s *Schema) remove(keys []string) []string {
	removed := make([]string, 0, len(keys))
	for _, key := range keys {
		if _, ok := s.known[key]; !ok {
			continue
		}
		delete(s.known, key)
		delete(s.byKey, key)
		removed = append(removed, key)
	}
	if len(removed) == 0 {
		return removed
	}

	gone := func(key string) bool {
		_, ok := s.known[key]
		return !ok
	}
	s.keys = slices.DeleteFunc(s.keys, gone)
	s.entities = slices.DeleteFunc(s.entities, func(e *Entity) bool { return gone(e.key) })

	s.db.writeKeys(s)
	s.db.emit(s, Event{Type: EventRemove, Schema: s.name, Keys: removed})

	actions := make([]writeback.Action, len(removed))
	for i, key := range removed {
		actions[i] = writeback.Remove(entityStorageKey(s.name, key))
	}
	s.db.writes.Enqueue(actions...)
	return removed
}

// All returns a command listing entities: loaded ones first in cache order,
// then newly loaded ones in key order. A positive limit caps the result.
// The result is []*Entity.
func (s *Schema) All(limit int) *Cmd {
	return s.query(selector{}, limit)
}

// Keys is All restricted to keys.
func (s *Schema) Keys(keys []string, limit int) *Cmd {
	return s.query(selectKeys(keys), limit)
}

// Where is All restricted to entities matching pred.
func (s *Schema) Where(pred func(*Entity) bool, limit int) *Cmd {
	return s.query(selector{pred: pred}, limit)
}

// Get returns a command resolving to the *Entity with key, or nil.
func (s *Schema) Get(key string) *Cmd {
	return s.first(selectKeys([]string{key}))
}

// Find returns a command resolving to the first *Entity matching pred, or
// nil.
func (s *Schema) Find(pred func(*Entity) bool) *Cmd {
	return s.first(selector{pred: pred})
}

// Count returns a command resolving to the number of known keys. It never
// suspends.
func (s *Schema) Count() *Cmd {
	return effect.Func(func(*Context) (any, error) {
		return len(s.keys), nil
	})
}

// Exist returns a command resolving to whether key is known. It never
// suspends.
func (s *Schema) Exist(key string) *Cmd {
	return effect.Func(func(*Context) (any, error) {
		_, ok := s.known[key]
		return ok, nil
	})
}

// Clear returns a command removing every entity of the schema from memory
// and storage. Only schema subscribers are notified.
func (s *Schema) Clear() *Cmd {
	return effect.Func(func(*Context) (any, error) {
		s.clear()
		return nil, nil
	})
}

func (s *Schema) query(sel selector, limit int) *Cmd {
	return effect.NewCommand(func(_ *Context, _ any) (any, error) {
		return newScan(s, sel), nil
	}, nil).Collecting(limit).WithMap(func(v any) any {
		values, _ := v.([]any)
		return toEntities(values)
	})
}

func (s *Schema) first(sel selector) *Cmd {
	return effect.NewCommand(func(_ *Context, _ any) (any, error) {
		return newScan(s, sel), nil
	}, nil).Collecting(1).WithMap(func(v any) any {
		values, _ := v.([]any)
		if len(values) == 0 {
			return nil
		}
		return values[0]
	})
}

func (s *Schema) clear() {
	actions := make([]writeback.Action, 0, len(s.keys)+1)
	actions = append(actions, writeback.Remove(keysStorageKey(s.name)))
	for _, key := range s.keys {
		actions = append(actions, writeback.Remove(entityStorageKey(s.name, key)))
	}
	s.db.writes.Enqueue(actions...)

	s.keys = nil
	s.known = make(map[string]struct{})
	s.entities = nil
	s.byKey = make(map[string]*Entity)

	s.events.Notify(Event{Seq: s.db.clock.next(), Type: EventClear, Schema: s.name})
}

// add registers e as known and loaded.
func (s *Schema) add(e *Entity) {
	if _, ok := s.known[e.key]; !ok {
		s.known[e.key] = struct{}{}
		s.keys = append(s.keys, e.key)
	}
	if old, ok := s.byKey[e.key]; ok {
		s.entities[slices.Index(s.entities, old)] = e
	} else {
		s.entities = append(s.entities, e)
	}
	s.byKey[e.key] = e
}

// adopt merges hydrated keys into the known set.
func (s *Schema) adopt(keys []string) {
	for _, key := range keys {
		if _, ok := s.known[key]; ok {
			continue
		}
		s.known[key] = struct{}{}
		s.keys = append(s.keys, key)
	}
}

func (s *Schema) encodeKeys() (string, error) {
	if s.keys == nil {
		return encodeList([]string{})
	}
	return encodeList(s.keys)
}
