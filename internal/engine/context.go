package engine

import (
	"log/slog"
	"maps"
	"slices"

	"github.com/roach88/stash/internal/effect"
	"github.com/roach88/stash/internal/schemadef"
)

// Context is the environment passed to every procedure. It is only valid on
// the database loop.
type Context struct {
	db *Database
}

// Schema returns the schema called name, creating it on first reference.
func (c *Context) Schema(name string) *Schema {
	return c.db.schema(schemadef.CanonicalName(name))
}

// Named returns the predefined schema registered under alias, or nil if no
// definition uses that alias.
func (c *Context) Named(alias string) *Schema {
	name, ok := c.db.aliases[schemadef.CanonicalName(alias)]
	if !ok {
		return nil
	}
	return c.db.schema(name)
}

// Schemas returns the names of every known schema in creation order.
func (c *Context) Schemas() []string { return slices.Clone(c.db.order) }

// Default returns the schema holding the default entity.
func (c *Context) Default() *Schema {
	return c.db.schema(c.db.defaultSchema)
}

// Logger returns the database logger.
func (c *Context) Logger() *slog.Logger { return c.db.log }

// Get returns a command resolving to a field of the default entity. The
// default entity is created from the initial props on first access.
func (c *Context) Get(prop string) *Cmd {
	return effect.NewCommand(Routine(func(c *Context, y *Yielder, _ any) (any, error) {
		e, err := c.defaultEntity(y, nil)
		if err != nil {
			return nil, err
		}
		return e.Get(prop), nil
	}), nil)
}

// Set returns a command setting a field of the default entity. If value is
// a func(prev any) any it is called with the current field value. The
// result is the stored value. A default entity created by Set holds only
// prop; the initial props seed the func's prev value.
func (c *Context) Set(prop string, value any) *Cmd {
	return effect.NewCommand(Routine(func(c *Context, y *Yielder, _ any) (any, error) {
		var next any
		created := false
		e, err := c.defaultEntity(y, func() map[string]any {
			next = resolveValue(value, c.db.initial[prop])
			created = true
			return map[string]any{prop: next}
		})
		if err != nil {
			return nil, err
		}
		if created {
			return next, nil
		}

		next = resolveValue(value, e.Get(prop))
		if _, err := y.Yield(c.Default().Update(e, map[string]any{prop: next})); err != nil {
			return nil, err
		}
		return next, nil
	}), nil)
}

// defaultEntity loads the default entity, creating it when missing. A newly
// created entity gets seed's props, or a copy of the initial props when seed
// is nil.
func (c *Context) defaultEntity(y *Yielder, seed func() map[string]any) (*Entity, error) {
	s := c.Default()
	key := s.name + "/data"

	if len(s.keys) > 0 {
		v, err := y.Yield(s.Get(key))
		if err != nil {
			return nil, err
		}
		if e := AsEntity(v); e != nil {
			return e, nil
		}
	}

	var props map[string]any
	if seed != nil {
		props = seed()
	} else {
		props = maps.Clone(c.db.initial)
	}
	if props == nil {
		props = map[string]any{}
	}
	v, err := y.Yield(s.CreateWithKey(key, props))
	if err != nil {
		return nil, err
	}
	return AsEntity(v), nil
}

func resolveValue(value, prev any) any {
	if fn, ok := value.(func(prev any) any); ok {
		return fn(prev)
	}
	return value
}

// Exec returns a command running proc with payload as a nested procedure.
func (c *Context) Exec(proc Proc, payload any) *Cmd {
	return effect.NewCommand(proc, payload)
}

// Fork returns a command running proc detached: the forking procedure
// resumes immediately with nil and never observes the result.
func (c *Context) Fork(proc Proc, payload any) *Cmd {
	return effect.NewCommand(proc, payload).WithFork()
}

// Clear returns a command clearing every schema, like Database.Clear.
func (c *Context) Clear() *Cmd {
	return effect.Func(func(c *Context) (any, error) {
		c.db.clearAll()
		return nil, nil
	})
}
