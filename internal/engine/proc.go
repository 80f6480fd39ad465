package engine

import "github.com/roach88/stash/internal/effect"

// Cmd is a command interpreted against a database Context.
type Cmd = effect.Command[*Context]

// Proc is a procedure run by Database.Exec or Context.Exec.
type Proc = effect.Proc[*Context]

// Yielder suspends a Routine until a yielded effect resolves.
type Yielder = effect.Yielder

// Routine adapts straight-line code to a Proc. body yields commands, futures
// or command slices through y.
func Routine(body func(c *Context, y *Yielder, payload any) (any, error)) Proc {
	return func(c *Context, payload any) (any, error) {
		return effect.Routine(func(y *effect.Yielder) (any, error) {
			return body(c, y, payload)
		}), nil
	}
}

// AsEntity converts the result of Create, Update, Get or Find. It returns
// nil when there was no match.
func AsEntity(v any) *Entity {
	e, _ := v.(*Entity)
	return e
}

// Entities converts the result of All, Keys or Where.
func Entities(v any) []*Entity {
	switch x := v.(type) {
	case []*Entity:
		return x
	case []any:
		return toEntities(x)
	default:
		return nil
	}
}

func toEntities(values []any) []*Entity {
	out := make([]*Entity, 0, len(values))
	for _, v := range values {
		if e, ok := v.(*Entity); ok {
			out = append(out, e)
		}
	}
	return out
}
