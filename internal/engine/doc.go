// Package engine implements the stash database: schema-scoped entity
// caches over a pluggable storage adapter, driven by the effect interpreter.
//
// ARCHITECTURE:
//
// Single-Writer Loop:
// Every Database owns one loop goroutine. Procedures, cache mutations,
// listener notifications and write-back flushes all run on it, so the
// caches need no locks. Exec may be called from any goroutine except the
// loop itself (procedures compose with Context.Exec instead).
//
// Procedures:
// A Proc receives the database Context and a payload. It yields Commands
// built by Schema and Context methods and receives their results:
//
//	db.Exec(ctx, engine.Routine(func(c *engine.Context, y *engine.Yielder, _ any) (any, error) {
//		todo, err := y.Yield(c.Schema("todo").Create(map[string]any{"title": "todo 1"}))
//		if err != nil {
//			return nil, err
//		}
//		return todo, nil
//	}), nil)
//
// Storage Layout:
// All keys live under the "<name>/" prefix:
//   - "schemas": JSON list of schema names
//   - "<schema>/keys": JSON list of the schema's entity keys
//   - "<schema>#<key>": JSON object of an entity's props
//
// Loading:
// Known keys are hydrated at Open; entities are read lazily when a query
// reaches them. Concurrent queries for the same unloaded keys share one
// storage read.
//
// Write-Back:
// Mutations enqueue writes that are flushed, coalesced by key, once the
// current continuation has fully unwound (or after the debounce window).
package engine
