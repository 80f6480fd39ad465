package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/stash/internal/effect"
	"github.com/roach88/stash/internal/event"
	"github.com/roach88/stash/internal/metrics"
	"github.com/roach88/stash/internal/schemadef"
	"github.com/roach88/stash/internal/storage"
	"github.com/roach88/stash/internal/writeback"
)

const schemasKey = "schemas"

func keysStorageKey(schema string) string { return schema + "/keys" }

func entityStorageKey(schema, key string) string { return schema + "#" + key }

// Database is a local object store.
//
// Thread-safety model:
//   - Exec, ExecAsync, Subscribe, Clear, Flush, Close: safe from any
//     goroutine other than the loop
//   - Context, Schema and Entity: only from procedures and listeners, which
//     run on the loop
type Database struct {
	name    string
	log     *slog.Logger
	backend storage.Adapter // closed by Close
	storage storage.Adapter // backend behind the name prefix

	loop    *effect.Loop
	interp  *effect.Interpreter[*Context]
	writes  *writeback.Queue
	ctx     context.Context // lifetime context for shared reads and flushes
	cancel  context.CancelFunc
	stopped chan struct{}
	closed  atomic.Bool

	keys          KeyGenerator
	defs          map[string]schemadef.Def // by schema name
	aliases       map[string]string        // alias -> schema name
	defaultSchema string
	initial       map[string]any

	env     *Context
	schemas map[string]*Schema
	order   []string // schema names, creation order
	events  event.Source[Event]
	clock   clock
	ready   *effect.Future

	mu       sync.Mutex
	inflight map[uint64]effect.Done // Exec calls not yet settled
	nextID   uint64
}

// Open creates a database and starts its loop. Known schemas and keys are
// hydrated from storage in the background; Exec waits for hydration.
//
// Returns a configuration error if the schema definitions are invalid.
func Open(opts ...Option) (*Database, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	defs, err := schemadef.Normalize(cfg.schemas)
	if err != nil {
		return nil, &Error{Code: ErrCodeInvalidSchemaDef, Message: "invalid schema definitions", Err: err}
	}
	if cfg.registerer != nil {
		if err := metrics.Register(cfg.registerer); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.storage == nil {
		cfg.storage = storage.NewMemory()
	}

	ctx, cancel := context.WithCancel(context.Background())
	db := &Database{
		name:          cfg.name,
		log:           cfg.logger.With("db", cfg.name),
		backend:       cfg.storage,
		storage:       storage.WithPrefix(cfg.storage, cfg.name),
		ctx:           ctx,
		cancel:        cancel,
		stopped:       make(chan struct{}),
		keys:          cfg.keys,
		defs:          make(map[string]schemadef.Def, len(defs)),
		aliases:       make(map[string]string, len(defs)),
		defaultSchema: schemadef.CanonicalName(cfg.defaultSchema),
		initial:       cfg.initial,
		schemas:       make(map[string]*Schema),
		inflight:      make(map[uint64]effect.Done),
	}
	for _, def := range defs {
		db.defs[def.Name] = def
		db.aliases[def.Alias] = def.Name
	}

	db.env = &Context{db: db}
	db.loop = effect.NewLoop(db.log)
	db.interp = effect.NewInterpreter(db.env, db.loop, db.log)
	db.writes = writeback.New(writeback.Config{
		Storage:  db.storage,
		Debounce: cfg.debounce,
		Post:     db.loop.Post,
		Busy:     db.interp.Busy,
		Context:  ctx,
		Logger:   db.log,
	})
	db.interp.OnIdle(func() { db.writes.Schedule(false) })

	go func() {
		defer close(db.stopped)
		if err := db.loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			db.log.Error("database loop stopped", "error", err)
		}
	}()

	ready, settle := effect.NewFuture()
	db.ready = ready
	db.loop.Post(func() {
		db.interp.Drive(ctx, hydrate, nil, func(v any, err error) {
			if err != nil {
				db.log.Error("failed to load schemas", "error", err)
			}
			settle(v, err)
		})
	})

	if cfg.init != nil {
		db.ExecAsync(ctx, cfg.init, nil).Await(func(_ any, err error) {
			if err != nil {
				db.log.Error("init procedure failed", "error", err)
			}
		})
	}

	db.log.Info("database opened", "debounce", cfg.debounce, "schemas", len(defs))
	return db, nil
}

// Exec runs proc with payload and waits for its result.
//
// ctx bounds the run: it is checked before every step. Exec must not be
// called from a procedure or listener; use Context.Exec there.
func (db *Database) Exec(ctx context.Context, proc Proc, payload any) (any, error) {
	return db.ExecAsync(ctx, proc, payload).Wait(ctx)
}

// ExecAsync runs proc with payload and returns its future.
func (db *Database) ExecAsync(ctx context.Context, proc Proc, payload any) *effect.Future {
	f, settle := effect.NewFuture()
	if db.closed.Load() {
		settle(nil, newClosedError())
		return f
	}

	db.mu.Lock()
	id := db.nextID
	db.nextID++
	db.inflight[id] = settle
	db.mu.Unlock()

	done := func(v any, err error) {
		db.mu.Lock()
		delete(db.inflight, id)
		db.mu.Unlock()
		settle(v, classify(err))
	}

	cmd := effect.NewCommand(proc, payload)
	if !db.loop.Post(func() { db.run(ctx, cmd, done) }) {
		done(nil, newClosedError())
	}
	return f
}

// run starts cmd on the loop once the schema registry is loaded.
func (db *Database) run(ctx context.Context, cmd *Cmd, done effect.Done) {
	if db.ready.Settled() {
		var readyErr error
		db.ready.Await(func(_ any, err error) { readyErr = err })
		if readyErr != nil {
			done(nil, fmt.Errorf("load schemas: %w", readyErr))
			return
		}
		db.interp.Run(ctx, cmd, done)
		return
	}

	afterReady := Routine(func(_ *Context, y *Yielder, _ any) (any, error) {
		if _, err := y.Yield(db.ready); err != nil {
			return nil, fmt.Errorf("load schemas: %w", err)
		}
		return y.Yield(cmd)
	})
	db.interp.Drive(ctx, afterReady, nil, done)
}

// Subscribe registers fn for every entity event of every schema, plus the
// clear event of Database.Clear. fn runs on the loop.
func (db *Database) Subscribe(fn func(Event)) func() {
	return db.events.Add(fn)
}

// Clear empties every schema and emits a database clear event.
func (db *Database) Clear(ctx context.Context) error {
	_, err := db.Exec(ctx, func(c *Context, _ any) (any, error) {
		c.db.clearAll()
		return nil, nil
	}, nil)
	return err
}

// Flush persists pending writes now, cancelling a pending debounce.
func (db *Database) Flush(ctx context.Context) error {
	if db.closed.Load() {
		return newClosedError()
	}
	return db.call(ctx, func() error { return db.writes.Flush(ctx) })
}

// Close stops the loop after draining queued work, flushes pending writes
// and closes the storage adapter. Procedures still suspended fail with a
// CLOSED error.
func (db *Database) Close() error {
	if !db.closed.CompareAndSwap(false, true) {
		return nil
	}

	db.loop.Close()
	<-db.stopped

	// The loop has exited; this goroutine is now the only writer.
	db.writes.Stop()
	err := db.writes.Flush(db.ctx)
	db.cancel()

	db.mu.Lock()
	abandoned := db.inflight
	db.inflight = make(map[uint64]effect.Done)
	db.mu.Unlock()
	for _, done := range abandoned {
		done(nil, newClosedError())
	}

	if cerr := storage.Close(db.backend); cerr != nil && err == nil {
		err = cerr
	}
	db.log.Info("database closed", "abandoned", len(abandoned))
	return err
}

// Name returns the database name.
func (db *Database) Name() string { return db.name }

// Seq returns the sequence number of the last emitted event.
func (db *Database) Seq() int64 { return db.clock.current() }

// call runs fn on the loop and waits for it.
func (db *Database) call(ctx context.Context, fn func() error) error {
	f, settle := effect.NewFuture()
	if !db.loop.Post(func() { settle(nil, fn()) }) {
		return newClosedError()
	}
	_, err := f.Wait(ctx)
	return err
}

// schema returns the schema called name, creating and registering it on
// first reference.
func (db *Database) schema(name string) *Schema {
	if s, ok := db.schemas[name]; ok {
		return s
	}
	def, ok := db.defs[name]
	if !ok {
		def = schemadef.Def{Alias: name, Name: name}
	}
	s := newSchema(db, name, def)
	db.schemas[name] = s
	db.order = append(db.order, name)
	db.writeSchemas()
	return s
}

func (db *Database) clearAll() {
	for _, name := range db.order {
		db.schemas[name].clear()
	}
	db.events.Notify(Event{Seq: db.clock.next(), Type: EventClear})
}

func (db *Database) emit(s *Schema, ev Event) {
	ev.Seq = db.clock.next()
	s.events.Notify(ev)
	db.events.Notify(ev)
}

func (db *Database) writeSchemas() {
	db.writes.Enqueue(writeback.Set(schemasKey, writeback.Deferred(func() (string, error) {
		return encodeList(db.order)
	})))
}

func (db *Database) writeKeys(s *Schema) {
	db.writes.Enqueue(writeback.Set(keysStorageKey(s.name), writeback.Deferred(s.encodeKeys)))
}

func (db *Database) writeEntity(e *Entity) {
	db.writes.Enqueue(writeback.Set(entityStorageKey(e.schema, e.key), writeback.Deferred(e.encode)))
}

// read returns a bridge command resolving to the storage entry for key.
func (db *Database) read(key string) *Cmd {
	return effect.Bridge[*Context](func(done effect.Done) {
		go func() {
			value, found, err := storage.GetOne(db.ctx, db.storage, key)
			done(storage.Entry{Key: key, Value: value, Found: found}, err)
		}()
	})
}

// hydrate loads the schema registry and every schema's key list.
func hydrate(c *Context, _ any) (any, error) {
	db := c.db
	return effect.Routine(func(y *effect.Yielder) (any, error) {
		raw, err := y.Yield(db.read(schemasKey))
		if err != nil {
			return nil, fmt.Errorf("read schema registry: %w", err)
		}
		names, err := decodeList(raw)
		if err != nil {
			return nil, fmt.Errorf("decode schema registry: %w", err)
		}

		reads := make([]*Cmd, len(names))
		for i, name := range names {
			reads[i] = db.read(keysStorageKey(name))
		}
		lists, err := y.Yield(reads)
		if err != nil {
			return nil, fmt.Errorf("read schema keys: %w", err)
		}

		for i, name := range names {
			keys, err := decodeList(lists.([]any)[i])
			if err != nil {
				return nil, fmt.Errorf("decode %s keys: %w", name, err)
			}
			db.schema(name).adopt(keys)
		}
		db.log.Debug("schemas loaded", "count", len(names))
		return len(names), nil
	}), nil
}

func encodeList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeList decodes a stored JSON string list. A missing entry is empty.
func decodeList(v any) ([]string, error) {
	entry, ok := v.(storage.Entry)
	if !ok || !entry.Found || entry.Value == "" {
		return nil, nil
	}
	var items []string
	if err := json.Unmarshal([]byte(entry.Value), &items); err != nil {
		return nil, err
	}
	return items, nil
}
