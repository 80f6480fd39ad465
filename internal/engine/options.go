package engine

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/stash/internal/storage"
)

// DefaultSchemaName is the schema holding the default entity.
const DefaultSchemaName = "__def"

// Option configures a Database.
type Option func(*config)

type config struct {
	name          string
	storage       storage.Adapter
	debounce      time.Duration
	schemas       any
	initial       map[string]any
	init          Proc
	defaultSchema string
	keys          KeyGenerator
	logger        *slog.Logger
	registerer    prometheus.Registerer
}

func defaultConfig() config {
	return config{
		defaultSchema: DefaultSchemaName,
		keys:          Base36Generator{},
	}
}

// WithName namespaces every storage key with "<name>/". Databases with
// different names can share one storage adapter.
func WithName(name string) Option {
	return func(c *config) { c.name = name }
}

// WithStorage sets the storage adapter. Default: a fresh storage.Memory.
func WithStorage(a storage.Adapter) Option {
	return func(c *config) { c.storage = a }
}

// WithDebounce delays automatic flushes until no write arrived for d.
//
// Default: 0 (flush as soon as the current continuation unwinds).
func WithDebounce(d time.Duration) Option {
	return func(c *config) { c.debounce = d }
}

// WithSchemas predefines schemas. defs is any shape accepted by
// schemadef.Normalize: []string, []schemadef.Def, or a map of alias to a
// name, true or a definition. Invalid shapes fail Open.
func WithSchemas(defs any) Option {
	return func(c *config) { c.schemas = defs }
}

// WithInitial seeds the default entity on first access.
func WithInitial(props map[string]any) Option {
	return func(c *config) { c.initial = props }
}

// WithInit runs proc once after Open. Failures are logged.
func WithInit(proc Proc) Option {
	return func(c *config) { c.init = proc }
}

// WithDefaultSchema renames the schema holding the default entity.
func WithDefaultSchema(name string) Option {
	return func(c *config) { c.defaultSchema = name }
}

// WithKeyGenerator sets the generator used by Create.
func WithKeyGenerator(g KeyGenerator) Option {
	return func(c *config) { c.keys = g }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithMetrics registers the stash collectors with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *config) { c.registerer = reg }
}
