package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/stash/internal/engine"
	"github.com/roach88/stash/internal/schemadef"
	"github.com/roach88/stash/internal/storage"
)

// newLogger returns a text logger on w. Verbose enables debug output;
// otherwise only warnings and errors are shown.
func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openStorage returns the adapter selected by --store.
func openStorage(ctx context.Context, opts *RootOptions) (storage.Adapter, error) {
	if opts.Storage != nil {
		return opts.Storage, nil
	}

	switch opts.Store {
	case "memory":
		return storage.NewMemory(), nil
	case "sqlite":
		if opts.Path == "" {
			return nil, NewExitError(ExitCommandError, "--path is required for the sqlite store")
		}
		return storage.OpenSQLite(opts.Path)
	case "files":
		if opts.Path == "" {
			return nil, NewExitError(ExitCommandError, "--path is required for the files store")
		}
		return storage.OpenFiles(opts.Path)
	case "minio":
		return storage.OpenObjects(ctx, storage.ObjectsConfig{
			Endpoint:  opts.Minio.Endpoint,
			AccessKey: opts.Minio.AccessKey,
			SecretKey: opts.Minio.SecretKey,
			Bucket:    opts.Minio.Bucket,
			UseSSL:    opts.Minio.UseSSL,
		})
	default:
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("unknown store %q", opts.Store))
	}
}

// openDatabase opens the database configured by the global flags.
func openDatabase(ctx context.Context, opts *RootOptions, log *slog.Logger, reg prometheus.Registerer) (*engine.Database, error) {
	dbOpts := []engine.Option{
		engine.WithName(opts.Name),
		engine.WithDebounce(opts.Debounce),
		engine.WithLogger(log),
		engine.WithKeyGenerator(keyGenerator(opts)),
	}
	if reg != nil {
		dbOpts = append(dbOpts, engine.WithMetrics(reg))
	}
	if opts.Schemas != "" {
		defs, err := schemadef.LoadFile(opts.Schemas)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load schema definitions", err)
		}
		dbOpts = append(dbOpts, engine.WithSchemas(defs))
	}
	st, err := openStorage(ctx, opts)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}
	dbOpts = append(dbOpts, engine.WithStorage(st))

	db, err := engine.Open(dbOpts...)
	if err != nil {
		if cerr := storage.Close(st); cerr != nil {
			log.Error("error closing store", "error", cerr)
		}
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return db, nil
}

// keyGenerator returns the generator selected by --keys.
func keyGenerator(opts *RootOptions) engine.KeyGenerator {
	if opts.Keys != nil {
		return opts.Keys
	}
	if opts.KeyKind == "uuid7" {
		return engine.UUIDv7Generator{}
	}
	return engine.Base36Generator{}
}

// registerer avoids handing a typed nil registry to the engine.
func registerer(reg *prometheus.Registry) prometheus.Registerer {
	if reg == nil {
		return nil
	}
	return reg
}

// execProc opens the database, runs proc, persists pending writes and closes
// the database.
func execProc(cmd *cobra.Command, opts *RootOptions, proc engine.Proc) (any, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	log := newLogger(opts, cmd.ErrOrStderr())
	output(cmd, opts).VerboseLog("opening %s store (name %q)", opts.Store, opts.Name)

	var reg *prometheus.Registry
	if opts.Metrics {
		reg = prometheus.NewRegistry()
	}

	db, err := openDatabase(ctx, opts, log, registerer(reg))
	if err != nil {
		return nil, err
	}

	result, err := db.Exec(ctx, proc, nil)
	if cerr := db.Close(); cerr != nil && err == nil {
		err = WrapExitError(ExitFailure, "failed to persist writes", cerr)
	}
	if reg != nil {
		if merr := writeMetrics(cmd.ErrOrStderr(), reg); merr != nil {
			log.Error("failed to write metrics", "error", merr)
		}
	}

	var exitErr *ExitError
	switch {
	case err == nil:
		return result, nil
	case errors.As(err, &exitErr):
		return nil, err
	case engine.IsUsageError(err):
		return nil, WrapExitError(ExitCommandError, "invalid operation", err)
	default:
		return nil, WrapExitError(ExitFailure, "operation failed", err)
	}
}

// output returns the formatter for cmd.
func output(cmd *cobra.Command, opts *RootOptions) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// resolveSchema returns the schema defined under name, or the schema called
// name when no definition uses it as an alias.
func resolveSchema(c *engine.Context, name string) *engine.Schema {
	if s := c.Named(name); s != nil {
		return s
	}
	return c.Schema(name)
}
