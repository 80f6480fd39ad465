package cli

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/stash/internal/engine"
	"github.com/roach88/stash/internal/storage"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Store    string // "memory" | "sqlite" | "files" | "minio"
	Path     string
	Name     string
	Schemas  string
	Debounce time.Duration
	KeyKind  string // "base36" | "uuid7"
	Metrics  bool
	Minio    MinioConfig

	// Keys overrides the entity key generator (for testing).
	Keys engine.KeyGenerator

	// Storage overrides the store selected by --store (for testing).
	Storage storage.Adapter

	envErr error
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// ValidStores defines the allowed storage backends.
var ValidStores = []string{"memory", "sqlite", "files", "minio"}

// ValidKeyKinds defines the allowed entity key generators.
var ValidKeyKinds = []string{"base36", "uuid7"}

// NewRootCommand creates the root command for the stash CLI with flag
// defaults taken from the environment.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	defaults, err := LoadEnv()
	opts.envErr = err
	opts.Minio = defaults.Minio

	cmd := &cobra.Command{
		Use:   "stash",
		Short: "stash - a local object store",
		Long: `Read and write schema entities in a local object store.

Every command opens the store, runs one operation, persists pending writes
and closes the store again. Flag defaults come from STASH_* environment
variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.envErr != nil {
				return WrapExitError(ExitCommandError, "invalid environment", opts.envErr)
			}
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if !slices.Contains(ValidStores, opts.Store) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid store %q: must be one of %v", opts.Store, ValidStores))
			}
			if !slices.Contains(ValidKeyKinds, opts.KeyKind) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid key kind %q: must be one of %v", opts.KeyKind, ValidKeyKinds))
			}
			return nil
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.Store, "store", defaults.Store, "storage backend (memory|sqlite|files|minio)")
	flags.StringVar(&opts.Path, "path", defaults.Path, "database file (sqlite) or directory (files)")
	flags.StringVar(&opts.Name, "name", defaults.Name, "database name, prefixes every storage key")
	flags.StringVar(&opts.Schemas, "schemas", defaults.Schemas, "schema definition file (.yaml, .json or .cue)")
	flags.DurationVar(&opts.Debounce, "debounce", defaults.Debounce, "write-back debounce window")
	flags.StringVar(&opts.KeyKind, "keys", defaults.Keys, "generated entity keys (base36|uuid7)")
	flags.BoolVar(&opts.Metrics, "metrics", false, "print store metrics to stderr after the command")

	// Add subcommands
	cmd.AddCommand(NewPutCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewCountCommand(opts))
	cmd.AddCommand(NewRemoveCommand(opts))
	cmd.AddCommand(NewClearCommand(opts))
	cmd.AddCommand(NewSchemasCommand(opts))

	return cmd
}

// Run executes the CLI with args and returns the process exit code.
func Run(args []string, stdout, stderr io.Writer) int {
	opts := &RootOptions{}
	return execute(newRootCommand(opts), opts, args, stdout, stderr)
}

func execute(cmd *cobra.Command, opts *RootOptions, args []string, stdout, stderr io.Writer) int {
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if err == nil {
		return ExitSuccess
	}

	format := opts.Format
	if !isValidFormat(format) {
		format = "text"
	}
	out := &OutputFormatter{Format: format, Writer: stdout, ErrWriter: stderr, Verbose: opts.Verbose}
	_ = out.Error(ErrorCode(err), err.Error(), nil)
	return GetExitCode(err)
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
