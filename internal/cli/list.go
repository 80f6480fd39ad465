package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/stash/internal/engine"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Where []string
	Keys  []string
	Limit int
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list <schema>",
		Short: "Print the entities of a schema",
		Long: `Print the entities of a schema in key order.

Filters:
  --where field=value   keep entities whose field equals value (repeatable)
  --keys k1,k2          keep only the listed keys

Example:
  stash list todo --where done=false --limit 10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringArrayVar(&opts.Where, "where", nil, "field=value filter")
	cmd.Flags().StringSliceVar(&opts.Keys, "keys", nil, "comma-separated keys")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of entities (0 for all)")
	cmd.MarkFlagsMutuallyExclusive("where", "keys")

	return cmd
}

func runList(cmd *cobra.Command, opts *ListOptions, schema string) error {
	if opts.Limit < 0 {
		return NewExitError(ExitCommandError, "--limit must not be negative")
	}
	want, err := parseAssignments(opts.Where)
	if err != nil {
		return err
	}

	result, err := execProc(cmd, opts.RootOptions, engine.Routine(func(c *engine.Context, y *engine.Yielder, _ any) (any, error) {
		s := resolveSchema(c, schema)
		switch {
		case opts.Keys != nil:
			return y.Yield(s.Keys(opts.Keys, opts.Limit))
		case len(want) > 0:
			return y.Yield(s.Where(func(e *engine.Entity) bool { return matchesAll(e, want) }, opts.Limit))
		default:
			return y.Yield(s.All(opts.Limit))
		}
	}))
	if err != nil {
		return err
	}

	return output(cmd, opts.RootOptions).Success(newRecords(engine.Entities(result)))
}
