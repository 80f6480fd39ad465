package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/stash/internal/engine"
)

// PutOptions holds flags for the put command.
type PutOptions struct {
	*RootOptions
	Key string
}

// NewPutCommand creates the put command.
func NewPutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PutOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "put <schema> [field=value...]",
		Short: "Create an entity or update one by key",
		Long: `Create an entity in a schema, or merge fields into an existing one.

Values are decoded as JSON when possible, so count=3 stores a number and
done=true a boolean; anything else is stored as a string. Without fields the
schema's default props are used.

With --key, an existing entity with that key is updated; otherwise a new
entity is created under that key.

Example:
  stash put todo title=milk done=false
  stash put todo --key t1 done=true`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPut(cmd, opts, args[0], args[1:])
		},
	}

	cmd.Flags().StringVar(&opts.Key, "key", "", "entity key (generated when empty)")

	return cmd
}

func runPut(cmd *cobra.Command, opts *PutOptions, schema string, assignments []string) error {
	var props map[string]any
	if len(assignments) > 0 {
		var err error
		if props, err = parseAssignments(assignments); err != nil {
			return err
		}
	}

	result, err := execProc(cmd, opts.RootOptions, engine.Routine(func(c *engine.Context, y *engine.Yielder, _ any) (any, error) {
		s := resolveSchema(c, schema)
		if opts.Key == "" {
			return y.Yield(s.Create(props))
		}

		existing, err := y.Yield(s.Get(opts.Key))
		if err != nil {
			return nil, err
		}
		if e := engine.AsEntity(existing); e != nil {
			return y.Yield(s.Update(e, props))
		}
		return y.Yield(s.CreateWithKey(opts.Key, props))
	}))
	if err != nil {
		return err
	}

	return output(cmd, opts.RootOptions).Success(newRecord(engine.AsEntity(result)))
}
