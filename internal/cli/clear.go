package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/stash/internal/engine"
)

// NewClearCommand creates the clear command.
func NewClearCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear [schema]",
		Short: "Remove every entity of one schema, or of all schemas",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var schema string
			if len(args) == 1 {
				schema = args[0]
			}
			return runClear(cmd, rootOpts, schema)
		},
	}
}

func runClear(cmd *cobra.Command, opts *RootOptions, schema string) error {
	_, err := execProc(cmd, opts, engine.Routine(func(c *engine.Context, y *engine.Yielder, _ any) (any, error) {
		if schema == "" {
			return y.Yield(c.Clear())
		}
		return y.Yield(resolveSchema(c, schema).Clear())
	}))
	if err != nil {
		return err
	}

	msg := "cleared all schemas"
	if schema != "" {
		msg = "cleared " + schema
	}
	return output(cmd, opts).Success(msg)
}
