package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/stash/internal/engine"
)

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <schema> <key>",
		Short: "Print one entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd, rootOpts, args[0], args[1])
		},
	}
}

func runGet(cmd *cobra.Command, opts *RootOptions, schema, key string) error {
	result, err := execProc(cmd, opts, engine.Routine(func(c *engine.Context, y *engine.Yielder, _ any) (any, error) {
		return y.Yield(resolveSchema(c, schema).Get(key))
	}))
	if err != nil {
		return err
	}

	e := engine.AsEntity(result)
	if e == nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("no %s entity with key %q", schema, key), ErrNotFound)
	}
	return output(cmd, opts).Success(newRecord(e))
}
